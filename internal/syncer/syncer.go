// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"ecosystem-dashboard/internal/config"
	"ecosystem-dashboard/internal/database"
	custom_errors "ecosystem-dashboard/internal/errors"
	"ecosystem-dashboard/internal/model"
	"ecosystem-dashboard/internal/rollup"
	"ecosystem-dashboard/internal/snapshot"
)

const (
	defaultConcurrency = 5
	defaultPageSize    = 100
	defaultRunTimeout  = 30 * time.Minute
)

// Upstream is the paged view of the upstream API the pipeline consumes.
type Upstream interface {
	SearchRepositories(ctx context.Context, query string, page, perPage int) ([]model.Repository, error)
	GetRepository(ctx context.Context, owner, name string) (model.Repository, error)
	ListPullRequests(ctx context.Context, owner, name string, page, perPage int) ([]model.PullRequest, error)
	ListCommits(ctx context.Context, owner, name string, since time.Time, page, perPage int) ([]model.RawCommit, error)
	ListMilestones(ctx context.Context, owner, name string, page, perPage int) ([]model.RawMilestone, error)
	ListProfileEntries(ctx context.Context, owner, name, path string) ([]model.ProfileEntry, error)
	FetchProfile(ctx context.Context, entry model.ProfileEntry) (model.Profile, error)
}

// Store persists collection generations.
type Store interface {
	WithTx(ctx context.Context, fn func(q database.Querier) error) error
	LoadCollections(ctx context.Context) (model.Collections, error)
}

// Publisher writes the combined snapshot to the fast read store.
type Publisher interface {
	Publish(ctx context.Context, snap *model.Snapshot) error
}

// RepoIdentifier holds the owner and name of a repository.
type RepoIdentifier struct {
	Owner string
	Name  string
}

func (id RepoIdentifier) String() string { return id.Owner + "/" + id.Name }

// Options carries the pipeline configuration.
type Options struct {
	SearchQueries []string
	KnownRepos    []string
	IgnoredRepos  []string
	MilestoneRepo string
	// ProfileSource is 'owner/repo/path' of the profile directory.
	ProfileSource string
	CommitsSince  time.Time
	Concurrency   int
	PageSize      int
	MaxEvents     int
	CronSchedule  string
	RunOnStartup  bool
	RunTimeout    time.Duration
}

// OptionsFromConfig maps the application configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SearchQueries: cfg.SearchQueries,
		KnownRepos:    cfg.KnownRepos,
		IgnoredRepos:  cfg.IgnoredRepos,
		MilestoneRepo: cfg.MilestoneRepo,
		ProfileSource: cfg.ProfileSource,
		CommitsSince:  cfg.CommitsSinceTime,
		Concurrency:   cfg.Concurrency,
		PageSize:      cfg.PageSize,
		MaxEvents:     cfg.MaxEvents,
		CronSchedule:  cfg.CronSchedule,
		RunOnStartup:  cfg.RunOnStartup,
		RunTimeout:    cfg.RunTimeout,
	}
}

// Syncer orchestrates the fetching, aggregation, storing and publication of data.
type Syncer struct {
	store     Store
	upstream  Upstream
	publisher Publisher
	logger    *slog.Logger
	opts      Options

	knownRepos    []RepoIdentifier
	milestoneRepo RepoIdentifier
	profileRepo   RepoIdentifier
	profilePath   string

	now     func() time.Time
	running sync.Mutex
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(store Store, upstream Upstream, publisher Publisher, logger *slog.Logger, opts Options) (*Syncer, error) {
	known, err := parseRepoIdentifiers(opts.KnownRepos)
	if err != nil {
		return nil, err
	}
	milestoneRepo, err := parseRepoIdentifier(opts.MilestoneRepo)
	if err != nil {
		return nil, err
	}
	cfg := config.Config{ProfileSource: opts.ProfileSource}
	owner, name, path, err := cfg.ProfileLocation()
	if err != nil {
		return nil, err
	}
	if opts.CronSchedule != "" {
		if _, err := cron.ParseStandard(opts.CronSchedule); err != nil {
			return nil, fmt.Errorf("invalid cron schedule %q: %w", opts.CronSchedule, err)
		}
	}

	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.PageSize < 1 {
		opts.PageSize = defaultPageSize
	}
	if opts.MaxEvents < 1 {
		opts.MaxEvents = snapshot.DefaultMaxEvents
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}

	return &Syncer{
		store:         store,
		upstream:      upstream,
		publisher:     publisher,
		logger:        logger,
		opts:          opts,
		knownRepos:    known,
		milestoneRepo: milestoneRepo,
		profileRepo:   RepoIdentifier{Owner: owner, Name: name},
		profilePath:   path,
		now:           time.Now,
	}, nil
}

// Start runs the pipeline on the cron schedule until ctx is cancelled.
func (s *Syncer) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.opts.CronSchedule, func() { s.runScheduled(ctx) }); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	c.Start()
	s.logger.Info("Starting syncer", "schedule", s.opts.CronSchedule, "concurrency", s.opts.Concurrency)

	if s.opts.RunOnStartup {
		go s.runScheduled(ctx)
	}

	<-ctx.Done()
	s.logger.Info("Syncer shutting down", "reason", ctx.Err())
	<-c.Stop().Done()
	return nil
}

func (s *Syncer) runScheduled(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()
	if err := s.Run(ctx); errors.Is(err, custom_errors.ErrRunInProgress) {
		s.logger.Warn("Skipping scheduled run, previous run still in progress")
	}
}

// Run executes one full pipeline run and blocks until it is done.
// It returns ErrRunInProgress if another run holds the pipeline.
func (s *Syncer) Run(ctx context.Context) error {
	if !s.running.TryLock() {
		return custom_errors.ErrRunInProgress
	}
	defer s.running.Unlock()
	return s.execute(ctx)
}

// RunAsync starts a run in the background, bounded by the run timeout.
func (s *Syncer) RunAsync(ctx context.Context) error {
	if !s.running.TryLock() {
		return custom_errors.ErrRunInProgress
	}
	go func() {
		defer s.running.Unlock()
		ctx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
		_ = s.execute(ctx)
	}()
	return nil
}

// generation is everything one run writes.
type generation struct {
	milestones   []model.Milestone
	repos        []model.Repository
	activity     map[string]model.RepoActivity
	contributors []model.Contributor
	commits      []model.Commit
	profiles     []model.Profile
}

func (s *Syncer) execute(ctx context.Context) error {
	logger := s.logger.With("run_id", uuid.NewString())
	started := s.now()
	logger.Info("Starting new sync run")

	err := s.sync(ctx, logger, started)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Sync run abandoned", "error", err)
		} else {
			logger.Error("Sync run failed", "error", err, "duration", time.Since(started))
		}
		return err
	}
	logger.Info("Sync run finished", "duration", time.Since(started))
	return nil
}

func (s *Syncer) sync(ctx context.Context, logger *slog.Logger, started time.Time) error {
	windows := rollup.WindowsAt(started)
	var gen generation
	var err error

	if gen.milestones, err = s.refreshMilestones(ctx, logger); err != nil {
		return err
	}
	if gen.repos, err = s.refreshRepos(ctx, logger, windows); err != nil {
		return err
	}
	agg, err := s.refreshCommitsAndContributors(ctx, logger, gen.repos, windows)
	if err != nil {
		return err
	}
	gen.activity, gen.contributors, gen.commits = agg.Activity, agg.Contributors, agg.commits
	if gen.profiles, err = s.refreshProfiles(ctx, logger); err != nil {
		return err
	}

	if err := s.persist(ctx, logger, gen); err != nil {
		return err
	}
	return s.publishSnapshot(ctx, logger)
}

// persist writes the generation in one transaction. Repositories are replaced first
// and then receive the commit counters as a partial update.
func (s *Syncer) persist(ctx context.Context, logger *slog.Logger, gen generation) error {
	start := time.Now()
	err := s.store.WithTx(ctx, func(q database.Querier) error {
		if _, err := q.ReplaceMilestones(ctx, gen.milestones); err != nil {
			return custom_errors.Persistence("replace milestones", err)
		}
		if _, err := q.ReplaceRepositories(ctx, gen.repos); err != nil {
			return custom_errors.Persistence("replace repositories", err)
		}
		if err := q.UpdateRepositoryActivity(ctx, gen.activity); err != nil {
			return custom_errors.Persistence("update repository activity", err)
		}
		if _, err := q.ReplaceContributors(ctx, gen.contributors); err != nil {
			return custom_errors.Persistence("replace contributors", err)
		}
		if _, err := q.ReplaceCommits(ctx, gen.commits); err != nil {
			return custom_errors.Persistence("replace commits", err)
		}
		if _, err := q.ReplaceProfiles(ctx, gen.profiles); err != nil {
			return custom_errors.Persistence("replace profiles", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("Stored collections",
		"repos", len(gen.repos), "contributors", len(gen.contributors), "commits", len(gen.commits),
		"milestones", len(gen.milestones), "profiles", len(gen.profiles), "duration", time.Since(start))
	return nil
}

// publishSnapshot rebuilds the combined snapshot from the stored collections.
func (s *Syncer) publishSnapshot(ctx context.Context, logger *slog.Logger) error {
	collections, err := s.store.LoadCollections(ctx)
	if err != nil {
		return err
	}
	snap := snapshot.Build(collections, s.opts.MaxEvents, s.now())
	if err := s.publisher.Publish(ctx, snap); err != nil {
		return err
	}
	logger.Info("Published snapshot", "repos", len(snap.Repos), "weeks", len(snap.Commits), "events", len(snap.Events))
	return nil
}

// newGroup returns an errgroup bounded by the configured concurrency.
func (s *Syncer) newGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	return g, gctx
}

func parseRepoIdentifier(slug string) (RepoIdentifier, error) {
	owner, name, err := config.SplitSlug(slug)
	if err != nil {
		return RepoIdentifier{}, err
	}
	return RepoIdentifier{Owner: owner, Name: name}, nil
}

func parseRepoIdentifiers(repos []string) ([]RepoIdentifier, error) {
	var identifiers []RepoIdentifier
	for _, r := range repos {
		id, err := parseRepoIdentifier(r)
		if err != nil {
			return nil, err
		}
		identifiers = append(identifiers, id)
	}
	return identifiers, nil
}
