package syncer

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"ecosystem-dashboard/internal/database"
	custom_errors "ecosystem-dashboard/internal/errors"
	"ecosystem-dashboard/internal/model"
)

func pageOf[T any](items []T, page, perPage int) []T {
	start := (page - 1) * perPage
	if start >= len(items) {
		return nil
	}
	end := min(start+perPage, len(items))
	return slices.Clone(items[start:end])
}

// fakeUpstream serves canned data in pages.
type fakeUpstream struct {
	mu          sync.Mutex
	search      map[string][]model.Repository
	repos       map[string]model.Repository
	pulls       map[string][]model.PullRequest
	commits     map[string][]model.RawCommit
	milestones  []model.RawMilestone
	entries     []model.ProfileEntry
	profiles    map[string]model.Profile
	failCommits string
	pullPages   map[string]int
}

func (f *fakeUpstream) SearchRepositories(_ context.Context, query string, page, perPage int) ([]model.Repository, error) {
	return pageOf(f.search[query], page, perPage), nil
}

func (f *fakeUpstream) GetRepository(_ context.Context, owner, name string) (model.Repository, error) {
	r, ok := f.repos[owner+"/"+name]
	if !ok {
		return model.Repository{}, custom_errors.Upstream("get repository", errors.New("404 Not Found"))
	}
	return r, nil
}

func (f *fakeUpstream) ListPullRequests(_ context.Context, owner, name string, page, perPage int) ([]model.PullRequest, error) {
	f.mu.Lock()
	if f.pullPages == nil {
		f.pullPages = make(map[string]int)
	}
	f.pullPages[owner+"/"+name]++
	f.mu.Unlock()
	return pageOf(f.pulls[owner+"/"+name], page, perPage), nil
}

func (f *fakeUpstream) ListCommits(_ context.Context, owner, name string, _ time.Time, page, perPage int) ([]model.RawCommit, error) {
	slug := owner + "/" + name
	if slug == f.failCommits && page == 2 {
		return nil, custom_errors.Upstream("list commits "+slug, errors.New("403 API rate limit exceeded"))
	}
	return pageOf(f.commits[slug], page, perPage), nil
}

func (f *fakeUpstream) ListMilestones(_ context.Context, _, _ string, page, perPage int) ([]model.RawMilestone, error) {
	return pageOf(f.milestones, page, perPage), nil
}

func (f *fakeUpstream) ListProfileEntries(context.Context, string, string, string) ([]model.ProfileEntry, error) {
	return f.entries, nil
}

func (f *fakeUpstream) FetchProfile(_ context.Context, entry model.ProfileEntry) (model.Profile, error) {
	p, ok := f.profiles[entry.Name]
	if !ok {
		return model.Profile{}, &custom_errors.DataShapeError{Entity: "profile", Key: entry.Name, Reason: "unexpected EOF"}
	}
	return p, nil
}

// memStore keeps collections in memory and applies a transaction only when it succeeds.
type memStore struct {
	mu        sync.Mutex
	data      model.Collections
	failOn    string
	txCommits int
}

func (m *memStore) WithTx(ctx context.Context, fn func(q database.Querier) error) error {
	m.mu.Lock()
	staged := &memQuerier{c: cloneCollections(m.data), failOn: m.failOn}
	m.mu.Unlock()

	if err := fn(staged); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = staged.c
	m.txCommits++
	return nil
}

func (m *memStore) LoadCollections(ctx context.Context) (model.Collections, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return database.LoadCollections(ctx, &memQuerier{c: cloneCollections(m.data)})
}

func (m *memStore) snapshot() model.Collections {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneCollections(m.data)
}

func cloneCollections(c model.Collections) model.Collections {
	return model.Collections{
		Repositories: slices.Clone(c.Repositories),
		Contributors: slices.Clone(c.Contributors),
		Commits:      slices.Clone(c.Commits),
		Milestones:   slices.Clone(c.Milestones),
		Profiles:     slices.Clone(c.Profiles),
	}
}

type memQuerier struct {
	c      model.Collections
	failOn string
}

var _ database.Querier = (*memQuerier)(nil)

func (q *memQuerier) fail(op string) error {
	if q.failOn == op {
		return errors.New("connection reset by peer")
	}
	return nil
}

func (q *memQuerier) ReplaceRepositories(_ context.Context, repos []model.Repository) (int64, error) {
	if err := q.fail("ReplaceRepositories"); err != nil {
		return 0, err
	}
	q.c.Repositories = slices.Clone(repos)
	return int64(len(repos)), nil
}

func (q *memQuerier) UpdateRepositoryActivity(_ context.Context, activity map[string]model.RepoActivity) error {
	if err := q.fail("UpdateRepositoryActivity"); err != nil {
		return err
	}
	for i, r := range q.c.Repositories {
		if a, ok := activity[r.Slug]; ok {
			q.c.Repositories[i].Commits30d, q.c.Repositories[i].Commits7d = a.Commits30d, a.Commits7d
		}
	}
	return nil
}

func (q *memQuerier) ReplaceContributors(_ context.Context, contributors []model.Contributor) (int64, error) {
	if err := q.fail("ReplaceContributors"); err != nil {
		return 0, err
	}
	q.c.Contributors = slices.Clone(contributors)
	return int64(len(contributors)), nil
}

func (q *memQuerier) ReplaceCommits(_ context.Context, commits []model.Commit) (int64, error) {
	if err := q.fail("ReplaceCommits"); err != nil {
		return 0, err
	}
	q.c.Commits = slices.Clone(commits)
	return int64(len(commits)), nil
}

func (q *memQuerier) ReplaceMilestones(_ context.Context, milestones []model.Milestone) (int64, error) {
	if err := q.fail("ReplaceMilestones"); err != nil {
		return 0, err
	}
	q.c.Milestones = slices.Clone(milestones)
	return int64(len(milestones)), nil
}

func (q *memQuerier) ReplaceProfiles(_ context.Context, profiles []model.Profile) (int64, error) {
	if err := q.fail("ReplaceProfiles"); err != nil {
		return 0, err
	}
	q.c.Profiles = slices.Clone(profiles)
	return int64(len(profiles)), nil
}

func (q *memQuerier) ListRepositories(context.Context) ([]model.Repository, error) {
	return q.c.Repositories, nil
}

func (q *memQuerier) ListContributors(context.Context) ([]model.Contributor, error) {
	return q.c.Contributors, nil
}

func (q *memQuerier) ListCommits(context.Context) ([]model.Commit, error) { return q.c.Commits, nil }

func (q *memQuerier) ListMilestones(context.Context) ([]model.Milestone, error) {
	return q.c.Milestones, nil
}

func (q *memQuerier) ListProfiles(context.Context) ([]model.Profile, error) { return q.c.Profiles, nil }

// MockPublisher is a mock of the Publisher interface.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, snap *model.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}
