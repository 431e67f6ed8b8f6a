package syncer

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"ecosystem-dashboard/internal/dedup"
	custom_errors "ecosystem-dashboard/internal/errors"
	"ecosystem-dashboard/internal/model"
	"ecosystem-dashboard/internal/paginate"
	"ecosystem-dashboard/internal/rollup"
)

// refreshRepos builds the canonical repository set: search results in query order,
// then the known repositories, deduplicated by slug minus the ignore list, with
// recent pull request counts.
func (s *Syncer) refreshRepos(ctx context.Context, logger *slog.Logger, w rollup.Windows) ([]model.Repository, error) {
	start := time.Now()
	searched := make([][]model.Repository, len(s.opts.SearchQueries))
	known := make([]model.Repository, len(s.knownRepos))

	g, gctx := s.newGroup(ctx)
	for i, query := range s.opts.SearchQueries {
		g.Go(func() error {
			repos, err := paginate.All(gctx, s.opts.PageSize, func(ctx context.Context, page, perPage int) ([]model.Repository, error) {
				return s.upstream.SearchRepositories(ctx, query, page, perPage)
			})
			searched[i] = repos
			return err
		})
	}
	for i, id := range s.knownRepos {
		g.Go(func() error {
			repo, err := s.upstream.GetRepository(gctx, id.Owner, id.Name)
			known[i] = repo
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := slices.Concat(append(searched, known)...)
	all = slices.DeleteFunc(all, func(r model.Repository) bool {
		if _, err := parseRepoIdentifier(r.Slug); err != nil {
			logger.Warn("Dropping repository", "error", &custom_errors.DataShapeError{Entity: "repository", Key: r.Slug, Reason: "full name is not owner/name"})
			return true
		}
		return false
	})
	repos := dedup.By(all, func(r model.Repository) string { return r.Slug }, dedup.Set(s.opts.IgnoredRepos))
	logger.Info("Fetched repos", "count", len(repos), "candidates", len(all), "duration", time.Since(start))

	if err := s.countPullRequests(ctx, logger, repos, w); err != nil {
		return nil, err
	}
	return repos, nil
}

// countPullRequests sets PRs30d and PRs7d on every repository. Every page is
// scanned since the upstream gives no ordering guarantee for pull requests.
func (s *Syncer) countPullRequests(ctx context.Context, logger *slog.Logger, repos []model.Repository, w rollup.Windows) error {
	start := time.Now()
	g, gctx := s.newGroup(ctx)
	for i := range repos {
		g.Go(func() error {
			id, err := parseRepoIdentifier(repos[i].Slug)
			if err != nil {
				return err
			}
			month, week := 0, 0
			for pulls, err := range paginate.Pages(gctx, s.opts.PageSize, func(ctx context.Context, page, perPage int) ([]model.PullRequest, error) {
				return s.upstream.ListPullRequests(ctx, id.Owner, id.Name, page, perPage)
			}) {
				if err != nil {
					return err
				}
				for _, pr := range pulls {
					if !w.InMonth(pr.CreatedAt) {
						continue
					}
					month++
					if w.InWeek(pr.CreatedAt) {
						week++
					}
				}
			}
			repos[i].PRs30d, repos[i].PRs7d = month, week
			repos[i].Commits30d, repos[i].Commits7d = 0, 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Fetched pulls", "repos", len(repos), "duration", time.Since(start))
	return nil
}
