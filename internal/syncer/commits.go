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

type aggregation struct {
	rollup.Result
	commits []model.Commit
}

// refreshCommitsAndContributors fetches the commit history of every repository and
// folds it into contributor and repository rollups.
func (s *Syncer) refreshCommitsAndContributors(ctx context.Context, logger *slog.Logger, repos []model.Repository, w rollup.Windows) (aggregation, error) {
	start := time.Now()
	perRepo := make([][]model.Commit, len(repos))

	g, gctx := s.newGroup(ctx)
	for i, repo := range repos {
		g.Go(func() error {
			id, err := parseRepoIdentifier(repo.Slug)
			if err != nil {
				return err
			}
			raw, err := paginate.All(gctx, s.opts.PageSize, func(ctx context.Context, page, perPage int) ([]model.RawCommit, error) {
				return s.upstream.ListCommits(ctx, id.Owner, id.Name, s.opts.CommitsSince, page, perPage)
			})
			if err != nil {
				return err
			}
			perRepo[i] = tagCommits(repo, raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return aggregation{}, err
	}
	logger.Info("Fetched commits", "repos", len(repos), "duration", time.Since(start))

	commits := normalizeCommits(logger, slices.Concat(perRepo...))
	return aggregation{Result: rollup.Fold(commits, w), commits: commits}, nil
}

func tagCommits(repo model.Repository, raw []model.RawCommit) []model.Commit {
	tagged := make([]model.Commit, 0, len(raw))
	for _, c := range raw {
		tagged = append(tagged, model.Commit{
			SHA:             c.SHA,
			RepoSlug:        repo.Slug,
			Author:          c.AuthorLogin,
			AvatarURL:       repo.AvatarURL,
			Date:            c.Date,
			Message:         c.Message,
			AuthorAvatarURL: c.AuthorAvatar,
		})
	}
	return tagged
}

// normalizeCommits collapses repeated SHAs to their first occurrence and drops
// commits that cannot be attributed to an account.
func normalizeCommits(logger *slog.Logger, commits []model.Commit) []model.Commit {
	var dropped int
	shapeCheck := func(c model.Commit) bool {
		var reason string
		switch {
		case c.SHA == "":
			reason = "missing sha"
		case c.Author == "":
			reason = "author has no login"
		default:
			return false
		}
		dropped++
		logger.Debug("Dropping commit", "error", &custom_errors.DataShapeError{Entity: "commit", Key: c.RepoSlug + "@" + c.SHA, Reason: reason})
		return true
	}

	withSHA := slices.DeleteFunc(slices.Clone(commits), func(c model.Commit) bool { return c.SHA == "" && shapeCheck(c) })
	unique := dedup.By(withSHA, func(c model.Commit) string { return c.SHA }, nil)
	out := slices.DeleteFunc(unique, shapeCheck)

	if dropped > 0 {
		logger.Info("Dropped unattributed commits", "count", dropped)
	}
	logger.Debug("Normalized commits", "input", len(commits), "kept", len(out))
	return out
}
