package syncer

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"ecosystem-dashboard/internal/model"
	"ecosystem-dashboard/internal/paginate"
)

func (s *Syncer) refreshMilestones(ctx context.Context, logger *slog.Logger) ([]model.Milestone, error) {
	start := time.Now()
	id := s.milestoneRepo
	raw, err := paginate.All(ctx, s.opts.PageSize, func(ctx context.Context, page, perPage int) ([]model.RawMilestone, error) {
		return s.upstream.ListMilestones(ctx, id.Owner, id.Name, page, perPage)
	})
	if err != nil {
		return nil, err
	}
	milestones := selectVersionMilestones(raw)
	logger.Info("Refreshed milestones", "repo", id.String(), "count", len(milestones), "duration", time.Since(start))
	return milestones, nil
}

// selectVersionMilestones keeps open milestones named after a version, newest first,
// then orders them by title descending for display.
func selectVersionMilestones(raw []model.RawMilestone) []model.Milestone {
	open := slices.DeleteFunc(slices.Clone(raw), func(m model.RawMilestone) bool {
		return m.State != "open" || !strings.HasPrefix(strings.ToLower(m.Title), "v")
	})
	slices.SortStableFunc(open, func(a, b model.RawMilestone) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	milestones := make([]model.Milestone, 0, len(open))
	for _, m := range open {
		milestones = append(milestones, model.Milestone{
			Title:        m.Title,
			OpenIssues:   m.OpenIssues,
			ClosedIssues: m.ClosedIssues,
			URL:          m.URL,
		})
	}
	slices.SortStableFunc(milestones, func(a, b model.Milestone) int {
		return strings.Compare(b.Title, a.Title)
	})
	return milestones
}
