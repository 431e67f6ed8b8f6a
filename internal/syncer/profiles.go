package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	custom_errors "ecosystem-dashboard/internal/errors"
	"ecosystem-dashboard/internal/model"
)

// refreshProfiles downloads every document of the external profile directory.
// Malformed documents are skipped; any failed download aborts the refresh.
func (s *Syncer) refreshProfiles(ctx context.Context, logger *slog.Logger) ([]model.Profile, error) {
	start := time.Now()
	entries, err := s.upstream.ListProfileEntries(ctx, s.profileRepo.Owner, s.profileRepo.Name, s.profilePath)
	if err != nil {
		return nil, err
	}

	fetched := make([]model.Profile, len(entries))
	valid := make([]bool, len(entries))
	g, gctx := s.newGroup(ctx)
	for i, entry := range entries {
		g.Go(func() error {
			p, err := s.upstream.FetchProfile(gctx, entry)
			var shapeErr *custom_errors.DataShapeError
			if errors.As(err, &shapeErr) {
				logger.Warn("Skipping profile", "error", err)
				return nil
			}
			if err != nil {
				return err
			}
			fetched[i], valid[i] = p, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	profiles := make([]model.Profile, 0, len(entries))
	for i, p := range fetched {
		if valid[i] {
			profiles = append(profiles, p)
		}
	}
	logger.Info("Refreshed profiles", "count", len(profiles), "entries", len(entries), "duration", time.Since(start))
	return profiles, nil
}
