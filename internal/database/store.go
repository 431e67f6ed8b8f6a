// internal/database/store.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	custom_errors "ecosystem-dashboard/internal/errors"
	"ecosystem-dashboard/internal/model"
)

// Store owns the connection pool and hands out queriers.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithTx runs fn in a transaction and commits only if fn succeeds.
// Everything fn wrote becomes visible to other sessions at once.
func (s *Store) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return custom_errors.Persistence("begin transaction", err)
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	if err := fn(New(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return custom_errors.Persistence("commit transaction", err)
	}
	return nil
}

// LoadCollections reads the current generation of every collection.
func (s *Store) LoadCollections(ctx context.Context) (model.Collections, error) {
	return LoadCollections(ctx, New(s.pool))
}

// LoadCollections reads every collection through q.
func LoadCollections(ctx context.Context, q Querier) (model.Collections, error) {
	var (
		c   model.Collections
		err error
	)
	if c.Repositories, err = q.ListRepositories(ctx); err != nil {
		return c, custom_errors.Persistence("list repositories", err)
	}
	if c.Contributors, err = q.ListContributors(ctx); err != nil {
		return c, custom_errors.Persistence("list contributors", err)
	}
	if c.Commits, err = q.ListCommits(ctx); err != nil {
		return c, custom_errors.Persistence("list commits", err)
	}
	if c.Milestones, err = q.ListMilestones(ctx); err != nil {
		return c, custom_errors.Persistence("list milestones", err)
	}
	if c.Profiles, err = q.ListProfiles(ctx); err != nil {
		return c, custom_errors.Persistence("list profiles", err)
	}
	return c, nil
}

// Ping verifies the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
