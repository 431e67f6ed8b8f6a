// internal/database/db.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ecosystem-dashboard/internal/model"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Querier reads and writes the named collections.
// Replace* methods drop every row of a collection and insert the given generation;
// callers run them inside a transaction so the swap is atomic for readers.
type Querier interface {
	ReplaceRepositories(ctx context.Context, repos []model.Repository) (int64, error)
	UpdateRepositoryActivity(ctx context.Context, activity map[string]model.RepoActivity) error
	ReplaceContributors(ctx context.Context, contributors []model.Contributor) (int64, error)
	ReplaceCommits(ctx context.Context, commits []model.Commit) (int64, error)
	ReplaceMilestones(ctx context.Context, milestones []model.Milestone) (int64, error)
	ReplaceProfiles(ctx context.Context, profiles []model.Profile) (int64, error)

	ListRepositories(ctx context.Context) ([]model.Repository, error)
	ListContributors(ctx context.Context) ([]model.Contributor, error)
	ListCommits(ctx context.Context) ([]model.Commit, error)
	ListMilestones(ctx context.Context) ([]model.Milestone, error)
	ListProfiles(ctx context.Context) ([]model.Profile, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

var _ Querier = (*Queries)(nil)

// replace empties table and bulk copies rows into it.
func (q *Queries) replace(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if _, err := q.db.Exec(ctx, "DELETE FROM "+pgx.Identifier{table}.Sanitize()); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return q.db.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
