// internal/database/queries.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5"

	"ecosystem-dashboard/internal/model"
)

var repositoryColumns = []string{
	"slug", "github_id", "name", "html_url", "avatar_url", "description", "stars",
	"created_at", "pushed_at", "prs_30d", "prs_7d", "commits_30d", "commits_7d",
}

func (q *Queries) ReplaceRepositories(ctx context.Context, repos []model.Repository) (int64, error) {
	rows := make([][]any, len(repos))
	for i, r := range repos {
		rows[i] = []any{
			r.Slug, r.GithubID, r.Name, r.URL, r.AvatarURL, r.Description, r.Stars,
			r.CreatedAt, r.PushedAt, r.PRs30d, r.PRs7d, r.Commits30d, r.Commits7d,
		}
	}
	return q.replace(ctx, "repositories", repositoryColumns, rows)
}

const updateRepositoryActivity = `
UPDATE repositories SET commits_30d = $2, commits_7d = $3 WHERE slug = $1`

// UpdateRepositoryActivity applies commit counters to existing repositories in a single batch.
func (q *Queries) UpdateRepositoryActivity(ctx context.Context, activity map[string]model.RepoActivity) error {
	if len(activity) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for slug, a := range activity {
		batch.Queue(updateRepositoryActivity, slug, a.Commits30d, a.Commits7d)
	}
	return q.db.SendBatch(ctx, batch).Close()
}

const listRepositories = `
SELECT slug, github_id, name, html_url, avatar_url, description, stars,
       created_at, pushed_at, prs_30d, prs_7d, commits_30d, commits_7d
FROM repositories
ORDER BY created_at ASC, slug ASC`

func (q *Queries) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	rows, err := q.db.Query(ctx, listRepositories)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Repository, error) {
		var r model.Repository
		err := row.Scan(&r.Slug, &r.GithubID, &r.Name, &r.URL, &r.AvatarURL, &r.Description, &r.Stars,
			&r.CreatedAt, &r.PushedAt, &r.PRs30d, &r.PRs7d, &r.Commits30d, &r.Commits7d)
		return r, err
	})
}

func (q *Queries) ReplaceContributors(ctx context.Context, contributors []model.Contributor) (int64, error) {
	rows := make([][]any, len(contributors))
	for i, c := range contributors {
		rows[i] = []any{c.Login, c.AvatarURL, c.Contributions, c.LastMonth, textArray(c.Repos)}
	}
	return q.replace(ctx, "contributors", []string{"login", "avatar_url", "contributions", "last_month", "repos"}, rows)
}

const listContributors = `
SELECT login, avatar_url, contributions, last_month, repos
FROM contributors
ORDER BY contributions DESC, cardinality(repos) DESC, login ASC`

func (q *Queries) ListContributors(ctx context.Context) ([]model.Contributor, error) {
	rows, err := q.db.Query(ctx, listContributors)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Contributor, error) {
		var c model.Contributor
		err := row.Scan(&c.Login, &c.AvatarURL, &c.Contributions, &c.LastMonth, &c.Repos)
		return c, err
	})
}

func (q *Queries) ReplaceCommits(ctx context.Context, commits []model.Commit) (int64, error) {
	rows := make([][]any, len(commits))
	for i, c := range commits {
		rows[i] = []any{c.SHA, c.RepoSlug, c.Author, c.AvatarURL, c.AuthorAvatarURL, c.Date, c.Message}
	}
	return q.replace(ctx, "commits",
		[]string{"sha", "repo_slug", "author", "avatar_url", "author_avatar_url", "committed_at", "message"}, rows)
}

const listCommits = `
SELECT sha, repo_slug, author, avatar_url, author_avatar_url, committed_at, message
FROM commits
ORDER BY committed_at DESC, sha ASC`

func (q *Queries) ListCommits(ctx context.Context) ([]model.Commit, error) {
	rows, err := q.db.Query(ctx, listCommits)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Commit, error) {
		var c model.Commit
		err := row.Scan(&c.SHA, &c.RepoSlug, &c.Author, &c.AvatarURL, &c.AuthorAvatarURL, &c.Date, &c.Message)
		return c, err
	})
}

// ReplaceMilestones stores milestones keeping their display order.
func (q *Queries) ReplaceMilestones(ctx context.Context, milestones []model.Milestone) (int64, error) {
	rows := make([][]any, len(milestones))
	for i, m := range milestones {
		rows[i] = []any{i, m.Title, m.OpenIssues, m.ClosedIssues, m.URL}
	}
	return q.replace(ctx, "milestones", []string{"position", "title", "open_issues", "closed_issues", "url"}, rows)
}

func (q *Queries) ListMilestones(ctx context.Context) ([]model.Milestone, error) {
	rows, err := q.db.Query(ctx, `SELECT title, open_issues, closed_issues, url FROM milestones ORDER BY position`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Milestone, error) {
		var m model.Milestone
		err := row.Scan(&m.Title, &m.OpenIssues, &m.ClosedIssues, &m.URL)
		return m, err
	})
}

func (q *Queries) ReplaceProfiles(ctx context.Context, profiles []model.Profile) (int64, error) {
	rows := make([][]any, len(profiles))
	for i, p := range profiles {
		rows[i] = []any{i, p.Name, p.Github, p.Twitter, p.SponsorLink, p.NanoAccount, p.Description, textArray(p.Tags)}
	}
	return q.replace(ctx, "profiles",
		[]string{"position", "name", "github", "twitter", "sponsor_link", "nano_account", "description", "tags"}, rows)
}

func (q *Queries) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := q.db.Query(ctx, `
SELECT name, github, twitter, sponsor_link, nano_account, description, tags
FROM profiles
ORDER BY position`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Profile, error) {
		var p model.Profile
		err := row.Scan(&p.Name, &p.Github, &p.Twitter, &p.SponsorLink, &p.NanoAccount, &p.Description, &p.Tags)
		return p, err
	})
}
