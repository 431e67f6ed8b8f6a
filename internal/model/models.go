// internal/model/models.go
package model

import (
	"time"
)

// Repository is a tracked project together with its rolling activity counters.
// JSON names match what the dashboard consumes.
type Repository struct {
	GithubID    int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"full_name"`
	URL         string    `json:"html_url"`
	AvatarURL   string    `json:"avatar_url"`
	Description string    `json:"description"`
	Stars       int       `json:"stargazers_count"`
	CreatedAt   time.Time `json:"created_at"`
	PushedAt    time.Time `json:"pushed_at"`
	PRs30d      int       `json:"prs_30d"`
	PRs7d       int       `json:"prs_7d"`
	Commits30d  int       `json:"commits_30d"`
	Commits7d   int       `json:"commits_7d"`
}

// Activity is the trailing-window commit and pull request count of a repository.
func (r Repository) Activity() int {
	return r.Commits30d + r.PRs30d
}

// RepoActivity holds the commit counters applied to a repository by the aggregator.
type RepoActivity struct {
	Commits30d int
	Commits7d  int
}

// PullRequest carries the only field the refresher needs from a pull request.
type PullRequest struct {
	Number    int
	CreatedAt time.Time
}

// RawCommit is an upstream commit before it is tagged with its repository.
type RawCommit struct {
	SHA          string
	AuthorLogin  string
	AuthorAvatar string
	Date         time.Time
	Message      string
}

// Commit is a deduplicated commit record attributed to a repository.
type Commit struct {
	SHA       string    `json:"sha"`
	RepoSlug  string    `json:"repo_full_name"`
	Author    string    `json:"author"`
	AvatarURL string    `json:"avatar_url"`
	Date      time.Time `json:"date"`
	Message   string    `json:"message"`
	// AuthorAvatarURL is the committer's own avatar; AvatarURL is the repository owner's.
	AuthorAvatarURL string `json:"-"`
}

// Contributor is the rollup of every commit attributed to one login.
type Contributor struct {
	Login         string   `json:"login"`
	AvatarURL     string   `json:"avatar_url"`
	Contributions int      `json:"contributions"`
	LastMonth     int      `json:"last_month"`
	Repos         []string `json:"repos"`
}

// RawMilestone is an upstream milestone before filtering.
type RawMilestone struct {
	Title        string
	State        string
	OpenIssues   int
	ClosedIssues int
	URL          string
	CreatedAt    time.Time
}

type Milestone struct {
	Title        string `json:"title"`
	OpenIssues   int    `json:"open_issues"`
	ClosedIssues int    `json:"closed_issues"`
	URL          string `json:"url"`
}

// ProfileEntry points at one profile document in the external directory.
type ProfileEntry struct {
	Name        string
	DownloadURL string
}

// Profile is an entry of the external contributor directory.
type Profile struct {
	Name        string   `json:"name"`
	Github      string   `json:"github"`
	Twitter     string   `json:"twitter"`
	SponsorLink string   `json:"sponsor_link"`
	NanoAccount string   `json:"nano_account"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Collections is one generation of every persisted collection.
type Collections struct {
	Repositories []Repository
	Contributors []Contributor
	Commits      []Commit
	Milestones   []Milestone
	Profiles     []Profile
}

// RankedContributor is a contributor as exposed in the snapshot.
type RankedContributor struct {
	Contributor
	ReposCount int `json:"repos_count"`
}

// WeekBucket counts commits in one ISO year+week.
type WeekBucket struct {
	Year  int    `json:"year"`
	Week  int    `json:"week"`
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Snapshot is the read-optimized bundle published for the dashboard.
type Snapshot struct {
	Repos        []Repository        `json:"repos"`
	Contributors []RankedContributor `json:"contributors"`
	Commits      []WeekBucket        `json:"commits"`
	Milestones   []Milestone         `json:"milestones"`
	DevList      []Profile           `json:"devList"`
	Events       []Commit            `json:"events"`
	GeneratedAt  time.Time           `json:"generated_at"`
}
