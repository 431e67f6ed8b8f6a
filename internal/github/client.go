// internal/github/client.go
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	custom_errors "ecosystem-dashboard/internal/errors"
	"ecosystem-dashboard/internal/model"
)

// Options configures the upstream client.
type Options struct {
	Token string
	// BaseURL overrides the REST endpoint, mostly for tests and GitHub Enterprise.
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	PullState         string
}

// Client is a wrapper around the go-github client that speaks in page-sized calls
// and translates upstream objects to the internal model.
type Client struct {
	gh        *github.Client
	raw       *http.Client
	logger    *slog.Logger
	pullState string
}

// NewClient creates and configures a new Client instance.
// A non-empty token is used to create an authenticated http.Client.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	rt := &transport{
		base:       http.DefaultTransport,
		limiter:    limiter,
		maxRetries: opts.MaxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     logger,
	}

	var api http.RoundTripper = rt
	if opts.Token != "" {
		api = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
			Base:   rt,
		}
	}

	gh := github.NewClient(&http.Client{Transport: api, Timeout: opts.Timeout})
	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github base url %q: %w", opts.BaseURL, err)
		}
		gh.BaseURL = u
	}

	pullState := opts.PullState
	if pullState == "" {
		pullState = "open"
	}

	return &Client{
		gh:        gh,
		raw:       &http.Client{Transport: rt, Timeout: opts.Timeout},
		logger:    logger,
		pullState: pullState,
	}, nil
}

// SearchRepositories fetches one page of repository search results.
func (c *Client) SearchRepositories(ctx context.Context, query string, page, perPage int) ([]model.Repository, error) {
	c.logger.Debug("Searching repositories", "query", query, "page", page)
	res, _, err := c.gh.Search.Repositories(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	})
	if err != nil {
		return nil, custom_errors.Upstream("search repositories", err)
	}
	repos := make([]model.Repository, 0, len(res.Repositories))
	for _, r := range res.Repositories {
		repos = append(repos, toInternalRepository(r))
	}
	return repos, nil
}

// GetRepository fetches repository details and translates them to our internal model.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (model.Repository, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return model.Repository{}, custom_errors.Upstream("get repository "+owner+"/"+name, err)
	}
	return toInternalRepository(repo), nil
}

// ListPullRequests fetches one page of pull requests. The upstream order is not relied upon.
func (c *Client) ListPullRequests(ctx context.Context, owner, name string, page, perPage int) ([]model.PullRequest, error) {
	c.logger.Debug("Fetching pulls page", "owner", owner, "repo", name, "page", page)
	pulls, _, err := c.gh.PullRequests.List(ctx, owner, name, &github.PullRequestListOptions{
		State:       c.pullState,
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	})
	if err != nil {
		return nil, custom_errors.Upstream("list pulls "+owner+"/"+name, err)
	}
	out := make([]model.PullRequest, 0, len(pulls))
	for _, p := range pulls {
		out = append(out, model.PullRequest{Number: p.GetNumber(), CreatedAt: p.GetCreatedAt().Time})
	}
	return out, nil
}

// ListCommits fetches one page of commits authored since the given time.
func (c *Client) ListCommits(ctx context.Context, owner, name string, since time.Time, page, perPage int) ([]model.RawCommit, error) {
	c.logger.Debug("Fetching commits page", "owner", owner, "repo", name, "page", page)
	commits, _, err := c.gh.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
		Since:       since,
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	})
	if err != nil {
		return nil, custom_errors.Upstream("list commits "+owner+"/"+name, err)
	}
	out := make([]model.RawCommit, 0, len(commits))
	for _, commit := range commits {
		out = append(out, toInternalCommit(commit))
	}
	return out, nil
}

// ListMilestones fetches one page of open milestones.
func (c *Client) ListMilestones(ctx context.Context, owner, name string, page, perPage int) ([]model.RawMilestone, error) {
	milestones, _, err := c.gh.Issues.ListMilestones(ctx, owner, name, &github.MilestoneListOptions{
		State:       "open",
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	})
	if err != nil {
		return nil, custom_errors.Upstream("list milestones "+owner+"/"+name, err)
	}
	out := make([]model.RawMilestone, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, model.RawMilestone{
			Title:        m.GetTitle(),
			State:        m.GetState(),
			OpenIssues:   m.GetOpenIssues(),
			ClosedIssues: m.GetClosedIssues(),
			URL:          m.GetHTMLURL(),
			CreatedAt:    m.GetCreatedAt().Time,
		})
	}
	return out, nil
}

// ListProfileEntries lists the documents of a profile directory stored in a repository.
func (c *Client) ListProfileEntries(ctx context.Context, owner, name, path string) ([]model.ProfileEntry, error) {
	_, dir, _, err := c.gh.Repositories.GetContents(ctx, owner, name, path, nil)
	if err != nil {
		return nil, custom_errors.Upstream("list profiles "+owner+"/"+name+"/"+path, err)
	}
	entries := make([]model.ProfileEntry, 0, len(dir))
	for _, d := range dir {
		if d.GetType() != "file" {
			continue
		}
		entries = append(entries, model.ProfileEntry{Name: d.GetName(), DownloadURL: d.GetDownloadURL()})
	}
	return entries, nil
}

// FetchProfile downloads and decodes a single profile document. A document that is
// not valid JSON yields a DataShapeError.
func (c *Client) FetchProfile(ctx context.Context, entry model.ProfileEntry) (model.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.DownloadURL, nil)
	if err != nil {
		return model.Profile{}, &custom_errors.DataShapeError{Entity: "profile", Key: entry.Name, Reason: err.Error()}
	}
	resp, err := c.raw.Do(req)
	if err != nil {
		return model.Profile{}, custom_errors.Upstream("download profile "+entry.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.Profile{}, custom_errors.Upstream("download profile "+entry.Name,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var p model.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return model.Profile{}, &custom_errors.DataShapeError{Entity: "profile", Key: entry.Name, Reason: err.Error()}
	}
	return p, nil
}

// toInternalRepository translates a github.Repository object to our internal model.Repository.
func toInternalRepository(r *github.Repository) model.Repository {
	return model.Repository{
		GithubID:    r.GetID(),
		Name:        r.GetName(),
		Slug:        r.GetFullName(),
		URL:         r.GetHTMLURL(),
		AvatarURL:   r.GetOwner().GetAvatarURL(),
		Description: r.GetDescription(),
		Stars:       r.GetStargazersCount(),
		CreatedAt:   r.GetCreatedAt().Time,
		PushedAt:    r.GetPushedAt().Time,
	}
}

// toInternalCommit translates a github.RepositoryCommit object to our internal model.RawCommit.
// AuthorLogin stays empty when the commit email is not linked to an account.
func toInternalCommit(c *github.RepositoryCommit) model.RawCommit {
	return model.RawCommit{
		SHA:          c.GetSHA(),
		AuthorLogin:  c.GetAuthor().GetLogin(),
		AuthorAvatar: c.GetAuthor().GetAvatarURL(),
		Date:         c.GetCommit().GetAuthor().GetDate().Time,
		Message:      c.GetCommit().GetMessage(),
	}
}
