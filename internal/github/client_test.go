// internal/github/client_test.go
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "ecosystem-dashboard/internal/errors"
	"ecosystem-dashboard/internal/model"
)

// setupTestClient creates a httptest server and a client pointing to it.
func setupTestClient(t *testing.T, handler http.Handler, maxRetries int) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client, err := NewClient(Options{BaseURL: server.URL, Timeout: 5 * time.Second, MaxRetries: maxRetries}, logger)
	require.NoError(t, err)

	// Keep retries fast.
	client.raw.Transport.(*transport).newBackOff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	}
	return client
}

func TestClient_GetRepository(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/nano/node", r.URL.Path)
		fmt.Fprintln(w, `{
			"id": 42, "name": "node", "full_name": "nano/node",
			"html_url": "https://github.com/nano/node", "description": "core node",
			"stargazers_count": 7, "created_at": "2014-05-01T00:00:00Z", "pushed_at": "2024-05-01T00:00:00Z",
			"owner": {"login": "nano", "avatar_url": "https://avatars/nano"}
		}`)
	})
	client := setupTestClient(t, handler, 0)

	repo, err := client.GetRepository(context.Background(), "nano", "node")

	require.NoError(t, err)
	assert.Equal(t, model.Repository{
		GithubID:    42,
		Name:        "node",
		Slug:        "nano/node",
		URL:         "https://github.com/nano/node",
		AvatarURL:   "https://avatars/nano",
		Description: "core node",
		Stars:       7,
		CreatedAt:   time.Date(2014, 5, 1, 0, 0, 0, 0, time.UTC),
		PushedAt:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}, repo)
}

func TestClient_PageParameters(t *testing.T) {
	since := time.Date(2014, 5, 1, 14, 49, 25, 0, time.UTC)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/search/repositories":
			assert.Equal(t, "topic:nanocurrency", q.Get("q"))
			assert.Equal(t, "2", q.Get("page"))
			assert.Equal(t, "100", q.Get("per_page"))
			fmt.Fprintln(w, `{"total_count": 1, "items": [{"id": 1, "full_name": "a/b", "name": "b"}]}`)
		case "/repos/a/b/pulls":
			assert.Equal(t, "open", q.Get("state"))
			assert.Equal(t, "3", q.Get("page"))
			fmt.Fprintln(w, `[{"number": 9, "created_at": "2024-06-01T00:00:00Z"}]`)
		case "/repos/a/b/commits":
			assert.Equal(t, since.Format(time.RFC3339), q.Get("since"))
			fmt.Fprintln(w, `[
				{"sha": "abc", "author": {"login": "alice", "avatar_url": "https://avatars/alice"},
				 "commit": {"message": "feat: x", "author": {"date": "2024-01-01T12:00:00Z"}}},
				{"sha": "def", "author": null,
				 "commit": {"message": "unlinked", "author": {"date": "2024-01-02T12:00:00Z"}}}
			]`)
		case "/repos/a/b/milestones":
			assert.Equal(t, "open", q.Get("state"))
			fmt.Fprintln(w, `[{"title": "V26.0", "state": "open", "open_issues": 3, "closed_issues": 4,
				"html_url": "https://m/1", "created_at": "2024-02-01T00:00:00Z"}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	client := setupTestClient(t, handler, 0)
	ctx := context.Background()

	repos, err := client.SearchRepositories(ctx, "topic:nanocurrency", 2, 100)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "a/b", repos[0].Slug)

	pulls, err := client.ListPullRequests(ctx, "a", "b", 3, 100)
	require.NoError(t, err)
	assert.Equal(t, []model.PullRequest{{Number: 9, CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}}, pulls)

	commits, err := client.ListCommits(ctx, "a", "b", since, 1, 100)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "alice", commits[0].AuthorLogin)
	assert.Equal(t, "https://avatars/alice", commits[0].AuthorAvatar)
	assert.Equal(t, "feat: x", commits[0].Message)
	assert.Empty(t, commits[1].AuthorLogin)

	milestones, err := client.ListMilestones(ctx, "a", "b", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, []model.RawMilestone{{
		Title: "V26.0", State: "open", OpenIssues: 3, ClosedIssues: 4, URL: "https://m/1",
		CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}}, milestones)
}

func TestClient_Profiles(t *testing.T) {
	var serverURL string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/dev/list/contents/donatees":
			fmt.Fprintf(w, `[
				{"type": "file", "name": "alice.json", "download_url": "%[1]s/raw/alice.json"},
				{"type": "dir", "name": "images", "download_url": null},
				{"type": "file", "name": "broken.json", "download_url": "%[1]s/raw/broken.json"}
			]`, serverURL)
		case "/raw/alice.json":
			fmt.Fprintln(w, `{"name": "Alice", "github": "alice", "nano_account": "nano_1abc", "tags": ["wallet"]}`)
		case "/raw/broken.json":
			fmt.Fprintln(w, `{"name": `)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	client := setupTestClient(t, handler, 0)
	serverURL = client.gh.BaseURL.Scheme + "://" + client.gh.BaseURL.Host
	ctx := context.Background()

	entries, err := client.ListProfileEntries(ctx, "dev", "list", "donatees")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice.json", entries[0].Name)

	alice, err := client.FetchProfile(ctx, entries[0])
	require.NoError(t, err)
	assert.Equal(t, model.Profile{Name: "Alice", Github: "alice", NanoAccount: "nano_1abc", Tags: []string{"wallet"}}, alice)

	_, err = client.FetchProfile(ctx, entries[1])
	var shapeErr *custom_errors.DataShapeError
	assert.ErrorAs(t, err, &shapeErr)

	_, err = client.FetchProfile(ctx, model.ProfileEntry{Name: "gone.json", DownloadURL: serverURL + "/raw/gone.json"})
	var upErr *custom_errors.UpstreamFetchError
	assert.ErrorAs(t, err, &upErr)
}

func TestClient_Retry(t *testing.T) {
	const repoJSON = `{"id": 1, "name": "repo", "full_name": "test/repo", "owner": {"login": "test"}}`

	t.Run("surfaces a server error when retries are disabled", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		client := setupTestClient(t, handler, 0)

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.Error(t, err)
		var upErr *custom_errors.UpstreamFetchError
		assert.ErrorAs(t, err, &upErr)
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
	})

	t.Run("retries on 503 server error and succeeds", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requestCount, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprintln(w, repoJSON)
		})
		client := setupTestClient(t, handler, 3)

		repo, err := client.GetRepository(context.Background(), "test", "repo")

		require.NoError(t, err)
		assert.Equal(t, "test/repo", repo.Slug)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount), "should have made two requests")
	})

	t.Run("retries a rate limit response", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requestCount, 1) == 1 {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Unix()))
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprintln(w, `{"message": "API rate limit exceeded"}`)
				return
			}
			fmt.Fprintln(w, repoJSON)
		})
		client := setupTestClient(t, handler, 2)

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("fails after max retries on persistent server error", func(t *testing.T) {
		const maxRetries = 2
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusInternalServerError)
		})
		client := setupTestClient(t, handler, maxRetries)

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.Error(t, err)
		var ghErr *github.ErrorResponse
		assert.ErrorAs(t, err, &ghErr)
		assert.Equal(t, http.StatusInternalServerError, ghErr.Response.StatusCode)
		assert.Equal(t, int32(maxRetries+1), atomic.LoadInt32(&requestCount))
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusNotFound)
		})
		client := setupTestClient(t, handler, 3)

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
	})
}
