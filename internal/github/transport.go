package github

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// transport spaces outgoing requests and optionally retries server errors and
// rate-limit responses. With maxRetries == 0 every failure reaches the caller.
type transport struct {
	base       http.RoundTripper
	limiter    *rate.Limiter
	maxRetries int
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	b := backoff.WithContext(backoff.WithMaxRetries(t.newBackOff(), uint64(t.maxRetries)), ctx)

	for attempt := 1; ; attempt++ {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err == nil && !retryable(resp) {
			return resp, nil
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return resp, err
		}
		if err == nil {
			if reset := rateLimitReset(resp); reset > wait {
				wait = reset
			}
			t.logger.Warn("Retrying upstream request", "url", req.URL.Path, "status", resp.StatusCode, "attempt", attempt, "wait", wait)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		} else {
			t.logger.Warn("Retrying upstream request", "url", req.URL.Path, "error", err, "attempt", attempt, "wait", wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func retryable(resp *http.Response) bool {
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return true
	case resp.StatusCode == http.StatusTooManyRequests:
		return true
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return true
	}
	return false
}

// rateLimitReset is how long until the window in X-RateLimit-Reset (or Retry-After) opens.
func rateLimitReset(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	if s := resp.Header.Get("X-RateLimit-Reset"); s != "" {
		if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Until(time.Unix(unix, 0))
		}
	}
	return 0
}
