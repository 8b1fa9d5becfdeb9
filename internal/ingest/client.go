// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/papermap/internal/logging"
)

// maxResponseBytes caps upstream response bodies. The largest
// legitimate payload is a full efetch batch, well under this.
const maxResponseBytes = 32 << 20

// Client is the rate-limited, circuit-broken HTTP client shared by
// the upstream fetchers. Both PubMed and arXiv throttle abusive
// clients; the limiter keeps us polite and the breaker stops
// hammering an upstream that is already failing.
type Client struct {
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
}

// NewClient creates a Client allowing requestsPerSecond against the
// upstream APIs.
func NewClient(requestsPerSecond float64) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "upstream-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Get fetches the URL and returns the response body. Non-2xx
// statuses are errors and count against the circuit breaker.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	return c.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return body, nil
	})
}
