// CLAUDE:SUMMARY Rate-limited HTTP JSON fetcher with classified errors and exponential backoff.
// Package fetch retrieves static JSON documents from the source site.
//
// Server errors, timeouts and network failures are retried with
// exponential backoff; a 404 or other client error fails immediately.
// Requests are spaced by a configurable rate-limit delay out of
// politeness to the source server.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Config configures the client.
type Config struct {
	Timeout        time.Duration // HTTP timeout. Default: 30s.
	RetryAttempts  int           // Retries after the first attempt. Default: 3.
	RetryDelay     time.Duration // Backoff base. Default: 2s.
	RateLimitDelay time.Duration // Minimum spacing between requests. Zero or negative disables.
	MaxBytes       int64         // Max response body size. Default: 10MB.
	UserAgent      string
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.RateLimitDelay < 0 {
		c.RateLimitDelay = 0
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024 // 10MB
	}
	if c.UserAgent == "" {
		c.UserAgent = "factharvest/1.0"
	}
}

// Client fetches JSON documents sequentially. Not safe for concurrent
// use; the sequential contract is what enforces the rate limit.
type Client struct {
	http   *http.Client
	config Config
	log    *slog.Logger

	lastRequest time.Time
	sleep       func(context.Context, time.Duration) error
}

func New(cfg Config, log *slog.Logger) *Client {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		log:    log,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoff is the delay before retry number attempt (0-indexed).
func (c *Client) backoff(attempt int) time.Duration {
	return c.config.RetryDelay * (1 << attempt)
}

func (c *Client) respectRateLimit(ctx context.Context) error {
	if c.config.RateLimitDelay == 0 || c.lastRequest.IsZero() {
		c.lastRequest = time.Now()
		return nil
	}
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.config.RateLimitDelay {
		if err := c.sleep(ctx, c.config.RateLimitDelay-elapsed); err != nil {
			return err
		}
	}
	c.lastRequest = time.Now()
	return nil
}

// Fetch retrieves url with retry. The returned error wraps one of the
// package sentinels when the failure was classified from a response.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if err := c.respectRateLimit(ctx); err != nil {
			return nil, err
		}
		body, retryable, err := c.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return nil, err
		}
		if attempt < c.config.RetryAttempts {
			delay := c.backoff(attempt)
			c.log.Warn("fetch failed, retrying",
				"url", url, "attempt", attempt+1, "delay", delay, "error", err)
			if serr := c.sleep(ctx, delay); serr != nil {
				return nil, serr
			}
		}
	}
	return nil, fmt.Errorf("fetch: %s: retries exhausted: %w", url, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json,text/xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures are both retryable.
		return nil, true, fmt.Errorf("fetch: %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode == http.StatusTooManyRequests:
		// The server asked us to back off; retry after the backoff delay.
		return nil, true, fmt.Errorf("fetch: %s: http 429", url)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: %s: http %d", ErrServerError, url, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("%w: %s: http %d", ErrClientError, url, resp.StatusCode)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes))
	if err != nil {
		return nil, true, fmt.Errorf("fetch: read body: %w", err)
	}
	return body, false, nil
}

// FetchPageData retrieves a Gatsby page-data document and verifies it
// has the expected shape before handing it on.
func (c *Client) FetchPageData(ctx context.Context, url string) (json.RawMessage, error) {
	body, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := ValidatePageData(body); err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	return body, nil
}

// ValidatePageData checks for result.data carrying either a country
// object or a fields collection. Anything else is an invalid payload.
func ValidatePageData(body []byte) error {
	var probe struct {
		Result *struct {
			Data *struct {
				Country json.RawMessage `json:"country"`
				Fields  json.RawMessage `json:"fields"`
			} `json:"data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if probe.Result == nil || probe.Result.Data == nil {
		return fmt.Errorf("%w: missing result.data", ErrInvalidPayload)
	}
	if len(probe.Result.Data.Country) == 0 && len(probe.Result.Data.Fields) == 0 {
		return fmt.Errorf("%w: result.data has neither country nor fields", ErrInvalidPayload)
	}
	return nil
}
