// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit wraps a source adapter with token-bucket throttling,
// per-call timeout, and retry with exponential backoff and jitter.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/topic-scout/internal/metrics"
	"github.com/pdiddy/topic-scout/internal/source"
	"github.com/pdiddy/topic-scout/pkg/types"
)

// RetryBaseDelay is the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

const (
	defaultMaxRetries    = 3
	defaultRatePerMinute = 60
	defaultBurst         = 5
	defaultTimeout       = 15 * time.Second
)

// Client decorates a source.Searcher with rate limiting and retries. The
// token bucket is the only mutable state shared across concurrent workers;
// rate.Limiter is safe for concurrent use and the Retry-After gate is
// guarded by a mutex.
type Client struct {
	src        source.Searcher
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	logger     *slog.Logger
	metrics    *metrics.Manager

	mu        sync.Mutex
	notBefore time.Time // primed by a 429 Retry-After
}

// New builds a rate-limited client around src using cfg. A nil logger
// discards logs; a nil metrics manager records nothing.
func New(src source.Searcher, cfg types.ProviderConfig, logger *slog.Logger, m *metrics.Manager) *Client {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		src:        src,
		limiter:    rate.NewLimiter(rate.Limit(perMinute/60.0), burst),
		timeout:    timeout,
		maxRetries: retries,
		logger:     logger.With("provider", src.Name()),
		metrics:    m,
	}
}

// Name returns the wrapped provider's identifier.
func (c *Client) Name() string { return c.src.Name() }

// Kind returns the wrapped provider's data kind.
func (c *Client) Kind() types.DataKind { return c.src.Kind() }

// Search calls the wrapped adapter, blocking for a rate-limit token first.
// Transient failures (network error, 5xx, 429) are retried with
// exponential backoff and jitter up to the attempt cap; other failures are
// surfaced immediately. Every call is logged with latency and outcome.
func (c *Client) Search(ctx context.Context, subTopic string) ([]types.RawResult, error) {
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.waitTurn(ctx); err != nil {
			c.observe(metrics.OutcomeCanceled, start, attempt, err)
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		results, err := c.src.Search(callCtx, subTopic)
		cancel()

		if err == nil {
			outcome := metrics.OutcomeSuccess
			if attempt > 0 {
				outcome = metrics.OutcomeRetried
			}
			c.observe(outcome, start, attempt, nil)
			return results, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			c.observe(metrics.OutcomeCanceled, start, attempt, ctx.Err())
			return nil, ctx.Err()
		}

		if !source.IsTransient(err) {
			c.observe(metrics.OutcomePermanent, start, attempt, err)
			return nil, err
		}

		// A 429 with Retry-After primes the bucket for every caller.
		if wait, ok := source.RetryAfter(err); ok {
			c.primeNotBefore(wait)
		}

		if attempt == c.maxRetries {
			break
		}

		backoff := backoffDelay(attempt)
		c.logger.Warn("transient provider failure, retrying",
			"sub_topic", subTopic,
			"attempt", attempt+1,
			"max_attempts", c.maxRetries,
			"backoff", backoff,
			"error", err)

		select {
		case <-ctx.Done():
			c.observe(metrics.OutcomeCanceled, start, attempt, ctx.Err())
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	c.observe(metrics.OutcomeExhausted, start, c.maxRetries, lastErr)
	return nil, fmt.Errorf("%s: retries exhausted after %d attempts: %w",
		c.src.Name(), c.maxRetries+1, lastErr)
}

// waitTurn blocks until a token is available and any Retry-After window
// advertised by the provider has elapsed.
func (c *Client) waitTurn(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Until(c.notBefore)
	c.mu.Unlock()
	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return c.limiter.Wait(ctx)
}

// primeNotBefore delays all subsequent calls by at least wait.
func (c *Client) primeNotBefore(wait time.Duration) {
	until := time.Now().Add(wait)
	c.mu.Lock()
	if until.After(c.notBefore) {
		c.notBefore = until
	}
	c.mu.Unlock()
}

func (c *Client) observe(outcome string, start time.Time, attempts int, err error) {
	elapsed := time.Since(start)
	c.metrics.ObserveCall(c.src.Name(), outcome, elapsed)
	attrs := []any{
		"outcome", outcome,
		"latency", elapsed,
		"attempts", attempts + 1,
	}
	if err != nil {
		attrs = append(attrs, "error", err)
		c.logger.Warn("provider call finished", attrs...)
		return
	}
	c.logger.Debug("provider call finished", attrs...)
}

// backoffDelay returns the exponential backoff for attempt with up to 25%
// jitter added, so concurrent workers do not retry in lockstep.
func backoffDelay(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	jitter := time.Duration(rand.Int63n(int64(base)/4 + 1))
	return base + jitter
}
