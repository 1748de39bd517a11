// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source defines the provider adapter interface and the concrete
// HTTP adapters for external discovery APIs. Each adapter owns request
// shaping, authentication, and raw-response parsing for one provider.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pdiddy/topic-scout/pkg/types"
)

// Searcher queries one external discovery provider for one sub-topic.
// Adapters and the decorators that wrap them (rate limiting, caching)
// all implement this interface per the Strategy pattern.
type Searcher interface {
	Name() string
	Kind() types.DataKind
	Search(ctx context.Context, subTopic string) ([]types.RawResult, error)
}

// StatusError reports a non-2xx provider response. RetryAfter carries the
// provider-advertised wait from a 429, when present.
type StatusError struct {
	Provider   string
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Provider, e.StatusCode)
}

// IsTransient reports whether err is worth retrying: network errors,
// HTTP 5xx, and HTTP 429. Other 4xx and malformed responses are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return false
	}
	// Transport-level errors (timeouts, resets) are transient.
	return true
}

// RetryAfter extracts the provider-advertised wait from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter, true
	}
	return 0, false
}

// ParseError reports a malformed provider response. Never retried.
type ParseError struct {
	Provider string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s response: %v", e.Provider, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// statusError builds a StatusError from a response, reading Retry-After
// on 429 (delta-seconds form only; HTTP-date is rare on these APIs).
func statusError(provider string, resp *http.Response) *StatusError {
	se := &StatusError{Provider: provider, StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusTooManyRequests {
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				se.RetryAfter = time.Duration(secs) * time.Second
			}
		}
	}
	return se
}
