// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/topic-scout/internal/source"
	"github.com/pdiddy/topic-scout/pkg/types"
)

func init() {
	// Use a tiny base delay so tests finish quickly.
	RetryBaseDelay = 1 * time.Millisecond
}

// scriptedSearcher returns the scripted errors in order, then succeeds.
type scriptedSearcher struct {
	mu     sync.Mutex
	script []error
	calls  int
	batch  []types.RawResult
}

func (s *scriptedSearcher) Name() string         { return "scripted" }
func (s *scriptedSearcher) Kind() types.DataKind { return types.KindAffiliate }

func (s *scriptedSearcher) Search(context.Context, string) ([]types.RawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx < len(s.script) && s.script[idx] != nil {
		return nil, s.script[idx]
	}
	return s.batch, nil
}

func (s *scriptedSearcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testProviderConfig() types.ProviderConfig {
	return types.ProviderConfig{
		Name:          "scripted",
		RatePerMinute: 100000,
		Burst:         100,
		MaxRetries:    3,
		HTTPConfig:    types.HTTPConfig{Timeout: time.Second},
	}
}

func TestSearchImmediateSuccess(t *testing.T) {
	src := &scriptedSearcher{batch: []types.RawResult{{Name: "FitCo"}}}
	c := New(src, testProviderConfig(), nil, nil)

	results, err := c.Search(context.Background(), "home gym")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, src.Calls())
}

func TestSearchRetriesTransientThenSucceeds(t *testing.T) {
	src := &scriptedSearcher{
		script: []error{
			&source.StatusError{Provider: "scripted", StatusCode: http.StatusInternalServerError},
			&source.StatusError{Provider: "scripted", StatusCode: http.StatusTooManyRequests},
		},
		batch: []types.RawResult{{Name: "FitCo"}},
	}
	c := New(src, testProviderConfig(), nil, nil)

	results, err := c.Search(context.Background(), "home gym")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 3, src.Calls())
}

func TestSearchDoesNotRetryPermanentFailure(t *testing.T) {
	permErr := &source.StatusError{Provider: "scripted", StatusCode: http.StatusUnauthorized}
	src := &scriptedSearcher{script: []error{permErr, permErr, permErr, permErr}}
	c := New(src, testProviderConfig(), nil, nil)

	_, err := c.Search(context.Background(), "home gym")
	require.Error(t, err)
	var se *source.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, 1, src.Calls(), "4xx other than 429 must not be retried")
}

func TestSearchDoesNotRetryParseError(t *testing.T) {
	parseErr := &source.ParseError{Provider: "scripted", Err: errors.New("unexpected EOF")}
	src := &scriptedSearcher{script: []error{parseErr, parseErr}}
	c := New(src, testProviderConfig(), nil, nil)

	_, err := c.Search(context.Background(), "home gym")
	require.Error(t, err)
	assert.Equal(t, 1, src.Calls(), "malformed responses must not be retried")
}

func TestSearchExhaustsRetries(t *testing.T) {
	transient := &source.StatusError{Provider: "scripted", StatusCode: http.StatusBadGateway}
	src := &scriptedSearcher{script: []error{transient, transient, transient, transient, transient}}
	c := New(src, testProviderConfig(), nil, nil)

	_, err := c.Search(context.Background(), "home gym")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted")
	assert.Equal(t, 4, src.Calls(), "initial attempt plus MaxRetries")
}

func TestRetryAfterPrimesBucket(t *testing.T) {
	src := &scriptedSearcher{
		script: []error{&source.StatusError{
			Provider:   "scripted",
			StatusCode: http.StatusTooManyRequests,
			RetryAfter: 30 * time.Millisecond,
		}},
		batch: []types.RawResult{{Name: "FitCo"}},
	}
	c := New(src, testProviderConfig(), nil, nil)

	start := time.Now()
	_, err := c.Search(context.Background(), "home gym")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond,
		"second attempt must wait out the advertised Retry-After")
}

func TestSearchHonorsCancellation(t *testing.T) {
	transient := &source.StatusError{Provider: "scripted", StatusCode: http.StatusServiceUnavailable}
	src := &scriptedSearcher{script: []error{transient, transient, transient, transient}}

	cfg := testProviderConfig()
	ctx, cancel := context.WithCancel(context.Background())
	c := New(src, cfg, nil, nil)

	cancel()
	_, err := c.Search(ctx, "home gym")
	require.Error(t, err)
	assert.Equal(t, 0, src.Calls(), "no provider call after cancellation")
}

func TestTokenBucketThrottles(t *testing.T) {
	cfg := testProviderConfig()
	cfg.RatePerMinute = 60 * 50 // 50 requests/second
	cfg.Burst = 1
	src := &scriptedSearcher{batch: []types.RawResult{{Name: "FitCo"}}}
	c := New(src, cfg, nil, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Search(context.Background(), "home gym")
		require.NoError(t, err)
	}
	// Burst of 1 at 50 rps: the second and third calls each wait ~20ms.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestBackoffDelayGrows(t *testing.T) {
	for attempt := 0; attempt < 4; attempt++ {
		d := backoffDelay(attempt)
		base := time.Duration(1<<attempt) * RetryBaseDelay
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/4+time.Millisecond)
	}
}
