// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/topic-scout/pkg/types"
)

func TestDirectoryProviderSearch(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("query")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"programs": [
			{"name": "FitCo Affiliate", "url": "https://fitco.com/partners",
			 "description": "Fitness gear affiliate program.",
			 "network": "ShareALike", "commission_pct": 12, "cookie_days": 30},
			{"name": "", "url": "https://nameless.example"}
		]}`))
	}))
	defer ts.Close()

	p := &DirectoryProvider{
		Client: ts.Client(),
		Config: types.ProviderConfig{Name: "dir", BaseURL: ts.URL, APIKey: "sekrit"},
	}

	results, err := p.Search(context.Background(), "home gym")
	require.NoError(t, err)

	assert.Equal(t, "/programs", gotPath)
	assert.Equal(t, "home gym", gotQuery)
	assert.Equal(t, "Bearer sekrit", gotAuth)

	require.Len(t, results, 1, "nameless records are dropped")
	r := results[0]
	assert.Equal(t, "dir", r.Provider)
	assert.Equal(t, "home gym", r.SubTopic)
	assert.Equal(t, types.KindAffiliate, r.Kind)
	assert.Equal(t, "FitCo Affiliate", r.Name)
	assert.Equal(t, 12.0, r.Metrics.CommissionPct)
	assert.Equal(t, 30, r.Metrics.CookieDays)
	assert.Equal(t, "ShareALike", r.Metadata["network"])
	assert.False(t, r.FetchedAt.IsZero())
}

func TestKeywordStatsProviderSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/keywords", r.URL.Path)
		assert.Equal(t, "resistance bands", r.URL.Query().Get("q"))
		w.Write([]byte(`{"keywords": [
			{"keyword": "best resistance bands", "volume": 50000,
			 "difficulty": 35, "cpc": 2.5, "trend_pct": 15.5, "intent": "commercial"}
		]}`))
	}))
	defer ts.Close()

	p := &KeywordStatsProvider{
		Client: ts.Client(),
		Config: types.ProviderConfig{Name: "kw", BaseURL: ts.URL},
	}

	results, err := p.Search(context.Background(), "resistance bands")
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, types.KindKeyword, r.Kind)
	assert.Equal(t, "best resistance bands", r.Name)
	assert.Equal(t, 50000, r.Metrics.Volume)
	assert.Equal(t, 35.0, r.Metrics.Difficulty)
	assert.Equal(t, 2.5, r.Metrics.CPC)
	assert.Equal(t, 15.5, r.Metrics.TrendPct)
	assert.Equal(t, "commercial", r.Metadata["intent"])
}

func TestSearchEmptySubTopic(t *testing.T) {
	p := &DirectoryProvider{Client: http.DefaultClient, Config: types.ProviderConfig{Name: "dir"}}
	_, err := p.Search(context.Background(), "   ")
	assert.Error(t, err)
}

func TestStatusErrorFromResponse(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		retryAfter    string
		wantTransient bool
		wantWait      time.Duration
	}{
		{"rate limited with retry-after", http.StatusTooManyRequests, "7", true, 7 * time.Second},
		{"rate limited without header", http.StatusTooManyRequests, "", true, 0},
		{"server error", http.StatusBadGateway, "", true, 0},
		{"unauthorized", http.StatusUnauthorized, "", false, 0},
		{"not found", http.StatusNotFound, "", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			p := &DirectoryProvider{Client: ts.Client(), Config: types.ProviderConfig{Name: "dir", BaseURL: ts.URL}}
			_, err := p.Search(context.Background(), "home gym")
			require.Error(t, err)

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.wantTransient, IsTransient(err))

			wait, ok := RetryAfter(err)
			assert.Equal(t, tt.wantWait > 0, ok)
			assert.Equal(t, tt.wantWait, wait)
		})
	}
}

func TestMalformedResponseIsPermanent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"keywords": [`))
	}))
	defer ts.Close()

	p := &KeywordStatsProvider{Client: ts.Client(), Config: types.ProviderConfig{Name: "kw", BaseURL: ts.URL}}
	_, err := p.Search(context.Background(), "home gym")
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.False(t, IsTransient(err), "malformed responses must not be retried")
}

func TestTransportErrorIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("connection reset by peer")))
	assert.False(t, IsTransient(nil))
}
