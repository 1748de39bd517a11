// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/topic-scout/pkg/types"
)

// KeywordStatsProvider queries a keyword-metrics API for volume,
// difficulty, cost, and trend figures: GET {base}/keywords?q=...
type KeywordStatsProvider struct {
	Client *http.Client
	Config types.ProviderConfig
}

// Name returns the provider identifier used in logs and cache keys.
func (p *KeywordStatsProvider) Name() string { return p.Config.Name }

// Kind returns the data kind this provider serves.
func (p *KeywordStatsProvider) Kind() types.DataKind { return types.KindKeyword }

// keywordResponse mirrors the metrics API's wire format.
type keywordResponse struct {
	Keywords []struct {
		Keyword    string  `json:"keyword"`
		Volume     int     `json:"volume"`
		Difficulty float64 `json:"difficulty"`
		CPC        float64 `json:"cpc"`
		TrendPct   float64 `json:"trend_pct"`
		Intent     string  `json:"intent"`
	} `json:"keywords"`
}

// Search queries the metrics API for keywords related to subTopic.
func (p *KeywordStatsProvider) Search(ctx context.Context, subTopic string) ([]types.RawResult, error) {
	subTopic = strings.TrimSpace(subTopic)
	if subTopic == "" {
		return nil, fmt.Errorf("empty sub-topic")
	}

	limit := p.Config.MaxResults
	if limit <= 0 {
		limit = 25
	}

	params := url.Values{
		"q":     {subTopic},
		"limit": {fmt.Sprintf("%d", limit)},
	}
	if p.Config.APIKey != "" {
		params.Set("api_key", p.Config.APIKey)
	}
	reqURL := strings.TrimSuffix(p.Config.BaseURL, "/") + "/keywords?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.Config.UserAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(p.Name(), resp)
	}

	var kr keywordResponse
	if err := json.NewDecoder(resp.Body).Decode(&kr); err != nil {
		return nil, &ParseError{Provider: p.Name(), Err: err}
	}

	now := time.Now().UTC()
	results := make([]types.RawResult, 0, len(kr.Keywords))
	for _, kw := range kr.Keywords {
		if kw.Keyword == "" {
			continue
		}
		r := types.RawResult{
			Provider: p.Name(),
			SubTopic: subTopic,
			Kind:     types.KindKeyword,
			Name:     kw.Keyword,
			Metrics: types.Metrics{
				Volume:     kw.Volume,
				Difficulty: kw.Difficulty,
				CPC:        kw.CPC,
				TrendPct:   kw.TrendPct,
			},
			FetchedAt: now,
		}
		if kw.Intent != "" {
			r.Metadata = map[string]string{"intent": kw.Intent}
		}
		results = append(results, r)
	}
	return results, nil
}
