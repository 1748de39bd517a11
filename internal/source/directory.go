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

// DirectoryProvider queries an affiliate-program directory API. The API
// speaks JSON: GET {base}/programs?query=...&limit=... with a bearer key.
type DirectoryProvider struct {
	Client *http.Client
	Config types.ProviderConfig
}

// Name returns the provider identifier used in logs and cache keys.
func (p *DirectoryProvider) Name() string { return p.Config.Name }

// Kind returns the data kind this provider serves.
func (p *DirectoryProvider) Kind() types.DataKind { return types.KindAffiliate }

// directoryResponse mirrors the directory API's wire format.
type directoryResponse struct {
	Programs []struct {
		Name          string  `json:"name"`
		URL           string  `json:"url"`
		Description   string  `json:"description"`
		Network       string  `json:"network"`
		Category      string  `json:"category"`
		CommissionPct float64 `json:"commission_pct"`
		CookieDays    int     `json:"cookie_days"`
	} `json:"programs"`
}

// Search queries the directory for programs matching subTopic.
func (p *DirectoryProvider) Search(ctx context.Context, subTopic string) ([]types.RawResult, error) {
	subTopic = strings.TrimSpace(subTopic)
	if subTopic == "" {
		return nil, fmt.Errorf("empty sub-topic")
	}

	limit := p.Config.MaxResults
	if limit <= 0 {
		limit = 25
	}

	params := url.Values{
		"query": {subTopic},
		"limit": {fmt.Sprintf("%d", limit)},
	}
	reqURL := strings.TrimSuffix(p.Config.BaseURL, "/") + "/programs?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.Config.UserAgent)
	if p.Config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.Config.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(p.Name(), resp)
	}

	var dr directoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, &ParseError{Provider: p.Name(), Err: err}
	}

	now := time.Now().UTC()
	results := make([]types.RawResult, 0, len(dr.Programs))
	for _, prog := range dr.Programs {
		if prog.Name == "" {
			continue
		}
		r := types.RawResult{
			Provider:    p.Name(),
			SubTopic:    subTopic,
			Kind:        types.KindAffiliate,
			Name:        prog.Name,
			URL:         prog.URL,
			Description: prog.Description,
			Metrics: types.Metrics{
				CommissionPct: prog.CommissionPct,
				CookieDays:    prog.CookieDays,
			},
			FetchedAt: now,
		}
		if prog.Network != "" || prog.Category != "" {
			r.Metadata = make(map[string]string, 2)
			if prog.Network != "" {
				r.Metadata["network"] = prog.Network
			}
			if prog.Category != "" {
				r.Metadata["category"] = prog.Category
			}
		}
		results = append(results, r)
	}
	return results, nil
}
