// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "topic-scout/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ProviderConfig holds settings for one external discovery provider.
type ProviderConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Name identifies the provider in logs, cache keys, and metrics.
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Kind is the data kind this provider serves: affiliate or keyword.
	Kind DataKind `json:"kind" yaml:"kind" mapstructure:"kind"`

	// BaseURL is the provider's API endpoint.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// APIKey authenticates requests; usually loaded from .secrets/.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// RatePerMinute is the token-bucket refill rate (default 60).
	RatePerMinute float64 `json:"rate_per_minute" yaml:"rate_per_minute" mapstructure:"rate_per_minute"`

	// Burst is the token-bucket capacity (default 5).
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst"`

	// MaxRetries caps retry attempts for transient failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// MaxResults caps the number of results requested per query (default 25).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// CacheConfig holds per-data-kind TTLs for the response cache.
type CacheConfig struct {
	// AffiliateTTL applies to slow-moving program metadata (default 72h).
	AffiliateTTL time.Duration `json:"affiliate_ttl" yaml:"affiliate_ttl" mapstructure:"affiliate_ttl"`

	// KeywordTTL applies to volatile keyword metrics (default 6h).
	KeywordTTL time.Duration `json:"keyword_ttl" yaml:"keyword_ttl" mapstructure:"keyword_ttl"`
}

// TTLFor returns the TTL for a data kind, falling back to defaults.
func (c CacheConfig) TTLFor(kind DataKind) time.Duration {
	switch kind {
	case KindKeyword:
		if c.KeywordTTL > 0 {
			return c.KeywordTTL
		}
		return 6 * time.Hour
	default:
		if c.AffiliateTTL > 0 {
			return c.AffiliateTTL
		}
		return 72 * time.Hour
	}
}

// ScoringConfig holds the priority-score signal weights. Weights are
// normalized by their sum at engine construction, so operators may retune
// individual weights without keeping the total at exactly 1.0.
type ScoringConfig struct {
	VolumeWeight     float64 `json:"volume_weight" yaml:"volume_weight" mapstructure:"volume_weight"`
	DifficultyWeight float64 `json:"difficulty_weight" yaml:"difficulty_weight" mapstructure:"difficulty_weight"`
	CostWeight       float64 `json:"cost_weight" yaml:"cost_weight" mapstructure:"cost_weight"`
	TrendWeight      float64 `json:"trend_weight" yaml:"trend_weight" mapstructure:"trend_weight"`
}

// DefaultScoring returns the default signal weights.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		VolumeWeight:     0.4,
		DifficultyWeight: 0.3,
		CostWeight:       0.3,
		TrendWeight:      0.3,
	}
}

// ResearchConfig holds settings for the research run orchestrator.
type ResearchConfig struct {
	// Workers bounds fan-out concurrency per data kind (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// StorePath is the SQLite database path (default "topic-scout.db").
	StorePath string `json:"store_path" yaml:"store_path" mapstructure:"store_path"`
}

// Config groups all stage configurations.
type Config struct {
	HTTP      HTTPConfig       `json:"http" yaml:"http" mapstructure:"http"`
	Research  ResearchConfig   `json:"research" yaml:"research" mapstructure:"research"`
	Cache     CacheConfig      `json:"cache" yaml:"cache" mapstructure:"cache"`
	Scoring   ScoringConfig    `json:"scoring" yaml:"scoring" mapstructure:"scoring"`
	Providers []ProviderConfig `json:"providers" yaml:"providers" mapstructure:"providers"`
}
