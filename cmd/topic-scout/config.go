// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/topic-scout/internal/secrets"
	"github.com/pdiddy/topic-scout/pkg/types"
)

// loadConfig materializes viper state into the typed configuration the
// pipeline constructors take. Defaults apply for everything unset.
func loadConfig() (types.Config, error) {
	viper.SetDefault("http.timeout", 15*time.Second)
	viper.SetDefault("http.user_agent", "topic-scout/"+version)
	viper.SetDefault("research.workers", 4)
	viper.SetDefault("research.store_path", "topic-scout.db")
	viper.SetDefault("cache.affiliate_ttl", 72*time.Hour)
	viper.SetDefault("cache.keyword_ttl", 6*time.Hour)
	viper.SetDefault("scoring.volume_weight", 0.4)
	viper.SetDefault("scoring.difficulty_weight", 0.3)
	viper.SetDefault("scoring.cost_weight", 0.3)
	viper.SetDefault("scoring.trend_weight", 0.3)

	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("parsing configuration: %w", err)
	}

	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.Name == "" {
			return types.Config{}, fmt.Errorf("provider %d: name is required", i)
		}
		if p.BaseURL == "" {
			return types.Config{}, fmt.Errorf("provider %q: base_url is required", p.Name)
		}
		switch p.Kind {
		case types.KindAffiliate, types.KindKeyword:
		default:
			return types.Config{}, fmt.Errorf("provider %q: kind must be %q or %q",
				p.Name, types.KindAffiliate, types.KindKeyword)
		}
		if p.Timeout <= 0 {
			p.Timeout = cfg.HTTP.Timeout
		}
		if p.UserAgent == "" {
			p.UserAgent = cfg.HTTP.UserAgent
		}
		if p.APIKey == "" {
			p.APIKey = secrets.APIKey(loadedSecrets, p.Name)
		}
	}
	return cfg, nil
}
