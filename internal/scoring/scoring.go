// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scoring computes relevance and priority scores for merged
// entities. Both scores are recomputed in full on every run so they
// always reflect the current merged state.
package scoring

import (
	"fmt"
	"math"

	"github.com/pdiddy/topic-scout/pkg/types"
)

// Normalization constants for the priority signals. Each signal maps onto
// a 0-100 scale before weighting.
const (
	// volumeScale divides monthly search volume; 100k+ searches cap at 100.
	volumeScale = 1000.0

	// costScale multiplies cost-per-click; $5+ CPC caps at 100.
	costScale = 20.0

	// trendCenter is the neutral trend value; the trend percentage is
	// added to it and the sum clamped to [0,100].
	trendCenter = 50.0
)

// Engine computes scores with a fixed weight configuration. Construct one
// per configuration; tests may run several in the same process.
type Engine struct {
	wVolume     float64
	wDifficulty float64
	wCost       float64
	wTrend      float64
}

// NewEngine validates cfg and returns an Engine. Zero weights fall back to
// the defaults. The weights are normalized by their sum, so effective
// weights always total 1.0.
func NewEngine(cfg types.ScoringConfig) (Engine, error) {
	if cfg == (types.ScoringConfig{}) {
		cfg = types.DefaultScoring()
	}
	if cfg.VolumeWeight < 0 || cfg.DifficultyWeight < 0 || cfg.CostWeight < 0 || cfg.TrendWeight < 0 {
		return Engine{}, fmt.Errorf("scoring weights must be non-negative")
	}
	sum := cfg.VolumeWeight + cfg.DifficultyWeight + cfg.CostWeight + cfg.TrendWeight
	if sum <= 0 {
		return Engine{}, fmt.Errorf("scoring weights must not all be zero")
	}
	return Engine{
		wVolume:     cfg.VolumeWeight / sum,
		wDifficulty: cfg.DifficultyWeight / sum,
		wCost:       cfg.CostWeight / sum,
		wTrend:      cfg.TrendWeight / sum,
	}, nil
}

// Relevance returns |matched| / |total| clipped to [0,1]. It is
// monotonically non-decreasing in the matched count: entities that surface
// under more independent sub-topic searches score higher.
func Relevance(matched, total int) float64 {
	if total <= 0 || matched <= 0 {
		return 0
	}
	r := float64(matched) / float64(total)
	return math.Min(r, 1.0)
}

// Priority returns the weighted composite of the normalized keyword
// signals, rounded to two decimals, in [0,100].
func (e Engine) Priority(m types.Metrics) float64 {
	volume := math.Min(float64(m.Volume)/volumeScale, 100)
	difficulty := clamp(100-m.Difficulty, 0, 100)
	cost := math.Min(m.CPC*costScale, 100)
	trend := clamp(trendCenter+m.TrendPct, 0, 100)

	score := e.wVolume*volume + e.wDifficulty*difficulty + e.wCost*cost + e.wTrend*trend
	return round2(clamp(score, 0, 100))
}

// Apply recomputes both scores for every entity in place. Relevance is
// measured against the topic's full sub-topic set; priority is computed
// for keyword-kind entities only.
func (e Engine) Apply(topic types.Topic, entities []types.MergedEntity) {
	total := len(topic.SubTopics)
	for i := range entities {
		entities[i].Relevance = Relevance(len(entities[i].SubTopics), total)
		if entities[i].Kind == types.KindKeyword {
			entities[i].Priority = e.Priority(entities[i].Metrics)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
