// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus instrumentation for the research
// pipeline. All collectors register on an injectable Registerer so tests
// can run isolated registries in the same process.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call outcomes recorded against providerCalls.
const (
	OutcomeSuccess   = "success"
	OutcomeRetried   = "retried_success"
	OutcomeExhausted = "exhausted"
	OutcomePermanent = "permanent_failure"
	OutcomeCanceled  = "canceled"
)

// Manager holds all pipeline collectors. A nil *Manager is a valid no-op.
type Manager struct {
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	entitiesMerged  prometheus.Counter
	runsCompleted   prometheus.Counter
}

// New registers and returns the pipeline collectors.
func New(reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)
	return &Manager{
		providerCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "topic_scout",
			Name:      "provider_calls_total",
			Help:      "Provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		providerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "topic_scout",
			Name:      "provider_call_seconds",
			Help:      "Provider call latency in seconds, including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "topic_scout",
			Name:      "cache_hits_total",
			Help:      "Cache hits by provider.",
		}, []string{"provider"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "topic_scout",
			Name:      "cache_misses_total",
			Help:      "Cache misses (including expiries) by provider.",
		}, []string{"provider"}),
		entitiesMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "topic_scout",
			Name:      "entities_merged_total",
			Help:      "Merged entities produced across research runs.",
		}),
		runsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "topic_scout",
			Name:      "runs_completed_total",
			Help:      "Research runs that reached persistence.",
		}),
	}
}

// ObserveCall records one provider call with its outcome and total latency.
func (m *Manager) ObserveCall(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// CacheHit records a cache hit for provider.
func (m *Manager) CacheHit(provider string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(provider).Inc()
}

// CacheMiss records a cache miss or expiry for provider.
func (m *Manager) CacheMiss(provider string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(provider).Inc()
}

// EntitiesMerged adds n to the merged-entity counter.
func (m *Manager) EntitiesMerged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entitiesMerged.Add(float64(n))
}

// RunCompleted records one completed research run.
func (m *Manager) RunCompleted() {
	if m == nil {
		return
	}
	m.runsCompleted.Inc()
}
