// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data model shared across pipeline stages.
package types

import "time"

// DataKind categorizes external discovery data. Each kind has its own
// providers and its own cache TTL policy.
type DataKind string

const (
	// KindAffiliate covers affiliate-program metadata (slow-moving).
	KindAffiliate DataKind = "affiliate"

	// KindKeyword covers keyword volume/difficulty metrics (fast-moving).
	KindKeyword DataKind = "keyword"
)

// Kinds lists all data kinds in a fixed order.
func Kinds() []DataKind {
	return []DataKind{KindAffiliate, KindKeyword}
}

// Topic is a user research topic and its sub-topic decomposition.
// The title is always a member of SubTopics. A topic is immutable while
// a research run is in flight; edits happen only between runs.
type Topic struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	SubTopics []string  `json:"sub_topics" yaml:"sub_topics"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Metrics holds the numeric signals a provider reports for an entity.
// A zero value means the provider did not report that signal.
type Metrics struct {
	// Keyword signals.
	Volume     int     `json:"volume,omitempty" yaml:"volume,omitempty"`
	Difficulty float64 `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	CPC        float64 `json:"cpc,omitempty" yaml:"cpc,omitempty"`
	TrendPct   float64 `json:"trend_pct,omitempty" yaml:"trend_pct,omitempty"`

	// Affiliate-program signals.
	CommissionPct float64 `json:"commission_pct,omitempty" yaml:"commission_pct,omitempty"`
	CookieDays    int     `json:"cookie_days,omitempty" yaml:"cookie_days,omitempty"`
}

// RawResult is one record returned by a provider for one (sub-topic,
// data-kind) query. Raw results are never persisted standalone; the merge
// stage consumes them immediately.
type RawResult struct {
	Provider    string            `json:"provider"`
	SubTopic    string            `json:"sub_topic"`
	Kind        DataKind          `json:"kind"`
	Name        string            `json:"name"`
	URL         string            `json:"url,omitempty"`
	Description string            `json:"description,omitempty"`
	Metrics     Metrics           `json:"metrics"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	FetchedAt   time.Time         `json:"fetched_at"`
}

// MetricSnapshot preserves the raw per-sub-topic metrics that fed a merged
// entity, for audit and debugging.
type MetricSnapshot struct {
	SubTopic  string    `json:"sub_topic" yaml:"sub_topic"`
	Provider  string    `json:"provider" yaml:"provider"`
	Metrics   Metrics   `json:"metrics" yaml:"metrics"`
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// MergedEntity is the resolved, deduplicated unit of research output: one
// real-world affiliate program or keyword, with the union of every
// sub-topic it was found under.
type MergedEntity struct {
	Key         string   `json:"key" yaml:"key"`
	TopicID     string   `json:"topic_id" yaml:"topic_id"`
	Kind        DataKind `json:"kind" yaml:"kind"`
	Name        string   `json:"name" yaml:"name"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`

	// SubTopics is the sorted set of sub-topics this entity surfaced under.
	// It only grows within a topic's lifetime; a run unions, never shrinks.
	SubTopics []string `json:"sub_topics" yaml:"sub_topics"`

	// Alternates records field values discarded during merge, keyed by
	// field name. Conflicting data is kept, never silently dropped.
	Alternates map[string][]string `json:"alternates,omitempty" yaml:"alternates,omitempty"`

	Snapshots []MetricSnapshot `json:"snapshots,omitempty" yaml:"snapshots,omitempty"`
	Metrics   Metrics          `json:"metrics" yaml:"metrics"`

	// Relevance is |matched sub-topics| / |topic sub-topics|, in [0,1].
	Relevance float64 `json:"relevance" yaml:"relevance"`

	// Priority is the weighted composite signal score in [0,100],
	// computed for keyword-kind entities.
	Priority float64 `json:"priority" yaml:"priority"`

	FirstSeen time.Time `json:"first_seen" yaml:"first_seen"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// SubTopicFailure reports one sub-topic that produced no results because
// every provider query for it failed.
type SubTopicFailure struct {
	Kind     DataKind `json:"kind"`
	SubTopic string   `json:"sub_topic"`
	Err      string   `json:"error"`
}

// RunReport is the outcome of one research run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	TopicID    string    `json:"topic_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Entities []MergedEntity `json:"entities"`

	// PartialFailures lists sub-topics that failed without aborting the
	// run. The caller surfaces these ("3 of 5 sub-topics returned results").
	PartialFailures []SubTopicFailure `json:"partial_failures,omitempty"`

	// DupsFolded counts raw results folded into an existing entity.
	DupsFolded int `json:"dups_folded"`
}

// FailedSubTopics returns the distinct sub-topics with at least one failure.
func (r RunReport) FailedSubTopics() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range r.PartialFailures {
		if !seen[f.SubTopic] {
			seen[f.SubTopic] = true
			out = append(out, f.SubTopic)
		}
	}
	return out
}
