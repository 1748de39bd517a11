// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge resolves raw results from independent sub-topic searches
// into deduplicated entities. The stage is pure: the same raw-result
// multiset always resolves to the same entity set, independent of
// completion order, so it can be tested in isolation and run after any
// fan-out interleaving.
package merge

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/topic-scout/pkg/types"
)

// Key derives the stable entity key for a raw result. The key is scoped
// by data kind: a program and a keyword are distinct real-world entities
// even when their normalized names coincide, so they must never share a
// key. Within a kind, a canonical URL/domain takes precedence over the
// name, since two providers describing the same program agree on its
// domain more reliably than on its display name. Keywords carry no URL
// and key on the normalized keyword text. Returns "" when neither part
// is derivable.
func Key(r types.RawResult) string {
	if d := canonicalURL(r.URL); d != "" {
		return string(r.Kind) + ":url:" + d
	}
	if n := Normalize(r.Name); n != "" {
		return string(r.Kind) + ":name:" + n
	}
	return ""
}

// Normalize lower-cases s, strips punctuation, and collapses whitespace.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// canonicalURL reduces a URL to lowercase host (www-stripped) plus path
// with the trailing slash trimmed. Returns "" for unparseable input.
func canonicalURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(strings.ToLower(u.Path), "/")
	return host + path
}

// Resolve merges every raw result across all sub-topics into entities
// keyed by Key. Input order is fixed by the topic's sub-topic order and
// each batch's slice order, so the output never depends on map iteration
// or fan-out completion order. Entities are returned sorted by key.
// The second return value counts raw results folded into an existing
// entity (duplicates removed).
func Resolve(topic types.Topic, bySubTopic map[string][]types.RawResult) ([]types.MergedEntity, int) {
	byKey := make(map[string]*types.MergedEntity)
	var order []string
	folded := 0

	for _, st := range topic.SubTopics {
		for _, raw := range bySubTopic[st] {
			key := Key(raw)
			if key == "" {
				continue
			}
			ent, ok := byKey[key]
			if !ok {
				ent = &types.MergedEntity{
					Key:       key,
					TopicID:   topic.ID,
					Kind:      raw.Kind,
					FirstSeen: raw.FetchedAt,
				}
				byKey[key] = ent
				order = append(order, key)
			} else {
				folded++
			}
			absorb(ent, raw)
		}
	}

	out := make([]types.MergedEntity, 0, len(order))
	for _, key := range order {
		ent := byKey[key]
		sort.Strings(ent.SubTopics)
		out = append(out, *ent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, folded
}

// absorb folds one raw result into ent: union the sub-topic set, keep a
// metric snapshot, and merge each display field preferring completeness.
func absorb(ent *types.MergedEntity, raw types.RawResult) {
	ent.SubTopics = addToSet(ent.SubTopics, raw.SubTopic)
	upsertSnapshot(ent, types.MetricSnapshot{
		SubTopic:  raw.SubTopic,
		Provider:  raw.Provider,
		Metrics:   raw.Metrics,
		FetchedAt: raw.FetchedAt,
	})
	if raw.FetchedAt.After(ent.UpdatedAt) {
		ent.UpdatedAt = raw.FetchedAt
	}
	if !raw.FetchedAt.IsZero() && (ent.FirstSeen.IsZero() || raw.FetchedAt.Before(ent.FirstSeen)) {
		ent.FirstSeen = raw.FetchedAt
	}

	mergeField(&ent.Name, raw.Name, "name", ent)
	mergeField(&ent.URL, raw.URL, "url", ent)
	mergeField(&ent.Description, raw.Description, "description", ent)
	mergeMetrics(&ent.Metrics, raw.Metrics, ent)
}

// Combine re-merges a freshly computed entity with its previously
// persisted record sharing the same key. Field completeness rules match
// absorb; the sub-topic set is unioned so it never shrinks across runs.
// prev's values count as earliest-seen, so on equal completeness the
// stored value wins.
func Combine(prev, next types.MergedEntity) types.MergedEntity {
	out := prev
	for _, st := range next.SubTopics {
		out.SubTopics = addToSet(out.SubTopics, st)
	}
	sort.Strings(out.SubTopics)

	for _, snap := range next.Snapshots {
		upsertSnapshot(&out, snap)
	}
	if next.UpdatedAt.After(out.UpdatedAt) {
		out.UpdatedAt = next.UpdatedAt
	}
	if !next.FirstSeen.IsZero() && (out.FirstSeen.IsZero() || next.FirstSeen.Before(out.FirstSeen)) {
		out.FirstSeen = next.FirstSeen
	}

	mergeField(&out.Name, next.Name, "name", &out)
	mergeField(&out.URL, next.URL, "url", &out)
	mergeField(&out.Description, next.Description, "description", &out)
	mergeMetrics(&out.Metrics, next.Metrics, &out)
	for field, alts := range next.Alternates {
		for _, alt := range alts {
			recordAlternate(&out, field, alt)
		}
	}

	// Scores always reflect the current merged state; the scoring stage
	// recomputes them after Combine.
	out.Relevance = 0
	out.Priority = 0
	return out
}

// mergeField applies the completeness rule to one string field: prefer the
// non-empty value; when both are non-empty and differ, the longer wins and
// the shorter is recorded as an alternate. On equal length the
// earliest-seen value wins, keeping the merge deterministic.
func mergeField(dst *string, src, field string, ent *types.MergedEntity) {
	src = strings.TrimSpace(src)
	switch {
	case src == "" || src == *dst:
		return
	case *dst == "":
		*dst = src
	case len(src) > len(*dst):
		recordAlternate(ent, field, *dst)
		*dst = src
	default:
		recordAlternate(ent, field, src)
	}
}

// mergeMetrics applies the completeness rule to numeric signals: a
// reported (non-zero) figure beats an absent one; when both are reported
// and differ, the larger magnitude wins and the loser is recorded.
func mergeMetrics(dst *types.Metrics, src types.Metrics, ent *types.MergedEntity) {
	mergeInt(&dst.Volume, src.Volume, "volume", ent)
	mergeFloat(&dst.Difficulty, src.Difficulty, "difficulty", ent)
	mergeFloat(&dst.CPC, src.CPC, "cpc", ent)
	mergeFloat(&dst.TrendPct, src.TrendPct, "trend_pct", ent)
	mergeFloat(&dst.CommissionPct, src.CommissionPct, "commission_pct", ent)
	mergeInt(&dst.CookieDays, src.CookieDays, "cookie_days", ent)
}

func mergeInt(dst *int, src int, field string, ent *types.MergedEntity) {
	switch {
	case src == 0 || src == *dst:
	case *dst == 0:
		*dst = src
	case abs(src) > abs(*dst):
		recordAlternate(ent, field, fmt.Sprintf("%d", *dst))
		*dst = src
	default:
		recordAlternate(ent, field, fmt.Sprintf("%d", src))
	}
}

func mergeFloat(dst *float64, src float64, field string, ent *types.MergedEntity) {
	switch {
	case src == 0 || src == *dst:
	case *dst == 0:
		*dst = src
	case absf(src) > absf(*dst):
		recordAlternate(ent, field, fmt.Sprintf("%g", *dst))
		*dst = src
	default:
		recordAlternate(ent, field, fmt.Sprintf("%g", src))
	}
}

// upsertSnapshot keeps one audit snapshot per (sub-topic, provider) pair,
// newest fetch winning, so repeated runs refresh rather than accumulate.
func upsertSnapshot(ent *types.MergedEntity, snap types.MetricSnapshot) {
	for i, existing := range ent.Snapshots {
		if existing.SubTopic == snap.SubTopic && existing.Provider == snap.Provider {
			if !snap.FetchedAt.Before(existing.FetchedAt) {
				ent.Snapshots[i] = snap
			}
			return
		}
	}
	ent.Snapshots = append(ent.Snapshots, snap)
}

// recordAlternate keeps a discarded conflicting value; data is never
// silently dropped during merge.
func recordAlternate(ent *types.MergedEntity, field, value string) {
	if value == "" {
		return
	}
	if ent.Alternates == nil {
		ent.Alternates = make(map[string][]string)
	}
	for _, existing := range ent.Alternates[field] {
		if existing == value {
			return
		}
	}
	ent.Alternates[field] = append(ent.Alternates[field], value)
}

func addToSet(set []string, s string) []string {
	for _, v := range set {
		if v == s {
			return set
		}
	}
	return append(set, s)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
