// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/topic-scout/internal/scoring"
	"github.com/pdiddy/topic-scout/internal/source"
	"github.com/pdiddy/topic-scout/internal/store"
	"github.com/pdiddy/topic-scout/pkg/types"
)

// fakeSearcher serves canned batches per sub-topic; sub-topics listed in
// failOn always error.
type fakeSearcher struct {
	name    string
	kind    types.DataKind
	batches map[string][]types.RawResult
	failOn  map[string]error
}

func (f *fakeSearcher) Name() string         { return f.name }
func (f *fakeSearcher) Kind() types.DataKind { return f.kind }

func (f *fakeSearcher) Search(_ context.Context, subTopic string) ([]types.RawResult, error) {
	if err, ok := f.failOn[subTopic]; ok {
		return nil, err
	}
	return f.batches[subTopic], nil
}

func newTestRunner(t *testing.T, searchers ...source.Searcher) (*Runner, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine, err := scoring.NewEngine(types.DefaultScoring())
	require.NoError(t, err)

	runner := NewRunner(st, searchers, engine, types.ResearchConfig{Workers: 2}, nil, nil)
	return runner, st
}

func affiliateRaw(subTopic, name, url, desc string) types.RawResult {
	return types.RawResult{
		Provider:    "dir",
		SubTopic:    subTopic,
		Kind:        types.KindAffiliate,
		Name:        name,
		URL:         url,
		Description: desc,
		FetchedAt:   time.Now().UTC(),
	}
}

// TestRunMergesAcrossSubTopics is the canonical end-to-end scenario:
// "FitCo Affiliate" under two of three sub-topics, "BandPro" under one.
func TestRunMergesAcrossSubTopics(t *testing.T) {
	shortDesc := "Fitness gear program."
	longDesc := "Fitness gear program with 12% commission and a 30-day cookie."

	dir := &fakeSearcher{
		name: "dir", kind: types.KindAffiliate,
		batches: map[string][]types.RawResult{
			"home gym":             {affiliateRaw("home gym", "FitCo Affiliate", "https://fitco.com/partners", shortDesc)},
			"resistance bands":     {affiliateRaw("resistance bands", "BandPro", "https://bandpro.io", "")},
			"adjustable dumbbells": {affiliateRaw("adjustable dumbbells", "FitCo Affiliate", "https://www.fitco.com/partners/", longDesc)},
		},
	}
	runner, st := newTestRunner(t, dir)
	ctx := context.Background()

	topic, err := st.CreateTopic(ctx, "home gym", []string{"resistance bands", "adjustable dumbbells"})
	require.NoError(t, err)

	report, err := runner.Run(ctx, topic.ID, Options{}, io.Discard)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Empty(t, report.PartialFailures)
	assert.Equal(t, 1, report.DupsFolded)
	require.Len(t, report.Entities, 2)

	// Highest relevance first.
	fitco, bandpro := report.Entities[0], report.Entities[1]
	assert.Equal(t, "FitCo Affiliate", fitco.Name)
	assert.Len(t, fitco.SubTopics, 2)
	assert.InDelta(t, 2.0/3.0, fitco.Relevance, 1e-9)
	assert.Equal(t, longDesc, fitco.Description, "the longer description wins")

	assert.Equal(t, "BandPro", bandpro.Name)
	assert.Len(t, bandpro.SubTopics, 1)
	assert.InDelta(t, 1.0/3.0, bandpro.Relevance, 1e-9)
}

// TestRunPartialFailureIsolation: one sub-topic always errors; the others
// are still merged, scored, and persisted, and the failure is reported.
func TestRunPartialFailureIsolation(t *testing.T) {
	dir := &fakeSearcher{
		name: "dir", kind: types.KindAffiliate,
		batches: map[string][]types.RawResult{
			"home gym": {affiliateRaw("home gym", "FitCo Affiliate", "https://fitco.com/partners", "")},
		},
		failOn: map[string]error{
			"resistance bands": errors.New("provider down"),
		},
	}
	runner, st := newTestRunner(t, dir)
	ctx := context.Background()

	topic, err := st.CreateTopic(ctx, "home gym", []string{"resistance bands"})
	require.NoError(t, err)

	report, err := runner.Run(ctx, topic.ID, Options{}, io.Discard)
	require.NoError(t, err, "a subset of failing sub-topics must not fail the run")

	require.Len(t, report.PartialFailures, 1)
	assert.Equal(t, "resistance bands", report.PartialFailures[0].SubTopic)
	assert.Contains(t, report.PartialFailures[0].Err, "provider down")
	require.Len(t, report.Entities, 1)

	stored, err := st.EntitiesForTopic(ctx, topic.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "surviving results are persisted")
}

// TestRunAllSubTopicsFailed: every sub-topic failing for every kind is
// the only case that fails the whole run.
func TestRunAllSubTopicsFailed(t *testing.T) {
	boom := errors.New("provider down")
	dir := &fakeSearcher{
		name: "dir", kind: types.KindAffiliate,
		failOn: map[string]error{"home gym": boom, "resistance bands": boom},
	}
	runner, st := newTestRunner(t, dir)
	ctx := context.Background()

	topic, err := st.CreateTopic(ctx, "home gym", []string{"resistance bands"})
	require.NoError(t, err)

	report, err := runner.Run(ctx, topic.ID, Options{}, io.Discard)
	require.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.Len(t, report.PartialFailures, 2)
}

// TestRunKindFailureDoesNotAbortOtherKinds: the affiliate kind fails
// completely, keyword results still come through.
func TestRunKindFailureDoesNotAbortOtherKinds(t *testing.T) {
	boom := errors.New("directory down")
	dir := &fakeSearcher{
		name: "dir", kind: types.KindAffiliate,
		failOn: map[string]error{"home gym": boom},
	}
	kw := &fakeSearcher{
		name: "kw", kind: types.KindKeyword,
		batches: map[string][]types.RawResult{
			"home gym": {{
				Provider: "kw", SubTopic: "home gym", Kind: types.KindKeyword,
				Name:    "best home gym",
				Metrics: types.Metrics{Volume: 50000, Difficulty: 35, CPC: 2.50, TrendPct: 15.5},
			}},
		},
	}
	runner, st := newTestRunner(t, dir, kw)
	ctx := context.Background()

	topic, err := st.CreateTopic(ctx, "home gym", nil)
	require.NoError(t, err)

	report, err := runner.Run(ctx, topic.ID, Options{}, io.Discard)
	require.NoError(t, err)
	require.Len(t, report.Entities, 1)
	assert.Equal(t, types.KindKeyword, report.Entities[0].Kind)
	assert.Equal(t, 57.04, report.Entities[0].Priority)
	assert.Len(t, report.PartialFailures, 1)
}

// TestRunEmptySuccessIsNotAllFailed: one kind fails completely while the
// other succeeds but legitimately finds nothing. The run must succeed
// with partial failures; an empty result is not an error.
func TestRunEmptySuccessIsNotAllFailed(t *testing.T) {
	boom := errors.New("directory down")
	dir := &fakeSearcher{
		name: "dir", kind: types.KindAffiliate,
		failOn: map[string]error{"home gym": boom},
	}
	kw := &fakeSearcher{
		name: "kw", kind: types.KindKeyword,
		// No batches: every sub-topic succeeds with zero results.
	}
	runner, st := newTestRunner(t, dir, kw)
	ctx := context.Background()

	topic, err := st.CreateTopic(ctx, "home gym", nil)
	require.NoError(t, err)

	report, err := runner.Run(ctx, topic.ID, Options{}, io.Discard)
	require.NoError(t, err, "a kind that succeeded with nothing to report must not fail the run")
	assert.Empty(t, report.Entities)
	require.Len(t, report.PartialFailures, 1)
	assert.Equal(t, types.KindAffiliate, report.PartialFailures[0].Kind)
}

// TestRunKeepsSameNameAcrossKinds: an affiliate program without a URL
// and a keyword sharing its normalized name stay separate entities all
// the way through persistence, each keeping its own kind, metrics, and
// scores.
func TestRunKeepsSameNameAcrossKinds(t *testing.T) {
	dir := &fakeSearcher{
		name: "dir", kind: types.KindAffiliate,
		batches: map[string][]types.RawResult{
			"home gym": {{
				Provider: "dir", SubTopic: "home gym", Kind: types.KindAffiliate,
				Name:      "Home Gym",
				Metrics:   types.Metrics{CommissionPct: 10},
				FetchedAt: time.Now().UTC(),
			}},
		},
	}
	kw := &fakeSearcher{
		name: "kw", kind: types.KindKeyword,
		batches: map[string][]types.RawResult{
			"home gym": {{
				Provider: "kw", SubTopic: "home gym", Kind: types.KindKeyword,
				Name:      "home gym",
				Metrics:   types.Metrics{Volume: 50000, Difficulty: 35, CPC: 2.50, TrendPct: 15.5},
				FetchedAt: time.Now().UTC(),
			}},
		},
	}
	runner, st := newTestRunner(t, dir, kw)
	ctx := context.Background()

	topic, err := st.CreateTopic(ctx, "home gym", nil)
	require.NoError(t, err)

	report, err := runner.Run(ctx, topic.ID, Options{}, io.Discard)
	require.NoError(t, err)
	require.Len(t, report.Entities, 2, "one entity per kind, never conflated")

	byKind := map[types.DataKind]types.MergedEntity{}
	for _, e := range report.Entities {
		byKind[e.Kind] = e
	}
	program, keyword := byKind[types.KindAffiliate], byKind[types.KindKeyword]
	assert.NotEqual(t, program.Key, keyword.Key)
	assert.Equal(t, 10.0, program.Metrics.CommissionPct)
	assert.Zero(t, program.Metrics.Volume, "program must not absorb keyword signals")
	assert.Equal(t, 50000, keyword.Metrics.Volume)
	assert.Equal(t, 57.04, keyword.Priority)
}

// TestRunIdempotent runs twice with identical responses; exactly one
// stored record per entity key, scores unchanged.
func TestRunIdempotent(t *testing.T) {
	dir := &fakeSearcher{
		name: "dir", kind: types.KindAffiliate,
		batches: map[string][]types.RawResult{
			"home gym": {affiliateRaw("home gym", "FitCo Affiliate", "https://fitco.com/partners", "desc")},
		},
	}
	runner, st := newTestRunner(t, dir)
	ctx := context.Background()

	topic, err := st.CreateTopic(ctx, "home gym", nil)
	require.NoError(t, err)

	first, err := runner.Run(ctx, topic.ID, Options{}, io.Discard)
	require.NoError(t, err)
	second, err := runner.Run(ctx, topic.ID, Options{}, io.Discard)
	require.NoError(t, err)

	require.Len(t, second.Entities, 1)
	assert.Equal(t, first.Entities[0].Key, second.Entities[0].Key)
	assert.Equal(t, first.Entities[0].SubTopics, second.Entities[0].SubTopics)
	assert.Equal(t, first.Entities[0].Relevance, second.Entities[0].Relevance)

	stored, err := st.EntitiesForTopic(ctx, topic.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "repeated runs must not duplicate records")
}

func TestRunUnknownTopic(t *testing.T) {
	runner, _ := newTestRunner(t)
	_, err := runner.Run(context.Background(), "missing", Options{}, io.Discard)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// TestRunHardAbort discards partial progress when cancellation is a hard
// abort; nothing reaches the store.
func TestRunHardAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dir := &fakeSearcher{
		name: "dir", kind: types.KindAffiliate,
		batches: map[string][]types.RawResult{
			"home gym": {affiliateRaw("home gym", "FitCo Affiliate", "https://fitco.com/partners", "")},
		},
	}
	runner, st := newTestRunner(t, dir)

	topic, err := st.CreateTopic(context.Background(), "home gym", nil)
	require.NoError(t, err)

	cancel()
	_, err = runner.Run(ctx, topic.ID, Options{HardAbort: true}, io.Discard)
	require.Error(t, err)

	stored, err := st.EntitiesForTopic(context.Background(), topic.ID)
	require.NoError(t, err)
	assert.Empty(t, stored, "hard abort must not persist partial progress")
}
