// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research orchestrates a research run: decompose the topic,
// fan out per-sub-topic queries per data kind, merge, score, and persist.
package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/topic-scout/internal/fanout"
	"github.com/pdiddy/topic-scout/internal/merge"
	"github.com/pdiddy/topic-scout/internal/metrics"
	"github.com/pdiddy/topic-scout/internal/scoring"
	"github.com/pdiddy/topic-scout/internal/source"
	"github.com/pdiddy/topic-scout/internal/store"
	"github.com/pdiddy/topic-scout/pkg/types"
)

// ErrAllSourcesFailed is returned when every sub-topic failed for every
// data kind, so the run produced nothing at all.
var ErrAllSourcesFailed = errors.New("all sub-topic queries failed for every data kind")

// Runner executes research runs against a fixed set of searchers. The
// searchers are normally provider adapters wrapped in the rate-limited
// client and the cache, but any source.Searcher works, which is how tests
// inject fakes.
type Runner struct {
	store     *store.Store
	searchers []source.Searcher
	engine    scoring.Engine
	workers   int
	logger    *slog.Logger
	metrics   *metrics.Manager
}

// NewRunner builds a Runner. A nil logger discards logs.
func NewRunner(st *store.Store, searchers []source.Searcher, engine scoring.Engine, cfg types.ResearchConfig, logger *slog.Logger, m *metrics.Manager) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		store:     st,
		searchers: searchers,
		engine:    engine,
		workers:   cfg.Workers,
		logger:    logger,
		metrics:   m,
	}
}

// Options controls run behavior.
type Options struct {
	// HardAbort discards partial progress on cancellation instead of
	// merging and persisting what was already received.
	HardAbort bool
}

// Run executes one research run for the stored topic and returns the
// merged, scored entities plus any per-sub-topic partial failures. The
// run fails outright only when every sub-topic failed for every data
// kind, or when persistence fails. On soft cancellation, results already
// received are still merged and persisted.
func (r *Runner) Run(ctx context.Context, topicID string, opts Options, w io.Writer) (types.RunReport, error) {
	report := types.RunReport{
		RunID:     uuid.NewString(),
		TopicID:   topicID,
		StartedAt: time.Now().UTC(),
	}
	logger := r.logger.With("run_id", report.RunID, "topic_id", topicID)

	topic, err := r.store.GetTopic(ctx, topicID)
	if err != nil {
		return report, fmt.Errorf("loading topic %s: %w", topicID, err)
	}
	logger.Info("research run started", "sub_topics", len(topic.SubTopics))

	var entities []types.MergedEntity
	kindsQueried, kindsSucceeded := 0, 0

	for _, kind := range types.Kinds() {
		searchers := r.searchersFor(kind)
		if len(searchers) == 0 {
			continue
		}
		kindsQueried++

		out := fanout.Run(ctx, topic.SubTopics, r.workers, func(ctx context.Context, st string) ([]types.RawResult, error) {
			return searchSubTopic(ctx, searchers, st)
		})

		for _, f := range out.Failures {
			report.PartialFailures = append(report.PartialFailures, types.SubTopicFailure{
				Kind:     kind,
				SubTopic: f.SubTopic,
				Err:      f.Err.Error(),
			})
			fmt.Fprintf(w, "warning: %s search for %q failed: %v\n", kind, f.SubTopic, f.Err)
		}

		if out.AllFailed() {
			// This kind contributes nothing; the others continue.
			logger.Warn("data kind lost: every sub-topic failed", "kind", kind)
			continue
		}
		kindsSucceeded++

		merged, folded := merge.Resolve(topic, out.BySubTopic)
		report.DupsFolded += folded
		entities = append(entities, merged...)
	}

	if opts.HardAbort && ctx.Err() != nil {
		return report, fmt.Errorf("run aborted: %w", ctx.Err())
	}

	// A kind that succeeded with zero results is still a success; only
	// zero surviving kinds fails the run.
	if kindsQueried > 0 && kindsSucceeded == 0 {
		report.FinishedAt = time.Now().UTC()
		return report, ErrAllSourcesFailed
	}

	// Persistence proceeds even under soft cancellation: partial progress
	// is not discarded. The gateway re-merges each entity against its
	// stored record and recomputes both scores on the combined state.
	persistCtx := context.WithoutCancel(ctx)
	if err := r.store.UpsertEntities(persistCtx, topic, r.engine, entities); err != nil {
		return report, fmt.Errorf("persisting run results: %w", err)
	}

	stored, err := r.store.EntitiesForTopic(persistCtx, topicID)
	if err != nil {
		return report, err
	}
	report.Entities = stored

	r.metrics.EntitiesMerged(len(entities))
	r.metrics.RunCompleted()
	report.FinishedAt = time.Now().UTC()
	logger.Info("research run finished",
		"entities", len(report.Entities),
		"dups_folded", report.DupsFolded,
		"failed_sub_topics", len(report.FailedSubTopics()),
		"elapsed", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func (r *Runner) searchersFor(kind types.DataKind) []source.Searcher {
	var out []source.Searcher
	for _, s := range r.searchers {
		if s.Kind() == kind {
			out = append(out, s)
		}
	}
	return out
}

// searchSubTopic queries every searcher of one kind for one sub-topic and
// concatenates their batches. The sub-topic fails only when every
// provider failed and nothing was returned; a subset of provider failures
// degrades to whatever succeeded.
func searchSubTopic(ctx context.Context, searchers []source.Searcher, subTopic string) ([]types.RawResult, error) {
	var all []types.RawResult
	var errs []error
	for _, s := range searchers {
		batch, err := s.Search(ctx, subTopic)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		all = append(all, batch...)
	}
	if len(all) == 0 && len(errs) == len(searchers) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return all, nil
}
