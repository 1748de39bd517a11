// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fanout runs one query per sub-topic through a bounded worker
// pool and collects partial failures without aborting the rest.
package fanout

import (
	"context"
	"sort"
	"sync"

	"github.com/pdiddy/topic-scout/pkg/types"
)

const defaultWorkers = 4

// SearchFunc queries all providers of one data kind for one sub-topic.
type SearchFunc func(ctx context.Context, subTopic string) ([]types.RawResult, error)

// Failure records one sub-topic whose query failed.
type Failure struct {
	SubTopic string
	Err      error
}

// Output maps each sub-topic to its raw results. A sub-topic that
// legitimately returned nothing has an empty (non-nil) slice; a sub-topic
// that failed appears in Failures instead.
type Output struct {
	BySubTopic map[string][]types.RawResult
	Failures   []Failure
}

// AllFailed reports whether every sub-topic failed. Only then is the
// data kind's contribution to the run considered lost.
func (o Output) AllFailed() bool {
	return len(o.BySubTopic) == 0 && len(o.Failures) > 0
}

// Run issues search once per sub-topic through a fixed-size worker pool.
// Worker count, not one goroutine per sub-topic, bounds concurrency so the
// shared provider rate limits stay the real throttle. Sub-topic failures
// are independent: one failure never aborts the others. On context
// cancellation workers stop picking up new sub-topics; sub-topics never
// attempted are recorded as failures with the context error, and results
// already received are still returned.
func Run(ctx context.Context, subTopics []string, workers int, search SearchFunc) Output {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(subTopics) {
		workers = len(subTopics)
	}

	type outcome struct {
		subTopic string
		results  []types.RawResult
		err      error
	}

	jobs := make(chan string)
	results := make(chan outcome, len(subTopics))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for st := range jobs {
				if err := ctx.Err(); err != nil {
					results <- outcome{subTopic: st, err: err}
					continue
				}
				batch, err := search(ctx, st)
				results <- outcome{subTopic: st, results: batch, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, st := range subTopics {
			select {
			case jobs <- st:
			case <-ctx.Done():
				// Record the remaining sub-topics as never attempted.
				results <- outcome{subTopic: st, err: ctx.Err()}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := Output{BySubTopic: make(map[string][]types.RawResult, len(subTopics))}
	for oc := range results {
		if oc.err != nil {
			out.Failures = append(out.Failures, Failure{SubTopic: oc.subTopic, Err: oc.err})
			continue
		}
		if oc.results == nil {
			oc.results = []types.RawResult{}
		}
		out.BySubTopic[oc.subTopic] = oc.results
	}

	// Completion order is nondeterministic; sort failures for stable output.
	sort.Slice(out.Failures, func(i, j int) bool {
		return out.Failures[i].SubTopic < out.Failures[j].SubTopic
	})
	return out
}
