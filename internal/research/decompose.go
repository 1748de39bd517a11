// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"strings"
)

// Decomposer breaks a topic title into related sub-topic strings. The
// production implementation is an LLM-backed service owned by the
// surrounding product; this package only consumes the capability.
type Decomposer interface {
	Decompose(ctx context.Context, topic string) ([]string, error)
}

// StaticDecomposer returns a fixed sub-topic list, used when the operator
// supplies sub-topics directly instead of calling the decomposition service.
type StaticDecomposer []string

// Decompose returns the fixed list.
func (d StaticDecomposer) Decompose(context.Context, string) ([]string, error) {
	return d, nil
}

// SubTopics resolves a topic title into its sub-topic set via d, falling
// back to the bare title as a single-element set when decomposition fails
// or returns nothing. The title is always the first member of the result.
func SubTopics(ctx context.Context, d Decomposer, title string) []string {
	title = strings.TrimSpace(title)
	out := []string{title}
	if d == nil {
		return out
	}

	decomposed, err := d.Decompose(ctx, title)
	if err != nil || len(decomposed) == 0 {
		return out
	}

	seen := map[string]bool{title: true}
	for _, st := range decomposed {
		st = strings.TrimSpace(st)
		if st == "" || seen[st] {
			continue
		}
		seen[st] = true
		out = append(out, st)
	}
	return out
}
