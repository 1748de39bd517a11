// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"

	"github.com/pdiddy/topic-scout/internal/source"
	"github.com/pdiddy/topic-scout/pkg/types"
)

// Searcher decorates a source.Searcher with the cache: a present,
// unexpired entry is preferred over a network call, and a miss or expiry
// falls through to the wrapped searcher (normally the rate-limited client).
type Searcher struct {
	src   source.Searcher
	cache *Cache
}

// Wrap builds a cached searcher around src.
func Wrap(src source.Searcher, c *Cache) *Searcher {
	return &Searcher{src: src, cache: c}
}

// Name returns the wrapped provider's identifier.
func (s *Searcher) Name() string { return s.src.Name() }

// Kind returns the wrapped provider's data kind.
func (s *Searcher) Kind() types.DataKind { return s.src.Kind() }

// Search serves from cache when possible, otherwise queries the wrapped
// searcher and caches its batch. Failed queries are not cached.
func (s *Searcher) Search(ctx context.Context, subTopic string) ([]types.RawResult, error) {
	if batch, ok := s.cache.Get(s.src.Name(), s.src.Kind(), subTopic); ok {
		return batch, nil
	}
	batch, err := s.src.Search(ctx, subTopic)
	if err != nil {
		return nil, err
	}
	s.cache.Put(s.src.Name(), s.src.Kind(), subTopic, batch)
	return batch, nil
}
