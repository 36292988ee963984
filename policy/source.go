package policy

import (
	"context"
	"time"

	"namewatch/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// StaticSource serves fixed lists, typically straight from configuration.
type StaticSource struct {
	Standard []string
	Escalate []string
}

func (s StaticSource) Words(_ context.Context) ([]model.Word, error) {
	return Merge(s.Standard, s.Escalate), nil
}

// Merge builds word rows from the two tier lists.
func Merge(standard, escalate []string) []model.Word {
	out := make([]model.Word, 0, len(standard)+len(escalate))
	for _, w := range standard {
		out = append(out, model.Word{Word: w})
	}
	for _, w := range escalate {
		out = append(out, model.Word{Word: w, Escalate: true})
	}
	return out
}

// LoaderFunc adapts a function such as (*database.Store).ListWords to WordSource.
type LoaderFunc func(ctx context.Context) ([]model.Word, error)

func (f LoaderFunc) Words(ctx context.Context) ([]model.Word, error) {
	return f(ctx)
}

const wordsKey = "words"

// CachedSource fronts a slower source with an expiring cache so edits to the
// stored lists show up within ttl. Load errors are not cached.
type CachedSource struct {
	inner WordSource
	cache *expirable.LRU[string, []model.Word]
}

func NewCachedSource(inner WordSource, ttl time.Duration) *CachedSource {
	return &CachedSource{
		inner: inner,
		cache: expirable.NewLRU[string, []model.Word](1, nil, ttl),
	}
}

func (s *CachedSource) Words(ctx context.Context) ([]model.Word, error) {
	if words, ok := s.cache.Get(wordsKey); ok {
		return words, nil
	}
	words, err := s.inner.Words(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Add(wordsKey, words)
	return words, nil
}

// Invalidate drops the cached lists.
func (s *CachedSource) Invalidate() {
	s.cache.Purge()
}
