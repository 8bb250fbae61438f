package resilience

import (
	"context"
	"strings"

	"github.com/cuecardhq/cuecard/internal/coach"
	"github.com/cuecardhq/cuecard/internal/suggest"
)

// SourceFallback implements [suggest.Source] with automatic failover across
// multiple backends. Each backend has its own circuit breaker; when the
// primary fails or its breaker is open, the next healthy fallback is tried.
type SourceFallback struct {
	group *FallbackGroup[suggest.Source]
}

// Compile-time interface assertion.
var _ suggest.Source = (*SourceFallback)(nil)

// NewSourceFallback creates a [SourceFallback] with primary as the preferred
// backend.
func NewSourceFallback(primary suggest.Source, primaryName string, cfg FallbackConfig) *SourceFallback {
	return &SourceFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional suggestion source as a fallback.
func (f *SourceFallback) AddFallback(name string, source suggest.Source) {
	f.group.AddFallback(name, source)
}

// Analyze sends the request to the first healthy source and returns its
// candidates. If the primary fails, subsequent fallbacks are tried.
func (f *SourceFallback) Analyze(ctx context.Context, req suggest.Request) ([]coach.RawSuggestion, error) {
	return ExecuteWithResult(f.group, func(s suggest.Source) ([]coach.RawSuggestion, error) {
		return s.Analyze(ctx, req)
	})
}

// Name joins the names of all registered backends, primary first.
func (f *SourceFallback) Name() string {
	names := make([]string, len(f.group.entries))
	for i, e := range f.group.entries {
		names[i] = e.name
	}
	return strings.Join(names, "+")
}

// Close closes every registered backend and returns the first error.
func (f *SourceFallback) Close() error {
	var firstErr error
	for _, e := range f.group.entries {
		if err := e.value.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
