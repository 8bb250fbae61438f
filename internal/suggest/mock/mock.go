// Package mock provides a test double for the suggest.Source interface.
//
// Use Source in unit tests to feed controlled candidate batches without a
// live LLM backend and to verify the analysis requests the session loop
// sends. All fields are safe to set before calling any method; mutating them
// during a concurrent call is the caller's responsibility.
//
// Example:
//
//	s := &mock.Source{
//	    AnalyzeResults: [][]coach.RawSuggestion{{{Name: "suggest_pivot"}}},
//	}
//	raws, err := s.Analyze(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/cuecardhq/cuecard/internal/coach"
	"github.com/cuecardhq/cuecard/internal/suggest"
)

var _ suggest.Source = (*Source)(nil)

// AnalyzeCall records a single invocation of Analyze.
type AnalyzeCall struct {
	// Ctx is the context passed to Analyze.
	Ctx context.Context
	// Req is the Request passed to Analyze.
	Req suggest.Request
}

// Source is a mock implementation of suggest.Source.
// Zero values for response fields cause methods to return zero values and nil
// errors. Set AnalyzeErr to inject errors.
type Source struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// AnalyzeResults is the sequence of candidate batches returned by
	// successive Analyze calls. Once exhausted, further calls return nil.
	AnalyzeResults [][]coach.RawSuggestion

	// AnalyzeErr, if non-nil, is returned as the error from every Analyze call.
	AnalyzeErr error

	// SourceName is returned by Name. Defaults to "mock".
	SourceName string

	// CloseErr is returned by Close.
	CloseErr error

	// --- Call records (read after test) ---

	// AnalyzeCalls records every invocation of Analyze in order.
	AnalyzeCalls []AnalyzeCall

	// Closed reports whether Close has been called.
	Closed bool
}

// Analyze implements suggest.Source.
func (s *Source) Analyze(ctx context.Context, req suggest.Request) ([]coach.RawSuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.AnalyzeCalls = append(s.AnalyzeCalls, AnalyzeCall{Ctx: ctx, Req: req})
	if s.AnalyzeErr != nil {
		return nil, s.AnalyzeErr
	}
	if len(s.AnalyzeResults) == 0 {
		return nil, nil
	}
	batch := s.AnalyzeResults[0]
	s.AnalyzeResults = s.AnalyzeResults[1:]
	return batch, nil
}

// Name implements suggest.Source.
func (s *Source) Name() string {
	if s.SourceName == "" {
		return "mock"
	}
	return s.SourceName
}

// Close implements suggest.Source.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return s.CloseErr
}
