package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/cuecardhq/cuecard/internal/coach"
	"github.com/cuecardhq/cuecard/internal/suggest"
	suggestmock "github.com/cuecardhq/cuecard/internal/suggest/mock"
)

func TestSourceFallback_PrimaryFailure(t *testing.T) {
	primary := &suggestmock.Source{
		SourceName: "primary",
		AnalyzeErr: errors.New("rate limited"),
	}
	secondary := &suggestmock.Source{
		SourceName: "secondary",
		AnalyzeResults: [][]coach.RawSuggestion{{{
			Name:      "suggest_follow_up",
			Arguments: map[string]string{"text": "follow up"},
		}}},
	}

	f := NewSourceFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	f.AddFallback("secondary", secondary)

	raws, err := f.Analyze(context.Background(), suggest.Request{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(raws) != 1 || raws[0].Name != "suggest_follow_up" {
		t.Errorf("candidates = %+v, want the fallback's batch", raws)
	}
	if len(primary.AnalyzeCalls) != 1 {
		t.Errorf("primary calls = %d, want 1", len(primary.AnalyzeCalls))
	}
}

func TestSourceFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &suggestmock.Source{
		SourceName: "primary",
		AnalyzeErr: errors.New("down"),
	}
	secondary := &suggestmock.Source{SourceName: "secondary"}

	f := NewSourceFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	f.AddFallback("secondary", secondary)

	// Trip the primary's breaker.
	for i := 0; i < 2; i++ {
		if _, err := f.Analyze(context.Background(), suggest.Request{}); err != nil {
			t.Fatalf("Analyze %d: %v", i, err)
		}
	}
	calls := len(primary.AnalyzeCalls)

	if _, err := f.Analyze(context.Background(), suggest.Request{}); err != nil {
		t.Fatalf("Analyze with open breaker: %v", err)
	}
	if len(primary.AnalyzeCalls) != calls {
		t.Error("open breaker still forwarded to the primary")
	}
}

func TestSourceFallback_AllFailed(t *testing.T) {
	primary := &suggestmock.Source{AnalyzeErr: errors.New("down")}
	f := NewSourceFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 5},
	})

	if _, err := f.Analyze(context.Background(), suggest.Request{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSourceFallback_NameAndClose(t *testing.T) {
	primary := &suggestmock.Source{SourceName: "openai"}
	secondary := &suggestmock.Source{SourceName: "ollama"}

	f := NewSourceFallback(primary, "openai", FallbackConfig{})
	f.AddFallback("ollama", secondary)

	if got := f.Name(); got != "openai+ollama" {
		t.Errorf("Name() = %q, want openai+ollama", got)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !primary.Closed || !secondary.Closed {
		t.Error("Close did not reach every backend")
	}
}
