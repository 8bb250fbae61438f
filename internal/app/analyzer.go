package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuecardhq/cuecard/internal/coach"
	"github.com/cuecardhq/cuecard/internal/observe"
	"github.com/cuecardhq/cuecard/internal/suggest"
)

// transcriptWindow caps the rolling utterance window handed to the
// suggestion source. Older utterances fall off the front.
const transcriptWindow = 40

// analyzer periodically feeds the recent transcript window to the suggestion
// source and routes emitted candidates into the engine. It only analyses
// when new utterances arrived since the last pass.
type analyzer struct {
	source   suggest.Source
	engine   *coach.Engine
	metrics  *observe.Metrics
	interval time.Duration

	mu      chan struct{} // 1-token semaphore guarding the fields below
	window  []suggest.Utterance
	planned []string
	covered []string
	dirty   bool

	// Queue depth bookkeeping, touched only from the run goroutine.
	lastPending int
	lastPull    int
}

func newAnalyzer(source suggest.Source, engine *coach.Engine, metrics *observe.Metrics, interval time.Duration) *analyzer {
	z := &analyzer{
		source:   source,
		engine:   engine,
		metrics:  metrics,
		interval: interval,
		mu:       make(chan struct{}, 1),
	}
	z.mu <- struct{}{}
	return z
}

func (z *analyzer) lock()   { <-z.mu }
func (z *analyzer) unlock() { z.mu <- struct{}{} }

// Add appends one utterance to the rolling window.
func (z *analyzer) Add(u suggest.Utterance) {
	z.lock()
	defer z.unlock()
	z.window = append(z.window, u)
	if len(z.window) > transcriptWindow {
		z.window = z.window[len(z.window)-transcriptWindow:]
	}
	z.dirty = true
}

// Reset clears the window for a new session and installs its planned topics.
func (z *analyzer) Reset(planned []string) {
	z.lock()
	defer z.unlock()
	z.window = nil
	z.planned = planned
	z.covered = nil
	z.dirty = false
}

// MarkCovered records a planned topic as covered so the source stops
// reminding about it.
func (z *analyzer) MarkCovered(topic string) {
	z.lock()
	defer z.unlock()
	for _, c := range z.covered {
		if c == topic {
			return
		}
	}
	z.covered = append(z.covered, topic)
}

// run drives the analysis loop until ctx is cancelled.
func (z *analyzer) run(ctx context.Context) error {
	ticker := time.NewTicker(z.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			z.analyze(ctx)
			z.sampleQueueDepth(ctx)
		}
	}
}

// sampleQueueDepth publishes the pending and pull queue depth deltas since
// the previous tick.
func (z *analyzer) sampleQueueDepth(ctx context.Context) {
	pending := len(z.engine.Pending())
	pull := len(z.engine.PullQueue())
	z.metrics.RecordQueueDepthChange(ctx, "pending", int64(pending-z.lastPending))
	z.metrics.RecordQueueDepthChange(ctx, "pull", int64(pull-z.lastPull))
	z.lastPending, z.lastPull = pending, pull
}

// analyze performs one pass: snapshot the window, call the source, submit
// candidates. Skipped when nothing changed or coaching cannot show prompts
// anyway.
func (z *analyzer) analyze(ctx context.Context) {
	z.lock()
	if !z.dirty || len(z.window) == 0 {
		z.unlock()
		return
	}
	transcript := make([]suggest.Utterance, len(z.window))
	copy(transcript, z.window)
	planned := z.planned
	covered := z.covered
	z.dirty = false
	z.unlock()

	if z.engine.State() == coach.StateEnded || !z.engine.Enabled() {
		return
	}

	req := suggest.Request{
		Transcript:    transcript,
		PlannedTopics: planned,
		CoveredTopics: covered,
		Culture:       z.engine.Culture(),
		Sensitivity:   z.engine.Thresholds().Sensitivity,
		Offset:        transcript[len(transcript)-1].Start,
	}

	start := time.Now()
	candidates, err := z.source.Analyze(ctx, req)
	z.metrics.RecordSuggestion(ctx, z.source.Name(), time.Since(start).Seconds(), len(candidates), err)
	if err != nil {
		slog.Warn("suggestion analysis failed", "source", z.source.Name(), "err", err)
		return
	}

	for _, c := range candidates {
		z.engine.ProcessCandidate(c)
	}
}
