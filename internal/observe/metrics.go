// Package observe provides application-wide observability primitives for
// cuecard: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all cuecard metrics.
const meterName = "github.com/cuecardhq/cuecard"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SuggestionDuration tracks suggestion source analysis latency. Use with
	// attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	SuggestionDuration metric.Float64Histogram

	// --- Counters ---

	// PromptsShown counts prompts promoted to the display slot. Use with
	// attribute: attribute.String("type", ...)
	PromptsShown metric.Int64Counter

	// PromptResponses counts resolved prompts. Use with attributes:
	//   attribute.String("type", ...), attribute.String("response", ...)
	PromptResponses metric.Int64Counter

	// PromptsDropped counts candidates rejected at validation. Use with
	// attribute: attribute.String("reason", ...)
	PromptsDropped metric.Int64Counter

	// SuggestionCandidates counts raw candidates emitted by suggestion
	// sources. Use with attribute: attribute.String("provider", ...)
	SuggestionCandidates metric.Int64Counter

	// --- Error counters ---

	// SuggestionErrors counts failed suggestion source calls. Use with
	// attribute: attribute.String("provider", ...)
	SuggestionErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live interview sessions.
	ActiveSessions metric.Int64UpDownCounter

	// QueueDepth tracks pending prompts across sessions. Use with attribute:
	//   attribute.String("queue", "pending"|"pull")
	QueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for LLM analysis calls, which dominate suggestion latency.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SuggestionDuration, err = m.Float64Histogram("cuecard.suggestion.duration",
		metric.WithDescription("Latency of suggestion source analysis calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.PromptsShown, err = m.Int64Counter("cuecard.prompt.shown",
		metric.WithDescription("Total prompts promoted to the display slot, by type."),
	); err != nil {
		return nil, err
	}
	if met.PromptResponses, err = m.Int64Counter("cuecard.prompt.responses",
		metric.WithDescription("Total resolved prompts by type and response."),
	); err != nil {
		return nil, err
	}
	if met.PromptsDropped, err = m.Int64Counter("cuecard.prompt.dropped",
		metric.WithDescription("Total candidates rejected at validation, by reason."),
	); err != nil {
		return nil, err
	}
	if met.SuggestionCandidates, err = m.Int64Counter("cuecard.suggestion.candidates",
		metric.WithDescription("Total raw candidates emitted by suggestion sources, by provider."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.SuggestionErrors, err = m.Int64Counter("cuecard.suggestion.errors",
		metric.WithDescription("Total failed suggestion source calls, by provider."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("cuecard.active_sessions",
		metric.WithDescription("Number of live interview sessions."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("cuecard.queue_depth",
		metric.WithDescription("Pending prompts across sessions, by queue."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("cuecard.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordPromptShown records a displayed prompt with its type.
func (m *Metrics) RecordPromptShown(ctx context.Context, promptType string) {
	m.PromptsShown.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", promptType)),
	)
}

// RecordPromptResponse records a resolved prompt with the standard attribute
// set.
func (m *Metrics) RecordPromptResponse(ctx context.Context, promptType, response string) {
	m.PromptResponses.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("type", promptType),
			attribute.String("response", response),
		),
	)
}

// RecordQueueDepthChange adjusts the queue depth gauge for the named queue.
func (m *Metrics) RecordQueueDepthChange(ctx context.Context, queue string, delta int64) {
	if delta == 0 {
		return
	}
	m.QueueDepth.Add(ctx, delta,
		metric.WithAttributes(attribute.String("queue", queue)),
	)
}

// RecordPromptDropped records a validation rejection with its reason.
func (m *Metrics) RecordPromptDropped(ctx context.Context, reason string) {
	m.PromptsDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordSuggestion records one suggestion source call: its latency, the
// number of candidates it produced, and an error counter increment on
// failure.
func (m *Metrics) RecordSuggestion(ctx context.Context, provider string, seconds float64, candidates int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.SuggestionErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", provider)),
		)
	}
	m.SuggestionDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
	if candidates > 0 {
		m.SuggestionCandidates.Add(ctx, int64(candidates),
			metric.WithAttributes(attribute.String("provider", provider)),
		)
	}
}
