package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumValueWithAttr finds the data point whose attribute key equals value and
// returns its sum. Returns -1 when no such data point exists.
func sumValueWithAttr(sum metricdata.Sum[int64], key, value string) int64 {
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	return -1
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestPromptCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPromptShown(ctx, "suggest_follow_up")
	m.RecordPromptShown(ctx, "suggest_follow_up")
	m.RecordPromptShown(ctx, "suggest_pivot")
	m.RecordPromptResponse(ctx, "suggest_follow_up", "accepted")
	m.RecordPromptResponse(ctx, "suggest_follow_up", "snoozed")
	m.RecordPromptDropped(ctx, "below_confidence_floor")

	rm := collect(t, reader)

	shown := findMetric(rm, "cuecard.prompt.shown")
	if shown == nil {
		t.Fatal("cuecard.prompt.shown not found")
	}
	sum, ok := shown.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("cuecard.prompt.shown is not a sum")
	}
	if got := sumValueWithAttr(sum, "type", "suggest_follow_up"); got != 2 {
		t.Errorf("shown{type=suggest_follow_up} = %d, want 2", got)
	}
	if got := sumValueWithAttr(sum, "type", "suggest_pivot"); got != 1 {
		t.Errorf("shown{type=suggest_pivot} = %d, want 1", got)
	}

	responses := findMetric(rm, "cuecard.prompt.responses")
	if responses == nil {
		t.Fatal("cuecard.prompt.responses not found")
	}
	sum, ok = responses.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("cuecard.prompt.responses is not a sum")
	}
	if got := sumValueWithAttr(sum, "response", "accepted"); got != 1 {
		t.Errorf("responses{response=accepted} = %d, want 1", got)
	}

	dropped := findMetric(rm, "cuecard.prompt.dropped")
	if dropped == nil {
		t.Fatal("cuecard.prompt.dropped not found")
	}
	sum, ok = dropped.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("cuecard.prompt.dropped is not a sum")
	}
	if got := sumValueWithAttr(sum, "reason", "below_confidence_floor"); got != 1 {
		t.Errorf("dropped{reason=below_confidence_floor} = %d, want 1", got)
	}
}

func TestRecordSuggestion_Success(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSuggestion(ctx, "openai", 1.2, 3, nil)
	m.RecordSuggestion(ctx, "openai", 0.8, 1, nil)

	rm := collect(t, reader)

	dur := findMetric(rm, "cuecard.suggestion.duration")
	if dur == nil {
		t.Fatal("cuecard.suggestion.duration not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("cuecard.suggestion.duration is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no duration data points")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}

	candidates := findMetric(rm, "cuecard.suggestion.candidates")
	if candidates == nil {
		t.Fatal("cuecard.suggestion.candidates not found")
	}
	sum, ok := candidates.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("cuecard.suggestion.candidates is not a sum")
	}
	if got := sumValueWithAttr(sum, "provider", "openai"); got != 4 {
		t.Errorf("candidates{provider=openai} = %d, want 4", got)
	}

	// No errors were recorded, so the error counter must be absent.
	if findMetric(rm, "cuecard.suggestion.errors") != nil {
		t.Error("cuecard.suggestion.errors present without failures")
	}
}

func TestRecordSuggestion_Error(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSuggestion(ctx, "anyllm/ollama", 5.0, 0, errors.New("connection refused"))

	rm := collect(t, reader)

	errs := findMetric(rm, "cuecard.suggestion.errors")
	if errs == nil {
		t.Fatal("cuecard.suggestion.errors not found")
	}
	sum, ok := errs.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("cuecard.suggestion.errors is not a sum")
	}
	if got := sumValueWithAttr(sum, "provider", "anyllm/ollama"); got != 1 {
		t.Errorf("errors{provider=anyllm/ollama} = %d, want 1", got)
	}

	dur := findMetric(rm, "cuecard.suggestion.duration")
	if dur == nil {
		t.Fatal("cuecard.suggestion.duration not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("cuecard.suggestion.duration is not a histogram")
	}
	foundErrStatus := false
	for _, dp := range hist.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "status" && kv.Value.AsString() == "error" {
				foundErrStatus = true
			}
		}
	}
	if !foundErrStatus {
		t.Error("duration data point with status=error not found")
	}
}

func TestGauges(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)
	m.QueueDepth.Add(ctx, 3, metric.WithAttributes(attribute.String("queue", "pending")))
	m.QueueDepth.Add(ctx, -1, metric.WithAttributes(attribute.String("queue", "pending")))

	rm := collect(t, reader)

	sessions := findMetric(rm, "cuecard.active_sessions")
	if sessions == nil {
		t.Fatal("cuecard.active_sessions not found")
	}
	sum, ok := sessions.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("cuecard.active_sessions is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no active_sessions data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active_sessions = %d, want 1", got)
	}

	depth := findMetric(rm, "cuecard.queue_depth")
	if depth == nil {
		t.Fatal("cuecard.queue_depth not found")
	}
	sum, ok = depth.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("cuecard.queue_depth is not a sum")
	}
	if got := sumValueWithAttr(sum, "queue", "pending"); got != 2 {
		t.Errorf("queue_depth{queue=pending} = %d, want 2", got)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "cuecard.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
