package squallotel

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/squall-labs/squall/core"
)

// newTestTelemetry wires a Telemetry to an in-memory span recorder and
// a manual metric reader.
func newTestTelemetry(t *testing.T) (*Telemetry, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	tel, err := New(WithTracerProvider(tp), WithMeterProvider(mp))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tel, recorder, reader
}

func textCollaborator(fragments ...string) core.Collaborator {
	return func(ctx context.Context, input string, opts core.Options) (any, error) {
		return fragments, nil
	}
}

type fixedBackoff struct{ d time.Duration }

func (b fixedBackoff) NextDelay(int) time.Duration { return b.d }

func findAttr(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func findMetric(rm *metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func counterSum(t *testing.T, rm *metricdata.ResourceMetrics, name string) int64 {
	t.Helper()

	m, ok := findMetric(rm, name)
	if !ok {
		t.Fatalf("metric %s not recorded", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s data = %T, want Sum[int64]", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewDefaults(t *testing.T) {
	tel, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tel == nil {
		t.Fatal("New() returned nil Telemetry")
	}

	// nil providers fall back to the globals rather than panicking.
	tel, err = New(WithTracerProvider(nil), WithMeterProvider(nil))
	if err != nil {
		t.Fatalf("New(nil providers) error = %v", err)
	}
	if tel == nil {
		t.Fatal("New(nil providers) returned nil Telemetry")
	}
}

func TestObserverCompletedSpan(t *testing.T) {
	tel, recorder, _ := newTestTelemetry(t)

	orch := core.NewOrchestrator(textCollaborator("Sunny ", "skies"), core.Options{}, tel.Observer())
	if err := orch.Run(context.Background(), "forecast"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]

	if span.Name() != "squall.request" {
		t.Errorf("span name = %q, want squall.request", span.Name())
	}
	if span.SpanKind() != trace.SpanKindClient {
		t.Errorf("span kind = %v, want client", span.SpanKind())
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", span.Status().Code)
	}

	attrs := span.Attributes()
	if v, ok := findAttr(attrs, "squall.timeout_ms"); !ok || v.AsInt64() != 30000 {
		t.Errorf("squall.timeout_ms = %v, want 30000", v.Emit())
	}
	if v, ok := findAttr(attrs, "squall.max_retries"); !ok || v.AsInt64() != 3 {
		t.Errorf("squall.max_retries = %v, want 3", v.Emit())
	}
	if v, ok := findAttr(attrs, "squall.event_count"); !ok || v.AsInt64() != 2 {
		t.Errorf("squall.event_count = %v, want 2", v.Emit())
	}
	if v, ok := findAttr(attrs, "squall.byte_count"); !ok || v.AsInt64() != 11 {
		t.Errorf("squall.byte_count = %v, want 11", v.Emit())
	}
	if v, ok := findAttr(attrs, "squall.request_id"); !ok || v.AsString() == "" {
		t.Error("squall.request_id attribute missing or empty")
	}
}

func TestObserverErrorSpan(t *testing.T) {
	tel, recorder, _ := newTestTelemetry(t)

	failing := func(ctx context.Context, input string, opts core.Options) (any, error) {
		return nil, errors.New("invalid api key")
	}
	orch := core.NewOrchestrator(failing, core.Options{}, tel.Observer())
	if err := orch.Run(context.Background(), "forecast"); err == nil {
		t.Fatal("Run() error = nil, want classified failure")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]

	if span.Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", span.Status().Code)
	}
	if span.Status().Description != string(core.CodeUnauthorized) {
		t.Errorf("span description = %q, want %q", span.Status().Description, core.CodeUnauthorized)
	}

	recorded := false
	for _, ev := range span.Events() {
		if ev.Name == "exception" {
			recorded = true
		}
	}
	if !recorded {
		t.Error("span has no exception event")
	}

	if v, ok := findAttr(span.Attributes(), "squall.error_count"); !ok || v.AsInt64() != 1 {
		t.Errorf("squall.error_count = %v, want 1", v.Emit())
	}
}

func TestObserverRetrySpanEvents(t *testing.T) {
	tel, recorder, _ := newTestTelemetry(t)

	calls := 0
	flaky := func(ctx context.Context, input string, opts core.Options) (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("network timeout")
		}
		return []string{"recovered"}, nil
	}
	orch := core.NewOrchestrator(flaky, core.Options{}, tel.Observer()).
		WithBackoff(fixedBackoff{time.Millisecond})
	if err := orch.Run(context.Background(), "forecast"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]

	if span.Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", span.Status().Code)
	}

	var retry sdktrace.Event
	found := false
	for _, ev := range span.Events() {
		if ev.Name == "retry" {
			retry, found = ev, true
		}
	}
	if !found {
		t.Fatal("span has no retry event")
	}
	if v, ok := findAttr(retry.Attributes, "squall.retry.attempt"); !ok || v.AsInt64() != 1 {
		t.Errorf("squall.retry.attempt = %v, want 1", v.Emit())
	}
	if v, ok := findAttr(retry.Attributes, "squall.error.code"); !ok || v.AsString() != string(core.CodeTimeout) {
		t.Errorf("squall.error.code = %v, want %s", v.Emit(), core.CodeTimeout)
	}

	if v, ok := findAttr(span.Attributes(), "squall.retry_count"); !ok || v.AsInt64() != 1 {
		t.Errorf("squall.retry_count = %v, want 1", v.Emit())
	}
}

func TestObserverMetrics(t *testing.T) {
	tel, _, reader := newTestTelemetry(t)

	orch := core.NewOrchestrator(textCollaborator("Sunny ", "skies"), core.Options{}, tel.Observer())
	if err := orch.Run(context.Background(), "forecast"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if got := counterSum(t, &rm, "squall.requests"); got != 1 {
		t.Errorf("squall.requests = %d, want 1", got)
	}
	if got := counterSum(t, &rm, "squall.stream.events"); got != 2 {
		t.Errorf("squall.stream.events = %d, want 2", got)
	}
	if got := counterSum(t, &rm, "squall.stream.bytes"); got != 11 {
		t.Errorf("squall.stream.bytes = %d, want 11", got)
	}

	m, ok := findMetric(&rm, "squall.requests")
	if !ok {
		t.Fatal("squall.requests not recorded")
	}
	sum := m.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 {
		t.Fatalf("squall.requests data points = %d, want 1", len(sum.DataPoints))
	}
	if v, ok := sum.DataPoints[0].Attributes.Value("squall.outcome"); !ok || v.AsString() != "ok" {
		t.Errorf("squall.outcome = %v, want ok", v.Emit())
	}

	m, ok = findMetric(&rm, "squall.request.duration")
	if !ok {
		t.Fatal("squall.request.duration not recorded")
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("squall.request.duration data = %T, want Histogram[float64]", m.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Error("squall.request.duration should record one measurement")
	}
}

func TestObserverRetryMetric(t *testing.T) {
	tel, _, reader := newTestTelemetry(t)

	calls := 0
	flaky := func(ctx context.Context, input string, opts core.Options) (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("network timeout")
		}
		return []string{"recovered"}, nil
	}
	orch := core.NewOrchestrator(flaky, core.Options{}, tel.Observer()).
		WithBackoff(fixedBackoff{time.Millisecond})
	if err := orch.Run(context.Background(), "forecast"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	m, ok := findMetric(&rm, "squall.request.retries")
	if !ok {
		t.Fatal("squall.request.retries not recorded")
	}
	sum := m.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Error("squall.request.retries should record one retry")
	}
	if v, ok := sum.DataPoints[0].Attributes.Value("squall.error.code"); !ok || v.AsString() != string(core.CodeTimeout) {
		t.Errorf("squall.error.code = %v, want %s", v.Emit(), core.CodeTimeout)
	}
}

func TestObserverMetricsDisabled(t *testing.T) {
	tel, recorder, reader := newTestTelemetry(t)

	orch := core.NewOrchestrator(textCollaborator("hi"), core.Options{DisableMetrics: true}, tel.Observer())
	if err := orch.Run(context.Background(), "forecast"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if _, ok := findAttr(spans[0].Attributes(), "squall.request_id"); ok {
		t.Error("squall.request_id attribute present with metrics disabled")
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	// Outcome and stream counters stay live; only per-request metrics
	// derived from the disabled snapshot are skipped.
	if got := counterSum(t, &rm, "squall.requests"); got != 1 {
		t.Errorf("squall.requests = %d, want 1", got)
	}
	if got := counterSum(t, &rm, "squall.stream.events"); got != 1 {
		t.Errorf("squall.stream.events = %d, want 1", got)
	}
	if _, ok := findMetric(&rm, "squall.request.duration"); ok {
		t.Error("squall.request.duration recorded with metrics disabled")
	}
}

func TestObserverIndependentSessions(t *testing.T) {
	tel, recorder, _ := newTestTelemetry(t)

	for i := 0; i < 2; i++ {
		orch := core.NewOrchestrator(textCollaborator("fine"), core.Options{}, tel.Observer())
		if err := orch.Run(context.Background(), "forecast"); err != nil {
			t.Fatalf("Run() #%d error = %v", i, err)
		}
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	for _, span := range spans {
		if span.Status().Code != codes.Ok {
			t.Errorf("span status = %v, want Ok", span.Status().Code)
		}
	}
}
