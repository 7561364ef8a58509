// Package squallotel bridges the engine's request lifecycle into
// OpenTelemetry traces and metrics.
//
// One span covers one logical request, including every retry attempt.
// Retries become span events; stream events and bytes feed counters.
// Message content never reaches telemetry, only operational metadata.
//
//	tel, err := squallotel.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	session := core.NewSession().WithObserver(tel.Observer())
package squallotel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/squall-labs/squall/core"
)

// scopeName is the instrumentation scope reported with every span and
// metric.
const scopeName = "github.com/squall-labs/squall/contrib/otel"

// Option customizes a Telemetry instance.
type Option func(*Telemetry)

// WithTracerProvider sets the tracer provider. Defaults to the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Telemetry) {
		if tp != nil {
			t.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global
// provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(t *Telemetry) {
		if mp != nil {
			t.meterProvider = mp
		}
	}
}

// Telemetry holds the instruments shared by all observers it creates.
// Safe for concurrent use.
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	tracer trace.Tracer

	requests metric.Int64Counter
	events   metric.Int64Counter
	bytes    metric.Int64Counter
	retries  metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a Telemetry bridge. Instrument creation errors surface
// here, never during a request.
func New(opts ...Option) (*Telemetry, error) {
	t := &Telemetry{}
	for _, opt := range opts {
		opt(t)
	}

	if t.tracerProvider == nil {
		t.tracerProvider = otel.GetTracerProvider()
	}
	if t.meterProvider == nil {
		t.meterProvider = otel.GetMeterProvider()
	}

	t.tracer = t.tracerProvider.Tracer(scopeName)
	meter := t.meterProvider.Meter(scopeName)

	var err error
	if t.requests, err = meter.Int64Counter("squall.requests",
		metric.WithDescription("Logical requests by outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if t.events, err = meter.Int64Counter("squall.stream.events",
		metric.WithDescription("Normalized stream events by kind"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, err
	}
	if t.bytes, err = meter.Int64Counter("squall.stream.bytes",
		metric.WithDescription("Decoded stream payload bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if t.retries, err = meter.Int64Counter("squall.request.retries",
		metric.WithDescription("Retry attempts by triggering error code"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return nil, err
	}
	if t.duration, err = meter.Float64Histogram("squall.request.duration",
		metric.WithDescription("Logical request duration including retries"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return t, nil
}

// requestSpan tracks the span for one in-flight logical request.
type requestSpan struct {
	mu   sync.Mutex
	ctx  context.Context
	span trace.Span
}

// Observer returns lifecycle callbacks backed by this Telemetry. Span
// state is private to the returned value, so create one observer per
// Session.
func (t *Telemetry) Observer() core.Observer {
	state := &requestSpan{}

	return core.Observer{
		OnStart: func(opts core.Options) {
			state.mu.Lock()
			defer state.mu.Unlock()
			state.ctx, state.span = t.tracer.Start(context.Background(), "squall.request",
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					attribute.Int64("squall.timeout_ms", opts.Timeout.Milliseconds()),
					attribute.Int("squall.max_retries", opts.MaxRetries),
				),
			)
		},
		OnEvent: func(ev core.StreamEvent, _ core.RequestMetrics) {
			state.mu.Lock()
			defer state.mu.Unlock()
			if state.span == nil {
				return
			}
			t.events.Add(state.ctx, 1,
				metric.WithAttributes(attribute.String("squall.event.kind", string(ev.Kind))))
			t.bytes.Add(state.ctx, int64(ev.Size()))
		},
		OnRetry: func(attempt int, lastErr *core.ClassifiedError) {
			state.mu.Lock()
			defer state.mu.Unlock()
			if state.span == nil {
				return
			}
			state.span.AddEvent("retry", trace.WithAttributes(
				attribute.Int("squall.retry.attempt", attempt),
				attribute.String("squall.error.code", string(lastErr.Code)),
			))
			t.retries.Add(state.ctx, 1,
				metric.WithAttributes(attribute.String("squall.error.code", string(lastErr.Code))))
		},
		OnError: func(cerr *core.ClassifiedError, m core.RequestMetrics) {
			state.mu.Lock()
			defer state.mu.Unlock()
			if state.span == nil {
				return
			}
			state.span.RecordError(cerr)
			state.span.SetStatus(codes.Error, string(cerr.Code))
			t.finish(state, m, string(cerr.Code))
		},
		OnComplete: func(m core.RequestMetrics) {
			state.mu.Lock()
			defer state.mu.Unlock()
			if state.span == nil {
				return
			}
			state.span.SetStatus(codes.Ok, "")
			t.finish(state, m, "ok")
		},
	}
}

// finish stamps the terminal attributes, ends the span, and records the
// per-request metrics. A zero RequestMetrics means metrics were
// disabled for the request; the span and outcome counter still record.
// Callers hold state.mu.
func (t *Telemetry) finish(state *requestSpan, m core.RequestMetrics, outcome string) {
	if m.RequestID != "" {
		state.span.SetAttributes(
			attribute.String("squall.request_id", m.RequestID),
			attribute.Int("squall.event_count", m.EventCount),
			attribute.Int("squall.byte_count", m.ByteCount),
			attribute.Int("squall.error_count", m.ErrorCount),
			attribute.Int("squall.retry_count", m.RetryCount),
		)
	}
	state.span.End()

	attrs := metric.WithAttributes(attribute.String("squall.outcome", outcome))
	t.requests.Add(state.ctx, 1, attrs)
	if !m.StartedAt.IsZero() {
		t.duration.Record(state.ctx, m.Elapsed().Seconds(), attrs)
	}

	state.span = nil
}
