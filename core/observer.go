package core

// Observer receives lifecycle callbacks for one logical request. All
// fields are optional; the zero value is a valid no-op observer. The
// engine injects no global state, so a host wires exactly the hooks it
// needs and nothing else.
//
// Callbacks fire from the goroutine driving the request. They should
// return quickly; a slow callback stalls stream consumption.
type Observer struct {
	// OnStart fires once per request, before the first attempt.
	OnStart func(opts Options)

	// OnEvent fires for every normalized event, in stream order.
	OnEvent func(ev StreamEvent, metrics RequestMetrics)

	// OnError fires exactly once, at terminal failure. Failures that
	// are retried surface through OnRetry instead.
	OnError func(err *ClassifiedError, metrics RequestMetrics)

	// OnComplete fires exactly once, at terminal success.
	OnComplete func(metrics RequestMetrics)

	// OnRetry fires before each backoff wait. attempt counts retries
	// from 1; lastErr is the failure that triggered the retry.
	OnRetry func(attempt int, lastErr *ClassifiedError)
}

// The emit helpers are nil-safe so callers never check fields.

func (o Observer) emitStart(opts Options) {
	if o.OnStart != nil {
		o.OnStart(opts)
	}
}

func (o Observer) emitEvent(ev StreamEvent, metrics RequestMetrics) {
	if o.OnEvent != nil {
		o.OnEvent(ev, metrics)
	}
}

func (o Observer) emitError(err *ClassifiedError, metrics RequestMetrics) {
	if o.OnError != nil {
		o.OnError(err, metrics)
	}
}

func (o Observer) emitComplete(metrics RequestMetrics) {
	if o.OnComplete != nil {
		o.OnComplete(metrics)
	}
}

func (o Observer) emitRetry(attempt int, lastErr *ClassifiedError) {
	if o.OnRetry != nil {
		o.OnRetry(attempt, lastErr)
	}
}

// MergeObservers fans each callback out to every observer in order.
// Use it to combine, for example, a UI observer with a telemetry one.
func MergeObservers(observers ...Observer) Observer {
	return Observer{
		OnStart: func(opts Options) {
			for _, o := range observers {
				o.emitStart(opts)
			}
		},
		OnEvent: func(ev StreamEvent, m RequestMetrics) {
			for _, o := range observers {
				o.emitEvent(ev, m)
			}
		},
		OnError: func(err *ClassifiedError, m RequestMetrics) {
			for _, o := range observers {
				o.emitError(err, m)
			}
		},
		OnComplete: func(m RequestMetrics) {
			for _, o := range observers {
				o.emitComplete(m)
			}
		},
		OnRetry: func(attempt int, lastErr *ClassifiedError) {
			for _, o := range observers {
				o.emitRetry(attempt, lastErr)
			}
		},
	}
}

// Logger is the minimal logging interface the engine depends on.
// *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// NewLoggingObserver returns an observer that writes one line per
// lifecycle transition to l. Per-event logging is deliberately omitted;
// streams produce too many events for line-per-event output.
func NewLoggingObserver(l Logger) Observer {
	return Observer{
		OnStart: func(opts Options) {
			l.Printf("request start: timeout=%v max_retries=%d", opts.Timeout, opts.MaxRetries)
		},
		OnRetry: func(attempt int, lastErr *ClassifiedError) {
			l.Printf("retry %d: %s", attempt, lastErr.Code)
		},
		OnError: func(err *ClassifiedError, m RequestMetrics) {
			l.Printf("request %s failed: %s (events=%d errors=%d retries=%d)",
				m.RequestID, err.Code, m.EventCount, m.ErrorCount, m.RetryCount)
		},
		OnComplete: func(m RequestMetrics) {
			l.Printf("request %s complete: events=%d bytes=%d retries=%d in %v",
				m.RequestID, m.EventCount, m.ByteCount, m.RetryCount, m.Elapsed())
		},
	}
}
