package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Collaborator is the external assistant call the engine wraps. It
// receives the sanitized prompt and returns one of the stream shapes
// Normalize recognizes, or an error. The engine treats the response as
// opaque beyond shape detection.
type Collaborator func(ctx context.Context, input string, opts Options) (any, error)

// RunState identifies the orchestrator's position in the attempt loop.
type RunState int

const (
	StateIdle RunState = iota
	StateAttempting
	StateAwaitingBackoff
	StateCompleted
	StateFailed
)

// String returns the lowercase name of the state.
func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateAwaitingBackoff:
		return "awaiting_backoff"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("RunState(%d)", int(s))
}

// Orchestrator owns the attempt loop for one logical request: it calls
// the collaborator, feeds the response through Normalize, applies the
// per-attempt deadline, and consults the classifier on failure to
// decide between backoff and terminal failure. It also owns the live
// RequestMetrics; observers only ever see copies.
//
// An Orchestrator runs one request at a time. Run resets all state, so
// reusing an instance for a new logical request is safe once the
// previous Run returned.
type Orchestrator struct {
	collab   Collaborator
	opts     Options
	observer Observer
	backoff  BackoffPolicy

	mu      sync.RWMutex
	state   RunState
	metrics RequestMetrics
}

// NewOrchestrator creates an orchestrator for one logical request.
// opts fields left at zero take their defaults.
func NewOrchestrator(collab Collaborator, opts Options, observer Observer) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		collab:   collab,
		opts:     opts,
		observer: observer,
		backoff:  NewExponentialBackoff(opts.RetryDelay),
		state:    StateIdle,
	}
}

// WithBackoff overrides the backoff policy.
func (o *Orchestrator) WithBackoff(p BackoffPolicy) *Orchestrator {
	if p != nil {
		o.backoff = p
	}
	return o
}

// State returns the current position in the attempt loop.
func (o *Orchestrator) State() RunState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Metrics returns a copy of the request metrics. When metrics exposure
// is disabled it returns the zero value; tracking still happens
// internally.
func (o *Orchestrator) Metrics() RequestMetrics {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.metricsLocked()
}

func (o *Orchestrator) metricsLocked() RequestMetrics {
	if !o.opts.MetricsEnabled() {
		return RequestMetrics{}
	}
	return o.metrics
}

// Run executes the attempt loop to a terminal state. It returns nil on
// Completed and the terminal *ClassifiedError on Failed; callers never
// see an unclassified error. Blocking; cancel ctx to abort.
//
// The raw input is sanitized once and every attempt replays the same
// sanitized prompt.
func (o *Orchestrator) Run(ctx context.Context, input any) error {
	o.mu.Lock()
	o.state = StateIdle
	o.metrics = newRequestMetrics()
	o.mu.Unlock()

	o.observer.emitStart(o.opts)

	if o.collab == nil {
		return o.failAttempt(NewClassifiedError(CodeAgentError, "collaborator is missing", ErrNoCollaborator))
	}

	prompt := SanitizeMessage(input)
	if prompt == "" {
		o.setState(StateAttempting)
		return o.failAttempt(NewClassifiedError(CodeInvalidMessage, "empty message after sanitization", nil))
	}

	var lastErr *ClassifiedError
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			o.mu.Lock()
			o.metrics.RetryCount++
			o.mu.Unlock()
			o.observer.emitRetry(attempt, lastErr)

			o.setState(StateAwaitingBackoff)
			select {
			case <-ctx.Done():
				// The prior attempt already counted its failure, so a
				// cancel during backoff terminates without another
				// error increment.
				return o.fail(NewClassifiedError(CodeAborted, "request canceled during backoff", ctx.Err()))
			case <-time.After(o.backoff.NextDelay(attempt)):
			}
		}

		o.setState(StateAttempting)
		err := o.attempt(ctx, prompt)
		if err == nil {
			return o.complete()
		}

		lastErr = Classify(err)
		if lastErr.Retryable && attempt < o.opts.MaxRetries {
			o.mu.Lock()
			o.metrics.ErrorCount++
			o.mu.Unlock()
			continue
		}
		return o.failAttempt(lastErr)
	}
}

// attempt runs one collaborator call plus full stream consumption under
// the per-attempt deadline. The collaborator is driven from its own
// goroutine so a call that ignores ctx still cannot hold the attempt
// past its deadline.
func (o *Orchestrator) attempt(parent context.Context, prompt string) error {
	ctx, cancel := context.WithTimeout(parent, o.opts.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		resp, err := o.collab(ctx, prompt, o.opts)
		if err != nil {
			done <- err
			return
		}
		done <- Normalize(ctx, resp, o.sink(ctx))
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		return o.mapContextError(parent, ctx, err)
	case <-ctx.Done():
		return o.mapContextError(parent, ctx, ctx.Err())
	}
}

// mapContextError disambiguates the two cancellation sources: the
// caller's context maps to ABORTED (an explicit decision, not retried),
// the per-attempt deadline maps to TIMEOUT (transient, retried).
func (o *Orchestrator) mapContextError(parent, attempt context.Context, err error) error {
	if parent.Err() != nil {
		return NewClassifiedError(CodeAborted, "request canceled by caller", parent.Err())
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return NewClassifiedError(CodeTimeout,
			fmt.Sprintf("attempt exceeded %v deadline", o.opts.Timeout), context.DeadlineExceeded)
	}
	return err
}

// sink returns the per-attempt event sink: it updates metrics and
// forwards the event with a metrics copy. Events arriving after the
// attempt lost its deadline race are dropped so terminal callbacks stay
// last.
func (o *Orchestrator) sink(ctx context.Context) EventSink {
	return func(ev StreamEvent) {
		if ctx.Err() != nil {
			return
		}
		o.mu.Lock()
		o.metrics.EventCount++
		o.metrics.ByteCount += ev.Size()
		view := o.metricsLocked()
		o.mu.Unlock()
		o.observer.emitEvent(ev, view)
	}
}

func (o *Orchestrator) setState(s RunState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) complete() error {
	o.mu.Lock()
	o.metrics.FinishedAt = time.Now()
	o.state = StateCompleted
	view := o.metricsLocked()
	o.mu.Unlock()
	o.observer.emitComplete(view)
	return nil
}

// failAttempt records a failed attempt and terminates.
func (o *Orchestrator) failAttempt(cerr *ClassifiedError) error {
	o.mu.Lock()
	o.metrics.ErrorCount++
	o.mu.Unlock()
	return o.fail(cerr)
}

// fail terminates the request without touching the error count.
func (o *Orchestrator) fail(cerr *ClassifiedError) error {
	o.mu.Lock()
	o.metrics.FinishedAt = time.Now()
	o.state = StateFailed
	view := o.metricsLocked()
	o.mu.Unlock()
	o.observer.emitError(cerr, view)
	return cerr
}
