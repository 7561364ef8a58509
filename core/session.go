package core

import (
	"context"
	"sync"
)

// RequestSnapshot is the host-visible projection of one session's
// state. It is updated only from orchestrator callbacks and frozen once
// the request reaches a terminal state.
type RequestSnapshot struct {
	// IsLoading is true from Start until the terminal callback.
	IsLoading bool

	// IsStreaming is true while events may still be produced.
	IsStreaming bool

	// LastError is the terminal error of the most recent request, nil
	// after success. The pointed-to value is immutable.
	LastError *ClassifiedError

	// Metrics is the latest metrics copy the orchestrator published.
	Metrics RequestMetrics

	// RetryCount tracks retries of the in-flight request. It resets to
	// zero on success so a completed request does not keep wearing a
	// retry badge; Metrics.RetryCount keeps the true total.
	RetryCount int
}

// pendingRequest captures the Start triple for verbatim replay.
type pendingRequest struct {
	collab Collaborator
	input  any
	opts   Options
}

// Session is the integration surface a host UI drives: it starts
// requests, exposes a live snapshot, and supports replaying the last
// request. A Session runs at most one logical request at a time;
// starting a new one cancels the prior run and waits for it to settle
// before beginning. Safe for concurrent use.
type Session struct {
	// startMu serializes Start, Retry, and Reset so exactly one
	// orchestrator ever mutates the snapshot.
	startMu sync.Mutex

	mu       sync.Mutex
	observer Observer
	backoff  BackoffPolicy
	snap     RequestSnapshot
	pending  *pendingRequest
	cancel   context.CancelFunc
	done     chan struct{}

	// gen identifies the current run. Callbacks from a superseded run
	// carry a stale gen and are dropped, so an aborted run's straggler
	// events can never leak into the next run's snapshot.
	gen int
}

// NewSession creates a session with no observer wired.
func NewSession() *Session {
	return &Session{}
}

// WithObserver sets the host observer. Callbacks fire after the
// snapshot has been updated, so reading Snapshot from inside a callback
// sees the state that triggered it.
func (s *Session) WithObserver(obs Observer) *Session {
	s.mu.Lock()
	s.observer = obs
	s.mu.Unlock()
	return s
}

// WithBackoff overrides the backoff policy for subsequent requests.
func (s *Session) WithBackoff(p BackoffPolicy) *Session {
	s.mu.Lock()
	s.backoff = p
	s.mu.Unlock()
	return s
}

// Start begins a new logical request and returns once it is running.
// The triple is stored for Retry before the orchestrator launches.
// Completion is signaled through the observer and Wait; the terminal
// error also lands in the snapshot.
func (s *Session) Start(ctx context.Context, collab Collaborator, input any, opts Options) error {
	if collab == nil {
		return ErrNoCollaborator
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.abort()

	s.mu.Lock()
	s.pending = &pendingRequest{collab: collab, input: input, opts: opts}
	backoff := s.backoff
	s.gen++
	gen := s.gen

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	orch := NewOrchestrator(collab, opts, s.hooks(gen))
	if backoff != nil {
		orch.WithBackoff(backoff)
	}

	go func() {
		defer close(done)
		defer cancel()
		// The terminal error reaches the snapshot via hooks.
		_ = orch.Run(runCtx, input)
	}()
	return nil
}

// Retry replays the last Start call verbatim: same collaborator, same
// input, same options. It is a no-op when nothing has been started
// since the last Reset.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	p := s.pending
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	return s.Start(ctx, p.collab, p.input, p.opts)
}

// Reset aborts any in-flight request, restores the initial snapshot,
// and discards the replay state.
func (s *Session) Reset() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.abort()

	s.mu.Lock()
	s.snap = RequestSnapshot{}
	s.pending = nil
	s.done = nil
	s.gen++
	s.mu.Unlock()
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() RequestSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Wait blocks until the in-flight request reaches a terminal state and
// returns its terminal error, nil on success. It returns immediately
// when nothing is running.
func (s *Session) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.LastError != nil {
		return s.snap.LastError
	}
	return nil
}

// abort cancels the in-flight run, if any, and waits for it to finish.
// Callers hold startMu.
func (s *Session) abort() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// hooks wraps the host observer with the snapshot mutations for each
// lifecycle transition. Snapshot updates happen under the lock; the
// host callback fires after the lock is released. Each hook verifies
// gen so a superseded run cannot touch the snapshot, and the streaming
// hooks additionally require the request to still be in flight so a
// straggler event cannot land after the terminal callback.
func (s *Session) hooks(gen int) Observer {
	return Observer{
		OnStart: func(opts Options) {
			s.mu.Lock()
			if s.gen != gen {
				s.mu.Unlock()
				return
			}
			host := s.observer
			s.snap = RequestSnapshot{IsLoading: true, IsStreaming: true}
			s.mu.Unlock()
			host.emitStart(opts)
		},
		OnEvent: func(ev StreamEvent, m RequestMetrics) {
			s.mu.Lock()
			if s.gen != gen || !s.snap.IsLoading {
				s.mu.Unlock()
				return
			}
			host := s.observer
			s.snap.Metrics = m
			s.mu.Unlock()
			host.emitEvent(ev, m)
		},
		OnRetry: func(attempt int, lastErr *ClassifiedError) {
			s.mu.Lock()
			if s.gen != gen || !s.snap.IsLoading {
				s.mu.Unlock()
				return
			}
			host := s.observer
			s.snap.RetryCount = attempt
			s.mu.Unlock()
			host.emitRetry(attempt, lastErr)
		},
		OnError: func(cerr *ClassifiedError, m RequestMetrics) {
			s.mu.Lock()
			if s.gen != gen {
				s.mu.Unlock()
				return
			}
			host := s.observer
			s.snap.IsLoading = false
			s.snap.IsStreaming = false
			s.snap.LastError = cerr
			s.snap.Metrics = m
			s.mu.Unlock()
			host.emitError(cerr, m)
		},
		OnComplete: func(m RequestMetrics) {
			s.mu.Lock()
			if s.gen != gen {
				s.mu.Unlock()
				return
			}
			host := s.observer
			s.snap.IsLoading = false
			s.snap.IsStreaming = false
			s.snap.Metrics = m
			s.snap.RetryCount = 0
			s.mu.Unlock()
			host.emitComplete(m)
		},
	}
}
