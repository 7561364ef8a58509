package core

import (
	"time"

	"github.com/google/uuid"
)

// RequestMetrics tracks bookkeeping for one logical request across all
// of its attempts. The orchestrator owns the live instance; observers
// and snapshots always receive copies.
type RequestMetrics struct {
	RequestID  string    // Correlates callbacks, logs, and traces
	StartedAt  time.Time // When the logical request began
	FinishedAt time.Time // Zero until the request reaches a terminal state
	EventCount int       // Normalized events delivered across all attempts
	ByteCount  int       // Sum of decoded event payload sizes
	ErrorCount int       // Failed attempts, whether or not they were retried
	RetryCount int       // Attempts beyond the first
}

func newRequestMetrics() RequestMetrics {
	return RequestMetrics{
		RequestID: uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// Elapsed returns the wall time the request has covered so far, or its
// total duration once terminal.
func (m RequestMetrics) Elapsed() time.Duration {
	if m.FinishedAt.IsZero() {
		return time.Since(m.StartedAt)
	}
	return m.FinishedAt.Sub(m.StartedAt)
}
