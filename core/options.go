package core

import "time"

// Defaults applied when an Options field is left at its zero value.
const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// Options configures one logical request. The zero value is usable and
// behaves like DefaultOptions.
type Options struct {
	// Timeout is the per-attempt deadline covering the collaborator
	// call and full stream consumption. Default: 30s.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first
	// failure. Default: 3. Set to -1 to disable retries.
	MaxRetries int

	// RetryDelay is the base for exponential backoff between attempts.
	// Default: 1s.
	RetryDelay time.Duration

	// DisableMetrics suppresses metrics in snapshots and observer
	// callbacks. Tracking still happens internally; only the exposure
	// is turned off. Metrics are published by default.
	DisableMetrics bool
}

// DefaultOptions returns the options applied when the caller passes the
// zero value.
func DefaultOptions() Options {
	return Options{
		Timeout:    defaultTimeout,
		MaxRetries: defaultMaxRetries,
		RetryDelay: defaultRetryDelay,
	}
}

// MetricsEnabled reports whether metrics should be published to
// snapshots and observer callbacks.
func (o Options) MetricsEnabled() bool {
	return !o.DisableMetrics
}

// withDefaults fills unset fields. MaxRetries follows the convention of
// the other knobs: zero means default, negative means none.
func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	} else if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}
	return o
}
