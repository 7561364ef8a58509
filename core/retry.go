package core

import (
	"math"
	"math/rand"
	"time"
)

// BackoffPolicy determines the wait before each retry. Retries are
// numbered from 1, the first attempt after the initial failure.
type BackoffPolicy interface {
	NextDelay(retry int) time.Duration
}

// backoffJitterMax is the upper bound of the uniform jitter added to
// every delay so concurrent sessions do not retry in lockstep.
const backoffJitterMax = time.Second

// NewExponentialBackoff returns the default policy: base doubles per
// retry, plus up to one second of uniform jitter. A non-positive base
// falls back to the default retry delay.
func NewExponentialBackoff(base time.Duration) BackoffPolicy {
	if base <= 0 {
		base = defaultRetryDelay
	}
	return &exponentialBackoff{base: base}
}

type exponentialBackoff struct {
	base time.Duration
}

func (e *exponentialBackoff) NextDelay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}

	// base * 2^(retry-1), guarded against float overflow
	delay := float64(e.base) * math.Pow(2, float64(retry-1))
	if delay > math.MaxInt64/2 {
		delay = math.MaxInt64 / 2
	}

	delay += rand.Float64() * float64(backoffJitterMax)

	return time.Duration(delay)
}
