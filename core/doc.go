// Package core provides the squall streaming-response engine: it
// normalizes heterogeneous assistant responses into one ordered event
// stream and drives the retry loop around each request.
//
// Squall is the resilience layer between a chat front end and an
// assistant backend. The front end hands squall an input and a
// [Collaborator]; squall sanitizes the input, calls the collaborator,
// detects which stream shape came back, and delivers an ordered
// [StreamEvent] sequence plus lifecycle callbacks the front end can
// render from.
//
// # Session and Collaborator
//
// The primary entry point is [Session], which owns one logical request
// at a time and exposes a [RequestSnapshot] for rendering:
//
//	session := core.NewSession().WithObserver(myObserver)
//	err := session.Start(ctx, collaborator, "What's the weather in Lima?", core.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	if err := session.Wait(); err != nil {
//	    // err is always a *core.ClassifiedError
//	}
//
// A [Collaborator] is any function with the right shape; wrap your
// backend client in one:
//
//	collaborator := func(ctx context.Context, input string, opts core.Options) (any, error) {
//	    return backend.Stream(ctx, input)
//	}
//
// Use [Session.Retry] to replay the last request verbatim and
// [Session.Reset] to return to the initial state. For lower-level
// control, drive an [Orchestrator] directly.
//
// # Streaming Shapes
//
// [Normalize] accepts any of five response shapes and converts each to
// the same ordered event sequence. Detection runs in a fixed precedence
// order:
//   - [TokenStream] (or a string channel or slice): plain text fragments
//   - [RecordStream] (or a [Record] channel or slice): typed records
//     carrying text, tool activity, or errors
//   - an untyped channel or slice of items probed per element
//   - an [io.Reader] drained as a UTF-8 byte stream
//   - a plain string or string-bearing value, emitted as one event
//
// A response matching none of the shapes fails with [CodeNoStream] and
// no events are fabricated. Empty text fragments are dropped, so every
// delivered event advances the transcript.
//
// # Error Classification
//
// Every terminal failure is a [*ClassifiedError] with a stable
// [ErrorCode] and a retryable flag derived from the code:
//
//	if core.CodeOf(err) == core.CodeUnauthorized {
//	    // prompt for a new API key
//	}
//	if core.IsRetryable(err) {
//	    // a later Session.Retry may succeed
//	}
//
// [Classify] is pure: the same error value always maps to the same
// code, unknown inputs map to [CodeUnknown], and it never panics.
// Transient codes ([CodeTimeout], [CodeNetworkError], [CodeOverloaded],
// [CodeRateLimit]) are retryable; the rest, [CodeAborted] and
// [CodeUnauthorized] included, are not.
//
// # Retry
//
// The [Orchestrator] retries retryable failures up to
// [Options].MaxRetries additional attempts with exponential backoff and
// jitter:
//
//	delay = RetryDelay * 2^(retry-1) + uniform(0, 1s)
//
// Each attempt runs under [Options].Timeout; an attempt that exceeds it
// fails with [CodeTimeout] and is retried, while caller cancellation
// maps to [CodeAborted] and terminates immediately. Replace the
// schedule by implementing [BackoffPolicy].
//
// # Observers
//
// [Observer] is a struct of optional callbacks; leave nil what you do
// not need:
//
//	obs := core.Observer{
//	    OnEvent: func(ev core.StreamEvent, m core.RequestMetrics) {
//	        fmt.Print(ev.Text)
//	    },
//	    OnRetry: func(attempt int, lastErr *core.ClassifiedError) {
//	        log.Printf("retrying (attempt %d): %v", attempt, lastErr)
//	    },
//	}
//
// OnError fires exactly once per request and only for the terminal
// failure; retried failures surface through OnRetry instead. Use
// [MergeObservers] to fan out to several observers and
// [NewLoggingObserver] for a ready-made logging one.
//
// # Metrics
//
// [RequestMetrics] counts events, decoded bytes, failed attempts, and
// retries for one request. Observers receive copies, so a held metrics
// value never changes underneath the caller. Setting
// [Options].DisableMetrics zeroes what observers and [Session.Snapshot]
// see without turning off internal tracking.
//
// # Thread Safety
//
// [Session] and [Orchestrator] are safe for concurrent use.
// [Observer] callbacks run on the request goroutine, one at a time.
// [Normalize] delivers events from a single goroutine in stream order.
package core
