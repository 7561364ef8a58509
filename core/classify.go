package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a stable identifier for a failure category. Hosts branch
// on codes rather than message text, which providers change freely.
type ErrorCode string

const (
	CodeTimeout        ErrorCode = "TIMEOUT"
	CodeNetworkError   ErrorCode = "NETWORK_ERROR"
	CodeOverloaded     ErrorCode = "OVERLOADED"
	CodeRateLimit      ErrorCode = "RATE_LIMIT"
	CodeAborted        ErrorCode = "ABORTED"
	CodeParseError     ErrorCode = "PARSE_ERROR"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeNoStream       ErrorCode = "NO_STREAM"
	CodeInvalidMessage ErrorCode = "INVALID_MESSAGE"
	CodeAgentError     ErrorCode = "AGENT_ERROR"
	CodeUnknown        ErrorCode = "UNKNOWN"
)

// retryableByCode is the fixed retry lookup. Only transient transport
// and capacity failures are retryable; everything else, including
// unclassified failures, terminates the request so that unknown errors
// cannot cause retry storms.
var retryableByCode = map[ErrorCode]bool{
	CodeTimeout:        true,
	CodeNetworkError:   true,
	CodeOverloaded:     true,
	CodeRateLimit:      true,
	CodeAborted:        false,
	CodeParseError:     false,
	CodeUnauthorized:   false,
	CodeForbidden:      false,
	CodeNotFound:       false,
	CodeNoStream:       false,
	CodeInvalidMessage: false,
	CodeAgentError:     false,
	CodeUnknown:        false,
}

// classifyRule maps lowercase message keywords to a code.
type classifyRule struct {
	code     ErrorCode
	keywords []string
}

// classifyRules is evaluated in order; the first keyword hit wins.
// Ordering is load-bearing: "network timeout" lands on TIMEOUT because
// the timeout rule outranks the network rule, and a message mentioning
// both a deadline and a cancel resolves to TIMEOUT rather than ABORTED.
var classifyRules = []classifyRule{
	{CodeTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{CodeNetworkError, []string{"network", "connection refused", "connection reset", "no such host", "broken pipe", "unexpected eof", "fetch failed"}},
	{CodeOverloaded, []string{"overloaded", "over capacity", "service unavailable"}},
	{CodeRateLimit, []string{"rate limit", "too many requests", "429"}},
	{CodeAborted, []string{"abort", "cancel"}},
	{CodeParseError, []string{"parse", "unmarshal", "invalid json", "malformed", "decode"}},
	{CodeUnauthorized, []string{"unauthorized", "401", "api key", "auth"}},
	{CodeForbidden, []string{"forbidden", "403", "permission denied"}},
	{CodeNotFound, []string{"not found", "404"}},
	{CodeNoStream, []string{"no stream", "not streamable", "stream shape"}},
	{CodeInvalidMessage, []string{"invalid message", "empty message"}},
	{CodeAgentError, []string{"agent", "assistant unavailable"}},
}

// Classify maps an arbitrary failure to a ClassifiedError. It is
// deterministic and side-effect free: the same error always yields the
// same classification, and classification itself never fails.
//
// Already-classified errors pass through unchanged so wrapping layers
// cannot reclassify a failure. Context sentinels are matched
// structurally before the keyword table runs.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return NewClassifiedError(CodeUnknown, "unknown error", nil)
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewClassifiedError(CodeTimeout, err.Error(), err)
	}
	if errors.Is(err, context.Canceled) {
		return NewClassifiedError(CodeAborted, err.Error(), err)
	}

	msg := err.Error()
	return NewClassifiedError(codeForMessage(msg), msg, err)
}

// ClassifyValue classifies a failure that is not an error value, such
// as a recovered panic payload or a structured rejection from a
// collaborator. Non-string values are serialized to JSON so the
// resulting message stays informative; a bare "[object]"-style
// placeholder is never produced.
func ClassifyValue(v any) *ClassifiedError {
	switch val := v.(type) {
	case nil:
		return NewClassifiedError(CodeUnknown, "unknown error", nil)
	case error:
		return Classify(val)
	case string:
		return NewClassifiedError(codeForMessage(val), val, nil)
	default:
		msg := serialize(val)
		return NewClassifiedError(codeForMessage(msg), msg, nil)
	}
}

// codeForMessage matches the lowercased message against the ordered
// keyword table. Unmatched messages map to UNKNOWN.
func codeForMessage(msg string) ErrorCode {
	lower := strings.ToLower(msg)
	for _, rule := range classifyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.code
			}
		}
	}
	return CodeUnknown
}

// serialize renders an arbitrary value as JSON, falling back to fmt
// formatting for values JSON cannot express.
func serialize(v any) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
