package assistant

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/squall-labs/squall/core"
)

// statusOverloaded is the non-standard status some assistant backends
// return when shedding load, alongside the usual 503.
const statusOverloaded = 529

// statusError converts a non-2xx response into a classified error so
// the retry loop sees the right code without re-parsing message text.
func statusError(status int, body []byte, requestID string) *core.ClassifiedError {
	var errResp errorResponse
	_ = json.Unmarshal(body, &errResp)

	message := errResp.Error.Message
	if message == "" {
		message = http.StatusText(status)
	}

	msg := fmt.Sprintf("assistant: %d %s", status, message)
	if requestID != "" {
		msg = fmt.Sprintf("%s (request-id %s)", msg, requestID)
	}

	return core.NewClassifiedError(codeForStatus(status), msg, nil)
}

// codeForStatus maps an HTTP status onto the engine's taxonomy.
func codeForStatus(status int) core.ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return core.CodeInvalidMessage
	case http.StatusUnauthorized:
		return core.CodeUnauthorized
	case http.StatusForbidden:
		return core.CodeForbidden
	case http.StatusNotFound:
		return core.CodeNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return core.CodeTimeout
	case http.StatusTooManyRequests:
		return core.CodeRateLimit
	case http.StatusBadGateway, http.StatusServiceUnavailable, statusOverloaded:
		return core.CodeOverloaded
	}
	if status >= 500 {
		return core.CodeAgentError
	}
	return core.CodeUnknown
}

// networkError classifies a transport-level failure.
func networkError(err error) *core.ClassifiedError {
	return core.NewClassifiedError(core.CodeNetworkError, fmt.Sprintf("assistant: network failure: %v", err), err)
}

// decodeError classifies a malformed payload from the backend.
func decodeError(err error) *core.ClassifiedError {
	return core.NewClassifiedError(core.CodeParseError, fmt.Sprintf("assistant: decoding response: %v", err), err)
}
