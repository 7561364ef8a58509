package assistant

import (
	"encoding/json"

	"github.com/squall-labs/squall/core"
)

// streamRequest is the request body for the stream endpoint.
type streamRequest struct {
	Input  string `json:"input"`
	Stream bool   `json:"stream"`
}

// wireEvent is one decoded SSE data payload.
type wireEvent struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolArgs   json.RawMessage `json:"tool_args,omitempty"`
	ToolResult string          `json:"tool_result,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// record maps the wire payload onto the engine's record shape. The
// discriminators line up, so this is a field-for-field copy.
func (e wireEvent) record() core.Record {
	return core.Record{
		Type:       e.Type,
		Text:       e.Text,
		ToolName:   e.ToolName,
		ToolArgs:   e.ToolArgs,
		ToolResult: e.ToolResult,
		Message:    e.Message,
	}
}

// errorResponse is the error body returned for non-2xx statuses.
type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
