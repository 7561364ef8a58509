package core

import (
	"context"
	"encoding/json"
)

// TokenStream is a pull-based stream of raw text fragments. Next blocks
// until a fragment is available, the stream ends, or ctx is done.
// Implementations return io.EOF after the final fragment.
type TokenStream interface {
	Next(ctx context.Context) (string, error)
}

// Record is one unit of a structured event stream. Type is the
// collaborator's discriminator; the remaining fields carry whichever
// payload the discriminator implies. Collaborators with richer wire
// formats map their events into Records before handing them over.
type Record struct {
	Type       string          // Discriminator, e.g. "text", "tool_call", "tool_result", "error"
	Text       string          // Payload for text records
	ToolName   string          // Tool identifier for tool records
	ToolArgs   json.RawMessage // Raw tool arguments, passed through undecoded
	ToolResult string          // Payload for tool result records
	Message    string          // Payload for error records
}

// RecordStream is a pull-based stream of structured records. Next
// blocks until a record is available, the stream ends, or ctx is done.
// Implementations return io.EOF after the final record.
type RecordStream interface {
	Next(ctx context.Context) (Record, error)
}
