package core

import (
	"encoding/json"
	"time"
)

// EventKind identifies the type of a normalized stream event.
type EventKind string

const (
	EventText          EventKind = "text"           // Text fragment from the assistant
	EventToolInvoked   EventKind = "tool_invoked"   // Assistant started a tool call
	EventToolCompleted EventKind = "tool_completed" // Tool call finished with a result
	EventError         EventKind = "error"          // Error surfaced inside the stream
)

// StreamEvent is the canonical unit the normalizer emits, independent
// of the shape the collaborator returned. Events for one attempt are
// delivered in the order the underlying stream produced them.
type StreamEvent struct {
	Kind EventKind

	// Text is the decoded fragment. Set only for EventText.
	Text string

	// ToolName and ToolArgs describe an EventToolInvoked.
	ToolName string
	ToolArgs json.RawMessage

	// ToolResult carries the payload of an EventToolCompleted.
	ToolResult string

	// Message carries the payload of an EventError.
	Message string

	// Timestamp is the capture time, stamped when the event is decoded.
	Timestamp time.Time
}

// Size returns the decoded payload length in bytes. Metrics use decoded
// length rather than wire length so byte counts compare across shapes.
func (e StreamEvent) Size() int {
	return len(e.Text) + len(e.ToolName) + len(e.ToolArgs) + len(e.ToolResult) + len(e.Message)
}

// EventSink receives normalized events in stream order. The normalizer
// calls the sink synchronously from its drain loop.
type EventSink func(StreamEvent)
