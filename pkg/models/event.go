// Package models defines the core data types shared across stratrunner.
package models

import "time"

// EventType identifies the kind of step an execution event records.
type EventType string

const (
	// EventOrchestrating is emitted while the agent is deciding what to do next
	EventOrchestrating EventType = "orchestrating"

	// EventToolsSelected is emitted when the agent has chosen its tools
	EventToolsSelected EventType = "tools_selected"

	// EventToolCall is emitted just before a tool is invoked
	EventToolCall EventType = "tool_call"

	// EventToolResult is emitted when a tool invocation returns
	EventToolResult EventType = "tool_result"

	// EventCompleted is emitted when the strategy run finishes successfully
	EventCompleted EventType = "completed"

	// EventError is emitted when the strategy run fails
	EventError EventType = "error"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventOrchestrating, EventToolsSelected, EventToolCall, EventToolResult, EventCompleted, EventError:
		return true
	}
	return false
}

// EventPayload carries the per-type fields of an event. Only the fields
// belonging to the event's type are populated; use the NewXxxEvent
// constructors rather than filling this struct by hand.
type EventPayload struct {
	// Tool is the tool name (tool_call, tool_result)
	Tool string `json:"tool,omitempty"`

	// Args are the tool arguments (tool_call)
	Args map[string]interface{} `json:"args,omitempty"`

	// Tools are the selected tool names (tools_selected)
	Tools []string `json:"tools,omitempty"`

	// Result is the free-text tool outcome (tool_result)
	Result string `json:"result,omitempty"`

	// Note is a short human-readable annotation (orchestrating, completed, error)
	Note string `json:"note,omitempty"`

	// TxHash is the transaction hash, if the step produced one (tool_result)
	TxHash string `json:"tx_hash,omitempty"`

	// BlockNumber is the block the transaction landed in (tool_result)
	BlockNumber int64 `json:"block_number,omitempty"`

	// Error is the failure message (error)
	Error string `json:"error,omitempty"`
}

// Event is one observed step of an execution. ID and Timestamp are assigned
// by the event logger at append time and should be left zero by callers.
type Event struct {
	// ID is unique per event
	ID string `json:"id"`

	// Type of the event
	Type EventType `json:"type"`

	// Timestamp is when the event was appended
	Timestamp time.Time `json:"timestamp"`

	// Payload carries the type-specific fields
	Payload EventPayload `json:"payload"`
}

// NewOrchestratingEvent builds an orchestrating event with an optional note.
func NewOrchestratingEvent(note string) Event {
	return Event{Type: EventOrchestrating, Payload: EventPayload{Note: note}}
}

// NewToolsSelectedEvent builds a tools_selected event.
func NewToolsSelectedEvent(tools []string) Event {
	return Event{Type: EventToolsSelected, Payload: EventPayload{Tools: tools}}
}

// NewToolCallEvent builds a tool_call event.
func NewToolCallEvent(tool string, args map[string]interface{}) Event {
	return Event{Type: EventToolCall, Payload: EventPayload{Tool: tool, Args: args}}
}

// NewToolResultEvent builds a tool_result event. TxHash and blockNumber may
// be zero when the tool did not touch the chain.
func NewToolResultEvent(tool, result, txHash string, blockNumber int64) Event {
	return Event{Type: EventToolResult, Payload: EventPayload{
		Tool:        tool,
		Result:      result,
		TxHash:      txHash,
		BlockNumber: blockNumber,
	}}
}

// NewCompletedEvent builds a completed event.
func NewCompletedEvent(note string) Event {
	return Event{Type: EventCompleted, Payload: EventPayload{Note: note}}
}

// NewErrorEvent builds an error event.
func NewErrorEvent(message, note string) Event {
	return Event{Type: EventError, Payload: EventPayload{Error: message, Note: note}}
}
