package model

// StreamEventType discriminates the incremental units emitted while a turn
// streams. Events are transient: the conversation manager accumulates them
// into durable messages before persistence, and the server forwards them to
// the client as they arrive.
type StreamEventType string

const (
	EventConversationID StreamEventType = "conversation_id"
	EventTextDelta      StreamEventType = "text_delta"
	EventToolCall       StreamEventType = "tool_call"
	EventDone           StreamEventType = "done"
	EventError          StreamEventType = "error"
)

// StreamEvent is one incremental unit of a streamed turn. Only the fields
// relevant to the Type are set.
type StreamEvent struct {
	Type           StreamEventType
	ConversationID string
	Text           string
	ToolCall       *ToolCall
	Err            error
}

// StreamCallback receives stream events in emission order. A non-nil return
// stops further forwarding to this consumer; the turn itself keeps running so
// conversation state stays consistent.
type StreamCallback func(StreamEvent) error
