package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts the chat-completion backends (OpenAI-compatible,
// Anthropic) behind one capability set so the conversation manager never
// branches on the vendor.
//
// The interface lives in the model package (not the provider package) so
// implementations can import model without an import cycle.
type Provider interface {
	// Complete runs one non-streaming completion. The returned assistant
	// message carries either final text or one or more tool calls.
	Complete(ctx context.Context, messages []Message, tools []mcptypes.Tool) (Message, error)

	// Stream runs one streaming completion, invoking callback for each
	// event (text deltas, completed tool calls). The sequence is finite and
	// not restartable. The fully accumulated assistant message is returned
	// so the caller can persist it regardless of consumer disconnection.
	Stream(ctx context.Context, messages []Message, tools []mcptypes.Tool, callback StreamCallback) (Message, error)
}
