// Package model defines the provider-agnostic conversation types shared by
// the provider, mcp, conversation, and server layers.
package model

import (
	"fmt"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-requested tool invocation. The ID ties a later tool
// message back to the assistant message that requested the call.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message represents a single entry in a conversation.
//
// A tool message always carries the ToolCallID of the assistant tool call it
// answers, plus the tool's name. Empty fields are omitted from the JSON
// encoding so persisted conversations stay compact.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now().UTC()}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now().UTC()}
}

func NewAssistantMessage(content string, toolCalls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls, Timestamp: time.Now().UTC()}
}

// NewToolMessage builds the tool message answering the given tool call.
func NewToolMessage(call ToolCall, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		Name:       call.Name,
		ToolCallID: call.ID,
		Timestamp:  time.Now().UTC(),
	}
}

// ValidateToolPairing checks that every assistant tool call is answered by
// exactly one tool message and that no tool message references an unknown or
// already-answered call.
func ValidateToolPairing(messages []Message) error {
	answered := make(map[string]bool)

	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			for _, call := range msg.ToolCalls {
				if _, exists := answered[call.ID]; exists {
					return fmt.Errorf("duplicate tool call id %q", call.ID)
				}
				answered[call.ID] = false
			}

		case RoleTool:
			if msg.ToolCallID == "" {
				return fmt.Errorf("tool message missing tool_call_id")
			}
			done, exists := answered[msg.ToolCallID]
			if !exists {
				return fmt.Errorf("orphaned tool message: no tool call %q", msg.ToolCallID)
			}
			if done {
				return fmt.Errorf("tool call %q answered more than once", msg.ToolCallID)
			}
			answered[msg.ToolCallID] = true
		}
	}

	for id, done := range answered {
		if !done {
			return fmt.Errorf("tool call %q has no answering tool message", id)
		}
	}

	return nil
}
