package model

import "testing"

func assistantWithCalls(ids ...string) Message {
	calls := make([]ToolCall, len(ids))
	for i, id := range ids {
		calls[i] = ToolCall{ID: id, Name: "users.get_user"}
	}
	return NewAssistantMessage("", calls)
}

func TestValidateToolPairing(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		wantErr  bool
	}{
		{
			name: "plain exchange",
			messages: []Message{
				NewSystemMessage("sys"),
				NewUserMessage("hi"),
				NewAssistantMessage("hello", nil),
			},
		},
		{
			name: "single call answered",
			messages: []Message{
				assistantWithCalls("t1"),
				NewToolMessage(ToolCall{ID: "t1", Name: "users.get_user"}, "found"),
			},
		},
		{
			name: "parallel calls each answered",
			messages: []Message{
				assistantWithCalls("t1", "t2"),
				NewToolMessage(ToolCall{ID: "t1", Name: "users.get_user"}, "a"),
				NewToolMessage(ToolCall{ID: "t2", Name: "users.get_user"}, "b"),
			},
		},
		{
			name: "unanswered call",
			messages: []Message{
				assistantWithCalls("t1"),
			},
			wantErr: true,
		},
		{
			name: "orphaned tool message",
			messages: []Message{
				NewToolMessage(ToolCall{ID: "t9", Name: "users.get_user"}, "x"),
			},
			wantErr: true,
		},
		{
			name: "call answered twice",
			messages: []Message{
				assistantWithCalls("t1"),
				NewToolMessage(ToolCall{ID: "t1", Name: "users.get_user"}, "a"),
				NewToolMessage(ToolCall{ID: "t1", Name: "users.get_user"}, "b"),
			},
			wantErr: true,
		},
		{
			name: "duplicate call id across rounds",
			messages: []Message{
				assistantWithCalls("t1"),
				NewToolMessage(ToolCall{ID: "t1", Name: "users.get_user"}, "a"),
				assistantWithCalls("t1"),
			},
			wantErr: true,
		},
		{
			name: "tool message without id",
			messages: []Message{
				assistantWithCalls("t1"),
				{Role: RoleTool, Content: "x"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToolPairing(tt.messages)
			if tt.wantErr && err == nil {
				t.Error("expected pairing violation, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewToolMessageCarriesCallIdentity(t *testing.T) {
	call := ToolCall{ID: "t1", Name: "ddg.search", Arguments: map[string]any{"query": "go"}}
	msg := NewToolMessage(call, "results")

	if msg.Role != RoleTool || msg.ToolCallID != "t1" || msg.Name != "ddg.search" {
		t.Errorf("tool message missing call identity: %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}
