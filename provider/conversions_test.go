package provider

import (
	"errors"
	"testing"

	"umsagent/model"
)

func TestToOpenAIMessages(t *testing.T) {
	messages := []model.Message{
		model.NewSystemMessage("you are a user management agent"),
		model.NewUserMessage("add a user named ada"),
		model.NewAssistantMessage("", []model.ToolCall{
			{ID: "call_1", Name: "users.add_user", Arguments: map[string]any{"name": "ada"}},
		}),
		model.NewToolMessage(model.ToolCall{ID: "call_1", Name: "users.add_user"}, "user created"),
		model.NewAssistantMessage("Done, ada was added.", nil),
	}

	result := toOpenAIMessages(messages)
	if len(result) != 5 {
		t.Fatalf("expected 5 wire messages, got %d", len(result))
	}

	if result[0].OfSystem == nil {
		t.Error("expected system message first")
	}
	if result[1].OfUser == nil {
		t.Error("expected user message second")
	}

	assistant := result[2].OfAssistant
	if assistant == nil {
		t.Fatal("expected assistant message with tool calls")
	}
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(assistant.ToolCalls))
	}
	fn := assistant.ToolCalls[0].OfFunction
	if fn == nil || fn.ID != "call_1" || fn.Function.Name != "users.add_user" {
		t.Errorf("tool call not preserved: %+v", assistant.ToolCalls[0])
	}
	if fn.Function.Arguments != `{"name":"ada"}` {
		t.Errorf("expected JSON-encoded arguments, got %q", fn.Function.Arguments)
	}

	tool := result[3].OfTool
	if tool == nil {
		t.Fatal("expected tool message fourth")
	}
	if tool.ToolCallID != "call_1" {
		t.Errorf("expected tool_call_id 'call_1', got %q", tool.ToolCallID)
	}

	if result[4].OfAssistant == nil {
		t.Error("expected final assistant message")
	}
}

func TestToAnthropicMessages(t *testing.T) {
	messages := []model.Message{
		model.NewSystemMessage("be helpful"),
		model.NewUserMessage("search for go docs"),
		model.NewAssistantMessage("", []model.ToolCall{
			{ID: "toolu_1", Name: "ddg.search", Arguments: map[string]any{"q": "go docs"}},
			{ID: "toolu_2", Name: "fetch.get_page", Arguments: map[string]any{"url": "https://go.dev"}},
		}),
		model.NewToolMessage(model.ToolCall{ID: "toolu_1", Name: "ddg.search"}, "results"),
		model.NewToolMessage(model.ToolCall{ID: "toolu_2", Name: "fetch.get_page"}, "<html>"),
	}

	result, system := toAnthropicMessages(messages)

	if len(system) != 1 || system[0].Text != "be helpful" {
		t.Errorf("expected system prompt extracted, got %+v", system)
	}

	// user, assistant(tool_use x2), user(tool_result x2)
	if len(result) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(result))
	}

	assistant := result[1]
	if len(assistant.Content) != 2 {
		t.Fatalf("expected 2 tool_use blocks, got %d", len(assistant.Content))
	}
	if assistant.Content[0].OfToolUse == nil || assistant.Content[0].OfToolUse.ID != "toolu_1" {
		t.Errorf("expected tool_use block with id toolu_1, got %+v", assistant.Content[0])
	}

	results := result[2]
	if len(results.Content) != 2 {
		t.Fatalf("expected consecutive tool results merged into one message, got %d blocks", len(results.Content))
	}
	if results.Content[0].OfToolResult == nil || results.Content[0].OfToolResult.ToolUseID != "toolu_1" {
		t.Errorf("expected tool_result for toolu_1, got %+v", results.Content[0])
	}
}

func TestParseToolArguments(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantKey string
		wantErr bool
	}{
		{name: "valid object", raw: `{"email":"ada@example.com"}`, wantKey: "email"},
		{name: "empty payload", raw: ""},
		{name: "malformed json", raw: `{"email":`, wantErr: true},
		{name: "non-object payload", raw: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := parseToolArguments("users.add_user", tt.raw)
			if tt.wantErr {
				var parseErr *model.ToolCallParseError
				if !errors.As(err, &parseErr) {
					t.Fatalf("expected ToolCallParseError, got %v", err)
				}
				if parseErr.Tool != "users.add_user" {
					t.Errorf("expected tool name in error, got %q", parseErr.Tool)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if args == nil {
				t.Fatal("expected non-nil arguments map")
			}
			if tt.wantKey != "" {
				if _, ok := args[tt.wantKey]; !ok {
					t.Errorf("expected key %q in %v", tt.wantKey, args)
				}
			}
		})
	}
}
