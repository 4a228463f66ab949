package mcp

import (
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func TestToOpenAITools(t *testing.T) {
	tests := []struct {
		name     string
		input    []mcptypes.Tool
		expected int
	}{
		{
			name:     "empty tools",
			input:    []mcptypes.Tool{},
			expected: 0,
		},
		{
			name: "single tool with schema",
			input: []mcptypes.Tool{
				{
					Name:        "users.add_user",
					Description: "Add a user",
					InputSchema: mcptypes.ToolInputSchema{
						Type: "object",
						Properties: map[string]any{
							"email": map[string]any{"type": "string"},
						},
						Required: []string{"email"},
					},
				},
			},
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToOpenAITools(tt.input)
			if len(result) != tt.expected {
				t.Fatalf("expected %d tools, got %d", tt.expected, len(result))
			}
			if tt.expected == 0 {
				return
			}

			fn := result[0].GetFunction()
			if fn == nil {
				t.Fatal("expected function tool")
			}
			if fn.Name != "users.add_user" {
				t.Errorf("expected name 'users.add_user', got %q", fn.Name)
			}
			if fn.Parameters["type"] != "object" {
				t.Errorf("expected object parameters, got %v", fn.Parameters["type"])
			}
			required, ok := fn.Parameters["required"].([]string)
			if !ok || len(required) != 1 || required[0] != "email" {
				t.Errorf("expected required [email], got %v", fn.Parameters["required"])
			}
		})
	}
}

func TestToAnthropicTools(t *testing.T) {
	input := []mcptypes.Tool{
		{
			Name:        "fetch.get_page",
			Description: "Fetch a web page",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"url": map[string]any{"type": "string"},
				},
				Required: []string{"url"},
			},
		},
	}

	result := ToAnthropicTools(input)
	if len(result) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result))
	}
	if result[0].OfTool == nil {
		t.Fatal("expected plain tool variant")
	}
	if result[0].OfTool.Name != "fetch.get_page" {
		t.Errorf("expected name 'fetch.get_page', got %q", result[0].OfTool.Name)
	}
	if result[0].OfTool.Description.Value != "Fetch a web page" {
		t.Errorf("expected description set, got %v", result[0].OfTool.Description)
	}
	if len(result[0].OfTool.InputSchema.Required) != 1 {
		t.Errorf("expected required fields preserved")
	}
}

func TestToAnthropicToolsEmpty(t *testing.T) {
	if got := ToAnthropicTools(nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
