package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"umsagent/mcp"
	"umsagent/model"
)

const anthropicMaxTokens = 4096 // required by the Anthropic API

// AnthropicProvider implements model.Provider using the official Anthropic
// SDK. Tool calls arrive as tool_use content blocks rather than a dedicated
// field, so extraction happens after the response (or accumulated stream) is
// complete.
type AnthropicProvider struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicProvider creates an Anthropic provider instance. The API key
// is required; baseURL and model fall back to the public API and the current
// Sonnet release.
func NewAnthropicProvider(baseURL, apiKey, modelName string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if modelName != "" {
		anthropicModel = anthropic.Model(modelName)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{
		client: &client,
		model:  anthropicModel,
	}, nil
}

// Complete implements model.Provider.Complete.
func (p *AnthropicProvider) Complete(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (model.Message, error) {
	resp, err := p.client.Messages.New(ctx, p.params(messages, tools))
	if err != nil {
		return model.Message{}, wrapAnthropicError(err)
	}

	content, toolCalls, err := fromAnthropicContent(resp.Content)
	if err != nil {
		return model.Message{}, err
	}
	return model.NewAssistantMessage(content, toolCalls), nil
}

// Stream implements model.Provider.Stream. Events are accumulated into a
// full message while text deltas stream out; tool_use blocks only become
// visible once the stream ends, at which point they are emitted as tool_call
// events.
func (p *AnthropicProvider) Stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) (model.Message, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(messages, tools))

	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return model.Message{}, &model.ModelProviderError{Provider: "anthropic", Message: "accumulate stream event", Err: err}
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if deltaVariant, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok && callback != nil {
				if cbErr := callback(model.StreamEvent{Type: model.EventTextDelta, Text: deltaVariant.Text}); cbErr != nil {
					callback = nil
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return model.Message{}, err
		}
		return model.Message{}, wrapAnthropicError(err)
	}

	content, toolCalls, err := fromAnthropicContent(msg.Content)
	if err != nil {
		return model.Message{}, err
	}

	if callback != nil {
		for i := range toolCalls {
			if cbErr := callback(model.StreamEvent{Type: model.EventToolCall, ToolCall: &toolCalls[i]}); cbErr != nil {
				break
			}
		}
	}

	return model.NewAssistantMessage(content, toolCalls), nil
}

func (p *AnthropicProvider) params(messages []model.Message, tools []mcptypes.Tool) anthropic.MessageNewParams {
	anthropicMessages, system := toAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: anthropicMaxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = mcp.ToAnthropicTools(tools)
	}
	return params
}

// fromAnthropicContent splits response content blocks into final text and
// tool calls.
func fromAnthropicContent(content []anthropic.ContentBlockUnion) (string, []model.ToolCall, error) {
	var text string
	var toolCalls []model.ToolCall

	for _, block := range content {
		switch blockVariant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += blockVariant.Text

		case anthropic.ToolUseBlock:
			var args map[string]any
			if len(blockVariant.Input) > 0 {
				if err := json.Unmarshal(blockVariant.Input, &args); err != nil {
					return "", nil, &model.ToolCallParseError{
						Tool:   blockVariant.Name,
						CallID: blockVariant.ID,
						Raw:    string(blockVariant.Input),
						Err:    err,
					}
				}
			}
			toolCalls = append(toolCalls, model.ToolCall{
				ID:        blockVariant.ID,
				Name:      blockVariant.Name,
				Arguments: args,
			})
		}
	}

	return text, toolCalls, nil
}

func wrapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &model.ModelProviderError{
			Provider: "anthropic",
			Status:   apiErr.StatusCode,
			Message:  apiErr.Error(),
			Err:      err,
		}
	}
	return &model.ModelProviderError{Provider: "anthropic", Message: err.Error(), Err: err}
}
