package provider

import (
	"context"
	"errors"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"umsagent/mcp"
	"umsagent/model"
)

// OpenAIProvider implements model.Provider against the OpenAI
// chat-completions API. A custom base URL points it at OpenAI-compatible
// proxies (DIAL, Azure-style gateways) without any other change.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates an OpenAI provider instance. The API key is
// required; baseURL and model fall back to the public API and gpt-4o.
func NewOpenAIProvider(baseURL, apiKey, modelName string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if modelName == "" {
		modelName = "gpt-4o"
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  modelName,
	}, nil
}

// Complete implements model.Provider.Complete.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (model.Message, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.params(messages, tools))
	if err != nil {
		return model.Message{}, wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return model.Message{}, &model.ModelProviderError{Provider: "openai", Message: "response contained no choices"}
	}

	msg := resp.Choices[0].Message
	toolCalls, err := convertOpenAIToolCalls(msg.ToolCalls)
	if err != nil {
		return model.Message{}, err
	}

	return model.NewAssistantMessage(msg.Content, toolCalls), nil
}

// Stream implements model.Provider.Stream. Text deltas are forwarded as they
// arrive; tool-call argument fragments are accumulated by the SDK and parsed
// only once a call is complete, then emitted as one tool_call event. The
// returned message is built from the accumulator so it is durable regardless
// of what the callback consumer did.
func (p *OpenAIProvider) Stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) (model.Message, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(messages, tools))
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok && callback != nil {
			args, err := parseToolArguments(tool.Name, tool.Arguments)
			if err != nil {
				// The accumulated message carries the call ID; the parse
				// failure is reported there instead of aborting the stream.
				continue
			}
			if cbErr := callback(model.StreamEvent{
				Type:     model.EventToolCall,
				ToolCall: &model.ToolCall{Name: tool.Name, Arguments: args},
			}); cbErr != nil {
				callback = nil
			}
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" && callback != nil {
			if cbErr := callback(model.StreamEvent{
				Type: model.EventTextDelta,
				Text: chunk.Choices[0].Delta.Content,
			}); cbErr != nil {
				callback = nil
			}
		}
	}

	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return model.Message{}, err
		}
		return model.Message{}, wrapOpenAIError(err)
	}
	if len(acc.Choices) == 0 {
		return model.Message{}, &model.ModelProviderError{Provider: "openai", Message: "stream contained no choices"}
	}

	msg := acc.Choices[0].Message
	toolCalls, err := convertOpenAIToolCalls(msg.ToolCalls)
	if err != nil {
		return model.Message{}, err
	}

	return model.NewAssistantMessage(msg.Content, toolCalls), nil
}

func (p *OpenAIProvider) params(messages []model.Message, tools []mcptypes.Tool) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages: toOpenAIMessages(messages),
		Model:    openai.ChatModel(p.model),
	}
	if len(tools) > 0 {
		params.Tools = mcp.ToOpenAITools(tools)
	}
	return params
}

func convertOpenAIToolCalls(calls []openai.ChatCompletionMessageToolCallUnion) ([]model.ToolCall, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	result := make([]model.ToolCall, 0, len(calls))
	for _, call := range calls {
		args, err := parseToolArguments(call.Function.Name, call.Function.Arguments)
		if err != nil {
			var parseErr *model.ToolCallParseError
			if errors.As(err, &parseErr) {
				parseErr.CallID = call.ID
			}
			return nil, err
		}
		result = append(result, model.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	return result, nil
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &model.ModelProviderError{
			Provider: "openai",
			Status:   apiErr.StatusCode,
			Message:  apiErr.Error(),
			Err:      err,
		}
	}
	return &model.ModelProviderError{Provider: "openai", Message: err.Error(), Err: err}
}
