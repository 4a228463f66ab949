package model

import "fmt"

// ModelProviderError reports a provider-side failure (HTTP error, refused
// request). It propagates to the service boundary as a turn-level failure;
// conversation state persisted before the failure is kept.
type ModelProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ModelProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

func (e *ModelProviderError) Unwrap() error { return e.Err }

// ToolCallParseError reports malformed tool-call arguments emitted by a
// provider. The conversation manager treats it as recoverable by feeding the
// failure back to the model as a tool message.
type ToolCallParseError struct {
	Tool   string
	CallID string
	Raw    string
	Err    error
}

func (e *ToolCallParseError) Error() string {
	return fmt.Sprintf("unparsable arguments for tool %q: %v", e.Tool, e.Err)
}

func (e *ToolCallParseError) Unwrap() error { return e.Err }
