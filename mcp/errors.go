package mcp

import "fmt"

// ConnectionError reports an unreachable transport: failed handshake, dead
// subprocess, or network failure. Connect paths retry with bounded backoff
// before surfacing it.
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcp server %q unreachable: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed server response. Not retried.
type ProtocolError struct {
	Server string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mcp server %q protocol error: %v", e.Server, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ToolInvocationError reports a tool that executed but failed. Detail carries
// the server-reported payload so the model can see what went wrong.
type ToolInvocationError struct {
	Server string
	Tool   string
	Detail string
	Err    error
}

func (e *ToolInvocationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("tool %q on %q failed: %s", e.Tool, e.Server, e.Detail)
	}
	return fmt.Sprintf("tool %q on %q failed: %v", e.Tool, e.Server, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// TimeoutError reports a tool call that exceeded its deadline. The
// conversation layer treats it like a ToolInvocationError but logs it
// distinctly.
type TimeoutError struct {
	Server string
	Tool   string
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %q on %q timed out: %v", e.Tool, e.Server, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// UnknownToolError reports a dispatch to a tool no registered client owns.
type UnknownToolError struct {
	Tool string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Tool)
}
