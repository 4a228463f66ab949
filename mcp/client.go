// Package mcp provides the MCP transport clients (streamable HTTP and stdio
// subprocess) and the router that aggregates their tools into one namespace
// and dispatches model-requested tool calls.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

const (
	protocolVersion = "2025-06-18"
	clientName      = "umsagent"
	clientVersion   = "1.0.0"
)

// ToolClient is the transport-agnostic capability set the router dispatches
// on. Transport concerns (subprocess lifecycle, HTTP reconnect) stay inside
// each implementation.
type ToolClient interface {
	// Name returns the configured server name, used as the tool namespace.
	Name() string

	// ListTools returns the server's tool catalog.
	ListTools(ctx context.Context) ([]mcptypes.Tool, error)

	// CallTool invokes a tool and returns the textual result. Streamed
	// server responses are reassembled into one result before returning;
	// the router's contract is request/response at this layer.
	CallTool(ctx context.Context, tool string, args map[string]any) (string, error)

	// Close releases the transport.
	Close(ctx context.Context) error
}

// session is the slice of the mcp-go client both transports use. Tests
// substitute instrumented fakes.
type session interface {
	Initialize(ctx context.Context, req mcptypes.InitializeRequest) (*mcptypes.InitializeResult, error)
	ListTools(ctx context.Context, req mcptypes.ListToolsRequest) (*mcptypes.ListToolsResult, error)
	CallTool(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error)
	Close() error
}

func initializeSession(ctx context.Context, sess session) (*mcptypes.InitializeResult, error) {
	return sess.Initialize(ctx, mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	})
}

func listSessionTools(ctx context.Context, sess session, server string) ([]mcptypes.Tool, error) {
	result, err := sess.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return nil, &ProtocolError{Server: server, Err: err}
	}
	return result.Tools, nil
}

func callSessionTool(ctx context.Context, sess session, server, tool string, args map[string]any) (string, error) {
	result, err := sess.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      tool,
			Arguments: args,
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &TimeoutError{Server: server, Tool: tool, Err: err}
		}
		return "", &ConnectionError{Server: server, Err: err}
	}

	text := resultText(result)
	if result.IsError {
		return "", &ToolInvocationError{Server: server, Tool: tool, Detail: text}
	}
	return text, nil
}

// resultText flattens the result's content blocks to text. Non-text blocks
// are JSON-encoded so nothing the server returned is silently dropped.
func resultText(result *mcptypes.CallToolResult) string {
	var b strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(mcptypes.TextContent); ok {
			b.WriteString(tc.Text)
			continue
		}
		if raw, err := json.Marshal(content); err == nil {
			b.Write(raw)
		}
	}
	return b.String()
}
