package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"umsagent/config"
)

// StdioClient launches an MCP server as a local subprocess and speaks MCP
// over its standard streams. Stdio servers are not guaranteed to support
// request pipelining, so tool calls are serialized: exactly one in-flight
// request per subprocess, later callers queue on the call lock.
type StdioClient struct {
	name    string
	command string
	args    []string
	env     map[string]string

	callMu sync.Mutex // serializes CallTool against the subprocess

	mu     sync.Mutex // guards sess/cmd/closed
	sess   session
	cmd    *exec.Cmd
	closed bool
}

func NewStdioClient(name, command string, args []string, env map[string]string) *StdioClient {
	return &StdioClient{
		name:    name,
		command: command,
		args:    args,
		env:     env,
	}
}

func (c *StdioClient) Name() string { return c.name }

// Start spawns the subprocess and runs the MCP initialize handshake.
func (c *StdioClient) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &ConnectionError{Server: c.name, Err: fmt.Errorf("client stopped")}
	}
	if c.sess != nil {
		return fmt.Errorf("mcp server %q already started", c.name)
	}

	env := os.Environ()
	for k, v := range c.env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	var capturedCmd *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		c.command,
		env,
		c.args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return &ConnectionError{Server: c.name, Err: err}
	}

	if _, err := initializeSession(ctx, mcpClient); err != nil {
		_ = mcpClient.Close()
		return &ConnectionError{Server: c.name, Err: fmt.Errorf("initialize: %w", err)}
	}

	c.sess = mcpClient
	c.cmd = capturedCmd

	if config.DebugLog != nil {
		pid := 0
		if capturedCmd != nil && capturedCmd.Process != nil {
			pid = capturedCmd.Process.Pid
		}
		config.DebugLog.Printf("[MCP] started stdio server %q (%s, pid %d)", c.name, c.command, pid)
	}

	return nil
}

func (c *StdioClient) ListTools(ctx context.Context) ([]mcptypes.Tool, error) {
	sess, err := c.session()
	if err != nil {
		return nil, err
	}
	return listSessionTools(ctx, sess, c.name)
}

// CallTool invokes a tool on the subprocess. Calls are strictly
// non-overlapping; a caller queued behind a slow call that arrives after
// Stop drains with a ToolInvocationError instead of touching the dead
// process. A crash mid-call surfaces as ConnectionError and the client does
// not restart itself.
func (c *StdioClient) CallTool(ctx context.Context, tool string, args map[string]any) (string, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	sess, err := c.session()
	if err != nil {
		if c.isClosed() {
			return "", &ToolInvocationError{Server: c.name, Tool: tool, Detail: "client shutting down"}
		}
		return "", err
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] calling %q on stdio server %q", tool, c.name)
	}
	return callSessionTool(ctx, sess, c.name, tool, args)
}

// Stop terminates the subprocess. Queued calls observe the closed state when
// they acquire the call lock and fail without being sent.
func (c *StdioClient) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sess := c.sess
	cmd := c.cmd
	c.sess = nil
	c.cmd = nil
	c.mu.Unlock()

	if sess == nil {
		return nil
	}

	// Ask the client to close cleanly; kill the process if it hangs.
	done := make(chan error, 1)
	go func() { done <- sess.Close() }()

	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
	case <-ctx.Done():
	}

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] kill stdio server %q: %v", c.name, err)
		}
	}
	return nil
}

// Close implements ToolClient.
func (c *StdioClient) Close(ctx context.Context) error { return c.Stop(ctx) }

func (c *StdioClient) session() (session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, &ConnectionError{Server: c.name, Err: fmt.Errorf("client stopped")}
	}
	if c.sess == nil {
		return nil, &ConnectionError{Server: c.name, Err: fmt.Errorf("not started")}
	}
	return c.sess, nil
}

func (c *StdioClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
