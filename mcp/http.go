package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"umsagent/config"
)

// HTTPClient connects to an MCP server exposed over streamable HTTP. One
// client holds one persistent transport per configured base URL; Connect
// retries the handshake a bounded number of times before surfacing a
// ConnectionError.
type HTTPClient struct {
	name       string
	baseURL    string
	headers    map[string]string
	maxRetries int
	retryDelay time.Duration

	mu   sync.Mutex
	sess session
}

type HTTPOption func(*HTTPClient)

// WithHeaders adds static headers (auth tokens and the like) to every
// request on this transport.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(c *HTTPClient) { c.headers = headers }
}

// WithMaxRetries bounds the connect retry count.
func WithMaxRetries(n int) HTTPOption {
	return func(c *HTTPClient) { c.maxRetries = n }
}

func NewHTTPClient(name, baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		name:       name,
		baseURL:    baseURL,
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Name() string { return c.name }

// Connect establishes the transport and runs the MCP initialize handshake.
func (c *HTTPClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		return nil
	}

	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &ConnectionError{Server: c.name, Err: ctx.Err()}
			}
			delay *= 2
		}

		sess, err := c.dial(ctx)
		if err != nil {
			lastErr = err
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] connect attempt %d to %q (%s) failed: %v",
					attempt+1, c.name, c.baseURL, err)
			}
			continue
		}

		c.sess = sess
		if config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] connected to %q at %s", c.name, c.baseURL)
		}
		return nil
	}

	return &ConnectionError{Server: c.name, Err: lastErr}
}

func (c *HTTPClient) dial(ctx context.Context) (session, error) {
	var opts []transport.StreamableHTTPCOption
	if len(c.headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(c.headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(c.baseURL, opts...)
	if err != nil {
		return nil, err
	}

	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("start transport: %w", err)
	}

	if _, err := initializeSession(ctx, mcpClient); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	return mcpClient, nil
}

func (c *HTTPClient) ListTools(ctx context.Context) ([]mcptypes.Tool, error) {
	sess, err := c.session()
	if err != nil {
		return nil, err
	}
	return listSessionTools(ctx, sess, c.name)
}

func (c *HTTPClient) CallTool(ctx context.Context, tool string, args map[string]any) (string, error) {
	sess, err := c.session()
	if err != nil {
		return "", err
	}
	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] calling %q on %q (%s)", tool, c.name, c.baseURL)
	}
	return callSessionTool(ctx, sess, c.name, tool, args)
}

func (c *HTTPClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return nil
	}

	// Close can hang on a dead server; bound it.
	done := make(chan error, 1)
	sess := c.sess
	c.sess = nil
	go func() { done <- sess.Close() }()

	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *HTTPClient) session() (session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil, &ConnectionError{Server: c.name, Err: fmt.Errorf("not connected")}
	}
	return c.sess, nil
}
