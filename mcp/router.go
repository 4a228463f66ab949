package mcp

import (
	"context"
	"log"
	"strings"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Router aggregates tool catalogs from all connected clients into one
// namespace and dispatches model-requested tool calls to the owning client.
//
// Tool names are namespaced as "server.tool" at registration so two servers
// exposing the same tool name never collide on the dispatch key. Residual
// collisions (a server registered twice) follow last-registered-wins with a
// logged conflict.
type Router struct {
	mu     sync.RWMutex
	order  []string
	routes map[string]route
}

type route struct {
	client ToolClient
	tool   mcptypes.Tool
	local  string // tool name as the owning server knows it
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]route)}
}

// Register discovers the client's tools and adds them to the shared
// namespace.
func (r *Router) Register(ctx context.Context, client ToolClient) error {
	tools, err := client.ListTools(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tool := range tools {
		local := tool.Name
		namespaced := client.Name() + "." + local

		if existing, ok := r.routes[namespaced]; ok {
			log.Printf("tool %q already registered by %q; replacing with %q",
				namespaced, existing.client.Name(), client.Name())
		} else {
			r.order = append(r.order, namespaced)
		}

		tool.Name = namespaced
		r.routes[namespaced] = route{client: client, tool: tool, local: local}
	}

	return nil
}

// Tools returns the aggregated catalog in registration order.
func (r *Router) Tools() []mcptypes.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]mcptypes.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.routes[name].tool)
	}
	return tools
}

// Resolve returns the client owning the namespaced tool name.
func (r *Router) Resolve(name string) (ToolClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.routes[name]
	if !ok {
		return nil, &UnknownToolError{Tool: name}
	}
	return rt.client, nil
}

// Dispatch routes one tool call to its owning client. Concurrent dispatches
// to different clients run independently; the stdio client serializes its
// own calls internally.
func (r *Router) Dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	rt, ok := r.routes[name]
	r.mu.RUnlock()

	if !ok {
		return "", &UnknownToolError{Tool: name}
	}
	return rt.client.CallTool(ctx, rt.local, args)
}

// ServerName extracts the namespace prefix from an aggregated tool name.
func ServerName(namespaced string) string {
	if idx := strings.Index(namespaced, "."); idx != -1 {
		return namespaced[:idx]
	}
	return ""
}
