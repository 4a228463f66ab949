// Command umsagent runs the user-management chat agent: an HTTP API that
// brokers between chat clients, a model provider, and MCP tool servers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"umsagent/config"
	"umsagent/conversation"
	"umsagent/mcp"
	"umsagent/provider"
	"umsagent/server"
	"umsagent/storage"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	config.InitDebugLog()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer store.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		cancel()
		log.Fatalf("startup: storage %s unreachable: %v", cfg.Storage.Backend, err)
	}
	cancel()

	router := mcp.NewRouter()
	clients, err := connectToolServers(ctx, cfg, router)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer closeClients(clients)
	log.Printf("registered %d tools from %d MCP servers", len(router.Tools()), len(clients))

	prov, err := provider.New(cfg.Provider)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	manager := conversation.NewManager(prov, router, store, conversation.Options{
		MaxIterations: cfg.MaxIterations,
		SystemPrompt:  cfg.SystemPrompt,
		ToolTimeout:   cfg.ToolTimeout(),
	})

	srv := server.New(cfg.ListenAddr, manager)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	case <-ctx.Done():
		log.Print("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "redis":
		return storage.NewRedisStore(cfg.Storage.RedisAddr), nil
	case "sqlite":
		return storage.NewSQLiteStore(cfg.Storage.SQLitePath)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// connectToolServers brings up every configured MCP client and registers its
// tools. A server that cannot be reached fails startup; a half-connected
// agent would silently lose tools.
func connectToolServers(ctx context.Context, cfg *config.Config, router *mcp.Router) ([]mcp.ToolClient, error) {
	var clients []mcp.ToolClient

	for _, srv := range cfg.MCP.HTTP {
		client := mcp.NewHTTPClient(srv.Name, srv.URL,
			mcp.WithHeaders(srv.Headers),
			mcp.WithMaxRetries(cfg.MaxConnectRetries),
		)
		if err := client.Connect(ctx); err != nil {
			closeClients(clients)
			return nil, fmt.Errorf("connect MCP server %q: %w", srv.Name, err)
		}
		if err := router.Register(ctx, client); err != nil {
			closeClients(append(clients, client))
			return nil, fmt.Errorf("register MCP server %q: %w", srv.Name, err)
		}
		clients = append(clients, client)
	}

	for _, srv := range cfg.MCP.Stdio {
		client := mcp.NewStdioClient(srv.Name, srv.Command, srv.Args, srv.Env)
		if err := client.Start(ctx); err != nil {
			closeClients(clients)
			return nil, fmt.Errorf("start MCP server %q: %w", srv.Name, err)
		}
		if err := router.Register(ctx, client); err != nil {
			closeClients(append(clients, client))
			return nil, fmt.Errorf("register MCP server %q: %w", srv.Name, err)
		}
		clients = append(clients, client)
	}

	return clients, nil
}

func closeClients(clients []mcp.ToolClient) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, client := range clients {
		if err := client.Close(ctx); err != nil {
			log.Printf("close MCP client %q: %v", client.Name(), err)
		}
	}
}
