package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		ListenAddr:        ":8011",
		MaxIterations:     8,
		MaxConnectRetries: 3,
		ToolTimeoutSecs:   60,
		Provider:          ProviderConfig{Type: "openai", APIKey: "sk-test", Model: "gpt-4o"},
		Storage:           StorageConfig{Backend: "memory"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing provider type",
			mutate:  func(c *Config) { c.Provider.Type = "" },
			wantErr: "provider.type",
		},
		{
			name:    "unknown provider type",
			mutate:  func(c *Config) { c.Provider.Type = "cohere" },
			wantErr: "provider.type",
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Provider.APIKey = "" },
			wantErr: "provider.api_key",
		},
		{
			name: "redis backend requires addr",
			mutate: func(c *Config) {
				c.Storage = StorageConfig{Backend: "redis"}
			},
			wantErr: "storage.redis_addr",
		},
		{
			name: "sqlite backend requires path",
			mutate: func(c *Config) {
				c.Storage = StorageConfig{Backend: "sqlite"}
			},
			wantErr: "storage.sqlite_path",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "dynamo" },
			wantErr: "storage.backend",
		},
		{
			name:    "iteration cap must be positive",
			mutate:  func(c *Config) { c.MaxIterations = 0 },
			wantErr: "max_iterations",
		},
		{
			name: "http server needs url",
			mutate: func(c *Config) {
				c.MCP.HTTP = []HTTPServerConfig{{Name: "users"}}
			},
			wantErr: "mcp.http[0]",
		},
		{
			name: "stdio server needs command",
			mutate: func(c *Config) {
				c.MCP.Stdio = []StdioServerConfig{{Name: "ddg"}}
			},
			wantErr: "mcp.stdio[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}

			cfgErr, ok := err.(*ConfigurationError)
			if !ok {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tt.wantErr {
				t.Errorf("expected error on field %q, got %q", tt.wantErr, cfgErr.Field)
			}
		})
	}
}

func TestLoadFromTOMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.toml")
	data := `
listen_addr = ":9000"
max_iterations = 4

[provider]
type = "anthropic"
api_key = "file-key"
model = "claude-sonnet-4-5"

[storage]
backend = "memory"

[[mcp.http]]
name = "users"
url = "http://localhost:8005/mcp"

[[mcp.stdio]]
name = "ddg"
command = "docker"
args = ["run", "--rm", "-i", "mcp/duckduckgo:latest"]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AGENT_API_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider.Type != "anthropic" {
		t.Errorf("expected provider from file, got %q", cfg.Provider.Type)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Errorf("expected env override for api key, got %q", cfg.Provider.APIKey)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("expected listen addr from file, got %q", cfg.ListenAddr)
	}
	if cfg.MaxIterations != 4 {
		t.Errorf("expected iteration cap from file, got %d", cfg.MaxIterations)
	}
	if len(cfg.MCP.HTTP) != 1 || cfg.MCP.HTTP[0].URL != "http://localhost:8005/mcp" {
		t.Errorf("expected http mcp server parsed, got %+v", cfg.MCP.HTTP)
	}
	if len(cfg.MCP.Stdio) != 1 || cfg.MCP.Stdio[0].Command != "docker" {
		t.Errorf("expected stdio mcp server parsed, got %+v", cfg.MCP.Stdio)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("AGENT_PROVIDER", "openai")
	t.Setenv("AGENT_API_KEY", "sk-env")
	t.Setenv("AGENT_STORAGE", "memory")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxIterations != 8 {
		t.Errorf("expected default iteration cap 8, got %d", cfg.MaxIterations)
	}
	if cfg.MaxConnectRetries != 3 {
		t.Errorf("expected default connect retries 3, got %d", cfg.MaxConnectRetries)
	}
}

func TestLoadFailsFastWithoutCredentials(t *testing.T) {
	t.Setenv("AGENT_PROVIDER", "")
	t.Setenv("AGENT_API_KEY", "")

	_, err := Load("")
	if _, ok := err.(*ConfigurationError); !ok {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
