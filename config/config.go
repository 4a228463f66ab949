// Package config loads and validates service configuration from a TOML file
// with environment overrides. Required values missing at startup fail fast
// with a ConfigurationError.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigurationError is fatal and startup-time only.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

type ProviderConfig struct {
	Type    string `toml:"type"`     // "openai" or "anthropic"
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"` // OpenAI-compatible proxies (DIAL, Azure) go here
	Model   string `toml:"model"`
}

type StorageConfig struct {
	Backend    string `toml:"backend"` // "redis", "sqlite", or "memory"
	RedisAddr  string `toml:"redis_addr"`
	SQLitePath string `toml:"sqlite_path"`
}

type HTTPServerConfig struct {
	Name    string            `toml:"name"`
	URL     string            `toml:"url"`
	Headers map[string]string `toml:"headers"`
}

type StdioServerConfig struct {
	Name    string            `toml:"name"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
}

type MCPConfig struct {
	HTTP  []HTTPServerConfig  `toml:"http"`
	Stdio []StdioServerConfig `toml:"stdio"`
}

type Config struct {
	ListenAddr        string         `toml:"listen_addr"`
	Provider          ProviderConfig `toml:"provider"`
	Storage           StorageConfig  `toml:"storage"`
	MCP               MCPConfig      `toml:"mcp"`
	MaxIterations     int            `toml:"max_iterations"`
	MaxConnectRetries int            `toml:"max_connect_retries"`
	ToolTimeoutSecs   int            `toml:"tool_timeout_seconds"`
	SystemPrompt      string         `toml:"system_prompt"`
}

// Debug tracing. Enabled by AGENT_DEBUG=1; nil otherwise, callers check.
var DebugLog *log.Logger

func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSecs) * time.Second
}

// Load reads the TOML file at path (skipped when path is empty or absent),
// applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr:        ":8011",
		MaxIterations:     8,
		MaxConnectRetries: 3,
		ToolTimeoutSecs:   60,
		Storage: StorageConfig{
			Backend:   "redis",
			RedisAddr: "localhost:6379",
		},
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, &ConfigurationError{Field: path, Reason: err.Error()}
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AGENT_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("AGENT_PROVIDER"); v != "" {
		c.Provider.Type = v
	}
	if v := os.Getenv("AGENT_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("AGENT_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("AGENT_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("AGENT_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("AGENT_REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv("AGENT_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv("AGENT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxIterations = n
		}
	}
}

func (c *Config) Validate() error {
	switch c.Provider.Type {
	case "openai", "anthropic":
	case "":
		return &ConfigurationError{Field: "provider.type", Reason: "required (openai or anthropic)"}
	default:
		return &ConfigurationError{Field: "provider.type", Reason: fmt.Sprintf("unknown provider %q", c.Provider.Type)}
	}

	if c.Provider.APIKey == "" {
		return &ConfigurationError{Field: "provider.api_key", Reason: "required"}
	}

	switch c.Storage.Backend {
	case "redis":
		if c.Storage.RedisAddr == "" {
			return &ConfigurationError{Field: "storage.redis_addr", Reason: "required for redis backend"}
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return &ConfigurationError{Field: "storage.sqlite_path", Reason: "required for sqlite backend"}
		}
	case "memory":
	default:
		return &ConfigurationError{Field: "storage.backend", Reason: fmt.Sprintf("unknown backend %q", c.Storage.Backend)}
	}

	if c.MaxIterations < 1 {
		return &ConfigurationError{Field: "max_iterations", Reason: "must be at least 1"}
	}

	for i, srv := range c.MCP.HTTP {
		if srv.Name == "" || srv.URL == "" {
			return &ConfigurationError{Field: fmt.Sprintf("mcp.http[%d]", i), Reason: "name and url are required"}
		}
	}
	for i, srv := range c.MCP.Stdio {
		if srv.Name == "" || srv.Command == "" {
			return &ConfigurationError{Field: fmt.Sprintf("mcp.stdio[%d]", i), Reason: "name and command are required"}
		}
	}

	return nil
}

// InitDebugLog turns on the debug trace when AGENT_DEBUG is set.
func InitDebugLog() {
	debug := os.Getenv("AGENT_DEBUG")
	if debug != "true" && debug != "1" {
		return
	}
	DebugLog = log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (AGENT_DEBUG=%s) ===", debug)
}
