package provider

import (
	"fmt"

	"umsagent/config"
	"umsagent/model"
)

// New creates a provider from configuration. Both backends sit behind
// model.Provider so the conversation layer never branches on the vendor.
func New(cfg config.ProviderConfig) (model.Provider, error) {
	switch cfg.Type {
	case "openai":
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case "anthropic":
		return NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
