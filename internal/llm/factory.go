package llm

import (
	"fmt"
	"sync"

	"planextract/internal/config"
	"planextract/internal/port"
)

// ProviderFactory is a function that creates a ChatClient from a provider config.
type ProviderFactory func(cfg *config.ChatProviderConfig) (port.ChatClient, error)

// registry of chat provider factories, populated explicitly via RegisterProvider
// by the binaries that link the provider packages.
var (
	providersMu sync.RWMutex
	providers   = map[string]ProviderFactory{}
)

// RegisterProvider registers a chat provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// NewClient creates a ChatClient from a provider config using the registered factory.
func NewClient(cfg *config.ChatProviderConfig) (port.ChatClient, error) {
	providersMu.RLock()
	factory, ok := providers[cfg.Provider]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown chat provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewClientChain builds the primary client and, when configured, wraps it with
// the fallback provider in a FallbackClient.
func NewClientChain(cfg *config.ChatConfig) (port.ChatClient, error) {
	primary, err := NewClient(cfg.PrimaryConfig())
	if err != nil {
		return nil, fmt.Errorf("creating primary chat client: %w", err)
	}
	fbCfg := cfg.FallbackConfig()
	if fbCfg == nil {
		return primary, nil
	}
	fallback, err := NewClient(fbCfg)
	if err != nil {
		return nil, fmt.Errorf("creating fallback chat client: %w", err)
	}
	return NewFallbackClient(
		[]port.ChatClient{primary, fallback},
		[]string{cfg.Provider, fbCfg.Provider},
	), nil
}
