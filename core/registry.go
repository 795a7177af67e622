package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProviderConfig is one static provider descriptor: pure data, no behavior.
// The full catalog lives with the embedding application and is registered at
// startup.
type ProviderConfig struct {
	ID              string
	DisplayName     string
	Scopes          []string
	UserInfoURL     string
	ToolNames       []string
	DefaultRedirect string
}

// ProviderConfigRegistry is an explicit, constructor-injected registry rather
// than ambient module state, so tests can instantiate independent instances.
// Entries are registered at application start and never removed.
type ProviderConfigRegistry struct {
	mu      sync.RWMutex
	configs map[string]ProviderConfig
}

func NewProviderConfigRegistry() *ProviderConfigRegistry {
	return &ProviderConfigRegistry{configs: make(map[string]ProviderConfig)}
}

func (r *ProviderConfigRegistry) Register(config ProviderConfig) error {
	if r == nil {
		return fmt.Errorf("core: provider config registry is not configured")
	}
	id := strings.TrimSpace(strings.ToLower(config.ID))
	if id == "" {
		return fmt.Errorf("core: provider id is required")
	}
	config.ID = id
	config.Scopes = append([]string(nil), config.Scopes...)
	config.ToolNames = append([]string(nil), config.ToolNames...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.configs[id]; exists {
		return fmt.Errorf("core: provider already registered: %s", id)
	}
	r.configs[id] = config
	return nil
}

func (r *ProviderConfigRegistry) Get(providerID string) (ProviderConfig, bool) {
	if r == nil {
		return ProviderConfig{}, false
	}
	id := strings.TrimSpace(strings.ToLower(providerID))
	if id == "" {
		return ProviderConfig{}, false
	}
	r.mu.RLock()
	config, ok := r.configs[id]
	r.mu.RUnlock()
	return config, ok
}

func (r *ProviderConfigRegistry) List() []ProviderConfig {
	if r == nil {
		return []ProviderConfig{}
	}
	r.mu.RLock()
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	configs := make([]ProviderConfig, 0, len(ids))
	for _, id := range ids {
		configs = append(configs, r.configs[id])
	}
	r.mu.RUnlock()
	return configs
}
