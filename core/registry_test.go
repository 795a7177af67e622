package core

import "testing"

func TestProviderConfigRegistry_RegisterAndGet(t *testing.T) {
	registry := NewProviderConfigRegistry()

	if err := registry.Register(ProviderConfig{
		ID:     "GitHub",
		Scopes: []string{"repo"},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	config, ok := registry.Get("github")
	if !ok {
		t.Fatalf("expected registered provider")
	}
	if config.ID != "github" {
		t.Fatalf("expected normalized id, got %q", config.ID)
	}
	if _, ok := registry.Get("GITHUB"); !ok {
		t.Fatalf("lookup must be case insensitive")
	}

	if err := registry.Register(ProviderConfig{ID: "github"}); err == nil {
		t.Fatalf("duplicate registration must fail")
	}
	if err := registry.Register(ProviderConfig{}); err == nil {
		t.Fatalf("empty id must fail")
	}
}

func TestProviderConfigRegistry_ListIsSorted(t *testing.T) {
	registry := NewProviderConfigRegistry()
	for _, id := range []string{"slack", "github", "gmail"} {
		if err := registry.Register(ProviderConfig{ID: id}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	configs := registry.List()
	if len(configs) != 3 {
		t.Fatalf("expected 3 configs, got %d", len(configs))
	}
	if configs[0].ID != "github" || configs[1].ID != "gmail" || configs[2].ID != "slack" {
		t.Fatalf("expected sorted ids, got %v", []string{configs[0].ID, configs[1].ID, configs[2].ID})
	}
}
