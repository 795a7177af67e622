package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryVerifierCache_RetrieveConsumesEntry(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryVerifierCache(time.Minute)

	if err := cache.Store(ctx, "state-1", VerifierCacheEntry{
		CodeVerifier: "verifier-1",
		Provider:     "github",
	}); err != nil {
		t.Fatalf("store: %v", err)
	}

	entry, ok, err := cache.Retrieve(ctx, "state-1")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !ok || entry.CodeVerifier != "verifier-1" {
		t.Fatalf("expected cached entry, got ok=%v entry=%+v", ok, entry)
	}

	if _, ok, _ := cache.Retrieve(ctx, "state-1"); ok {
		t.Fatalf("entry must be consumed on first retrieve")
	}
}

func TestMemoryVerifierCache_SweepsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryVerifierCache(time.Minute)
	current := time.Now().UTC()
	cache.now = func() time.Time { return current }

	if err := cache.Store(ctx, "stale", VerifierCacheEntry{CodeVerifier: "v1"}); err != nil {
		t.Fatalf("store stale: %v", err)
	}
	current = current.Add(2 * time.Minute)

	if _, ok, _ := cache.Retrieve(ctx, "stale"); ok {
		t.Fatalf("expired entry must be swept, not returned")
	}
}

func TestMemoryVerifierCache_ValidatesInput(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryVerifierCache(time.Minute)

	if err := cache.Store(ctx, "", VerifierCacheEntry{CodeVerifier: "v"}); err == nil {
		t.Fatalf("expected error for empty state")
	}
	if err := cache.Store(ctx, "state", VerifierCacheEntry{}); err == nil {
		t.Fatalf("expected error for empty verifier")
	}
	if _, ok, err := cache.Retrieve(ctx, "unknown"); err != nil || ok {
		t.Fatalf("unknown state must be a clean miss, got ok=%v err=%v", ok, err)
	}
}
