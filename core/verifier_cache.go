package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryVerifierCache holds PKCE verifiers server-side between the authorize
// and callback legs of the cross-origin redirect variant. Every Store and
// Retrieve sweeps all expired entries first (amortized cleanup, no timer).
type MemoryVerifierCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]VerifierCacheEntry
}

func NewMemoryVerifierCache(ttl time.Duration) *MemoryVerifierCache {
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &MemoryVerifierCache{
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		entries: map[string]VerifierCacheEntry{},
	}
}

func (c *MemoryVerifierCache) Store(_ context.Context, state string, entry VerifierCacheEntry) error {
	if c == nil {
		return fmt.Errorf("core: verifier cache is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return fmt.Errorf("core: verifier cache state is required")
	}
	if strings.TrimSpace(entry.CodeVerifier) == "" {
		return fmt.Errorf("core: verifier cache code verifier is required")
	}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.sweepLocked()
	c.entries[state] = entry
	c.mu.Unlock()

	return nil
}

func (c *MemoryVerifierCache) Retrieve(_ context.Context, state string) (VerifierCacheEntry, bool, error) {
	if c == nil {
		return VerifierCacheEntry{}, false, fmt.Errorf("core: verifier cache is not configured")
	}

	c.mu.Lock()
	c.sweepLocked()
	entry, ok := c.entries[strings.TrimSpace(state)]
	if ok {
		delete(c.entries, strings.TrimSpace(state))
	}
	c.mu.Unlock()

	if !ok {
		return VerifierCacheEntry{}, false, nil
	}
	return entry, true, nil
}

func (c *MemoryVerifierCache) sweepLocked() {
	now := c.now()
	for state, entry := range c.entries {
		if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
			delete(c.entries, state)
		}
	}
}

var _ VerifierCache = (*MemoryVerifierCache)(nil)
