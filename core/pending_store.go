package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultPendingTTL = 5 * time.Minute

// MemoryPendingStore is the in-process pending-authorization table. Expired
// entries are pruned opportunistically on every save and lookup; there is no
// background sweeper. A lookup never prunes its own state: the stale record
// is returned so the caller can classify the expiry before deleting it.
type MemoryPendingStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]PendingAuthorization
}

func NewMemoryPendingStore(ttl time.Duration) *MemoryPendingStore {
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &MemoryPendingStore{
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		entries: map[string]PendingAuthorization{},
	}
}

func (s *MemoryPendingStore) Save(_ context.Context, pending PendingAuthorization) error {
	if s == nil {
		return fmt.Errorf("core: pending store is not configured")
	}
	state := strings.TrimSpace(pending.State)
	if state == "" {
		return fmt.Errorf("core: pending authorization state is required")
	}
	if pending.InitiatedAt.IsZero() {
		pending.InitiatedAt = s.now()
	}

	s.mu.Lock()
	s.pruneLocked(state)
	s.entries[state] = pending
	s.mu.Unlock()

	return nil
}

func (s *MemoryPendingStore) Get(_ context.Context, state string) (PendingAuthorization, bool, error) {
	if s == nil {
		return PendingAuthorization{}, false, fmt.Errorf("core: pending store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return PendingAuthorization{}, false, fmt.Errorf("core: pending authorization state is required")
	}

	s.mu.Lock()
	s.pruneLocked(state)
	pending, ok := s.entries[state]
	s.mu.Unlock()

	if !ok {
		return PendingAuthorization{}, false, nil
	}
	return pending, true, nil
}

func (s *MemoryPendingStore) Delete(_ context.Context, state string) error {
	if s == nil {
		return fmt.Errorf("core: pending store is not configured")
	}
	s.mu.Lock()
	delete(s.entries, strings.TrimSpace(state))
	s.mu.Unlock()
	return nil
}

func (s *MemoryPendingStore) pruneLocked(keep string) {
	now := s.now()
	for state, pending := range s.entries {
		if state == keep {
			continue
		}
		if pending.ExpiredAt(now, s.ttl) {
			delete(s.entries, state)
		}
	}
}

var _ PendingStore = (*MemoryPendingStore)(nil)
