// Package credstore implements the tiered credential backend: host hooks
// first, then the structured embedded store, then the flat single-slot file,
// all fronted by an in-process cache. Tier selection happens per operation;
// a host that supplies a hook for an operation owns that operation outright.
package credstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-authflow/core"
)

// Hooks are host-supplied credential handlers. Any nil member falls through
// to the storage tiers; a non-nil member is used exclusively for its
// operation kind. A missing Remove falls back to Set with a nil credential
// before any storage tier is considered, so a set-hook host keeps custody of
// deletions too.
type Hooks struct {
	Get    func(ctx context.Context, provider string, email string) (*core.ProviderCredential, error)
	Set    func(ctx context.Context, provider string, credential *core.ProviderCredential, email string) error
	Remove func(ctx context.Context, provider string, email string) error
}

// StructuredStore is the embedded multi-account tier. Implementations index
// by (provider, email) and can answer "most recently updated" when no email
// narrows the lookup.
type StructuredStore interface {
	Get(ctx context.Context, provider string, email string) (*core.ProviderCredential, error)
	GetLatest(ctx context.Context, provider string) (*core.ProviderCredential, error)
	Save(ctx context.Context, provider string, credential *core.ProviderCredential) error
	Delete(ctx context.Context, provider string, email string) error
	DeleteProvider(ctx context.Context, provider string) error
	ListAccounts(ctx context.Context, provider string) ([]core.AccountSummary, error)
}

// FlatStore is the last-resort tier: one credential slot per provider, no
// account discrimination.
type FlatStore interface {
	Get(ctx context.Context, provider string) (*core.ProviderCredential, error)
	Set(ctx context.Context, provider string, credential *core.ProviderCredential) error
	Remove(ctx context.Context, provider string) error
}

// Tiered composes the three credential tiers behind core.CredentialStore.
// Reads refresh the in-process cache; disconnects clear it before touching
// any backend so a failed backend delete can never resurrect a credential.
type Tiered struct {
	logger     core.Logger
	hooks      Hooks
	structured StructuredStore
	flat       FlatStore
	policy     *core.PersistencePolicy

	mu    sync.RWMutex
	cache map[string]core.ProviderCredential
}

type Option func(*Tiered)

func WithLogger(logger core.Logger) Option {
	return func(t *Tiered) {
		t.logger = logger
	}
}

func WithHooks(hooks Hooks) Option {
	return func(t *Tiered) {
		t.hooks = hooks
	}
}

func WithStructuredStore(store StructuredStore) Option {
	return func(t *Tiered) {
		t.structured = store
	}
}

func WithFlatStore(store FlatStore) Option {
	return func(t *Tiered) {
		t.flat = store
	}
}

func WithPolicy(policy *core.PersistencePolicy) Option {
	return func(t *Tiered) {
		t.policy = policy
	}
}

func NewTiered(options ...Option) *Tiered {
	tiered := &Tiered{
		cache: map[string]core.ProviderCredential{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(tiered)
	}
	tiered.logger = glog.Ensure(tiered.logger)
	if tiered.policy == nil {
		tiered.policy = core.NewPersistencePolicy()
	}
	return tiered
}

func (t *Tiered) GetCredential(ctx context.Context, provider string, email string) (*core.ProviderCredential, error) {
	provider = normalizeProvider(provider)
	email = strings.TrimSpace(email)
	if provider == "" {
		return nil, core.ErrProviderRequired
	}

	if t.hooks.Get != nil {
		credential, err := t.hooks.Get(ctx, provider, email)
		if err != nil {
			t.logBackendFailure(ctx, "hook get failed", provider, err)
			return nil, nil
		}
		t.refreshCache(provider, credential)
		return credential, nil
	}

	// Once the collaborator persists tokens server side, the storage tiers
	// hold only stale pre-flip rows; they are skipped, not just unwritten.
	if !t.policy.ServerManaged() {
		if t.structured != nil {
			credential, err := t.readStructured(ctx, provider, email)
			if err != nil {
				t.logBackendFailure(ctx, "structured get failed", provider, err)
			} else if credential != nil {
				t.refreshCache(provider, credential)
				return credential, nil
			}
		}

		if t.flat != nil {
			credential, err := t.flat.Get(ctx, provider)
			if err != nil {
				t.logBackendFailure(ctx, "flat get failed", provider, err)
			} else if credential != nil && flatMatchesEmail(credential, email) {
				t.refreshCache(provider, credential)
				return credential, nil
			}
		}
	}

	// With no reachable tier the cache is the only witness; this covers the
	// server-managed session where persistence is suppressed.
	if credential, ok := t.cachedCredential(provider, email); ok {
		return credential, nil
	}
	return nil, nil
}

func (t *Tiered) SetCredential(ctx context.Context, provider string, credential *core.ProviderCredential, email string) error {
	provider = normalizeProvider(provider)
	email = strings.TrimSpace(email)
	if provider == "" {
		return core.ErrProviderRequired
	}
	if credential == nil {
		return fmt.Errorf("credstore: credential is required")
	}
	withEmail := credential.Clone()
	if withEmail.Email == "" {
		withEmail.Email = email
	}
	if withEmail.AccountID == "" {
		withEmail.AccountID = core.AccountID(provider, withEmail.Email)
	}

	t.refreshCache(provider, &withEmail)

	if t.hooks.Set != nil {
		if err := t.hooks.Set(ctx, provider, &withEmail, withEmail.Email); err != nil {
			// A hook write failure means the host believes it owns
			// persistence and lost the credential; that must be visible.
			return fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
		}
		return nil
	}

	// The server-managed flag suppresses the client-side storage tiers
	// only; a host hook keeps its custody either way.
	if t.policy.ServerManaged() {
		return nil
	}

	if t.structured != nil {
		err := t.structured.Save(ctx, provider, &withEmail)
		if err == nil {
			return nil
		}
		t.logBackendFailure(ctx, "structured save failed", provider, err)
	}

	if t.flat != nil {
		if err := t.flat.Set(ctx, provider, &withEmail); err != nil {
			t.logBackendFailure(ctx, "flat save failed", provider, err)
		}
	}
	return nil
}

func (t *Tiered) RemoveCredential(ctx context.Context, provider string, email string) error {
	provider = normalizeProvider(provider)
	email = strings.TrimSpace(email)
	if provider == "" {
		return core.ErrProviderRequired
	}

	// Cache goes first: even if every backend delete fails the credential
	// must stop being served in-process.
	t.evictCache(provider, email)

	if t.hooks.Remove != nil {
		if err := t.hooks.Remove(ctx, provider, email); err != nil {
			t.logBackendFailure(ctx, "hook remove failed", provider, err)
		}
		return nil
	}
	// Without a dedicated remove hook a host that persists through its set
	// hook still owns the deletion: a nil credential means remove.
	if t.hooks.Set != nil {
		if err := t.hooks.Set(ctx, provider, nil, email); err != nil {
			t.logBackendFailure(ctx, "hook set removal failed", provider, err)
		}
		return nil
	}

	if t.structured != nil {
		if err := t.structured.Delete(ctx, provider, email); err != nil {
			t.logBackendFailure(ctx, "structured delete failed", provider, err)
		}
	}
	if t.flat != nil {
		flatCredential, err := t.flat.Get(ctx, provider)
		if err != nil {
			t.logBackendFailure(ctx, "flat get failed", provider, err)
		} else if flatCredential != nil && flatMatchesEmail(flatCredential, email) {
			if err := t.flat.Remove(ctx, provider); err != nil {
				t.logBackendFailure(ctx, "flat remove failed", provider, err)
			}
		}
	}
	return nil
}

func (t *Tiered) RemoveProvider(ctx context.Context, provider string) error {
	provider = normalizeProvider(provider)
	if provider == "" {
		return core.ErrProviderRequired
	}

	t.evictCache(provider, "")

	if t.hooks.Remove != nil {
		if err := t.hooks.Remove(ctx, provider, ""); err != nil {
			t.logBackendFailure(ctx, "hook remove failed", provider, err)
		}
		return nil
	}
	if t.hooks.Set != nil {
		if err := t.hooks.Set(ctx, provider, nil, ""); err != nil {
			t.logBackendFailure(ctx, "hook set removal failed", provider, err)
		}
		return nil
	}

	if t.structured != nil {
		if err := t.structured.DeleteProvider(ctx, provider); err != nil {
			t.logBackendFailure(ctx, "structured delete provider failed", provider, err)
		}
	}
	if t.flat != nil {
		if err := t.flat.Remove(ctx, provider); err != nil {
			t.logBackendFailure(ctx, "flat remove failed", provider, err)
		}
	}
	return nil
}

func (t *Tiered) ListAccounts(ctx context.Context, provider string) ([]core.AccountSummary, error) {
	provider = normalizeProvider(provider)
	if provider == "" {
		return nil, core.ErrProviderRequired
	}

	if t.structured != nil {
		accounts, err := t.structured.ListAccounts(ctx, provider)
		if err != nil {
			t.logBackendFailure(ctx, "structured list failed", provider, err)
		} else {
			return accounts, nil
		}
	}

	if t.flat != nil {
		credential, err := t.flat.Get(ctx, provider)
		if err != nil {
			t.logBackendFailure(ctx, "flat get failed", provider, err)
		} else if credential != nil {
			return []core.AccountSummary{flatSummary(provider, credential)}, nil
		}
	}

	return t.cachedSummaries(provider), nil
}

func (t *Tiered) readStructured(ctx context.Context, provider string, email string) (*core.ProviderCredential, error) {
	if email != "" {
		return t.structured.Get(ctx, provider, email)
	}
	return t.structured.GetLatest(ctx, provider)
}

func (t *Tiered) refreshCache(provider string, credential *core.ProviderCredential) {
	if credential == nil {
		return
	}
	cloned := credential.Clone()
	t.mu.Lock()
	t.cache[cacheKey(provider, cloned.Email)] = cloned
	t.mu.Unlock()
}

func (t *Tiered) evictCache(provider string, email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if email != "" {
		delete(t.cache, cacheKey(provider, email))
		return
	}
	prefix := provider + "|"
	for key := range t.cache {
		if strings.HasPrefix(key, prefix) {
			delete(t.cache, key)
		}
	}
}

func (t *Tiered) cachedCredential(provider string, email string) (*core.ProviderCredential, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if email != "" {
		if credential, ok := t.cache[cacheKey(provider, email)]; ok {
			cloned := credential.Clone()
			return &cloned, true
		}
		return nil, false
	}
	var latest *core.ProviderCredential
	prefix := provider + "|"
	for key, credential := range t.cache {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		cloned := credential.Clone()
		if latest == nil {
			latest = &cloned
		}
	}
	if latest == nil {
		return nil, false
	}
	return latest, true
}

func (t *Tiered) cachedSummaries(provider string) []core.AccountSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	summaries := []core.AccountSummary{}
	prefix := provider + "|"
	for key, credential := range t.cache {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		summaries = append(summaries, core.AccountSummary{
			AccountID: credential.AccountID,
			Provider:  provider,
			Email:     credential.Email,
			Scopes:    append([]string(nil), credential.Scopes...),
			ExpiresAt: credential.ExpiresAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Email < summaries[j].Email
	})
	return summaries
}

func (t *Tiered) logBackendFailure(ctx context.Context, message string, provider string, err error) {
	logger := t.logger
	if logger == nil {
		return
	}
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Error(message, "provider", provider, "error", err.Error())
}

func flatMatchesEmail(credential *core.ProviderCredential, email string) bool {
	if email == "" || credential == nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(credential.Email), email)
}

func flatSummary(provider string, credential *core.ProviderCredential) core.AccountSummary {
	return core.AccountSummary{
		AccountID: credential.AccountID,
		Provider:  provider,
		Email:     credential.Email,
		Scopes:    append([]string(nil), credential.Scopes...),
		ExpiresAt: credential.ExpiresAt,
	}
}

func cacheKey(provider string, email string) string {
	return provider + "|" + strings.ToLower(strings.TrimSpace(email))
}

func normalizeProvider(provider string) string {
	return strings.TrimSpace(strings.ToLower(provider))
}

var _ core.CredentialStore = (*Tiered)(nil)
