package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-authflow/core"
	"github.com/goliatone/go-authflow/credstore"
)

const accountCacheKeyPrefix = "go-authflow::account::v1"

// CachedAccountStore fronts the structured tier with a read-through cache.
// Writes and deletes invalidate both the per-account key and the
// latest-account key so a stale "most recent" answer cannot survive an
// update.
type CachedAccountStore struct {
	base  credstore.StructuredStore
	cache repositorycache.CacheService
}

func NewCachedAccountStore(
	base credstore.StructuredStore,
	cacheService repositorycache.CacheService,
) (*CachedAccountStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base account store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: account cache service is required")
	}
	return &CachedAccountStore{base: base, cache: cacheService}, nil
}

// AccountCacheKey returns the deterministic cache key for one account read:
// go-authflow::account::v1::<provider>::<email>, with each segment URL-path
// escaped. The empty email segment addresses the latest-account lookup.
func AccountCacheKey(provider string, email string) string {
	segments := []string{
		url.PathEscape(normalizeProvider(provider)),
		url.PathEscape(normalizeEmail(email)),
	}
	return strings.Join(append([]string{accountCacheKeyPrefix}, segments...), "::")
}

func (s *CachedAccountStore) Get(ctx context.Context, provider string, email string) (*core.ProviderCredential, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached account store is not configured")
	}
	credential, err := repositorycache.GetOrFetch(ctx, s.cache, AccountCacheKey(provider, email),
		func(ctx context.Context) (*core.ProviderCredential, error) {
			return s.base.Get(ctx, provider, email)
		})
	if err != nil {
		return nil, err
	}
	return cloneCredential(credential), nil
}

func (s *CachedAccountStore) GetLatest(ctx context.Context, provider string) (*core.ProviderCredential, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached account store is not configured")
	}
	credential, err := repositorycache.GetOrFetch(ctx, s.cache, AccountCacheKey(provider, ""),
		func(ctx context.Context) (*core.ProviderCredential, error) {
			return s.base.GetLatest(ctx, provider)
		})
	if err != nil {
		return nil, err
	}
	return cloneCredential(credential), nil
}

func (s *CachedAccountStore) Save(ctx context.Context, provider string, credential *core.ProviderCredential) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached account store is not configured")
	}
	if err := s.base.Save(ctx, provider, credential); err != nil {
		return err
	}
	email := ""
	if credential != nil {
		email = credential.Email
	}
	return s.invalidate(ctx, provider, email)
}

func (s *CachedAccountStore) Delete(ctx context.Context, provider string, email string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached account store is not configured")
	}
	if err := s.base.Delete(ctx, provider, email); err != nil {
		return err
	}
	return s.invalidate(ctx, provider, email)
}

func (s *CachedAccountStore) DeleteProvider(ctx context.Context, provider string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached account store is not configured")
	}
	accounts, err := s.base.ListAccounts(ctx, provider)
	if err != nil {
		return err
	}
	if err := s.base.DeleteProvider(ctx, provider); err != nil {
		return err
	}
	for _, account := range accounts {
		if invalidateErr := s.cache.Delete(ctx, AccountCacheKey(provider, account.Email)); invalidateErr != nil {
			return invalidateErr
		}
	}
	return s.cache.Delete(ctx, AccountCacheKey(provider, ""))
}

func (s *CachedAccountStore) ListAccounts(ctx context.Context, provider string) ([]core.AccountSummary, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached account store is not configured")
	}
	return s.base.ListAccounts(ctx, provider)
}

func (s *CachedAccountStore) invalidate(ctx context.Context, provider string, email string) error {
	if err := s.cache.Delete(ctx, AccountCacheKey(provider, email)); err != nil {
		return err
	}
	return s.cache.Delete(ctx, AccountCacheKey(provider, ""))
}

func cloneCredential(credential *core.ProviderCredential) *core.ProviderCredential {
	if credential == nil {
		return nil
	}
	cloned := credential.Clone()
	return &cloned
}
