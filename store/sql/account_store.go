package sqlstore

import (
	"context"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-authflow/core"
)

// AccountStore is the structured embedded credential tier: one row per
// (provider, email). Writes replace the whole credential; the unique index on
// the pair makes the upsert the only write path.
type AccountStore struct {
	db   *bun.DB
	repo repository.Repository[*accountRecord]
}

func (s *AccountStore) Get(ctx context.Context, provider string, email string) (*core.ProviderCredential, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("provider", "=", normalizeProvider(provider)),
		repository.SelectBy("email", "=", normalizeEmail(email)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0].toDomain(), nil
}

// GetLatest returns the most recently updated account for the provider, used
// when no email narrows the lookup.
func (s *AccountStore) GetLatest(ctx context.Context, provider string) (*core.ProviderCredential, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("provider", "=", normalizeProvider(provider)),
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0].toDomain(), nil
}

func (s *AccountStore) Save(ctx context.Context, provider string, credential *core.ProviderCredential) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: account store is not configured")
	}
	if credential == nil {
		return fmt.Errorf("sqlstore: credential is required")
	}
	providerID := normalizeProvider(provider)
	if providerID == "" {
		return fmt.Errorf("sqlstore: provider is required")
	}

	now := time.Now().UTC()
	record := &accountRecord{
		ID:           uuid.NewString(),
		AccountID:    credential.AccountID,
		Provider:     providerID,
		Email:        normalizeEmail(credential.Email),
		AccessToken:  credential.AccessToken,
		RefreshToken: credential.RefreshToken,
		TokenType:    credential.TokenType,
		ExpiresIn:    credential.ExpiresIn,
		Scopes:       append([]string{}, credential.Scopes...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if credential.ExpiresAt != nil {
		expiresAt := credential.ExpiresAt.UTC()
		record.ExpiresAt = &expiresAt
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (provider, email) DO UPDATE").
		Set("account_id = EXCLUDED.account_id").
		Set("access_token = EXCLUDED.access_token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("token_type = EXCLUDED.token_type").
		Set("expires_in = EXCLUDED.expires_in").
		Set("expires_at = EXCLUDED.expires_at").
		Set("scopes = EXCLUDED.scopes").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *AccountStore) Delete(ctx context.Context, provider string, email string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: account store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*accountRecord)(nil)).
		Where("provider = ?", normalizeProvider(provider)).
		Where("email = ?", normalizeEmail(email)).
		Exec(ctx)
	return err
}

func (s *AccountStore) DeleteProvider(ctx context.Context, provider string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: account store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*accountRecord)(nil)).
		Where("provider = ?", normalizeProvider(provider)).
		Exec(ctx)
	return err
}

func (s *AccountStore) ListAccounts(ctx context.Context, provider string) ([]core.AccountSummary, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("provider", "=", normalizeProvider(provider)),
		repository.OrderBy("email ASC"),
	)
	if err != nil {
		return nil, err
	}
	summaries := make([]core.AccountSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, record.toSummary())
	}
	return summaries, nil
}
