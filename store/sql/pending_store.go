package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-authflow/core"
)

// PendingAuthStore is the durable pending-authorization table used to resume
// redirect-mode flows in a later process instance. Every lookup first sweeps
// rows past the TTL, except the row being looked up: the stale record is
// returned so the orchestrator can classify the expiry. There is no
// background cleaner.
type PendingAuthStore struct {
	db   *bun.DB
	repo repository.Repository[*pendingAuthRecord]
	ttl  time.Duration
}

func (s *PendingAuthStore) Save(ctx context.Context, pending core.PendingAuthorization) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: pending auth store is not configured")
	}
	state := strings.TrimSpace(pending.State)
	if state == "" {
		return fmt.Errorf("sqlstore: pending authorization state is required")
	}
	now := time.Now().UTC()
	initiatedAt := pending.InitiatedAt.UTC()
	if pending.InitiatedAt.IsZero() {
		initiatedAt = now
	}

	record := &pendingAuthRecord{
		ID:             uuid.NewString(),
		State:          state,
		Provider:       normalizeProvider(pending.Provider),
		CodeVerifier:   pending.CodeVerifier,
		CodeChallenge:  pending.CodeChallenge,
		RedirectURI:    pending.RedirectURI,
		ReturnURL:      pending.ReturnURL,
		FrontendOrigin: pending.FrontendOrigin,
		Status:         string(pending.Status),
		InitiatedAt:    initiatedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (state) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *PendingAuthStore) Get(ctx context.Context, state string) (core.PendingAuthorization, bool, error) {
	if s == nil || s.repo == nil {
		return core.PendingAuthorization{}, false, fmt.Errorf("sqlstore: pending auth store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return core.PendingAuthorization{}, false, fmt.Errorf("sqlstore: pending authorization state is required")
	}
	if err := s.sweep(ctx, state); err != nil {
		return core.PendingAuthorization{}, false, err
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("state", "=", state),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.PendingAuthorization{}, false, err
	}
	if len(records) == 0 {
		return core.PendingAuthorization{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *PendingAuthStore) Delete(ctx context.Context, state string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: pending auth store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*pendingAuthRecord)(nil)).
		Where("state = ?", strings.TrimSpace(state)).
		Exec(ctx)
	return err
}

func (s *PendingAuthStore) sweep(ctx context.Context, keep string) error {
	ttl := s.ttl
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	cutoff := time.Now().UTC().Add(-ttl)
	_, err := s.db.NewDelete().
		Model((*pendingAuthRecord)(nil)).
		Where("initiated_at < ?", cutoff).
		Where("state != ?", keep).
		Exec(ctx)
	return err
}
