package sqlstore

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-authflow/core"
)

type accountRecord struct {
	bun.BaseModel `bun:"table:authflow_accounts,alias:afa"`

	ID           string     `bun:"id,pk"`
	AccountID    string     `bun:"account_id,notnull"`
	Provider     string     `bun:"provider,notnull"`
	Email        string     `bun:"email,notnull"`
	AccessToken  string     `bun:"access_token,notnull"`
	RefreshToken string     `bun:"refresh_token"`
	TokenType    string     `bun:"token_type"`
	ExpiresIn    int64      `bun:"expires_in"`
	ExpiresAt    *time.Time `bun:"expires_at,nullzero"`
	Scopes       []string   `bun:"scopes,type:jsonb,notnull"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *accountRecord) toDomain() *core.ProviderCredential {
	if r == nil {
		return nil
	}
	credential := core.ProviderCredential{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresIn:    r.ExpiresIn,
		Scopes:       append([]string(nil), r.Scopes...),
		Email:        r.Email,
		AccountID:    r.AccountID,
	}
	if r.ExpiresAt != nil {
		expiresAt := r.ExpiresAt.UTC()
		credential.ExpiresAt = &expiresAt
	}
	return &credential
}

func (r *accountRecord) toSummary() core.AccountSummary {
	summary := core.AccountSummary{
		AccountID: r.AccountID,
		Provider:  r.Provider,
		Email:     r.Email,
		Scopes:    append([]string(nil), r.Scopes...),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.ExpiresAt != nil {
		expiresAt := r.ExpiresAt.UTC()
		summary.ExpiresAt = &expiresAt
	}
	return summary
}

type pendingAuthRecord struct {
	bun.BaseModel `bun:"table:authflow_pending_authorizations,alias:afp"`

	ID             string    `bun:"id,pk"`
	State          string    `bun:"state,notnull"`
	Provider       string    `bun:"provider,notnull"`
	CodeVerifier   string    `bun:"code_verifier,notnull"`
	CodeChallenge  string    `bun:"code_challenge,notnull"`
	RedirectURI    string    `bun:"redirect_uri"`
	ReturnURL      string    `bun:"return_url"`
	FrontendOrigin string    `bun:"frontend_origin"`
	Status         string    `bun:"status,notnull"`
	InitiatedAt    time.Time `bun:"initiated_at,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *pendingAuthRecord) toDomain() core.PendingAuthorization {
	if r == nil {
		return core.PendingAuthorization{}
	}
	return core.PendingAuthorization{
		Provider:       r.Provider,
		State:          r.State,
		CodeVerifier:   r.CodeVerifier,
		CodeChallenge:  r.CodeChallenge,
		RedirectURI:    r.RedirectURI,
		ReturnURL:      r.ReturnURL,
		FrontendOrigin: r.FrontendOrigin,
		Status:         core.FlowStatus(r.Status),
		InitiatedAt:    r.InitiatedAt.UTC(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
