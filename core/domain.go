package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidFlowStatusTransition = errors.New("core: invalid flow status transition")
	ErrProviderRequired            = errors.New("core: provider is required")
)

// FlowStatus tracks one authorization attempt from initiation through
// credential storage. Redirect mode splits the lifecycle across two process
// instances; the status survives in the durable pending store.
type FlowStatus string

const (
	FlowStatusIdle       FlowStatus = "idle"
	FlowStatusInitiated  FlowStatus = "initiated"
	FlowStatusDispatched FlowStatus = "dispatched"
	FlowStatusReturned   FlowStatus = "returned"
	FlowStatusExchanged  FlowStatus = "exchanged"
	FlowStatusStored     FlowStatus = "stored"
	FlowStatusExpired    FlowStatus = "expired"
	FlowStatusFailed     FlowStatus = "failed"
)

// PendingAuthorization is the in-flight record of one OAuth attempt, keyed by
// state. It is destroyed on successful exchange, explicit cancellation, or by
// the TTL sweep.
type PendingAuthorization struct {
	Provider       string
	State          string
	CodeVerifier   string
	CodeChallenge  string
	RedirectURI    string
	ReturnURL      string
	FrontendOrigin string
	Status         FlowStatus
	InitiatedAt    time.Time
}

func (p *PendingAuthorization) TransitionTo(status FlowStatus) error {
	if p == nil {
		return nil
	}
	if p.Status == status {
		return nil
	}
	if !flowTransitionAllowed(p.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidFlowStatusTransition, p.Status, status)
	}
	p.Status = status
	return nil
}

func (p PendingAuthorization) ExpiredAt(now time.Time, ttl time.Duration) bool {
	if p.InitiatedAt.IsZero() || ttl <= 0 {
		return false
	}
	return now.Sub(p.InitiatedAt) > ttl
}

func flowTransitionAllowed(current, next FlowStatus) bool {
	allowed := map[FlowStatus]map[FlowStatus]struct{}{
		FlowStatusIdle: {
			FlowStatusInitiated: {},
		},
		FlowStatusInitiated: {
			FlowStatusDispatched: {},
			FlowStatusExpired:    {},
			FlowStatusFailed:     {},
		},
		FlowStatusDispatched: {
			FlowStatusReturned: {},
			FlowStatusExpired:  {},
			FlowStatusFailed:   {},
		},
		FlowStatusReturned: {
			FlowStatusExchanged: {},
			FlowStatusExpired:   {},
			FlowStatusFailed:    {},
		},
		FlowStatusExchanged: {
			FlowStatusStored: {},
			FlowStatusFailed: {},
		},
		FlowStatusStored:  {},
		FlowStatusExpired: {},
		FlowStatusFailed:  {},
	}
	_, ok := allowed[current][next]
	return ok
}

// ProviderCredential is the result of a successful exchange. Credentials are
// replaced whole, never partially updated.
type ProviderCredential struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	ExpiresAt    *time.Time
	Scopes       []string
	Email        string
	AccountID    string
}

func (c ProviderCredential) Clone() ProviderCredential {
	cloned := c
	cloned.Scopes = append([]string(nil), c.Scopes...)
	if c.ExpiresAt != nil {
		expires := c.ExpiresAt.UTC()
		cloned.ExpiresAt = &expires
	}
	return cloned
}

// AccountID derives the stable multi-account discriminator for one
// (provider, email) pair: provider + "_" + base36(|hash|) where hash is a
// 32-bit rolling hash over provider + ":" + email. Not cryptographic; it only
// needs to be deterministic and collision-resistant for the account index.
func AccountID(provider, email string) string {
	provider = strings.TrimSpace(provider)
	email = strings.TrimSpace(email)
	if provider == "" || email == "" {
		return ""
	}
	var hash int32
	for _, b := range []byte(provider + ":" + email) {
		hash = hash*31 + int32(b)
	}
	magnitude := int64(hash)
	if magnitude < 0 {
		magnitude = -magnitude
	}
	return provider + "_" + strconv.FormatInt(magnitude, 36)
}
