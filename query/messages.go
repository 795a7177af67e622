// Package query exposes the flow's read operations as go-command queries:
// authorization status checks and account listings. Mutations live in the
// command package.
package query

import "strings"

const (
	TypeCheckStatus  = "authflow.query.status.check"
	TypeListAccounts = "authflow.query.accounts.list"
)

type CheckStatusMessage struct {
	Provider string
	Email    string
}

func (CheckStatusMessage) Type() string { return TypeCheckStatus }

func (m CheckStatusMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return queryValidationError("provider", "provider is required")
	}
	return nil
}

type ListAccountsMessage struct {
	Provider string
}

func (ListAccountsMessage) Type() string { return TypeListAccounts }

func (m ListAccountsMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return queryValidationError("provider", "provider is required")
	}
	return nil
}
