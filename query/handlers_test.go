package query

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-authflow/core"
)

type stubStatusReader struct {
	status core.Status
	err    error

	provider string
	email    string
}

func (s *stubStatusReader) CheckStatus(_ context.Context, provider string, email string) (core.Status, error) {
	s.provider = provider
	s.email = email
	return s.status, s.err
}

type stubAccountLister struct {
	accounts []core.AccountSummary
	err      error
}

func (s *stubAccountLister) ListAccounts(_ context.Context, provider string) ([]core.AccountSummary, error) {
	return s.accounts, s.err
}

func TestCheckStatusQuery_DelegatesToReader(t *testing.T) {
	expiresAt := time.Now().UTC().Add(time.Hour)
	reader := &stubStatusReader{status: core.Status{
		Authorized: true,
		Scopes:     []string{"repo"},
		ExpiresAt:  &expiresAt,
	}}

	status, err := NewCheckStatusQuery(reader).Query(context.Background(), CheckStatusMessage{
		Provider: "github",
		Email:    "a@x.com",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !status.Authorized || len(status.Scopes) != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
	if reader.provider != "github" || reader.email != "a@x.com" {
		t.Fatalf("unexpected reader payload: %q %q", reader.provider, reader.email)
	}
}

func TestListAccountsQuery_DelegatesToLister(t *testing.T) {
	lister := &stubAccountLister{accounts: []core.AccountSummary{
		{AccountID: "gmail_1", Provider: "gmail", Email: "a@x.com"},
		{AccountID: "gmail_2", Provider: "gmail", Email: "b@y.com"},
	}}

	accounts, err := NewListAccountsQuery(lister).Query(context.Background(), ListAccountsMessage{Provider: "gmail"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(accounts) != 2 || accounts[1].Email != "b@y.com" {
		t.Fatalf("unexpected accounts %+v", accounts)
	}
}

func TestQueries_MissingDependencies(t *testing.T) {
	if _, err := (*CheckStatusQuery)(nil).Query(context.Background(), CheckStatusMessage{Provider: "p"}); err == nil {
		t.Fatalf("expected dependency error for nil query")
	}
	if _, err := NewCheckStatusQuery(nil).Query(context.Background(), CheckStatusMessage{Provider: "p"}); err == nil {
		t.Fatalf("expected dependency error for nil reader")
	}
	if _, err := NewListAccountsQuery(nil).Query(context.Background(), ListAccountsMessage{Provider: "p"}); err == nil {
		t.Fatalf("expected dependency error for nil lister")
	}
}

func TestMessageValidation(t *testing.T) {
	if err := (CheckStatusMessage{}).Validate(); err == nil {
		t.Fatalf("expected missing provider to be rejected")
	}
	if err := (CheckStatusMessage{Provider: "github"}).Validate(); err != nil {
		t.Fatalf("email is optional: %v", err)
	}
	if err := (ListAccountsMessage{}).Validate(); err == nil {
		t.Fatalf("expected missing provider to be rejected")
	}
	if err := (ListAccountsMessage{Provider: "gmail"}).Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
