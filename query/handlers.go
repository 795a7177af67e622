package query

import (
	"context"

	"github.com/goliatone/go-authflow/core"
)

type StatusReader interface {
	CheckStatus(ctx context.Context, provider string, email string) (core.Status, error)
}

type AccountLister interface {
	ListAccounts(ctx context.Context, provider string) ([]core.AccountSummary, error)
}

type CheckStatusQuery struct {
	reader StatusReader
}

func NewCheckStatusQuery(reader StatusReader) *CheckStatusQuery {
	return &CheckStatusQuery{reader: reader}
}

func (q *CheckStatusQuery) Query(ctx context.Context, msg CheckStatusMessage) (core.Status, error) {
	if q == nil || q.reader == nil {
		return core.Status{}, queryDependencyError("query: status reader is required")
	}
	return q.reader.CheckStatus(ctx, msg.Provider, msg.Email)
}

type ListAccountsQuery struct {
	lister AccountLister
}

func NewListAccountsQuery(lister AccountLister) *ListAccountsQuery {
	return &ListAccountsQuery{lister: lister}
}

func (q *ListAccountsQuery) Query(ctx context.Context, msg ListAccountsMessage) ([]core.AccountSummary, error) {
	if q == nil || q.lister == nil {
		return nil, queryDependencyError("query: account lister is required")
	}
	return q.lister.ListAccounts(ctx, msg.Provider)
}
