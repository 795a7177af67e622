package query

import (
	"github.com/goliatone/go-authflow/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[CheckStatusMessage, core.Status]            = (*CheckStatusQuery)(nil)
	_ gocmd.Querier[ListAccountsMessage, []core.AccountSummary] = (*ListAccountsQuery)(nil)
)
