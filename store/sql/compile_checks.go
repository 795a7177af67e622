package sqlstore

import (
	"github.com/goliatone/go-authflow/core"
	"github.com/goliatone/go-authflow/credstore"
)

var (
	_ credstore.StructuredStore = (*AccountStore)(nil)
	_ credstore.StructuredStore = (*CachedAccountStore)(nil)
	_ core.PendingStore         = (*PendingAuthStore)(nil)
)
