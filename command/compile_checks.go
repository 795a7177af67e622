package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[InitiateMessage]                  = (*InitiateCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage]          = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[CompleteCallbackWithTokenMessage] = (*CompleteCallbackWithTokenCommand)(nil)
	_ gocmd.Commander[DisconnectAccountMessage]         = (*DisconnectAccountCommand)(nil)
	_ gocmd.Commander[DisconnectProviderMessage]        = (*DisconnectProviderCommand)(nil)
)
