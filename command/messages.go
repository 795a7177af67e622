// Package command exposes the flow operations as go-command messages so
// hosts can route them through their existing dispatcher, middleware, and
// result-collection machinery.
package command

import (
	"strings"

	"github.com/goliatone/go-authflow/core"
)

const (
	TypeInitiate                  = "authflow.command.initiate"
	TypeCompleteCallback          = "authflow.command.callback.complete"
	TypeCompleteCallbackWithToken = "authflow.command.callback.complete_with_token"
	TypeDisconnectAccount         = "authflow.command.account.disconnect"
	TypeDisconnectProvider        = "authflow.command.provider.disconnect"
)

type InitiateMessage struct {
	Request core.InitiateRequest
}

func (InitiateMessage) Type() string { return TypeInitiate }

func (m InitiateMessage) Validate() error {
	if strings.TrimSpace(m.Request.Provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	switch m.Request.Mode {
	case "", core.DispatchModePopup, core.DispatchModeRedirect:
	default:
		return commandValidationError("mode", "mode must be popup or redirect")
	}
	return nil
}

type CompleteCallbackMessage struct {
	Code  string
	State string
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	if strings.TrimSpace(m.State) == "" {
		return commandValidationError("state", "state is required")
	}
	return nil
}

// CompleteCallbackWithTokenMessage finishes a flow whose exchange already
// happened at the cross-origin backend; the credential arrives pre-built.
type CompleteCallbackWithTokenMessage struct {
	Code       string
	State      string
	Credential core.ProviderCredential
}

func (CompleteCallbackWithTokenMessage) Type() string { return TypeCompleteCallbackWithToken }

func (m CompleteCallbackWithTokenMessage) Validate() error {
	if strings.TrimSpace(m.State) == "" {
		return commandValidationError("state", "state is required")
	}
	if strings.TrimSpace(m.Credential.AccessToken) == "" {
		return commandValidationError("credential.access_token", "access token is required")
	}
	return nil
}

type DisconnectAccountMessage struct {
	Provider string
	Email    string
}

func (DisconnectAccountMessage) Type() string { return TypeDisconnectAccount }

func (m DisconnectAccountMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	if strings.TrimSpace(m.Email) == "" {
		return commandValidationError("email", "email is required")
	}
	return nil
}

type DisconnectProviderMessage struct {
	Provider string
}

func (DisconnectProviderMessage) Type() string { return TypeDisconnectProvider }

func (m DisconnectProviderMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	return nil
}
