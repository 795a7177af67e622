// Package authflow orchestrates OAuth 2.0 authorization-code flows with
// PKCE against a remote collaborator that holds the provider secrets, and
// stores the resulting credentials in a tiered store. The root package
// re-exports the core surface so hosts import one path.
package authflow

import "github.com/goliatone/go-authflow/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service
type FlowService = core.FlowService

type DispatchMode = core.DispatchMode
type InitiateRequest = core.InitiateRequest
type InitiateResult = core.InitiateResult
type CallbackResult = core.CallbackResult
type Status = core.Status

type ProviderCredential = core.ProviderCredential
type PendingAuthorization = core.PendingAuthorization
type ProviderConfig = core.ProviderConfig
type AccountSummary = core.AccountSummary

type CredentialStore = core.CredentialStore
type PendingStore = core.PendingStore
type AuthorizeClient = core.AuthorizeClient
type TokenExchanger = core.TokenExchanger
type EmailResolver = core.EmailResolver
type Dispatcher = core.Dispatcher
type VerifierCache = core.VerifierCache
type CallbackHook = core.CallbackHook
type PersistencePolicy = core.PersistencePolicy

const (
	DispatchModePopup    = core.DispatchModePopup
	DispatchModeRedirect = core.DispatchModeRedirect
)

var (
	WithLogger                 = core.WithLogger
	WithLoggerProvider         = core.WithLoggerProvider
	WithMetricsRecorder        = core.WithMetricsRecorder
	WithErrorFactory           = core.WithErrorFactory
	WithErrorMapper            = core.WithErrorMapper
	WithConfigProvider         = core.WithConfigProvider
	WithOptionsResolver        = core.WithOptionsResolver
	WithAuthorizeClient        = core.WithAuthorizeClient
	WithTokenExchanger         = core.WithTokenExchanger
	WithEmailResolver          = core.WithEmailResolver
	WithPendingStore           = core.WithPendingStore
	WithDurablePendingStore    = core.WithDurablePendingStore
	WithCredentialStore        = core.WithCredentialStore
	WithDispatcher             = core.WithDispatcher
	WithVerifierCache          = core.WithVerifierCache
	WithPersistencePolicy      = core.WithPersistencePolicy
	WithProviderConfigRegistry = core.WithProviderConfigRegistry
	WithCallbackHook           = core.WithCallbackHook
)

// AccountID derives the stable multi-account identifier for a provider and
// email pair.
func AccountID(provider string, email string) string {
	return core.AccountID(provider, email)
}

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
