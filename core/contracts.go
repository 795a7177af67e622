package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// DispatchMode selects how the browser reaches the provider consent page.
type DispatchMode string

const (
	// DispatchModePopup opens a window and awaits a single completion signal.
	DispatchModePopup DispatchMode = "popup"
	// DispatchModeRedirect performs a full navigation; the flow resumes in a
	// later process instance through the durable pending store.
	DispatchModeRedirect DispatchMode = "redirect"
)

// AuthorizeRequest is sent to the remote authorize collaborator. The raw
// verifier travels only in redirect mode, so a cross-origin backend can hold
// it between the two legs; FrontendOrigin only in the cross-origin variant.
type AuthorizeRequest struct {
	Provider            string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	RedirectURI         string
	CodeVerifier        string
	FrontendOrigin      string
	Scopes              []string
}

type AuthorizeResponse struct {
	AuthorizationURL string
}

// AuthorizeClient builds the provider consent URL at the remote collaborator,
// which is the only party holding the client secret.
type AuthorizeClient interface {
	BuildAuthorizationURL(ctx context.Context, req AuthorizeRequest) (AuthorizeResponse, error)
}

type ExchangeRequest struct {
	Provider     string
	Code         string
	CodeVerifier string
	State        string
}

// TokenExchanger swaps an authorization code for tokens at the remote
// collaborator. Non-success responses surface their body text verbatim.
type TokenExchanger interface {
	Exchange(ctx context.Context, req ExchangeRequest) (ProviderCredential, error)
}

// EmailResolver looks up the account email behind a fresh access token.
// Failures are non-fatal to the flow; the credential is stored without a
// multi-account discriminator.
type EmailResolver interface {
	ResolveEmail(ctx context.Context, provider string, accessToken string) (string, error)
}

// EmailResolution is the best-effort outcome of identity resolution. Callers
// only ever extract the default; Err exists for logging.
type EmailResolution struct {
	Email string
	Err   error
}

func (r EmailResolution) OrEmpty() string {
	if r.Err != nil {
		return ""
	}
	return r.Email
}

// PendingStore holds pending authorizations keyed by state. Get does not
// consume; Delete is explicit so expiry and success share one removal path.
type PendingStore interface {
	Save(ctx context.Context, pending PendingAuthorization) error
	Get(ctx context.Context, state string) (PendingAuthorization, bool, error)
	Delete(ctx context.Context, state string) error
}

// CredentialStore is the tiered credential backend (host hooks, structured
// embedded store, flat fallback) fronted by an in-process cache.
type CredentialStore interface {
	GetCredential(ctx context.Context, provider string, email string) (*ProviderCredential, error)
	SetCredential(ctx context.Context, provider string, credential *ProviderCredential, email string) error
	RemoveCredential(ctx context.Context, provider string, email string) error
	RemoveProvider(ctx context.Context, provider string) error
	ListAccounts(ctx context.Context, provider string) ([]AccountSummary, error)
}

// AccountSummary is one stored (provider, email) pair.
type AccountSummary struct {
	AccountID string
	Provider  string
	Email     string
	Scopes    []string
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

// DispatchRequest asks the coordinator to take the browser to the consent
// page.
type DispatchRequest struct {
	Mode             DispatchMode
	AuthorizationURL string
	State            string
}

// Completion is the single signal delivered back from a popup: either a
// code/state pair or an explicit error (for example the user closing the
// window). Delivered at most once per popup.
type Completion struct {
	Code  string
	State string
	Err   error
}

// Dispatcher owns popup/redirect mechanics. In popup mode Dispatch blocks for
// the completion signal; in redirect mode it returns once navigation is
// dispatched and the returned Completion is zero.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (Completion, error)
	Close() error
}

// CallbackHook is invoked with (provider, code, state) before the exchange.
// Hook failures are logged and swallowed; they never block the flow.
type CallbackHook func(ctx context.Context, provider string, code string, state string) error

// VerifierCacheEntry parks a PKCE verifier server-side while the cross-origin
// authorize/callback round trip is in flight.
type VerifierCacheEntry struct {
	CodeVerifier   string
	Provider       string
	FrontendOrigin string
	ExpiresAt      time.Time
}

// VerifierCache sweeps expired entries opportunistically on every call; there
// is no background timer. Retrieve of an unknown or expired state is a clean
// miss, never an error.
type VerifierCache interface {
	Store(ctx context.Context, state string, entry VerifierCacheEntry) error
	Retrieve(ctx context.Context, state string) (VerifierCacheEntry, bool, error)
}

// CallbackResult is what both completion variants hand back.
type CallbackResult struct {
	Provider   string
	Credential ProviderCredential
}

// InitiateRequest starts a flow.
type InitiateRequest struct {
	Provider       string
	Mode           DispatchMode
	RedirectURI    string
	ReturnURL      string
	FrontendOrigin string
	Scopes         []string
}

// InitiateResult reports the dispatched flow. Credential is set only in popup
// mode, where Initiate blocks through the full cycle.
type InitiateResult struct {
	Provider         string
	State            string
	AuthorizationURL string
	Credential       *ProviderCredential
}

// Status is a pure existence check; tokens are never re-validated against the
// provider here. Validity is checked lazily on actual API use.
type Status struct {
	Authorized bool
	Scopes     []string
	ExpiresAt  *time.Time
}

type FlowService interface {
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	CompleteCallback(ctx context.Context, code string, state string) (CallbackResult, error)
	CompleteCallbackWithToken(ctx context.Context, code string, state string, credential ProviderCredential) (CallbackResult, error)
	CheckStatus(ctx context.Context, provider string, email string) (Status, error)
	DisconnectAccount(ctx context.Context, provider string, email string) error
	DisconnectProvider(ctx context.Context, provider string) error
}
