// Package transport talks to the remote authorization collaborator: the
// service that holds the provider client secrets, builds consent URLs, and
// swaps authorization codes for tokens. The client here implements both
// core.AuthorizeClient and core.TokenExchanger over plain HTTP+JSON.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-authflow/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	defaultClientTimeout  = 30 * time.Second
	maxResponseBodyBytes  = 1 << 20 // 1 MiB
	defaultAuthorizePath  = "/oauth/authorize-url"
	defaultExchangePath   = "/oauth/exchange"
	tokenStorageHeader    = "X-Token-Storage"
	tokenStorageServerVal = "server"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	// BaseURL is the collaborator's root, e.g. https://auth.example.com.
	BaseURL string

	// AuthorizePath and ExchangePath override the default endpoint paths.
	AuthorizePath string
	ExchangePath  string

	HTTPClient     HTTPDoer
	RequestTimeout time.Duration

	// Headers are sent with every request (API keys and the like).
	Headers map[string]string

	// StorageObserver fires when the collaborator announces server-side
	// token custody via the X-Token-Storage header. Usually
	// core.PersistencePolicy.Observer().
	StorageObserver func()

	Logger core.Logger
}

type Client struct {
	baseURL         *url.URL
	authorizePath   string
	exchangePath    string
	httpClient      HTTPDoer
	requestTimeout  time.Duration
	headers         map[string]string
	storageObserver func()
	logger          core.Logger
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("transport: base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("transport: parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("transport: base url %q must be absolute", base)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultClientTimeout}
	}

	headers := make(map[string]string, len(cfg.Headers))
	for key, value := range cfg.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	client := &Client{
		baseURL:         parsed,
		authorizePath:   pathOrDefault(cfg.AuthorizePath, defaultAuthorizePath),
		exchangePath:    pathOrDefault(cfg.ExchangePath, defaultExchangePath),
		httpClient:      httpClient,
		requestTimeout:  cfg.RequestTimeout,
		headers:         headers,
		storageObserver: cfg.StorageObserver,
		logger:          glog.Ensure(cfg.Logger),
	}
	return client, nil
}

var (
	_ core.AuthorizeClient = (*Client)(nil)
	_ core.TokenExchanger  = (*Client)(nil)
)

type authorizeURLPayload struct {
	Provider            string   `json:"provider"`
	State               string   `json:"state"`
	CodeChallenge       string   `json:"codeChallenge"`
	CodeChallengeMethod string   `json:"codeChallengeMethod"`
	RedirectURI         string   `json:"redirectUri,omitempty"`
	CodeVerifier        string   `json:"codeVerifier,omitempty"`
	FrontendOrigin      string   `json:"frontendOrigin,omitempty"`
	Scopes              []string `json:"scopes,omitempty"`
}

type authorizeURLResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
	// Some deployments answer with "url" instead.
	URL string `json:"url"`
}

func (c *Client) BuildAuthorizationURL(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResponse, error) {
	if c == nil {
		return core.AuthorizeResponse{}, fmt.Errorf("transport: client is nil")
	}

	payload := authorizeURLPayload{
		Provider:            req.Provider,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		RedirectURI:         req.RedirectURI,
		CodeVerifier:        req.CodeVerifier,
		FrontendOrigin:      req.FrontendOrigin,
		Scopes:              req.Scopes,
	}

	status, body, err := c.postJSON(ctx, c.authorizePath, payload)
	if err != nil {
		return core.AuthorizeResponse{}, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return core.AuthorizeResponse{}, fmt.Errorf(
			"transport: authorize endpoint returned status %d: %s", status, strings.TrimSpace(string(body)),
		)
	}

	var parsed authorizeURLResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return core.AuthorizeResponse{}, fmt.Errorf("transport: decode authorize response: %w", err)
	}
	authorizationURL := strings.TrimSpace(parsed.AuthorizationURL)
	if authorizationURL == "" {
		authorizationURL = strings.TrimSpace(parsed.URL)
	}
	return core.AuthorizeResponse{AuthorizationURL: authorizationURL}, nil
}

type exchangePayload struct {
	Provider     string `json:"provider"`
	Code         string `json:"code"`
	CodeVerifier string `json:"codeVerifier,omitempty"`
	State        string `json:"state,omitempty"`
}

type tokenResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	TokenType    string   `json:"tokenType"`
	ExpiresIn    int64    `json:"expiresIn"`
	ExpiresAt    string   `json:"expiresAt"`
	Scopes       []string `json:"scopes"`
	Email        string   `json:"email"`
}

func (c *Client) Exchange(ctx context.Context, req core.ExchangeRequest) (core.ProviderCredential, error) {
	if c == nil {
		return core.ProviderCredential{}, fmt.Errorf("transport: client is nil")
	}

	payload := exchangePayload{
		Provider:     req.Provider,
		Code:         req.Code,
		CodeVerifier: req.CodeVerifier,
		State:        req.State,
	}

	status, body, err := c.postJSON(ctx, c.exchangePath, payload)
	if err != nil {
		return core.ProviderCredential{}, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		// The collaborator's error body travels verbatim so callers can see
		// exactly what the provider said (invalid_grant and friends).
		return core.ProviderCredential{}, fmt.Errorf(
			"%w: %s", core.ErrExchangeFailed, strings.TrimSpace(string(body)),
		)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return core.ProviderCredential{}, fmt.Errorf("transport: decode token response: %w", err)
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return core.ProviderCredential{}, fmt.Errorf("%w: response carries no access token", core.ErrExchangeFailed)
	}

	credential := core.ProviderCredential{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		TokenType:    parsed.TokenType,
		ExpiresIn:    parsed.ExpiresIn,
		Scopes:       parsed.Scopes,
		Email:        strings.ToLower(strings.TrimSpace(parsed.Email)),
	}
	if raw := strings.TrimSpace(parsed.ExpiresAt); raw != "" {
		if expiresAt, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			utc := expiresAt.UTC()
			credential.ExpiresAt = &utc
		} else {
			c.logger.Debug("token response carries unparseable expiry", "expires_at", raw)
		}
	}
	return credential, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx := ctx
	cancel := func() {}
	if c.requestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
	}
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("transport: encode request: %w", err)
	}

	endpoint := c.baseURL.JoinPath(path).String()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("transport: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("transport: execute request: %w", err)
	}
	defer res.Body.Close()

	c.observeTokenStorage(res.Header)

	responseBody, readErr := io.ReadAll(io.LimitReader(res.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return 0, nil, fmt.Errorf("transport: read response: %w", readErr)
	}
	if int64(len(responseBody)) > maxResponseBodyBytes {
		return 0, nil, fmt.Errorf("transport: response exceeds %d bytes", maxResponseBodyBytes)
	}
	return res.StatusCode, responseBody, nil
}

// observeTokenStorage watches for the collaborator announcing that it keeps
// tokens server-side. The flip is one-directional; repeat announcements are
// harmless.
func (c *Client) observeTokenStorage(headers http.Header) {
	if c.storageObserver == nil {
		return
	}
	value := strings.TrimSpace(strings.ToLower(headers.Get(tokenStorageHeader)))
	if value != tokenStorageServerVal {
		return
	}
	c.storageObserver()
}

func pathOrDefault(path string, fallback string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return fallback
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return trimmed
}
