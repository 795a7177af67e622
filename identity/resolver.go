// Package identity resolves the account email behind a freshly issued
// access token. The email becomes the multi-account discriminator for the
// credential store, so resolution is best-effort: callers treat failures as
// "store without an email", never as flow failures.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-authflow/core"
)

const (
	defaultRequestTimeout   = 10 * time.Second
	maxProfileResponseBytes = 1 << 20 // 1 MiB

	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	githubUserInfoURL = "https://api.github.com/user"
	githubEmailsURL   = "https://api.github.com/user/emails"
)

// ErrProfileNotFound reports that the provider's profile endpoint yielded no
// usable email for the token.
var ErrProfileNotFound = errors.New("identity: profile not found")

func profileNotFound(cause error) error {
	if cause == nil {
		return ErrProfileNotFound
	}
	return fmt.Errorf("%w: %v", ErrProfileNotFound, cause)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProviderEndpoint describes where a provider exposes its profile. EmailsURL
// is optional; when set it is consulted if the profile payload carries no
// public email (GitHub hides emails behind a second endpoint).
type ProviderEndpoint struct {
	UserInfoURL string
	EmailsURL   string
}

type Config struct {
	HTTPClient     HTTPDoer
	RequestTimeout time.Duration

	// Endpoints overrides or extends the built-in provider table. Keys are
	// provider identifiers, matched case-insensitively.
	Endpoints map[string]ProviderEndpoint
}

// Resolver implements core.EmailResolver against provider userinfo
// endpoints. Unknown google_* providers fall back to the shared OpenID
// Connect userinfo endpoint.
type Resolver struct {
	httpClient     HTTPDoer
	requestTimeout time.Duration
	endpoints      map[string]ProviderEndpoint
}

func NewResolver(cfg Config) *Resolver {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	endpoints := defaultProviderEndpoints()
	for key, value := range cfg.Endpoints {
		providerID := normalizeProviderID(key)
		if providerID == "" {
			continue
		}
		endpoints[providerID] = ProviderEndpoint{
			UserInfoURL: strings.TrimSpace(value.UserInfoURL),
			EmailsURL:   strings.TrimSpace(value.EmailsURL),
		}
	}

	return &Resolver{
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
		endpoints:      endpoints,
	}
}

func DefaultResolver() *Resolver {
	return NewResolver(Config{})
}

var _ core.EmailResolver = (*Resolver)(nil)

func (r *Resolver) ResolveEmail(ctx context.Context, provider string, accessToken string) (string, error) {
	if r == nil {
		return "", ErrProfileNotFound
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(accessToken) == "" {
		return "", profileNotFound(fmt.Errorf("access token is required"))
	}

	providerID := normalizeProviderID(provider)
	endpoint, ok := r.endpointFor(providerID)
	if !ok {
		return "", profileNotFound(fmt.Errorf("no profile endpoint for provider %q", providerID))
	}

	payload, err := r.fetchJSONObject(ctx, endpoint.UserInfoURL, accessToken)
	if err != nil {
		return "", profileNotFound(err)
	}

	email := normalizeEmail(readString(payload["email"]))
	if email == "" && endpoint.EmailsURL != "" {
		email, err = r.fetchPreferredEmail(ctx, endpoint.EmailsURL, accessToken)
		if err != nil {
			return "", profileNotFound(err)
		}
	}
	if email == "" {
		return "", profileNotFound(fmt.Errorf("profile carries no email"))
	}
	return email, nil
}

func (r *Resolver) endpointFor(providerID string) (ProviderEndpoint, bool) {
	if endpoint, ok := r.endpoints[providerID]; ok && endpoint.UserInfoURL != "" {
		return endpoint, true
	}
	if strings.HasPrefix(providerID, "google_") || providerID == "gmail" {
		return ProviderEndpoint{UserInfoURL: googleUserInfoURL}, true
	}
	return ProviderEndpoint{}, false
}

func defaultProviderEndpoints() map[string]ProviderEndpoint {
	return map[string]ProviderEndpoint{
		"github": {
			UserInfoURL: githubUserInfoURL,
			EmailsURL:   githubEmailsURL,
		},
		"gmail": {
			UserInfoURL: googleUserInfoURL,
		},
		"google_calendar": {
			UserInfoURL: googleUserInfoURL,
		},
		"google_docs": {
			UserInfoURL: googleUserInfoURL,
		},
		"google_drive": {
			UserInfoURL: googleUserInfoURL,
		},
	}
}

// fetchPreferredEmail reads a GitHub-style email list: prefer the primary
// verified address, then any verified one, then the first entry.
func (r *Resolver) fetchPreferredEmail(ctx context.Context, endpoint string, accessToken string) (string, error) {
	body, err := r.fetch(ctx, endpoint, accessToken)
	if err != nil {
		return "", err
	}

	var entries []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", fmt.Errorf("decode email list: %w", err)
	}

	var verified, first string
	for _, entry := range entries {
		email := normalizeEmail(entry.Email)
		if email == "" {
			continue
		}
		if entry.Primary && entry.Verified {
			return email, nil
		}
		if entry.Verified && verified == "" {
			verified = email
		}
		if first == "" {
			first = email
		}
	}
	if verified != "" {
		return verified, nil
	}
	return first, nil
}

func (r *Resolver) fetchJSONObject(ctx context.Context, endpoint string, accessToken string) (map[string]any, error) {
	body, err := r.fetch(ctx, endpoint, accessToken)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}
	return payload, nil
}

func (r *Resolver) fetch(ctx context.Context, endpoint string, accessToken string) ([]byte, error) {
	requestCtx := ctx
	cancel := func() {}
	if r.requestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, r.requestTimeout)
	}
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(accessToken))

	res, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(res.Body, maxProfileResponseBytes+1))
	if readErr != nil {
		return nil, fmt.Errorf("read profile response: %w", readErr)
	}
	if int64(len(body)) > maxProfileResponseBytes {
		return nil, fmt.Errorf("profile response exceeds %d bytes", maxProfileResponseBytes)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("profile endpoint returned status %d", res.StatusCode)
	}
	return body, nil
}

func normalizeProviderID(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func readString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return ""
	}
}
