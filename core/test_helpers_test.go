package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

type stubAuthorizeClient struct {
	mu       sync.Mutex
	requests []AuthorizeRequest
	url      string
	err      error
}

func (c *stubAuthorizeClient) BuildAuthorizationURL(_ context.Context, req AuthorizeRequest) (AuthorizeResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.err != nil {
		return AuthorizeResponse{}, c.err
	}
	url := c.url
	if url == "" {
		url = "https://provider.example/authorize?state=" + req.State
	}
	return AuthorizeResponse{AuthorizationURL: url}, nil
}

func (c *stubAuthorizeClient) lastRequest() AuthorizeRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return AuthorizeRequest{}
	}
	return c.requests[len(c.requests)-1]
}

type stubTokenExchanger struct {
	mu         sync.Mutex
	requests   []ExchangeRequest
	credential ProviderCredential
	err        error
}

func (e *stubTokenExchanger) Exchange(_ context.Context, req ExchangeRequest) (ProviderCredential, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()
	if e.err != nil {
		return ProviderCredential{}, e.err
	}
	credential := e.credential
	if credential.AccessToken == "" {
		credential.AccessToken = "access-" + req.Code
	}
	return credential, nil
}

func (e *stubTokenExchanger) lastRequest() ExchangeRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.requests) == 0 {
		return ExchangeRequest{}
	}
	return e.requests[len(e.requests)-1]
}

// popupDispatcher simulates a popup window that comes back with the
// authorization code for whatever state it was given.
type popupDispatcher struct {
	mu       sync.Mutex
	requests []DispatchRequest
	code     string
	err      error
	signal   *Completion
	closed   bool
}

func (d *popupDispatcher) Dispatch(_ context.Context, req DispatchRequest) (Completion, error) {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()
	if d.err != nil {
		return Completion{}, d.err
	}
	if d.signal != nil {
		return *d.signal, nil
	}
	code := d.code
	if code == "" {
		code = "code-1"
	}
	if req.Mode == DispatchModeRedirect {
		return Completion{}, nil
	}
	return Completion{Code: code, State: req.State}, nil
}

func (d *popupDispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

type memoryCredentialStore struct {
	mu          sync.Mutex
	credentials map[string]ProviderCredential
	setErr      error
	getErr      error
}

func newMemoryCredentialStore() *memoryCredentialStore {
	return &memoryCredentialStore{credentials: map[string]ProviderCredential{}}
}

func credentialKey(provider, email string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + "|" + strings.ToLower(strings.TrimSpace(email))
}

func (s *memoryCredentialStore) GetCredential(_ context.Context, provider string, email string) (*ProviderCredential, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if email != "" {
		if credential, ok := s.credentials[credentialKey(provider, email)]; ok {
			cloned := credential.Clone()
			return &cloned, nil
		}
		return nil, nil
	}
	for key, credential := range s.credentials {
		if strings.HasPrefix(key, strings.ToLower(strings.TrimSpace(provider))+"|") {
			cloned := credential.Clone()
			return &cloned, nil
		}
	}
	return nil, nil
}

func (s *memoryCredentialStore) SetCredential(_ context.Context, provider string, credential *ProviderCredential, email string) error {
	if s.setErr != nil {
		return s.setErr
	}
	if credential == nil {
		return fmt.Errorf("memory credential store: credential is required")
	}
	s.mu.Lock()
	s.credentials[credentialKey(provider, email)] = credential.Clone()
	s.mu.Unlock()
	return nil
}

func (s *memoryCredentialStore) RemoveCredential(_ context.Context, provider string, email string) error {
	s.mu.Lock()
	delete(s.credentials, credentialKey(provider, email))
	s.mu.Unlock()
	return nil
}

func (s *memoryCredentialStore) RemoveProvider(_ context.Context, provider string) error {
	prefix := strings.ToLower(strings.TrimSpace(provider)) + "|"
	s.mu.Lock()
	for key := range s.credentials {
		if strings.HasPrefix(key, prefix) {
			delete(s.credentials, key)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *memoryCredentialStore) ListAccounts(_ context.Context, provider string) ([]AccountSummary, error) {
	prefix := strings.ToLower(strings.TrimSpace(provider)) + "|"
	s.mu.Lock()
	defer s.mu.Unlock()
	summaries := []AccountSummary{}
	for key, credential := range s.credentials {
		if strings.HasPrefix(key, prefix) {
			summaries = append(summaries, AccountSummary{
				AccountID: credential.AccountID,
				Provider:  provider,
				Email:     credential.Email,
				Scopes:    append([]string(nil), credential.Scopes...),
				ExpiresAt: credential.ExpiresAt,
			})
		}
	}
	return summaries, nil
}

func (s *memoryCredentialStore) stored(provider, email string) (ProviderCredential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.credentials[credentialKey(provider, email)]
	return credential, ok
}

type stubEmailResolver struct {
	email string
	err   error
}

func (r stubEmailResolver) ResolveEmail(context.Context, string, string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.email, nil
}

func newTestService(t *testing.T, options ...Option) (*Service, *stubAuthorizeClient, *stubTokenExchanger, *memoryCredentialStore) {
	t.Helper()
	authorize := &stubAuthorizeClient{}
	exchanger := &stubTokenExchanger{}
	store := newMemoryCredentialStore()
	base := []Option{
		WithAuthorizeClient(authorize),
		WithTokenExchanger(exchanger),
		WithCredentialStore(store),
	}
	svc, err := NewService(Config{}, append(base, options...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, authorize, exchanger, store
}
