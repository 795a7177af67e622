package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newProfileServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func resolverFor(server *httptest.Server, provider string, endpoint ProviderEndpoint) *Resolver {
	return NewResolver(Config{
		HTTPClient: server.Client(),
		Endpoints:  map[string]ProviderEndpoint{provider: endpoint},
	})
}

func TestResolveEmail_FromUserInfoPayload(t *testing.T) {
	var gotAuth string
	server := newProfileServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"1234","email":"User@Example.com","email_verified":true}`))
	})

	resolver := resolverFor(server, "gmail", ProviderEndpoint{UserInfoURL: server.URL})
	email, err := resolver.ResolveEmail(context.Background(), "Gmail", "tok-123")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if email != "user@example.com" {
		t.Fatalf("expected normalized email, got %q", email)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
}

func TestResolveEmail_GitHubFallsBackToEmailList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		// Public profile email hidden.
		_, _ = w.Write([]byte(`{"id":42,"login":"octocat","email":null}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"email":"octo@noreply.github.com","primary":false,"verified":true},
			{"email":"octo@example.com","primary":true,"verified":true}
		]`))
	})
	server := newProfileServer(t, mux.ServeHTTP)

	resolver := resolverFor(server, "github", ProviderEndpoint{
		UserInfoURL: server.URL + "/user",
		EmailsURL:   server.URL + "/user/emails",
	})
	email, err := resolver.ResolveEmail(context.Background(), "github", "tok")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if email != "octo@example.com" {
		t.Fatalf("expected primary verified email, got %q", email)
	}
}

func TestResolveEmail_EmailListPreferenceOrder(t *testing.T) {
	server := newProfileServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/emails") {
			_, _ = w.Write([]byte(`[
				{"email":"first@example.com","primary":false,"verified":false},
				{"email":"verified@example.com","primary":false,"verified":true}
			]`))
			return
		}
		_, _ = w.Write([]byte(`{"id":42}`))
	})

	resolver := resolverFor(server, "github", ProviderEndpoint{
		UserInfoURL: server.URL + "/user",
		EmailsURL:   server.URL + "/user/emails",
	})
	email, err := resolver.ResolveEmail(context.Background(), "github", "tok")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if email != "verified@example.com" {
		t.Fatalf("expected verified email preferred over unverified, got %q", email)
	}
}

func TestResolveEmail_NoEmailAnywhere(t *testing.T) {
	server := newProfileServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/emails") {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`{"id":42,"login":"octocat"}`))
	})

	resolver := resolverFor(server, "github", ProviderEndpoint{
		UserInfoURL: server.URL + "/user",
		EmailsURL:   server.URL + "/user/emails",
	})
	_, err := resolver.ResolveEmail(context.Background(), "github", "tok")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestResolveEmail_NonSuccessStatus(t *testing.T) {
	server := newProfileServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	})

	resolver := resolverFor(server, "gmail", ProviderEndpoint{UserInfoURL: server.URL})
	_, err := resolver.ResolveEmail(context.Background(), "gmail", "tok")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestResolveEmail_UnknownProviderAndMissingToken(t *testing.T) {
	resolver := DefaultResolver()

	if _, err := resolver.ResolveEmail(context.Background(), "slack", "tok"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected unknown provider to miss, got %v", err)
	}
	if _, err := resolver.ResolveEmail(context.Background(), "github", "  "); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected empty token to be rejected, got %v", err)
	}
}

func TestResolveEmail_GoogleFamilyDefaultsToSharedEndpoint(t *testing.T) {
	resolver := DefaultResolver()
	endpoint, ok := resolver.endpointFor("google_sheets")
	if !ok {
		t.Fatalf("expected google_* providers to resolve an endpoint")
	}
	if endpoint.UserInfoURL != googleUserInfoURL {
		t.Fatalf("expected shared userinfo endpoint, got %q", endpoint.UserInfoURL)
	}
}
