package flatstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-authflow/core"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	credential := &core.ProviderCredential{
		AccessToken:  "tok-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		ExpiresAt:    &expires,
		Scopes:       []string{"repo", "user:email"},
		Email:        "a@x.com",
		AccountID:    core.AccountID("github", "a@x.com"),
	}
	if err := store.Set(ctx, "GitHub", credential); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Provider lookups are case-insensitive.
	got, err := store.Get(ctx, "github")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.AccessToken != "tok-1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Email != "a@x.com" || got.AccountID != "github_84o0r9" {
		t.Fatalf("identity fields did not round trip: %+v", got)
	}
	if len(got.Scopes) != 2 || got.Scopes[1] != "user:email" {
		t.Fatalf("scopes did not round trip: %v", got.Scopes)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("expiry did not round trip: %v", got.ExpiresAt)
	}
}

func TestFileStore_SingleSlotPerProvider(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	if err := store.Set(ctx, "gmail", &core.ProviderCredential{AccessToken: "first", Email: "a@x.com"}); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := store.Set(ctx, "gmail", &core.ProviderCredential{AccessToken: "second", Email: "b@y.com"}); err != nil {
		t.Fatalf("second set: %v", err)
	}

	got, err := store.Get(ctx, "gmail")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.AccessToken != "second" || got.Email != "b@y.com" {
		t.Fatalf("expected last write to win, got %+v", got)
	}
}

func TestFileStore_MissingAndRemove(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	got, err := store.Get(ctx, "github")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}

	if err := store.Set(ctx, "github", &core.ProviderCredential{AccessToken: "tok"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Remove(ctx, "github"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Remove(ctx, "github"); err != nil {
		t.Fatalf("removing an absent slot should be a no-op: %v", err)
	}
	if got, _ := store.Get(ctx, "github"); got != nil {
		t.Fatalf("expected slot cleared, got %+v", got)
	}
}

func TestFileStore_FilePermissions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	if err := store.Set(ctx, "github", &core.ProviderCredential{AccessToken: "tok"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "github.json"))
	if err != nil {
		t.Fatalf("stat credential file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected owner-only credential file, got %v", perm)
	}
}

func TestFileStore_InputValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewFileStore("  "); err == nil {
		t.Fatalf("expected empty directory to be rejected")
	}

	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, err := store.Get(ctx, "  "); err == nil {
		t.Fatalf("expected empty provider to be rejected")
	}
	if err := store.Set(ctx, "github", nil); err == nil {
		t.Fatalf("expected nil credential to be rejected")
	}
}
