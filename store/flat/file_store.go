// Package flatstore keeps one credential per provider in a JSON file on
// disk. It is the lowest credential tier: a single slot per provider with
// no account history, used when no database is wired in.
package flatstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-authflow/core"
	"github.com/goliatone/go-authflow/credstore"
	glog "github.com/goliatone/go-logger/glog"
)

var _ credstore.FlatStore = (*FileStore)(nil)

type credentialDocument struct {
	Provider     string     `json:"provider"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	ExpiresIn    int64      `json:"expires_in,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	Email        string     `json:"email,omitempty"`
	AccountID    string     `json:"account_id,omitempty"`
	SavedAt      time.Time  `json:"saved_at"`
}

// FileStore persists one credential document per provider under a base
// directory. Writes go through a temp file and rename so a crashed write
// never leaves a torn document behind.
type FileStore struct {
	dir    string
	logger core.Logger
}

type Option func(*FileStore)

func WithLogger(logger core.Logger) Option {
	return func(s *FileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileStore roots the store at dir, creating it if needed. Credential
// files and the directory itself are owner-only.
func NewFileStore(dir string, options ...Option) (*FileStore, error) {
	cleaned := strings.TrimSpace(dir)
	if cleaned == "" {
		return nil, fmt.Errorf("flatstore: directory is required")
	}
	if err := os.MkdirAll(cleaned, 0o700); err != nil {
		return nil, fmt.Errorf("flatstore: create %s: %w", cleaned, err)
	}

	store := &FileStore{dir: cleaned}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	store.logger = glog.Ensure(store.logger)

	return store, nil
}

func (s *FileStore) Get(ctx context.Context, provider string) (*core.ProviderCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(provider)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flatstore: read %s: %w", path, err)
	}

	var doc credentialDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("flatstore: decode %s: %w", path, err)
	}

	return &core.ProviderCredential{
		AccessToken:  doc.AccessToken,
		RefreshToken: doc.RefreshToken,
		TokenType:    doc.TokenType,
		ExpiresIn:    doc.ExpiresIn,
		ExpiresAt:    doc.ExpiresAt,
		Scopes:       append([]string{}, doc.Scopes...),
		Email:        doc.Email,
		AccountID:    doc.AccountID,
	}, nil
}

func (s *FileStore) Set(ctx context.Context, provider string, credential *core.ProviderCredential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if credential == nil {
		return fmt.Errorf("flatstore: credential is required")
	}
	path, err := s.path(provider)
	if err != nil {
		return err
	}

	doc := credentialDocument{
		Provider:     normalizeProvider(provider),
		AccessToken:  credential.AccessToken,
		RefreshToken: credential.RefreshToken,
		TokenType:    credential.TokenType,
		ExpiresIn:    credential.ExpiresIn,
		Scopes:       append([]string{}, credential.Scopes...),
		Email:        credential.Email,
		AccountID:    credential.AccountID,
		SavedAt:      time.Now().UTC(),
	}
	if credential.ExpiresAt != nil {
		expiresAt := credential.ExpiresAt.UTC()
		doc.ExpiresAt = &expiresAt
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("flatstore: encode %s: %w", doc.Provider, err)
	}

	if err := s.writeAtomic(path, payload); err != nil {
		return err
	}
	s.logger.Debug("credential slot written", "provider", doc.Provider, "path", path)
	return nil
}

func (s *FileStore) Remove(ctx context.Context, provider string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(provider)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("flatstore: remove %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) writeAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".credential-*.tmp")
	if err != nil {
		return fmt.Errorf("flatstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("flatstore: write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("flatstore: close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("flatstore: chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("flatstore: rename to %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) path(provider string) (string, error) {
	providerID := normalizeProvider(provider)
	if providerID == "" {
		return "", fmt.Errorf("flatstore: provider is required")
	}
	return filepath.Join(s.dir, url.PathEscape(providerID)+".json"), nil
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
