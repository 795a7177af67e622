package migrations_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/goliatone/go-authflow/migrations"
)

func TestFilesystems_ResolvesBothDialects(t *testing.T) {
	filesystems, err := migrations.Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected postgres and sqlite trees, got %d", len(filesystems))
	}
	for _, spec := range filesystems {
		matches, globErr := fs.Glob(spec.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", spec.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected up migrations for %s", spec.Dialect)
		}
		downs, globErr := fs.Glob(spec.FS, "*.down.sql")
		if globErr != nil {
			t.Fatalf("glob %s downs: %v", spec.Dialect, globErr)
		}
		if len(downs) != len(matches) {
			t.Fatalf("%s: %d up vs %d down migrations", spec.Dialect, len(matches), len(downs))
		}
	}
}

func TestRegister_InvokesCallbackPerTarget(t *testing.T) {
	seen := map[string]string{}
	reg, err := migrations.Register(context.Background(),
		func(_ context.Context, dialect string, sourceLabel string, fsys fs.FS) error {
			if fsys == nil {
				t.Fatalf("nil filesystem for %s", dialect)
			}
			seen[dialect] = sourceLabel
			return nil
		},
	)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.SourceLabel != "go-authflow" {
		t.Fatalf("unexpected source label %q", reg.SourceLabel)
	}
	if len(seen) != 2 {
		t.Fatalf("expected both dialects registered, got %v", seen)
	}
}

func TestRegister_HonorsValidationTargets(t *testing.T) {
	seen := []string{}
	_, err := migrations.Register(context.Background(),
		func(_ context.Context, dialect string, _ string, _ fs.FS) error {
			seen = append(seen, dialect)
			return nil
		},
		migrations.WithValidationTargets(migrations.DialectSQLite),
	)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(seen) != 1 || seen[0] != migrations.DialectSQLite {
		t.Fatalf("expected sqlite only, got %v", seen)
	}
}

func TestRegister_RequiresCallback(t *testing.T) {
	if _, err := migrations.Register(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil register function")
	}
}
