package migrations_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/goliatone/go-cart-recovery/migrations"
)

func TestFilesystemsExposeBothDialects(t *testing.T) {
	filesystems, err := migrations.Filesystems()
	if err != nil {
		t.Fatalf("resolve filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected postgres and sqlite filesystems, got %d", len(filesystems))
	}
	for _, fsys := range filesystems {
		matches, err := fs.Glob(fsys.FS, "*.up.sql")
		if err != nil {
			t.Fatalf("glob %s: %v", fsys.Dialect, err)
		}
		if len(matches) == 0 {
			t.Fatalf("expected up migrations for %s", fsys.Dialect)
		}
	}
}

func TestRegisterInvokesTargetsOnly(t *testing.T) {
	var dialects []string
	reg, err := migrations.Register(context.Background(), func(_ context.Context, dialect string, label string, fsys fs.FS) error {
		if label != "go-cart-recovery" {
			t.Fatalf("unexpected source label %q", label)
		}
		if fsys == nil {
			t.Fatalf("nil filesystem for %s", dialect)
		}
		dialects = append(dialects, dialect)
		return nil
	}, migrations.WithValidationTargets(migrations.DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(dialects) != 1 || dialects[0] != migrations.DialectSQLite {
		t.Fatalf("expected sqlite only, got %v", dialects)
	}
	if len(reg.Filesystems) != 2 {
		t.Fatalf("registration must still describe both dialect trees")
	}
}

func TestRegisterRequiresFunc(t *testing.T) {
	if _, err := migrations.Register(context.Background(), nil); err == nil {
		t.Fatalf("expected error without register function")
	}
}
