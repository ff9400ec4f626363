package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Fatalf("expected default port 8000, got %q", cfg.Port)
	}
	if cfg.Engine.GraceWindow != 5*time.Second {
		t.Fatalf("expected 5s grace window, got %v", cfg.Engine.GraceWindow)
	}
	if cfg.Database.Driver != "mysql" {
		t.Fatalf("expected mysql driver, got %q", cfg.Database.Driver)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("SECRET", "")
	os.Unsetenv("SECRET")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err == nil {
		t.Fatal("expected error without SECRET")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	t.Setenv("SECRET", "s3cret")
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("GRACE_WINDOW=2s\nDB_DRIVER=sqlite\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("GRACE_WINDOW")
		os.Unsetenv("DB_DRIVER")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.GraceWindow != 2*time.Second {
		t.Fatalf("expected 2s grace window, got %v", cfg.Engine.GraceWindow)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "postgres")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
