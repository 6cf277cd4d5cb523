package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/debemdeboas/postkey/internal/config"
	"github.com/debemdeboas/postkey/internal/db"
	"github.com/debemdeboas/postkey/internal/model"
	"github.com/debemdeboas/postkey/internal/repository"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPurgeCommand(t *testing.T) {
	t.Setenv("POSTKEY_BOT_TOKEN", "")
	dbPath := filepath.Join(t.TempDir(), "templates.db")

	sqlite := db.NewSQLite(dbPath)
	if err := sqlite.InitDB(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	now := time.Now()
	for _, age := range []time.Duration{48 * time.Hour, 30 * time.Hour, time.Hour} {
		created := now.Add(-age)
		repo := repository.NewDBTemplateRepository(sqlite, repository.WithClock(func() time.Time { return created }))
		if _, err := repo.Commit(context.Background(), "1", "t", "body", nil, model.Media{}); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
	}
	sqlite.Close()

	path := writeConfig(t, "storage:\n  path: "+dbPath+"\ntemplates:\n  retention: 24h\n")

	out, err := runRoot(t, "--config", path, "purge")
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if !strings.Contains(out, "Purged 2 template(s)") {
		t.Errorf("Unexpected output: %q", out)
	}

	out, err = runRoot(t, "--config", path, "purge")
	if err != nil {
		t.Fatalf("second purge failed: %v", err)
	}
	if !strings.Contains(out, "Purged 0 template(s)") {
		t.Errorf("Expected nothing left to purge, got %q", out)
	}
}

func TestServeRequiresToken(t *testing.T) {
	t.Setenv("POSTKEY_BOT_TOKEN", "")
	path := writeConfig(t, "storage:\n  path: "+filepath.Join(t.TempDir(), "t.db")+"\n")

	_, err := runRoot(t, "--config", path, "serve")
	if !errors.Is(err, config.ErrMissingToken) {
		t.Errorf("Expected ErrMissingToken, got %v", err)
	}
}

func TestUnknownCodecFailsFast(t *testing.T) {
	t.Setenv("POSTKEY_BOT_TOKEN", "")
	path := writeConfig(t, "storage:\n  path: "+filepath.Join(t.TempDir(), "t.db")+"\n  compression: lz4\n")

	if _, err := runRoot(t, "--config", path, "purge"); err == nil {
		t.Error("Expected an unknown codec to be rejected")
	}
}

func TestPurgeRejectsZeroRetention(t *testing.T) {
	t.Setenv("POSTKEY_BOT_TOKEN", "")
	dbPath := filepath.Join(t.TempDir(), "templates.db")
	path := writeConfig(t, "storage:\n  path: "+dbPath+"\ntemplates:\n  retention: 0s\n")

	if _, err := runRoot(t, "--config", path, "purge"); err == nil || !strings.Contains(err.Error(), "templates.retention") {
		t.Errorf("Expected a retention validation error, got %v", err)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Error("Expected the database to be left untouched")
	}
}

func TestConfiguredGrammar(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Buttons.ShortLinkPrefixes = []string{"t.me/"}

	g := cfg.Buttons.Grammar()
	b, ok := g.Validate("Chat", "t.me/postkey")
	if !ok || b.Target != "https://t.me/postkey" {
		t.Errorf("Expected short link to be normalized, got %+v (ok=%v)", b, ok)
	}
	if _, ok := g.Validate("Bad", "ftp://example.com"); ok {
		t.Error("Expected ftp target to be rejected")
	}
}
