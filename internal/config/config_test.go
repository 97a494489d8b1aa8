package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "5000" || cfg.Database.Driver != "sqlite" || cfg.Database.Path != "kanban.db" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins %v", cfg.Server.CORSOrigins)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour || cfg.Lock.TTL != 10*time.Second || cfg.Lock.Wait != 5*time.Second {
		t.Fatalf("unexpected durations %+v %+v", cfg.Auth, cfg.Lock)
	}
	if cfg.Redis.URL != "" {
		t.Fatalf("expected no redis by default, got %q", cfg.Redis.URL)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := `
[server]
port = "8080"

[database]
driver = "mongo"
name = "boards"

[lock]
wait = "250ms"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("KANBAN_AUTH_SECRET", "from-env")
	t.Setenv("KANBAN_SERVER_PORT", "9090")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("env should override file, got port %q", cfg.Server.Port)
	}
	if cfg.Database.Driver != "mongo" || cfg.Database.Name != "boards" {
		t.Fatalf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Auth.Secret != "from-env" || cfg.Lock.Wait != 250*time.Millisecond {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("KANBAN_DATABASE_DRIVER", "postgres")
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[server\nport ="), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}
