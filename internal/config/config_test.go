package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("PAPERTROVE_DB_URL", "postgres://app@localhost/papertrove")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9000
database:
  url: ${PAPERTROVE_DB_URL}
  run_migrations: true
redis:
  addr: localhost:6379
blob:
  backend: fs
  root: /var/lib/papertrove
embeddings:
  provider: openai
  api_key: sk-test
auth:
  jwt_secret: shhh
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://app@localhost/papertrove" {
		t.Errorf("Database.URL = %q, env var not expanded", cfg.Database.URL)
	}
	if !cfg.Database.RunMigrations {
		t.Error("Database.RunMigrations = false")
	}
	if cfg.Blob.Backend != "fs" || cfg.Blob.Root != "/var/lib/papertrove" {
		t.Errorf("Blob = %+v", cfg.Blob)
	}
	if cfg.Embeddings.Provider != "openai" {
		t.Errorf("Embeddings.Provider = %q", cfg.Embeddings.Provider)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}

	// Unset sections fall back to defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Auth.TokenExpiry != 24*time.Hour {
		t.Errorf("Auth.TokenExpiry = %v, want 24h", cfg.Auth.TokenExpiry)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Blob.Backend != "memory" {
		t.Errorf("Blob.Backend = %q, want memory", cfg.Blob.Backend)
	}
	if cfg.Embeddings.Provider != "none" {
		t.Errorf("Embeddings.Provider = %q, want none", cfg.Embeddings.Provider)
	}
	if cfg.Database.URL != "" {
		t.Errorf("Database.URL = %q, want empty for dev mode", cfg.Database.URL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() with missing file succeeded")
	}
}

func TestLoadBlobRootImpliesFS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("blob:\n  root: /data\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Blob.Backend != "fs" {
		t.Errorf("Blob.Backend = %q, want fs inferred from root", cfg.Blob.Backend)
	}
}
