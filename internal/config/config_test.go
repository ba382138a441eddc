package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadServerMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadServer("/nonexistent/keyduel.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.ReadTimeout != 120*time.Second {
		t.Errorf("ReadTimeout = %v, want 120s", cfg.ReadTimeout)
	}
	if cfg.Database.DBName != "keyduel" {
		t.Errorf("DBName = %q, want keyduel", cfg.Database.DBName)
	}
}

func TestLoadServerOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyduel.yaml")
	data := `
port: 9090
allowed_origins:
  - https://keyduel.example
auth:
  secret: prod-secret
redis:
  addr: redis.internal:6379
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://keyduel.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.Auth.Secret != "prod-secret" {
		t.Errorf("Auth.Secret = %q", cfg.Auth.Secret)
	}
	// Untouched keys keep their defaults.
	if cfg.BindAddress != "0.0.0.0" {
		t.Errorf("BindAddress = %q, want default", cfg.BindAddress)
	}
	if cfg.SendQueueSize != 256 {
		t.Errorf("SendQueueSize = %d, want default 256", cfg.SendQueueSize)
	}
}

func TestLoadServerBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [not a number"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadServer(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p",
		DBName: "keyduel", SSLMode: "disable",
	}
	want := "postgres://u:p@db:5433/keyduel?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
