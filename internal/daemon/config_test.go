package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, BackendSQLite)
	}
	if cfg.Engine.CascadeLimit != 4 {
		t.Errorf("Engine.CascadeLimit = %d, want 4", cfg.Engine.CascadeLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("LOCKIN_HOME", home)
	t.Chdir(home)

	cfg := DefaultConfig()
	cfg.Server.Port = 9000
	cfg.Engine.Timezone = "Europe/Berlin"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", got.Server.Port)
	}
	if got.Engine.Timezone != "Europe/Berlin" {
		t.Errorf("Engine.Timezone = %q, want Europe/Berlin", got.Engine.Timezone)
	}

	t.Setenv("PORT", "7070")
	t.Setenv("LOCKIN_TIMEZONE", "America/New_York")
	got, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Server.Port != 7070 {
		t.Errorf("PORT override: got %d, want 7070", got.Server.Port)
	}
	if got.Engine.Timezone != "America/New_York" {
		t.Errorf("LOCKIN_TIMEZONE override: got %q", got.Engine.Timezone)
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("LOCKIN_HOME", home)
	t.Chdir(home)
	// Registered so the value loaded from .env is cleared after the test.
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")
	t.Setenv("LOCKIN_STORE", "")
	os.Unsetenv("LOCKIN_STORE")

	env := "LOCKIN_STORE=postgres\nDATABASE_URL=postgres://lockin@localhost/lockin\n"
	if err := os.WriteFile(filepath.Join(home, ".env"), []byte(env), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Backend != BackendPostgres {
		t.Errorf("Store.Backend = %q, want postgres", cfg.Store.Backend)
	}
	if cfg.Store.Postgres.URL != "postgres://lockin@localhost/lockin" {
		t.Errorf("Store.Postgres.URL = %q", cfg.Store.Postgres.URL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"unknown backend", func(c *Config) { c.Store.Backend = "mongo" }, false},
		{"postgres without url", func(c *Config) { c.Store.Backend = BackendPostgres }, false},
		{"postgres with url", func(c *Config) {
			c.Store.Backend = BackendPostgres
			c.Store.Postgres.URL = "postgres://localhost/lockin"
		}, true},
		{"firestore without project", func(c *Config) { c.Store.Backend = BackendFirestore }, false},
		{"bad timezone", func(c *Config) { c.Engine.Timezone = "Mars/Olympus" }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"1h", time.Hour},
		{"", 5 * time.Second},
		{"soon", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseDuration(tt.input, 5*time.Second); got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewWithConfig_SQLite(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig()
	cfg.Store.SQLiteDir = home
	cfg.Logging.File = filepath.Join(home, "logs", "lockin.log")

	d, err := NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer d.Close()

	if _, err := os.Stat(cfg.Logging.File); err != nil {
		t.Errorf("log file not created: %v", err)
	}
	if _, _, err := d.Engine.CreateUser(context.Background(), "u1"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	d.Health.RunOnce(context.Background())
	if !d.Health.IsHealthy() {
		t.Errorf("expected healthy daemon, got %+v", d.Health.Statuses())
	}
}
