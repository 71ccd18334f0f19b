package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lockin-app/lockin/internal/daemon"
)

func TestInitConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("LOCKIN_HOME", home)
	t.Chdir(home)

	path, err := initConfig(false)
	if err != nil {
		t.Fatalf("initConfig: %v", err)
	}
	if path != filepath.Join(home, "config.toml") {
		t.Errorf("expected config in %s, got %s", home, path)
	}

	cfg, err := daemon.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Backend != daemon.BackendSQLite || cfg.Server.Port != 8080 {
		t.Errorf("expected defaults, got backend %q port %d", cfg.Store.Backend, cfg.Server.Port)
	}

	if _, err := initConfig(false); err == nil {
		t.Error("expected an error when the config already exists")
	}

	if err := os.WriteFile(path, []byte("[server]\nport = 9999\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := initConfig(true); err != nil {
		t.Fatalf("initConfig --force: %v", err)
	}
	cfg, err = daemon.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("--force should restore port 8080, got %d", cfg.Server.Port)
	}
}
