// Package daemon manages the Lock In server lifecycle and configuration.
package daemon

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Config holds all daemon configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Store   StoreConfig   `toml:"store"`
	Engine  EngineConfig  `toml:"engine"`
	Logging LoggingConfig `toml:"logging"`
	Health  HealthConfig  `toml:"health"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host           string  `toml:"host"`
	Port           int     `toml:"port"`
	RateLimitRPS   float64 `toml:"rate_limit_rps"` // 0 disables limiting
	RateLimitBurst int     `toml:"rate_limit_burst"`
	Timeout        string  `toml:"timeout"`
	Metrics        bool    `toml:"metrics"`
}

// StoreConfig selects and configures the progression store.
type StoreConfig struct {
	Backend   string          `toml:"backend"`
	SQLiteDir string          `toml:"sqlite_dir"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Firestore FirestoreConfig `toml:"firestore"`
}

// PostgresConfig configures the pgx pool.
type PostgresConfig struct {
	URL             string `toml:"url"`
	MaxConns        int32  `toml:"max_conns"`
	MinConns        int32  `toml:"min_conns"`
	MaxConnLifetime string `toml:"max_conn_lifetime"`
	MaxConnIdleTime string `toml:"max_conn_idle_time"`
}

// FirestoreConfig configures the Firebase app.
type FirestoreConfig struct {
	ProjectID         string `toml:"project_id"`
	CredentialsFile   string `toml:"credentials_file"`
	CredentialsBase64 string `toml:"-"` // env only
}

// EngineConfig tunes the reward engine.
type EngineConfig struct {
	Timezone     string `toml:"timezone"`
	CascadeLimit int    `toml:"cascade_limit"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"` // info | debug
	File  string `toml:"file"`
}

// HealthConfig controls the background health checker.
type HealthConfig struct {
	Interval string `toml:"interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	homeDir := lockinHome()
	return Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			Timeout:        "30s",
			Metrics:        true,
		},
		Store: StoreConfig{
			Backend:   BackendSQLite,
			SQLiteDir: homeDir,
			Postgres: PostgresConfig{
				MaxConns:        25,
				MinConns:        5,
				MaxConnLifetime: "1h",
				MaxConnIdleTime: "30m",
			},
		},
		Engine: EngineConfig{
			Timezone:     "UTC",
			CascadeLimit: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Health: HealthConfig{
			Interval: "60s",
		},
	}
}

// LoadConfig reads $LOCKIN_HOME/config.toml, falling back to defaults,
// then applies .env and environment overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[daemon] .env not loaded: %v", err)
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides cfg from the process environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("LOCKIN_STORE"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.Postgres.URL = v
	}
	if v := os.Getenv("FIRESTORE_PROJECT_ID"); v != "" {
		cfg.Store.Firestore.ProjectID = v
	}
	if v := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); v != "" {
		cfg.Store.Firestore.CredentialsBase64 = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && cfg.Store.Firestore.CredentialsFile == "" {
		cfg.Store.Firestore.CredentialsFile = v
	}
	if v := os.Getenv("LOCKIN_TIMEZONE"); v != "" {
		cfg.Engine.Timezone = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			log.Printf("[daemon] ignoring invalid PORT %q", v)
		}
	}
}

// Validate checks backend-specific requirements.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
	case BackendPostgres:
		if c.Store.Postgres.URL == "" {
			return fmt.Errorf("store backend postgres requires store.postgres.url or DATABASE_URL")
		}
	case BackendFirestore:
		if c.Store.Firestore.ProjectID == "" {
			return fmt.Errorf("store backend firestore requires store.firestore.project_id or FIRESTORE_PROJECT_ID")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Logging.Level != "info" && c.Logging.Level != "debug" {
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}
	return nil
}

// Location resolves the engine timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine timezone %q: %w", c.Engine.Timezone, err)
	}
	return loc, nil
}

// SaveConfig writes the config to $LOCKIN_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(lockinHome(), "config.toml")
}

// lockinHome returns the Lock In data directory.
func lockinHome() string {
	if env := os.Getenv("LOCKIN_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lockin")
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
