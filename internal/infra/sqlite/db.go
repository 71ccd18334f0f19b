// Package sqlite provides SQLite-based persistent storage for Lock In.
// Uses WAL mode for concurrent reads and crash-safe writes.
// The user progression document is stored as JSON; sessions, XP
// transactions, badge events and quests are relational rows.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/lockin.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "lockin.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; one connection also serialises units of work.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// User progression documents
		`CREATE TABLE IF NOT EXISTS users (
			uid        TEXT PRIMARY KEY,
			doc        TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		// Focus sessions
		`CREATE TABLE IF NOT EXISTS sessions (
			id        TEXT PRIMARY KEY,
			user_id   TEXT NOT NULL,
			duration  INTEGER NOT NULL,
			mood      TEXT NOT NULL DEFAULT 'none',
			timestamp INTEGER NOT NULL,
			xp_earned INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_ts ON sessions(user_id, timestamp)`,

		// XP audit log
		`CREATE TABLE IF NOT EXISTS xp_transactions (
			id        TEXT PRIMARY KEY,
			user_id   TEXT NOT NULL,
			amount    INTEGER NOT NULL,
			source    TEXT NOT NULL,
			metadata  TEXT NOT NULL DEFAULT '{}',
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_user_ts ON xp_transactions(user_id, timestamp)`,

		// Badge audit log
		`CREATE TABLE IF NOT EXISTS badge_events (
			id        TEXT PRIMARY KEY,
			user_id   TEXT NOT NULL,
			badge_id  TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_badge_events_user ON badge_events(user_id)`,

		// Structured quests (per user)
		`CREATE TABLE IF NOT EXISTS quests (
			user_id      TEXT NOT NULL,
			id           TEXT NOT NULL,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			difficulty   TEXT NOT NULL,
			xp_reward    INTEGER NOT NULL,
			completed    BOOLEAN NOT NULL DEFAULT 0,
			completed_at INTEGER,
			created_at   INTEGER NOT NULL,
			PRIMARY KEY (user_id, id)
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
