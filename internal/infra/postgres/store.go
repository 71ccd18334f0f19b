// Package postgres provides a PostgreSQL progression store for multi-instance
// deployments. User progression documents live in a JSONB column and every
// unit of work locks the user row with SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lockin-app/lockin/internal/domain"
)

// Store is a pgxpool-backed domain.ProgressionStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ domain.ProgressionStore = (*Store)(nil)

// PoolOptions tunes the connection pool. Zero values keep pgx defaults.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Open connects to databaseURL and runs migrations.
func Open(ctx context.Context, databaseURL string, opts PoolOptions) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			uid        TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id        TEXT PRIMARY KEY,
			user_id   TEXT NOT NULL,
			duration  INTEGER NOT NULL,
			mood      TEXT NOT NULL DEFAULT 'none',
			timestamp TIMESTAMPTZ NOT NULL,
			xp_earned BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_ts ON sessions(user_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS xp_transactions (
			id        TEXT PRIMARY KEY,
			user_id   TEXT NOT NULL,
			amount    BIGINT NOT NULL,
			source    TEXT NOT NULL,
			metadata  JSONB NOT NULL DEFAULT '{}',
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_user_ts ON xp_transactions(user_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS badge_events (
			id        TEXT PRIMARY KEY,
			user_id   TEXT NOT NULL,
			badge_id  TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_badge_events_user ON badge_events(user_id)`,
		`CREATE TABLE IF NOT EXISTS quests (
			user_id      TEXT NOT NULL,
			id           TEXT NOT NULL,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			difficulty   TEXT NOT NULL,
			xp_reward    BIGINT NOT NULL,
			completed    BOOLEAN NOT NULL DEFAULT false,
			completed_at TIMESTAMPTZ,
			created_at   TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, id)
		)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("exec migration: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Progression Store ──────────────────────────────────────────────────────

// CreateUser inserts p unless a document for p.UserID exists.
func (s *Store) CreateUser(ctx context.Context, p domain.UserProgression) (bool, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("encode user: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO users (uid, doc) VALUES ($1, $2) ON CONFLICT (uid) DO NOTHING`,
		p.UserID, doc,
	)
	if err != nil {
		return false, domain.WrapStore("create user", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetUser returns the stored document of userID.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.UserProgression, error) {
	return loadUser(ctx, s.pool, userID, false)
}

// Update locks the user row, runs fn and saves the document when fn succeeds.
func (s *Store) Update(ctx context.Context, userID string, fn func(tx domain.ProgressionTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.WrapStore("begin", err)
	}
	defer tx.Rollback(ctx)

	u, err := loadUser(ctx, tx, userID, true)
	if err != nil {
		return err
	}
	if err := fn(&progressionTx{ctx: ctx, tx: tx, user: u}); err != nil {
		return err
	}
	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET doc = $1, updated_at = now() WHERE uid = $2`, doc, userID,
	); err != nil {
		return domain.WrapStore("save user", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.WrapStore("commit", err)
	}
	return nil
}

// SetSessionMood overwrites the mood of one of userID's sessions.
func (s *Store) SetSessionMood(ctx context.Context, userID, sessionID string, mood domain.Mood) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET mood = $1 WHERE id = $2 AND user_id = $3`,
		string(mood), sessionID, userID,
	)
	if err != nil {
		return domain.WrapStore("set mood", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// SessionsSince returns userID's sessions at or after since, oldest first.
func (s *Store) SessionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, duration, mood, timestamp, xp_earned
		 FROM sessions WHERE user_id = $1 AND timestamp >= $2
		 ORDER BY timestamp, id`,
		userID, since,
	)
	if err != nil {
		return nil, domain.WrapStore("list sessions", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var (
			sess domain.Session
			mood string
		)
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.DurationMinutes, &mood, &sess.Timestamp, &sess.XPEarned); err != nil {
			return nil, domain.WrapStore("scan session", err)
		}
		sess.Mood = domain.Mood(mood)
		sessions = append(sessions, sess)
	}
	return sessions, domain.WrapStore("list sessions", rows.Err())
}

// Today aggregates userID's activity at or after since.
func (s *Store) Today(ctx context.Context, userID string, since time.Time) (domain.DayAggregate, error) {
	return aggregateSince(ctx, s.pool, userID, since)
}

// ListQuests returns userID's structured quests, newest first.
func (s *Store) ListQuests(ctx context.Context, userID string) ([]domain.Quest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, description, difficulty, xp_reward, completed, completed_at, created_at
		 FROM quests WHERE user_id = $1 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, domain.WrapStore("list quests", err)
	}
	defer rows.Close()

	var quests []domain.Quest
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, domain.WrapStore("scan quest", err)
		}
		quests = append(quests, *q)
	}
	return quests, domain.WrapStore("list quests", rows.Err())
}

// DeleteUserData removes every record of userID in one transaction. The
// quest purge runs in a savepoint so its failure is logged and skipped
// without aborting the rest.
func (s *Store) DeleteUserData(ctx context.Context, userID string) (domain.DeleteReport, error) {
	var report domain.DeleteReport
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return report, domain.WrapStore("begin", err)
	}
	defer tx.Rollback(ctx)

	purge := func(q querier, table string) (int, error) {
		tag, err := q.Exec(ctx, `DELETE FROM `+table+` WHERE user_id = $1`, userID)
		if err != nil {
			return 0, domain.WrapStore("delete "+table, err)
		}
		return int(tag.RowsAffected()), nil
	}

	if report.Sessions, err = purge(tx, "sessions"); err != nil {
		return report, err
	}
	if report.XPTransactions, err = purge(tx, "xp_transactions"); err != nil {
		return report, err
	}
	if report.BadgeEvents, err = purge(tx, "badge_events"); err != nil {
		return report, err
	}
	if n, qerr := purgeQuests(ctx, tx, purge); qerr != nil {
		log.Printf("[postgres] quest cleanup for %s failed: %v", userID, qerr)
	} else {
		report.Quests = n
	}

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE uid = $1`, userID)
	if err != nil {
		return report, domain.WrapStore("delete user", err)
	}
	report.UserDeleted = tag.RowsAffected() > 0

	if err := tx.Commit(ctx); err != nil {
		return report, domain.WrapStore("commit", err)
	}
	if !report.UserDeleted {
		return report, domain.ErrUserNotFound
	}
	return report, nil
}

func purgeQuests(ctx context.Context, tx pgx.Tx, purge func(querier, string) (int, error)) (int, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return 0, domain.WrapStore("savepoint", err)
	}
	defer sp.Rollback(ctx)
	n, err := purge(sp, "quests")
	if err != nil {
		return 0, err
	}
	if err := sp.Commit(ctx); err != nil {
		return 0, domain.WrapStore("release savepoint", err)
	}
	return n, nil
}

// ─── Unit of Work ───────────────────────────────────────────────────────────

type progressionTx struct {
	ctx  context.Context
	tx   pgx.Tx
	user *domain.UserProgression
}

func (t *progressionTx) User() *domain.UserProgression { return t.user }

func (t *progressionTx) Today(since time.Time) (domain.DayAggregate, error) {
	return aggregateSince(t.ctx, t.tx, t.user.UserID, since)
}

func (t *progressionTx) InsertSession(s domain.Session) error {
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO sessions (id, user_id, duration, mood, timestamp, xp_earned)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.UserID, s.DurationMinutes, string(s.Mood), s.Timestamp, s.XPEarned,
	)
	return domain.WrapStore("insert session", err)
}

func (t *progressionTx) AppendXPTransaction(x domain.XPTransaction) error {
	meta := x.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = t.tx.Exec(t.ctx,
		`INSERT INTO xp_transactions (id, user_id, amount, source, metadata, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		x.ID, x.UserID, x.Amount, x.Source, raw, x.Timestamp,
	)
	return domain.WrapStore("append xp transaction", err)
}

func (t *progressionTx) AppendBadgeEvent(e domain.BadgeEvent) error {
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO badge_events (id, user_id, badge_id, timestamp) VALUES ($1, $2, $3, $4)`,
		e.ID, e.UserID, e.BadgeID, e.Timestamp,
	)
	return domain.WrapStore("append badge event", err)
}

func (t *progressionTx) GetQuest(questID string) (*domain.Quest, error) {
	row := t.tx.QueryRow(t.ctx,
		`SELECT id, title, description, difficulty, xp_reward, completed, completed_at, created_at
		 FROM quests WHERE user_id = $1 AND id = $2`,
		t.user.UserID, questID,
	)
	q, err := scanQuest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuestNotFound, questID)
	}
	if err != nil {
		return nil, domain.WrapStore("get quest", err)
	}
	return q, nil
}

func (t *progressionTx) SaveQuest(q domain.Quest) error {
	var completedAt *time.Time
	if !q.CompletedAt.IsZero() {
		completedAt = &q.CompletedAt
	}
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO quests (user_id, id, title, description, difficulty, xp_reward, completed, completed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			difficulty = EXCLUDED.difficulty,
			xp_reward = EXCLUDED.xp_reward,
			completed = EXCLUDED.completed,
			completed_at = EXCLUDED.completed_at,
			created_at = EXCLUDED.created_at`,
		t.user.UserID, q.ID, q.Title, q.Description, string(q.Difficulty), q.XPReward,
		q.Completed, completedAt, q.CreatedAt,
	)
	return domain.WrapStore("save quest", err)
}

// ─── Row Helpers ────────────────────────────────────────────────────────────

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadUser(ctx context.Context, q querier, userID string, lock bool) (*domain.UserProgression, error) {
	query := `SELECT doc FROM users WHERE uid = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var doc []byte
	err := q.QueryRow(ctx, query, userID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, domain.WrapStore("get user", err)
	}
	var u domain.UserProgression
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, domain.WrapStore("decode user", err)
	}
	return &u, nil
}

func aggregateSince(ctx context.Context, q querier, userID string, since time.Time) (domain.DayAggregate, error) {
	var agg domain.DayAggregate
	err := q.QueryRow(ctx,
		`SELECT COALESCE(SUM(duration), 0)::BIGINT, COUNT(*) FROM sessions WHERE user_id = $1 AND timestamp >= $2`,
		userID, since,
	).Scan(&agg.Minutes, &agg.Sessions)
	if err != nil {
		return agg, domain.WrapStore("aggregate sessions", err)
	}
	err = q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::BIGINT FROM xp_transactions WHERE user_id = $1 AND timestamp >= $2`,
		userID, since,
	).Scan(&agg.XP)
	if err != nil {
		return agg, domain.WrapStore("aggregate xp", err)
	}
	return agg, nil
}

func scanQuest(row pgx.Row) (*domain.Quest, error) {
	var (
		q           domain.Quest
		difficulty  string
		completedAt *time.Time
	)
	err := row.Scan(&q.ID, &q.Title, &q.Description, &difficulty, &q.XPReward,
		&q.Completed, &completedAt, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	q.Difficulty = domain.QuestDifficulty(difficulty)
	if completedAt != nil {
		q.CompletedAt = *completedAt
	}
	return &q, nil
}
