package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lockin-app/lockin/internal/domain"
)

// ─── Progression Store ──────────────────────────────────────────────────────
// DB implements domain.ProgressionStore. A unit of work is one SQL
// transaction; the single pooled connection serialises writers.

var _ domain.ProgressionStore = (*DB)(nil)

// CreateUser inserts p unless a document for p.UserID exists.
func (d *DB) CreateUser(ctx context.Context, p domain.UserProgression) (bool, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("encode user: %w", err)
	}
	now := toMillis(time.Now())
	result, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (uid, doc, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		p.UserID, string(doc), now, now,
	)
	if err != nil {
		return false, domain.WrapStore("create user", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// GetUser returns the stored document of userID.
func (d *DB) GetUser(ctx context.Context, userID string) (*domain.UserProgression, error) {
	return loadUser(ctx, d.db, userID)
}

// Update runs fn inside one transaction and saves the user document when
// fn succeeds.
func (d *DB) Update(ctx context.Context, userID string, fn func(tx domain.ProgressionTx) error) (err error) {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapStore("begin", err)
	}
	defer func() {
		if err != nil {
			sqlTx.Rollback()
		}
	}()

	u, err := loadUser(ctx, sqlTx, userID)
	if err != nil {
		return err
	}
	if err := fn(&progressionTx{ctx: ctx, tx: sqlTx, user: u}); err != nil {
		return err
	}
	if err := saveUser(ctx, sqlTx, u); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return domain.WrapStore("commit", err)
	}
	return nil
}

// SetSessionMood overwrites the mood of one of userID's sessions.
func (d *DB) SetSessionMood(ctx context.Context, userID, sessionID string, mood domain.Mood) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE sessions SET mood = ? WHERE id = ? AND user_id = ?`,
		string(mood), sessionID, userID,
	)
	if err != nil {
		return domain.WrapStore("set mood", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// SessionsSince returns userID's sessions at or after since, oldest first.
func (d *DB) SessionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Session, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, duration, mood, timestamp, xp_earned
		 FROM sessions WHERE user_id = ? AND timestamp >= ?
		 ORDER BY timestamp, id`,
		userID, toMillis(since),
	)
	if err != nil {
		return nil, domain.WrapStore("list sessions", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, domain.WrapStore("scan session", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, domain.WrapStore("list sessions", rows.Err())
}

// Today aggregates userID's activity at or after since.
func (d *DB) Today(ctx context.Context, userID string, since time.Time) (domain.DayAggregate, error) {
	return aggregateSince(ctx, d.db, userID, since)
}

// ListQuests returns userID's structured quests, newest first.
func (d *DB) ListQuests(ctx context.Context, userID string) ([]domain.Quest, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, title, description, difficulty, xp_reward, completed, completed_at, created_at
		 FROM quests WHERE user_id = ? ORDER BY created_at DESC, id`,
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

// DeleteUserData removes every record of userID in one transaction,
// the user document last. A quest cleanup failure is logged and skipped.
// Returns ErrUserNotFound, after purging any orphaned records, when no
// user document existed.
func (d *DB) DeleteUserData(ctx context.Context, userID string) (report domain.DeleteReport, err error) {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return report, domain.WrapStore("begin", err)
	}
	defer func() {
		if err != nil {
			sqlTx.Rollback() // no-op once committed
		}
	}()

	purge := func(table string) (int, error) {
		result, err := sqlTx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ?`, userID)
		if err != nil {
			return 0, domain.WrapStore("delete "+table, err)
		}
		n, _ := result.RowsAffected()
		return int(n), nil
	}

	if report.Sessions, err = purge("sessions"); err != nil {
		return report, err
	}
	if report.XPTransactions, err = purge("xp_transactions"); err != nil {
		return report, err
	}
	if report.BadgeEvents, err = purge("badge_events"); err != nil {
		return report, err
	}
	if n, qerr := purge("quests"); qerr != nil {
		log.Printf("[sqlite] quest cleanup for %s failed: %v", userID, qerr)
	} else {
		report.Quests = n
	}

	result, err := sqlTx.ExecContext(ctx, `DELETE FROM users WHERE uid = ?`, userID)
	if err != nil {
		return report, domain.WrapStore("delete user", err)
	}
	n, _ := result.RowsAffected()
	report.UserDeleted = n > 0

	if err = sqlTx.Commit(); err != nil {
		return report, domain.WrapStore("commit", err)
	}
	if !report.UserDeleted {
		return report, domain.ErrUserNotFound
	}
	return report, nil
}

// ─── Unit of Work ───────────────────────────────────────────────────────────

type progressionTx struct {
	ctx  context.Context
	tx   *sql.Tx
	user *domain.UserProgression
}

func (t *progressionTx) User() *domain.UserProgression { return t.user }

func (t *progressionTx) Today(since time.Time) (domain.DayAggregate, error) {
	return aggregateSince(t.ctx, t.tx, t.user.UserID, since)
}

func (t *progressionTx) InsertSession(s domain.Session) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO sessions (id, user_id, duration, mood, timestamp, xp_earned)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.DurationMinutes, string(s.Mood), toMillis(s.Timestamp), s.XPEarned,
	)
	return domain.WrapStore("insert session", err)
}

func (t *progressionTx) AppendXPTransaction(x domain.XPTransaction) error {
	meta, err := json.Marshal(x.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO xp_transactions (id, user_id, amount, source, metadata, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		x.ID, x.UserID, x.Amount, x.Source, string(meta), toMillis(x.Timestamp),
	)
	return domain.WrapStore("append xp transaction", err)
}

func (t *progressionTx) AppendBadgeEvent(e domain.BadgeEvent) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO badge_events (id, user_id, badge_id, timestamp) VALUES (?, ?, ?, ?)`,
		e.ID, e.UserID, e.BadgeID, toMillis(e.Timestamp),
	)
	return domain.WrapStore("append badge event", err)
}

func (t *progressionTx) GetQuest(questID string) (*domain.Quest, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT id, title, description, difficulty, xp_reward, completed, completed_at, created_at
		 FROM quests WHERE user_id = ? AND id = ?`,
		t.user.UserID, questID,
	)
	q, err := scanQuest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuestNotFound, questID)
	}
	if err != nil {
		return nil, domain.WrapStore("get quest", err)
	}
	return q, nil
}

func (t *progressionTx) SaveQuest(q domain.Quest) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO quests (user_id, id, title, description, difficulty, xp_reward, completed, completed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, id) DO UPDATE SET
			title=excluded.title,
			description=excluded.description,
			difficulty=excluded.difficulty,
			xp_reward=excluded.xp_reward,
			completed=excluded.completed,
			completed_at=excluded.completed_at,
			created_at=excluded.created_at`,
		t.user.UserID, q.ID, q.Title, q.Description, string(q.Difficulty), q.XPReward,
		q.Completed, nullableMillis(q.CompletedAt), toMillis(q.CreatedAt),
	)
	return domain.WrapStore("save quest", err)
}

// ─── Row Helpers ────────────────────────────────────────────────────────────

func loadUser(ctx context.Context, q querier, userID string) (*domain.UserProgression, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT doc FROM users WHERE uid = ?`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, domain.WrapStore("get user", err)
	}
	var u domain.UserProgression
	if err := json.Unmarshal([]byte(doc), &u); err != nil {
		return nil, domain.WrapStore("decode user", err)
	}
	return &u, nil
}

func saveUser(ctx context.Context, q querier, u *domain.UserProgression) error {
	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	_, err = q.ExecContext(ctx,
		`UPDATE users SET doc = ?, updated_at = ? WHERE uid = ?`,
		string(doc), toMillis(time.Now()), u.UserID,
	)
	return domain.WrapStore("save user", err)
}

func aggregateSince(ctx context.Context, q querier, userID string, since time.Time) (domain.DayAggregate, error) {
	var agg domain.DayAggregate
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration), 0), COUNT(*) FROM sessions WHERE user_id = ? AND timestamp >= ?`,
		userID, toMillis(since),
	).Scan(&agg.Minutes, &agg.Sessions)
	if err != nil {
		return agg, domain.WrapStore("aggregate sessions", err)
	}
	err = q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM xp_transactions WHERE user_id = ? AND timestamp >= ?`,
		userID, toMillis(since),
	).Scan(&agg.XP)
	if err != nil {
		return agg, domain.WrapStore("aggregate xp", err)
	}
	return agg, nil
}

func scanSession(s scanner) (*domain.Session, error) {
	var (
		sess domain.Session
		mood string
		ts   int64
	)
	if err := s.Scan(&sess.ID, &sess.UserID, &sess.DurationMinutes, &mood, &ts, &sess.XPEarned); err != nil {
		return nil, err
	}
	sess.Mood = domain.Mood(mood)
	sess.Timestamp = fromMillis(ts)
	return &sess, nil
}

func scanQuest(s scanner) (*domain.Quest, error) {
	var (
		q           domain.Quest
		difficulty  string
		completedAt sql.NullInt64
		createdAt   int64
	)
	err := s.Scan(&q.ID, &q.Title, &q.Description, &difficulty, &q.XPReward,
		&q.Completed, &completedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	q.Difficulty = domain.QuestDifficulty(difficulty)
	q.CreatedAt = fromMillis(createdAt)
	if completedAt.Valid {
		q.CompletedAt = fromMillis(completedAt.Int64)
	}
	return &q, nil
}

// CountRecords returns how many rows of userID each collection holds.
func (d *DB) CountRecords(ctx context.Context, userID string) (map[string]int, error) {
	counts := make(map[string]int)
	tables := []struct{ name, column string }{
		{"users", "uid"},
		{"sessions", "user_id"},
		{"xp_transactions", "user_id"},
		{"badge_events", "user_id"},
		{"quests", "user_id"},
	}
	for _, t := range tables {
		var n int
		err := d.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+t.name+` WHERE `+t.column+` = ?`, userID,
		).Scan(&n)
		if err != nil {
			return nil, domain.WrapStore("count "+t.name, err)
		}
		counts[t.name] = n
	}
	return counts, nil
}
