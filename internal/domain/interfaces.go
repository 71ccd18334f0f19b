package domain

import (
	"context"
	"time"
)

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define the boundary between the reward engine and the
// backing document store. infra/sqlite, infra/postgres and infra/firestore
// implement them; the engine depends only on them.

// ProgressionStore persists user progression documents and the shared
// sessions, xpTransactions and badgeEvents collections.
type ProgressionStore interface {
	// CreateUser stores p if no document exists for p.UserID.
	// Returns false when the user already existed.
	CreateUser(ctx context.Context, p UserProgression) (bool, error)

	// GetUser returns a point-in-time snapshot. ErrUserNotFound if absent.
	GetUser(ctx context.Context, userID string) (*UserProgression, error)

	// Update runs fn as one unit of work. The user document returned by
	// tx.User() is saved when fn returns nil; nothing is written when fn
	// returns an error. ErrUserNotFound if the user is absent.
	Update(ctx context.Context, userID string, fn func(tx ProgressionTx) error) error

	// SetSessionMood overwrites a session's mood. ErrSessionNotFound if the
	// session is absent or belongs to another user.
	SetSessionMood(ctx context.Context, userID, sessionID string, mood Mood) error

	// SessionsSince returns the user's sessions with Timestamp >= since,
	// oldest first.
	SessionsSince(ctx context.Context, userID string, since time.Time) ([]Session, error)

	// Today aggregates the user's sessions and XP transactions with
	// Timestamp >= since outside of any unit of work.
	Today(ctx context.Context, userID string, since time.Time) (DayAggregate, error)

	// ListQuests returns the user's structured quests, newest first.
	ListQuests(ctx context.Context, userID string) ([]Quest, error)

	// DeleteUserData purges every record of the user, the document last.
	DeleteUserData(ctx context.Context, userID string) (DeleteReport, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ProgressionTx is the view of the store inside one unit of work.
// Reads observe the state at the start of the unit; writes become
// visible only when the unit commits.
type ProgressionTx interface {
	// User returns the mutable user document of this unit of work.
	User() *UserProgression

	// Today aggregates sessions and XP transactions with Timestamp >= since.
	Today(since time.Time) (DayAggregate, error)

	InsertSession(s Session) error
	AppendXPTransaction(t XPTransaction) error
	AppendBadgeEvent(e BadgeEvent) error

	// GetQuest loads a structured quest. ErrQuestNotFound if absent.
	GetQuest(questID string) (*Quest, error)
	SaveQuest(q Quest) error
}
