package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Lookup errors
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrQuestNotFound   = errors.New("quest not found")

	// State conflicts
	ErrQuestAlreadyCompleted = errors.New("quest already completed")
	ErrXPLimitReached        = errors.New("xp total limit reached")

	// Validation errors
	ErrInvalidDuration = errors.New("session duration must be between 1 and 600 minutes")
	ErrInvalidXPAmount = errors.New("xp amount out of range")
	ErrInvalidMood     = errors.New("unknown mood rating")
	ErrInvalidActivity = errors.New("unknown activity kind")
	ErrInvalidQuest    = errors.New("invalid quest")
	ErrInvalidSettings = errors.New("invalid settings")
	ErrInvalidUserID   = errors.New("user id must not be empty")
)

// StoreError tags a backend failure with the store operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore wraps err as a StoreError unless it is nil or already a
// domain sentinel the caller should see unchanged.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, s := range []error{ErrUserNotFound, ErrUserExists, ErrSessionNotFound, ErrQuestNotFound, ErrQuestAlreadyCompleted, ErrXPLimitReached} {
		if errors.Is(err, s) {
			return err
		}
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsStoreFailure reports whether err came from the backing store.
func IsStoreFailure(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
