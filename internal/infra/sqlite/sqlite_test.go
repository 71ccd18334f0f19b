package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lockin-app/lockin/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *DB, id string) {
	t.Helper()
	created, err := db.CreateUser(context.Background(), domain.UserProgression{
		UserID:    id,
		CreatedAt: time.Now(),
		Level:     1,
		Title:     "Wanderer",
		Settings:  domain.DefaultSettings(),
	})
	if err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	if !created {
		t.Fatalf("CreateUser(%q) reported existing user", id)
	}
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "lockin.db")); os.IsNotExist(err) {
		t.Error("lockin.db should exist")
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	seedUser(t, db, "u1")
	db.Close()

	db2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	defer db2.Close()
	if _, err := db2.GetUser(context.Background(), "u1"); err != nil {
		t.Fatalf("GetUser() after reopen error: %v", err)
	}
}

// ─── Users ──────────────────────────────────────────────────────────────────

func TestCreateUser_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "u1")

	created, err := db.CreateUser(ctx, domain.UserProgression{UserID: "u1", TotalXP: 999})
	if err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	if created {
		t.Error("second CreateUser() should report existing user")
	}
	u, _ := db.GetUser(ctx, "u1")
	if u.TotalXP != 0 {
		t.Errorf("TotalXP = %d, existing document must not be overwritten", u.TotalXP)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetUser(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

// ─── Unit of Work ───────────────────────────────────────────────────────────

func TestUpdate_CommitsDocumentAndRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "u1")
	now := time.Now()

	err := db.Update(ctx, "u1", func(tx domain.ProgressionTx) error {
		u := tx.User()
		u.TotalXP += 50
		u.Stats.TotalSessions++
		if err := tx.InsertSession(domain.Session{
			ID: "s1", UserID: "u1", DurationMinutes: 25, Mood: domain.MoodNone, Timestamp: now, XPEarned: 50,
		}); err != nil {
			return err
		}
		return tx.AppendXPTransaction(domain.XPTransaction{
			ID: "x1", UserID: "u1", Amount: 50, Source: "focus_session",
			Metadata: map[string]string{"sessionId": "s1"}, Timestamp: now,
		})
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	u, _ := db.GetUser(ctx, "u1")
	if u.TotalXP != 50 || u.Stats.TotalSessions != 1 {
		t.Errorf("expected totalXP=50 sessions=1, got %d/%d", u.TotalXP, u.Stats.TotalSessions)
	}

	agg, err := db.Today(ctx, "u1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Today() error: %v", err)
	}
	if agg.Minutes != 25 || agg.Sessions != 1 || agg.XP != 50 {
		t.Errorf("expected aggregate 25/1/50, got %+v", agg)
	}
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "u1")
	boom := errors.New("boom")

	err := db.Update(ctx, "u1", func(tx domain.ProgressionTx) error {
		tx.User().TotalXP = 1000
		if err := tx.InsertSession(domain.Session{ID: "s1", UserID: "u1", DurationMinutes: 10, Mood: domain.MoodNone, Timestamp: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to pass through, got %v", err)
	}

	u, _ := db.GetUser(ctx, "u1")
	if u.TotalXP != 0 {
		t.Errorf("TotalXP = %d, rolled back unit must not persist", u.TotalXP)
	}
	counts, _ := db.CountRecords(ctx, "u1")
	if counts["sessions"] != 0 {
		t.Errorf("expected 0 sessions after rollback, got %d", counts["sessions"])
	}
}

func TestUpdate_UnknownUser(t *testing.T) {
	db := newTestDB(t)
	called := false
	err := db.Update(context.Background(), "ghost", func(tx domain.ProgressionTx) error {
		called = true
		return nil
	})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if called {
		t.Error("fn must not run for an unknown user")
	}
}

func TestToday_ExcludesEarlierRecords(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "u1")
	midnight := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	err := db.Update(ctx, "u1", func(tx domain.ProgressionTx) error {
		for i, ts := range []time.Time{midnight.Add(-time.Minute), midnight, midnight.Add(2 * time.Hour)} {
			s := domain.Session{ID: string(rune('a' + i)), UserID: "u1", DurationMinutes: 10, Mood: domain.MoodNone, Timestamp: ts}
			if err := tx.InsertSession(s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	agg, _ := db.Today(ctx, "u1", midnight)
	if agg.Sessions != 2 || agg.Minutes != 20 {
		t.Errorf("expected 2 sessions / 20 minutes since midnight, got %+v", agg)
	}
	sessions, _ := db.SessionsSince(ctx, "u1", midnight)
	if len(sessions) != 2 || sessions[0].ID != "b" {
		t.Errorf("expected sessions [b c] oldest first, got %+v", sessions)
	}
}

// ─── Sessions ───────────────────────────────────────────────────────────────

func TestSetSessionMood(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "u1")
	seedUser(t, db, "u2")
	now := time.Now()

	db.Update(ctx, "u1", func(tx domain.ProgressionTx) error {
		return tx.InsertSession(domain.Session{ID: "s1", UserID: "u1", DurationMinutes: 25, Mood: domain.MoodNone, Timestamp: now})
	})

	if err := db.SetSessionMood(ctx, "u1", "s1", domain.MoodGood); err != nil {
		t.Fatalf("SetSessionMood() error: %v", err)
	}
	sessions, _ := db.SessionsSince(ctx, "u1", now.Add(-time.Minute))
	if len(sessions) != 1 || sessions[0].Mood != domain.MoodGood {
		t.Errorf("expected mood good, got %+v", sessions)
	}

	if err := db.SetSessionMood(ctx, "u2", "s1", domain.MoodHard); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for foreign session, got %v", err)
	}
	if err := db.SetSessionMood(ctx, "u1", "nope", domain.MoodHard); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

// ─── Quests ─────────────────────────────────────────────────────────────────

func TestQuests_SaveGetList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "u1")
	created := time.Now().Truncate(time.Millisecond)

	err := db.Update(ctx, "u1", func(tx domain.ProgressionTx) error {
		if _, err := tx.GetQuest("q1"); !errors.Is(err, domain.ErrQuestNotFound) {
			t.Errorf("expected ErrQuestNotFound before save, got %v", err)
		}
		return tx.SaveQuest(domain.Quest{
			ID: "q1", Title: "Read a book", Difficulty: domain.DifficultyMedium, XPReward: 40, CreatedAt: created,
		})
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	err = db.Update(ctx, "u1", func(tx domain.ProgressionTx) error {
		q, err := tx.GetQuest("q1")
		if err != nil {
			return err
		}
		if q.Title != "Read a book" || q.XPReward != 40 || q.Completed {
			t.Errorf("unexpected quest %+v", q)
		}
		if !q.CreatedAt.Equal(created) {
			t.Errorf("CreatedAt = %v, want %v", q.CreatedAt, created)
		}
		q.Completed = true
		q.CompletedAt = created.Add(time.Hour)
		return tx.SaveQuest(*q)
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	quests, err := db.ListQuests(ctx, "u1")
	if err != nil {
		t.Fatalf("ListQuests() error: %v", err)
	}
	if len(quests) != 1 || !quests[0].Completed || quests[0].CompletedAt.IsZero() {
		t.Errorf("expected one completed quest, got %+v", quests)
	}
}

// ─── Deletion ───────────────────────────────────────────────────────────────

func TestDeleteUserData_PurgesEverything(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "u1")
	seedUser(t, db, "u2")
	now := time.Now()

	for _, uid := range []string{"u1", "u2"} {
		err := db.Update(ctx, uid, func(tx domain.ProgressionTx) error {
			if err := tx.InsertSession(domain.Session{ID: uid + "-s", UserID: uid, DurationMinutes: 5, Mood: domain.MoodNone, Timestamp: now}); err != nil {
				return err
			}
			if err := tx.AppendXPTransaction(domain.XPTransaction{ID: uid + "-x", UserID: uid, Amount: 10, Source: "manual", Timestamp: now}); err != nil {
				return err
			}
			if err := tx.AppendBadgeEvent(domain.BadgeEvent{ID: uid + "-b", UserID: uid, BadgeID: "first_focus", Timestamp: now}); err != nil {
				return err
			}
			return tx.SaveQuest(domain.Quest{ID: "q", Title: "t", Difficulty: domain.DifficultyEasy, XPReward: 5, CreatedAt: now})
		})
		if err != nil {
			t.Fatalf("seed %s: %v", uid, err)
		}
	}

	report, err := db.DeleteUserData(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteUserData() error: %v", err)
	}
	want := domain.DeleteReport{Sessions: 1, XPTransactions: 1, BadgeEvents: 1, Quests: 1, UserDeleted: true}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}

	counts, _ := db.CountRecords(ctx, "u1")
	for table, n := range counts {
		if n != 0 {
			t.Errorf("%s still holds %d rows for deleted user", table, n)
		}
	}
	others, _ := db.CountRecords(ctx, "u2")
	for table, n := range others {
		if n != 1 {
			t.Errorf("%s holds %d rows for u2, want 1", table, n)
		}
	}
}

func TestDeleteUserData_UnknownUser(t *testing.T) {
	db := newTestDB(t)
	_, err := db.DeleteUserData(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
