package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockin-app/lockin/internal/app/engagement"
	"github.com/lockin-app/lockin/internal/domain"
	"github.com/lockin-app/lockin/internal/health"
	"github.com/lockin-app/lockin/internal/infra/sqlite"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e := engagement.NewEngine(db, engagement.WithLocation(time.UTC))
	return NewServer(e)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func createUser(t *testing.T, h http.Handler, uid string) {
	t.Helper()
	w := do(t, h, "POST", "/api/v1/users/"+uid, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

// ─── Health & Static Tables ─────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv.Handler(), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decode(t, w, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestHealth_WithChecker(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	srv := NewServer(engagement.NewEngine(db))
	c := health.NewChecker(db, "")
	srv.SetHealthChecker(c)

	c.RunOnce(context.Background())
	assert.Equal(t, http.StatusOK, do(t, srv.Handler(), "GET", "/health", "").Code)

	db.Close()
	c.RunOnce(context.Background())
	w := do(t, srv.Handler(), "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestLevelLookup(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, "GET", "/api/v1/levels/1000", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Level   engagement.LevelInfo `json:"level"`
		Rewards []string             `json:"rewards"`
	}
	decode(t, w, &body)
	assert.Equal(t, 6, body.Level.Level)
	assert.Equal(t, "Apprentice", body.Level.Title)
	assert.Equal(t, int64(350), body.Level.XPToNextLevel)
	assert.NotNil(t, body.Rewards)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "GET", "/api/v1/levels/-5", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "GET", "/api/v1/levels/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "GET", "/api/v1/levels/9223372036854775807", "").Code)

	w = do(t, h, "GET", fmt.Sprintf("/api/v1/levels/%d", engagement.MaxTotalXP), "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &body)
	assert.Equal(t, engagement.LevelForXP(engagement.MaxTotalXP), body.Level.Level)
}

func TestCatalog(t *testing.T) {
	h := newTestServer(t).Handler()
	w := do(t, h, "GET", "/api/v1/badges", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Badges     []domain.Badge `json:"badges"`
		Activities []string       `json:"activities"`
	}
	decode(t, w, &body)
	assert.Len(t, body.Badges, len(engagement.Catalog()))
	assert.Contains(t, body.Activities, "resist")
}

// ─── Users ──────────────────────────────────────────────────────────────────

func TestCreateUser(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, "POST", "/api/v1/users/alice", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var u domain.UserProgression
	decode(t, w, &u)
	assert.Equal(t, "alice", u.UserID)
	assert.Equal(t, "Wanderer", u.Title)

	// Repeat create returns the existing document.
	w = do(t, h, "POST", "/api/v1/users/alice", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfile_NotFound(t *testing.T) {
	h := newTestServer(t).Handler()
	w := do(t, h, "GET", "/api/v1/users/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}

func TestSettings(t *testing.T) {
	h := newTestServer(t).Handler()
	createUser(t, h, "alice")

	w := do(t, h, "PUT", "/api/v1/users/alice/settings", `{"screenTimeGoal": 3}`)
	require.Equal(t, http.StatusOK, w.Code)
	var s domain.Settings
	decode(t, w, &s)
	assert.Equal(t, 3, s.ScreenTimeGoalHours)

	w = do(t, h, "PUT", "/api/v1/users/alice/settings", `{"screenTimeGoal": 99}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "PUT", "/api/v1/users/alice/settings", `{"theme": "dark"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ─── Sessions ───────────────────────────────────────────────────────────────

func TestRecordSession(t *testing.T) {
	h := newTestServer(t).Handler()
	createUser(t, h, "alice")

	w := do(t, h, "POST", "/api/v1/users/alice/sessions", `{"duration": 25}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res engagement.SessionResult
	decode(t, w, &res)
	assert.Equal(t, int64(50), res.XPAwarded)
	assert.Equal(t, 1, res.Streak)
	assert.NotEmpty(t, res.SessionID)
	require.NotEmpty(t, res.BadgesEarned)
	assert.Equal(t, "first_focus", res.BadgesEarned[0].ID)

	w = do(t, h, "PATCH", "/api/v1/users/alice/sessions/"+res.SessionID, `{"mood": "good"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, "PATCH", "/api/v1/users/alice/sessions/"+res.SessionID, `{"mood": "meh"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "GET", "/api/v1/users/alice/sessions/today", "")
	require.Equal(t, http.StatusOK, w.Code)
	var today struct {
		Sessions []domain.Session    `json:"sessions"`
		Today    domain.DayAggregate `json:"today"`
	}
	decode(t, w, &today)
	require.Len(t, today.Sessions, 1)
	assert.Equal(t, domain.MoodGood, today.Sessions[0].Mood)
	assert.Equal(t, int64(25), today.Today.Minutes)
}

func TestRecordSession_Errors(t *testing.T) {
	h := newTestServer(t).Handler()
	createUser(t, h, "alice")

	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/api/v1/users/alice/sessions", `{"duration": 0}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/api/v1/users/alice/sessions", `not json`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "POST", "/api/v1/users/bob/sessions", `{"duration": 25}`).Code)
}

// ─── XP, Streak, Badges ─────────────────────────────────────────────────────

func TestAwardXP(t *testing.T) {
	h := newTestServer(t).Handler()
	createUser(t, h, "alice")

	w := do(t, h, "POST", "/api/v1/users/alice/xp", `{"amount": 120, "source": "bonus"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res engagement.AwardResult
	decode(t, w, &res)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.NewLevel)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/api/v1/users/alice/xp", `{"amount": -1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/api/v1/users/alice/xp", `{"amount": 4611686018427387904}`).Code)
}

func TestStreakAndBadges(t *testing.T) {
	h := newTestServer(t).Handler()
	createUser(t, h, "alice")

	for i := 0; i < 3; i++ {
		w := do(t, h, "POST", "/api/v1/users/alice/streak", `{"increment": true}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(t, h, "GET", "/api/v1/users/alice/badges", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Badges []engagement.BadgeStatus `json:"badges"`
	}
	decode(t, w, &body)
	earned := map[string]bool{}
	for _, b := range body.Badges {
		earned[b.ID] = b.Earned
	}
	assert.True(t, earned["streak_3"])
	assert.False(t, earned["streak_7"])

	w = do(t, h, "POST", "/api/v1/users/alice/badges/check", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"badgesEarned": []}`, w.Body.String())
}

func TestActivity(t *testing.T) {
	h := newTestServer(t).Handler()
	createUser(t, h, "alice")

	w := do(t, h, "POST", "/api/v1/users/alice/activities", `{"kind": "resist", "count": 10}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "resister")

	w = do(t, h, "POST", "/api/v1/users/alice/activities", `{"kind": "juggling"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ─── Quests ─────────────────────────────────────────────────────────────────

func TestDailyQuests(t *testing.T) {
	h := newTestServer(t).Handler()
	createUser(t, h, "alice")
	do(t, h, "POST", "/api/v1/users/alice/sessions", `{"duration": 30}`)

	w := do(t, h, "GET", "/api/v1/users/alice/quests/daily", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Quests []domain.DailyQuest `json:"quests"`
	}
	decode(t, w, &body)
	require.NotEmpty(t, body.Quests)

	w = do(t, h, "POST", "/api/v1/users/alice/quests/daily/session-30min/check", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res engagement.DailyQuestResult
	decode(t, w, &res)
	assert.True(t, res.Completed)
	assert.Equal(t, int64(20), res.XPAwarded)

	w = do(t, h, "POST", "/api/v1/users/alice/quests/daily/session-30min/check", "")
	decode(t, w, &res)
	assert.True(t, res.AlreadyAwarded)
	assert.Zero(t, res.XPAwarded)

	w = do(t, h, "POST", "/api/v1/users/alice/quests/daily/nope/check", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStructuredQuests(t *testing.T) {
	h := newTestServer(t).Handler()
	createUser(t, h, "alice")

	w := do(t, h, "POST", "/api/v1/users/alice/quests", `{"title": "Walk", "difficulty": "hard", "xpReward": 60}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var q domain.Quest
	decode(t, w, &q)
	require.NotEmpty(t, q.ID)

	w = do(t, h, "GET", "/api/v1/users/alice/quests", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), q.ID)

	w = do(t, h, "POST", "/api/v1/users/alice/quests/"+q.ID+"/complete", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res engagement.QuestResult
	decode(t, w, &res)
	assert.Equal(t, int64(60), res.XPAwarded)

	w = do(t, h, "POST", "/api/v1/users/alice/quests/"+q.ID+"/complete", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, "POST", "/api/v1/users/alice/quests/missing/complete", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "POST", "/api/v1/users/alice/quests", `{"title": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ─── Deletion ───────────────────────────────────────────────────────────────

func TestDeleteUser(t *testing.T) {
	h := newTestServer(t).Handler()
	createUser(t, h, "alice")
	do(t, h, "POST", "/api/v1/users/alice/sessions", `{"duration": 25}`)

	w := do(t, h, "DELETE", "/api/v1/users/alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	var report domain.DeleteReport
	decode(t, w, &report)
	assert.True(t, report.UserDeleted)
	assert.Equal(t, 1, report.Sessions)

	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/api/v1/users/alice", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "DELETE", "/api/v1/users/alice", "").Code)
}

// ─── Middleware ─────────────────────────────────────────────────────────────

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t)
	srv.SetRateLimit(1, 2)
	h := srv.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, h, "GET", "/api/v1/levels/0", "").Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// /health is outside the limited group.
	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/health", "").Code)
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := newRateLimiter(1, 1)
	rl.get("10.0.0.1")
	rl.get("10.0.0.2")
	rl.visitors["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)

	assert.Equal(t, 1, rl.evict(3*time.Minute))
	assert.Len(t, rl.visitors, 1)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrUserNotFound:                       http.StatusNotFound,
		domain.ErrQuestAlreadyCompleted:              http.StatusConflict,
		domain.ErrXPLimitReached:                     http.StatusConflict,
		domain.ErrInvalidMood:                        http.StatusBadRequest,
		context.DeadlineExceeded:                     http.StatusGatewayTimeout,
		domain.WrapStore("commit", context.Canceled): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), "statusFor(%v)", err)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t).Handler()
	w := do(t, h, "OPTIONS", "/api/v1/users/alice", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
