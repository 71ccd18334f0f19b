package engagement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lockin-app/lockin/internal/domain"
	"github.com/lockin-app/lockin/internal/infra/metrics"
)

// XP sources written to the audit logs.
const (
	SourceFocusSession = "focus_session"
	SourceManual       = "manual"
)

// SessionResult summarises a recorded focus session.
type SessionResult struct {
	SessionID         string              `json:"sessionId"`
	XPAwarded         int64               `json:"xpAwarded"`
	BadgesEarned      []domain.Badge      `json:"badgesEarned"`
	LeveledUp         bool                `json:"leveledUp"`
	NewLevel          int                 `json:"newLevel,omitempty"`
	ShieldEarned      *domain.Shield      `json:"shieldEarned,omitempty"`
	StreakIncremented bool                `json:"streakIncremented"`
	Streak            int                 `json:"streak"`
	Today             domain.DayAggregate `json:"today"`
}

// AwardResult summarises an XP award and everything it cascaded into.
// XPAwarded is the requested amount; cascaded badge XP is reported through
// BadgesEarned.
type AwardResult struct {
	XPAwarded    int64          `json:"xpAwarded"`
	LeveledUp    bool           `json:"leveledUp"`
	NewLevel     int            `json:"newLevel,omitempty"`
	BadgesEarned []domain.Badge `json:"badgesEarned,omitempty"`
	ShieldEarned *domain.Shield `json:"shieldEarned,omitempty"`
}

// StreakResult summarises a streak update.
type StreakResult struct {
	Streak       int            `json:"streak"`
	BadgesEarned []domain.Badge `json:"badgesEarned,omitempty"`
	ShieldEarned *domain.Shield `json:"shieldEarned,omitempty"`
}

// QuestResult summarises a structured quest completion.
type QuestResult struct {
	Quest        domain.Quest   `json:"quest"`
	XPAwarded    int64          `json:"xpAwarded"`
	LeveledUp    bool           `json:"leveledUp"`
	NewLevel     int            `json:"newLevel,omitempty"`
	BadgesEarned []domain.Badge `json:"badgesEarned,omitempty"`
}

// DailyQuestResult is the outcome of a daily quest completion check.
type DailyQuestResult struct {
	Quest          domain.DailyQuest `json:"quest"`
	Completed      bool              `json:"completed"`
	XPAwarded      int64             `json:"xpAwarded"`
	AlreadyAwarded bool              `json:"alreadyAwarded"`
	LeveledUp      bool              `json:"leveledUp"`
	BadgesEarned   []domain.Badge    `json:"badgesEarned,omitempty"`
}

// ─── Sessions ───────────────────────────────────────────────────────────────

// RecordSession records a completed focus session of minutes length.
// XP is computed from the streak before today's increment; the first
// session of a local day advances the streak.
func (e *Engine) RecordSession(ctx context.Context, userID string, minutes int) (SessionResult, error) {
	if minutes < 1 || minutes > MaxSessionMinutes {
		return SessionResult{}, fmt.Errorf("%w: %d minutes", domain.ErrInvalidDuration, minutes)
	}

	var (
		res SessionResult
		l   *ledger
	)
	err := e.store.Update(ctx, userID, func(tx domain.ProgressionTx) error {
		var err error
		l, err = e.begin(tx)
		if err != nil {
			return err
		}
		u := l.u
		res = SessionResult{}

		l.expireStreak()
		xp := SessionXP(minutes, u.Streak)

		if l.today.Sessions == 0 {
			l.advanceStreak()
			res.StreakIncremented = true
		}

		l.today.Sessions++
		l.today.Minutes += int64(minutes)
		s := &u.Stats
		s.TotalSessions++
		s.TotalMinutes += int64(minutes)
		s.SessionsToday = l.today.Sessions
		s.LongestSession = max(s.LongestSession, int64(minutes))
		s.MaxSessionsPerDay = max(s.MaxSessionsPerDay, s.SessionsToday)

		session := domain.Session{
			ID:              uuid.NewString(),
			UserID:          userID,
			DurationMinutes: minutes,
			Mood:            domain.MoodNone,
			Timestamp:       l.now,
			XPEarned:        xp,
		}
		if err := tx.InsertSession(session); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		l.award(xp, SourceFocusSession, map[string]string{
			"sessionId": session.ID,
			"duration":  strconv.Itoa(minutes),
		})
		l.requestBadgeCheck()
		if err := l.settle(); err != nil {
			return err
		}

		res.SessionID = session.ID
		res.XPAwarded = xp
		return nil
	})
	if err != nil {
		log.Printf("[engagement] record session for %s failed: %v", userID, err)
		return SessionResult{}, err
	}

	res.BadgesEarned = l.badges
	res.LeveledUp = l.leveledUp
	res.NewLevel = l.newLevel
	res.ShieldEarned = l.firstShield()
	res.Streak = l.u.Streak
	res.Today = l.today
	l.observe()
	metrics.SessionsRecorded.Inc()
	metrics.SessionMinutes.Observe(float64(minutes))
	return res, nil
}

// UpdateSession sets the mood of a recorded session. Store failures are
// logged and swallowed; only an invalid mood is returned.
func (e *Engine) UpdateSession(ctx context.Context, userID, sessionID string, mood domain.Mood) error {
	if !mood.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidMood, mood)
	}
	if err := e.store.SetSessionMood(ctx, userID, sessionID, mood); err != nil {
		log.Printf("[engagement] mood update for session %s failed: %v", sessionID, err)
		metrics.BestEffortFailures.WithLabelValues("set_mood").Inc()
		return nil
	}
	metrics.MoodUpdates.WithLabelValues(string(mood)).Inc()
	return nil
}

// ─── XP ─────────────────────────────────────────────────────────────────────

// AwardXP grants amount XP from source and settles level-ups, badges and
// shields in the same unit of work.
func (e *Engine) AwardXP(ctx context.Context, userID string, amount int64, source string, metadata map[string]string) (AwardResult, error) {
	if amount <= 0 || amount > MaxXPAward {
		return AwardResult{}, fmt.Errorf("%w: %d not in 1..%d", domain.ErrInvalidXPAmount, amount, MaxXPAward)
	}
	if source == "" {
		source = SourceManual
	}

	var l *ledger
	err := e.store.Update(ctx, userID, func(tx domain.ProgressionTx) error {
		var err error
		l, err = e.begin(tx)
		if err != nil {
			return err
		}
		l.award(amount, source, metadata)
		return l.settle()
	})
	if err != nil {
		log.Printf("[engagement] award %d XP to %s failed: %v", amount, userID, err)
		return AwardResult{}, err
	}

	l.observe()
	return AwardResult{
		XPAwarded:    amount,
		LeveledUp:    l.leveledUp,
		NewLevel:     l.newLevel,
		BadgesEarned: l.badges,
		ShieldEarned: l.firstShield(),
	}, nil
}

// ─── Streaks ────────────────────────────────────────────────────────────────

// UpdateStreak increments the streak when increment is true, stamps the
// streak update time and re-runs badge evaluation.
func (e *Engine) UpdateStreak(ctx context.Context, userID string, increment bool) (StreakResult, error) {
	var l *ledger
	err := e.store.Update(ctx, userID, func(tx domain.ProgressionTx) error {
		var err error
		l, err = e.begin(tx)
		if err != nil {
			return err
		}
		if increment {
			l.u.Streak++
		}
		l.u.StreakLastUpdate = l.now
		l.checkShield()
		l.requestBadgeCheck()
		return l.settle()
	})
	if err != nil {
		log.Printf("[engagement] update streak for %s failed: %v", userID, err)
		return StreakResult{}, err
	}

	l.observe()
	return StreakResult{
		Streak:       l.u.Streak,
		BadgesEarned: l.badges,
		ShieldEarned: l.firstShield(),
	}, nil
}

// expireStreak resets a streak whose last qualifying day is before
// yesterday. Every reset counts toward ComebackStreaks since the next
// session restarts the streak.
func (l *ledger) expireStreak() {
	u := l.u
	if u.Streak == 0 || u.StreakLastUpdate.IsZero() {
		return
	}
	yesterday := startOfDay(l.now, l.e.loc).AddDate(0, 0, -1)
	if u.StreakLastUpdate.Before(yesterday) {
		l.e.debugf("%s streak of %d expired (last %s)", u.UserID, u.Streak, u.StreakLastUpdate.Format(time.RFC3339))
		u.Streak = 0
		u.Stats.ComebackStreaks++
	}
}

// advanceStreak counts today as a qualifying day.
func (l *ledger) advanceStreak() {
	l.u.Streak++
	l.u.StreakLastUpdate = l.now
	l.checkShield()
}

// checkShield applies the shield rule outside of an XP award.
func (l *ledger) checkShield() {
	if s := ShieldEarned(l.u.Streak, l.u.Shields); s != nil {
		stampShield(s, l.now)
		l.u.Shields = append(l.u.Shields, *s)
		l.shields = append(l.shields, *s)
	}
}

// ─── Badges ─────────────────────────────────────────────────────────────────

// CheckBadgeProgress evaluates the catalog and unlocks every badge whose
// requirement is met and not yet held. Repeated calls are idempotent.
func (e *Engine) CheckBadgeProgress(ctx context.Context, userID string) ([]domain.Badge, error) {
	var l *ledger
	err := e.store.Update(ctx, userID, func(tx domain.ProgressionTx) error {
		var err error
		l, err = e.begin(tx)
		if err != nil {
			return err
		}
		l.requestBadgeCheck()
		return l.settle()
	})
	if err != nil {
		log.Printf("[engagement] badge check for %s failed: %v", userID, err)
		return nil, err
	}
	l.observe()
	return l.badges, nil
}

// ─── Daily Quests ───────────────────────────────────────────────────────────

// GenerateDailyQuests returns today's quests with live progress.
// Read only.
func (e *Engine) GenerateDailyQuests(ctx context.Context, userID string) ([]domain.DailyQuest, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	today, err := e.store.Today(ctx, userID, startOfDay(now, e.loc))
	if err != nil {
		return nil, fmt.Errorf("today aggregate: %w", err)
	}
	return BuildDailyQuests(u, today, now, e.loc), nil
}

// CheckDailyQuestCompletion awards a completed daily quest's XP once per
// day. A repeat call reports AlreadyAwarded with no XP.
func (e *Engine) CheckDailyQuestCompletion(ctx context.Context, userID, questID string) (DailyQuestResult, error) {
	var (
		res DailyQuestResult
		l   *ledger
	)
	err := e.store.Update(ctx, userID, func(tx domain.ProgressionTx) error {
		var err error
		l, err = e.begin(tx)
		if err != nil {
			return err
		}
		res = DailyQuestResult{}

		quest, ok := findDailyQuest(BuildDailyQuests(l.u, l.today, l.now, l.e.loc), questID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrQuestNotFound, questID)
		}
		res.Quest = quest
		if !quest.Completed {
			return nil
		}
		res.Completed = true
		if l.u.QuestCompletedOn(l.dayKey, questID) {
			res.AlreadyAwarded = true
			return nil
		}

		l.recordDailyQuest(questID)
		l.award(quest.XPReward, "daily_quest:"+questID, map[string]string{"questId": questID, "day": l.dayKey})
		l.requestBadgeCheck()
		if err := l.settle(); err != nil {
			return err
		}
		res.XPAwarded = quest.XPReward
		return nil
	})
	if err != nil {
		log.Printf("[engagement] daily quest %s for %s failed: %v", questID, userID, err)
		return DailyQuestResult{}, err
	}

	if res.XPAwarded > 0 {
		res.LeveledUp = l.leveledUp
		res.BadgesEarned = l.badges
		l.observe()
		metrics.QuestsCompleted.WithLabelValues("daily").Inc()
	}
	return res, nil
}

// recordDailyQuest marks questID done today and maintains the quest counters.
func (l *ledger) recordDailyQuest(questID string) {
	u := l.u
	done := u.DailyQuestsCompleted[l.dayKey]
	if len(done) == 0 {
		yesterday := DayKey(startOfDay(l.now, l.e.loc).AddDate(0, 0, -1), l.e.loc)
		if len(u.DailyQuestsCompleted[yesterday]) > 0 {
			u.Stats.DailyQuestStreak++
		} else {
			u.Stats.DailyQuestStreak = 1
		}
	}
	done = append(done, questID)
	u.DailyQuestsCompleted[l.dayKey] = done
	u.Stats.QuestsCompleted++
	u.Stats.MaxQuestsPerDay = max(u.Stats.MaxQuestsPerDay, int64(len(done)))
}

func findDailyQuest(quests []domain.DailyQuest, id string) (domain.DailyQuest, bool) {
	for _, q := range quests {
		if q.ID == id {
			return q, true
		}
	}
	return domain.DailyQuest{}, false
}

// ─── Structured Quests ──────────────────────────────────────────────────────

// AssignQuest persists a structured quest for the user. An empty ID is
// filled with a new uuid.
func (e *Engine) AssignQuest(ctx context.Context, userID string, q domain.Quest) (domain.Quest, error) {
	if q.Title == "" || q.XPReward <= 0 {
		return domain.Quest{}, fmt.Errorf("%w: title and positive xpReward required", domain.ErrInvalidQuest)
	}
	if q.XPReward > MaxXPAward {
		return domain.Quest{}, fmt.Errorf("%w: xpReward above %d", domain.ErrInvalidQuest, MaxXPAward)
	}
	switch q.Difficulty {
	case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard:
	case "":
		q.Difficulty = domain.DifficultyEasy
	default:
		return domain.Quest{}, fmt.Errorf("%w: difficulty %q", domain.ErrInvalidQuest, q.Difficulty)
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.Completed = false
	q.CompletedAt = time.Time{}
	q.CreatedAt = e.now()

	err := e.store.Update(ctx, userID, func(tx domain.ProgressionTx) error {
		existing, err := tx.GetQuest(q.ID)
		switch {
		case errors.Is(err, domain.ErrQuestNotFound):
		case err != nil:
			return err
		case existing.Completed:
			return fmt.Errorf("%w: %s", domain.ErrQuestAlreadyCompleted, q.ID)
		}
		return tx.SaveQuest(q)
	})
	if err != nil {
		return domain.Quest{}, err
	}
	return q, nil
}

// CompleteQuest completes a structured quest and awards its XP.
func (e *Engine) CompleteQuest(ctx context.Context, userID, questID string) (QuestResult, error) {
	var (
		res QuestResult
		l   *ledger
	)
	err := e.store.Update(ctx, userID, func(tx domain.ProgressionTx) error {
		var err error
		l, err = e.begin(tx)
		if err != nil {
			return err
		}
		q, err := tx.GetQuest(questID)
		if err != nil {
			return err
		}
		if q.Completed {
			return fmt.Errorf("%w: %s", domain.ErrQuestAlreadyCompleted, questID)
		}
		q.Completed = true
		q.CompletedAt = l.now
		if err := tx.SaveQuest(*q); err != nil {
			return fmt.Errorf("save quest: %w", err)
		}

		l.u.Stats.QuestsCompleted++
		l.award(q.XPReward, "quest:"+string(q.Difficulty), map[string]string{"questId": q.ID})
		l.requestBadgeCheck()
		if err := l.settle(); err != nil {
			return err
		}
		res = QuestResult{Quest: *q, XPAwarded: q.XPReward}
		return nil
	})
	if err != nil {
		log.Printf("[engagement] complete quest %s for %s failed: %v", questID, userID, err)
		return QuestResult{}, err
	}

	res.LeveledUp = l.leveledUp
	res.NewLevel = l.newLevel
	res.BadgesEarned = l.badges
	l.observe()
	metrics.QuestsCompleted.WithLabelValues("structured").Inc()
	return res, nil
}
