package engagement

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/lockin-app/lockin/internal/domain"
	"github.com/lockin-app/lockin/internal/infra/metrics"
)

// Profile is a user's progression with the derived leveling view.
type Profile struct {
	domain.UserProgression
	LevelInfo  LevelInfo `json:"levelInfo"`
	Multiplier float64   `json:"multiplier"`
}

// NewUserProgression returns the initial document of a new user.
func NewUserProgression(userID string, now time.Time) domain.UserProgression {
	u := domain.UserProgression{
		UserID:               userID,
		CreatedAt:            now,
		Shields:              []domain.Shield{},
		Badges:               []domain.EarnedBadge{},
		DailyQuestsCompleted: map[string][]string{},
		XPHistory:            []domain.XPEntry{},
		LevelHistory:         []domain.LevelEvent{},
		UnlockedRewards:      []domain.UnlockedReward{},
		Settings:             domain.DefaultSettings(),
	}
	applyLevel(&u, LevelFromXP(0))
	return u
}

// CreateUser creates the progression document for userID. An existing
// document is returned unchanged with created == false.
func (e *Engine) CreateUser(ctx context.Context, userID string) (*domain.UserProgression, bool, error) {
	if userID == "" {
		return nil, false, domain.ErrInvalidUserID
	}
	now := e.now()
	u := NewUserProgression(userID, now)
	u.Stats.StatsDay = DayKey(now, e.loc)

	created, err := e.store.CreateUser(ctx, u)
	if err != nil {
		log.Printf("[engagement] create user %s failed: %v", userID, err)
		return nil, false, err
	}
	if !created {
		existing, err := e.store.GetUser(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	metrics.UsersCreated.Inc()
	log.Printf("[engagement] created user %s", userID)
	return &u, true, nil
}

// Profile returns the user's progression and its leveling view.
func (e *Engine) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		UserProgression: *u,
		LevelInfo:       LevelFromXP(u.TotalXP),
		Multiplier:      StreakMultiplier(u.Streak),
	}, nil
}

// UpdateSettings applies the non-nil fields of patch.
func (e *Engine) UpdateSettings(ctx context.Context, userID string, patch domain.SettingsPatch) (domain.Settings, error) {
	if patch.ScreenTimeGoalHours != nil && (*patch.ScreenTimeGoalHours < 0 || *patch.ScreenTimeGoalHours > 24) {
		return domain.Settings{}, fmt.Errorf("%w: screen time goal %d", domain.ErrInvalidSettings, *patch.ScreenTimeGoalHours)
	}
	var out domain.Settings
	err := e.store.Update(ctx, userID, func(tx domain.ProgressionTx) error {
		s := &tx.User().Settings
		if patch.ScreenTimeGoalHours != nil {
			s.ScreenTimeGoalHours = *patch.ScreenTimeGoalHours
		}
		if patch.Notifications != nil {
			s.Notifications = *patch.Notifications
		}
		if patch.DailyCheckIn != nil {
			s.DailyCheckIn = *patch.DailyCheckIn
		}
		out = *s
		return nil
	})
	if err != nil {
		return domain.Settings{}, err
	}
	return out, nil
}

// TodaySessionCount returns the number of sessions since local midnight.
func (e *Engine) TodaySessionCount(ctx context.Context, userID string) (int64, error) {
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return 0, err
	}
	agg, err := e.store.Today(ctx, userID, startOfDay(e.now(), e.loc))
	if err != nil {
		return 0, err
	}
	return agg.Sessions, nil
}

// TodaySessions returns the sessions since local midnight and their aggregate.
func (e *Engine) TodaySessions(ctx context.Context, userID string) ([]domain.Session, domain.DayAggregate, error) {
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return nil, domain.DayAggregate{}, err
	}
	since := startOfDay(e.now(), e.loc)
	sessions, err := e.store.SessionsSince(ctx, userID, since)
	if err != nil {
		return nil, domain.DayAggregate{}, err
	}
	agg, err := e.store.Today(ctx, userID, since)
	if err != nil {
		return nil, domain.DayAggregate{}, err
	}
	return sessions, agg, nil
}

// Quests returns the user's structured quests, newest first.
func (e *Engine) Quests(ctx context.Context, userID string) ([]domain.Quest, error) {
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return e.store.ListQuests(ctx, userID)
}

// BadgeStatus is one catalog badge with the user's progress toward it.
type BadgeStatus struct {
	domain.Badge
	Current    int64     `json:"current"`
	Earned     bool      `json:"earned"`
	UnlockedAt time.Time `json:"unlockedAt,omitempty"`
}

// BadgeProgress lists the catalog in order with the user's progress.
func (e *Engine) BadgeProgress(ctx context.Context, userID string) ([]BadgeStatus, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned := make(map[string]time.Time, len(u.Badges))
	for _, b := range u.Badges {
		earned[b.ID] = b.UnlockedAt
	}
	out := make([]BadgeStatus, 0, len(e.catalog))
	for _, b := range e.catalog {
		current, _ := StatValue(u, b.Requirement.Kind)
		at, ok := earned[b.ID]
		out = append(out, BadgeStatus{Badge: b, Current: current, Earned: ok, UnlockedAt: at})
	}
	return out, nil
}

// ─── Activities ─────────────────────────────────────────────────────────────

// ActivityKind names a behavioral counter a client can report.
type ActivityKind string

const (
	ActivityResist           ActivityKind = "resist"
	ActivityPhoneFreeMeal    ActivityKind = "phone_free_meal"
	ActivityPhoneFreeSocial  ActivityKind = "phone_free_social"
	ActivityPhoneFreeOutdoor ActivityKind = "phone_free_outdoor"
	ActivitySleepQuality     ActivityKind = "sleep_quality"
	ActivityPerfectDay       ActivityKind = "perfect_day"
	ActivityLateNightFree    ActivityKind = "late_night_free"
	ActivityAppDeleted       ActivityKind = "app_deleted"
	ActivityCommunityHelp    ActivityKind = "community_help"
)

// activityCounters maps each activity to the stat it increments.
var activityCounters = map[ActivityKind]func(s *domain.Stats) *int64{
	ActivityResist:           func(s *domain.Stats) *int64 { return &s.TotalResists },
	ActivityPhoneFreeMeal:    func(s *domain.Stats) *int64 { return &s.PhoneFreeMeals },
	ActivityPhoneFreeSocial:  func(s *domain.Stats) *int64 { return &s.PhoneFreeSocial },
	ActivityPhoneFreeOutdoor: func(s *domain.Stats) *int64 { return &s.PhoneFreeOutdoor },
	ActivitySleepQuality:     func(s *domain.Stats) *int64 { return &s.SleepStreak },
	ActivityPerfectDay:       func(s *domain.Stats) *int64 { return &s.PerfectDays },
	ActivityLateNightFree:    func(s *domain.Stats) *int64 { return &s.LateNightFreeStreak },
	ActivityAppDeleted:       func(s *domain.Stats) *int64 { return &s.AppsDeleted },
	ActivityCommunityHelp:    func(s *domain.Stats) *int64 { return &s.CommunityHelps },
}

// ActivityKinds lists the accepted activity kinds, sorted.
func ActivityKinds() []ActivityKind {
	out := make([]ActivityKind, 0, len(activityCounters))
	for k := range activityCounters {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LogActivity adds count to the counter of kind and evaluates badges.
func (e *Engine) LogActivity(ctx context.Context, userID string, kind ActivityKind, count int64) ([]domain.Badge, error) {
	counter, ok := activityCounters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidActivity, kind)
	}
	if count < 1 {
		return nil, fmt.Errorf("%w: count %d", domain.ErrInvalidActivity, count)
	}

	var l *ledger
	err := e.store.Update(ctx, userID, func(tx domain.ProgressionTx) error {
		var err error
		l, err = e.begin(tx)
		if err != nil {
			return err
		}
		*counter(&l.u.Stats) += count
		l.requestBadgeCheck()
		return l.settle()
	})
	if err != nil {
		log.Printf("[engagement] log %s for %s failed: %v", kind, userID, err)
		return nil, err
	}
	l.observe()
	return l.badges, nil
}

// ─── Deletion ───────────────────────────────────────────────────────────────

// DeleteAccount purges every progression record of userID.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) (domain.DeleteReport, error) {
	report, err := e.store.DeleteUserData(ctx, userID)
	if err != nil {
		log.Printf("[engagement] delete account %s failed: %v", userID, err)
		return report, err
	}
	metrics.AccountsDeleted.Inc()
	metrics.RecordsPurged.WithLabelValues("sessions").Add(float64(report.Sessions))
	metrics.RecordsPurged.WithLabelValues("xpTransactions").Add(float64(report.XPTransactions))
	metrics.RecordsPurged.WithLabelValues("badgeEvents").Add(float64(report.BadgeEvents))
	metrics.RecordsPurged.WithLabelValues("quests").Add(float64(report.Quests))
	log.Printf("[engagement] deleted account %s (%d sessions, %d xp transactions, %d badge events, %d quests)",
		userID, report.Sessions, report.XPTransactions, report.BadgeEvents, report.Quests)
	return report, nil
}
