package engagement

import (
	"time"

	"github.com/lockin-app/lockin/internal/domain"
)

// dailyQuestTemplate is one entry of the daily quest table.
// Current reads the live progress from the user and today's aggregate.
type dailyQuestTemplate struct {
	ID          string
	Title       string
	Description string
	Type        domain.QuestRequirementType
	Difficulty  domain.QuestDifficulty
	XPReward    int64
	Target      int64
	Current     func(u *domain.UserProgression, today domain.DayAggregate) int64
}

// dailyQuestTable is the fixed set of quests offered every day.
var dailyQuestTable = []dailyQuestTemplate{
	{
		ID: "session-30min", Title: "Focus for 30 minutes",
		Description: "Spend 30 minutes in focus sessions today",
		Type:        domain.QuestReqMinutes, Difficulty: domain.DifficultyEasy,
		XPReward: 20, Target: 30,
		Current: func(_ *domain.UserProgression, d domain.DayAggregate) int64 { return d.Minutes },
	},
	{
		ID: "three-sessions", Title: "Triple focus",
		Description: "Complete 3 focus sessions today",
		Type:        domain.QuestReqSessions, Difficulty: domain.DifficultyMedium,
		XPReward: 35, Target: 3,
		Current: func(_ *domain.UserProgression, d domain.DayAggregate) int64 { return d.Sessions },
	},
	{
		ID: "xp-goal", Title: "XP hunter",
		Description: "Earn 100 XP today",
		Type:        domain.QuestReqXP, Difficulty: domain.DifficultyHard,
		XPReward: 25, Target: 100,
		Current: func(_ *domain.UserProgression, d domain.DayAggregate) int64 { return d.XP },
	},
	{
		ID: "maintain-streak", Title: "Keep the flame",
		Description: "Complete at least one session to keep your streak alive",
		Type:        domain.QuestReqStreak, Difficulty: domain.DifficultyEasy,
		XPReward: 15, Target: 1,
		Current: func(_ *domain.UserProgression, d domain.DayAggregate) int64 { return d.Sessions },
	},
}

// BuildDailyQuests derives today's quests with live progress.
// Pure: identical inputs on the same local day give identical output.
func BuildDailyQuests(u *domain.UserProgression, today domain.DayAggregate, now time.Time, loc *time.Location) []domain.DailyQuest {
	expires := endOfDay(now, loc)
	quests := make([]domain.DailyQuest, 0, len(dailyQuestTable))
	for _, tmpl := range dailyQuestTable {
		current := tmpl.Current(u, today)
		quests = append(quests, domain.DailyQuest{
			ID:          tmpl.ID,
			Title:       tmpl.Title,
			Description: tmpl.Description,
			Type:        domain.QuestTypeDaily,
			Difficulty:  tmpl.Difficulty,
			XPReward:    tmpl.XPReward,
			Requirement: domain.QuestRequirement{
				Type:    tmpl.Type,
				Target:  tmpl.Target,
				Current: current,
			},
			Completed: current >= tmpl.Target,
			Progress:  questProgress(current, tmpl.Target),
			ExpiresAt: expires,
		})
	}
	return quests
}

// questProgress returns min(100, current/target*100).
func questProgress(current, target int64) float64 {
	if target <= 0 {
		return 100
	}
	p := float64(current) / float64(target) * 100
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// ─── Day Boundaries ─────────────────────────────────────────────────────────

// startOfDay returns local midnight of t's day in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// endOfDay returns 23:59:59.999 of t's day in loc.
func endOfDay(t time.Time, loc *time.Location) time.Time {
	return startOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// DayKey returns the YYYY-MM-DD key of t's day in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
