package engagement

import "github.com/lockin-app/lockin/internal/domain"

// statSelectors map each requirement kind to the user value it compares.
// A kind missing here never matches.
var statSelectors = map[domain.RequirementKind]func(u *domain.UserProgression) int64{
	domain.ReqStreak:             func(u *domain.UserProgression) int64 { return int64(u.Streak) },
	domain.ReqSessionsCompleted:  func(u *domain.UserProgression) int64 { return u.Stats.TotalSessions },
	domain.ReqSessionDuration:    func(u *domain.UserProgression) int64 { return u.Stats.LongestSession },
	domain.ReqSessionsPerDay:     func(u *domain.UserProgression) int64 { return u.Stats.MaxSessionsPerDay },
	domain.ReqResists:            func(u *domain.UserProgression) int64 { return u.Stats.TotalResists },
	domain.ReqQuestsCompleted:    func(u *domain.UserProgression) int64 { return u.Stats.QuestsCompleted },
	domain.ReqDailyQuestStreak:   func(u *domain.UserProgression) int64 { return u.Stats.DailyQuestStreak },
	domain.ReqPhoneFreeMeals:     func(u *domain.UserProgression) int64 { return u.Stats.PhoneFreeMeals },
	domain.ReqPhoneFreeSocial:    func(u *domain.UserProgression) int64 { return u.Stats.PhoneFreeSocial },
	domain.ReqPhoneFreeOutdoor:   func(u *domain.UserProgression) int64 { return u.Stats.PhoneFreeOutdoor },
	domain.ReqSleepQualityStreak: func(u *domain.UserProgression) int64 { return u.Stats.SleepStreak },
	domain.ReqZeroScreenTime:     func(u *domain.UserProgression) int64 { return u.Stats.PerfectDays },
	domain.ReqStreakRecovery:     func(u *domain.UserProgression) int64 { return u.Stats.ComebackStreaks },
	domain.ReqQuestsPerDay:       func(u *domain.UserProgression) int64 { return u.Stats.MaxQuestsPerDay },
	domain.ReqLateNightFree:      func(u *domain.UserProgression) int64 { return u.Stats.LateNightFreeStreak },
	domain.ReqAppsDeleted:        func(u *domain.UserProgression) int64 { return u.Stats.AppsDeleted },
	domain.ReqCommunityHelp:      func(u *domain.UserProgression) int64 { return u.Stats.CommunityHelps },
	domain.ReqLevel:              func(u *domain.UserProgression) int64 { return int64(u.Level) },
}

// StatValue returns the user value compared against a requirement kind.
func StatValue(u *domain.UserProgression, kind domain.RequirementKind) (int64, bool) {
	sel, ok := statSelectors[kind]
	if !ok {
		return 0, false
	}
	return sel(u), true
}

// RequirementMet reports whether u satisfies req.
func RequirementMet(u *domain.UserProgression, req domain.BadgeRequirement) bool {
	v, ok := StatValue(u, req.Kind)
	return ok && v >= req.Value
}

// EvaluateBadges returns the catalog entries u satisfies but does not hold,
// in catalog order. Pure: u is not modified.
func EvaluateBadges(u *domain.UserProgression, catalog []domain.Badge) []domain.Badge {
	var out []domain.Badge
	for _, b := range catalog {
		if u.HasBadge(b.ID) {
			continue
		}
		if RequirementMet(u, b.Requirement) {
			out = append(out, b)
		}
	}
	return out
}

// ─── Badge Catalog ──────────────────────────────────────────────────────────

// Catalog returns the default badge catalog.
func Catalog() []domain.Badge {
	out := make([]domain.Badge, len(catalog))
	copy(out, catalog)
	return out
}

var catalog = []domain.Badge{
	// ── Sessions ────────────────────────────────────────────────────
	{
		ID: "first_focus", Name: "First Focus", Emoji: "🎯", XPReward: 25,
		Description: "Complete your first focus session",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqSessionsCompleted, Value: 1},
	},
	{
		ID: "ten_sessions", Name: "Getting Serious", Emoji: "📈", XPReward: 50,
		Description: "Complete 10 focus sessions",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqSessionsCompleted, Value: 10},
	},
	{
		ID: "hundred_sessions", Name: "Centurion", Emoji: "💯", XPReward: 250,
		Description: "Complete 100 focus sessions",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqSessionsCompleted, Value: 100},
	},
	{
		ID: "deep_diver", Name: "Deep Diver", Emoji: "🤿", XPReward: 50,
		Description: "Finish a 60 minute session",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqSessionDuration, Value: 60},
	},
	{
		ID: "marathon", Name: "Marathon Mind", Emoji: "🏃", XPReward: 150,
		Description: "Finish a 180 minute session",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqSessionDuration, Value: 180},
	},
	{
		ID: "triple_threat", Name: "Triple Threat", Emoji: "🔱", XPReward: 40,
		Description: "Complete 3 sessions in one day",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqSessionsPerDay, Value: 3},
	},

	// ── Streaks ─────────────────────────────────────────────────────
	{
		ID: "streak_3", Name: "Warming Up", Emoji: "🔥", XPReward: 30,
		Description: "Reach a 3 day streak",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqStreak, Value: 3},
	},
	{
		ID: "streak_7", Name: "Week Warrior", Emoji: "⚔️", XPReward: 100,
		Description: "Reach a 7 day streak",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqStreak, Value: 7},
	},
	{
		ID: "streak_30", Name: "Monthly Monk", Emoji: "🧘", XPReward: 500,
		Description: "Reach a 30 day streak",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqStreak, Value: 30},
	},
	{
		ID: "streak_100", Name: "Unbreakable", Emoji: "💎", XPReward: 1500,
		Description: "Reach a 100 day streak",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqStreak, Value: 100},
	},
	{
		ID: "comeback", Name: "Comeback Kid", Emoji: "🔄", XPReward: 50,
		Description: "Restart a streak after missing a day",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqStreakRecovery, Value: 1},
	},

	// ── Quests ──────────────────────────────────────────────────────
	{
		ID: "quest_starter", Name: "Quest Starter", Emoji: "🗺️", XPReward: 25,
		Description: "Complete your first quest",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqQuestsCompleted, Value: 1},
	},
	{
		ID: "quest_hunter", Name: "Quest Hunter", Emoji: "🏹", XPReward: 150,
		Description: "Complete 25 quests",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqQuestsCompleted, Value: 25},
	},
	{
		ID: "daily_grinder", Name: "Daily Grinder", Emoji: "📅", XPReward: 100,
		Description: "Complete a daily quest 7 days in a row",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqDailyQuestStreak, Value: 7},
	},
	{
		ID: "overachiever", Name: "Overachiever", Emoji: "🚀", XPReward: 75,
		Description: "Complete 3 quests in one day",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqQuestsPerDay, Value: 3},
	},

	// ── Habits ──────────────────────────────────────────────────────
	{
		ID: "resister", Name: "Resister", Emoji: "✋", XPReward: 30,
		Description: "Resist the urge to open a blocked app 10 times",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqResists, Value: 10},
	},
	{
		ID: "mindful_eater", Name: "Mindful Eater", Emoji: "🍽️", XPReward: 40,
		Description: "Have 5 phone-free meals",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqPhoneFreeMeals, Value: 5},
	},
	{
		ID: "present_friend", Name: "Present Friend", Emoji: "🤝", XPReward: 40,
		Description: "Spend 5 social outings phone-free",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqPhoneFreeSocial, Value: 5},
	},
	{
		ID: "touch_grass", Name: "Touch Grass", Emoji: "🌳", XPReward: 40,
		Description: "Spend 5 outdoor activities phone-free",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqPhoneFreeOutdoor, Value: 5},
	},
	{
		ID: "sleep_guardian", Name: "Sleep Guardian", Emoji: "😴", XPReward: 75,
		Description: "Log 7 nights of quality sleep",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqSleepQualityStreak, Value: 7},
	},
	{
		ID: "night_owl_reformed", Name: "Reformed Night Owl", Emoji: "🦉", XPReward: 75,
		Description: "Stay off screens late at night 7 times",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqLateNightFree, Value: 7},
	},
	{
		ID: "perfect_day", Name: "Perfect Day", Emoji: "☀️", XPReward: 100,
		Description: "Finish a day with zero recreational screen time",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqZeroScreenTime, Value: 1},
	},
	{
		ID: "declutter", Name: "Declutter", Emoji: "🗑️", XPReward: 60,
		Description: "Delete 3 distracting apps",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqAppsDeleted, Value: 3},
	},
	{
		ID: "helping_hand", Name: "Helping Hand", Emoji: "🫶", XPReward: 50,
		Description: "Help 3 members of the community",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqCommunityHelp, Value: 3},
	},

	// ── Levels ──────────────────────────────────────────────────────
	{
		ID: "level_5", Name: "Rising Star", Emoji: "⭐", XPReward: 50,
		Description: "Reach level 5",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqLevel, Value: 5},
	},
	{
		ID: "level_10", Name: "Double Digits", Emoji: "🔟", XPReward: 150,
		Description: "Reach level 10",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqLevel, Value: 10},
	},
	{
		ID: "level_25", Name: "Veteran", Emoji: "🎖️", XPReward: 400,
		Description: "Reach level 25",
		Requirement: domain.BadgeRequirement{Kind: domain.ReqLevel, Value: 25},
	},
}
