// Package domain holds the progression types shared by the reward engine,
// the stores and the outer surfaces (HTTP, CLI).
// The engine drives focus habits through XP, levels, streaks, shields,
// quests and badges.
package domain

import "time"

// ─── User Progression ───────────────────────────────────────────────────────

// UserProgression is the per-user aggregate the engine reads and mutates.
// Level, Title, TitleEmoji and XPToNextLevel are a cache of the leveling
// table applied to TotalXP and are only written by the engine.
type UserProgression struct {
	UserID    string    `json:"userId" firestore:"uid"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`

	TotalXP       int64  `json:"totalXP" firestore:"totalXP"`
	Level         int    `json:"level" firestore:"level"`
	Title         string `json:"title" firestore:"title"`
	TitleEmoji    string `json:"titleEmoji" firestore:"titleEmoji"`
	XPToNextLevel int64  `json:"xpToNextLevel" firestore:"xpToNextLevel"`

	Streak           int       `json:"streak" firestore:"streak"`
	StreakLastUpdate time.Time `json:"streakLastUpdate" firestore:"streakLastUpdate"`

	Shields []Shield      `json:"shields" firestore:"shields"`
	Badges  []EarnedBadge `json:"badges" firestore:"badges"`
	Stats   Stats         `json:"stats" firestore:"stats"`

	// DailyQuestsCompleted maps a day key (YYYY-MM-DD) to quest ids.
	DailyQuestsCompleted map[string][]string `json:"dailyQuestsCompleted" firestore:"dailyQuestsCompleted"`

	XPHistory       []XPEntry        `json:"xpHistory" firestore:"xpHistory"`
	LevelHistory    []LevelEvent     `json:"levelHistory" firestore:"levelHistory"`
	UnlockedRewards []UnlockedReward `json:"unlockedRewards" firestore:"unlockedRewards"`

	Settings Settings `json:"settings" firestore:"settings"`
}

// HasBadge reports whether the badge id was already earned.
func (u *UserProgression) HasBadge(id string) bool {
	for _, b := range u.Badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

// QuestCompletedOn reports whether questID is recorded under dayKey.
func (u *UserProgression) QuestCompletedOn(dayKey, questID string) bool {
	for _, id := range u.DailyQuestsCompleted[dayKey] {
		if id == questID {
			return true
		}
	}
	return false
}

// Stats are the named counters badge predicates and quests read.
// Every counter only grows, except SessionsToday and XPToday which
// refer to StatsDay and restart when the day changes.
type Stats struct {
	StatsDay string `json:"statsDay" firestore:"statsDay"`

	TotalSessions     int64 `json:"totalSessions" firestore:"totalSessions"`
	TotalMinutes      int64 `json:"totalMinutes" firestore:"totalMinutes"`
	SessionsToday     int64 `json:"sessionsToday" firestore:"sessionsToday"`
	XPToday           int64 `json:"xpToday" firestore:"xpToday"`
	LongestSession    int64 `json:"longestSession" firestore:"longestSession"`
	MaxSessionsPerDay int64 `json:"maxSessionsPerDay" firestore:"maxSessionsPerDay"`

	TotalResists     int64 `json:"totalResists" firestore:"totalResists"`
	QuestsCompleted  int64 `json:"questsCompleted" firestore:"questsCompleted"`
	DailyQuestStreak int64 `json:"dailyQuestStreak" firestore:"dailyQuestStreak"`
	MaxQuestsPerDay  int64 `json:"maxQuestsPerDay" firestore:"maxQuestsPerDay"`

	PhoneFreeMeals      int64 `json:"phoneFreeMeals" firestore:"phoneFreeMeals"`
	PhoneFreeSocial     int64 `json:"phoneFreeSocial" firestore:"phoneFreeSocial"`
	PhoneFreeOutdoor    int64 `json:"phoneFreeOutdoor" firestore:"phoneFreeOutdoor"`
	SleepStreak         int64 `json:"sleepStreak" firestore:"sleepStreak"`
	PerfectDays         int64 `json:"perfectDays" firestore:"perfectDays"`
	ComebackStreaks     int64 `json:"comebackStreaks" firestore:"comebackStreaks"`
	LateNightFreeStreak int64 `json:"lateNightFreeStreak" firestore:"lateNightFreeStreak"`
	AppsDeleted         int64 `json:"appsDeleted" firestore:"appsDeleted"`
	CommunityHelps      int64 `json:"communityHelps" firestore:"communityHelps"`
}

// Settings are user preferences stored on the progression document.
type Settings struct {
	ScreenTimeGoalHours int  `json:"screenTimeGoal" firestore:"screenTimeGoal"`
	Notifications       bool `json:"notifications" firestore:"notifications"`
	DailyCheckIn        bool `json:"dailyCheckIn" firestore:"dailyCheckIn"`
}

// DefaultSettings returns the settings of a freshly created user.
func DefaultSettings() Settings {
	return Settings{ScreenTimeGoalHours: 2, Notifications: true, DailyCheckIn: true}
}

// SettingsPatch carries optional settings updates. Nil fields are unchanged.
type SettingsPatch struct {
	ScreenTimeGoalHours *int  `json:"screenTimeGoal,omitempty"`
	Notifications       *bool `json:"notifications,omitempty"`
	DailyCheckIn        *bool `json:"dailyCheckIn,omitempty"`
}

// ─── Audit Logs ─────────────────────────────────────────────────────────────

// XPEntry is one XP grant in the user's history.
type XPEntry struct {
	Amount    int64             `json:"amount" firestore:"amount"`
	Source    string            `json:"source" firestore:"source"`
	Metadata  map[string]string `json:"metadata,omitempty" firestore:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp" firestore:"timestamp"`
}

// LevelEvent records a level-up.
type LevelEvent struct {
	Level      int       `json:"level" firestore:"level"`
	AchievedAt time.Time `json:"achievedAt" firestore:"achievedAt"`
}

// UnlockedReward records a level-tied reward unlock.
type UnlockedReward struct {
	Reward     string    `json:"reward" firestore:"reward"`
	Level      int       `json:"level" firestore:"level"`
	UnlockedAt time.Time `json:"unlockedAt" firestore:"unlockedAt"`
}

// XPTransaction is the external audit record of an XP grant,
// stored in the shared xpTransactions collection.
type XPTransaction struct {
	ID        string            `json:"id" firestore:"-"`
	UserID    string            `json:"userId" firestore:"userId"`
	Amount    int64             `json:"amount" firestore:"amount"`
	Source    string            `json:"source" firestore:"source"`
	Metadata  map[string]string `json:"metadata,omitempty" firestore:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp" firestore:"timestamp"`
}

// BadgeEvent is the external audit record of a badge unlock.
type BadgeEvent struct {
	ID        string    `json:"id" firestore:"-"`
	UserID    string    `json:"userId" firestore:"userId"`
	BadgeID   string    `json:"badgeId" firestore:"badgeId"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
}

// ─── Sessions ───────────────────────────────────────────────────────────────

// Mood is the self-reported rating attached to a finished session.
type Mood string

const (
	MoodNone    Mood = "none"
	MoodHard    Mood = "hard"
	MoodOkay    Mood = "okay"
	MoodGood    Mood = "good"
	MoodAmazing Mood = "amazing"
)

// Valid reports whether m is one of the known moods.
func (m Mood) Valid() bool {
	switch m {
	case MoodNone, MoodHard, MoodOkay, MoodGood, MoodAmazing:
		return true
	}
	return false
}

// Session is one completed focus session.
type Session struct {
	ID              string    `json:"id" firestore:"-"`
	UserID          string    `json:"userId" firestore:"userId"`
	DurationMinutes int       `json:"duration" firestore:"duration"`
	Mood            Mood      `json:"mood" firestore:"mood"`
	Timestamp       time.Time `json:"timestamp" firestore:"timestamp"`
	XPEarned        int64     `json:"xpEarned" firestore:"xpEarned"`
}

// DayAggregate summarises one user's activity since local midnight.
type DayAggregate struct {
	Minutes  int64 `json:"minutes"`
	Sessions int64 `json:"sessions"`
	XP       int64 `json:"xp"`
}

// ─── Shields ────────────────────────────────────────────────────────────────

// Shield is a streak-protection token earned at a streak milestone.
type Shield struct {
	ID        string    `json:"id" firestore:"id"`
	Milestone int       `json:"milestone" firestore:"milestone"`
	EarnedAt  time.Time `json:"earnedAt" firestore:"earnedAt"`
}

// ─── Badges ─────────────────────────────────────────────────────────────────

// RequirementKind is the closed set of stats a badge can key off.
type RequirementKind string

const (
	ReqStreak             RequirementKind = "streak"
	ReqSessionsCompleted  RequirementKind = "sessions_completed"
	ReqSessionDuration    RequirementKind = "session_duration"
	ReqSessionsPerDay     RequirementKind = "sessions_per_day"
	ReqResists            RequirementKind = "resists"
	ReqQuestsCompleted    RequirementKind = "quests_completed"
	ReqDailyQuestStreak   RequirementKind = "daily_quest_streak"
	ReqPhoneFreeMeals     RequirementKind = "phone_free_meals"
	ReqPhoneFreeSocial    RequirementKind = "phone_free_social"
	ReqPhoneFreeOutdoor   RequirementKind = "phone_free_outdoor"
	ReqSleepQualityStreak RequirementKind = "sleep_quality_streak"
	ReqZeroScreenTime     RequirementKind = "zero_screen_time"
	ReqStreakRecovery     RequirementKind = "streak_recovery"
	ReqQuestsPerDay       RequirementKind = "quests_per_day"
	ReqLateNightFree      RequirementKind = "late_night_free"
	ReqAppsDeleted        RequirementKind = "apps_deleted"
	ReqCommunityHelp      RequirementKind = "community_help"
	ReqLevel              RequirementKind = "level"
)

// BadgeRequirement is met when the selected stat is >= Value.
type BadgeRequirement struct {
	Kind  RequirementKind `json:"type"`
	Value int64           `json:"value"`
}

// Badge is a static catalog entry.
type Badge struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Emoji       string           `json:"emoji"`
	Description string           `json:"description"`
	XPReward    int64            `json:"xpReward"`
	Requirement BadgeRequirement `json:"requirement"`
}

// EarnedBadge is a badge instance held by a user.
type EarnedBadge struct {
	ID         string    `json:"id" firestore:"id"`
	Name       string    `json:"name" firestore:"name"`
	Emoji      string    `json:"emoji" firestore:"emoji"`
	XPReward   int64     `json:"xpReward" firestore:"xpReward"`
	UnlockedAt time.Time `json:"unlockedAt" firestore:"unlockedAt"`
}

// ─── Quests ─────────────────────────────────────────────────────────────────

// QuestDifficulty grades quests for display and XP source tagging.
type QuestDifficulty string

const (
	DifficultyEasy   QuestDifficulty = "easy"
	DifficultyMedium QuestDifficulty = "medium"
	DifficultyHard   QuestDifficulty = "hard"
)

// QuestRequirementType is what a daily quest measures.
type QuestRequirementType string

const (
	QuestReqMinutes  QuestRequirementType = "session"
	QuestReqSessions QuestRequirementType = "sessions_count"
	QuestReqXP       QuestRequirementType = "xp"
	QuestReqStreak   QuestRequirementType = "streak"
)

// QuestRequirement carries the target and live progress of a daily quest.
type QuestRequirement struct {
	Type    QuestRequirementType `json:"type"`
	Target  int64                `json:"target"`
	Current int64                `json:"current"`
}

// QuestTypeDaily tags the generated daily quests.
const QuestTypeDaily = "daily"

// DailyQuest is recomputed on every read and never persisted.
type DailyQuest struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Type        string           `json:"type"` // always QuestTypeDaily
	Difficulty  QuestDifficulty  `json:"difficulty"`
	XPReward    int64            `json:"xpReward"`
	Requirement QuestRequirement `json:"requirement"`
	Completed   bool             `json:"completed"`
	Progress    float64          `json:"progress"`
	ExpiresAt   time.Time        `json:"expiresAt"`
}

// Quest is a structured quest persisted under the user.
type Quest struct {
	ID          string          `json:"id" firestore:"-"`
	Title       string          `json:"title" firestore:"title"`
	Description string          `json:"description" firestore:"description"`
	Difficulty  QuestDifficulty `json:"difficulty" firestore:"difficulty"`
	XPReward    int64           `json:"xpReward" firestore:"xpReward"`
	Completed   bool            `json:"completed" firestore:"completed"`
	CompletedAt time.Time       `json:"completedAt,omitempty" firestore:"completedAt"`
	CreatedAt   time.Time       `json:"createdAt" firestore:"createdAt"`
}

// ─── Account ────────────────────────────────────────────────────────────────

// DeleteReport counts the records purged by an account deletion.
type DeleteReport struct {
	Sessions       int  `json:"sessions"`
	XPTransactions int  `json:"xpTransactions"`
	BadgeEvents    int  `json:"badgeEvents"`
	Quests         int  `json:"quests"`
	UserDeleted    bool `json:"userDeleted"`
}
