// Package engagement implements the Lock In reward engine.
// Focus sessions become XP; XP becomes levels and titles; daily streaks
// scale XP; quests and badges reward habits; streak milestones grant shields.
package engagement

import "math"

// multiplierTier applies Factor from MinDays upward.
type multiplierTier struct {
	MinDays int
	Factor  float64
}

// streakTiers must stay sorted by MinDays descending.
var streakTiers = []multiplierTier{
	{100, 2.0},
	{30, 1.5},
	{14, 1.3},
	{7, 1.2},
	{3, 1.1},
	{0, 1.0},
}

// XPPerMinute is the base XP rate of a focus session.
const XPPerMinute = 2

// StreakMultiplier returns the XP multiplier for a streak of days.
// Step function: 0–2 → 1.0, 3–6 → 1.1, 7–13 → 1.2, 14–29 → 1.3,
// 30–99 → 1.5, 100+ → 2.0.
func StreakMultiplier(days int) float64 {
	for _, t := range streakTiers {
		if days >= t.MinDays {
			return t.Factor
		}
	}
	return 1.0
}

// SessionXP returns the XP earned by a focus session of the given length.
// floor(minutes * 2 * multiplier)
func SessionXP(minutes int, streak int) int64 {
	if minutes <= 0 {
		return 0
	}
	base := float64(minutes * XPPerMinute)
	// Round away float noise before flooring: 25*2*1.1 is 55.00000000000001.
	return int64(math.Floor(math.Round(base*StreakMultiplier(streak)*1e6) / 1e6))
}
