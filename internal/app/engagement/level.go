package engagement

import (
	"math"

	"github.com/lockin-app/lockin/internal/domain"
)

const (
	// MaxXPAward bounds a single XP grant.
	MaxXPAward int64 = 1_000_000
	// MaxTotalXP bounds a user's cumulative XP. It is small enough for the
	// closed-form level solve to stay exact in float64.
	MaxTotalXP int64 = 1 << 50
)

// LevelInfo is the leveling table applied to a cumulative XP total.
type LevelInfo struct {
	Level         int    `json:"level"`
	Title         string `json:"title"`
	TitleEmoji    string `json:"titleEmoji"`
	CurrentXP     int64  `json:"currentXP"`     // XP accrued inside the current band
	XPToNextLevel int64  `json:"xpToNextLevel"` // width of the current band
}

// levelTitle is the title held from MinLevel until the next entry.
type levelTitle struct {
	MinLevel int
	Title    string
	Emoji    string
}

// titles must stay sorted by MinLevel.
var titles = []levelTitle{
	{1, "Wanderer", "🌱"},
	{3, "Seeker", "🔍"},
	{5, "Apprentice", "📘"},
	{8, "Focused", "🎯"},
	{12, "Disciplined", "🧘"},
	{16, "Guardian", "🛡️"},
	{20, "Sage", "🦉"},
	{30, "Master", "🏯"},
	{40, "Zen Master", "☯️"},
	{50, "Enlightened", "🌟"},
	{75, "Legend", "👑"},
}

// levelRewards lists the rewards unlocked when a level is reached.
var levelRewards = map[int][]string{
	2:   {"avatar:sprout_frame"},
	3:   {"theme:dawn"},
	5:   {"timer:custom_durations"},
	8:   {"avatar:focus_ring"},
	10:  {"theme:forest", "shield_slot:extra"},
	15:  {"sound:rainfall"},
	20:  {"avatar:sage_aura", "theme:night_sky"},
	30:  {"theme:mountain_temple"},
	40:  {"sound:temple_bells"},
	50:  {"avatar:golden_lotus", "shield_slot:extra"},
	75:  {"theme:aurora"},
	100: {"avatar:legend_crown"},
}

// BandWidth returns the XP needed to move from level to level+1.
// Band width grows linearly: 100 at L1, +50 per level.
func BandWidth(level int) int64 {
	if level < 1 {
		level = 1
	}
	return 100 + 50*int64(level-1)
}

// XPForLevel returns the cumulative XP required to reach a given level.
// L1 = 0, L2 = 100, L3 = 250, L4 = 450.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return 100*n + 25*n*(n-1)
}

// LevelForXP returns the level for a given XP amount, clamped to
// [0, MaxTotalXP]. Reaching level n+1 takes 25n² + 75n XP, so the level is
// solved directly and then nudged past any float rounding.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	if xp > MaxTotalXP {
		xp = MaxTotalXP
	}
	n := int((math.Sqrt(5625+100*float64(xp)) - 75) / 50)
	if n < 0 {
		n = 0
	}
	for n > 0 && XPForLevel(n+1) > xp {
		n--
	}
	for XPForLevel(n+2) <= xp {
		n++
	}
	return n + 1
}

// LevelFromXP resolves level, title and band progress for totalXP.
func LevelFromXP(totalXP int64) LevelInfo {
	if totalXP < 0 {
		totalXP = 0
	}
	if totalXP > MaxTotalXP {
		totalXP = MaxTotalXP
	}
	level := LevelForXP(totalXP)
	t := titleFor(level)
	return LevelInfo{
		Level:         level,
		Title:         t.Title,
		TitleEmoji:    t.Emoji,
		CurrentXP:     totalXP - XPForLevel(level),
		XPToNextLevel: BandWidth(level),
	}
}

// LevelRewards returns the rewards unlocked exactly at level.
func LevelRewards(level int) []string {
	if r, ok := levelRewards[level]; ok {
		out := make([]string, len(r))
		copy(out, r)
		return out
	}
	return nil
}

func titleFor(level int) levelTitle {
	t := titles[0]
	for _, candidate := range titles {
		if level < candidate.MinLevel {
			break
		}
		t = candidate
	}
	return t
}

// applyLevel writes the cached level fields of u from info.
func applyLevel(u *domain.UserProgression, info LevelInfo) {
	u.Level = info.Level
	u.Title = info.Title
	u.TitleEmoji = info.TitleEmoji
	u.XPToNextLevel = info.XPToNextLevel
}
