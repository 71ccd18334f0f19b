package engagement_test

import (
	"math"
	"testing"
	"time"

	"github.com/lockin-app/lockin/internal/app/engagement"
	"github.com/lockin-app/lockin/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// Leveling Table Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestXPForLevel_Thresholds(t *testing.T) {
	tests := []struct {
		level int
		want  int64
	}{
		{0, 0},
		{1, 0},
		{2, 100},
		{3, 250},
		{4, 450},
		{5, 700},
		{6, 1000},
	}
	for _, tt := range tests {
		if got := engagement.XPForLevel(tt.level); got != tt.want {
			t.Errorf("XPForLevel(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestLevelFromXP_Boundaries(t *testing.T) {
	tests := []struct {
		xp        int64
		level     int
		currentXP int64
		band      int64
	}{
		{0, 1, 0, 100},
		{99, 1, 99, 100},
		{100, 2, 0, 150},
		{249, 2, 149, 150},
		{250, 3, 0, 200},
		{1000, 6, 0, 350},
		{-5, 1, 0, 100},
	}
	for _, tt := range tests {
		info := engagement.LevelFromXP(tt.xp)
		if info.Level != tt.level || info.CurrentXP != tt.currentXP || info.XPToNextLevel != tt.band {
			t.Errorf("LevelFromXP(%d) = L%d %d/%d, want L%d %d/%d",
				tt.xp, info.Level, info.CurrentXP, info.XPToNextLevel, tt.level, tt.currentXP, tt.band)
		}
	}
}

func TestLevelFromXP_Monotonic(t *testing.T) {
	prev := 0
	for xp := int64(0); xp <= 50_000; xp += 7 {
		info := engagement.LevelFromXP(xp)
		if info.Level < prev {
			t.Fatalf("level decreased at %d XP: %d < %d", xp, info.Level, prev)
		}
		if info.CurrentXP < 0 || info.CurrentXP >= info.XPToNextLevel {
			t.Fatalf("at %d XP currentXP %d outside band %d", xp, info.CurrentXP, info.XPToNextLevel)
		}
		prev = info.Level
	}
}

func TestLevelForXP_MatchesThresholds(t *testing.T) {
	for level := 2; level <= 200_000; level += 997 {
		xp := engagement.XPForLevel(level)
		if got := engagement.LevelForXP(xp); got != level {
			t.Errorf("LevelForXP(%d) = %d, want %d", xp, got, level)
		}
		if got := engagement.LevelForXP(xp - 1); got != level-1 {
			t.Errorf("LevelForXP(%d) = %d, want %d", xp-1, got, level-1)
		}
	}
}

func TestLevelFromXP_HugeTotalsClamp(t *testing.T) {
	done := make(chan engagement.LevelInfo, 1)
	go func() { done <- engagement.LevelFromXP(math.MaxInt64) }()

	var info engagement.LevelInfo
	select {
	case info = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("LevelFromXP(MaxInt64) did not return")
	}

	want := engagement.LevelFromXP(engagement.MaxTotalXP)
	if info != want {
		t.Errorf("LevelFromXP(MaxInt64) = %+v, want clamp to %+v", info, want)
	}
	if engagement.XPForLevel(info.Level) > engagement.MaxTotalXP || engagement.XPForLevel(info.Level+1) <= engagement.MaxTotalXP {
		t.Errorf("level %d does not bracket %d XP", info.Level, engagement.MaxTotalXP)
	}
	if info.CurrentXP < 0 || info.CurrentXP >= info.XPToNextLevel {
		t.Errorf("currentXP %d outside band %d", info.CurrentXP, info.XPToNextLevel)
	}
}

func TestLevelFromXP_Titles(t *testing.T) {
	tests := []struct {
		xp    int64
		title string
		emoji string
	}{
		{0, "Wanderer", "🌱"},
		{engagement.XPForLevel(3), "Seeker", "🔍"},
		{engagement.XPForLevel(4), "Seeker", "🔍"},
		{engagement.XPForLevel(20), "Sage", "🦉"},
		{engagement.XPForLevel(120), "Legend", "👑"},
	}
	for _, tt := range tests {
		info := engagement.LevelFromXP(tt.xp)
		if info.Title != tt.title || info.TitleEmoji != tt.emoji {
			t.Errorf("LevelFromXP(%d) title = %s %s, want %s %s", tt.xp, info.Title, info.TitleEmoji, tt.title, tt.emoji)
		}
	}
}

func TestLevelRewards(t *testing.T) {
	if r := engagement.LevelRewards(2); len(r) == 0 {
		t.Error("level 2 should unlock a reward")
	}
	if r := engagement.LevelRewards(4); r != nil {
		t.Errorf("level 4 should unlock nothing, got %v", r)
	}

	// Returned slices are copies.
	r := engagement.LevelRewards(10)
	r[0] = "tampered"
	if engagement.LevelRewards(10)[0] == "tampered" {
		t.Error("LevelRewards must not expose the reward table")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Multiplier Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestStreakMultiplier_Tiers(t *testing.T) {
	tests := []struct {
		days int
		want float64
	}{
		{0, 1.0}, {2, 1.0},
		{3, 1.1}, {6, 1.1},
		{7, 1.2}, {13, 1.2},
		{14, 1.3}, {29, 1.3},
		{30, 1.5}, {99, 1.5},
		{100, 2.0}, {1000, 2.0},
	}
	for _, tt := range tests {
		if got := engagement.StreakMultiplier(tt.days); got != tt.want {
			t.Errorf("StreakMultiplier(%d) = %v, want %v", tt.days, got, tt.want)
		}
	}
}

func TestStreakMultiplier_NonDecreasing(t *testing.T) {
	prev := 0.0
	for d := 0; d <= 400; d++ {
		m := engagement.StreakMultiplier(d)
		if m < prev {
			t.Fatalf("multiplier decreased at %d days", d)
		}
		prev = m
	}
}

func TestSessionXP(t *testing.T) {
	tests := []struct {
		minutes, streak int
		want            int64
	}{
		{25, 0, 50},
		{25, 7, 60},
		{25, 3, 55},
		{25, 14, 65},
		{25, 30, 75},
		{25, 100, 100},
		{7, 3, 15}, // 15.4 floors
		{0, 10, 0},
	}
	for _, tt := range tests {
		if got := engagement.SessionXP(tt.minutes, tt.streak); got != tt.want {
			t.Errorf("SessionXP(%d, %d) = %d, want %d", tt.minutes, tt.streak, got, tt.want)
		}
	}
}

func TestSessionXP_MatchesFormula(t *testing.T) {
	for minutes := 1; minutes <= 600; minutes += 13 {
		for _, streak := range []int{0, 3, 7, 14, 30, 100} {
			want := int64(math.Floor(float64(minutes*2)*engagement.StreakMultiplier(streak) + 1e-9))
			if got := engagement.SessionXP(minutes, streak); got != want {
				t.Errorf("SessionXP(%d, %d) = %d, want %d", minutes, streak, got, want)
			}
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Shield Rule Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestShieldEarned(t *testing.T) {
	held := func(ms ...int) []domain.Shield {
		var out []domain.Shield
		for _, m := range ms {
			out = append(out, domain.Shield{Milestone: m})
		}
		return out
	}

	tests := []struct {
		name     string
		streak   int
		existing []domain.Shield
		want     int // 0 = none
	}{
		{"below first milestone", 6, nil, 0},
		{"first milestone", 7, nil, 7},
		{"already held", 7, held(7), 0},
		{"next milestone", 30, held(7), 30},
		{"catch up lowest first", 40, nil, 7},
		{"all held", 400, held(7, 30, 100, 365), 0},
		{"between milestones", 50, held(7, 30), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engagement.ShieldEarned(tt.streak, tt.existing)
			switch {
			case tt.want == 0 && got != nil:
				t.Errorf("expected no shield, got milestone %d", got.Milestone)
			case tt.want != 0 && got == nil:
				t.Errorf("expected shield %d, got none", tt.want)
			case tt.want != 0 && got.Milestone != tt.want:
				t.Errorf("expected shield %d, got %d", tt.want, got.Milestone)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Badge Catalog Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestCatalog_UniqueIDsAndKnownKinds(t *testing.T) {
	seen := make(map[string]bool)
	u := &domain.UserProgression{}
	for _, b := range engagement.Catalog() {
		if seen[b.ID] {
			t.Errorf("duplicate badge id %q", b.ID)
		}
		seen[b.ID] = true
		if _, ok := engagement.StatValue(u, b.Requirement.Kind); !ok {
			t.Errorf("badge %q uses unknown requirement kind %q", b.ID, b.Requirement.Kind)
		}
		if b.XPReward <= 0 || b.Requirement.Value <= 0 {
			t.Errorf("badge %q needs positive reward and threshold", b.ID)
		}
	}
}

func TestEvaluateBadges_CatalogOrderAndHeld(t *testing.T) {
	u := &domain.UserProgression{Streak: 7}
	u.Stats.TotalSessions = 10

	got := engagement.EvaluateBadges(u, engagement.Catalog())
	ids := make([]string, len(got))
	for i, b := range got {
		ids[i] = b.ID
	}
	want := []string{"first_focus", "ten_sessions", "streak_3", "streak_7"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], ids[i])
		}
	}

	u.Badges = append(u.Badges, domain.EarnedBadge{ID: "streak_3"})
	for _, b := range engagement.EvaluateBadges(u, engagement.Catalog()) {
		if b.ID == "streak_3" {
			t.Error("held badge must not qualify again")
		}
	}
}

func TestRequirementMet_UnknownKind(t *testing.T) {
	u := &domain.UserProgression{Streak: 100}
	if engagement.RequirementMet(u, domain.BadgeRequirement{Kind: "made_up", Value: 1}) {
		t.Error("unknown requirement kinds never match")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Quest Generator Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestBuildDailyQuests_Progress(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	u := &domain.UserProgression{}
	today := domain.DayAggregate{Minutes: 45, Sessions: 1, XP: 50}

	quests := engagement.BuildDailyQuests(u, today, now, time.UTC)
	if len(quests) != 4 {
		t.Fatalf("expected 4 quests, got %d", len(quests))
	}

	byID := make(map[string]domain.DailyQuest)
	for _, q := range quests {
		byID[q.ID] = q
	}

	tests := []struct {
		id        string
		current   int64
		progress  float64
		completed bool
	}{
		{"session-30min", 45, 100, true},
		{"three-sessions", 1, 100.0 / 3, false},
		{"xp-goal", 50, 50, false},
		{"maintain-streak", 1, 100, true},
	}
	for _, tt := range tests {
		q, ok := byID[tt.id]
		if !ok {
			t.Errorf("quest %s missing", tt.id)
			continue
		}
		if q.Requirement.Current != tt.current {
			t.Errorf("%s current = %d, want %d", tt.id, q.Requirement.Current, tt.current)
		}
		if math.Abs(q.Progress-tt.progress) > 1e-9 {
			t.Errorf("%s progress = %v, want %v", tt.id, q.Progress, tt.progress)
		}
		if q.Completed != tt.completed {
			t.Errorf("%s completed = %v, want %v", tt.id, q.Completed, tt.completed)
		}
		if q.Type != domain.QuestTypeDaily {
			t.Errorf("%s type = %q, want %q", tt.id, q.Type, domain.QuestTypeDaily)
		}
	}

	wantExpiry := time.Date(2026, 3, 10, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if !quests[0].ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", quests[0].ExpiresAt, wantExpiry)
	}
}

func TestBuildDailyQuests_Rewards(t *testing.T) {
	quests := engagement.BuildDailyQuests(&domain.UserProgression{}, domain.DayAggregate{}, time.Now(), time.UTC)
	want := map[string]int64{"session-30min": 20, "three-sessions": 35, "xp-goal": 25, "maintain-streak": 15}
	for _, q := range quests {
		if q.XPReward != want[q.ID] {
			t.Errorf("%s reward = %d, want %d", q.ID, q.XPReward, want[q.ID])
		}
		if q.Completed || q.Progress != 0 {
			t.Errorf("%s should start incomplete at 0%%", q.ID)
		}
	}
}

func TestDayKey_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	ts := time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC) // 21:00 on the 10th at UTC-5
	if got := engagement.DayKey(ts, loc); got != "2026-03-10" {
		t.Errorf("DayKey = %s, want 2026-03-10", got)
	}
	if got := engagement.DayKey(ts, time.UTC); got != "2026-03-11" {
		t.Errorf("DayKey = %s, want 2026-03-11", got)
	}
}
