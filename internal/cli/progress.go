package cli

import (
	"fmt"
	"strings"

	"github.com/lockin-app/lockin/internal/app/engagement"
	"github.com/lockin-app/lockin/internal/domain"
)

// ─── Progress Bar ───────────────────────────────────────────────────────────
// Renders progress through the current level band:
// Lv 6 📘 Apprentice  [████████████░░░░░░░░░░░░░░░░░░] 42% │ 147 / 350 XP

const barWidth = 30 // Characters for the progress bar

// renderLevel returns the one-line level summary for info.
func renderLevel(info engagement.LevelInfo) string {
	pct := bandPercent(info.CurrentXP, info.XPToNextLevel)
	return fmt.Sprintf("Lv %d %s %s  %s %3.0f%% │ %d / %d XP",
		info.Level, info.TitleEmoji, info.Title,
		renderBar(pct), pct, info.CurrentXP, info.XPToNextLevel)
}

// renderQuest returns the one-line progress summary of a daily quest.
// Progress is a percentage in [0, 100].
func renderQuest(q domain.DailyQuest) string {
	mark := "[ ]"
	if q.Completed {
		mark = "[x]"
	}
	return fmt.Sprintf("%s %-28s %s %3.0f%%", mark, q.Title, renderBar(q.Progress), q.Progress)
}

func bandPercent(current, width int64) float64 {
	if width <= 0 {
		return 0
	}
	pct := float64(current) / float64(width) * 100
	return min(max(pct, 0), 100)
}

func renderBar(pct float64) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * barWidth)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}
