package output

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/habitboard/internal/progress"
)

// GoalBar renders a visual completion bar for a goal.
// Example: "███░░░░ 1/4"
func GoalBar(current, target, width int) string {
	if width <= 0 {
		width = 14
	}
	if target <= 0 {
		return StyleMuted.Render(strings.Repeat("░", width))
	}

	filled := current * width / target
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %s", bar, StyleMuted.Render(fmt.Sprintf("%d/%d", current, target)))
}

// StatusBadge returns a styled pacing label.
func StatusBadge(s progress.Status) string {
	switch s {
	case progress.StatusAhead:
		return StyleAhead.Render("ahead")
	case progress.StatusBehind:
		return StyleBehind.Render("BEHIND")
	default:
		return StyleOnTrack.Render("on track")
	}
}

// Section prints a styled section header with a horizontal rule.
func Section(title string) string {
	header := StyleHeader.Render(title)
	rule := StyleMuted.Render(strings.Repeat("─", 66))
	return fmt.Sprintf("\n %s\n %s", header, rule)
}
