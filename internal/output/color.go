// Package output provides styled terminal rendering helpers for the
// habitboard CLI.
package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color constants for consistent styling across the CLI.
var (
	// ColorPrimary is used for headers and emphasis.
	ColorPrimary = lipgloss.Color("#64b5f6")

	// ColorAhead is used for goals running ahead of pace.
	ColorAhead = lipgloss.Color("#66bb6a")

	// ColorBehind is used for goals running behind pace.
	ColorBehind = lipgloss.Color("#ef5350")

	// ColorOnTrack is used for goals inside the pacing dead band.
	ColorOnTrack = lipgloss.Color("#fff59d")

	// ColorMuted is used for secondary text and borders.
	ColorMuted = lipgloss.Color("#888888")
)

// Styles provides reusable lipgloss styles.
var (
	// StyleHeader is used for section headers and table headings.
	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	// StyleAhead marks ahead-of-pace values.
	StyleAhead = lipgloss.NewStyle().
			Foreground(ColorAhead)

	// StyleBehind marks behind-pace values.
	StyleBehind = lipgloss.NewStyle().
			Foreground(ColorBehind)

	// StyleOnTrack marks on-track values.
	StyleOnTrack = lipgloss.NewStyle().
			Foreground(ColorOnTrack)

	// StyleMuted is used for de-emphasized text.
	StyleMuted = lipgloss.NewStyle().
			Foreground(ColorMuted)
)

// noColor tracks whether color output is disabled.
var noColor bool

func init() {
	// Piped output gets plain text without asking.
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		SetNoColor(true)
	}
}

// SetNoColor disables or enables color output globally.
// When disabled, all package-level styles are reassigned to unstyled
// renderers.
func SetNoColor(disabled bool) {
	noColor = disabled
	if disabled {
		plain := lipgloss.NewStyle()
		StyleHeader = plain
		StyleAhead = plain
		StyleBehind = plain
		StyleOnTrack = plain
		StyleMuted = plain
	}
}

// IsNoColor returns whether color output is currently disabled.
func IsNoColor() bool {
	return noColor
}
