package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep the
// terminal's own background instead of a down-converted approximation
// that may clash with palettes like Solarized.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Theme bundles the colors and precomputed styles for one renderer. Node
// rows reuse these styles instead of allocating per frame.
type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Node accents
	Reference lipgloss.AdaptiveColor // outbound FK arrows
	BackRef   lipgloss.AdaptiveColor // inbound reference groups
	Cycle     lipgloss.AdaptiveColor // cycle stop markers
	Missing   lipgloss.AdaptiveColor // vanished reference targets
	Errored   lipgloss.AdaptiveColor // degraded fetches

	// UI elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base     lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style

	MutedText     lipgloss.Style // prefixes, column names, counts
	SecondaryText lipgloss.Style // record ids, via columns
	PrimaryBold   lipgloss.Style // root identity
	CycleText     lipgloss.Style // cycle markers
	MissingText   lipgloss.Style // missing markers
	ErrorText     lipgloss.Style // inline error markers
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},

		Reference: lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},
		BackRef:   lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		Cycle:     lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
		Missing:   lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
		Errored:   lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		PaddingLeft(1).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.SecondaryText = r.NewStyle().Foreground(t.Secondary)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.CycleText = r.NewStyle().Foreground(t.Cycle)
	t.MissingText = r.NewStyle().Foreground(t.Missing).Strikethrough(true)
	t.ErrorText = r.NewStyle().Foreground(t.Errored)

	return t
}

// AreaStyle returns an entity-name style driven by the schema's area color.
// Empty or unusable hex values fall back to the secondary accent.
func (t Theme) AreaStyle(hex string) lipgloss.Style {
	if hex == "" {
		return t.Renderer.NewStyle().Foreground(t.Secondary)
	}
	return t.Renderer.NewStyle().Foreground(ThemeFg(hex))
}

// TestTheme returns a theme suitable for use in tests (stable renderer).
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
