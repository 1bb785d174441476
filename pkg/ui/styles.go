package ui

import "github.com/charmbracelet/lipgloss"

// Shared adaptive palette for chrome that renders outside a Theme, such as
// the status bar. Light values are tuned for WCAG-ish contrast on white.
var (
	ColorText  = lipgloss.AdaptiveColor{Light: "#333333", Dark: "#E8E8E8"}
	ColorMuted = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}
	ColorInfo  = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}

	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorSuccessBg = lipgloss.AdaptiveColor{Light: "#E8F5E9", Dark: "#1B3A24"}
	ColorDanger    = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorDangerBg  = lipgloss.AdaptiveColor{Light: "#FDECEA", Dark: "#3A1B1B"}
)

// Status bar styles, shared by the footer renderer.
var (
	statusOKStyle = lipgloss.NewStyle().
			Background(ColorSuccessBg).
			Foreground(ColorSuccess).
			Bold(true).
			Padding(0, 2)

	statusErrStyle = lipgloss.NewStyle().
			Background(ColorDangerBg).
			Foreground(ColorDanger).
			Bold(true).
			Padding(0, 2)
)

// PanelStyle frames secondary panes such as the detail view.
var PanelStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorMuted).
	Padding(0, 1)
