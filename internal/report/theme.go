package report

import (
	"charm.land/lipgloss/v2"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

var (
	title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	heading = lipgloss.NewStyle().
		Bold(true).
		Foreground(Secondary).
		MarginTop(1)

	body = lipgloss.NewStyle().
		Foreground(Text)

	dim = lipgloss.NewStyle().
		Foreground(TextDim)

	hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	good = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	bad = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)

	warn = lipgloss.NewStyle().
		Foreground(Accent)

	card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 2)
)
