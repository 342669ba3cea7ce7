package report

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
)

// bar renders a label, a horizontal fill for percent (0..100) and the
// percentage. width is the total width of the line.
func bar(label string, percent float64, width int, fill lipgloss.Style) string {
	result := body.Render(label) + "  "

	labelWidth := lipgloss.Width(result)
	percentWidth := 6 // "  100%"

	barWidth := width - labelWidth - percentWidth
	if barWidth < 4 {
		barWidth = 4
	}

	filled := int(float64(barWidth) * percent / 100)
	filled = max(0, min(filled, barWidth))
	empty := barWidth - filled

	result += fill.Render(strings.Repeat("█", filled))
	result += lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("░", empty))
	result += dim.Render(fmt.Sprintf("  %3.0f%%", percent))
	return result
}
