package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Columns renders [left, right] rows with the right column aligned. The
// left column is styled with left unless plain mode is on.
func Columns(rows [][2]string, indent string, left lipgloss.Style) string {
	if len(rows) == 0 {
		return ""
	}
	// visual width, not byte length
	width := 0
	for _, row := range rows {
		width = max(width, lipgloss.Width(row[0]))
	}

	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(indent)
		sb.WriteString(Render(left, row[0]))
		if row[1] != "" {
			sb.WriteString(strings.Repeat(" ", width-lipgloss.Width(row[0])+2))
			sb.WriteString(row[1])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
