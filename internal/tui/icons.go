package tui

// Icons. Color is the primary signal; the shape reinforces it.
const (
	IconCheck   = "✔" // ✔ success
	IconCross   = "✖" // ✖ error
	IconWarning = "⚠" // ⚠ warning
	IconInfo    = "ℹ" // ℹ info
	IconDot     = "●" // ● selected
	IconCircle  = "○" // ○ unselected
	IconBolt    = "⚡" // ⚡ high-risk choice
	IconSquare  = "▪" // ▪ severity badge
	IconArrow   = "❯" // ❯ prompt
)
