// Package tui holds terminal presentation: styles, print helpers and the
// interactive prompter.
package tui

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// plainMode disables all styling: no colors, no icons, no boxes.
// When enabled, output is plain text suitable for scripts, pipes or --no-color.
var (
	plainMode bool
	plainOnce sync.Once
	plainMu   sync.RWMutex
)

// initPlainMode auto-detects plain mode from environment on first call.
// Precedence: NO_COLOR > TTY detection > TERM=dumb.
func initPlainMode() {
	plainOnce.Do(func() {
		// NO_COLOR wins: https://no-color.org
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			plainMode = true
			return
		}
		if !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec // Fd() fits in int on all supported platforms
			plainMode = true
			return
		}
		if os.Getenv("TERM") == "dumb" {
			plainMode = true
		}
	})
}

// SetPlainMode explicitly enables or disables plain mode.
// Call this early (e.g. when parsing --no-color) before any output.
func SetPlainMode(plain bool) {
	plainMu.Lock()
	defer plainMu.Unlock()
	plainMode = plain
	// Mark as initialized so auto-detect doesn't override
	plainOnce.Do(func() {})
}

// IsPlainMode returns true if styling is disabled.
func IsPlainMode() bool {
	initPlainMode()
	plainMu.RLock()
	defer plainMu.RUnlock()
	return plainMode
}

// Color palette. Adapts to the terminal background.
var (
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#1F6F8B", Dark: "#4FC1E9"}
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#2E7D6B", Dark: "#7FD1B9"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#3A7A3A", Dark: "#8CC265"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#B5382A", Dark: "#E05A3A"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFD93D"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#1F6F8B", Dark: "#8FD3F4"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	ColorHigh    = lipgloss.AdaptiveColor{Light: "#A0522D", Dark: "#E8734A"}
)

// Reusable styles.
var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	StyleMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleBold    = lipgloss.NewStyle().Bold(true)
	StyleCommand = lipgloss.NewStyle().Foreground(ColorAccent)
	StyleHigh    = lipgloss.NewStyle().Bold(true).Foreground(ColorHigh)

	stylePrefix = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
)

// Prefix returns the [autobot] prefix string.
func Prefix() string {
	if IsPlainMode() {
		return "[autobot]"
	}
	return stylePrefix.Render("[autobot]")
}

// Render applies s unless plain mode is on.
func Render(s lipgloss.Style, text string) string {
	if IsPlainMode() {
		return text
	}
	return s.Render(text)
}

// SeverityStyle returns the style for a severity level.
func SeverityStyle(severity string) lipgloss.Style {
	switch severity {
	case "error":
		return StyleError
	case "high":
		return StyleHigh
	case "warning":
		return StyleWarning
	case "info":
		return StyleInfo
	default:
		return StyleMuted
	}
}

// SeverityBadge returns a styled severity badge like "▪ ERROR".
func SeverityBadge(severity string) string {
	label := severityLabel(severity)
	if IsPlainMode() {
		return "[" + label + "]"
	}
	return SeverityStyle(severity).Render(IconSquare + " " + label)
}

func severityLabel(severity string) string {
	switch severity {
	case "error":
		return "ERROR"
	case "high":
		return "HIGH"
	case "warning":
		return "WARNING"
	case "info":
		return "INFO"
	default:
		return severity
	}
}

// Separator returns a section separator line.
func Separator(title string) string {
	if IsPlainMode() {
		if title == "" {
			return "---"
		}
		return "--- " + title + " ---"
	}
	bar := StyleMuted.Render("──")
	if title == "" {
		return bar
	}
	return bar + " " + StyleTitle.Render(title) + " " + bar
}
