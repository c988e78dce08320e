package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

// These tests modify global state (plainMode) and must not run in parallel.

func enablePlainMode(t *testing.T) {
	t.Helper()
	SetPlainMode(true)
	t.Cleanup(func() { SetPlainMode(false) })
}

func TestSeverityBadge_PlainMode(t *testing.T) {
	enablePlainMode(t)

	tests := []struct {
		severity string
		want     string
	}{
		{"error", "[ERROR]"},
		{"warning", "[WARNING]"},
		{"info", "[INFO]"},
		{"high", "[HIGH]"},
		{"custom", "[custom]"},
	}
	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			if got := SeverityBadge(tt.severity); got != tt.want {
				t.Errorf("SeverityBadge(%q) = %q, want %q", tt.severity, got, tt.want)
			}
		})
	}
}

func TestPrefixAndSeparator_PlainMode(t *testing.T) {
	enablePlainMode(t)

	if got := Prefix(); got != "[autobot]" {
		t.Errorf("Prefix() = %q", got)
	}
	if got := Separator(""); got != "---" {
		t.Errorf("Separator(\"\") = %q", got)
	}
	if got := Separator("Services"); got != "--- Services ---" {
		t.Errorf("Separator(\"Services\") = %q", got)
	}
	if got := Render(StyleError, "x"); got != "x" {
		t.Errorf("Render in plain mode = %q", got)
	}
}

func TestColumns(t *testing.T) {
	enablePlainMode(t)

	got := Columns([][2]string{
		{"Nmap/nmap", "network mapper"},
		{"Sqlmap/sqlmap", "sql injection"},
		{"Whois/whois", ""},
	}, "  ", lipgloss.NewStyle())
	want := strings.Join([]string{
		"  Nmap/nmap      network mapper",
		"  Sqlmap/sqlmap  sql injection",
		"  Whois/whois",
		"",
	}, "\n")
	if got != want {
		t.Errorf("Columns =\n%q\nwant\n%q", got, want)
	}
	if Columns(nil, "", lipgloss.NewStyle()) != "" {
		t.Error("empty rows should render nothing")
	}
}
