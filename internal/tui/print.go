package tui

import (
	"fmt"
	"os"
)

// PrintSuccess prints a styled success message with the [autobot] prefix.
func PrintSuccess(msg string) {
	if IsPlainMode() {
		fmt.Printf("[autobot] OK: %s\n", msg)
		return
	}
	fmt.Printf("%s %s %s\n", Prefix(), StyleSuccess.Render(IconCheck), msg)
}

// PrintError prints a styled error message to stderr.
func PrintError(msg string) {
	if IsPlainMode() {
		fmt.Fprintf(os.Stderr, "[autobot] ERROR: %s\n", msg)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s %s\n", Prefix(), StyleError.Render(IconCross), msg)
}

// PrintWarning prints a styled warning message to stderr, keeping stdout
// clean for the generated command.
func PrintWarning(msg string) {
	if IsPlainMode() {
		fmt.Fprintf(os.Stderr, "[autobot] WARNING: %s\n", msg)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s %s\n", Prefix(), StyleWarning.Render(IconWarning), msg)
}

// PrintInfo prints a styled info message.
func PrintInfo(msg string) {
	if IsPlainMode() {
		fmt.Printf("[autobot] %s\n", msg)
		return
	}
	fmt.Printf("%s %s %s\n", Prefix(), StyleInfo.Render(IconInfo), msg)
}
