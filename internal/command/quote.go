package command

import "strings"

// shellSpecial holds every byte that makes a token unsafe to print bare.
const shellSpecial = " \t\n\r\v\f'\"`;|&$><()*?[]#~=%!\\{}^"

// NeedsQuoting reports whether tok must be quoted to survive a POSIX shell
// unchanged.
func NeedsQuoting(tok string) bool {
	if tok == "" {
		return true
	}
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if c < 0x20 || c == 0x7f || strings.IndexByte(shellSpecial, c) >= 0 {
			return true
		}
	}
	return false
}

// Quote returns tok unchanged when it is shell-safe, otherwise wrapped in
// single quotes with each embedded ' written as '\''.
func Quote(tok string) string {
	if !NeedsQuoting(tok) {
		return tok
	}
	return "'" + strings.ReplaceAll(tok, "'", `'\''`) + "'"
}

// Join quotes each element and joins them with single spaces.
func Join(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = Quote(a)
	}
	return strings.Join(parts, " ")
}
