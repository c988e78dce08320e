package validate

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// sanitize normalizes raw to NFC and trims it. Invalid UTF-8, NUL and other
// control characters are rejected: values end up as argv elements and in
// shell-quoted previews, where they would be invisible or truncating.
func sanitize(raw string) (string, *Error) {
	if !utf8.ValidString(raw) {
		return "", malformed("encoding", "", "value is not valid UTF-8")
	}
	s := norm.NFC.String(raw)
	s = strings.TrimSpace(s)
	for _, r := range s {
		if r == 0 {
			return "", notAllowed("control", "\\x00", "value contains a NUL byte")
		}
		if unicode.IsControl(r) {
			return "", notAllowed("control", "", "value contains a control character U+%04X", r)
		}
	}
	return s, nil
}
