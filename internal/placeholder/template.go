// Package placeholder binds validated values into command templates.
//
// A template is an ordered list of tokens. Each token is a run of literal
// text and placeholder references written {{name}} (or {name} in older
// manifests). Values are inserted as opaque strings: nothing here splits,
// globs or expands them.
package placeholder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/command"
)

// refRe matches {{name}} or {name}. Names follow identifier rules.
var refRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.-]*)\s*\}\}|\{([A-Za-z_][A-Za-z0-9_.-]*)\}`)

// Segment is literal text when Name is empty, otherwise a reference.
type Segment struct {
	Literal string
	Name    string
}

// Token is one argv element before substitution.
type Token []Segment

// Whole returns the placeholder name when the token is exactly one
// reference and nothing else.
func (t Token) Whole() (string, bool) {
	if len(t) == 1 && t[0].Name != "" {
		return t[0].Name, true
	}
	return "", false
}

func (t Token) String() string {
	var sb strings.Builder
	for _, s := range t {
		if s.Name != "" {
			sb.WriteString("{{" + s.Name + "}}")
			continue
		}
		sb.WriteString(s.Literal)
	}
	return sb.String()
}

// Template is a parsed command template.
type Template struct {
	Tokens []Token
}

// Parse splits s with POSIX shell rules and parses each word.
func Parse(s string) (Template, error) {
	words, err := command.Split(s)
	if err != nil {
		return Template{}, &command.BuildError{Token: s, Reason: "template is not a plain command: " + err.Error()}
	}
	return ParseTokens(words), nil
}

// ParseTokens parses an already tokenized template; each entry becomes
// exactly one token.
func ParseTokens(words []string) Template {
	tpl := Template{Tokens: make([]Token, 0, len(words))}
	for _, w := range words {
		tpl.Tokens = append(tpl.Tokens, parseToken(w))
	}
	return tpl
}

func parseToken(w string) Token {
	var tok Token
	last := 0
	for _, m := range refRe.FindAllStringSubmatchIndex(w, -1) {
		if m[0] > last {
			tok = append(tok, Segment{Literal: w[last:m[0]]})
		}
		name := ""
		if m[2] >= 0 {
			name = w[m[2]:m[3]]
		} else {
			name = w[m[4]:m[5]]
		}
		tok = append(tok, Segment{Name: name})
		last = m[1]
	}
	if last < len(w) || len(tok) == 0 {
		tok = append(tok, Segment{Literal: w[last:]})
	}
	return tok
}

// Names returns every referenced name once, in first-use order.
func (t Template) Names() []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range t.Tokens {
		for _, s := range tok {
			if s.Name != "" && !seen[s.Name] {
				seen[s.Name] = true
				out = append(out, s.Name)
			}
		}
	}
	return out
}

func (t Template) String() string {
	parts := make([]string, len(t.Tokens))
	for i, tok := range t.Tokens {
		parts[i] = tok.String()
	}
	return strings.Join(parts, " ")
}

// Binary returns the leading literal token, if the template has one.
func (t Template) Binary() (string, error) {
	if len(t.Tokens) == 0 {
		return "", fmt.Errorf("empty template")
	}
	first := t.Tokens[0]
	if len(first) != 1 || first[0].Name != "" {
		return "", fmt.Errorf("template must start with a literal binary, got %q", first.String())
	}
	return first[0].Literal, nil
}
