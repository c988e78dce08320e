package command

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Split parses s as a single POSIX shell simple command and returns its
// words with quoting removed. Anything that would make the shell do more
// than pass literal arguments (expansions, substitutions, redirections,
// pipelines, several statements) is an error.
func Split(s string) ([]string, error) {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangPOSIX))
	file, err := parser.Parse(strings.NewReader(s), "")
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}
	switch len(file.Stmts) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("expected a single command, found %d statements", len(file.Stmts))
	}
	stmt := file.Stmts[0]
	if stmt.Negated || stmt.Background || stmt.Coprocess || len(stmt.Redirs) > 0 {
		return nil, fmt.Errorf("command uses shell operators")
	}
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok {
		return nil, fmt.Errorf("expected a simple command")
	}

	var out []string
	// A leading NAME=value word parses as an assignment; keep it as text.
	for _, as := range call.Assigns {
		if as.Append || as.Naked || as.Index != nil || as.Array != nil || as.Name == nil {
			return nil, fmt.Errorf("unsupported assignment in command")
		}
		val, err := wordText(as.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, as.Name.Value+"="+val)
	}
	for _, w := range call.Args {
		val, err := wordText(w)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

// wordText returns the literal value of w. Only literal, single-quoted and
// double-quoted literal parts are accepted.
func wordText(w *syntax.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(unescapeBare(p.Value))
		case *syntax.SglQuoted:
			if p.Dollar {
				return "", fmt.Errorf("$'...' quoting is not supported")
			}
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			if p.Dollar {
				return "", fmt.Errorf("$\"...\" quoting is not supported")
			}
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return "", fmt.Errorf("expansion inside double quotes is not allowed")
				}
				sb.WriteString(unescapeDouble(lit.Value))
			}
		default:
			return "", fmt.Errorf("shell expansion %T is not allowed", part)
		}
	}
	return sb.String(), nil
}

// unescapeBare removes backslash escapes from an unquoted literal.
func unescapeBare(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			if s[i] == '\n' {
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// unescapeDouble applies the double-quote rules: a backslash only escapes
// $ ` " \ and newline.
func unescapeDouble(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte("$`\"\\\n", s[i+1]) >= 0 {
			i++
			if s[i] == '\n' {
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
