package validate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

var (
	keywordRe    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	scriptNameRe = regexp.MustCompile(`^[A-Za-z0-9_*.-]+$`)
	intRe        = regexp.MustCompile(`^[+-]?\d+$`)
	numberRe     = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
)

var (
	switchOn  = []string{"true", "yes", "y", "1", "on"}
	switchOff = []string{"false", "no", "n", "0", "off"}
)

// ParseSwitch interprets the usual spellings of a boolean.
func ParseSwitch(s string) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range switchOn {
		if s == v {
			return true, true
		}
	}
	for _, v := range switchOff {
		if s == v {
			return false, true
		}
	}
	return false, false
}

func registerText(r *Registry) {
	r.Register(field.FreeText, "", func(raw string) (Value, *Error) {
		return plain(raw), nil
	})
	r.Register(field.FreeText, "path", func(raw string) (Value, *Error) {
		return plain(raw), nil
	})
	r.Register(field.FreeText, "integer", func(raw string) (Value, *Error) {
		if !intRe.MatchString(raw) {
			return Value{}, malformed("integer", raw, "must be an integer")
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, outOfRange("integer", raw, "integer is too large")
		}
		return Value{Text: raw, Canonical: strconv.FormatInt(n, 10), Parsed: n}, nil
	})
	r.Register(field.FreeText, "number", func(raw string) (Value, *Error) {
		if !numberRe.MatchString(raw) {
			return Value{}, malformed("number", raw, "must be a number")
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, outOfRange("number", raw, "number is out of range")
		}
		return Value{Text: raw, Parsed: f}, nil
	})
	r.Register(field.FreeText, "keyword", func(raw string) (Value, *Error) {
		if !keywordRe.MatchString(raw) {
			return Value{}, malformed("keyword", raw, "must start with a letter and contain only letters, digits and '_'")
		}
		return plain(raw), nil
	})
	// NSE script selectors: names, categories, globs, comma lists
	r.Register(field.FreeText, "scripts", func(raw string) (Value, *Error) {
		items := splitList(raw, ",")
		if len(items) == 0 {
			return Value{}, malformed("scripts", raw, "no scripts given")
		}
		for _, it := range items {
			it = strings.TrimPrefix(it, "+")
			for _, word := range strings.Fields(strings.NewReplacer("(", " ", ")", " ").Replace(it)) {
				if word == "and" || word == "or" || word == "not" {
					continue
				}
				if !scriptNameRe.MatchString(word) {
					return Value{}, malformed("scripts", word, "invalid script name or category")
				}
			}
		}
		return Value{Text: raw, Parsed: items}, nil
	})

	r.Register(field.Switch, "", func(raw string) (Value, *Error) {
		b, ok := ParseSwitch(raw)
		if !ok {
			return Value{}, notAllowed("switch", raw, "must be true or false")
		}
		return Value{Text: strconv.FormatBool(b), Canonical: strconv.FormatBool(b), Parsed: b}, nil
	})
}
