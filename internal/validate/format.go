package validate

import (
	"regexp"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

var (
	outputFormats = []string{
		"txt", "text", "json", "ejson", "xml", "yaml", "yml", "csv", "ecsv",
		"html", "md", "grepable", "normal", "all",
	}
	encoderNames = []string{
		"urlencode", "doubleurlencode", "b64encode", "b64decode", "htmlencode",
		"htmldecode", "md5", "sha1", "sha256", "hexencode", "hexdecode",
	}
	filenameRe = regexp.MustCompile(`^[^/\\]*[A-Za-z0-9_.-]$`)
)

func registerFormat(r *Registry) {
	output := func(raw string) (Value, *Error) {
		f, err := oneOf("output-format", raw, outputFormats)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: f}, nil
	}
	r.Register(field.Format, "", output)
	r.Register(field.Format, "output", output)
	r.Register(field.Format, "list", func(raw string) (Value, *Error) {
		var out []string
		for _, item := range splitList(raw, ",") {
			f, err := oneOf("output-format", item, outputFormats)
			if err != nil {
				return Value{}, err
			}
			out = append(out, f)
		}
		if len(out) == 0 {
			return Value{}, malformed("output-format", raw, "no formats given")
		}
		return Value{Text: raw, Canonical: strings.Join(out, ","), Parsed: out}, nil
	})
	// a base name only; report directories are chosen by the runner
	r.Register(field.Format, "filename", func(raw string) (Value, *Error) {
		if raw == "." || raw == ".." || !filenameRe.MatchString(raw) {
			return Value{}, malformed("filename", raw, "must be a file name without directories")
		}
		return plain(raw), nil
	})
	// ffuf-style encoders: "FUZZ:urlencode b64encode" or a comma list
	r.Register(field.Format, "encoders", func(raw string) (Value, *Error) {
		spec := raw
		if kw, rest, ok := strings.Cut(raw, ":"); ok {
			if !keywordRe.MatchString(kw) {
				return Value{}, malformed("encoders", kw, "invalid keyword")
			}
			spec = rest
		}
		names := strings.FieldsFunc(spec, func(c rune) bool { return c == ',' || c == ' ' })
		if len(names) == 0 {
			return Value{}, malformed("encoders", raw, "no encoders given")
		}
		for _, n := range names {
			if _, err := oneOf("encoders", n, encoderNames); err != nil {
				return Value{}, err
			}
		}
		return Value{Text: raw, Parsed: names}, nil
	})
	r.Register(field.Format, "verbosity", func(raw string) (Value, *Error) {
		n, err := intIn("verbosity", raw, 0, 6)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Parsed: n}, nil
	})
}
