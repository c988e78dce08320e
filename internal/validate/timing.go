package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

var timeRe = regexp.MustCompile(`^(?i)(\d+(?:\.\d+)?)(ms|s|m|h)?$`)

// TimeSpec is a parsed time value or range. For a single value Low == High
// and Range is false.
type TimeSpec struct {
	Low, High time.Duration
	Range     bool
}

func (t TimeSpec) String() string {
	if !t.Range {
		return t.Low.String()
	}
	return t.Low.String() + "-" + t.High.String()
}

// parseDuration parses "<number><unit?>", where a missing unit means seconds.
func parseDuration(rule, s string) (time.Duration, *Error) {
	m := timeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, malformed(rule, s, "must be a number with optional unit ms, s, m or h")
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, malformed(rule, s, "invalid number")
	}
	unit := time.Second
	switch strings.ToLower(m[2]) {
	case "ms":
		unit = time.Millisecond
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	}
	const maxHours = 24 * 365
	if n*float64(unit) > float64(maxHours*time.Hour) {
		return 0, outOfRange(rule, s, "time value is too large")
	}
	return time.Duration(n * float64(unit)), nil
}

// ParseTimeSpec accepts a single time value or "low-high" with low <= high.
func ParseTimeSpec(s string) (TimeSpec, error) {
	ts, err := parseTimeSpec(s, true)
	if err != nil {
		return TimeSpec{}, err
	}
	return ts, nil
}

func parseTimeSpec(s string, allowRange bool) (TimeSpec, *Error) {
	lo, hi, isRange := strings.Cut(s, "-")
	if !isRange {
		d, err := parseDuration("time", s)
		if err != nil {
			return TimeSpec{}, err
		}
		return TimeSpec{Low: d, High: d}, nil
	}
	if !allowRange {
		return TimeSpec{}, notAllowed("time", s, "a range is not allowed here")
	}
	a, err := parseDuration("time-range", lo)
	if err != nil {
		return TimeSpec{}, err
	}
	b, err := parseDuration("time-range", hi)
	if err != nil {
		return TimeSpec{}, err
	}
	if a > b {
		return TimeSpec{}, outOfRange("time-range", s, "range low must not exceed high")
	}
	return TimeSpec{Low: a, High: b, Range: true}, nil
}

func registerTiming(r *Registry) {
	r.Register(field.Time, "", func(raw string) (Value, *Error) {
		ts, err := parseTimeSpec(raw, true)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: ts.String(), Parsed: ts}, nil
	})
	r.Register(field.Time, "delay", func(raw string) (Value, *Error) {
		ts, err := parseTimeSpec(raw, false)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: ts.String(), Parsed: ts}, nil
	})
	r.Register(field.Time, "range", func(raw string) (Value, *Error) {
		ts, err := parseTimeSpec(raw, true)
		if err != nil {
			return Value{}, err
		}
		if !ts.Range {
			return Value{}, malformed("time-range", raw, "expected low-high")
		}
		return Value{Text: raw, Canonical: ts.String(), Parsed: ts}, nil
	})
	r.Register(field.Time, "timeout", func(raw string) (Value, *Error) {
		ts, err := parseTimeSpec(raw, false)
		if err != nil {
			return Value{}, err
		}
		if ts.Low <= 0 {
			return Value{}, outOfRange("timeout", raw, "timeout must be greater than zero")
		}
		return Value{Text: raw, Canonical: ts.String(), Parsed: ts}, nil
	})
}
