package validate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

var decimalRe = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

// parseDecimal accepts plain non-negative decimals only. strconv alone would
// also take "NaN", "Inf", hex floats and exponents.
func parseDecimal(rule, s string) (float64, *Error) {
	if !decimalRe.MatchString(s) {
		return 0, malformed(rule, s, "must be a non-negative decimal number")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, malformed(rule, s, "must be a non-negative decimal number")
	}
	return f, nil
}

var timingNames = []string{"paranoid", "sneaky", "polite", "normal", "aggressive", "insane"}

func registerRate(r *Registry) {
	// packets (or requests) per second
	r.Register(field.Rate, "", func(raw string) (Value, *Error) {
		f, err := parseDecimal("rate", raw)
		if err != nil {
			return Value{}, err
		}
		if f < 0.0001 || f > 1e6 {
			return Value{}, outOfRange("rate", raw, "rate must be between 0.0001 and 1000000")
		}
		return Value{Text: raw, Parsed: f}, nil
	})
	r.Register(field.Rate, "timing", func(raw string) (Value, *Error) {
		if allDigits(raw) {
			n, err := intIn("timing-template", raw, 0, 5)
			if err != nil {
				return Value{}, err
			}
			return Value{Text: raw, Canonical: strconv.Itoa(n), Parsed: n}, nil
		}
		for i, n := range timingNames {
			if strings.EqualFold(n, raw) {
				return Value{Text: raw, Canonical: strconv.Itoa(i), Parsed: i}, nil
			}
		}
		return Value{}, outOfRange("timing-template", raw, "timing template must be 0-5 or one of %s", strings.Join(timingNames, ", "))
	})
	r.Register(field.Rate, "threads", func(raw string) (Value, *Error) {
		n, err := intIn("threads", raw, 1, 10000)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Parsed: n}, nil
	})
	r.Register(field.Rate, "retries", func(raw string) (Value, *Error) {
		n, err := intIn("retries", raw, 0, 100)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Parsed: n}, nil
	})
	r.Register(field.Rate, "hostgroup", func(raw string) (Value, *Error) {
		n, err := intIn("hostgroup", raw, 1, 1<<20)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Parsed: n}, nil
	})
}
