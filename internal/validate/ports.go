package validate

import (
	"strconv"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

// PortRange is an inclusive port interval. Lo == Hi for a single port.
type PortRange struct {
	Lo, Hi int
}

func (r PortRange) String() string {
	if r.Lo == r.Hi {
		return strconv.Itoa(r.Lo)
	}
	return strconv.Itoa(r.Lo) + "-" + strconv.Itoa(r.Hi)
}

// PortGroup is a run of ranges sharing a protocol prefix. Proto is 0 when
// the group has no prefix, otherwise one of 'T', 'U', 'S'.
type PortGroup struct {
	Proto  byte
	Ranges []PortRange
}

// PortSpec is a parsed nmap-style port specification such as
// "U:53,111,T:21-25,80".
type PortSpec struct {
	Groups []PortGroup
}

// String renders the canonical form: uppercase prefixes, no whitespace,
// ranges as "a-b". Parsing the result yields an equal PortSpec.
func (p PortSpec) String() string {
	var b strings.Builder
	for gi, g := range p.Groups {
		if gi > 0 {
			b.WriteByte(',')
		}
		if g.Proto != 0 {
			b.WriteByte(g.Proto)
			b.WriteByte(':')
		}
		for ri, r := range g.Ranges {
			if ri > 0 {
				b.WriteByte(',')
			}
			b.WriteString(r.String())
		}
	}
	return b.String()
}

// Count returns the number of distinct port numbers named, ignoring protocol.
func (p PortSpec) Count() int {
	seen := make(map[int]bool)
	for _, g := range p.Groups {
		for _, r := range g.Ranges {
			for n := r.Lo; n <= r.Hi; n++ {
				seen[n] = true
			}
		}
	}
	return len(seen)
}

// ParsePortSpec parses a port specification. With allowProto false,
// protocol prefixes are rejected.
func ParsePortSpec(s string, allowProto bool) (PortSpec, error) {
	ps, err := parsePortSpec(s, allowProto)
	if err != nil {
		return PortSpec{}, err
	}
	return ps, nil
}

func parsePortSpec(s string, allowProto bool) (PortSpec, *Error) {
	if strings.TrimSpace(s) == "" {
		return PortSpec{}, malformed("port-spec", s, "empty port specification")
	}
	var spec PortSpec
	cur := -1 // index of the group being appended to
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return PortSpec{}, malformed("port-spec", s, "empty item in port list")
		}
		if len(tok) >= 2 && tok[1] == ':' {
			proto := upper(tok[0])
			if proto != 'T' && proto != 'U' && proto != 'S' {
				return PortSpec{}, malformed("port-protocol", tok, "protocol prefix must be T:, U: or S:")
			}
			if !allowProto {
				return PortSpec{}, notAllowed("port-protocol", tok, "protocol prefixes are not allowed here")
			}
			tok = strings.TrimSpace(tok[2:])
			if tok == "" {
				return PortSpec{}, malformed("port-protocol", s, "protocol prefix %c: has no ports", proto)
			}
			spec.Groups = append(spec.Groups, PortGroup{Proto: proto})
			cur = len(spec.Groups) - 1
		} else if cur < 0 {
			spec.Groups = append(spec.Groups, PortGroup{})
			cur = 0
		}
		r, err := parsePortRange(tok)
		if err != nil {
			return PortSpec{}, err
		}
		spec.Groups[cur].Ranges = append(spec.Groups[cur].Ranges, r)
	}
	return spec, nil
}

func parsePortRange(tok string) (PortRange, *Error) {
	lo, hi, isRange := strings.Cut(tok, "-")
	a, err := parsePort(lo)
	if err != nil {
		return PortRange{}, err
	}
	if !isRange {
		return PortRange{Lo: a, Hi: a}, nil
	}
	b, err := parsePort(hi)
	if err != nil {
		return PortRange{}, err
	}
	if a > b {
		return PortRange{}, malformed("port-range", tok, "range start is greater than end")
	}
	return PortRange{Lo: a, Hi: b}, nil
}

func parsePort(s string) (int, *Error) {
	if s == "" || !allDigits(s) {
		return 0, malformed("port", s, "port must be a number")
	}
	if len(s) > 5 {
		return 0, outOfRange("port", s, "port must be between 1 and 65535")
	}
	n, _ := strconv.Atoi(s)
	if n < 1 || n > 65535 {
		return 0, outOfRange("port", s, "port must be between 1 and 65535")
	}
	return n, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func registerPorts(r *Registry) {
	spec := func(allowProto bool) Func {
		return func(raw string) (Value, *Error) {
			ps, err := parsePortSpec(raw, allowProto)
			if err != nil {
				return Value{}, err
			}
			return Value{Text: raw, Canonical: ps.String(), Parsed: ps}, nil
		}
	}
	r.Register(field.Port, "", spec(true))
	r.Register(field.Port, "list", spec(false))
	r.Register(field.Port, "single", func(raw string) (Value, *Error) {
		n, err := parsePort(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: strconv.Itoa(n), Parsed: n}, nil
	})
	r.Register(field.Port, "count", func(raw string) (Value, *Error) {
		n, err := intIn("top-ports", raw, 1, 65535)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Parsed: n}, nil
	})
	r.Register(field.Port, "ratio", func(raw string) (Value, *Error) {
		f, err := parseDecimal("port-ratio", raw)
		if err != nil {
			return Value{}, err
		}
		if f < 0 || f > 1 {
			return Value{}, outOfRange("port-ratio", raw, "must be between 0.0 and 1.0")
		}
		return Value{Text: raw, Parsed: f}, nil
	})
}
