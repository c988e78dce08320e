package validate

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

// TargetKind classifies one item of a target specification.
type TargetKind string

const (
	TargetIP       TargetKind = "ip"
	TargetCIDR     TargetKind = "cidr"
	TargetRange    TargetKind = "range"
	TargetHostname TargetKind = "hostname"
)

// Target is one item of a target list.
type Target struct {
	Kind  TargetKind
	Value string
}

var (
	octetRangeRe = regexp.MustCompile(`^(\*|\d{1,3}(?:-\d{1,3})?)(?:\.(\*|\d{1,3}(?:-\d{1,3})?)){3}$`)
	labelRe      = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)
)

// ParseTarget classifies a single target item.
func ParseTarget(s string) (Target, error) {
	t, err := parseTarget(s)
	if err != nil {
		return Target{}, err
	}
	return t, nil
}

func parseTarget(s string) (Target, *Error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return Target{}, malformed("target-cidr", s, "invalid CIDR block")
		}
		return Target{Kind: TargetCIDR, Value: p.String()}, nil
	}
	if a, err := netip.ParseAddr(s); err == nil {
		return Target{Kind: TargetIP, Value: a.String()}, nil
	}
	if octetRangeRe.MatchString(s) && strings.ContainsAny(s, "-*") {
		if err := checkOctetRange(s); err != nil {
			return Target{}, err
		}
		return Target{Kind: TargetRange, Value: s}, nil
	}
	if err := checkHostname("target-hostname", s); err != nil {
		return Target{}, err
	}
	return Target{Kind: TargetHostname, Value: strings.ToLower(s)}, nil
}

func checkOctetRange(s string) *Error {
	for _, part := range strings.Split(s, ".") {
		if part == "*" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		a, _ := strconv.Atoi(lo)
		b := a
		if isRange {
			b, _ = strconv.Atoi(hi)
		}
		if a > 255 || b > 255 {
			return outOfRange("target-range", s, "octet %s exceeds 255", part)
		}
		if a > b {
			return malformed("target-range", s, "octet range %s is reversed", part)
		}
	}
	return nil
}

// checkHostname applies RFC 1123 label rules. The last label may not be all
// digits, so malformed IPv4 like 300.1.1.1 is not taken for a hostname.
func checkHostname(rule, s string) *Error {
	name := strings.TrimSuffix(s, ".")
	if name == "" || len(name) > 253 {
		return malformed(rule, s, "hostname must be 1-253 characters")
	}
	labels := strings.Split(name, ".")
	for _, l := range labels {
		if !labelRe.MatchString(l) {
			return malformed(rule, s, "invalid hostname label %q", l)
		}
	}
	if allDigits(labels[len(labels)-1]) {
		return malformed(rule, s, "not a valid IP address or hostname")
	}
	return nil
}

func parseTargetList(raw string) ([]Target, *Error) {
	if strings.ContainsAny(raw, " \t") {
		return nil, malformed("target", raw, "separate targets with commas, not spaces")
	}
	var out []Target
	for _, item := range strings.Split(raw, ",") {
		if item == "" {
			return nil, malformed("target", raw, "empty item in target list")
		}
		t, err := parseTarget(item)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func canonicalTargets(ts []Target) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.Value
	}
	return strings.Join(parts, ",")
}

func registerTargets(r *Registry) {
	r.Register(field.Target, "", func(raw string) (Value, *Error) {
		ts, err := parseTargetList(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: canonicalTargets(ts), Parsed: ts}, nil
	})
	r.Register(field.Target, "single", func(raw string) (Value, *Error) {
		t, err := parseTarget(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: t.Value, Parsed: []Target{t}}, nil
	})
	// A single host: an address or a hostname, no ranges or blocks.
	r.Register(field.Target, "host", func(raw string) (Value, *Error) {
		t, err := parseTarget(raw)
		if err != nil {
			return Value{}, err
		}
		if t.Kind != TargetIP && t.Kind != TargetHostname {
			return Value{}, notAllowed("target-host", raw, "expected a single IP address or hostname")
		}
		return Value{Text: raw, Canonical: t.Value, Parsed: []Target{t}}, nil
	})
	r.Register(field.Target, "hostport", func(raw string) (Value, *Error) {
		host, port, err := splitHostPort(raw)
		if err != nil {
			return Value{}, err
		}
		out := []Target{}
		if host != "" {
			t, err := parseTarget(host)
			if err != nil {
				return Value{}, err
			}
			if t.Kind != TargetIP && t.Kind != TargetHostname {
				return Value{}, notAllowed("target-hostport", raw, "host must be an IP address or hostname")
			}
			out = append(out, t)
		}
		if _, err := parsePort(port); err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Parsed: out}, nil
	})
	// -iR style random target count
	r.Register(field.Target, "count", func(raw string) (Value, *Error) {
		n, err := intIn("target-count", raw, 0, 1<<30)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Parsed: n}, nil
	})
}

// splitHostPort accepts "host:port", "[v6]:port" or a bare port.
func splitHostPort(s string) (string, string, *Error) {
	if allDigits(s) {
		return "", s, nil
	}
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]:")
		if end < 0 {
			return "", "", malformed("target-hostport", s, "expected [address]:port")
		}
		return s[1:end], s[end+2:], nil
	}
	i := strings.LastIndex(s, ":")
	if i < 0 || strings.Count(s, ":") > 1 {
		return "", "", malformed("target-hostport", s, "expected host:port")
	}
	return s[:i], s[i+1:], nil
}
