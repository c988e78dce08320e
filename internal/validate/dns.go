package validate

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

var (
	dnsRecordTypes = []string{"A", "AAAA", "CNAME", "MX", "NS", "TXT", "SOA", "SRV", "PTR", "CAA", "NAPTR", "ANY"}
	asnRe          = regexp.MustCompile(`^(?i)(?:AS)?(\d{1,10})$`)
)

func parseRecordType(s string) (string, *Error) {
	return oneOf("dns-record-type", s, dnsRecordTypes)
}

// parseResolver accepts an address with an optional port ("8.8.8.8",
// "1.1.1.1:53", "[2001:db8::1]:53").
func parseResolver(s string) *Error {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		if ap.Port() == 0 {
			return outOfRange("dns-server", s, "port must be between 1 and 65535")
		}
		return nil
	}
	if _, err := netip.ParseAddr(s); err == nil {
		return nil
	}
	return malformed("dns-server", s, "expected an IP address with optional port")
}

func registerDNS(r *Registry) {
	domain := func(raw string) (Value, *Error) {
		if err := checkHostname("dns-domain", raw); err != nil {
			return Value{}, err
		}
		if !strings.Contains(strings.TrimSuffix(raw, "."), ".") {
			return Value{}, malformed("dns-domain", raw, "domain must contain at least one dot")
		}
		return Value{Text: raw, Canonical: strings.ToLower(strings.TrimSuffix(raw, "."))}, nil
	}
	r.Register(field.DNSParam, "", domain)
	r.Register(field.DNSParam, "domain", domain)
	r.Register(field.DNSParam, "record-type", func(raw string) (Value, *Error) {
		t, err := parseRecordType(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: t}, nil
	})
	r.Register(field.DNSParam, "record-types", func(raw string) (Value, *Error) {
		var types []string
		for _, item := range splitList(raw, ",") {
			t, err := parseRecordType(item)
			if err != nil {
				return Value{}, err
			}
			types = append(types, t)
		}
		if len(types) == 0 {
			return Value{}, malformed("dns-record-type", raw, "no record types given")
		}
		return Value{Text: raw, Canonical: strings.Join(types, ","), Parsed: types}, nil
	})
	r.Register(field.DNSParam, "servers", func(raw string) (Value, *Error) {
		servers := splitList(raw, ",")
		if len(servers) == 0 {
			return Value{}, malformed("dns-server", raw, "no servers given")
		}
		for _, s := range servers {
			if err := parseResolver(s); err != nil {
				return Value{}, err
			}
		}
		return Value{Text: raw, Parsed: servers}, nil
	})
	r.Register(field.DNSParam, "asn", func(raw string) (Value, *Error) {
		m := asnRe.FindStringSubmatch(raw)
		if m == nil {
			return Value{}, malformed("asn", raw, "expected AS<number>")
		}
		n, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil || n > 4294967295 {
			return Value{}, outOfRange("asn", raw, "AS number must fit in 32 bits")
		}
		return Value{Text: raw, Canonical: "AS" + m[1], Parsed: uint32(n)}, nil
	})
}
