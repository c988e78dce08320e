package validate

import (
	"strconv"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

var (
	tcpFlagNames = []string{"SYN", "ACK", "FIN", "RST", "PSH", "URG", "ECE", "CWR"}
	arpTypeNames = []string{"ARP", "ARP-REPLY", "RARP", "RARP-REPLY"}
	ipProtoNames = map[string]int{"ICMP": 1, "IGMP": 2, "TCP": 6, "UDP": 17, "GRE": 47, "ESP": 50, "AH": 51, "ICMPV6": 58, "SCTP": 132}
	etherNames   = map[string]int{"IPV4": 0x0800, "IP": 0x0800, "ARP": 0x0806, "RARP": 0x8035, "IPV6": 0x86DD}
	icmpNames    = map[string]int{"ECHO": 8, "ECHO-REPLY": 0, "UNREACH": 3, "REDIRECT": 5, "TIME-EXCEEDED": 11, "TIMESTAMP": 13, "ADDRESS-MASK": 17}
)

// parseTCPFlags accepts a comma list of flag names, or a numeric mask 0-255.
func parseTCPFlags(raw string) ([]string, *Error) {
	if allDigits(raw) {
		if _, err := intIn("tcp-flags", raw, 0, 255); err != nil {
			return nil, err
		}
		return nil, nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, f := range splitList(raw, ",") {
		name, err := oneOf("tcp-flags", f, tcpFlagNames)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, notAllowed("tcp-flags", f, "flag %s listed twice", name)
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, malformed("tcp-flags", raw, "no TCP flags given")
	}
	return out, nil
}

// namedOrNumber accepts a key of names (case-insensitive) or an integer in [lo, hi].
func namedOrNumber(rule, raw string, names map[string]int, lo, hi int) (int, *Error) {
	if n, ok := names[strings.ToUpper(raw)]; ok {
		return n, nil
	}
	if strings.HasPrefix(strings.ToLower(raw), "0x") {
		n, err := strconv.ParseInt(raw[2:], 16, 32)
		if err != nil {
			return 0, malformed(rule, raw, "invalid hex number")
		}
		if int(n) < lo || int(n) > hi {
			return 0, outOfRange(rule, raw, "must be between %d and %d", lo, hi)
		}
		return int(n), nil
	}
	if !allDigits(raw) {
		return 0, notAllowed(rule, raw, "must be a number between %d and %d or a known name", lo, hi)
	}
	return intIn(rule, raw, lo, hi)
}

func registerProtocol(r *Registry) {
	tcpFlags := func(raw string) (Value, *Error) {
		flags, err := parseTCPFlags(raw)
		if err != nil {
			return Value{}, err
		}
		if flags == nil {
			return plain(raw), nil
		}
		return Value{Text: raw, Canonical: strings.Join(flags, ","), Parsed: flags}, nil
	}
	r.Register(field.Protocol, "", tcpFlags)
	r.Register(field.Protocol, "tcp-flags", tcpFlags)

	number := func(rule string, names map[string]int, lo, hi int) Func {
		return func(raw string) (Value, *Error) {
			n, err := namedOrNumber(rule, raw, names, lo, hi)
			if err != nil {
				return Value{}, err
			}
			return Value{Text: raw, Canonical: strconv.Itoa(n), Parsed: n}, nil
		}
	}
	r.Register(field.Protocol, "icmp-type", number("icmp-type", icmpNames, 0, 255))
	r.Register(field.Protocol, "icmp-code", number("icmp-code", nil, 0, 255))
	r.Register(field.Protocol, "ip-proto", number("ip-proto", ipProtoNames, 0, 255))
	r.Register(field.Protocol, "ether-type", number("ether-type", etherNames, 0, 0xFFFF))
	r.Register(field.Protocol, "ttl", number("ttl", nil, 0, 255))
	r.Register(field.Protocol, "tos", number("tos", nil, 0, 255))
	r.Register(field.Protocol, "mtu", func(raw string) (Value, *Error) {
		n, err := intIn("mtu", raw, 8, 65535)
		if err != nil {
			return Value{}, err
		}
		if n%8 != 0 {
			return Value{}, notAllowed("mtu", raw, "fragment size must be a multiple of 8")
		}
		return Value{Text: raw, Parsed: n}, nil
	})
	r.Register(field.Protocol, "arp-type", func(raw string) (Value, *Error) {
		if allDigits(raw) {
			n, err := intIn("arp-type", raw, 1, 4)
			if err != nil {
				return Value{}, err
			}
			return Value{Text: raw, Canonical: arpTypeNames[n-1], Parsed: n}, nil
		}
		name, err := oneOf("arp-type", raw, arpTypeNames)
		if err != nil {
			return Value{}, err
		}
		for i, n := range arpTypeNames {
			if n == name {
				return Value{Text: raw, Canonical: name, Parsed: i + 1}, nil
			}
		}
		return plain(raw), nil
	})
	r.Register(field.Protocol, "scan-protocol", func(raw string) (Value, *Error) {
		name, err := oneOf("scan-protocol", raw, []string{"tcp", "udp", "sctp", "icmp", "arp", "ip"})
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: name}, nil
	})
}
