package validate

import (
	"encoding/hex"
	"net"
	"regexp"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

var (
	macColonRe  = regexp.MustCompile(`^[0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5}$`)
	macHyphenRe = regexp.MustCompile(`^[0-9A-Fa-f]{2}(?:-[0-9A-Fa-f]{2}){5}$`)
	macPlainRe  = regexp.MustCompile(`^[0-9A-Fa-f]{12}$`)
	ouiRe       = regexp.MustCompile(`^[0-9A-Fa-f]{2}(?:[:-]?[0-9A-Fa-f]{2}){2}$`)
	vendorRe    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 ._-]{0,63}$`)
)

// ParseMAC accepts aa:bb:cc:dd:ee:ff, aa-bb-cc-dd-ee-ff and aabbccddeeff.
func ParseMAC(s string) (net.HardwareAddr, error) {
	hw, err := parseMAC(s)
	if err != nil {
		return nil, err
	}
	return hw, nil
}

func parseMAC(s string) (net.HardwareAddr, *Error) {
	var digits string
	switch {
	case macColonRe.MatchString(s):
		digits = strings.ReplaceAll(s, ":", "")
	case macHyphenRe.MatchString(s):
		digits = strings.ReplaceAll(s, "-", "")
	case macPlainRe.MatchString(s):
		digits = s
	default:
		return nil, malformed("mac", s, "expected 12 hex digits, optionally separated by ':' or '-'")
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return nil, malformed("mac", s, "invalid hex digits")
	}
	return net.HardwareAddr(b), nil
}

// CanonicalMAC returns the lowercase colon-separated form of s.
func CanonicalMAC(s string) (string, error) {
	hw, err := ParseMAC(s)
	if err != nil {
		return "", err
	}
	return hw.String(), nil
}

func registerMAC(r *Registry) {
	r.Register(field.MAC, "", func(raw string) (Value, *Error) {
		hw, err := parseMAC(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: hw.String(), Parsed: hw}, nil
	})
	// vendor prefix (OUI)
	r.Register(field.MAC, "prefix", func(raw string) (Value, *Error) {
		if !ouiRe.MatchString(raw) {
			return Value{}, malformed("mac-prefix", raw, "expected 6 hex digits")
		}
		digits := strings.NewReplacer(":", "", "-", "").Replace(raw)
		return Value{Text: raw, Canonical: strings.ToLower(digits)}, nil
	})
	// nmap --spoof-mac: "0" for random, a full address, a prefix or a vendor name
	r.Register(field.MAC, "spoof", func(raw string) (Value, *Error) {
		if raw == "0" {
			return Value{Text: raw, Canonical: "0"}, nil
		}
		if hw, err := parseMAC(raw); err == nil {
			return Value{Text: raw, Canonical: hw.String(), Parsed: hw}, nil
		}
		if ouiRe.MatchString(raw) {
			return Value{Text: raw, Canonical: strings.ToLower(raw)}, nil
		}
		if vendorRe.MatchString(raw) {
			return plain(raw), nil
		}
		return Value{}, malformed("mac-spoof", raw, "expected 0, a MAC address, a prefix or a vendor name")
	})
}
