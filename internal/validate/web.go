package validate

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

var (
	httpMethods  = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS", "TRACE", "CONNECT"}
	httpVersions = []string{"1.0", "1.1", "2", "2.0", "3"}
	tlsVersions  = []string{"ssl2", "ssl3", "tls1", "tls1.0", "tls1.1", "tls1.2", "tls1.3"}
	urlSchemes   = []string{"http", "https", "ftp", "ws", "wss"}
	proxySchemes = []string{"http", "https", "socks4", "socks4a", "socks5", "socks5h"}

	headerNameRe = regexp.MustCompile("^[!#$%&'*+.^_`|~0-9A-Za-z-]+$")
	cipherRe     = regexp.MustCompile(`^[!+\-]?[A-Za-z0-9_.=@-]+$`)
	alpnRe       = regexp.MustCompile(`^[A-Za-z0-9._/-]{1,255}$`)
	cookieNameRe = regexp.MustCompile("^[!#$%&'*+.^_`|~0-9A-Za-z-]+$")
)

// parseURL requires an absolute URL with a host. When fuzz is true the
// FUZZ keyword used by web fuzzers is accepted anywhere in the URL.
func parseURL(rule, raw string, schemes []string, fuzz bool) (*url.URL, *Error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, malformed(rule, raw, "invalid URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, malformed(rule, raw, "URL must include a scheme and host")
	}
	if _, err := oneOf(rule, u.Scheme, schemes); err != nil {
		return nil, notAllowed(rule, u.Scheme, "scheme must be one of %s", strings.Join(schemes, ", "))
	}
	host := u.Hostname()
	if !(fuzz && strings.Contains(host, "FUZZ")) {
		if _, err := parseTarget(host); err != nil {
			return nil, malformed(rule, raw, "URL host %q is not a valid address or hostname", host)
		}
	}
	if p := u.Port(); p != "" {
		if _, err := parsePort(p); err != nil {
			return nil, outOfRange(rule, raw, "URL port must be between 1 and 65535")
		}
	}
	return u, nil
}

func parseProxy(raw string) (*url.URL, *Error) {
	u, err := parseURL("proxy", raw, proxySchemes, false)
	if err != nil {
		return nil, err
	}
	if u.Port() == "" {
		return nil, malformed("proxy", raw, "proxy URL must include a port")
	}
	return u, nil
}

// parseStatusCodes accepts "200", "200-299" or comma lists of both, or "all".
func parseStatusCodes(raw string) *Error {
	if strings.EqualFold(raw, "all") {
		return nil
	}
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		lo, hi, isRange := strings.Cut(item, "-")
		a, err := intIn("http-status", lo, 100, 599)
		if err != nil {
			return err
		}
		if isRange {
			b, err := intIn("http-status", hi, 100, 599)
			if err != nil {
				return err
			}
			if a > b {
				return malformed("http-status", item, "status range is reversed")
			}
		}
	}
	return nil
}

func parseHeader(raw string) *Error {
	name, value, ok := strings.Cut(raw, ":")
	if !ok {
		return malformed("http-header", raw, "expected 'Name: value'")
	}
	name = strings.TrimSpace(name)
	if !headerNameRe.MatchString(name) {
		return malformed("http-header", name, "invalid header name")
	}
	if strings.ContainsAny(value, "\r\n") {
		return notAllowed("http-header", raw, "header value may not contain line breaks")
	}
	return nil
}

func parseCookies(raw string) *Error {
	for _, pair := range splitList(raw, ";") {
		name, _, ok := strings.Cut(pair, "=")
		if !ok || !cookieNameRe.MatchString(strings.TrimSpace(name)) {
			return malformed("http-cookie", pair, "expected name=value pairs separated by ';'")
		}
	}
	return nil
}

func registerWeb(r *Registry) {
	urlFunc := func(fuzz bool) Func {
		return func(raw string) (Value, *Error) {
			u, err := parseURL("url", raw, urlSchemes, fuzz)
			if err != nil {
				return Value{}, err
			}
			return Value{Text: raw, Canonical: u.String(), Parsed: u}, nil
		}
	}
	r.Register(field.URL, "", urlFunc(false))
	r.Register(field.URL, "fuzz", urlFunc(true))
	r.Register(field.URL, "list", func(raw string) (Value, *Error) {
		var us []*url.URL
		for _, item := range splitList(raw, ",") {
			u, err := parseURL("url", item, urlSchemes, false)
			if err != nil {
				return Value{}, err
			}
			us = append(us, u)
		}
		if len(us) == 0 {
			return Value{}, malformed("url", raw, "no URLs given")
		}
		return Value{Text: raw, Parsed: us}, nil
	})

	r.Register(field.Proxy, "", func(raw string) (Value, *Error) {
		u, err := parseProxy(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: u.String(), Parsed: u}, nil
	})
	r.Register(field.Proxy, "list", func(raw string) (Value, *Error) {
		var us []*url.URL
		for _, item := range splitList(raw, ",") {
			u, err := parseProxy(item)
			if err != nil {
				return Value{}, err
			}
			us = append(us, u)
		}
		if len(us) == 0 {
			return Value{}, malformed("proxy", raw, "no proxies given")
		}
		return Value{Text: raw, Parsed: us}, nil
	})

	method := func(raw string) (Value, *Error) {
		m, err := oneOf("http-method", raw, httpMethods)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: m}, nil
	}
	r.Register(field.HTTPParam, "", method)
	r.Register(field.HTTPParam, "method", method)
	r.Register(field.HTTPParam, "header", func(raw string) (Value, *Error) {
		if err := parseHeader(raw); err != nil {
			return Value{}, err
		}
		return plain(raw), nil
	})
	r.Register(field.HTTPParam, "cookie", func(raw string) (Value, *Error) {
		if err := parseCookies(raw); err != nil {
			return Value{}, err
		}
		return plain(raw), nil
	})
	r.Register(field.HTTPParam, "status", func(raw string) (Value, *Error) {
		if err := parseStatusCodes(raw); err != nil {
			return Value{}, err
		}
		return plain(raw), nil
	})
	r.Register(field.HTTPParam, "version", func(raw string) (Value, *Error) {
		v, err := oneOf("http-version", strings.TrimPrefix(strings.ToUpper(raw), "HTTP/"), httpVersions)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: v}, nil
	})
	r.Register(field.HTTPParam, "user-agent", func(raw string) (Value, *Error) {
		if len(raw) > 1024 {
			return Value{}, outOfRange("user-agent", "", "user agent longer than 1024 characters")
		}
		return plain(raw), nil
	})
	r.Register(field.HTTPParam, "data", func(raw string) (Value, *Error) {
		return plain(raw), nil
	})

	tlsVersion := func(raw string) (Value, *Error) {
		v, err := oneOf("tls-version", raw, tlsVersions)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: v}, nil
	}
	r.Register(field.SSLParam, "", tlsVersion)
	r.Register(field.SSLParam, "tls-version", tlsVersion)
	r.Register(field.SSLParam, "ciphers", func(raw string) (Value, *Error) {
		parts := strings.FieldsFunc(raw, func(c rune) bool { return c == ':' || c == ',' })
		if len(parts) == 0 {
			return Value{}, malformed("tls-ciphers", raw, "no ciphers given")
		}
		for _, p := range parts {
			if !cipherRe.MatchString(p) {
				return Value{}, malformed("tls-ciphers", p, "invalid cipher name")
			}
		}
		return Value{Text: raw, Parsed: parts}, nil
	})
	r.Register(field.SSLParam, "sni", func(raw string) (Value, *Error) {
		if err := checkHostname("tls-sni", raw); err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: strings.ToLower(raw)}, nil
	})
	r.Register(field.SSLParam, "alpn", func(raw string) (Value, *Error) {
		protos := splitList(raw, ",")
		if len(protos) == 0 {
			return Value{}, malformed("tls-alpn", raw, "no protocols given")
		}
		for _, p := range protos {
			if !alpnRe.MatchString(p) {
				return Value{}, malformed("tls-alpn", p, "invalid ALPN protocol id")
			}
		}
		return Value{Text: raw, Parsed: protos}, nil
	})
	// certificate or key path; existence is checked by the tool itself
	r.Register(field.SSLParam, "cert", func(raw string) (Value, *Error) {
		return plain(raw), nil
	})
	r.Register(field.SSLParam, "port", func(raw string) (Value, *Error) {
		n, err := parsePort(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: strconv.Itoa(n), Parsed: n}, nil
	})
}
