// Package validate checks raw field values against the grammar selected by
// a field's (Type, Kind) pair and any constraints declared on its spec.
//
// Validators are pure: they never touch the network or the file system, and
// the same input always yields the same result.
package validate

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/logger"
)

var log = logger.New("validate")

// Value is an accepted field value.
//
// Text is what gets emitted into a command: the trimmed user input, kept
// verbatim so tools see exactly what was typed. Canonical is a normalized
// rendering (lowercase colon MAC, merged-prefix port spec) used for
// comparisons, and Parsed holds the structured result of the grammar.
type Value struct {
	Text      string `json:"text"`
	Canonical string `json:"canonical,omitempty"`
	Parsed    any    `json:"-"`
}

// Equal compares by canonical form.
func (v Value) Equal(o Value) bool {
	return v.key() == o.key()
}

func (v Value) key() string {
	if v.Canonical != "" {
		return v.Canonical
	}
	return v.Text
}

// Func validates one already-sanitized, trimmed, non-empty value.
type Func func(raw string) (Value, *Error)

type key struct {
	t    field.Type
	kind string
}

// Registry maps (Type, Kind) to a grammar. The zero Kind is the default
// grammar for a type.
type Registry struct {
	mu    sync.RWMutex
	funcs map[key]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[key]Func)}
}

// Register installs fn for (t, kind), replacing any previous entry.
func (r *Registry) Register(t field.Type, kind string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[key{t, kind}] = fn
}

// Lookup returns the grammar for (t, kind).
func (r *Registry) Lookup(t field.Type, kind string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[key{t, kind}]
	return fn, ok
}

// Supports reports whether (t, kind) is known. Choice fields are handled
// structurally and accept only the empty kind.
func (r *Registry) Supports(t field.Type, kind string) bool {
	if t == field.Choice {
		return kind == ""
	}
	_, ok := r.Lookup(t, kind)
	return ok
}

// Kinds lists the kinds registered for t, sorted, with "" first if present.
func (r *Registry) Kinds(t field.Type) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for k := range r.funcs {
		if k.t == t {
			out = append(out, k.kind)
		}
	}
	sort.Strings(out)
	return out
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the shared registry holding every built-in grammar.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		registerPorts(defaultReg)
		registerTiming(defaultReg)
		registerTargets(defaultReg)
		registerMAC(defaultReg)
		registerProtocol(defaultReg)
		registerWeb(defaultReg)
		registerSQL(defaultReg)
		registerDNS(defaultReg)
		registerRate(defaultReg)
		registerFormat(defaultReg)
		registerText(defaultReg)
	})
	return defaultReg
}

// Validate checks raw against spec using the default registry.
func Validate(spec field.Spec, raw string) (Value, error) {
	return Default().Validate(spec, raw)
}

// Validate checks raw against spec's grammar and constraints. Surrounding
// whitespace is trimmed; an empty value is rejected with Reason Required
// (callers decide whether absence is acceptable before calling Validate).
func (r *Registry) Validate(spec field.Spec, raw string) (Value, error) {
	v, verr := r.validate(spec, raw)
	if verr != nil {
		verr.Field = spec.Name
		verr.Type = spec.Type
		verr.Kind = spec.Kind
		log.Trace("reject %s=%q: %s", spec.Name, raw, verr.Message)
		return Value{}, verr
	}
	return v, nil
}

func (r *Registry) validate(spec field.Spec, raw string) (Value, *Error) {
	clean, verr := sanitize(raw)
	if verr != nil {
		return Value{}, verr
	}
	if clean == "" {
		return Value{}, fail("required", Required, "", "value is empty")
	}

	var (
		v   Value
		err *Error
	)
	if spec.Type == field.Choice {
		v, err = validateChoice(spec, clean)
	} else {
		fn, ok := r.Lookup(spec.Type, spec.Kind)
		if !ok {
			return Value{}, fail("type", Undeclared, spec.TypeKey(), "no validator for %s", spec.TypeKey())
		}
		v, err = fn(clean)
	}
	if err != nil {
		return Value{}, err
	}
	if err := checkConstraints(spec, v); err != nil {
		return Value{}, err
	}
	return v, nil
}

func checkConstraints(spec field.Spec, v Value) *Error {
	if len(spec.Enum) > 0 {
		found := false
		for _, e := range spec.Enum {
			if strings.EqualFold(e, v.Text) {
				found = true
				break
			}
		}
		if !found {
			return notAllowed("enum", v.Text, "must be one of %s", strings.Join(spec.Enum, ", "))
		}
	}
	if spec.Min != nil || spec.Max != nil {
		n, err := strconv.ParseFloat(v.Text, 64)
		if err != nil || math.IsNaN(n) {
			return notAllowed("numeric", v.Text, "must be a number")
		}
		if spec.Min != nil && n < *spec.Min {
			return outOfRange("min", v.Text, "must be >= %s", formatFloat(*spec.Min))
		}
		if spec.Max != nil && n > *spec.Max {
			return outOfRange("max", v.Text, "must be <= %s", formatFloat(*spec.Max))
		}
	}
	if spec.Pattern != "" {
		re, err := compilePattern(spec.Pattern)
		if err != nil {
			return notAllowed("pattern", spec.Pattern, "invalid pattern: %v", err)
		}
		if !re.MatchString(v.Text) {
			return notAllowed("pattern", v.Text, "does not match %s", spec.Pattern)
		}
	}
	return nil
}

var patternCache sync.Map // string -> *regexp.Regexp

// compilePattern anchors p so it must match the whole value.
func compilePattern(p string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(p); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(`^(?:` + p + `)$`)
	if err != nil {
		return nil, err
	}
	patternCache.Store(p, re)
	return re, nil
}

// CheckPattern reports whether p compiles as a field pattern.
func CheckPattern(p string) error {
	_, err := compilePattern(p)
	return err
}

func validateChoice(spec field.Spec, raw string) (Value, *Error) {
	parts := splitList(raw, ",")
	if len(parts) == 0 {
		return Value{}, fail("required", Required, raw, "no choice selected")
	}
	if len(parts) > 1 && !spec.Multi {
		return Value{}, notAllowed("choice", raw, "only one choice may be selected")
	}
	ids := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		c, ok := spec.FindChoice(p)
		if !ok {
			return Value{}, notAllowed("choice", p, "unknown choice; valid: %s", choiceIDs(spec))
		}
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		ids = append(ids, c.ID)
	}
	return Value{Text: raw, Canonical: strings.Join(ids, ","), Parsed: ids}, nil
}

func choiceIDs(spec field.Spec) string {
	ids := make([]string, len(spec.Choices))
	for i, c := range spec.Choices {
		ids[i] = c.ID
	}
	return strings.Join(ids, ", ")
}

// splitList splits on sep, trims each item and drops empty items.
func splitList(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func plain(raw string) Value {
	return Value{Text: raw}
}

// intIn parses s as a base-10 integer within [lo, hi].
func intIn(rule, s string, lo, hi int) (int, *Error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, malformed(rule, s, "must be an integer")
	}
	if n < lo || n > hi {
		return 0, outOfRange(rule, s, "must be between %d and %d", lo, hi)
	}
	return n, nil
}

// oneOf matches s case-insensitively against allowed and returns the
// allowed spelling.
func oneOf(rule, s string, allowed []string) (string, *Error) {
	for _, a := range allowed {
		if strings.EqualFold(a, s) {
			return a, nil
		}
	}
	return "", notAllowed(rule, s, "must be one of %s", strings.Join(allowed, ", "))
}
