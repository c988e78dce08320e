package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

// ErrValidation matches every *Error via errors.Is.
var ErrValidation = errors.New("validation failed")

// Reason classifies why a value was rejected.
type Reason string

const (
	OutOfRange    Reason = "OutOfRange"
	MalformedSpec Reason = "MalformedSpec"
	NotAllowed    Reason = "NotAllowed"
	Required      Reason = "Required"
	Undeclared    Reason = "Undeclared"
)

// Error reports a single rejected value. Field, Type and Kind are filled in
// by the registry; grammar functions only set Rule, Reason and Offending.
type Error struct {
	Field     string     `json:"field"`
	Type      field.Type `json:"type"`
	Kind      string     `json:"kind,omitempty"`
	Rule      string     `json:"rule"`
	Reason    Reason     `json:"reason"`
	Offending string     `json:"offending,omitempty"`
	Message   string     `json:"message"`
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: ", e.Field)
	}
	b.WriteString(e.Message)
	if e.Offending != "" {
		fmt.Fprintf(&b, " (%q)", e.Offending)
	}
	fmt.Fprintf(&b, " [%s/%s]", e.Reason, e.Rule)
	return b.String()
}

// Is makes errors.Is(err, ErrValidation) hold for any *Error.
func (e *Error) Is(target error) bool {
	return target == ErrValidation
}

func fail(rule string, reason Reason, offending, format string, args ...any) *Error {
	return &Error{
		Rule:      rule,
		Reason:    reason,
		Offending: offending,
		Message:   fmt.Sprintf(format, args...),
	}
}

func malformed(rule, offending, format string, args ...any) *Error {
	return fail(rule, MalformedSpec, offending, format, args...)
}

func outOfRange(rule, offending, format string, args ...any) *Error {
	return fail(rule, OutOfRange, offending, format, args...)
}

func notAllowed(rule, offending, format string, args ...any) *Error {
	return fail(rule, NotAllowed, offending, format, args...)
}

// AsError extracts the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
