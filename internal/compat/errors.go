package compat

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a reconciliation failure.
type ErrorKind string

const (
	KindValidation         ErrorKind = "ValidationError"
	KindMutexViolation     ErrorKind = "MutexViolation"
	KindPrivilege          ErrorKind = "InsufficientPrivilege"
	KindMissingRequirement ErrorKind = "MissingRequirement"
	KindIncompatible       ErrorKind = "Incompatible"
	KindMissingRequired    ErrorKind = "MissingRequired"
)

// Sentinels for errors.Is. Validation failures also match
// validate.ErrValidation through Unwrap.
var (
	ErrValidation            = errors.New("invalid field value")
	ErrMutexViolation        = errors.New("mutually exclusive fields selected")
	ErrInsufficientPrivilege = errors.New("insufficient privilege")
	ErrMissingRequirement    = errors.New("missing required companion field")
	ErrIncompatible          = errors.New("incompatible fields selected")
	ErrMissingRequired       = errors.New("required field missing")
)

var sentinels = map[ErrorKind]error{
	KindValidation:         ErrValidation,
	KindMutexViolation:     ErrMutexViolation,
	KindPrivilege:          ErrInsufficientPrivilege,
	KindMissingRequirement: ErrMissingRequirement,
	KindIncompatible:       ErrIncompatible,
	KindMissingRequired:    ErrMissingRequired,
}

// Error is one reconciliation problem. Fields names every field involved so
// a caller can re-collect just those.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Fields  []string  `json:"fields"`
	Rule    string    `json:"rule"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s [%s]", e.Kind, e.Message, e.Rule)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// Errors aggregates every problem found in one pass.
type Errors []*Error

func (es Errors) Error() string {
	if len(es) == 1 {
		return es[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d selection problems:", len(es))
	for i, e := range es {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, e.Error())
	}
	return b.String()
}

func (es Errors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// Fields returns the union of involved field names in first-seen order.
func (es Errors) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range es {
		for _, f := range e.Fields {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// OfKind returns the errors of kind k.
func (es Errors) OfKind(k ErrorKind) Errors {
	var out Errors
	for _, e := range es {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// AsErrors extracts an Errors value from err's chain.
func AsErrors(err error) (Errors, bool) {
	var es Errors
	if errors.As(err, &es) {
		return es, true
	}
	return nil, false
}
