// Package command turns resolved arguments into an argument vector and an
// equivalent POSIX-shell-quoted string. It never runs anything.
package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/validate"
)

// ErrBuild matches every *BuildError.
var ErrBuild = errors.New("command build failed")

// BuildError is a defect in what was asked to be built (usually a manifest
// defect), never a user-input problem.
type BuildError struct {
	Token  string
	Reason string
}

func (e *BuildError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("build error: %s (token %q)", e.Reason, e.Token)
	}
	return "build error: " + e.Reason
}

func (e *BuildError) Is(target error) bool { return target == ErrBuild }

// Resolved is a ready-to-run command. Argv passed to a process launcher and
// Quoted run through a POSIX shell give the binary byte-identical arguments.
type Resolved struct {
	Argv   []string `json:"cmd_list"`
	Quoted string   `json:"cmd_quoted"`
}

// Binary returns argv[0].
func (r Resolved) Binary() string {
	if len(r.Argv) == 0 {
		return ""
	}
	return r.Argv[0]
}

// Args returns everything after the binary.
func (r Resolved) Args() []string {
	if len(r.Argv) < 2 {
		return nil
	}
	return r.Argv[1:]
}

func (r Resolved) String() string { return r.Quoted }

// Describe is a one-line human description of what would be invoked.
func (r Resolved) Describe() string {
	n := len(r.Args())
	switch n {
	case 0:
		return fmt.Sprintf("runs %s with no arguments", r.Binary())
	case 1:
		return fmt.Sprintf("runs %s with 1 argument", r.Binary())
	}
	return fmt.Sprintf("runs %s with %d arguments", r.Binary(), n)
}

// Build assembles binary and args. The quoted form is parsed back with a
// POSIX shell parser and must reproduce the vector exactly.
func Build(binary string, args []string) (Resolved, error) {
	if strings.TrimSpace(binary) == "" {
		return Resolved{}, &BuildError{Reason: "empty binary"}
	}
	argv := make([]string, 0, len(args)+1)
	argv = append(argv, binary)
	argv = append(argv, args...)
	for _, a := range argv {
		if strings.IndexByte(a, 0) >= 0 {
			return Resolved{}, &BuildError{Token: a, Reason: "argument contains a NUL byte"}
		}
	}
	quoted := Join(argv)
	back, err := Split(quoted)
	if err != nil {
		return Resolved{}, &BuildError{Token: quoted, Reason: "quoted form does not parse: " + err.Error()}
	}
	if !slices.Equal(back, argv) {
		return Resolved{}, &BuildError{Token: quoted, Reason: "quoted form does not round-trip"}
	}
	return Resolved{Argv: argv, Quoted: quoted}, nil
}

// Expand returns the argv tokens one present field contributes: switches
// emit their bare flag, choices their choice tokens, other fields
// [flag, value] or just [value]. A flag ending in "=" is glued to its value.
func Expand(spec field.Spec, v validate.Value) []string {
	switch spec.Type {
	case field.Switch:
		if v.Text != "true" || spec.Flag == "" {
			return nil
		}
		return []string{spec.Flag}
	case field.Choice:
		var out []string
		ids, _ := v.Parsed.([]string)
		for _, id := range ids {
			c, ok := spec.FindChoice(id)
			if !ok {
				continue
			}
			toks := c.Tokens()
			if len(toks) == 0 {
				toks = []string{c.ID}
			}
			out = append(out, toks...)
		}
		if spec.Flag != "" && len(out) > 0 {
			out = append([]string{spec.Flag}, out...)
		}
		return out
	}
	if spec.Flag == "" {
		return []string{v.Text}
	}
	if strings.HasSuffix(spec.Flag, "=") {
		return []string{spec.Flag + v.Text}
	}
	return []string{spec.Flag, v.Text}
}

// FromFlags lays out a flag-shaped manifest: present non-positional fields
// in declaration order, then positional fields in declaration order.
func FromFlags(binary string, fields []field.Spec, values map[string]validate.Value) (Resolved, error) {
	var args, positional []string
	for _, spec := range fields {
		v, ok := values[spec.Name]
		if !ok {
			continue
		}
		if spec.Positional {
			positional = append(positional, Expand(spec, v)...)
			continue
		}
		args = append(args, Expand(spec, v)...)
	}
	return Build(binary, append(args, positional...))
}
