package placeholder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/command"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/logger"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/validate"
)

var log = logger.New("placeholder")

// ErrUnbound matches every *UnboundError.
var ErrUnbound = errors.New("unbound placeholder")

// UnboundError lists every required placeholder that had neither a value
// nor a default.
type UnboundError struct {
	Names []string
}

func (e *UnboundError) Error() string {
	return "unbound placeholder(s): " + strings.Join(e.Names, ", ")
}

func (e *UnboundError) Is(target error) bool { return target == ErrUnbound }

// Resolver substitutes values into templates. Defaults are validated with
// its registry.
type Resolver struct {
	validators *validate.Registry
}

// New returns a Resolver using reg, or the default registry when nil.
func New(reg *validate.Registry) *Resolver {
	if reg == nil {
		reg = validate.Default()
	}
	return &Resolver{validators: reg}
}

// Resolve is New(nil).Resolve.
func Resolve(tpl Template, values map[string]validate.Value, specs []field.Spec) ([]string, error) {
	return New(nil).Resolve(tpl, values, specs)
}

// Resolve returns the argv tokens of tpl with every reference bound.
//
// A token that is exactly one reference expands the way a flag does (a
// switch to its flag, a choice to its choice tokens, a field with a flag to
// [flag, value]). References inside a larger token insert the value text.
// A token whose missing references are all optional is dropped. Missing
// required references are collected and reported together.
func (r *Resolver) Resolve(tpl Template, values map[string]validate.Value, specs []field.Spec) ([]string, error) {
	byName := make(map[string]field.Spec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	var (
		out     []string
		unbound []string
		seen    = make(map[string]bool)
	)
	for _, tok := range tpl.Tokens {
		bound := make(map[string]validate.Value)
		drop := false
		for _, seg := range tok {
			if seg.Name == "" {
				continue
			}
			spec, ok := byName[seg.Name]
			if !ok {
				return nil, &command.BuildError{Token: tok.String(), Reason: fmt.Sprintf("template references undeclared placeholder %q", seg.Name)}
			}
			v, ok, err := r.lookup(spec, values)
			if err != nil {
				return nil, err
			}
			switch {
			case ok:
				bound[seg.Name] = v
			case spec.Required:
				if !seen[seg.Name] {
					seen[seg.Name] = true
					unbound = append(unbound, seg.Name)
				}
				drop = true
			default:
				log.Trace("dropping token %q: %s has no value", tok.String(), seg.Name)
				drop = true
			}
		}
		if drop {
			continue
		}
		if name, ok := tok.Whole(); ok {
			out = append(out, command.Expand(byName[name], bound[name])...)
			continue
		}
		var sb strings.Builder
		for _, seg := range tok {
			if seg.Name == "" {
				sb.WriteString(seg.Literal)
				continue
			}
			sb.WriteString(bound[seg.Name].Text)
		}
		if sb.Len() > 0 {
			out = append(out, sb.String())
		}
	}
	if len(unbound) > 0 {
		return nil, &UnboundError{Names: unbound}
	}
	return out, nil
}

// lookup returns the value for spec, falling back to its default. A
// default that fails its own grammar is a manifest defect.
func (r *Resolver) lookup(spec field.Spec, values map[string]validate.Value) (validate.Value, bool, error) {
	if v, ok := values[spec.Name]; ok {
		return v, true, nil
	}
	if !spec.HasDefault() {
		return validate.Value{}, false, nil
	}
	v, err := r.validators.Validate(spec, string(spec.Default))
	if err != nil {
		return validate.Value{}, false, &command.BuildError{
			Token:  string(spec.Default),
			Reason: fmt.Sprintf("default for %q is invalid: %v", spec.Name, err),
		}
	}
	if spec.Type == field.Switch && v.Text != "true" {
		return validate.Value{}, false, nil
	}
	return v, true, nil
}
