// Package compat reconciles a user's raw selection against a manifest's
// declared restrictions: implications, overrides, mutual exclusion,
// privilege gates and dependency rules.
package compat

import (
	"fmt"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/validate"
)

// Kind names a restriction type.
type Kind string

const (
	// Implies: selecting Field sets every target to Value.
	Implies Kind = "implies"
	// Overrides: selecting Field removes every target.
	Overrides Kind = "overrides"
	// MutuallyExclusive: at most one of Fields may be present.
	MutuallyExclusive Kind = "mutuallyExclusiveGroup"
	// RequiresPrivilege: Field may only be selected at Level or above.
	RequiresPrivilege Kind = "requiresPrivilege"
	// Requires: selecting Field needs every target present.
	Requires Kind = "requires"
	// IncompatibleWith: Field and any target may not both be present.
	IncompatibleWith Kind = "incompatibleWith"
	// DependsOn: selecting Field needs the target present, and equal to
	// Value when Value is set.
	DependsOn Kind = "dependsOn"
)

// Kinds lists every restriction kind.
var Kinds = []Kind{Implies, Overrides, MutuallyExclusive, RequiresPrivilege, Requires, IncompatibleWith, DependsOn}

// Valid returns true if k is a known restriction kind.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// Restriction is one declared rule. Which fields are meaningful depends on
// Kind: group rules use Fields, privilege rules use Level, all others use
// Field and Targets.
type Restriction struct {
	Kind    Kind             `yaml:"kind" json:"kind" validate:"required"`
	Field   string           `yaml:"field,omitempty" json:"field,omitempty"`
	Targets field.StringList `yaml:"targets,omitempty" json:"targets,omitempty"`
	Value   field.Scalar     `yaml:"value,omitempty" json:"value,omitempty"`
	Fields  []string         `yaml:"fields,omitempty" json:"fields,omitempty"`
	Name    string           `yaml:"name,omitempty" json:"name,omitempty"`
	Level   string           `yaml:"level,omitempty" json:"level,omitempty"`
}

// String renders the rule for messages, e.g. "implies(aggressive -> scanAllPorts=true)".
func (r Restriction) String() string {
	label := string(r.Kind)
	if r.Name != "" {
		label = r.Name
	}
	switch r.Kind {
	case Implies:
		parts := make([]string, len(r.Targets))
		for i, t := range r.Targets {
			parts[i] = t + "=" + r.ImpliedValue()
		}
		return fmt.Sprintf("%s(%s -> %s)", label, r.Field, strings.Join(parts, ", "))
	case Overrides:
		return fmt.Sprintf("%s(%s overrides %s)", label, r.Field, strings.Join(r.Targets, ", "))
	case MutuallyExclusive:
		return fmt.Sprintf("%s{%s}", label, strings.Join(r.Fields, ", "))
	case RequiresPrivilege:
		return fmt.Sprintf("%s(%s, %s)", label, r.Field, r.Level)
	case DependsOn:
		if r.Value != "" {
			return fmt.Sprintf("%s(%s -> %s=%s)", label, r.Field, strings.Join(r.Targets, ", "), r.Value)
		}
	}
	return fmt.Sprintf("%s(%s -> %s)", label, r.Field, strings.Join(r.Targets, ", "))
}

// ImpliedValue is the value an implication assigns. An empty Value means
// "enabled", which suits switch targets.
func (r Restriction) ImpliedValue() string {
	if r.Value == "" {
		return "true"
	}
	return string(r.Value)
}

// References returns every field name the rule mentions.
func (r Restriction) References() []string {
	var out []string
	if r.Field != "" {
		out = append(out, r.Field)
	}
	out = append(out, r.Targets...)
	out = append(out, r.Fields...)
	return out
}

// Service carries the combination rules of one service of a
// services-shaped manifest.
type Service struct {
	ID                string
	Incompatible      []string
	RequiresPrivilege string
}

// Ruleset is everything Reconcile needs from a manifest. It is treated as
// read-only.
type Ruleset struct {
	// Fields in declaration order.
	Fields       []field.Spec
	Restrictions []Restriction
	Services     []Service
	// RequireFields enables the required-field pass: absent required
	// fields take their default or are reported as MissingRequired.
	RequireFields bool
}

// Spec returns the declared field called name.
func (rs Ruleset) Spec(name string) (field.Spec, bool) {
	for _, s := range rs.Fields {
		if s.Name == name {
			return s, true
		}
	}
	return field.Spec{}, false
}

// Selection is the raw input: field name to raw value, plus the chosen
// service ids for services-shaped manifests.
type Selection struct {
	Values   map[string]string
	Services []string
}

// Resolution is the reconciled, validated selection.
type Resolution struct {
	Values   map[string]validate.Value
	Services []string
	Warnings []string
	// Order lists the keys of Values in declaration order.
	Order []string
}

// Has reports whether name is present.
func (r *Resolution) Has(name string) bool {
	_, ok := r.Values[name]
	return ok
}

// Text returns the emitted text of every present field.
func (r *Resolution) Text() map[string]string {
	out := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		out[k] = v.Text
	}
	return out
}
