// Package manifest loads and checks the YAML manifests that describe a
// tool's invocation surface.
//
// Two shapes are supported. Flag manifests list flags directly:
//
//	tool: Nmap
//	command: nmap
//	flags:
//	  - name: ports
//	    flag: -p
//	    type: port
//
// Services manifests group placeholders under services, each with its own
// command template:
//
//	tool_id: Nmap
//	command_id: ncat
//	services:
//	  - id: connect
//	    placeholders:
//	      host: {type: host, required: true}
//	    command_template: ["ncat", "{host}", "{port}"]
package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/compat"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/placeholder"
)

// Shape tells flag manifests and services manifests apart.
type Shape string

const (
	ShapeFlags    Shape = "flags"
	ShapeServices Shape = "services"
)

// Manifest is one parsed manifest file. Only the keys of its shape are set.
type Manifest struct {
	SchemaVersion string `yaml:"schema_version,omitempty" json:"schema_version,omitempty"`
	Description   string `yaml:"description,omitempty" json:"description,omitempty"`
	Binary        string `yaml:"binary,omitempty" json:"binary,omitempty"`

	// Flag shape.
	Tool    string    `yaml:"tool,omitempty" json:"tool,omitempty" validate:"required_without=ToolID"`
	Command string    `yaml:"command,omitempty" json:"command,omitempty" validate:"required_with=Tool"`
	Flags   FieldList `yaml:"flags,omitempty" json:"flags,omitempty" validate:"dive"`

	// Services shape.
	ToolID    string    `yaml:"tool_id,omitempty" json:"tool_id,omitempty" validate:"required_without=Tool"`
	CommandID string    `yaml:"command_id,omitempty" json:"command_id,omitempty" validate:"required_with=ToolID"`
	Services  []Service `yaml:"services,omitempty" json:"services,omitempty" validate:"dive"`

	Restrictions        []compat.Restriction          `yaml:"restrictions,omitempty" json:"restrictions,omitempty" validate:"dive"`
	FlagRestrictions    LegacyFlagRestrictions        `yaml:"flag_restrictions,omitempty" json:"-"`
	ServiceRestrictions map[string]ServiceRestriction `yaml:"service_restrictions,omitempty" json:"-"`

	// Path is the file the manifest was read from.
	Path string `yaml:"-" json:"path,omitempty"`
}

// Service is one entry of a services manifest.
type Service struct {
	ID                        string               `yaml:"id" json:"id" validate:"required"`
	Label                     string               `yaml:"label,omitempty" json:"label,omitempty"`
	Description               string               `yaml:"description,omitempty" json:"description,omitempty"`
	Placeholders              FieldList            `yaml:"placeholders,omitempty" json:"placeholders,omitempty" validate:"dive"`
	Template                  TemplateSource       `yaml:"command_template" json:"command_template"`
	Restrictions              []compat.Restriction `yaml:"restrictions,omitempty" json:"restrictions,omitempty" validate:"dive"`
	IncompatibleServices      field.StringList     `yaml:"incompatible_services,omitempty" json:"incompatible_services,omitempty"`
	RequiresPrivilege         string               `yaml:"requires_privilege,omitempty" json:"requires_privilege,omitempty"`
	RequiresScopeConfirmation bool                 `yaml:"requires_scope_confirmation,omitempty" json:"requires_scope_confirmation,omitempty"`
}

// DisplayLabel returns the label, falling back to the id.
func (s Service) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.ID
}

// ServiceRestriction is the older per-service restriction block.
type ServiceRestriction struct {
	IncompatibleServices field.StringList `yaml:"incompatible_services,omitempty"`
	CompatibleServices   field.StringList `yaml:"compatible_services,omitempty"`
	RequiresPrivileges   string           `yaml:"requires_privileges,omitempty"`
	RequiresFlags        field.StringList `yaml:"requires_flags,omitempty"`
}

// FieldList decodes either a list of specs or a mapping of name to spec.
type FieldList []field.Spec

func (l *FieldList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var specs []field.Spec
		if err := node.Decode(&specs); err != nil {
			return err
		}
		*l = specs
		return nil
	case yaml.MappingNode:
		out := make([]field.Spec, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			var spec field.Spec
			if err := val.Decode(&spec); err != nil {
				return fmt.Errorf("%s: %w", key.Value, err)
			}
			if spec.Name == "" {
				spec.Name = key.Value
			}
			out = append(out, spec)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: fields must be a list or a mapping", node.Line)
	}
}

// TemplateSource is a command template written either as one shell-style
// string or as a list with one argv token per entry.
type TemplateSource struct {
	Text   string
	Tokens []string
}

func (t *TemplateSource) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.Text = node.Value
		return nil
	case yaml.SequenceNode:
		var toks []string
		if err := node.Decode(&toks); err != nil {
			return err
		}
		t.Tokens = toks
		return nil
	default:
		return fmt.Errorf("line %d: command_template must be a string or a list", node.Line)
	}
}

func (t TemplateSource) MarshalJSON() ([]byte, error) {
	if t.Tokens != nil {
		return json.Marshal(t.Tokens)
	}
	return json.Marshal(t.Text)
}

// IsZero reports whether no template was given.
func (t TemplateSource) IsZero() bool {
	return t.Text == "" && len(t.Tokens) == 0
}

// Parse returns the parsed template.
func (t TemplateSource) Parse() (placeholder.Template, error) {
	if t.Tokens != nil {
		return placeholder.ParseTokens(t.Tokens), nil
	}
	return placeholder.Parse(t.Text)
}

// LegacyFlagRules is the per-flag block of a flag_restrictions mapping.
type LegacyFlagRules struct {
	Implies            field.StringList `yaml:"implies,omitempty"`
	Overrides          field.StringList `yaml:"overrides,omitempty"`
	Requires           field.StringList `yaml:"requires,omitempty"`
	IncompatibleWith   field.StringList `yaml:"incompatible_with,omitempty"`
	RequiresPrivileges string           `yaml:"requires_privileges,omitempty"`
	DependsOn          *LegacyDependsOn `yaml:"depends_on,omitempty"`
	RequiresParent     string           `yaml:"requires_parent,omitempty"`
}

// LegacyDependsOn names a parent by placeholder or flag and an optional
// required value.
type LegacyDependsOn struct {
	Placeholder string       `yaml:"placeholder,omitempty"`
	Flag        string       `yaml:"flag,omitempty"`
	Value       field.Scalar `yaml:"value,omitempty"`
}

// LegacyGroup is one entry of mutually_exclusive_groups.
type LegacyGroup struct {
	Name  string           `yaml:"name,omitempty"`
	Flags field.StringList `yaml:"flags"`
}

// LegacyFlagRestrictions is the flag_restrictions mapping: flag keys to
// rules, plus the special mutually_exclusive_groups key. Key order is kept.
type LegacyFlagRestrictions struct {
	Keys   []string
	Rules  map[string]LegacyFlagRules
	Groups []LegacyGroup
}

func (lr *LegacyFlagRestrictions) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: flag_restrictions must be a mapping", node.Line)
	}
	lr.Rules = make(map[string]LegacyFlagRules)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if key.Value == "mutually_exclusive_groups" {
			if err := val.Decode(&lr.Groups); err != nil {
				return fmt.Errorf("mutually_exclusive_groups: %w", err)
			}
			continue
		}
		var r LegacyFlagRules
		if err := val.Decode(&r); err != nil {
			return fmt.Errorf("flag_restrictions[%s]: %w", key.Value, err)
		}
		lr.Keys = append(lr.Keys, key.Value)
		lr.Rules[key.Value] = r
	}
	return nil
}

// IsZero reports whether the block was absent.
func (lr LegacyFlagRestrictions) IsZero() bool {
	return len(lr.Keys) == 0 && len(lr.Groups) == 0
}

// Convert turns the legacy block into restrictions. name maps a flag
// spelling to the declared field name.
func (lr LegacyFlagRestrictions) Convert(name func(string) string) []compat.Restriction {
	names := func(in []string) field.StringList {
		out := make(field.StringList, len(in))
		for i, s := range in {
			out[i] = name(s)
		}
		return out
	}
	var out []compat.Restriction
	for _, key := range lr.Keys {
		r := lr.Rules[key]
		f := name(key)
		if len(r.Implies) > 0 {
			out = append(out, compat.Restriction{Kind: compat.Implies, Field: f, Targets: names(r.Implies)})
		}
		if len(r.Overrides) > 0 {
			out = append(out, compat.Restriction{Kind: compat.Overrides, Field: f, Targets: names(r.Overrides)})
		}
		if len(r.Requires) > 0 {
			out = append(out, compat.Restriction{Kind: compat.Requires, Field: f, Targets: names(r.Requires)})
		}
		if len(r.IncompatibleWith) > 0 {
			out = append(out, compat.Restriction{Kind: compat.IncompatibleWith, Field: f, Targets: names(r.IncompatibleWith)})
		}
		if r.RequiresPrivileges != "" {
			out = append(out, compat.Restriction{Kind: compat.RequiresPrivilege, Field: f, Level: r.RequiresPrivileges})
		}
		if d := r.DependsOn; d != nil {
			parent := d.Placeholder
			if parent == "" {
				parent = d.Flag
			}
			if parent != "" {
				out = append(out, compat.Restriction{Kind: compat.DependsOn, Field: f, Targets: field.StringList{name(parent)}, Value: d.Value})
			}
		}
		if r.RequiresParent != "" {
			out = append(out, compat.Restriction{Kind: compat.DependsOn, Field: f, Targets: field.StringList{name(r.RequiresParent)}})
		}
	}
	for _, g := range lr.Groups {
		out = append(out, compat.Restriction{Kind: compat.MutuallyExclusive, Name: g.Name, Fields: names(g.Flags)})
	}
	return out
}

// Shape reports which shape m has.
func (m *Manifest) Shape() Shape {
	if m.ToolID != "" || len(m.Services) > 0 {
		return ShapeServices
	}
	return ShapeFlags
}

// ToolName returns tool or tool_id.
func (m *Manifest) ToolName() string {
	if m.Tool != "" {
		return m.Tool
	}
	return m.ToolID
}

// CommandName returns command or command_id.
func (m *Manifest) CommandName() string {
	if m.Command != "" {
		return m.Command
	}
	return m.CommandID
}

// BinaryName is the program to invoke: binary if set, else the command
// name lowercased.
func (m *Manifest) BinaryName() string {
	if m.Binary != "" {
		return m.Binary
	}
	return strings.ToLower(m.CommandName())
}

// Service returns the service with the given id.
func (m *Manifest) Service(id string) (Service, bool) {
	for _, s := range m.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// Fields returns every declared field. For services manifests this is the
// union of all placeholders, first declaration wins.
func (m *Manifest) Fields() []field.Spec {
	if m.Shape() == ShapeFlags {
		return m.Flags
	}
	ids := make([]string, len(m.Services))
	for i, s := range m.Services {
		ids[i] = s.ID
	}
	return m.serviceFields(ids)
}

func (m *Manifest) serviceFields(ids []string) []field.Spec {
	seen := make(map[string]bool)
	var out []field.Spec
	for _, id := range ids {
		svc, ok := m.Service(id)
		if !ok {
			continue
		}
		for _, spec := range svc.Placeholders {
			if !seen[spec.Name] {
				seen[spec.Name] = true
				out = append(out, spec)
			}
		}
	}
	return out
}

// fieldName maps a flag spelling or a field name to the declared name.
func (m *Manifest) fieldName(fields []field.Spec) func(string) string {
	return func(s string) string {
		for _, f := range fields {
			if f.Name == s {
				return s
			}
		}
		for _, f := range fields {
			if f.Flag != "" && strings.TrimSuffix(f.Flag, "=") == s {
				return f.Name
			}
		}
		return s
	}
}

// AllRestrictions returns the declared restrictions plus the converted
// legacy flag_restrictions block and every service's own restrictions.
func (m *Manifest) AllRestrictions() []compat.Restriction {
	out := append([]compat.Restriction(nil), m.Restrictions...)
	out = append(out, m.FlagRestrictions.Convert(m.fieldName(m.Fields()))...)
	for _, s := range m.Services {
		out = append(out, s.Restrictions...)
	}
	return out
}

// ServiceRules returns the combination rules of every service, merging the
// older service_restrictions block.
func (m *Manifest) ServiceRules() []compat.Service {
	out := make([]compat.Service, 0, len(m.Services))
	for _, s := range m.Services {
		cs := compat.Service{
			ID:                s.ID,
			Incompatible:      append([]string(nil), s.IncompatibleServices...),
			RequiresPrivilege: s.RequiresPrivilege,
		}
		if legacy, ok := m.ServiceRestrictions[s.ID]; ok {
			cs.Incompatible = append(cs.Incompatible, legacy.IncompatibleServices...)
			if cs.RequiresPrivilege == "" {
				cs.RequiresPrivilege = legacy.RequiresPrivileges
			}
		}
		out = append(out, cs)
	}
	return out
}

// Ruleset returns the reconciliation input for a run. For services
// manifests only the placeholders of the chosen services are in scope, and
// each restriction is narrowed to them (see scopeRestriction).
func (m *Manifest) Ruleset(services []string) compat.Ruleset {
	if m.Shape() == ShapeFlags {
		return compat.Ruleset{
			Fields:        m.Flags,
			Restrictions:  m.AllRestrictions(),
			RequireFields: true,
		}
	}
	fields := m.serviceFields(services)
	inScope := make(map[string]bool, len(fields))
	for _, f := range fields {
		inScope[f.Name] = true
	}
	var rules []compat.Restriction
	for _, r := range m.AllRestrictions() {
		if r, ok := scopeRestriction(r, inScope); ok {
			rules = append(rules, r)
		}
	}
	return compat.Ruleset{
		Fields:       fields,
		Restrictions: rules,
		Services:     m.ServiceRules(),
	}
}

// scopeRestriction narrows r to the fields in scope and reports whether
// anything of it still applies. Mutex groups keep their in-scope members.
// Implications, overrides and incompatibilities lose out-of-scope targets.
// Requires and dependsOn stay whole: a target that cannot be set must
// still fail the rule.
func scopeRestriction(r compat.Restriction, inScope map[string]bool) (compat.Restriction, bool) {
	keep := func(names []string) []string {
		var out []string
		for _, n := range names {
			if inScope[n] {
				out = append(out, n)
			}
		}
		return out
	}
	switch r.Kind {
	case compat.MutuallyExclusive:
		r.Fields = keep(r.Fields)
		return r, len(r.Fields) > 1
	case compat.Implies, compat.Overrides, compat.IncompatibleWith:
		if !inScope[r.Field] {
			return r, false
		}
		r.Targets = keep(r.Targets)
		return r, len(r.Targets) > 0
	default:
		return r, inScope[r.Field]
	}
}
