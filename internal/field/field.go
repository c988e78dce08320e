// Package field defines FieldSpec, the manifest-declared description of one
// configurable value, and the closed set of semantic type tags it may carry.
package field

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type is the semantic type tag of a field. The set is closed: manifests
// naming anything else are rejected at load time.
type Type string

const (
	Port      Type = "port"
	Time      Type = "time"
	Target    Type = "target"
	MAC       Type = "mac"
	URL       Type = "url"
	Proxy     Type = "proxy"
	SSLParam  Type = "sslParam"
	SQLParam  Type = "sqlParam"
	HTTPParam Type = "httpParam"
	DNSParam  Type = "dnsParam"
	Rate      Type = "rate"
	Format    Type = "format"
	FreeText  Type = "freeText"
	Protocol  Type = "protocol"
	Switch    Type = "switch"
	Choice    Type = "choice"
)

// Types lists every valid Type in a stable order.
var Types = []Type{
	Port, Time, Target, MAC, URL, Proxy, SSLParam, SQLParam, HTTPParam,
	DNSParam, Rate, Format, FreeText, Protocol, Switch, Choice,
}

// Valid returns true if t is one of the closed set of type tags.
func (t Type) Valid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

// typeAliases maps the spellings found in older manifests onto the closed set.
// The second value is the implied Kind, if any.
var typeAliases = map[string]struct {
	t    Type
	kind string
}{
	"portspec":         {Port, ""},
	"port_spec":        {Port, ""},
	"port_optional":    {Port, "single"},
	"string":           {FreeText, ""},
	"string_optional":  {FreeText, ""},
	"text":             {FreeText, ""},
	"file":             {FreeText, "path"},
	"filepath":         {FreeText, "path"},
	"int":              {FreeText, "integer"},
	"integer":          {FreeText, "integer"},
	"number":           {FreeText, "number"},
	"enum":             {Choice, ""},
	"multi_enum":       {Choice, ""},
	"target_multi":     {Target, ""},
	"host":             {Target, "host"},
	"hostname_or_ip":   {Target, "host"},
	"hostport":         {Target, "hostport"},
	"hostport_or_port": {Target, "hostport"},
	"bool":             {Switch, ""},
	"boolean":          {Switch, ""},
	"flag":             {Switch, ""},
	"delay":            {Time, "delay"},
}

// ParseType resolves a manifest type string, accepting legacy aliases.
// An empty string means freeText.
func ParseType(s string) (Type, string, error) {
	if s == "" {
		return FreeText, "", nil
	}
	if t := Type(s); t.Valid() {
		return t, "", nil
	}
	if a, ok := typeAliases[strings.ToLower(s)]; ok {
		return a.t, a.kind, nil
	}
	return "", "", fmt.Errorf("unknown field type %q", s)
}

// Scalar is a YAML scalar of any tag (string, int, bool, float) kept as text.
type Scalar string

func (s *Scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", node.Line)
	}
	*s = Scalar(node.Value)
	return nil
}

// StringList handles YAML fields that accept a string or a list of strings.
type StringList []string

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			*l = nil
			return nil
		}
		*l = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(node.Content))
		for i, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: item[%d] must be a scalar", item.Line, i)
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: must be string or list, got %v", node.Line, node.Kind)
	}
}

// Option is one selectable option of a choice field.
type Option struct {
	ID    string `yaml:"id" json:"id" validate:"required"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
	Flag  string `yaml:"flag,omitempty" json:"flag,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
	Risk  string `yaml:"risk,omitempty" json:"risk,omitempty"`
}

// HighRisk reports whether the choice is marked risk: high.
func (c Option) HighRisk() bool {
	return strings.EqualFold(c.Risk, "high")
}

// Tokens returns the argv tokens contributed by selecting c.
func (c Option) Tokens() []string {
	var out []string
	if c.Flag != "" {
		out = append(out, c.Flag)
	}
	if c.Value != "" {
		out = append(out, c.Value)
	}
	return out
}

// DisplayLabel returns the label, falling back to the id.
func (c Option) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return c.ID
}

// Spec is the immutable description of one field (a flag or a placeholder).
type Spec struct {
	Name        string     `yaml:"name" json:"name" validate:"required"`
	Flag        string     `yaml:"flag,omitempty" json:"flag,omitempty"`
	Type        Type       `yaml:"-" json:"type"`
	Kind        string     `yaml:"kind,omitempty" json:"kind,omitempty"`
	Required    bool       `yaml:"required,omitempty" json:"required,omitempty"`
	Default     Scalar     `yaml:"default,omitempty" json:"default,omitempty"`
	Enum        StringList `yaml:"enum,omitempty" json:"enum,omitempty"`
	Min         *float64   `yaml:"min,omitempty" json:"min,omitempty"`
	Max         *float64   `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern     string     `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Positional  bool       `yaml:"positional,omitempty" json:"positional,omitempty"`
	Multi       bool       `yaml:"multi,omitempty" json:"multi,omitempty"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Prompt      string     `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Choices     []Option   `yaml:"choices,omitempty" json:"choices,omitempty" validate:"dive"`
}

// UnmarshalYAML decodes a spec and resolves its type tag. The raw "type"
// key is read separately so legacy aliases (multi_enum, portspec, ...) can
// set Kind and Multi as well.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	type plain Spec
	if err := node.Decode((*plain)(s)); err != nil {
		return err
	}
	var raw struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	t, kind, err := ParseType(raw.Type)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	s.Type = t
	if s.Kind == "" {
		s.Kind = kind
	}
	if strings.EqualFold(raw.Type, "multi_enum") {
		s.Multi = true
	}
	return nil
}

// HasDefault reports whether the manifest declares a default value.
func (s Spec) HasDefault() bool {
	return s.Default != ""
}

// Label returns the text shown to a user when asking for this field.
func (s Spec) Label() string {
	switch {
	case s.Prompt != "":
		return s.Prompt
	case s.Description != "":
		return s.Description
	}
	return s.Name
}

// FindChoice returns the choice with the given id (case-insensitive).
func (s Spec) FindChoice(id string) (Option, bool) {
	for _, c := range s.Choices {
		if strings.EqualFold(c.ID, id) {
			return c, true
		}
	}
	return Option{}, false
}

// TypeKey returns "type" or "type/kind" for messages.
func (s Spec) TypeKey() string {
	if s.Kind == "" {
		return string(s.Type)
	}
	return string(s.Type) + "/" + s.Kind
}
