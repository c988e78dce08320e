package manifest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/compat"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/tui"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/types"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/validate"
)

// LintSeverity represents the severity of a lint issue.
type LintSeverity string

const (
	LintError   LintSeverity = "error"
	LintWarning LintSeverity = "warning"
	LintInfo    LintSeverity = "info"
)

// LintIssue is one problem found in a manifest. Subject names the field,
// service or rule the problem belongs to.
type LintIssue struct {
	Subject  string
	Field    string
	Severity LintSeverity
	Message  string
}

func (i LintIssue) String() string {
	return fmt.Sprintf("[%s] %s: %s - %s", i.Severity, i.Subject, i.Field, i.Message)
}

// LintResult contains all issues found during linting.
type LintResult struct {
	Issues []LintIssue
	Errors int
	Warns  int
}

func (r *LintResult) add(sev LintSeverity, subject, fieldName, format string, args ...any) {
	r.Issues = append(r.Issues, LintIssue{
		Subject:  subject,
		Field:    fieldName,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
	})
	switch sev {
	case LintError:
		r.Errors++
	case LintWarning:
		r.Warns++
	case LintInfo:
	}
}

// ErrorIssues returns only the error-severity issues.
func (r LintResult) ErrorIssues() []LintIssue {
	var out []LintIssue
	for _, i := range r.Issues {
		if i.Severity == LintError {
			out = append(out, i)
		}
	}
	return out
}

// Linter checks manifests for defects that would otherwise only surface
// while a user is being prompted.
type Linter struct {
	validators *validate.Registry
}

// NewLinter returns a linter using reg, or the default registry when nil.
func NewLinter(reg *validate.Registry) *Linter {
	if reg == nil {
		reg = validate.Default()
	}
	return &Linter{validators: reg}
}

// Lint is NewLinter(nil).Lint.
func Lint(m *Manifest) LintResult {
	return NewLinter(nil).Lint(m)
}

// Lint returns every issue found in m.
func (l *Linter) Lint(m *Manifest) LintResult {
	var res LintResult
	switch m.Shape() {
	case ShapeFlags:
		l.lintFields(&res, "flags", m.Flags, true)
	case ShapeServices:
		l.lintServices(&res, m)
	}
	l.lintRestrictions(&res, m.Fields(), m.AllRestrictions())
	return res
}

func (l *Linter) lintFields(res *LintResult, scope string, specs []field.Spec, flagShape bool) {
	seen := make(map[string]bool)
	for _, s := range specs {
		subject := scope + "." + s.Name
		if s.Name == "" {
			res.add(LintError, scope, "name", "field name is required")
			continue
		}
		if seen[s.Name] {
			res.add(LintError, subject, "name", "duplicate field name")
		}
		seen[s.Name] = true

		if !l.validators.Supports(s.Type, s.Kind) {
			res.add(LintError, subject, "type", "unsupported type %q", s.TypeKey())
			continue
		}
		switch {
		case s.Type == field.Choice && len(s.Choices) == 0:
			res.add(LintError, subject, "choices", "choice field declares no choices")
		case s.Type != field.Choice && len(s.Choices) > 0:
			res.add(LintWarning, subject, "choices", "choices are ignored for type %q", s.Type)
		}
		if s.Type == field.Switch && s.Flag == "" {
			res.add(LintError, subject, "flag", "switch field needs a flag")
		}
		if flagShape && s.Type != field.Switch && s.Type != field.Choice && s.Flag == "" && !s.Positional {
			res.add(LintWarning, subject, "flag", "no flag and not positional; value is emitted bare")
		}
		if s.Pattern != "" {
			if err := validate.CheckPattern(s.Pattern); err != nil {
				res.add(LintError, subject, "pattern", "%v", err)
			}
		}
		if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
			res.add(LintError, subject, "min", "min %v is greater than max %v", *s.Min, *s.Max)
		}
		if s.HasDefault() {
			if _, err := l.validators.Validate(s, string(s.Default)); err != nil {
				res.add(LintError, subject, "default", "default does not validate: %v", err)
			}
		}
	}
}

func (l *Linter) lintServices(res *LintResult, m *Manifest) {
	ids := make(map[string]bool)
	for _, svc := range m.Services {
		ids[svc.ID] = true
	}
	seen := make(map[string]bool)
	for _, svc := range m.Services {
		subject := "service." + svc.ID
		if seen[svc.ID] {
			res.add(LintError, subject, "id", "duplicate service id")
		}
		seen[svc.ID] = true

		l.lintFields(res, subject, svc.Placeholders, false)

		if svc.Template.IsZero() {
			res.add(LintError, subject, "command_template", "command template is empty")
			continue
		}
		tpl, err := svc.Template.Parse()
		if err != nil {
			res.add(LintError, subject, "command_template", "%v", err)
			continue
		}
		if _, err := tpl.Binary(); err != nil && m.Binary == "" {
			res.add(LintError, subject, "command_template", "%v", err)
		}
		declared := make(map[string]bool, len(svc.Placeholders))
		for _, p := range svc.Placeholders {
			declared[p.Name] = true
		}
		used := make(map[string]bool)
		for _, name := range tpl.Names() {
			used[name] = true
			if !declared[name] {
				res.add(LintError, subject, "command_template", "template references undeclared placeholder %q", name)
			}
		}
		for _, p := range svc.Placeholders {
			if !used[p.Name] {
				res.add(LintWarning, subject, "placeholders", "placeholder %q is not used by the template", p.Name)
			}
		}
		for _, other := range svc.IncompatibleServices {
			if !ids[other] {
				res.add(LintWarning, subject, "incompatible_services", "unknown service %q", other)
			}
		}
		if svc.RequiresPrivilege != "" {
			if _, ok := types.ParsePrivilege(svc.RequiresPrivilege); !ok {
				res.add(LintWarning, subject, "requires_privilege", "unknown level %q, treated as root", svc.RequiresPrivilege)
			}
		}
	}
	for id := range m.ServiceRestrictions {
		if !ids[id] {
			res.add(LintWarning, "service_restrictions", id, "restrictions for unknown service")
		}
	}
}

func (l *Linter) lintRestrictions(res *LintResult, specs []field.Spec, rules []compat.Restriction) {
	byName := make(map[string]field.Spec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}
	type implied struct {
		value string
		rule  string
	}
	impliedBy := make(map[string]implied)

	for _, r := range rules {
		subject := r.String()
		if !r.Kind.Valid() {
			res.add(LintError, subject, "kind", "unknown restriction kind %q", r.Kind)
			continue
		}
		for _, ref := range r.References() {
			if _, ok := byName[ref]; !ok {
				res.add(LintError, subject, "fields", "references undeclared field %q", ref)
			}
		}
		switch r.Kind {
		case compat.MutuallyExclusive:
			if len(r.Fields) < 2 {
				res.add(LintError, subject, "fields", "group needs at least two fields")
			}
			for _, f := range r.Fields {
				if s, ok := byName[f]; ok && s.Required {
					res.add(LintWarning, subject, f, "required field is in a mutually exclusive group; it stays unset when another member is chosen")
				}
			}
			continue
		case compat.RequiresPrivilege:
			if r.Field == "" {
				res.add(LintError, subject, "field", "field is required")
			}
			if _, ok := types.ParsePrivilege(r.Level); !ok {
				res.add(LintWarning, subject, "level", "unknown level %q, treated as root", r.Level)
			}
			continue
		}
		if r.Field == "" {
			res.add(LintError, subject, "field", "field is required")
		}
		if len(r.Targets) == 0 {
			res.add(LintError, subject, "targets", "at least one target is required")
		}
		if slices.Contains(r.Targets, r.Field) {
			sev := LintWarning
			if r.Kind == compat.Implies {
				sev = LintError
			}
			res.add(sev, subject, "targets", "field refers to itself")
		}
		if r.Kind != compat.Implies {
			continue
		}
		for _, t := range r.Targets {
			spec, ok := byName[t]
			if !ok {
				continue
			}
			v, err := l.validators.Validate(spec, r.ImpliedValue())
			if err != nil {
				res.add(LintError, subject, "value", "implied value for %q does not validate: %v", t, err)
				continue
			}
			key := v.Canonical
			if key == "" {
				key = v.Text
			}
			if prev, ok := impliedBy[t]; ok && prev.value != key {
				res.add(LintError, subject, "value", "%q is also implied as %q by %s", t, prev.value, prev.rule)
				continue
			}
			impliedBy[t] = implied{value: key, rule: subject}
		}
	}

	for _, cycle := range implicationCycles(rules) {
		res.add(LintError, "implies", strings.Join(cycle, " -> "), "implication cycle")
	}
}

// implicationCycles returns each cycle of the implies graph once, as the
// path that closes it.
func implicationCycles(rules []compat.Restriction) [][]string {
	edges := make(map[string][]string)
	var nodes []string
	for _, r := range rules {
		if r.Kind != compat.Implies {
			continue
		}
		if _, ok := edges[r.Field]; !ok {
			nodes = append(nodes, r.Field)
		}
		for _, t := range r.Targets {
			if t != r.Field {
				edges[r.Field] = append(edges[r.Field], t)
			}
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)
	var (
		stack  []string
		cycles [][]string
		visit  func(n string)
	)
	visit = func(n string) {
		color[n] = grey
		stack = append(stack, n)
		for _, next := range edges[n] {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				i := slices.Index(stack, next)
				cycle := append(append([]string{}, stack[i:]...), next)
				cycles = append(cycles, cycle)
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
	}
	for _, n := range nodes {
		if color[n] == white {
			visit(n)
		}
	}
	return cycles
}

// FormatIssues returns a human-readable string of all issues.
func (r LintResult) FormatIssues(showInfo bool) string {
	if len(r.Issues) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, issue := range r.Issues {
		if issue.Severity == LintInfo && !showInfo {
			continue
		}

		var icon, styledLine string
		if tui.IsPlainMode() {
			switch issue.Severity {
			case LintError:
				icon = "X"
			case LintWarning:
				icon = "!"
			default:
				icon = "i"
			}
			styledLine = fmt.Sprintf("  %s %s\n", icon, issue)
		} else {
			switch issue.Severity {
			case LintError:
				icon = tui.StyleError.Render(tui.IconCross)
			case LintWarning:
				icon = tui.StyleWarning.Render(tui.IconWarning)
			default:
				icon = tui.StyleInfo.Render(tui.IconInfo)
			}
			styledLine = fmt.Sprintf("  %s %s %s: %s - %s\n",
				icon, tui.SeverityBadge(string(issue.Severity)), tui.StyleBold.Render(issue.Subject), issue.Field, issue.Message)
		}
		sb.WriteString(styledLine)
	}
	return sb.String()
}
