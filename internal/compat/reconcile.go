package compat

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/logger"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/types"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/validate"
)

var log = logger.New("compat")

// Reconciler runs reconciliation with a given validator registry.
type Reconciler struct {
	validators *validate.Registry
}

// New returns a Reconciler. A nil registry means validate.Default().
func New(validators *validate.Registry) *Reconciler {
	if validators == nil {
		validators = validate.Default()
	}
	return &Reconciler{validators: validators}
}

// Reconcile runs the default Reconciler.
func Reconcile(sel Selection, rs Ruleset, priv types.Privilege) (*Resolution, error) {
	return New(nil).Reconcile(sel, rs, priv)
}

// pass holds the working state of one Reconcile call.
type pass struct {
	rs       Ruleset
	specs    map[string]field.Spec
	cur      map[string]validate.Value
	user     map[string]bool
	removed  map[string]bool
	warnings []string
	errs     Errors
	reg      *validate.Registry
}

func (p *pass) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.warnings = append(p.warnings, msg)
	log.Debug("%s", msg)
}

func (p *pass) fail(kind ErrorKind, rule string, fields []string, format string, args ...any) {
	p.errs = append(p.errs, &Error{
		Kind:    kind,
		Fields:  fields,
		Rule:    rule,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *pass) has(name string) bool {
	_, ok := p.cur[name]
	return ok
}

// Reconcile validates sel and applies rs. The result is independent of map
// iteration order; sel is never modified.
//
// Steps: validate every present field (all failures reported together),
// apply implications to a fixed point, apply overrides, fill required
// defaults, then check mutual exclusion, privilege, dependency and service
// rules. Any failure in a step after validation is collected and returned
// as Errors once all checks have run.
func (c *Reconciler) Reconcile(sel Selection, rs Ruleset, priv types.Privilege) (*Resolution, error) {
	p := &pass{
		rs:      rs,
		specs:   make(map[string]field.Spec, len(rs.Fields)),
		cur:     make(map[string]validate.Value),
		user:    make(map[string]bool),
		removed: make(map[string]bool),
		reg:     c.validators,
	}
	for _, s := range rs.Fields {
		p.specs[s.Name] = s
	}

	p.validateSelection(sel.Values)
	if len(p.errs) > 0 {
		return nil, p.errs
	}

	p.applyImplications()
	if len(p.errs) > 0 {
		return nil, p.errs
	}
	p.applyOverrides()
	if rs.RequireFields {
		p.applyRequired()
	}
	p.checkMutex()
	p.checkPrivilege(priv)
	p.checkDependencies()
	p.checkServices(sel.Services, priv)
	if len(p.errs) > 0 {
		return nil, p.errs
	}

	res := &Resolution{
		Values:   p.cur,
		Services: append([]string(nil), sel.Services...),
		Warnings: p.warnings,
	}
	for _, s := range rs.Fields {
		if p.has(s.Name) {
			res.Order = append(res.Order, s.Name)
		}
	}
	return res, nil
}

// orderedKeys returns the keys of values: declared fields in declaration
// order, then anything undeclared sorted by name.
func orderedKeys(values map[string]string, fields []field.Spec) []string {
	out := make([]string, 0, len(values))
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
		if _, ok := values[f.Name]; ok {
			out = append(out, f.Name)
		}
	}
	var extra []string
	for k := range values {
		if !declared[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func (p *pass) validateSelection(values map[string]string) {
	for _, name := range orderedKeys(values, p.rs.Fields) {
		raw := values[name]
		spec, ok := p.specs[name]
		if !ok {
			p.errs = append(p.errs, &Error{
				Kind:    KindValidation,
				Fields:  []string{name},
				Rule:    "declared",
				Message: fmt.Sprintf("field %q is not declared", name),
				Err: &validate.Error{
					Field: name, Rule: "declared", Reason: validate.Undeclared,
					Message: "field is not declared",
				},
			})
			continue
		}
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if spec.Type == field.Switch {
			if on, ok := validate.ParseSwitch(raw); ok && !on {
				continue
			}
		}
		v, err := p.reg.Validate(spec, raw)
		if err != nil {
			p.errs = append(p.errs, validationError(name, err))
			continue
		}
		p.cur[name] = v
		p.user[name] = true
	}
}

func validationError(name string, err error) *Error {
	rule := "grammar"
	if ve, ok := validate.AsError(err); ok {
		rule = ve.Rule
	}
	return &Error{
		Kind:    KindValidation,
		Fields:  []string{name},
		Rule:    rule,
		Message: err.Error(),
		Err:     err,
	}
}

// applyImplications adds implied values until nothing changes. An implied
// false switch removes the target, as a false switch is never present. Each target
// is assigned by implication at most once per call, so the loop is bounded
// by the number of declared fields even if a malformed ruleset slipped past
// the manifest lint.
func (p *pass) applyImplications() {
	assigned := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, r := range p.rs.Restrictions {
			if r.Kind != Implies || !p.has(r.Field) {
				continue
			}
			for _, target := range r.Targets {
				if assigned[target] || target == r.Field {
					continue
				}
				spec, ok := p.specs[target]
				if !ok {
					p.fail(KindValidation, r.String(), []string{target}, "implied field %q is not declared", target)
					assigned[target] = true
					continue
				}
				v, err := p.reg.Validate(spec, r.ImpliedValue())
				if err != nil {
					e := validationError(target, err)
					e.Rule = r.String()
					p.errs = append(p.errs, e)
					assigned[target] = true
					continue
				}
				assigned[target] = true
				if spec.Type == field.Switch {
					if on, ok := validate.ParseSwitch(r.ImpliedValue()); ok && !on {
						if have, ok := p.cur[target]; ok {
							if p.user[target] {
								p.warn("%s: %s=%q replaced by implied value %q", r, target, have.Text, r.ImpliedValue())
							}
							delete(p.cur, target)
							changed = true
						}
						continue
					}
				}
				if have, ok := p.cur[target]; ok {
					if have.Equal(v) {
						continue
					}
					if p.user[target] {
						p.warn("%s: %s=%q replaced by implied value %q", r, target, have.Text, v.Text)
					}
				}
				p.cur[target] = v
				changed = true
			}
		}
	}
}

// applyOverrides computes every override against the post-implication
// selection first, then removes, so the result does not depend on rule order.
func (p *pass) applyOverrides() {
	var drop []string
	for _, r := range p.rs.Restrictions {
		if r.Kind != Overrides || !p.has(r.Field) {
			continue
		}
		for _, target := range r.Targets {
			if target != r.Field && p.has(target) && !p.removed[target] {
				p.removed[target] = true
				drop = append(drop, target)
				p.warn("%s: %s removed", r, target)
			}
		}
	}
	for _, name := range drop {
		delete(p.cur, name)
	}
}

// applyRequired fills defaults for absent required fields. A field whose
// mutually exclusive partner is already present is left absent, so a
// default never collides with a user choice.
func (p *pass) applyRequired() {
	for _, s := range p.rs.Fields {
		if !s.Required || p.has(s.Name) || p.removed[s.Name] {
			continue
		}
		if partner := p.mutexPartner(s.Name); partner != "" {
			p.warn("required field %s left unset: mutually exclusive with %s", s.Name, partner)
			continue
		}
		if !s.HasDefault() {
			p.fail(KindMissingRequired, "required", []string{s.Name}, "field %q is required", s.Name)
			continue
		}
		v, err := p.reg.Validate(s, string(s.Default))
		if err != nil {
			e := validationError(s.Name, err)
			e.Rule = "default"
			p.errs = append(p.errs, e)
			continue
		}
		p.cur[s.Name] = v
		p.warn("required field %s not set, using default %q", s.Name, v.Text)
	}
}

// mutexPartner returns a present field sharing a mutex group with name.
func (p *pass) mutexPartner(name string) string {
	for _, r := range p.rs.Restrictions {
		if r.Kind != MutuallyExclusive || !slices.Contains(r.Fields, name) {
			continue
		}
		for _, f := range r.Fields {
			if f != name && p.has(f) {
				return f
			}
		}
	}
	return ""
}

func (p *pass) checkMutex() {
	for _, r := range p.rs.Restrictions {
		if r.Kind != MutuallyExclusive {
			continue
		}
		var present []string
		for _, f := range r.Fields {
			if p.has(f) {
				present = append(present, f)
			}
		}
		if len(present) > 1 {
			p.fail(KindMutexViolation, r.String(), present,
				"only one of %s may be selected, got %s", strings.Join(r.Fields, ", "), strings.Join(present, ", "))
		}
	}
}

// requiredLevel parses a manifest privilege level. Unknown spellings are
// treated as root.
func requiredLevel(s string) types.Privilege {
	if lvl, ok := types.ParsePrivilege(s); ok {
		return lvl
	}
	return types.PrivilegeRoot
}

func (p *pass) checkPrivilege(priv types.Privilege) {
	for _, r := range p.rs.Restrictions {
		if r.Kind != RequiresPrivilege || !p.has(r.Field) {
			continue
		}
		need := requiredLevel(r.Level)
		if !priv.Satisfies(need) {
			p.fail(KindPrivilege, r.String(), []string{r.Field},
				"field %q requires %s privileges, running as %s", r.Field, need, priv)
		}
	}
}

func (p *pass) checkDependencies() {
	for _, r := range p.rs.Restrictions {
		if !p.has(r.Field) {
			continue
		}
		switch r.Kind {
		case Requires:
			for _, t := range r.Targets {
				if !p.has(t) {
					p.fail(KindMissingRequirement, r.String(), []string{r.Field, t},
						"field %q requires %q to be set", r.Field, t)
				}
			}
		case IncompatibleWith:
			for _, t := range r.Targets {
				if p.has(t) {
					p.fail(KindIncompatible, r.String(), []string{r.Field, t},
						"field %q cannot be used with %q", r.Field, t)
				}
			}
		case DependsOn:
			for _, t := range r.Targets {
				have, ok := p.cur[t]
				if !ok {
					p.fail(KindMissingRequirement, r.String(), []string{r.Field, t},
						"field %q requires %q to be set", r.Field, t)
					continue
				}
				if r.Value != "" && !p.matches(t, have, string(r.Value)) {
					p.fail(KindMissingRequirement, r.String(), []string{r.Field, t},
						"field %q requires %q to be %q", r.Field, t, r.Value)
				}
			}
		}
	}
}

// matches compares a present value with a rule value, by canonical form when
// the rule value passes the field's grammar.
func (p *pass) matches(name string, have validate.Value, want string) bool {
	if spec, ok := p.specs[name]; ok {
		if v, err := p.reg.Validate(spec, want); err == nil {
			return have.Equal(v)
		}
	}
	return strings.EqualFold(have.Text, want)
}

func (p *pass) checkServices(chosen []string, priv types.Privilege) {
	if len(chosen) == 0 {
		return
	}
	byID := make(map[string]Service, len(p.rs.Services))
	for _, s := range p.rs.Services {
		byID[s.ID] = s
	}
	selected := make(map[string]bool, len(chosen))
	for _, id := range chosen {
		selected[id] = true
	}
	reported := make(map[[2]string]bool)
	for _, id := range chosen {
		svc, ok := byID[id]
		if !ok {
			continue
		}
		for _, other := range svc.Incompatible {
			pair := [2]string{min(id, other), max(id, other)}
			if other != id && selected[other] && !reported[pair] {
				reported[pair] = true
				p.fail(KindIncompatible, "incompatible_services", []string{id, other},
					"service %q cannot be combined with %q", id, other)
			}
		}
		if svc.RequiresPrivilege != "" {
			need := requiredLevel(svc.RequiresPrivilege)
			if !priv.Satisfies(need) {
				p.fail(KindPrivilege, "requires_privilege", []string{id},
					"service %q requires %s privileges, running as %s", id, need, priv)
			}
		}
	}
}
