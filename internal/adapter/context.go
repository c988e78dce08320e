package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/compat"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/interact"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/logger"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/manifest"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/placeholder"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/types"
)

var log = logger.New("adapter")

// ErrNotConfirmed is returned when the user declines a high-risk run.
var ErrNotConfirmed = errors.New("high-risk options not confirmed")

// Context carries everything an adapter needs for one run. It is built
// fresh for every run and never shared.
type Context struct {
	Manifest    *manifest.Manifest
	Interaction interact.Interaction
	Reconciler  *compat.Reconciler
	Resolver    *placeholder.Resolver
	Privilege   types.Privilege

	// MaxAttempts bounds how often failing fields are asked again.
	MaxAttempts int
	// ConfirmHighRisk asks before emitting high-risk choices.
	ConfirmHighRisk bool

	// Filled during the run.
	Services []string
	Warnings []string
	Asked    []interact.Prompt
}

// Check is an extra verification run on a reconciled selection. An
// *placeholder.UnboundError it returns is recoverable like a compat error.
type Check func(res *compat.Resolution) error

// Gather asks for every field of rs, reconciles, and asks again for just
// the failing fields until the selection is accepted or MaxAttempts runs
// out. Errors that name no declared field are returned immediately.
func (c *Context) Gather(ctx context.Context, rs compat.Ruleset, check Check) (*compat.Resolution, error) {
	prompts := make([]interact.Prompt, len(rs.Fields))
	for i, s := range rs.Fields {
		prompts[i] = interact.Prompt{Spec: s}
	}
	c.Asked = append(c.Asked, prompts...)
	raw, err := c.Interaction.Collect(ctx, prompts)
	if err != nil {
		return nil, err
	}
	sel := make(map[string]string, len(raw))
	for k, v := range raw {
		sel[k] = v
	}

	attempts := max(c.MaxAttempts, 1)
	for attempt := 1; ; attempt++ {
		res, err := c.Reconciler.Reconcile(compat.Selection{Values: sel, Services: c.Services}, rs, c.Privilege)
		if err == nil && check != nil {
			err = check(res)
		}
		if err == nil {
			c.Warnings = append(c.Warnings, res.Warnings...)
			return res, nil
		}

		problems := failingFields(err, rs.Fields)
		if len(problems) == 0 || attempt >= attempts {
			return nil, err
		}
		log.Debug("attempt %d rejected; asking again for %d field(s)", attempt, len(problems))

		var again []interact.Prompt
		for _, s := range rs.Fields {
			if msg, ok := problems[s.Name]; ok {
				again = append(again, interact.Prompt{Spec: s, Current: sel[s.Name], Problem: msg})
			}
		}
		answers, cerr := c.Interaction.Collect(ctx, again)
		if cerr != nil {
			if errors.Is(cerr, interact.ErrNonInteractive) {
				return nil, err
			}
			return nil, cerr
		}
		for _, p := range again {
			if v, ok := answers[p.Spec.Name]; ok {
				sel[p.Spec.Name] = v
			} else {
				delete(sel, p.Spec.Name)
			}
		}
	}
}

// failingFields maps each declared field named by err to its problems.
func failingFields(err error, fields []field.Spec) map[string]string {
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
	}
	out := make(map[string]string)
	add := func(name, msg string) {
		if !declared[name] {
			return
		}
		if prev, ok := out[name]; ok {
			out[name] = prev + "; " + msg
			return
		}
		out[name] = msg
	}

	if errs, ok := compat.AsErrors(err); ok {
		for _, e := range errs {
			for _, f := range e.Fields {
				add(f, e.Message)
			}
		}
		return out
	}
	var ue *placeholder.UnboundError
	if errors.As(err, &ue) {
		for _, n := range ue.Names {
			add(n, "a value is required")
		}
	}
	return out
}

// ChooseServices asks which services to run and records the answer.
func (c *Context) ChooseServices(ctx context.Context, multi bool) ([]string, error) {
	opts := make([]interact.Option, len(c.Manifest.Services))
	for i, s := range c.Manifest.Services {
		opts[i] = interact.Option{ID: s.ID, Label: s.DisplayLabel(), Description: s.Description}
	}
	ids, err := c.Interaction.ChooseServices(ctx, opts, multi)
	if err != nil {
		return nil, err
	}
	c.Services = ids
	return ids, nil
}

// confirmRisk asks once for every high-risk choice and scope-confirmation
// service in the run.
func (c *Context) confirmRisk(ctx context.Context, res *compat.Resolution, specs []field.Spec, scoped []string) error {
	if !c.ConfirmHighRisk {
		return nil
	}
	var risky []string
	for _, s := range specs {
		if s.Type != field.Choice {
			continue
		}
		v, ok := res.Values[s.Name]
		if !ok {
			continue
		}
		ids, _ := v.Parsed.([]string)
		for _, id := range ids {
			if ch, ok := s.FindChoice(id); ok && ch.HighRisk() {
				risky = append(risky, ch.DisplayLabel())
			}
		}
	}
	if len(risky) == 0 && len(scoped) == 0 {
		return nil
	}
	msg := "Proceed with an authorized scope?"
	if len(risky) > 0 {
		msg = "High-risk options selected (" + strings.Join(risky, ", ") + "). Do you have authorization to proceed?"
	}
	ok, err := c.Interaction.Confirm(ctx, msg)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}
