package adapter

import (
	"context"
	"fmt"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/command"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/compat"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/manifest"
)

// FlagAdapter builds commands from flag-shaped manifests.
type FlagAdapter struct{}

func (FlagAdapter) Run(ctx context.Context, c *Context) (command.Resolved, error) {
	m := c.Manifest
	if m.Shape() != manifest.ShapeFlags {
		return command.Resolved{}, &command.BuildError{Reason: fmt.Sprintf("%s is not a flag manifest", m.Path)}
	}
	res, err := c.Gather(ctx, m.Ruleset(nil), nil)
	if err != nil {
		return command.Resolved{}, err
	}
	return command.FromFlags(m.BinaryName(), m.Flags, res.Values)
}

// ServicesAdapter builds commands from services-shaped manifests. With
// Multi set several services may be combined into one command line.
type ServicesAdapter struct {
	Multi bool
}

func (a ServicesAdapter) Run(ctx context.Context, c *Context) (command.Resolved, error) {
	m := c.Manifest
	if m.Shape() != manifest.ShapeServices {
		return command.Resolved{}, &command.BuildError{Reason: fmt.Sprintf("%s is not a services manifest", m.Path)}
	}
	ids, err := c.ChooseServices(ctx, a.Multi)
	if err != nil {
		return command.Resolved{}, err
	}

	var (
		binary string
		args   []string
		scoped []string
	)
	rs := m.Ruleset(ids)
	check := func(res *compat.Resolution) error {
		binary, args, scoped = "", nil, nil
		for _, id := range ids {
			svc, _ := m.Service(id)
			tpl, err := svc.Template.Parse()
			if err != nil {
				return err
			}
			toks, err := c.Resolver.Resolve(tpl, res.Values, svc.Placeholders)
			if err != nil {
				return err
			}
			toks, bin, err := splitBinary(m, toks)
			if err != nil {
				return err
			}
			if binary == "" {
				binary = bin
			}
			args = append(args, toks...)
			if svc.RequiresScopeConfirmation {
				scoped = append(scoped, id)
			}
		}
		return nil
	}
	res, err := c.Gather(ctx, rs, check)
	if err != nil {
		return command.Resolved{}, err
	}
	if err := c.confirmRisk(ctx, res, rs.Fields, scoped); err != nil {
		return command.Resolved{}, err
	}
	return command.Build(binary, args)
}

// splitBinary separates the program from a resolved template. A manifest
// binary wins; a template that repeats it has the copy dropped.
func splitBinary(m *manifest.Manifest, toks []string) ([]string, string, error) {
	if m.Binary != "" {
		if len(toks) > 0 && toks[0] == m.Binary {
			toks = toks[1:]
		}
		return toks, m.Binary, nil
	}
	if len(toks) == 0 {
		return nil, "", &command.BuildError{Reason: "template resolved to nothing"}
	}
	return toks[1:], toks[0], nil
}

// Auto dispatches on the manifest shape.
type Auto struct {
	MultiService bool
}

func (a Auto) Run(ctx context.Context, c *Context) (command.Resolved, error) {
	if c.Manifest.Shape() == manifest.ShapeServices {
		return ServicesAdapter{Multi: a.MultiService}.Run(ctx, c)
	}
	return FlagAdapter{}.Run(ctx, c)
}

// builtins lists the tools shipped with adapters.
var builtins = []struct {
	tool, command, name string
	multi               bool
}{
	{"Nmap", "nmap", "NmapAdapter", true},
	{"Nmap", "ncat", "NcatAdapter", false},
	{"Nmap", "nping", "NpingAdapter", false},
	{"Masscan", "masscan", "MasscanAdapter", false},
	{"Sqlmap", "sqlmap", "SqlmapAdapter", false},
	{"Ffuf", "ffuf", "FfufAdapter", false},
}

// Builtin returns a registry with every shipped adapter registered.
func Builtin() *Registry {
	r := NewRegistry()
	for _, b := range builtins {
		r.Register(b.tool, b.command, Entry{Name: b.name, Adapter: Auto{MultiService: b.multi}})
	}
	// whois has no adapter of its own; its module-level entry point builds
	// the command.
	r.Register("Whois", "whois", Entry{BuildCommand: Auto{}.Run})
	return r
}
