// Package engine threads one build through its stages: load the manifest,
// find the adapter, collect and reconcile answers, resolve placeholders and
// build the command.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/adapter"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/command"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/compat"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/config"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/interact"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/logger"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/manifest"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/placeholder"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/types"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/validate"
)

var log = logger.New("engine")

// Result is the outcome of a successful build.
type Result struct {
	Tool        string           `json:"tool"`
	Command     command.Resolved `json:"command"`
	Services    []string         `json:"services,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`
	Description string           `json:"description"`
}

// Engine owns the long-lived collaborators. Build may be called from
// several goroutines; each call works on its own adapter.Context.
type Engine struct {
	cfg        config.Config
	validators *validate.Registry
	registry   *adapter.Registry
	privilege  types.Privilege
	loader     *manifest.Loader
	catalog    *manifest.Catalog
	reconciler *compat.Reconciler
	resolver   *placeholder.Resolver

	watchMu sync.Mutex
	watcher *manifest.Watcher
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry replaces the built-in adapter registry.
func WithRegistry(r *adapter.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithValidators replaces the default validator registry.
func WithValidators(v *validate.Registry) Option {
	return func(e *Engine) { e.validators = v }
}

// WithPrivilege fixes the privilege level instead of reading it from cfg.
func WithPrivilege(p types.Privilege) Option {
	return func(e *Engine) { e.privilege = p }
}

// New creates an engine from a validated config. The config is copied.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: *cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.validators == nil {
		e.validators = validate.Default()
	}
	if e.registry == nil {
		e.registry = adapter.Builtin()
	}
	if e.privilege == "" {
		e.privilege = e.cfg.Privilege()
	}

	loader, err := manifest.NewLoader(e.cfg.Manifests.Dir, e.cfg.Manifests.SchemaConstraint, e.validators)
	if err != nil {
		return nil, err
	}
	e.loader = loader
	e.catalog = manifest.NewCatalog(loader.Dir())
	e.reconciler = compat.New(e.validators)
	e.resolver = placeholder.New(e.validators)

	log.Debug("manifests in %s, running as %s", loader.Dir(), e.privilege)
	return e, nil
}

// Privilege returns the level reconciliation checks against.
func (e *Engine) Privilege() types.Privilege { return e.privilege }

// Registry returns the adapter registry.
func (e *Engine) Registry() *adapter.Registry { return e.registry }

// Dir returns the manifest root directory.
func (e *Engine) Dir() string { return e.cfg.Manifests.Dir }

// Validators returns the validator registry.
func (e *Engine) Validators() *validate.Registry { return e.validators }

// Manifest loads the manifest for tool/command.
func (e *Engine) Manifest(tool, cmd string) (*manifest.Manifest, error) {
	return e.loader.Load(tool, cmd)
}

// List returns the catalog entries matching pattern.
func (e *Engine) List(pattern string) ([]manifest.Entry, error) {
	return e.catalog.Entries(pattern)
}

// unused is implemented by interactions that can report preset answers no
// prompt asked for.
type unused interface {
	Unused(asked []interact.Prompt) []string
}

// Build runs the pipeline for tool/command. Invalid manifests and missing
// adapters fail before anything is asked. Recoverable answer problems are
// asked again up to engine.max_attempts times; what remains is returned.
func (e *Engine) Build(ctx context.Context, tool, cmd string, in interact.Interaction) (*Result, error) {
	m, err := e.loader.Load(tool, cmd)
	if err != nil {
		return nil, err
	}
	a, entry, err := e.registry.Lookup(m.ToolName(), m.CommandName())
	if err != nil {
		return nil, err
	}
	l := log.With(m.ToolName() + "/" + m.CommandName())
	l.Debug("using %s", entry)

	c := &adapter.Context{
		Manifest:        m,
		Interaction:     in,
		Reconciler:      e.reconciler,
		Resolver:        e.resolver,
		Privilege:       e.privilege,
		MaxAttempts:     e.cfg.Engine.MaxAttempts,
		ConfirmHighRisk: e.cfg.Engine.ConfirmHighRisk,
	}
	resolved, err := a.Run(ctx, c)
	if err != nil {
		return nil, err
	}

	warnings := c.Warnings
	if u, ok := in.(unused); ok {
		for _, name := range u.Unused(c.Asked) {
			warnings = append(warnings, fmt.Sprintf("value for %s was never asked for and is ignored", name))
		}
	}
	for _, w := range warnings {
		l.Warn("%s", w)
	}
	return &Result{
		Tool:        m.ToolName() + "/" + m.CommandName(),
		Command:     resolved,
		Services:    c.Services,
		Warnings:    warnings,
		Description: resolved.Describe(),
	}, nil
}

// Report is the check result for one catalog entry.
type Report struct {
	Entry   manifest.Entry      `json:"entry"`
	Adapter string              `json:"adapter,omitempty"`
	Lint    manifest.LintResult `json:"lint"`
	Err     error               `json:"-"`
}

// OK reports whether the entry loaded and has an adapter.
func (r Report) OK() bool { return r.Err == nil }

// Check loads every manifest matching pattern, bypassing the cache, and
// resolves its adapter.
func (e *Engine) Check(pattern string) ([]Report, error) {
	entries, err := e.catalog.Entries(pattern)
	if err != nil {
		return nil, err
	}
	linter := manifest.NewLinter(e.validators)
	reports := make([]Report, 0, len(entries))
	for _, ent := range entries {
		r := Report{Entry: ent}
		m, err := e.loader.LoadFile(ent.Path)
		if err != nil {
			r.Err = err
			reports = append(reports, r)
			continue
		}
		r.Lint = linter.Lint(m)
		if _, name, err := e.registry.Lookup(m.ToolName(), m.CommandName()); err != nil {
			r.Err = err
		} else {
			r.Adapter = name
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Lint checks one manifest file outside the catalog.
func (e *Engine) Lint(path string) (*manifest.Manifest, manifest.LintResult, error) {
	m, err := e.loader.LoadFile(path)
	if err != nil {
		return nil, manifest.LintResult{}, err
	}
	return m, manifest.NewLinter(e.validators).Lint(m), nil
}

// Watch invalidates cached manifests when files under the manifest
// directory change, and then calls onReload with the changed paths. It
// does nothing unless manifests.watch is set. The watch ends with ctx or
// Close. onReload may be nil.
func (e *Engine) Watch(ctx context.Context, onReload func(paths []string)) error {
	if !e.cfg.Manifests.Watch {
		return nil
	}
	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	if e.watcher != nil {
		return nil
	}
	w, err := manifest.NewWatcher(e.loader, 0)
	if err != nil {
		return err
	}
	w.OnReload = onReload
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return fmt.Errorf("watch %s: %w", e.cfg.Manifests.Dir, err)
	}
	e.watcher = w
	return nil
}

// Close stops the watcher, if any.
func (e *Engine) Close() error {
	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	if e.watcher == nil {
		return nil
	}
	err := e.watcher.Stop()
	e.watcher = nil
	return err
}
