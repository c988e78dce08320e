// Package adapter maps (tool, command) pairs to the code that turns a
// loaded manifest and a user's answers into a resolved command.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/command"
)

// ErrMissingEntryPoint matches every *MissingEntryPointError.
var ErrMissingEntryPoint = errors.New("missing adapter entry point")

// MissingEntryPointError is returned when nothing runnable is registered
// for a tool/command pair. It is fatal for that pair.
type MissingEntryPointError struct {
	Tool    string
	Command string
	Path    string
	Tried   []string
}

func (e *MissingEntryPointError) Error() string {
	return fmt.Sprintf("no entry point for %s/%s in %s (tried %s)",
		e.Tool, e.Command, e.Path, strings.Join(e.Tried, ", "))
}

func (e *MissingEntryPointError) Is(target error) bool { return target == ErrMissingEntryPoint }

// Adapter produces the resolved command for one run.
type Adapter interface {
	Run(ctx context.Context, c *Context) (command.Resolved, error)
}

// Func adapts a plain function to Adapter.
type Func func(ctx context.Context, c *Context) (command.Resolved, error)

func (f Func) Run(ctx context.Context, c *Context) (command.Resolved, error) { return f(ctx, c) }

// Entry is what a tool/command pair registers. A named adapter (Name
// ending in "Adapter") takes priority; otherwise the entry points are tried
// in the order Run, Execute, BuildCommand.
type Entry struct {
	// Path identifies where the adapter lives, for diagnostics.
	Path         string
	Name         string
	Adapter      Adapter
	Run          Func
	Execute      Func
	BuildCommand Func
}

// EntryPointNames lists the entry points tried after a named adapter.
var EntryPointNames = []string{"run", "execute", "buildCommand"}

// resolve picks the adapter an entry provides and the name it is known by.
func (e Entry) resolve() (Adapter, string, bool) {
	if e.Adapter != nil && strings.HasSuffix(e.Name, "Adapter") {
		return e.Adapter, e.Name, true
	}
	for i, fn := range []Func{e.Run, e.Execute, e.BuildCommand} {
		if fn != nil {
			return fn, EntryPointNames[i], true
		}
	}
	return nil, "", false
}

func (e Entry) tried() []string {
	var out []string
	if e.Name != "" {
		out = append(out, e.Name)
	} else {
		out = append(out, "*Adapter")
	}
	return append(out, EntryPointNames...)
}

type pair struct {
	tool    string
	command string
}

// Registry holds the registered entries. Lookups are case-insensitive.
type Registry struct {
	mu      sync.RWMutex
	entries map[pair]Entry
	names   map[pair][2]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[pair]Entry),
		names:   make(map[pair][2]string),
	}
}

func key(tool, cmd string) pair {
	return pair{strings.ToLower(tool), strings.ToLower(cmd)}
}

// Register installs e for tool/command, replacing any previous entry.
func (r *Registry) Register(tool, cmd string, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(tool, cmd)
	if e.Path == "" {
		e.Path = DefaultPath(tool, cmd)
	}
	r.entries[k] = e
	r.names[k] = [2]string{tool, cmd}
}

// DefaultPath is the conventional adapter location for tool/command.
func DefaultPath(tool, cmd string) string {
	return path.Join("tools", tool, strings.ToLower(cmd)+"_adapter")
}

// Lookup returns the adapter for tool/command and the entry point name it
// resolved to.
func (r *Registry) Lookup(tool, cmd string) (Adapter, string, error) {
	r.mu.RLock()
	e, ok := r.entries[key(tool, cmd)]
	r.mu.RUnlock()
	if !ok {
		return nil, "", &MissingEntryPointError{
			Tool:    tool,
			Command: cmd,
			Path:    DefaultPath(tool, cmd),
			Tried:   Entry{}.tried(),
		}
	}
	a, name, ok := e.resolve()
	if !ok {
		return nil, "", &MissingEntryPointError{Tool: tool, Command: cmd, Path: e.Path, Tried: e.tried()}
	}
	log.Debug("%s/%s resolved to %s (%s)", tool, cmd, name, e.Path)
	return a, name, nil
}

// Pairs returns every registered tool/command pair as "Tool/command",
// sorted.
func (r *Registry) Pairs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, n[0]+"/"+n[1])
	}
	sort.Strings(out)
	return out
}
