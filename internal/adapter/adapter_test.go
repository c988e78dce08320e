package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/command"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/compat"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/interact"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/manifest"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/placeholder"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/types"
)

func named(name string) Func {
	return func(context.Context, *Context) (command.Resolved, error) {
		return command.Resolved{Quoted: name}, nil
	}
}

func TestLookupOrder(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{"named adapter first", Entry{Name: "NmapAdapter", Adapter: named("adapter"), Run: named("run")}, "NmapAdapter"},
		{"name must end in Adapter", Entry{Name: "Helper", Adapter: named("adapter"), Run: named("run")}, "run"},
		{"run before execute", Entry{Run: named("run"), Execute: named("execute")}, "run"},
		{"execute before buildCommand", Entry{Execute: named("execute"), BuildCommand: named("build")}, "execute"},
		{"buildCommand last", Entry{BuildCommand: named("build")}, "buildCommand"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.Register("Tool", "cmd", tt.entry)
			_, got, err := r.Lookup("tool", "CMD")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("resolved to %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLookupMissing(t *testing.T) {
	r := NewRegistry()
	r.Register("Tool", "empty", Entry{Name: "EmptyAdapter", Path: "tools/Tool/empty_adapter"})

	_, _, err := r.Lookup("Tool", "empty")
	var me *MissingEntryPointError
	if !errors.As(err, &me) || !errors.Is(err, ErrMissingEntryPoint) {
		t.Fatalf("err = %v, want MissingEntryPointError", err)
	}
	if me.Path != "tools/Tool/empty_adapter" {
		t.Errorf("path = %q", me.Path)
	}
	if diff := cmp.Diff([]string{"EmptyAdapter", "run", "execute", "buildCommand"}, me.Tried); diff != "" {
		t.Errorf("tried mismatch (-want +got):\n%s", diff)
	}

	_, _, err = r.Lookup("Nope", "nothing")
	if !errors.As(err, &me) {
		t.Fatalf("err = %v", err)
	}
	if me.Path != "tools/Nope/nothing_adapter" {
		t.Errorf("path = %q", me.Path)
	}
}

func TestBuiltin(t *testing.T) {
	r := Builtin()
	for _, p := range [][2]string{{"Nmap", "nmap"}, {"Nmap", "ncat"}, {"Sqlmap", "sqlmap"}, {"Whois", "whois"}} {
		if _, _, err := r.Lookup(p[0], p[1]); err != nil {
			t.Errorf("%s/%s: %v", p[0], p[1], err)
		}
	}
	if _, name, _ := r.Lookup("Whois", "whois"); name != "buildCommand" {
		t.Errorf("whois resolved to %q", name)
	}
	if len(r.Pairs()) != len(builtins)+1 {
		t.Errorf("pairs = %v", r.Pairs())
	}
}

// queued answers one Collect call per entry and records the prompts.
type queued struct {
	answers  []map[string]string
	asked    [][]interact.Prompt
	services []string
	confirm  bool
}

func (q *queued) ChooseServices(context.Context, []interact.Option, bool) ([]string, error) {
	return q.services, nil
}

func (q *queued) Collect(_ context.Context, prompts []interact.Prompt) (map[string]string, error) {
	q.asked = append(q.asked, prompts)
	if len(q.answers) == 0 {
		return nil, interact.ErrNonInteractive
	}
	a := q.answers[0]
	q.answers = q.answers[1:]
	return a, nil
}

func (q *queued) Confirm(context.Context, string) (bool, error) { return q.confirm, nil }

func newContext(m *manifest.Manifest, in interact.Interaction) *Context {
	return &Context{
		Manifest:        m,
		Interaction:     in,
		Reconciler:      compat.New(nil),
		Resolver:        placeholder.New(nil),
		Privilege:       types.PrivilegeUser,
		MaxAttempts:     3,
		ConfirmHighRisk: true,
	}
}

var nmap = &manifest.Manifest{
	Tool:    "Nmap",
	Command: "nmap",
	Flags: manifest.FieldList{
		{Name: "target", Type: field.Target, Positional: true, Required: true},
		{Name: "topPorts", Type: field.Port, Kind: "count", Flag: "--top-ports"},
		{Name: "scanAllPorts", Type: field.Switch, Flag: "-p-"},
		{Name: "aggressive", Type: field.Switch, Flag: "-A"},
		{Name: "synScan", Type: field.Switch, Flag: "-sS"},
	},
	Restrictions: []compat.Restriction{
		{Kind: compat.Implies, Field: "aggressive", Targets: field.StringList{"scanAllPorts"}},
		{Kind: compat.Overrides, Field: "scanAllPorts", Targets: field.StringList{"topPorts"}},
		{Kind: compat.RequiresPrivilege, Field: "synScan", Level: "root"},
	},
}

func TestFlagAdapter(t *testing.T) {
	in := &interact.Scripted{Values: map[string]string{"target": "10.0.0.1", "aggressive": "yes", "topPorts": "100"}}
	c := newContext(nmap, in)
	got, err := FlagAdapter{}.Run(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"nmap", "-p-", "-A", "10.0.0.1"}, got.Argv); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
	if len(c.Warnings) != 1 {
		t.Errorf("warnings = %v", c.Warnings)
	}
}

func TestGatherReasksOnlyFailingFields(t *testing.T) {
	q := &queued{answers: []map[string]string{
		{"target": "10.0.0.999", "topPorts": "100", "synScan": "true"},
		{"target": "10.0.0.9"},
		{"synScan": "false"},
	}}
	c := newContext(nmap, q)
	got, err := FlagAdapter{}.Run(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"nmap", "--top-ports", "100", "10.0.0.9"}, got.Argv); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
	if len(q.asked) != 3 {
		t.Fatalf("asked %d times", len(q.asked))
	}
	if len(q.asked[1]) != 1 || q.asked[1][0].Spec.Name != "target" || q.asked[1][0].Problem == "" {
		t.Errorf("second ask = %+v", q.asked[1])
	}
	if len(q.asked[2]) != 1 || q.asked[2][0].Spec.Name != "synScan" {
		t.Errorf("third ask = %+v", q.asked[2])
	}
}

func TestGatherGivesUp(t *testing.T) {
	in := &interact.Scripted{Values: map[string]string{"target": "10.0.0.1", "synScan": "on"}}
	_, err := FlagAdapter{}.Run(context.Background(), newContext(nmap, in))
	if !errors.Is(err, compat.ErrInsufficientPrivilege) {
		t.Errorf("err = %v, want ErrInsufficientPrivilege", err)
	}
}

var ncat = &manifest.Manifest{
	ToolID:    "Nmap",
	CommandID: "ncat",
	Services: []manifest.Service{
		{
			ID: "connect",
			Placeholders: manifest.FieldList{
				{Name: "host", Type: field.Target, Kind: "host", Required: true},
				{Name: "port", Type: field.Port, Kind: "single"},
			},
			Template: manifest.TemplateSource{Tokens: []string{"ncat", "{host}", "{port}"}},
		},
		{
			ID: "listen",
			Placeholders: manifest.FieldList{
				{Name: "port", Type: field.Port, Kind: "single", Required: true},
				{Name: "exec", Type: field.Choice, Choices: []field.Option{{ID: "shell", Flag: "-e", Value: "/bin/sh", Risk: "high"}}},
			},
			Template:             manifest.TemplateSource{Text: "ncat -l {{port}} {{exec}}"},
			IncompatibleServices: field.StringList{"connect"},
		},
	},
}

func TestServicesAdapter(t *testing.T) {
	tests := []struct {
		name    string
		in      interact.Interaction
		multi   bool
		want    []string
		wantErr error
	}{
		{
			name: "connect",
			in:   &interact.Scripted{Services: []string{"connect"}, Values: map[string]string{"host": "example.com", "port": "80"}},
			want: []string{"ncat", "example.com", "80"},
		},
		{
			name: "optional port dropped",
			in:   &interact.Scripted{Services: []string{"connect"}, Values: map[string]string{"host": "example.com"}},
			want: []string{"ncat", "example.com"},
		},
		{
			name:    "unbound host",
			in:      &interact.Scripted{Services: []string{"connect"}},
			wantErr: placeholder.ErrUnbound,
		},
		{
			name:    "high risk declined",
			in:      &interact.Scripted{Services: []string{"listen"}, Values: map[string]string{"port": "4444", "exec": "shell"}},
			wantErr: ErrNotConfirmed,
		},
		{
			name: "high risk confirmed",
			in:   &interact.Scripted{Services: []string{"listen"}, Values: map[string]string{"port": "4444", "exec": "shell"}, Yes: true},
			want: []string{"ncat", "-l", "4444", "-e", "/bin/sh"},
		},
		{
			name:    "incompatible services",
			in:      &interact.Scripted{Services: []string{"connect", "listen"}, Values: map[string]string{"host": "h", "port": "1"}},
			multi:   true,
			wantErr: compat.ErrIncompatible,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ServicesAdapter{Multi: tt.multi}.Run(context.Background(), newContext(ncat, tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got.Argv); diff != "" {
				t.Errorf("argv mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnboundIsReasked(t *testing.T) {
	q := &queued{
		services: []string{"connect"},
		answers:  []map[string]string{{}, {"host": "10.1.1.1"}},
	}
	got, err := ServicesAdapter{}.Run(context.Background(), newContext(ncat, q))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ncat", "10.1.1.1"}, got.Argv); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
	if q.asked[1][0].Spec.Name != "host" {
		t.Errorf("re-asked %+v", q.asked[1])
	}
}
