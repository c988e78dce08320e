package placeholder

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/command"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/validate"
)

func mustParse(t *testing.T, s string) Template {
	t.Helper()
	tpl, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return tpl
}

func TestParse(t *testing.T) {
	tpl := mustParse(t, `ncat {{mode}} -p {port} --proxy-auth=user:{{pass}} 'literal {{x}}'`)
	if diff := cmp.Diff([]string{"mode", "port", "pass", "x"}, tpl.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	if bin, err := tpl.Binary(); err != nil || bin != "ncat" {
		t.Errorf("Binary() = %q, %v", bin, err)
	}
	want := Token{{Literal: "--proxy-auth=user:"}, {Name: "pass"}}
	if diff := cmp.Diff(want, tpl.Tokens[4]); diff != "" {
		t.Errorf("token mismatch (-want +got):\n%s", diff)
	}
	if _, ok := tpl.Tokens[1].Whole(); !ok {
		t.Errorf("{{mode}} should be a whole-token reference")
	}

	if _, err := Parse("nmap $(id)"); !errors.Is(err, command.ErrBuild) {
		t.Errorf("Parse with substitution: err = %v, want ErrBuild", err)
	}
	if _, err := ParseTokens([]string{"{{bin}}", "x"}).Binary(); err == nil {
		t.Errorf("Binary() should reject a leading placeholder")
	}
}

func TestResolveScenario(t *testing.T) {
	specs := []field.Spec{
		{Name: "port", Type: field.Port, Required: true},
		{Name: "target", Type: field.Target, Required: true},
	}
	values := map[string]validate.Value{
		"port":   {Text: "22"},
		"target": {Text: "10.0.0.1"},
	}
	args, err := Resolve(mustParse(t, "nmap -p {{port}} {{target}}"), values, specs)
	if err != nil {
		t.Fatal(err)
	}
	got, err := command.Build(args[0], args[1:])
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"nmap", "-p", "22", "10.0.0.1"}, got.Argv); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
	if got.Quoted != "nmap -p 22 10.0.0.1" {
		t.Errorf("quoted = %q", got.Quoted)
	}
}

func TestResolve(t *testing.T) {
	specs := []field.Spec{
		{Name: "host", Type: field.Target, Kind: "host", Required: true},
		{Name: "port", Type: field.Port, Kind: "single", Required: true},
		{Name: "wait", Type: field.Time, Flag: "-w"},
		{Name: "timeout", Type: field.Time, Kind: "timeout", Flag: "--timeout", Default: "5s"},
		{Name: "udp", Type: field.Switch, Flag: "-u"},
		{Name: "verbose", Type: field.Switch, Flag: "-v", Default: "true"},
		{Name: "mode", Type: field.Choice, Choices: []field.Option{
			{ID: "listen", Flag: "-l"},
			{ID: "exec", Flag: "-e", Value: "/bin/sh", Risk: "high"},
		}},
		{Name: "user", Type: field.FreeText},
		{Name: "badDefault", Type: field.Port, Default: "99999"},
	}
	tpl := mustParse(t, "ncat {{mode}} {{udp}} {{verbose}} {{wait}} {{timeout}} --proxy-auth={{user}}:x {{host}} {{port}}")

	tests := []struct {
		name    string
		tpl     Template
		values  map[string]validate.Value
		want    []string
		wantErr error
		unbound []string
	}{
		{
			name: "all present",
			tpl:  tpl,
			values: map[string]validate.Value{
				"host": {Text: "example.com"},
				"port": {Text: "4444"},
				"wait": {Text: "2s"},
				"udp":  {Text: "true"},
				"user": {Text: "bob"},
				"mode": {Text: "listen", Parsed: []string{"listen"}},
			},
			want: []string{"ncat", "-l", "-u", "-v", "-w", "2s", "--timeout", "5s", "--proxy-auth=bob:x", "example.com", "4444"},
		},
		{
			name: "optional tokens dropped",
			tpl:  tpl,
			values: map[string]validate.Value{
				"host": {Text: "example.com"},
				"port": {Text: "4444"},
			},
			want: []string{"ncat", "-v", "--timeout", "5s", "example.com", "4444"},
		},
		{
			name:    "every unbound name reported",
			tpl:     tpl,
			values:  map[string]validate.Value{},
			wantErr: ErrUnbound,
			unbound: []string{"host", "port"},
		},
		{
			name:    "undeclared placeholder",
			tpl:     mustParse(t, "ncat {{nope}}"),
			wantErr: command.ErrBuild,
		},
		{
			name:    "invalid default",
			tpl:     mustParse(t, "ncat {{badDefault}}"),
			wantErr: command.ErrBuild,
		},
		{
			name:   "hostile value stays one token",
			tpl:    mustParse(t, "ncat {{host}} {{port}}"),
			values: map[string]validate.Value{"host": {Text: "a b;$(id)"}, "port": {Text: "1"}},
			want:   []string{"ncat", "a b;$(id)", "1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.tpl, tt.values, specs)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if tt.unbound != nil {
					var ue *UnboundError
					if !errors.As(err, &ue) {
						t.Fatalf("err is %T, want *UnboundError", err)
					}
					if diff := cmp.Diff(tt.unbound, ue.Names); diff != "" {
						t.Errorf("unbound mismatch (-want +got):\n%s", diff)
					}
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
