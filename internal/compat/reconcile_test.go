package compat

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/types"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/validate"
)

func nmapRules() Ruleset {
	return Ruleset{
		Fields: []field.Spec{
			{Name: "aggressive", Flag: "-A", Type: field.Switch},
			{Name: "scanAllPorts", Flag: "-p-", Type: field.Switch},
			{Name: "topPorts", Flag: "--top-ports", Type: field.Port, Kind: "count"},
			{Name: "ports", Flag: "-p", Type: field.Port},
			{Name: "syn", Flag: "-sS", Type: field.Switch},
			{Name: "connect", Flag: "-sT", Type: field.Switch},
			{Name: "udp", Flag: "-sU", Type: field.Switch},
			{Name: "osDetect", Flag: "-O", Type: field.Switch},
			{Name: "timing", Flag: "-T", Type: field.Rate, Kind: "timing"},
			{Name: "target", Type: field.Target, Positional: true},
		},
		Restrictions: []Restriction{
			{Kind: Implies, Field: "aggressive", Targets: field.StringList{"scanAllPorts"}, Value: "true"},
			{Kind: Overrides, Field: "scanAllPorts", Targets: field.StringList{"topPorts", "ports"}},
			{Kind: MutuallyExclusive, Fields: []string{"syn", "connect", "udp"}},
			{Kind: RequiresPrivilege, Field: "syn", Level: "root"},
			{Kind: RequiresPrivilege, Field: "osDetect", Level: "admin"},
		},
	}
}

func keys(r *Resolution) []string {
	return r.Order
}

func TestImplicationThenOverride(t *testing.T) {
	sel := Selection{Values: map[string]string{
		"aggressive": "true",
		"topPorts":   "100",
	}}
	res, err := Reconcile(sel, nmapRules(), types.PrivilegeUser)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if diff := cmp.Diff([]string{"aggressive", "scanAllPorts"}, keys(res)); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if got := res.Values["scanAllPorts"].Text; got != "true" {
		t.Errorf("scanAllPorts = %q, want true", got)
	}
	if res.Has("topPorts") {
		t.Error("topPorts should have been overridden")
	}
	if _, ok := sel.Values["scanAllPorts"]; ok {
		t.Error("input selection was mutated")
	}
}

func TestImplicationWinsWithWarning(t *testing.T) {
	rs := Ruleset{
		Fields: []field.Spec{
			{Name: "stealth", Type: field.Switch},
			{Name: "timing", Type: field.Rate, Kind: "timing"},
		},
		Restrictions: []Restriction{
			{Kind: Implies, Field: "stealth", Targets: field.StringList{"timing"}, Value: "1"},
		},
	}
	res, err := Reconcile(Selection{Values: map[string]string{"stealth": "yes", "timing": "4"}}, rs, types.PrivilegeUser)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Values["timing"].Text; got != "1" {
		t.Errorf("timing = %q, want implied 1", got)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "timing") {
		t.Errorf("warnings = %v, want one mentioning timing", res.Warnings)
	}

	// same value: no warning
	res, err = Reconcile(Selection{Values: map[string]string{"stealth": "yes", "timing": "sneaky"}}, rs, types.PrivilegeUser)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", res.Warnings)
	}
}

func TestImplicationChain(t *testing.T) {
	rs := Ruleset{
		Fields: []field.Spec{
			{Name: "a", Type: field.Switch},
			{Name: "b", Type: field.Switch},
			{Name: "c", Type: field.Switch},
			{Name: "d", Type: field.Switch},
		},
		// declared in reverse so the fixed point needs several sweeps
		Restrictions: []Restriction{
			{Kind: Implies, Field: "c", Targets: field.StringList{"d"}},
			{Kind: Implies, Field: "b", Targets: field.StringList{"c"}},
			{Kind: Implies, Field: "a", Targets: field.StringList{"b"}},
		},
	}
	res, err := Reconcile(Selection{Values: map[string]string{"a": "1"}}, rs, types.PrivilegeUser)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, res.Order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOverrideSuppressesImpliedField(t *testing.T) {
	rs := Ruleset{
		Fields: []field.Spec{
			{Name: "a", Type: field.Switch},
			{Name: "b", Type: field.Switch},
			{Name: "c", Type: field.Switch},
		},
		Restrictions: []Restriction{
			{Kind: Implies, Field: "a", Targets: field.StringList{"b"}},
			{Kind: Overrides, Field: "c", Targets: field.StringList{"b"}},
		},
	}
	res, err := Reconcile(Selection{Values: map[string]string{"a": "true", "c": "true"}}, rs, types.PrivilegeUser)
	if err != nil {
		t.Fatal(err)
	}
	if res.Has("b") {
		t.Error("override should suppress implied field b")
	}
}

func TestMutexViolation(t *testing.T) {
	sel := Selection{Values: map[string]string{"udp": "true", "connect": "true"}}
	_, err := Reconcile(sel, nmapRules(), types.PrivilegeRoot)
	if !errors.Is(err, ErrMutexViolation) {
		t.Fatalf("err = %v, want MutexViolation", err)
	}
	es, ok := AsErrors(err)
	if !ok || len(es) != 1 {
		t.Fatalf("want one error, got %v", err)
	}
	// declaration order of the group, not selection order
	if diff := cmp.Diff([]string{"connect", "udp"}, es[0].Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestMutexIgnoresDisabledSwitch(t *testing.T) {
	sel := Selection{Values: map[string]string{"udp": "true", "connect": "false"}}
	res, err := Reconcile(sel, nmapRules(), types.PrivilegeUser)
	if err != nil {
		t.Fatalf("false switch counted as present: %v", err)
	}
	if res.Has("connect") {
		t.Error("false switch should be absent")
	}
}

func TestImpliedFalseSwitchIsAbsent(t *testing.T) {
	rs := Ruleset{
		Fields: []field.Spec{
			{Name: "quiet", Flag: "-q", Type: field.Switch},
			{Name: "verbose", Flag: "-v", Type: field.Switch},
		},
		Restrictions: []Restriction{
			{Kind: Implies, Field: "quiet", Targets: field.StringList{"verbose"}, Value: "false"},
			{Kind: MutuallyExclusive, Fields: []string{"quiet", "verbose"}},
			{Kind: RequiresPrivilege, Field: "verbose", Level: "root"},
		},
	}
	tests := []struct {
		name     string
		values   map[string]string
		warnings int
	}{
		{"not selected", map[string]string{"quiet": "true"}, 0},
		{"user selected", map[string]string{"quiet": "true", "verbose": "yes"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Reconcile(Selection{Values: tt.values}, rs, types.PrivilegeUser)
			if err != nil {
				t.Fatalf("implied false switch counted as present: %v", err)
			}
			if diff := cmp.Diff([]string{"quiet"}, keys(res)); diff != "" {
				t.Errorf("keys mismatch (-want +got):\n%s", diff)
			}
			if len(res.Warnings) != tt.warnings {
				t.Errorf("warnings = %q, want %d", res.Warnings, tt.warnings)
			}
		})
	}
}

func TestPrivilege(t *testing.T) {
	sel := Selection{Values: map[string]string{"syn": "true", "osDetect": "true"}}
	_, err := Reconcile(sel, nmapRules(), types.PrivilegeUser)
	if !errors.Is(err, ErrInsufficientPrivilege) {
		t.Fatalf("err = %v, want InsufficientPrivilege", err)
	}
	es, _ := AsErrors(err)
	if diff := cmp.Diff([]string{"syn", "osDetect"}, es.Fields()); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if _, err := Reconcile(sel, nmapRules(), types.PrivilegeRoot); err != nil {
		t.Errorf("root should pass: %v", err)
	}
}

func TestValidationCollectsAll(t *testing.T) {
	sel := Selection{Values: map[string]string{
		"ports":   "70000",
		"timing":  "9",
		"target":  "300.1.1.1",
		"unknown": "x",
	}}
	_, err := Reconcile(sel, nmapRules(), types.PrivilegeRoot)
	es, ok := AsErrors(err)
	if !ok {
		t.Fatalf("want Errors, got %v", err)
	}
	if diff := cmp.Diff([]string{"ports", "timing", "target", "unknown"}, es.Fields()); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	for _, e := range es {
		if !errors.Is(e, validate.ErrValidation) {
			t.Errorf("%v does not unwrap to validate.ErrValidation", e)
		}
		if e.Rule == "" {
			t.Errorf("%v has no rule", e)
		}
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("aggregate should match ErrValidation")
	}
}

func TestDependencyRules(t *testing.T) {
	rs := Ruleset{
		Fields: []field.Spec{
			{Name: "cert", Type: field.SSLParam, Kind: "cert"},
			{Name: "key", Type: field.SSLParam, Kind: "cert"},
			{Name: "ssl", Type: field.Switch},
			{Name: "sslVerify", Type: field.Switch},
			{Name: "udp", Type: field.Switch},
			{Name: "listen", Type: field.Switch},
			{Name: "method", Type: field.HTTPParam},
			{Name: "data", Type: field.HTTPParam, Kind: "data"},
		},
		Restrictions: []Restriction{
			{Kind: Requires, Field: "cert", Targets: field.StringList{"key"}},
			{Kind: Requires, Field: "sslVerify", Targets: field.StringList{"ssl"}},
			{Kind: IncompatibleWith, Field: "udp", Targets: field.StringList{"ssl"}},
			{Kind: DependsOn, Field: "data", Targets: field.StringList{"method"}, Value: "POST"},
		},
	}
	tests := []struct {
		name     string
		values   map[string]string
		wantKind ErrorKind
	}{
		{"requires ok", map[string]string{"cert": "c.pem", "key": "k.pem"}, ""},
		{"requires missing", map[string]string{"cert": "c.pem"}, KindMissingRequirement},
		{"parent missing", map[string]string{"sslVerify": "on"}, KindMissingRequirement},
		{"incompatible", map[string]string{"udp": "1", "ssl": "1"}, KindIncompatible},
		{"depends on value ok", map[string]string{"data": "a=1", "method": "post"}, ""},
		{"depends on wrong value", map[string]string{"data": "a=1", "method": "GET"}, KindMissingRequirement},
		{"depends on absent", map[string]string{"data": "a=1"}, KindMissingRequirement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reconcile(Selection{Values: tt.values}, rs, types.PrivilegeUser)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			es, ok := AsErrors(err)
			if !ok || len(es.OfKind(tt.wantKind)) == 0 {
				t.Fatalf("want %s, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestRequiredFields(t *testing.T) {
	rs := Ruleset{
		Fields: []field.Spec{
			{Name: "target", Type: field.Target, Required: true},
			{Name: "format", Type: field.Format, Required: true, Default: "json"},
		},
		RequireFields: true,
	}
	_, err := Reconcile(Selection{}, rs, types.PrivilegeUser)
	if !errors.Is(err, ErrMissingRequired) {
		t.Fatalf("err = %v, want MissingRequired", err)
	}
	res, err := Reconcile(Selection{Values: map[string]string{"target": "10.0.0.1"}}, rs, types.PrivilegeUser)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Values["format"].Text; got != "json" {
		t.Errorf("format = %q, want default json", got)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("want one default warning, got %v", res.Warnings)
	}

	// without RequireFields, required-ness is left to the caller
	rs.RequireFields = false
	if _, err := Reconcile(Selection{}, rs, types.PrivilegeUser); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequiredDefaultYieldsToMutexPartner(t *testing.T) {
	rs := Ruleset{
		Fields: []field.Spec{
			{Name: "connect", Flag: "-sT", Type: field.Switch, Required: true, Default: "true"},
			{Name: "syn", Flag: "-sS", Type: field.Switch},
			{Name: "target", Type: field.Target, Positional: true, Required: true},
		},
		Restrictions: []Restriction{
			{Kind: MutuallyExclusive, Fields: []string{"connect", "syn"}},
		},
		RequireFields: true,
	}
	res, err := Reconcile(Selection{Values: map[string]string{"syn": "true", "target": "h"}}, rs, types.PrivilegeRoot)
	if err != nil {
		t.Fatalf("default collided with user choice: %v", err)
	}
	if diff := cmp.Diff([]string{"syn", "target"}, keys(res)); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "connect") {
		t.Errorf("warnings = %q", res.Warnings)
	}

	res, err = Reconcile(Selection{Values: map[string]string{"target": "h"}}, rs, types.PrivilegeRoot)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Has("connect") {
		t.Error("default should apply when no partner is selected")
	}
}

func TestServiceRules(t *testing.T) {
	rs := Ruleset{
		Services: []Service{
			{ID: "syn_scan", Incompatible: []string{"connect_scan"}, RequiresPrivilege: "root"},
			{ID: "connect_scan", Incompatible: []string{"syn_scan"}},
			{ID: "version"},
		},
	}
	_, err := Reconcile(Selection{Services: []string{"syn_scan", "connect_scan"}}, rs, types.PrivilegeUser)
	es, ok := AsErrors(err)
	if !ok {
		t.Fatalf("want Errors, got %v", err)
	}
	if n := len(es.OfKind(KindIncompatible)); n != 1 {
		t.Errorf("incompatible errors = %d, want 1 (symmetric rules reported once)", n)
	}
	if n := len(es.OfKind(KindPrivilege)); n != 1 {
		t.Errorf("privilege errors = %d, want 1", n)
	}
	res, err := Reconcile(Selection{Services: []string{"syn_scan", "version"}}, rs, types.PrivilegeRoot)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"syn_scan", "version"}, res.Services); diff != "" {
		t.Errorf("services mismatch (-want +got):\n%s", diff)
	}
}

func TestRestrictionString(t *testing.T) {
	tests := []struct {
		r    Restriction
		want string
	}{
		{Restriction{Kind: Implies, Field: "aggressive", Targets: field.StringList{"scanAllPorts"}}, "implies(aggressive -> scanAllPorts=true)"},
		{Restriction{Kind: Overrides, Field: "a", Targets: field.StringList{"b", "c"}}, "overrides(a overrides b, c)"},
		{Restriction{Kind: MutuallyExclusive, Name: "scan type", Fields: []string{"a", "b"}}, "scan type{a, b}"},
		{Restriction{Kind: RequiresPrivilege, Field: "syn", Level: "root"}, "requiresPrivilege(syn, root)"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
