package interact

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

func TestScriptedChooseServices(t *testing.T) {
	ctx := context.Background()
	opts := []Option{{ID: "connect"}, {ID: "listen"}}

	tests := []struct {
		name     string
		preset   []string
		options  []Option
		multi    bool
		want     []string
		wantErr  bool
		nonInter bool
	}{
		{"preset", []string{"listen"}, opts, false, []string{"listen"}, false, false},
		{"single option", nil, opts[:1], false, []string{"connect"}, false, false},
		{"needs a choice", nil, opts, false, nil, true, true},
		{"too many", []string{"connect", "listen"}, opts, false, nil, true, false},
		{"multi", []string{"connect", "listen"}, opts, true, []string{"connect", "listen"}, false, false},
		{"unknown", []string{"ghost"}, opts, false, nil, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Scripted{Services: tt.preset}
			got, err := s.ChooseServices(ctx, tt.options, tt.multi)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.nonInter && !errors.Is(err, ErrNonInteractive) {
				t.Errorf("err = %v, want ErrNonInteractive", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScriptedCollect(t *testing.T) {
	s := &Scripted{Values: map[string]string{"port": "22", "extra": "x"}}
	prompts := []Prompt{{Spec: field.Spec{Name: "port"}}, {Spec: field.Spec{Name: "host"}}}

	got, err := s.Collect(context.Background(), prompts)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]string{"port": "22"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"extra"}, s.Unused(prompts)); diff != "" {
		t.Errorf("Unused mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Collect(context.Background(), []Prompt{{Spec: field.Spec{Name: "port"}, Problem: "out of range"}})
	if !errors.Is(err, ErrNonInteractive) {
		t.Errorf("re-ask err = %v, want ErrNonInteractive", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Collect(ctx, prompts); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v", err)
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments([]string{"port=22", "args=a=b", "empty=", "port=80"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"port": "80", "args": "a=b", "empty": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"noequals", "=value", " =x"} {
		if _, err := ParseAssignments([]string{bad}); err == nil {
			t.Errorf("ParseAssignments(%q) should fail", bad)
		}
	}
}
