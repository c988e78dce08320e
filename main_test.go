package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/engine"
)

func TestParseArgsInterspersed(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantPos []string
		wantSet []string
		wantYes bool
	}{
		{"flags after target", []string{"Nmap/nmap", "--set", "a=1", "--yes"}, []string{"Nmap/nmap"}, []string{"a=1"}, true},
		{"flags before target", []string{"--set=a=1", "Nmap", "nmap"}, []string{"Nmap", "nmap"}, []string{"a=1"}, false},
		{"mixed", []string{"--set", "a=1", "Nmap/nmap", "--set", "b=2"}, []string{"Nmap/nmap"}, []string{"a=1", "b=2"}, false},
		{"none", nil, nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			var sets stringList
			fs.Var(&sets, "set", "")
			yes := fs.Bool("yes", false, "")

			pos, err := parseArgs(fs, tt.args)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.wantPos, pos); diff != "" {
				t.Errorf("positionals (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantSet, []string(sets)); diff != "" {
				t.Errorf("--set (-want +got):\n%s", diff)
			}
			if *yes != tt.wantYes {
				t.Errorf("--yes = %v", *yes)
			}
		})
	}
}

func TestSplitTarget(t *testing.T) {
	tests := []struct {
		pos       []string
		tool, cmd string
		wantErr   bool
	}{
		{[]string{"Nmap/nmap"}, "Nmap", "nmap", false},
		{[]string{"Nmap", "ncat"}, "Nmap", "ncat", false},
		{[]string{"Nmap"}, "", "", true},
		{[]string{"/nmap"}, "", "", true},
		{nil, "", "", true},
		{[]string{"a", "b", "c"}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.pos, " "), func(t *testing.T) {
			tool, cmd, err := splitTarget(tt.pos)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tool != tt.tool || cmd != tt.cmd {
				t.Errorf("got %q %q, want %q %q", tool, cmd, tt.tool, tt.cmd)
			}
		})
	}
}

var fixtures = map[string]string{
	"Nmap/nmap.yaml": `
tool: Nmap
command: nmap
description: network mapper
flags:
  - {name: target, type: target, positional: true, required: true}
  - {name: scanAllPorts, flag: -p-, type: switch}
  - {name: aggressive, flag: -A, type: switch}
  - {name: fast, flag: -F, type: switch}
  - {name: slow, flag: -T1, type: switch}
restrictions:
  - {kind: implies, field: aggressive, targets: scanAllPorts}
  - {kind: mutuallyExclusiveGroup, fields: [fast, slow]}
`,
	"Nmap/ncat.yaml": `
tool_id: Nmap
command_id: ncat
services:
  - id: connect
    placeholders:
      host: {type: host, required: true}
      port: {type: port_optional}
    command_template: "ncat {host} {port}"
  - id: listen
    placeholders:
      port: {type: port, required: true}
    command_template: "ncat -l {port}"
`,
	"Broken/broken.yaml": `
tool: Broken
command: broken
flags: 3
`,
}

// cli runs the CLI against a temporary manifest tree.
func cli(t *testing.T, withBroken bool, args ...string) (int, string) {
	t.Helper()
	dir := t.TempDir()
	for path, body := range fixtures {
		if !withBroken && strings.HasPrefix(path, "Broken/") {
			continue
		}
		p := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("AUTOBOT_MANIFEST_DIR", dir)
	t.Setenv("NO_COLOR", "1")

	var stdout bytes.Buffer
	full := append([]string{args[0], "--config", filepath.Join(dir, "missing.yaml"), "--no-color"}, args[1:]...)
	code := newApp(&stdout, io.Discard).run(context.Background(), full)
	return code, stdout.String()
}

func TestRunBuild(t *testing.T) {
	code, out := cli(t, false, "build", "Nmap/nmap", "--set", "target=10.0.0.1", "--set", "aggressive=yes", "--privilege", "user")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if got := strings.TrimSpace(out); got != "nmap -p- -A 10.0.0.1" {
		t.Errorf("command = %q", got)
	}
}

func TestRunBuildJSON(t *testing.T) {
	code, out := cli(t, false, "build", "Nmap", "ncat", "--service", "listen", "--set", "port=4444", "--json")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	var res engine.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if diff := cmp.Diff([]string{"ncat", "-l", "4444"}, res.Command.Argv); diff != "" {
		t.Errorf("argv (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"listen"}, res.Services); diff != "" {
		t.Errorf("services (-want +got):\n%s", diff)
	}
}

func TestRunBuildFailures(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"mutex", []string{"build", "Nmap/nmap", "--set", "target=h", "--set", "fast=yes", "--set", "slow=yes"}, 1},
		{"bad assignment", []string{"build", "Nmap/nmap", "--set", "target"}, 2},
		{"no target", []string{"build"}, 2},
		{"unknown tool", []string{"build", "Nope/nope", "--no-input"}, 1},
		{"unbound", []string{"build", "Nmap/ncat", "--service", "connect"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := cli(t, false, tt.args...); code != tt.want {
				t.Errorf("exit %d, want %d", code, tt.want)
			}
		})
	}
}

func TestRunList(t *testing.T) {
	code, out := cli(t, false, "list", "--json")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	var entries []struct {
		Tool    string `json:"tool"`
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Tool+"/"+e.Command)
	}
	if diff := cmp.Diff([]string{"Nmap/ncat", "Nmap/nmap"}, got); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}

	_, text := cli(t, false, "list", "Nmap/nm*")
	if !strings.Contains(text, "network mapper") || strings.Contains(text, "ncat") {
		t.Errorf("filtered list:\n%s", text)
	}
}

func TestRunShow(t *testing.T) {
	code, out := cli(t, false, "show", "Nmap/nmap")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	for _, want := range []string{"flags manifest", "--- Flags ---", "aggressive", "--- Restrictions ---"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRunCheck(t *testing.T) {
	if code, _ := cli(t, false, "check"); code != 0 {
		t.Errorf("clean tree: exit %d", code)
	}
	code, out := cli(t, true, "check", "--json")
	if code != 1 {
		t.Errorf("broken tree: exit %d", code)
	}
	if !strings.Contains(out, `"error"`) {
		t.Errorf("broken manifest not reported:\n%s", out)
	}
}

func TestRunCheckWatchStopsWithContext(t *testing.T) {
	dir := t.TempDir()
	for path, body := range fixtures {
		p := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("AUTOBOT_MANIFEST_DIR", dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	code := newApp(&out, io.Discard).run(ctx, []string{"check", "--watch", "--no-color", "--config", filepath.Join(dir, "none.yaml")})
	if code != 1 {
		t.Errorf("exit %d, want 1 from the broken manifest", code)
	}
	if !strings.Contains(out.String(), "Broken/broken") {
		t.Errorf("first check not printed:\n%s", out.String())
	}
}

func TestRunMisc(t *testing.T) {
	if code := newApp(io.Discard, io.Discard).run(context.Background(), []string{"frobnicate"}); code != 2 {
		t.Errorf("unknown command: exit %d", code)
	}
	var out bytes.Buffer
	if code := newApp(&out, io.Discard).run(context.Background(), []string{"version"}); code != 0 || !strings.Contains(out.String(), Version) {
		t.Errorf("version: exit %d, %q", code, out.String())
	}
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	a := newApp(io.Discard, io.Discard)
	if code := a.run(context.Background(), []string{"init", "--config", path}); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	if code := a.run(context.Background(), []string{"init", "--config", path}); code != 1 {
		t.Errorf("existing file: exit %d, want 1", code)
	}
	if code := a.run(context.Background(), []string{"init", "--config", path, "--force"}); code != 0 {
		t.Errorf("--force: exit %d", code)
	}
}
