package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/adapter"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/compat"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/completion"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/config"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/engine"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/interact"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/logger"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/manifest"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/placeholder"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/tui"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/types"
)

// Version is set at build time via ldflags: -X main.Version=x.y.z
var Version = "1.0.0"

var log = logger.New("main")

func main() {
	if completion.Run(completionPairs) {
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newApp(os.Stdout, os.Stderr).run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// app carries the output streams so subcommands can be tested.
type app struct {
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.printUsage()
		return 2
	}
	rest := args[1:]
	switch args[0] {
	case "list":
		return a.runList(rest)
	case "show":
		return a.runShow(rest)
	case "build":
		return a.runBuild(ctx, "build", rest)
	case "run":
		return a.runBuild(ctx, "run", rest)
	case "lint":
		return a.runLint(rest)
	case "check":
		return a.runCheck(ctx, rest)
	case "init":
		return a.runInit(rest)
	case "completion":
		return a.runCompletion(rest)
	case "version", "-v", "--version":
		return a.runVersion(rest)
	case "help", "-h", "--help":
		a.printUsage()
		return 0
	}
	tui.PrintError(fmt.Sprintf("unknown command %q", args[0]))
	a.printUsage()
	return 2
}

func (a *app) printUsage() {
	fmt.Fprintln(a.stdout, `autobot - build safe command lines for security tools

Usage:
  autobot list [pattern] [--json]            List available tool/command manifests
  autobot show <Tool/command> [--json]       Show fields, services and restrictions
  autobot build <Tool/command> [flags]       Ask for options and print the command
  autobot run <Tool/command> [flags]         Like build, and describe what would run
  autobot lint [file.yaml ...] [--info]      Check manifest files
  autobot check [pattern] [--json] [--watch] Check every manifest has a working adapter
  autobot init [--force]                     Write a default config file
  autobot completion [--install|--uninstall] Manage shell completion
  autobot version [--json]                   Show version
  autobot help                               Show this help message

Build Flags:
  --set name=value      Answer a field (repeatable); disables prompting
  --service id          Choose a service (repeatable)
  --no-input            Never prompt; fail on missing answers
  --yes                 Confirm high-risk options
  --privilege string    auto, user or root (default from config)
  --max-attempts int    How often rejected fields are asked again
  --json                Print the result as JSON

Common Flags:
  --config string       Path to configuration file (default ~/.autobot/config.yaml)
  --log-level string    Log level: trace, debug, info, warn, error
  --no-color            Disable colored output

Environment Variables:
  AUTOBOT_MANIFEST_DIR  Manifest root directory
  AUTOBOT_PRIVILEGE     Privilege level (auto, user, root)
  AUTOBOT_LOG_LEVEL     Log level

Examples:
  autobot list 'Nmap/*'
  autobot build Nmap/nmap --set target=10.0.0.1 --set aggressive=yes
  autobot build Nmap/ncat --service listen --set port=4444 --yes`)
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(s string) error {
	*l = append(*l, s)
	return nil
}

// commonFlags are accepted by every subcommand that loads the config.
type commonFlags struct {
	configPath string
	logLevel   string
	noColor    bool
}

func (a *app) flagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", config.DefaultConfigPath(), "Path to configuration file")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	fs.BoolVar(&c.noColor, "no-color", false, "Disable colored output")
	return fs, c
}

// parseArgs parses flags that may appear before, between or after
// positional arguments, and returns the positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// splitTarget accepts "Tool/command" or "Tool command".
func splitTarget(pos []string) (string, string, error) {
	switch len(pos) {
	case 1:
		if tool, cmd, ok := strings.Cut(pos[0], "/"); ok && tool != "" && cmd != "" {
			return tool, cmd, nil
		}
	case 2:
		return pos[0], pos[1], nil
	}
	return "", "", errors.New("expected <Tool/command>")
}

// loadConfig loads the config, applies flag overrides and validates.
func (a *app) loadConfig(c *commonFlags, override func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = types.LogLevel(c.logLevel)
	}
	if c.noColor {
		cfg.Log.NoColor = true
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.SetGlobalLevelFromString(string(cfg.Log.Level))
	if cfg.Log.NoColor {
		logger.SetColored(false)
		tui.SetPlainMode(true)
	}
	return cfg, nil
}

func (a *app) newEngine(c *commonFlags, override func(*config.Config)) (*engine.Engine, int) {
	cfg, err := a.loadConfig(c, override)
	if err != nil {
		tui.PrintError(err.Error())
		return nil, 1
	}
	e, err := engine.New(cfg)
	if err != nil {
		tui.PrintError(err.Error())
		return nil, 1
	}
	return e, 0
}

// fail reports err and returns the exit code.
func (a *app) fail(err error) int {
	var ue *placeholder.UnboundError
	switch {
	case errors.Is(err, interact.ErrAborted), errors.Is(err, context.Canceled):
		tui.PrintWarning("aborted")
		return 130
	case errors.Is(err, adapter.ErrNotConfirmed):
		tui.PrintWarning("not confirmed; nothing was built")
		return 1
	case errors.As(err, &ue):
		tui.PrintError(fmt.Sprintf("missing values: %s (use --set name=value)", strings.Join(ue.Names, ", ")))
		return 1
	}
	if errs, ok := compat.AsErrors(err); ok {
		tui.PrintError(fmt.Sprintf("%d problem(s) with the selected options:", len(errs)))
		for _, e := range errs {
			fmt.Fprintf(a.stderr, "  - %s\n", e.Message)
		}
		return 1
	}
	tui.PrintError(err.Error())
	return 1
}

func (a *app) writeJSON(v any) int {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return a.fail(err)
	}
	return 0
}

func (a *app) runList(args []string) int {
	fs, common := a.flagSet("list")
	asJSON := fs.Bool("json", false, "Print as JSON")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	e, code := a.newEngine(common, nil)
	if e == nil {
		return code
	}

	pattern := strings.Join(pos, " ")
	entries, err := e.List(pattern)
	if err != nil {
		return a.fail(err)
	}
	if *asJSON {
		return a.writeJSON(entries)
	}
	if len(entries) == 0 {
		tui.PrintInfo("no manifests found in " + e.Dir())
		return 0
	}
	rows := make([][2]string, 0, len(entries))
	for _, ent := range entries {
		var desc string
		if m, err := e.Manifest(ent.Tool, ent.Command); err != nil {
			desc = tui.Render(tui.StyleError, "(invalid)")
		} else {
			desc = m.Description
		}
		rows = append(rows, [2]string{ent.Tool + "/" + ent.Command, desc})
	}
	fmt.Fprint(a.stdout, tui.Columns(rows, "  ", tui.StyleCommand))
	return 0
}

func (a *app) runShow(args []string) int {
	fs, common := a.flagSet("show")
	asJSON := fs.Bool("json", false, "Print as JSON")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	tool, cmd, err := splitTarget(pos)
	if err != nil {
		tui.PrintError(err.Error())
		return 2
	}
	e, code := a.newEngine(common, nil)
	if e == nil {
		return code
	}
	m, err := e.Manifest(tool, cmd)
	if err != nil {
		return a.fail(err)
	}
	if *asJSON {
		return a.writeJSON(m)
	}
	fmt.Fprint(a.stdout, describeManifest(m))
	return 0
}

// describeManifest renders a manifest for people.
func describeManifest(m *manifest.Manifest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/%s (%s manifest, binary %s)\n",
		m.ToolName(), m.CommandName(), m.Shape(), tui.Render(tui.StyleCommand, m.BinaryName()))
	if m.Description != "" {
		fmt.Fprintf(&sb, "  %s\n", m.Description)
	}

	if m.Shape() == manifest.ShapeFlags {
		sb.WriteString(tui.Separator("Flags") + "\n")
		sb.WriteString(tui.Columns(fieldRows(m.Flags), "  ", tui.StyleBold))
	}
	for _, svc := range m.Services {
		sb.WriteString(tui.Separator("Service " + svc.ID) + "\n")
		if svc.Label != "" {
			fmt.Fprintf(&sb, "  %s\n", svc.Label)
		}
		if tpl, err := svc.Template.Parse(); err == nil {
			fmt.Fprintf(&sb, "  template: %s\n", tpl.String())
		}
		if len(svc.IncompatibleServices) > 0 {
			fmt.Fprintf(&sb, "  incompatible with: %s\n", strings.Join(svc.IncompatibleServices, ", "))
		}
		if svc.RequiresPrivilege != "" {
			fmt.Fprintf(&sb, "  requires %s privileges\n", svc.RequiresPrivilege)
		}
		if svc.RequiresScopeConfirmation {
			sb.WriteString("  asks for scope confirmation\n")
		}
		sb.WriteString(tui.Columns(fieldRows(svc.Placeholders), "  ", tui.StyleBold))
	}

	if rules := m.AllRestrictions(); len(rules) > 0 {
		sb.WriteString(tui.Separator("Restrictions") + "\n")
		for _, r := range rules {
			fmt.Fprintf(&sb, "  %s\n", r)
		}
	}
	return sb.String()
}

func fieldRows(specs []field.Spec) [][2]string {
	rows := make([][2]string, 0, len(specs))
	for _, s := range specs {
		var parts []string
		parts = append(parts, s.TypeKey())
		if s.Flag != "" {
			parts = append(parts, s.Flag)
		}
		if s.Positional {
			parts = append(parts, "positional")
		}
		if s.Required {
			parts = append(parts, "required")
		}
		if s.HasDefault() {
			parts = append(parts, "default "+string(s.Default))
		}
		for _, c := range s.Choices {
			if c.HighRisk() {
				parts = append(parts, tui.Render(tui.StyleHigh, c.ID+" is high risk"))
			}
		}
		rows = append(rows, [2]string{s.Name, strings.Join(parts, "  ")})
	}
	return rows
}

func (a *app) runBuild(ctx context.Context, name string, args []string) int {
	fs, common := a.flagSet(name)
	var sets, services stringList
	fs.Var(&sets, "set", "Answer a field as name=value (repeatable)")
	fs.Var(&services, "service", "Choose a service (repeatable)")
	noInput := fs.Bool("no-input", false, "Never prompt")
	yes := fs.Bool("yes", false, "Confirm high-risk options")
	privilege := fs.String("privilege", "", "Privilege level: auto, user or root")
	maxAttempts := fs.Int("max-attempts", 0, "How often rejected fields are asked again")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	tool, cmd, err := splitTarget(pos)
	if err != nil {
		tui.PrintError(err.Error())
		return 2
	}
	values, err := interact.ParseAssignments(sets)
	if err != nil {
		tui.PrintError(err.Error())
		return 2
	}

	e, code := a.newEngine(common, func(cfg *config.Config) {
		if *privilege != "" {
			cfg.Engine.Privilege = *privilege
		}
		if *maxAttempts > 0 {
			cfg.Engine.MaxAttempts = *maxAttempts
		}
		if *yes {
			cfg.Engine.ConfirmHighRisk = false
		}
	})
	if e == nil {
		return code
	}
	defer e.Close()

	var in interact.Interaction
	if *noInput || len(sets) > 0 || len(services) > 0 {
		in = &interact.Scripted{Values: values, Services: services, Yes: *yes}
	} else {
		in = tui.NewPrompter(e.Validators())
	}

	res, err := e.Build(ctx, tool, cmd, in)
	if err != nil {
		return a.fail(err)
	}
	log.Debug("built %s as %s", res.Tool, e.Privilege())

	if *asJSON {
		return a.writeJSON(res)
	}
	for _, w := range res.Warnings {
		tui.PrintWarning(w)
	}
	if name == "run" {
		if len(res.Services) > 0 {
			tui.PrintInfo(fmt.Sprintf("%s (services: %s)", res.Description, strings.Join(res.Services, ", ")))
		} else {
			tui.PrintInfo(res.Description)
		}
		tui.PrintInfo("autobot never executes commands; copy the line below to run it")
	}
	fmt.Fprintln(a.stdout, res.Command.Quoted)
	return 0
}

func (a *app) runLint(args []string) int {
	fs, common := a.flagSet("lint")
	showInfo := fs.Bool("info", false, "Show informational messages")
	files, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	e, code := a.newEngine(common, nil)
	if e == nil {
		return code
	}

	if len(files) == 0 {
		entries, err := e.List("")
		if err != nil {
			return a.fail(err)
		}
		for _, ent := range entries {
			files = append(files, ent.Path)
		}
		fmt.Fprintf(a.stdout, "Linting %d manifest(s)...\n\n", len(files))
	}

	var errCount, warnCount int
	for _, f := range files {
		_, res, err := e.Lint(f)
		if err != nil {
			errCount++
			fmt.Fprintf(a.stdout, "%s %s\n", tui.SeverityBadge("error"), err)
			continue
		}
		errCount += res.Errors
		warnCount += res.Warns
		if out := res.FormatIssues(*showInfo); out != "" {
			fmt.Fprintf(a.stdout, "%s\n%s", f, out)
		}
	}

	fmt.Fprintln(a.stdout)
	switch {
	case errCount > 0:
		fmt.Fprintf(a.stdout, "%s %d error(s), %d warning(s)\n", tui.Render(tui.StyleError, tui.IconCross), errCount, warnCount)
		return 1
	case warnCount > 0:
		fmt.Fprintf(a.stdout, "%s %d warning(s)\n", tui.Render(tui.StyleWarning, tui.IconWarning), warnCount)
	default:
		fmt.Fprintf(a.stdout, "%s All manifests valid\n", tui.Render(tui.StyleSuccess, tui.IconCheck))
	}
	return 0
}

// checkEntry is the JSON form of one check report.
type checkEntry struct {
	Tool    string `json:"tool"`
	Command string `json:"command"`
	Path    string `json:"path"`
	Adapter string `json:"adapter,omitempty"`
	Errors  int    `json:"lint_errors"`
	Warns   int    `json:"lint_warnings"`
	Error   string `json:"error,omitempty"`
}

func (a *app) runCheck(ctx context.Context, args []string) int {
	fs, common := a.flagSet("check")
	asJSON := fs.Bool("json", false, "Print as JSON")
	showInfo := fs.Bool("info", false, "Show lint issues")
	watch := fs.Bool("watch", false, "Keep running and check again when manifests change")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	e, code := a.newEngine(common, func(cfg *config.Config) {
		if *watch {
			cfg.Manifests.Watch = true
		}
	})
	if e == nil {
		return code
	}
	defer e.Close()

	pattern := strings.Join(pos, " ")
	code = a.check(e, pattern, *asJSON, *showInfo)
	if !*watch {
		return code
	}

	err = e.Watch(ctx, func(paths []string) {
		fmt.Fprintln(a.stdout)
		for _, p := range paths {
			tui.PrintInfo("changed: " + p)
		}
		code = a.check(e, pattern, *asJSON, *showInfo)
	})
	if err != nil {
		return a.fail(err)
	}
	tui.PrintInfo("watching " + e.Dir() + " (Ctrl-C to stop)")
	<-ctx.Done()
	e.Close()
	return code
}

// check prints one report for every manifest matching pattern and returns
// the exit code.
func (a *app) check(e *engine.Engine, pattern string, asJSON, showInfo bool) int {
	reports, err := e.Check(pattern)
	if err != nil {
		return a.fail(err)
	}

	failed := 0
	out := make([]checkEntry, 0, len(reports))
	for _, r := range reports {
		ce := checkEntry{
			Tool: r.Entry.Tool, Command: r.Entry.Command, Path: r.Entry.Path,
			Adapter: r.Adapter, Errors: r.Lint.Errors, Warns: r.Lint.Warns,
		}
		if !r.OK() {
			failed++
			ce.Error = r.Err.Error()
		}
		out = append(out, ce)
	}
	if asJSON {
		if code := a.writeJSON(out); code != 0 {
			return code
		}
	} else {
		for i, r := range reports {
			name := r.Entry.Tool + "/" + r.Entry.Command
			if r.OK() {
				fmt.Fprintf(a.stdout, "%s %s (%s)\n", tui.Render(tui.StyleSuccess, tui.IconCheck), name, r.Adapter)
			} else {
				fmt.Fprintf(a.stdout, "%s %s: %s\n", tui.Render(tui.StyleError, tui.IconCross), name, out[i].Error)
			}
			if showInfo {
				fmt.Fprint(a.stdout, r.Lint.FormatIssues(true))
			}
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func (a *app) runInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	path := fs.String("config", config.DefaultConfigPath(), "Where to write the config")
	force := fs.Bool("force", false, "Overwrite an existing config")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := config.DefaultConfig().Save(*path, *force); err != nil {
		if errors.Is(err, os.ErrExist) {
			tui.PrintError(*path + " already exists (use --force to overwrite)")
			return 1
		}
		return a.fail(err)
	}
	tui.PrintSuccess("wrote " + *path)
	return 0
}

func (a *app) runCompletion(args []string) int {
	fs := flag.NewFlagSet("completion", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	doInstall := fs.Bool("install", false, "Install shell completion")
	doUninstall := fs.Bool("uninstall", false, "Remove shell completion")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	switch {
	case *doInstall:
		if err := completion.Install(); err != nil {
			return a.fail(err)
		}
		tui.PrintSuccess("shell completion installed; restart your shell")
	case *doUninstall:
		if err := completion.Uninstall(); err != nil {
			return a.fail(err)
		}
		tui.PrintSuccess("shell completion removed")
	case completion.IsInstalled():
		tui.PrintInfo("shell completion is installed")
	default:
		tui.PrintInfo("shell completion is not installed; run: autobot completion --install")
	}
	return 0
}

func (a *app) runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	asJSON := fs.Bool("json", false, "Print as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *asJSON {
		return a.writeJSON(map[string]string{"version": Version, "go": runtime.Version()})
	}
	fmt.Fprintf(a.stdout, "autobot version %s\n", Version)
	return 0
}

// completionPairs lists "Tool/command" names for shell completion. Errors
// yield no suggestions.
func completionPairs() []string {
	cfg, err := config.Load(config.DefaultConfigPath())
	if err != nil {
		return nil
	}
	entries, err := manifest.NewCatalog(cfg.Manifests.Dir).Entries("")
	if err != nil {
		return nil
	}
	out := make([]string, len(entries))
	for i, ent := range entries {
		out[i] = ent.Tool + "/" + ent.Command
	}
	return out
}
