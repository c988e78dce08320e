package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/interact"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/validate"
)

// maxLineRetries bounds how often one line prompt is repeated after an
// invalid answer before the prompter gives up.
const maxLineRetries = 3

// Prompter asks the user for answers. On a terminal it uses huh forms;
// otherwise (plain mode, piped input) it falls back to line prompts.
// Every answer is checked against the field grammar as it is typed.
type Prompter struct {
	validators *validate.Registry
	in         *bufio.Reader
	out        io.Writer
	forms      bool
}

var _ interact.Interaction = (*Prompter)(nil)

// Interactive reports whether stdin is a terminal.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) //nolint:gosec // Fd() fits in int on all supported platforms
}

// NewPrompter returns a prompter on stdin and stderr. A nil registry means
// validate.Default().
func NewPrompter(reg *validate.Registry) *Prompter {
	p := NewLinePrompter(reg, os.Stdin, os.Stderr)
	p.forms = Interactive() && !IsPlainMode()
	return p
}

// NewLinePrompter returns a prompter that always uses line prompts.
func NewLinePrompter(reg *validate.Registry, in io.Reader, out io.Writer) *Prompter {
	if reg == nil {
		reg = validate.Default()
	}
	return &Prompter{validators: reg, in: bufio.NewReader(in), out: out}
}

// autobotTheme maps the palette onto a huh theme.
func autobotTheme() *huh.Theme {
	t := huh.ThemeBase()
	t.Focused.Base = t.Focused.Base.BorderForeground(ColorPrimary)
	t.Focused.Title = t.Focused.Title.Foreground(ColorPrimary).Bold(true)
	t.Focused.Description = t.Focused.Description.Foreground(ColorMuted)
	t.Focused.ErrorIndicator = t.Focused.ErrorIndicator.Foreground(ColorError)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorError)
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(ColorAccent).SetString(IconArrow + " ")
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(ColorSuccess)
	t.Focused.SelectedPrefix = lipgloss.NewStyle().Foreground(ColorSuccess).SetString(IconDot + " ")
	t.Focused.UnselectedPrefix = lipgloss.NewStyle().Foreground(ColorMuted).SetString(IconCircle + " ")
	t.Focused.FocusedButton = t.Focused.FocusedButton.Background(ColorAccent).Bold(true)
	t.Focused.TextInput.Prompt = t.Focused.TextInput.Prompt.Foreground(ColorAccent)

	t.Blurred = t.Focused
	t.Blurred.Base = t.Focused.Base.BorderStyle(lipgloss.HiddenBorder())
	t.Group.Title = t.Focused.Title
	t.Group.Description = t.Focused.Description
	return t
}

func (p *Prompter) run(ctx context.Context, groups ...*huh.Group) error {
	err := huh.NewForm(groups...).WithTheme(autobotTheme()).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return interact.ErrAborted
	}
	return err
}

// ChooseServices asks which services to run.
func (p *Prompter) ChooseServices(ctx context.Context, options []interact.Option, multi bool) ([]string, error) {
	if len(options) == 1 {
		return []string{options[0].ID}, nil
	}
	if p.forms {
		opts := make([]huh.Option[string], len(options))
		for i, o := range options {
			opts[i] = huh.NewOption(optionLabel(o), o.ID)
		}
		if multi {
			var ids []string
			err := p.run(ctx, huh.NewGroup(
				huh.NewMultiSelect[string]().
					Title("Services").
					Description("Select one or more services to combine").
					Options(opts...).
					Value(&ids).
					Validate(func(v []string) error {
						if len(v) == 0 {
							return errors.New("select at least one service")
						}
						return nil
					}),
			))
			return ids, err
		}
		var id string
		err := p.run(ctx, huh.NewGroup(
			huh.NewSelect[string]().Title("Service").Options(opts...).Value(&id),
		))
		return []string{id}, err
	}

	fmt.Fprintln(p.out, Separator("Services"))
	for i, o := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, optionLabel(o))
	}
	hint := "number or id"
	if multi {
		hint = "numbers or ids, comma separated"
	}
	for range maxLineRetries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprintf(p.out, "%s Service (%s): ", IconArrow, hint)
		line, err := p.readLine()
		if err != nil {
			return nil, err
		}
		ids, perr := pickOptions(options, line, multi)
		if perr == nil {
			return ids, nil
		}
		fmt.Fprintf(p.out, "  %s %v\n", Render(StyleError, IconCross), perr)
	}
	return nil, fmt.Errorf("%w: no valid service chosen", interact.ErrAborted)
}

func optionLabel(o interact.Option) string {
	label := o.Label
	if label == "" {
		label = o.ID
	}
	if o.Description != "" {
		label += " - " + o.Description
	}
	return label
}

func pickOptions(options []interact.Option, line string, multi bool) ([]string, error) {
	var ids []string
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id := ""
		if n, err := strconv.Atoi(part); err == nil && n >= 1 && n <= len(options) {
			id = options[n-1].ID
		}
		for _, o := range options {
			if strings.EqualFold(o.ID, part) {
				id = o.ID
			}
		}
		if id == "" {
			return nil, fmt.Errorf("unknown service %q", part)
		}
		ids = append(ids, id)
	}
	switch {
	case len(ids) == 0:
		return nil, errors.New("choose a service")
	case len(ids) > 1 && !multi:
		return nil, errors.New("only one service may be chosen")
	}
	return ids, nil
}

// check validates one typed answer. Empty answers pass; required fields
// are enforced after collection.
func (p *Prompter) check(spec field.Spec, s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := p.validators.Validate(spec, s)
	return err
}

// Collect asks every prompt and returns the non-empty answers.
func (p *Prompter) Collect(ctx context.Context, prompts []interact.Prompt) (map[string]string, error) {
	if p.forms {
		return p.collectForm(ctx, prompts)
	}
	out := make(map[string]string, len(prompts))
	for _, pr := range prompts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := p.askLine(pr)
		if err != nil {
			return nil, err
		}
		if v != "" {
			out[pr.Spec.Name] = v
		}
	}
	return out, nil
}

func description(pr interact.Prompt) string {
	var parts []string
	if pr.Spec.Description != "" && pr.Spec.Description != pr.Spec.Label() {
		parts = append(parts, pr.Spec.Description)
	}
	if pr.Spec.HasDefault() {
		parts = append(parts, "default: "+string(pr.Spec.Default))
	}
	if pr.Problem != "" {
		parts = append(parts, IconWarning+" "+pr.Problem)
	}
	return strings.Join(parts, "\n")
}

func (p *Prompter) collectForm(ctx context.Context, prompts []interact.Prompt) (map[string]string, error) {
	var (
		fields  []huh.Field
		collect []func(map[string]string)
	)
	for _, pr := range prompts {
		spec := pr.Spec
		title := spec.Label()
		if spec.Required {
			title += " *"
		}
		switch {
		case spec.Type == field.Switch:
			on, _ := validate.ParseSwitch(pr.Current)
			v := &on
			fields = append(fields, huh.NewConfirm().Title(title).Description(description(pr)).Value(v))
			collect = append(collect, func(m map[string]string) { m[spec.Name] = strconv.FormatBool(*v) })

		case spec.Type == field.Choice && spec.Multi:
			v := new([]string)
			if pr.Current != "" {
				*v = strings.Split(pr.Current, ",")
			}
			fields = append(fields, huh.NewMultiSelect[string]().
				Title(title).Description(description(pr)).
				Options(choiceOptions(spec)...).Value(v))
			collect = append(collect, func(m map[string]string) {
				if len(*v) > 0 {
					m[spec.Name] = strings.Join(*v, ",")
				}
			})

		case spec.Type == field.Choice:
			v := new(string)
			*v = pr.Current
			opts := choiceOptions(spec)
			if !spec.Required {
				opts = append([]huh.Option[string]{huh.NewOption("(none)", "")}, opts...)
			}
			fields = append(fields, huh.NewSelect[string]().
				Title(title).Description(description(pr)).
				Options(opts...).Value(v))
			collect = append(collect, func(m map[string]string) {
				if *v != "" {
					m[spec.Name] = *v
				}
			})

		default:
			v := new(string)
			*v = pr.Current
			fields = append(fields, huh.NewInput().
				Title(title).Description(description(pr)).
				Placeholder(string(spec.Default)).
				Value(v).
				Validate(func(s string) error { return p.check(spec, s) }))
			collect = append(collect, func(m map[string]string) {
				if s := strings.TrimSpace(*v); s != "" {
					m[spec.Name] = s
				}
			})
		}
	}
	if len(fields) == 0 {
		return map[string]string{}, nil
	}
	if err := p.run(ctx, huh.NewGroup(fields...)); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(prompts))
	for _, fn := range collect {
		fn(out)
	}
	return out, nil
}

func choiceOptions(spec field.Spec) []huh.Option[string] {
	opts := make([]huh.Option[string], len(spec.Choices))
	for i, c := range spec.Choices {
		label := c.DisplayLabel()
		if c.HighRisk() {
			label += " " + IconBolt
		}
		opts[i] = huh.NewOption(label, c.ID)
	}
	return opts
}

// askLine asks one prompt on the line reader, repeating on invalid input.
func (p *Prompter) askLine(pr interact.Prompt) (string, error) {
	spec := pr.Spec
	if pr.Problem != "" {
		fmt.Fprintf(p.out, "  %s %s: %s\n", Render(StyleWarning, IconWarning), spec.Name, pr.Problem)
	}
	if spec.Type == field.Choice {
		for i, c := range spec.Choices {
			risk := ""
			if c.HighRisk() {
				risk = " " + Render(StyleHigh, "(high risk)")
			}
			fmt.Fprintf(p.out, "    %d) %s%s\n", i+1, c.DisplayLabel(), risk)
		}
	}

	label := spec.Label()
	if spec.Required {
		label += " *"
	}
	suffix := ""
	switch {
	case spec.Type == field.Switch:
		suffix = " [y/N]"
	case pr.Current != "":
		suffix = " [" + pr.Current + "]"
	case spec.HasDefault():
		suffix = " [default " + string(spec.Default) + "]"
	}

	for range maxLineRetries {
		fmt.Fprintf(p.out, "%s %s%s: ", IconArrow, label, suffix)
		line, err := p.readLine()
		if err != nil {
			return "", err
		}
		if line == "" {
			if spec.Type == field.Switch {
				return "", nil
			}
			return pr.Current, nil
		}
		if spec.Type == field.Choice {
			line = choiceIDs(spec, line)
		}
		if err := p.check(spec, line); err != nil {
			fmt.Fprintf(p.out, "  %s %v\n", Render(StyleError, IconCross), err)
			continue
		}
		return line, nil
	}
	return "", fmt.Errorf("%w: no valid answer for %s", interact.ErrAborted, spec.Name)
}

// choiceIDs maps numbered answers onto choice ids.
func choiceIDs(spec field.Spec, line string) string {
	parts := strings.Split(line, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if n, err := strconv.Atoi(part); err == nil && n >= 1 && n <= len(spec.Choices) {
			part = spec.Choices[n-1].ID
		}
		parts[i] = part
	}
	return strings.Join(parts, ",")
}

// Confirm asks a yes/no question. The default answer is no.
func (p *Prompter) Confirm(ctx context.Context, message string) (bool, error) {
	if p.forms {
		var ok bool
		err := p.run(ctx, huh.NewGroup(
			huh.NewConfirm().Title(message).Affirmative("Yes").Negative("No").Value(&ok),
		))
		return ok, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "%s %s [y/N]: ", Render(StyleWarning, IconWarning), message)
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	on, _ := validate.ParseSwitch(line)
	return on, nil
}

// readLine reads one trimmed line. End of input before any text aborts.
func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" {
			return "", fmt.Errorf("%w: end of input", interact.ErrAborted)
		}
	}
	return strings.TrimSpace(line), nil
}
