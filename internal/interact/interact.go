// Package interact defines how the engine asks a user for values, and a
// scripted implementation that answers from preset values.
package interact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

var (
	// ErrNonInteractive is returned when a question needs a human and none
	// is available (scripted answers only).
	ErrNonInteractive = errors.New("no interactive answer available")
	// ErrAborted is returned when the user cancels.
	ErrAborted = errors.New("aborted by user")
)

// Option is one selectable service.
type Option struct {
	ID          string
	Label       string
	Description string
}

// Prompt asks for one field. Problem is empty on the first ask and holds
// the reason the previous answer was rejected on a re-ask.
type Prompt struct {
	Spec    field.Spec
	Current string
	Problem string
}

// Interaction is the collaborator that talks to the user.
type Interaction interface {
	// ChooseServices returns the chosen option ids, in the user's order.
	ChooseServices(ctx context.Context, options []Option, multi bool) ([]string, error)
	// Collect returns raw answers keyed by field name. Fields left
	// unanswered are omitted.
	Collect(ctx context.Context, prompts []Prompt) (map[string]string, error)
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, message string) (bool, error)
}

// Scripted answers from fixed values, as given on the command line.
type Scripted struct {
	Values   map[string]string
	Services []string
	// Yes is the answer to every confirmation.
	Yes bool
}

// ChooseServices returns the preset services. With none preset, a single
// option is chosen automatically.
func (s *Scripted) ChooseServices(ctx context.Context, options []Option, multi bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.Services) == 0 {
		if len(options) == 1 {
			return []string{options[0].ID}, nil
		}
		ids := make([]string, len(options))
		for i, o := range options {
			ids[i] = o.ID
		}
		return nil, fmt.Errorf("%w: choose a service (%s)", ErrNonInteractive, strings.Join(ids, ", "))
	}
	if !multi && len(s.Services) > 1 {
		return nil, fmt.Errorf("only one service may be chosen, got %s", strings.Join(s.Services, ", "))
	}
	known := make(map[string]bool, len(options))
	for _, o := range options {
		known[o.ID] = true
	}
	for _, id := range s.Services {
		if !known[id] {
			return nil, fmt.Errorf("unknown service %q", id)
		}
	}
	return append([]string(nil), s.Services...), nil
}

// Collect returns the preset value of every prompted field. A re-ask
// cannot be answered differently, so it fails.
func (s *Scripted) Collect(ctx context.Context, prompts []Prompt) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(prompts))
	for _, p := range prompts {
		if p.Problem != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrNonInteractive, p.Spec.Name, p.Problem)
		}
		if v, ok := s.Values[p.Spec.Name]; ok {
			out[p.Spec.Name] = v
		}
	}
	return out, nil
}

// Confirm returns s.Yes.
func (s *Scripted) Confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.Yes, nil
}

// Unused returns preset value names that no prompt asked for, sorted.
func (s *Scripted) Unused(asked []Prompt) []string {
	seen := make(map[string]bool, len(asked))
	for _, p := range asked {
		seen[p.Spec.Name] = true
	}
	var out []string
	for k := range s.Values {
		if !seen[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// ParseAssignments turns "name=value" pairs into a map. The first "="
// separates name from value; later pairs win.
func ParseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q (want name=value)", p)
		}
		out[name] = value
	}
	return out, nil
}
