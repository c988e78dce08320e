// Package completion provides CLI tab-completion for autobot.
//
// The binary itself handles completions: when invoked with COMP_LINE set
// (by the shell), it outputs matching completions and exits.
// Works across bash, zsh, and fish with a one-time install.
package completion

import (
	"os"

	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/install"
	"github.com/posener/complete/v2/predict"
)

const name = "autobot"

var logLevels = predict.Set{"trace", "debug", "info", "warn", "error"}

// buildFlags are shared by build and run.
func buildFlags() map[string]complete.Predictor {
	return map[string]complete.Predictor{
		"config":       predict.Files("*.yaml"),
		"set":          predict.Something,
		"service":      predict.Something,
		"yes":          predict.Nothing,
		"json":         predict.Nothing,
		"privilege":    predict.Set{"auto", "user", "root"},
		"max-attempts": predict.Something,
		"log-level":    logLevels,
		"no-color":     predict.Nothing,
	}
}

// Command returns the completion tree. pairs lists the available
// "Tool/command" names; it is only called while completing.
func Command(pairs func() []string) *complete.Command {
	tools := complete.PredictFunc(func(string) []string {
		if pairs == nil {
			return nil
		}
		return pairs()
	})
	common := map[string]complete.Predictor{
		"config":    predict.Files("*.yaml"),
		"log-level": logLevels,
		"no-color":  predict.Nothing,
	}
	with := func(extra map[string]complete.Predictor) map[string]complete.Predictor {
		out := make(map[string]complete.Predictor, len(common)+len(extra))
		for k, v := range common {
			out[k] = v
		}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}

	return &complete.Command{
		Sub: map[string]*complete.Command{
			"list":       {Flags: with(map[string]complete.Predictor{"json": predict.Nothing}), Args: tools},
			"show":       {Flags: with(map[string]complete.Predictor{"json": predict.Nothing}), Args: tools},
			"build":      {Flags: buildFlags(), Args: tools},
			"run":        {Flags: buildFlags(), Args: tools},
			"lint":       {Flags: with(map[string]complete.Predictor{"info": predict.Nothing}), Args: predict.Files("*.yaml")},
			"check":      {Flags: with(map[string]complete.Predictor{"info": predict.Nothing, "json": predict.Nothing, "watch": predict.Nothing}), Args: tools},
			"version":    {Flags: map[string]complete.Predictor{"json": predict.Nothing}},
			"help":       {},
			"init":       {Flags: map[string]complete.Predictor{"config": predict.Files("*.yaml"), "force": predict.Nothing}},
			"completion": {Flags: map[string]complete.Predictor{"install": predict.Nothing, "uninstall": predict.Nothing}},
		},
	}
}

// Run checks if the binary was invoked for shell completion.
// If COMP_LINE is set, it outputs completions and returns true; the caller
// should exit. Otherwise it returns false and the program continues normally.
func Run(pairs func() []string) bool {
	if os.Getenv("COMP_LINE") != "" || os.Getenv("COMP_INSTALL") != "" || os.Getenv("COMP_UNINSTALL") != "" {
		Command(pairs).Complete(name)
		return true
	}
	return false
}

// Install sets up shell completion for the detected shells.
// The caller handles user-facing output.
func Install() error {
	return install.Install(name)
}

// Uninstall removes shell completion for the detected shells.
func Uninstall() error {
	return install.Uninstall(name)
}

// IsInstalled reports whether shell completion is already set up.
func IsInstalled() bool {
	return install.IsInstalled(name)
}
