package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/fileutil"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/logger"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/manifest"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/types"
)

var cfgLog = logger.New("config")

// Config represents the autobot configuration. It is treated as immutable
// once handed to the engine.
type Config struct {
	Manifests ManifestsConfig `yaml:"manifests"`
	Engine    EngineConfig    `yaml:"engine"`
	Log       LogConfig       `yaml:"log"`
}

// ManifestsConfig holds manifest discovery settings
type ManifestsConfig struct {
	// Dir is the root holding <Tool>/<command>.yaml files.
	Dir              string `yaml:"dir" validate:"required"`
	SchemaConstraint string `yaml:"schema_constraint" validate:"required,semver_constraint"`
	// Watch keeps `autobot check` running, re-checking and dropping cached
	// manifests when files change.
	Watch bool `yaml:"watch"`
}

// EngineConfig holds pipeline settings
type EngineConfig struct {
	// MaxAttempts bounds how often failing fields are asked again.
	MaxAttempts     int  `yaml:"max_attempts" validate:"min=1,max=20"`
	ConfirmHighRisk bool `yaml:"confirm_high_risk"`
	// Privilege is "auto" (detect from the effective uid), "user" or "root".
	Privilege string `yaml:"privilege" validate:"privilege"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level   types.LogLevel `yaml:"level" validate:"log_level"`
	NoColor bool           `yaml:"no_color"`
}

// DefaultConfigPath returns the default config file path (~/.autobot/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".autobot", "config.yaml")
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Manifests: ManifestsConfig{
			Dir:              "tools",
			SchemaConstraint: manifest.DefaultSchemaConstraint,
			Watch:            false,
		},
		Engine: EngineConfig{
			MaxAttempts:     3,
			ConfirmHighRisk: true,
			Privilege:       "auto",
		},
		Log: LogConfig{
			Level: types.LogLevelInfo,
		},
	}
}

// Privilege returns the effective privilege level of the process that will
// run generated commands.
func (c *Config) Privilege() types.Privilege {
	if c.Engine.Privilege == "" || strings.EqualFold(c.Engine.Privilege, "auto") {
		return types.DetectPrivilege()
	}
	if p, ok := types.ParsePrivilege(c.Engine.Privilege); ok {
		return p
	}
	return types.DetectPrivilege()
}

var structs = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})
	_ = v.RegisterValidation("semver_constraint", func(fl validator.FieldLevel) bool {
		_, err := semver.NewConstraint(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("privilege", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if strings.EqualFold(s, "auto") {
			return true
		}
		_, ok := types.ParsePrivilege(s)
		return ok
	})
	_ = v.RegisterValidation("log_level", func(fl validator.FieldLevel) bool {
		return types.LogLevel(fl.Field().String()).Valid()
	})
	return v
}

// describe turns one failed struct tag into a readable line keyed by the
// YAML path of the field.
func describe(fe validator.FieldError) string {
	key := strings.ToLower(fe.Namespace())
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: must not be empty", key)
	case "min":
		return fmt.Sprintf("%s: must be >= %s (got %v)", key, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s: must be <= %s (got %v)", key, fe.Param(), fe.Value())
	case "semver_constraint":
		return fmt.Sprintf("%s: not a valid version constraint (got %q)", key, fe.Value())
	case "privilege":
		return fmt.Sprintf("%s: must be auto, user or root (got %q)", key, fe.Value())
	case "log_level":
		return fmt.Sprintf("%s: unknown log level %q (valid: trace, debug, info, warn, error)", key, fe.Value())
	}
	return fmt.Sprintf("%s: failed %s", key, fe.Tag())
}

// Validate checks all Config fields and returns a multi-error report.
// Call this AFTER CLI overrides have been applied, not during Load().
func (c *Config) Validate() error {
	var errs []string
	if err := structs.Struct(c); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return err
		}
		for _, fe := range ves {
			errs = append(errs, describe(fe))
		}
	}

	if c.Manifests.Dir != "" {
		if fi, err := os.Stat(c.Manifests.Dir); err == nil && !fi.IsDir() {
			errs = append(errs, fmt.Sprintf("manifests.dir: %s is not a directory", c.Manifests.Dir))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for i, e := range errs {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e)
	}
	return errors.New(sb.String())
}

// isUnknownFieldError returns true if the error is from yaml.Decoder.KnownFields(true)
// detecting an unrecognized key (e.g. typo like "manifest:").
func isUnknownFieldError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found in type")
}

// Load loads configuration from a YAML file, then applies AUTOBOT_*
// environment overrides. A missing file yields the defaults.
// Note: Load does NOT call Validate(). Callers should apply CLI overrides
// first, then call cfg.Validate() themselves.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if cfg, err = decode(data); err != nil {
			return nil, err
		}
	}

	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	env.Apply(cfg)
	return cfg, nil
}

func decode(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	// Try strict decode to warn about unknown fields
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if err == nil || errors.Is(err, io.EOF) {
		return cfg, nil
	}
	if !isUnknownFieldError(err) {
		return nil, fmt.Errorf("config parse error: %w", err)
	}
	cfgLog.Warn("config has unknown fields (ignored): %v", err)
	// Re-parse without strict mode for forward compatibility
	cfg = DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config parse error: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path with owner-only permissions. Unless
// overwrite is set, an existing file is left alone and an error wrapping
// os.ErrExist is returned.
func (c *Config) Save(path string, overwrite bool) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if overwrite {
		return fileutil.WriteFileAtomic(path, data)
	}
	if err := fileutil.CreateExclusive(path, data); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}
