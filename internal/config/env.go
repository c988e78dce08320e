package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/types"
)

// EnvPrefix prefixes every environment override, e.g. AUTOBOT_PRIVILEGE.
const EnvPrefix = "AUTOBOT"

// Env holds overrides read from the environment. Unset variables leave the
// matching Config field untouched.
type Env struct {
	// Env: AUTOBOT_MANIFEST_DIR
	ManifestDir string `envconfig:"MANIFEST_DIR"`
	// Env: AUTOBOT_SCHEMA_CONSTRAINT
	SchemaConstraint string `envconfig:"SCHEMA_CONSTRAINT"`
	Watch            *bool  `envconfig:"WATCH"`

	MaxAttempts     *int   `envconfig:"MAX_ATTEMPTS"`
	ConfirmHighRisk *bool  `envconfig:"CONFIRM_HIGH_RISK"`
	Privilege       string `envconfig:"PRIVILEGE"`

	LogLevel string `envconfig:"LOG_LEVEL"`
	NoColor  *bool  `envconfig:"NO_COLOR"`
}

// LoadEnv reads AUTOBOT_* variables.
func LoadEnv() (*Env, error) {
	var e Env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return &e, nil
}

// Apply copies every set override onto cfg.
func (e *Env) Apply(cfg *Config) {
	if e.ManifestDir != "" {
		cfg.Manifests.Dir = e.ManifestDir
	}
	if e.SchemaConstraint != "" {
		cfg.Manifests.SchemaConstraint = e.SchemaConstraint
	}
	if e.Watch != nil {
		cfg.Manifests.Watch = *e.Watch
	}
	if e.MaxAttempts != nil {
		cfg.Engine.MaxAttempts = *e.MaxAttempts
	}
	if e.ConfirmHighRisk != nil {
		cfg.Engine.ConfirmHighRisk = *e.ConfirmHighRisk
	}
	if e.Privilege != "" {
		cfg.Engine.Privilege = e.Privilege
	}
	if e.LogLevel != "" {
		cfg.Log.Level = types.LogLevel(e.LogLevel)
	}
	if e.NoColor != nil {
		cfg.Log.NoColor = *e.NoColor
	}
}
