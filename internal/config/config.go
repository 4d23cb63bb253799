// Package config reads process settings from the environment.
package config

import (
	"fmt"

	env "github.com/Netflix/go-env"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environment holds the settings read from environment variables.
type Environment struct {
	LogLevel  string `env:"SIGNSERVICE_LOG_LEVEL,default=info"`
	LogFormat string `env:"SIGNSERVICE_LOG_FORMAT,default=json"`

	// PolicyFile is the JSON or YAML file with the integration policies.
	PolicyFile string `env:"SIGNSERVICE_POLICY_FILE"`

	// ProcessingFile is the JSON or YAML file with the sign response
	// processing settings. Defaults apply when unset.
	ProcessingFile string `env:"SIGNSERVICE_PROCESSING_FILE"`

	// TrustedCertsFile holds PEM certificates of the identity providers.
	// When set, assertion signatures are verified.
	TrustedCertsFile string `env:"SIGNSERVICE_TRUSTED_CERTS_FILE"`

	// MetricsFile receives a Prometheus text exposition after each run.
	MetricsFile string `env:"SIGNSERVICE_METRICS_FILE"`
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Load reads the environment and validates it.
func Load() (*Environment, error) {
	var cfg Environment
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings.
func (c *Environment) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid SIGNSERVICE_LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid SIGNSERVICE_LOG_FORMAT %q (must be json or console)", c.LogFormat)
	}
	return nil
}

// NewLogger builds a zap logger from the settings.
func (c *Environment) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	var zc zap.Config
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
