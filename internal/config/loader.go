// loader.go implements the configuration loading lifecycle:
//  1. Enforce UTC timezone.
//  2. Load .env file(s) via godotenv (non-fatal if absent).
//  3. Populate Config from struct tags via envconfig.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate via go-playground/validator, then the template mapping.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// localEnv is the APP_ENV value for local development.
const localEnv = "local"

// ConfigError is the diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the eventmail configuration. envFiles are
// passed to godotenv; with none, ".env" in the working directory is tried.
// Dotenv values never override variables already present in the environment.
func LoadConfig(envFiles ...string) (*Config, error) {
	time.Local = time.UTC

	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if err := checkPolicy(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// checkPolicy enforces rules the struct tags cannot express.
func checkPolicy(cfg *Config) error {
	if _, err := cfg.Email.TemplateIDs(); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "email template mapping is invalid",
			Err:     err,
		}
	}
	return nil
}
