// Package config defines the configuration structure for eventmail.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format fails the load; callers exit.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"eventmail/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types for it.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the sub-struct they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"eventmail"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Email         EmailConfig
	AWS           AWSConfig
	Database      DatabaseConfig
	Security      SecurityConfig
	Observability ObservabilityConfig
	Worker        WorkerConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// IsLocal reports whether the process runs in local development mode.
func (c *Config) IsLocal() bool {
	return c.Environment == localEnv
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// PublicURL is the web app base used for links inside emails (no trailing slash).
	PublicURL string `envconfig:"PUBLIC_URL" validate:"required,url"`
}

// EmailConfig holds SendGrid credentials and delivery settings.
type EmailConfig struct {
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY" validate:"required"`
	BaseURL        string       `envconfig:"SENDGRID_BASE_URL" default:"https://api.sendgrid.com" validate:"url"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"no-reply@eventmail.app" validate:"email"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"EventMail"`
	// TemplatesJSON optionally maps an email kind to a SendGrid dynamic
	// template id, e.g. {"activation": "d-123..."}. Kinds without an entry
	// are rendered locally.
	TemplatesJSON string        `envconfig:"EMAIL_TEMPLATES_JSON" validate:"omitempty,json"`
	HTTPTimeout   time.Duration `envconfig:"EMAIL_HTTP_TIMEOUT" default:"10s"`
	MaxRetries    int           `envconfig:"EMAIL_MAX_RETRIES" default:"0" validate:"min=0,max=5"`
	Sandbox       bool          `envconfig:"SENDGRID_SANDBOX" default:"false"`
}

// TemplateIDs decodes TemplatesJSON. An empty value yields an empty map.
func (c EmailConfig) TemplateIDs() (map[types.EmailKind]string, error) {
	ids := make(map[types.EmailKind]string)
	if c.TemplatesJSON == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(c.TemplatesJSON), &ids); err != nil {
		return nil, fmt.Errorf("config: invalid EMAIL_TEMPLATES_JSON: %w", err)
	}
	for kind := range ids {
		if !kind.Valid() {
			return nil, fmt.Errorf("config: EMAIL_TEMPLATES_JSON has unknown kind %q", kind)
		}
	}
	return ids, nil
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
	// EmailQueueURL enables asynchronous delivery through the email worker.
	EmailQueueURL string `envconfig:"SQS_EMAIL_QUEUE" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// DatabaseConfig holds the optional delivery log database.
type DatabaseConfig struct {
	URL      SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`
	MaxConns int32        `envconfig:"DB_MAX_CONNS" default:"4" validate:"min=1"`
}

// SecurityConfig holds API authentication settings.
type SecurityConfig struct {
	// APIKeyHash is the bcrypt hash of the bearer key accepted by the HTTP API.
	// Empty disables authentication; cmd/api refuses that outside local mode.
	APIKeyHash SecretString `envconfig:"API_KEY_HASH"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"EventMail"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// WorkerConfig tunes the SQS email worker.
type WorkerConfig struct {
	Concurrency int `envconfig:"WORKER_CONCURRENCY" default:"4" validate:"min=1,max=64"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
