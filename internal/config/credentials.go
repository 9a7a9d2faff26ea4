package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Required environment variable names.
const (
	EnvModelKey    = "GROQ_API_KEY"
	EnvSearchKey   = "BRAVE_API_KEY"
	EnvPlatformKey = "PLATFORM_API_KEY"
)

// Credentials holds the three secrets every agent depends on. They live only
// in memory for the lifetime of the process.
type Credentials struct {
	ModelKey    string
	SearchKey   string
	PlatformKey string
}

// Env holds optional settings read from the environment.
type Env struct {
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`
	ConfigPath        string `envconfig:"FINAGENT_CONFIG"`
	SentryDSN         string `envconfig:"SENTRY_DSN"`
	SentryEnvironment string `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
}

// ConfigurationError halts startup. Missing lists every absent credential.
type ConfigurationError struct {
	Missing []string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		return "configuration error: " + e.Err.Error()
	}
	return "configuration error"
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// LoadEnv loads .env (if present) and the optional settings.
func LoadEnv() (*Env, error) {
	// A missing .env is fine; variables already set take precedence.
	_ = godotenv.Load()

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("processing env: %w", err)}
	}
	return &env, nil
}

// LoadCredentials reads the three required secrets. All absent keys are
// reported together; no partial credentials are ever returned.
func LoadCredentials() (*Credentials, error) {
	_ = godotenv.Load()

	creds := &Credentials{}
	fields := []struct {
		name string
		dst  *string
	}{
		{EnvModelKey, &creds.ModelKey},
		{EnvSearchKey, &creds.SearchKey},
		{EnvPlatformKey, &creds.PlatformKey},
	}

	var missing []string
	for _, f := range fields {
		v := strings.TrimSpace(os.Getenv(f.name))
		if v == "" {
			missing = append(missing, f.name)
			continue
		}
		*f.dst = v
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}
	return creds, nil
}
