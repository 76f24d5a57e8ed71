// Package config loads the nightly runner configuration from the environment
// and the template catalog from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	envparse "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/codex-k8s/nightly/internal/nightly"
)

// History backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// SupabaseConfig holds the identity provider credentials.
type SupabaseConfig struct {
	// URL is the Supabase project URL from SUPABASE_DEV_URL.
	URL string `env:"URL"`
	// Key is the anonymous key from SUPABASE_DEV_KEY.
	Key string `env:"KEY"`
	// User is the login email from SUPABASE_DEV_USER.
	User string `env:"USER"`
	// Password is the login password from SUPABASE_DEV_PASSWORD.
	Password string `env:"PASSWORD"`
}

// ModelzConfig locates the deployment platform.
type ModelzConfig struct {
	// BaseURL is the API base URL from MODELZ_BASIC_URL.
	BaseURL string `env:"BASIC_URL"`
	// ClusterID selects the cluster deployments are created in, from MODELZ_CLUSTER_ID.
	ClusterID string `env:"CLUSTER_ID"`
}

// Config is the complete runner configuration.
type Config struct {
	Supabase SupabaseConfig `envPrefix:"SUPABASE_DEV_"`
	Modelz   ModelzConfig   `envPrefix:"MODELZ_"`

	// TimeLimit bounds readiness polling per template.
	TimeLimit time.Duration `env:"NIGHTLY_TIME_LIMIT" envDefault:"600s"`
	// TryInterval is the polling cadence.
	TryInterval time.Duration `env:"NIGHTLY_TRY_INTERVAL" envDefault:"1s"`
	// SettleDelay is waited between endpoint assignment and the warm-up probe.
	SettleDelay time.Duration `env:"NIGHTLY_SETTLE_DELAY" envDefault:"10s"`
	// EndpointTimeout bounds the wait for an endpoint.
	EndpointTimeout time.Duration `env:"NIGHTLY_ENDPOINT_TIMEOUT" envDefault:"300s"`
	// StatusRetries is the number of consecutive status fetch failures tolerated.
	StatusRetries int `env:"NIGHTLY_STATUS_RETRIES" envDefault:"3"`
	// ProbeTimeout bounds the warm-up inference request.
	ProbeTimeout time.Duration `env:"NIGHTLY_PROBE_TIMEOUT" envDefault:"10m"`
	// HTTPTimeout bounds single API requests to the platform and identity provider.
	HTTPTimeout time.Duration `env:"NIGHTLY_HTTP_TIMEOUT" envDefault:"30s"`

	// WindowDays is the number of days kept in the history.
	WindowDays int `env:"NIGHTLY_WINDOW_DAYS" envDefault:"5"`
	// HistoryBackend selects "file" or "sqlite".
	HistoryBackend string `env:"NIGHTLY_HISTORY_BACKEND" envDefault:"file"`
	// HistoryPath is the JSON file or SQLite database path.
	HistoryPath string `env:"NIGHTLY_HISTORY_PATH" envDefault:"data/result.json"`

	// ReportTemplate overrides the embedded report template.
	ReportTemplate string `env:"NIGHTLY_REPORT_TEMPLATE"`
	// ReportOutput is the rendered report path.
	ReportOutput string `env:"NIGHTLY_REPORT_OUTPUT" envDefault:"README.md"`
	// TemplatesFile overrides the embedded template catalog.
	TemplatesFile string `env:"NIGHTLY_TEMPLATES_FILE"`

	// LogLevel is the default log level from NIGHTLY_LOG_LEVEL.
	LogLevel string `env:"NIGHTLY_LOG_LEVEL"`
	// GitHubOutput is the GitHub Actions output file.
	GitHubOutput string `env:"GITHUB_OUTPUT"`
}

// MissingError lists required configuration variables that are not set.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Keys, ", "))
}

// IsMissingError reports whether err is a MissingError.
func IsMissingError(err error) bool {
	var target *MissingError
	return errors.As(err, &target)
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// EnvFile is an optional .env file; a missing file is ignored.
	EnvFile string
	// Environ overrides the process environment, mainly for tests.
	Environ map[string]string
}

// Load reads the configuration from the environment merged over the optional .env file
// and validates it for a full sweep.
func Load(opts LoadOptions) (*Config, error) {
	cfg, err := parse(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOffline reads the configuration without requiring platform credentials.
// It serves commands that only touch the history and the report.
func LoadOffline(opts LoadOptions) (*Config, error) {
	cfg, err := parse(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateSettings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(opts LoadOptions) (*Config, error) {
	vars := opts.Environ
	if vars == nil {
		vars = environMap(os.Environ())
	}
	if path := strings.TrimSpace(opts.EnvFile); path != "" {
		fileVars, err := godotenv.Read(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("load env file %q: %w", path, err)
		default:
			vars = merge(fileVars, vars)
		}
	}

	var cfg Config
	if err := envparse.ParseWithOptions(&cfg, envparse.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks required variables and value ranges.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"SUPABASE_DEV_URL", c.Supabase.URL},
		{"SUPABASE_DEV_KEY", c.Supabase.Key},
		{"SUPABASE_DEV_USER", c.Supabase.User},
		{"SUPABASE_DEV_PASSWORD", c.Supabase.Password},
		{"MODELZ_BASIC_URL", c.Modelz.BaseURL},
		{"MODELZ_CLUSTER_ID", c.Modelz.ClusterID},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}
	return c.validateSettings()
}

// validateSettings checks timing, window and backend values.
func (c *Config) validateSettings() error {
	if c.TryInterval <= 0 {
		return fmt.Errorf("NIGHTLY_TRY_INTERVAL must be positive, got %s", c.TryInterval)
	}
	if c.TryInterval%time.Millisecond != 0 {
		return fmt.Errorf("NIGHTLY_TRY_INTERVAL must be a whole number of milliseconds, got %s", c.TryInterval)
	}
	if c.TimeLimit < c.TryInterval {
		return fmt.Errorf("NIGHTLY_TIME_LIMIT %s is shorter than the try interval %s", c.TimeLimit, c.TryInterval)
	}
	if c.EndpointTimeout < c.TryInterval {
		return fmt.Errorf("NIGHTLY_ENDPOINT_TIMEOUT %s is shorter than the try interval %s", c.EndpointTimeout, c.TryInterval)
	}
	if c.StatusRetries < 0 {
		return fmt.Errorf("NIGHTLY_STATUS_RETRIES must not be negative, got %d", c.StatusRetries)
	}
	if c.WindowDays <= 0 {
		return fmt.Errorf("NIGHTLY_WINDOW_DAYS must be positive, got %d", c.WindowDays)
	}
	switch c.HistoryBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unsupported history backend %q", c.HistoryBackend)
	}
	return nil
}

// Policy returns the lifecycle timing policy.
func (c *Config) Policy() nightly.Policy {
	return nightly.Policy{
		TimeLimit:       c.TimeLimit,
		TryInterval:     c.TryInterval,
		SettleDelay:     c.SettleDelay,
		EndpointTimeout: c.EndpointTimeout,
		StatusRetries:   c.StatusRetries,
		ProbeTimeout:    c.ProbeTimeout,
	}
}

func environMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

// merge combines variable sets, later sets overriding earlier keys.
func merge(sets ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}
