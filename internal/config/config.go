package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	BackendURL   string        `envconfig:"BACKEND_URL" default:"http://127.0.0.1:8000"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	ListInterval time.Duration `envconfig:"LIST_INTERVAL" default:"3s"`
	MaxBatchURLs int           `envconfig:"MAX_BATCH_URLS" default:"100"`

	BackendCommand   string        `envconfig:"BACKEND_COMMAND" default:".venv/bin/python"`
	BackendArgs      []string      `envconfig:"BACKEND_ARGS" default:"api.py"`
	BackendDir       string        `envconfig:"BACKEND_DIR" default:"."`
	HealthURL        string        `envconfig:"HEALTH_URL" default:"http://127.0.0.1:8000/health"`
	MainURL          string        `envconfig:"MAIN_URL" default:"http://127.0.0.1:8000"`
	ProbeInterval    time.Duration `envconfig:"PROBE_INTERVAL" default:"1s"`
	ProbeMaxAttempts int           `envconfig:"PROBE_MAX_ATTEMPTS" default:"0"`
	StatusPort       int           `envconfig:"STATUS_PORT" default:"7861"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	StateDir      string `envconfig:"STATE_DIR" default:"./state"`
	DownloadDir   string `envconfig:"DOWNLOAD_DIR" default:"./downloads"`
	ResultWorkers int    `envconfig:"RESULT_WORKERS" default:"4"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"backend URL": c.BackendURL,
		"health URL":  c.HealthURL,
		"main URL":    c.MainURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s: %q", name, raw)
		}
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive: %s", c.HTTPTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %s", c.PollInterval)
	}
	if c.ListInterval <= 0 {
		return fmt.Errorf("list interval must be positive: %s", c.ListInterval)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe interval must be positive: %s", c.ProbeInterval)
	}

	if c.MaxBatchURLs <= 0 {
		return fmt.Errorf("max batch URLs must be positive: %d", c.MaxBatchURLs)
	}
	if c.ProbeMaxAttempts < 0 {
		return fmt.Errorf("probe max attempts cannot be negative: %d", c.ProbeMaxAttempts)
	}
	if c.StatusPort < 0 || c.StatusPort > 65535 {
		return fmt.Errorf("invalid status port: %d", c.StatusPort)
	}
	if c.ResultWorkers <= 0 {
		return fmt.Errorf("result workers must be positive: %d", c.ResultWorkers)
	}

	if c.BackendCommand == "" {
		return fmt.Errorf("backend command cannot be empty")
	}
	if c.StateDir == "" {
		return fmt.Errorf("state directory cannot be empty")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}

	return nil
}
