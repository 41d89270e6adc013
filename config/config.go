// Package config handles the daemon configuration file and its environment
// overrides.
//
// Config is stored as YAML (default /etc/driftd/config.yaml). A missing file
// is not an error: defaults apply, and everything needed at runtime
// (schedule, registry credentials) can come from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "/etc/driftd/config.yaml"

// Duration is a time.Duration that unmarshals from YAML strings like "90s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Engine bounds calls against the container engine.
type Engine struct {
	CallTimeout Duration `yaml:"call_timeout,omitempty"`
	PullTimeout Duration `yaml:"pull_timeout,omitempty"`
}

// Registry holds static credentials for image pulls. All fields optional.
type Registry struct {
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Server   string `yaml:"server,omitempty"`
}

// Telemetry controls trace export.
type Telemetry struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// Config is the daemon configuration.
type Config struct {
	Schedule  string    `yaml:"schedule,omitempty"`  // cron expression or descriptor
	LogLevel  string    `yaml:"log_level,omitempty"` // debug, info, warn, error
	DataRoot  string    `yaml:"data_root,omitempty"` // event journal location; empty disables
	Engine    Engine    `yaml:"engine,omitempty"`
	Registry  Registry  `yaml:"registry,omitempty"`
	Telemetry Telemetry `yaml:"telemetry,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Schedule: "@every 1m",
		LogLevel: "info",
		Engine: Engine{
			CallTimeout: Duration(time.Minute),
			PullTimeout: Duration(10 * time.Minute),
		},
	}
}

// Load reads the config file at path (DefaultPath when empty), applies
// environment overrides, and returns the result. A missing file yields
// defaults plus environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults + env only.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays DRIFTD_* environment variables. Environment wins over
// the file so credentials can stay out of it.
func (c *Config) applyEnv() {
	if v := os.Getenv("DRIFTD_SCHEDULE"); v != "" {
		c.Schedule = v
	}
	if v := os.Getenv("DRIFTD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DRIFTD_DATA_ROOT"); v != "" {
		c.DataRoot = v
	}
	if v := os.Getenv("DRIFTD_REGISTRY_USERNAME"); v != "" {
		c.Registry.Username = v
	}
	if v := os.Getenv("DRIFTD_REGISTRY_PASSWORD"); v != "" {
		c.Registry.Password = v
	}
	if v := os.Getenv("DRIFTD_REGISTRY_SERVER"); v != "" {
		c.Registry.Server = v
	}
}
