// Package config provides unified configuration loading for polarsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rockladyeagles/polarmodel/internal/engine"
	"github.com/rockladyeagles/polarmodel/internal/entropy"
	"github.com/rockladyeagles/polarmodel/internal/report"
	"github.com/rockladyeagles/polarmodel/internal/sweep"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "polarsim.yaml"

// ErrInvalid classifies configuration errors.
var ErrInvalid = errors.New("config: invalid")

// Config contains all polarsim configuration settings.
type Config struct {
	// Simulation holds the single-run parameters. Seed 0 asks for a random seed.
	Simulation engine.Params `json:"simulation" yaml:"simulation" validate:"-"`

	// Sweep varies one parameter around Simulation.
	Sweep SweepConfig `json:"sweep" yaml:"sweep" validate:"-"`

	Output  OutputConfig  `json:"output" yaml:"output"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	API     APIConfig     `json:"api" yaml:"api"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SweepConfig is a sweep plan plus the step ceiling its runs use.
type SweepConfig struct {
	sweep.Plan `yaml:",inline"`

	// MaxSteps overrides Simulation.MaxSteps for sweep runs when positive.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`
}

// OutputConfig names the files runs write.
type OutputConfig struct {
	Plot        string `json:"plot" yaml:"plot"`
	SweepPlot   string `json:"sweep_plot" yaml:"sweep_plot"`
	CSV         string `json:"csv,omitempty" yaml:"csv,omitempty"`
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
}

// StorageConfig configures the SQLite result store.
type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path" validate:"required_if=Enabled true"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Port            int      `json:"port" yaml:"port" validate:"gte=1,lte=65535"`
	CORSOrigins     []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
	SeriesRateLimit int      `json:"series_rate_limit" yaml:"series_rate_limit" validate:"gte=0"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level sets the log verbosity: "debug", "info" (default), "warn" or "error".
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`

	// Format selects the slog handler: "text" (default) or "json".
	Format string `json:"format" yaml:"format" validate:"oneof=text json"`
}

// SlogLevel converts Level to a slog.Level, defaulting to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Default returns a Config with the demonstration defaults.
func Default() *Config {
	plan := sweep.DefaultPlan()
	return &Config{
		Simulation: engine.DefaultParams(),
		Sweep: SweepConfig{
			Plan:     plan,
			MaxSteps: plan.Base.MaxSteps,
		},
		Output: OutputConfig{
			Plot:      report.DefaultDispersionFile,
			SweepPlot: report.DefaultSweepFile,
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    "polarsim.db",
		},
		API: APIConfig{
			Port:            8080,
			SeriesRateLimit: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from path (or DefaultFile when path is empty and
// the file exists) and applies environment variable overrides.
// Order: defaults -> file -> environment variables
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	config.Storage.Path = expandEnvVars(config.Storage.Path)

	return config, nil
}

var validate = validator.New()

// Validate checks every section. Parameter errors keep their
// engine.ErrInvalidConfig classification.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		errs = append(errs, err)
	}
	if err := c.Simulation.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.SweepPlan().Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// SweepPlan returns the sweep plan with Simulation as its base.
func (c *Config) SweepPlan() sweep.Plan {
	plan := c.Sweep.Plan
	plan.Base = c.Simulation
	if c.Sweep.MaxSteps > 0 {
		plan.Base.MaxSteps = c.Sweep.MaxSteps
	}
	return plan
}

// ResolveSeed replaces a zero seed with one drawn from the OS and returns
// the seed in effect.
func (c *Config) ResolveSeed() int64 {
	if c.Simulation.Seed == 0 {
		c.Simulation.Seed = entropy.CryptoSeed()
		slog.Info("drew random seed", "seed", c.Simulation.Seed)
	}
	return c.Simulation.Seed
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("POLARSIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: POLARSIM_SEED=%q: %v", ErrInvalid, v, err)
		}
		config.Simulation.Seed = seed
	}

	if v := os.Getenv("POLARSIM_DB"); v != "" {
		config.Storage.Path = v
		config.Storage.Enabled = true
	}

	if v := os.Getenv("POLARSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv("POLARSIM_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: POLARSIM_API_PORT=%q: %v", ErrInvalid, v, err)
		}
		config.API.Port = port
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
