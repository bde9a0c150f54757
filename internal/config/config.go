package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `toml:"app" yaml:"app"`
	Scheduler SchedulerConfig `toml:"scheduler" yaml:"scheduler"`
	Logging   LoggingConfig   `toml:"logging" yaml:"logging"`
	Stress    StressConfig    `toml:"stress" yaml:"stress"`
}

type AppConfig struct {
	TickRate       time.Duration `toml:"tick_rate" yaml:"tick_rate"`
	EntityCapacity int           `toml:"entity_capacity" yaml:"entity_capacity"`
	// SubWorlds are added after the main World, in order.
	SubWorlds []string `toml:"sub_worlds" yaml:"sub_worlds"`
}

type SchedulerConfig struct {
	Executor    string `toml:"executor" yaml:"executor"` // "sequential" or "concurrent"
	MaxParallel int    `toml:"max_parallel" yaml:"max_parallel"`
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "json" or "console"
}

type StressConfig struct {
	Entities int    `toml:"entities" yaml:"entities"`
	Frames   int    `toml:"frames" yaml:"frames"`
	Profile  string `toml:"profile" yaml:"profile"` // "", "cpu" or "mem"
}

// Load reads a TOML or YAML file, picked by extension, over Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		App: AppConfig{
			TickRate:       time.Second / 60,
			EntityCapacity: 1024,
		},
		Scheduler: SchedulerConfig{
			Executor: "sequential",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Stress: StressConfig{
			Entities: 10000,
			Frames:   600,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs error
	if c.App.TickRate <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("app.tick_rate must be positive, got %s", c.App.TickRate))
	}
	if c.App.EntityCapacity < 0 {
		errs = multierr.Append(errs, fmt.Errorf("app.entity_capacity must not be negative, got %d", c.App.EntityCapacity))
	}
	seen := map[string]bool{"main": true}
	for _, name := range c.App.SubWorlds {
		if name == "" || seen[name] {
			errs = multierr.Append(errs, fmt.Errorf("app.sub_worlds: invalid or duplicate name %q", name))
		}
		seen[name] = true
	}

	switch c.Scheduler.Executor {
	case "sequential", "concurrent":
	default:
		errs = multierr.Append(errs, fmt.Errorf("scheduler.executor: unknown executor %q", c.Scheduler.Executor))
	}
	if c.Scheduler.MaxParallel < 0 {
		errs = multierr.Append(errs, errors.New("scheduler.max_parallel must not be negative"))
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = multierr.Append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}

	switch c.Stress.Profile {
	case "", "cpu", "mem":
	default:
		errs = multierr.Append(errs, fmt.Errorf("stress.profile: unknown profile %q", c.Stress.Profile))
	}
	if c.Stress.Entities < 0 || c.Stress.Frames < 0 {
		errs = multierr.Append(errs, errors.New("stress.entities and stress.frames must not be negative"))
	}
	return errs
}
