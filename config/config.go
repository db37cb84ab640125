package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ehdgml1/vehicle-sim/core/metrics"
	"github.com/ehdgml1/vehicle-sim/core/model"
	"github.com/ehdgml1/vehicle-sim/infra/logger"
	"github.com/ehdgml1/vehicle-sim/infra/mqtt"
)

// EnvPrefix marks environment variables that override file settings.
// Nested keys use a double underscore: VSIM_SIMULATOR__MODE=battery_low.
const EnvPrefix = "VSIM_"

// Config is the root configuration of the simulator process.
type Config struct {
	Simulator SimulatorConfig `json:"simulator"`
	Broker    mqtt.Config     `json:"broker"`
	Metrics   metrics.Config  `json:"metrics"`
	Recorder  RecorderConfig  `json:"recorder"`
	LogLevel  string          `json:"log_level"`
}

// Load reads path (YAML or JSON) when given, applies environment overrides,
// fills defaults and validates the result. An empty path yields defaults
// plus environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Simulator.SetDefaults()
	c.Broker.SetDefaults()
	c.Metrics.SetDefaults()
	c.Recorder.SetDefaults()
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports the first invalid section.
func (c Config) Validate() error {
	if err := c.Simulator.Validate(); err != nil {
		return err
	}
	if err := c.Broker.Validate(); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.Recorder.Validate(); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Scenario returns the parsed initial scenario.
func (c Config) Scenario() (model.ScenarioMode, error) {
	return model.ParseScenarioMode(c.Simulator.Mode)
}
