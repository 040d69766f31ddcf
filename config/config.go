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

	"github.com/kilianp07/microgrid/core/factory"
	"github.com/kilianp07/microgrid/core/metrics"
	"github.com/kilianp07/microgrid/core/model"
	"github.com/kilianp07/microgrid/core/objective"
	"github.com/kilianp07/microgrid/core/results"
	"github.com/kilianp07/microgrid/infra/mqtt"
)

// EnvPrefix marks environment variables that override file settings.
// MG_SYSTEM__COSTS__GRID=0.2 overrides system.costs.grid.
const EnvPrefix = "MG_"

type Config struct {
	System   model.SystemParams   `json:"system"`
	Penalty  objective.Weights    `json:"penalty"`
	Bounds   BoundsConfig         `json:"bounds"`
	Solver   factory.ModuleConfig `json:"solver"`
	Baseline BaselineConfig       `json:"baseline"`
	Data     DataConfig           `json:"data"`
	Logging  LoggingConfig        `json:"logging"`
	Metrics  metrics.Config       `json:"metrics"`
	Results  results.Config       `json:"results"`
	MQTT     mqtt.Config          `json:"mqtt"`
	API      APIConfig            `json:"api"`
}

// Default returns the configuration used for keys absent from the file.
func Default() Config {
	return Config{
		System:   model.DefaultSystemParams(),
		Penalty:  objective.DefaultWeights(),
		Bounds:   BoundsConfig{AllowCharging: true},
		Baseline: BaselineConfig{Enabled: true, UnmetCost: 10},
	}
}

// Load reads a YAML or JSON file, applies MG_ environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
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
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	cfg := Default()
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
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// SetDefaults fills every section's unset options.
func (c *Config) SetDefaults() {
	if c.Solver.Type == "" {
		c.Solver = DefaultSolver()
	}
	c.Data.SetDefaults()
	c.Logging.SetDefaults()
	c.Results.SetDefaults()
	c.MQTT.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.System.Validate(); err != nil {
		return fmt.Errorf("system: %w", err)
	}
	if err := c.Penalty.Validate(); err != nil {
		return fmt.Errorf("penalty: %w", err)
	}
	if err := c.Baseline.Validate(); err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Results.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	return nil
}
