package config

import (
	"fmt"

	"github.com/kilianp07/microgrid/core/factory"
	"github.com/kilianp07/microgrid/core/optimize"
)

// BoundsConfig shapes the search box.
type BoundsConfig struct {
	// AllowCharging sets the battery lower bound to -max_charge. When false
	// the battery may only discharge.
	AllowCharging bool `json:"allow_charging"`
}

// BaselineConfig controls the LP reference run.
type BaselineConfig struct {
	Enabled   bool    `json:"enabled"`
	UnmetCost float64 `json:"unmet_cost"`
}

// Validate checks the unserved-load price of an enabled baseline.
func (c BaselineConfig) Validate() error {
	if c.Enabled && c.UnmetCost <= 0 {
		return fmt.Errorf("unmet_cost must be positive")
	}
	return nil
}

// DataConfig locates the input series.
type DataConfig struct {
	Path string `json:"path"`
	// Horizon truncates the dataset when positive.
	Horizon int `json:"horizon"`
}

// SetDefaults applies the default dataset location.
func (c *DataConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "data.csv"
	}
}

// APIConfig protects the run history served next to /metrics.
type APIConfig struct {
	// Token, when set, is required as a Bearer token.
	Token string `json:"token"`
}

// DefaultSolver returns the reference Cuckoo Search configuration.
func DefaultSolver() factory.ModuleConfig {
	o := optimize.DefaultCuckooOptions()
	return factory.ModuleConfig{
		Type: "cuckoo",
		Conf: map[string]any{
			"max_iter": o.MaxIter,
			"n_nests":  o.Nests,
			"alpha0":   o.Alpha0,
			"beta":     o.Beta,
		},
	}
}
