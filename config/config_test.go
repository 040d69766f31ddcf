package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/microgrid/core/model"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `system:
  costs:
    diesel: 0.4
  battery:
    capacity_kwh: 200
penalty:
  balance: 500
solver:
  type: pso
  conf:
    max_iter: 100
    n_particles: 20
    w: 0.7298
    w_damp: 1
    c1: 1.49618
    c2: 1.49618
    vel_max: 4
data:
  path: "forecast.csv"
  horizon: 24
logging:
  level: debug
metrics:
  sinks:
    - type: "nop"
results:
  backend: sqlite
  path: plans.db
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	def := model.DefaultSystemParams()
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"diesel", cfg.System.Costs.Diesel, 0.4},
		{"grid default kept", cfg.System.Costs.Grid, def.Costs.Grid},
		{"capacity", cfg.System.Battery.CapacityKWh, 200.0},
		{"min_soc default kept", cfg.System.Battery.MinSoC, def.Battery.MinSoC},
		{"balance", cfg.Penalty.Balance, 500.0},
		{"bounds default kept", cfg.Penalty.Bounds, 1e5},
		{"allow_charging", cfg.Bounds.AllowCharging, true},
		{"baseline", cfg.Baseline.Enabled, true},
		{"solver", cfg.Solver.Type, "pso"},
		{"data.path", cfg.Data.Path, "forecast.csv"},
		{"data.horizon", cfg.Data.Horizon, 24},
		{"level", cfg.Logging.Level, "debug"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"results", cfg.Results.Backend, "sqlite"},
		{"mqtt topic", cfg.MQTT.PlanTopic(), "microgrid/plan"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: got %v want %v", c.name, c.got, c.want)
		}
	}
	assert.Len(t, cfg.Solver.Conf, 7)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.json", `{"bounds": {"allow_charging": false}}`))
	require.NoError(t, err)
	assert.False(t, cfg.Bounds.AllowCharging)
	assert.Equal(t, model.DefaultSystemParams(), cfg.System)
	assert.Equal(t, DefaultSolver(), cfg.Solver)
	assert.Equal(t, "none", cfg.Results.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MG_SYSTEM__COSTS__GRID", "0.2")
	t.Setenv("MG_LOGGING__LEVEL", "warn")
	t.Setenv("MG_API__TOKEN", "secret")
	cfg, err := Load(writeFile(t, "config.yaml", "logging:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.System.Costs.Grid)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "secret", cfg.API.Token)
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "cuckoo", cfg.Solver.Type)
	assert.Equal(t, "jsonl_rotating", cfg.Results.Backend)
	require.Len(t, cfg.Metrics.Sinks, 1)
	assert.Equal(t, "prometheus", cfg.Metrics.Sinks[0].Type)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		name string
		data string
	}{
		"format":     {"config.toml", ""},
		"soc window": {"config.yaml", "system:\n  battery:\n    min_soc: 0.95\n"},
		"penalty":    {"config.yaml", "penalty:\n  bounds: -1\n"},
		"level":      {"config.yaml", "logging:\n  level: loud\n"},
		"results":    {"config.yaml", "results:\n  backend: jsonl\n"},
		"mqtt":       {"config.yaml", "mqtt:\n  enabled: true\n"},
		"baseline":   {"config.yaml", "baseline:\n  unmet_cost: 0\n"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, c.name, c.data))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
