package cmd

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(data, []byte(`load,pv,wind
20,0,3
18,6,2
25,12,1
`), 0o644))
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`solver:
  type: pso
  conf:
    max_iter: 30
    n_particles: 10
    w: 0.9
    w_damp: 0.99
    c1: 2
    c2: 2
    vel_max: 10
    seed: 3
data:
  path: `+data+`
logging:
  level: error
results:
  backend: jsonl
  path: `+filepath.Join(dir, "plans.jsonl")+`
`), 0o644))
	return cfg
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlanAndHistory(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := execute(t, "plan", "-c", cfg, "-f", "csv")
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "grid_kw", rows[0][2])

	out, err = execute(t, "history", "-c", cfg, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"solver": "pso"`)

	out, err = execute(t, "history", "-c", cfg, "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "fallback")
	assert.Contains(t, out, "pso")
}

func TestPlanRejectsUnknownFormat(t *testing.T) {
	cfg := writeTestConfig(t)
	_, err := execute(t, "plan", "-c", cfg, "-f", "xml")
	require.Error(t, err)
	planFlags.format = "json"
}

func TestBench(t *testing.T) {
	cfg := writeTestConfig(t)
	out, err := execute(t, "bench", "-c", cfg, "--dim", "2", "--seeds", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "pso solved")
}

func TestSphere(t *testing.T) {
	assert.Equal(t, 0.0, sphere([]float64{0, 0}))
	assert.Equal(t, 5.0, sphere([]float64{1, -2}))
}
