package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Combinator.PrimaryOn)
	assert.False(t, cfg.Combinator.SecondaryOn)
	assert.Equal(t, 1.0, cfg.Combinator.GradientScaling)
	assert.Equal(t, 1.0, cfg.Combinator.EnergyScaling)
	assert.Equal(t, 0.0, cfg.Combinator.CorrectionGradientScaling)
	assert.Equal(t, 0.0, cfg.Combinator.CorrectionEnergyScaling)
	assert.Equal(t, 200, cfg.Optimizer.Iterations)
	assert.Equal(t, 2, cfg.Domains.Count)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage.yaml")
	data := []byte(`
optimizer:
  iterations: 50
  workers: 2
combinator:
  secondary_on: true
  correction_energy_scaling: 0.5
  gradient_scaling: -0.25
log:
  format: json
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Optimizer.Iterations)
	assert.Equal(t, 2, cfg.Optimizer.Workers)
	assert.True(t, cfg.Combinator.SecondaryOn)
	assert.True(t, cfg.Combinator.PrimaryOn)
	assert.Equal(t, 0.5, cfg.Combinator.CorrectionEnergyScaling)
	assert.Equal(t, -0.25, cfg.Combinator.GradientScaling)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SHAPEWORKS_OPTIMIZER_ITERATIONS", "7")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Optimizer.Iterations)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"iterations", "optimizer.iterations", 0},
		{"workers", "optimizer.workers", -1},
		{"time step", "optimizer.time_step", 0.0},
		{"min step", "optimizer.min_step", 100.0},
		{"growth", "optimizer.growth", 0.5},
		{"reconstruct", "optimizer.reconstruct_every", -2},
		{"sigma", "terms.sigma", 0.0},
		{"particles", "domains.particles", 0},
		{"radius", "domains.radius", -1.0},
		{"format", "log.format", "xml"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set(tt.key, tt.val)
			_, err := FromViper(v)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Terms.Sigma = 0.75

	data, err := cfg.YAML()
	require.NoError(t, err)

	var back Config
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, *cfg, back)
}
