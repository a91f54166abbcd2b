// Package config loads the settings of one optimization stage from a file,
// the environment and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid value")

// EnvPrefix is the prefix of environment overrides, e.g.
// SHAPEWORKS_OPTIMIZER_ITERATIONS.
const EnvPrefix = "SHAPEWORKS"

type Config struct {
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Optimizer  OptimizerConfig  `mapstructure:"optimizer" yaml:"optimizer"`
	Combinator CombinatorConfig `mapstructure:"combinator" yaml:"combinator"`
	Terms      TermsConfig      `mapstructure:"terms" yaml:"terms"`
	Domains    DomainsConfig    `mapstructure:"domains" yaml:"domains"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

type OptimizerConfig struct {
	Iterations   int     `mapstructure:"iterations" yaml:"iterations"`
	Tolerance    float64 `mapstructure:"tolerance" yaml:"tolerance"`
	MaxNoImprove int     `mapstructure:"max_no_improve" yaml:"max_no_improve"`
	Workers      int     `mapstructure:"workers" yaml:"workers"`
	TimeStep     float64 `mapstructure:"time_step" yaml:"time_step"`
	MinStep      float64 `mapstructure:"min_step" yaml:"min_step"`
	MaxStep      float64 `mapstructure:"max_step" yaml:"max_step"`
	Growth       float64 `mapstructure:"growth" yaml:"growth"`
	// ReconstructEvery queues shape vectors for reconstruction every N
	// iterations.  Zero disables it.
	ReconstructEvery int   `mapstructure:"reconstruct_every" yaml:"reconstruct_every"`
	Seed             int64 `mapstructure:"seed" yaml:"seed"`
}

type CombinatorConfig struct {
	PrimaryOn                 bool    `mapstructure:"primary_on" yaml:"primary_on"`
	SecondaryOn               bool    `mapstructure:"secondary_on" yaml:"secondary_on"`
	GradientScaling           float64 `mapstructure:"gradient_scaling" yaml:"gradient_scaling"`
	EnergyScaling             float64 `mapstructure:"energy_scaling" yaml:"energy_scaling"`
	CorrectionGradientScaling float64 `mapstructure:"correction_gradient_scaling" yaml:"correction_gradient_scaling"`
	CorrectionEnergyScaling   float64 `mapstructure:"correction_energy_scaling" yaml:"correction_energy_scaling"`
}

type TermsConfig struct {
	Sigma     float64 `mapstructure:"sigma" yaml:"sigma"`
	Stiffness float64 `mapstructure:"stiffness" yaml:"stiffness"`
	MaxMove   float64 `mapstructure:"max_move" yaml:"max_move"`
	// Debug wraps the combined function so every evaluation is logged.
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

type DomainsConfig struct {
	Count     int     `mapstructure:"count" yaml:"count"`
	Particles int     `mapstructure:"particles" yaml:"particles"`
	Radius    float64 `mapstructure:"radius" yaml:"radius"`
}

type OutputConfig struct {
	// DB is a sqlite file that receives per-iteration rows.  Empty disables it.
	DB          string `mapstructure:"db" yaml:"db"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("optimizer.iterations", 200)
	v.SetDefault("optimizer.tolerance", 1e-8)
	v.SetDefault("optimizer.max_no_improve", 10)
	v.SetDefault("optimizer.workers", 4)
	v.SetDefault("optimizer.time_step", 1.0)
	v.SetDefault("optimizer.min_step", 1e-6)
	v.SetDefault("optimizer.max_step", 10.0)
	v.SetDefault("optimizer.growth", 1.1)
	v.SetDefault("optimizer.reconstruct_every", 0)
	v.SetDefault("optimizer.seed", 1)

	v.SetDefault("combinator.primary_on", true)
	v.SetDefault("combinator.secondary_on", false)
	v.SetDefault("combinator.gradient_scaling", 1.0)
	v.SetDefault("combinator.energy_scaling", 1.0)
	v.SetDefault("combinator.correction_gradient_scaling", 0.0)
	v.SetDefault("combinator.correction_energy_scaling", 0.0)

	v.SetDefault("terms.sigma", 0.3)
	v.SetDefault("terms.stiffness", 1.0)
	v.SetDefault("terms.max_move", 0.1)
	v.SetDefault("terms.debug", false)

	v.SetDefault("domains.count", 2)
	v.SetDefault("domains.particles", 32)
	v.SetDefault("domains.radius", 1.0)

	v.SetDefault("output.db", "")
	v.SetDefault("output.metrics_addr", "")
}

// Load reads path (if not empty) on top of the defaults and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %v: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Log.Format != "console" && c.Log.Format != "json":
		return fmt.Errorf("%w: log.format must be console or json, got %q", ErrInvalid, c.Log.Format)
	case c.Optimizer.Iterations <= 0:
		return fmt.Errorf("%w: optimizer.iterations must be positive", ErrInvalid)
	case c.Optimizer.Workers <= 0:
		return fmt.Errorf("%w: optimizer.workers must be positive", ErrInvalid)
	case c.Optimizer.TimeStep <= 0:
		return fmt.Errorf("%w: optimizer.time_step must be positive", ErrInvalid)
	case c.Optimizer.MinStep < 0 || c.Optimizer.MinStep > c.Optimizer.MaxStep:
		return fmt.Errorf("%w: optimizer.min_step must be in [0, max_step]", ErrInvalid)
	case c.Optimizer.Growth < 1:
		return fmt.Errorf("%w: optimizer.growth must be at least 1", ErrInvalid)
	case c.Optimizer.ReconstructEvery < 0:
		return fmt.Errorf("%w: optimizer.reconstruct_every must not be negative", ErrInvalid)
	case c.Terms.Sigma <= 0:
		return fmt.Errorf("%w: terms.sigma must be positive", ErrInvalid)
	case c.Domains.Count <= 0 || c.Domains.Particles <= 0:
		return fmt.Errorf("%w: domains.count and domains.particles must be positive", ErrInvalid)
	case c.Domains.Radius <= 0:
		return fmt.Errorf("%w: domains.radius must be positive", ErrInvalid)
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
