// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Backend kinds.
const (
	BackendGPU = "gpu"
	BackendCPU = "cpu"
)

// Config holds all configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Simulation SimulationConfig `yaml:"simulation"`
	Backend    BackendConfig    `yaml:"backend"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Server     ServerConfig     `yaml:"server"`
	Tune       TuneConfig       `yaml:"tune"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds window settings.
type ScreenConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	TargetFPS  int    `yaml:"target_fps"`
	Title      string `yaml:"title"`
	PanelWidth int    `yaml:"panel_width"` // Parameter panel on the right edge
}

// SimulationConfig holds the grid size and initial model parameters.
// Values are pushed through the simulation's validated setters, so an out of
// range entry fails at startup rather than being clamped.
type SimulationConfig struct {
	Width          int     `yaml:"width"`  // 0 = screen width minus panel
	Height         int     `yaml:"height"` // 0 = screen height
	StepsPerFrame  int     `yaml:"steps_per_frame"`
	DiffuseRadius  int     `yaml:"diffuse_radius"`
	FeedRate       float64 `yaml:"feed_rate"`
	RemoveRate     float64 `yaml:"remove_rate"`
	DiffuseRateB   float64 `yaml:"diffuse_rate_b"`
	FancyRendering bool    `yaml:"fancy_rendering"`
	SeedRadius     int     `yaml:"seed_radius"`
}

// BackendConfig selects the compute backend.
type BackendConfig struct {
	Kind    string `yaml:"kind"`    // "gpu" or "cpu"
	Workers int    `yaml:"workers"` // CPU row workers, 0 = GOMAXPROCS
}

// TelemetryConfig holds stats and perf logging settings.
type TelemetryConfig struct {
	FPSWindow     int `yaml:"fps_window"`     // Frame intervals averaged by the FPS counter
	PerfWindow    int `yaml:"perf_window"`    // Frames averaged by the perf collector
	StatsInterval int `yaml:"stats_interval"` // Frames between field stats records
}

// ServerConfig holds web viewer settings.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	FrameIntervalMS int    `yaml:"frame_interval_ms"` // Minimum gap between broadcast frames
}

// TuneConfig holds parameter search settings for cmd/tune.
type TuneConfig struct {
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	Frames         int     `yaml:"frames"`          // Frames simulated per evaluation
	MaxEvals       int     `yaml:"max_evals"`       // Optimizer function evaluation budget
	TargetCoverage float64 `yaml:"target_coverage"` // Desired fraction of cells with B above threshold
}

// DerivedConfig holds values computed from other config fields.
type DerivedConfig struct {
	GridW         int
	GridH         int
	FrameInterval time.Duration
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate checks settings that no setter downstream would catch.
// Model parameters are range-checked by the simulation itself.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendGPU, BackendCPU:
	default:
		return fmt.Errorf("backend.kind %q: must be %q or %q", c.Backend.Kind, BackendGPU, BackendCPU)
	}
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		return fmt.Errorf("screen size %dx%d: must be positive", c.Screen.Width, c.Screen.Height)
	}
	if c.Simulation.Width < 0 || c.Simulation.Height < 0 {
		return fmt.Errorf("simulation size %dx%d: must not be negative", c.Simulation.Width, c.Simulation.Height)
	}
	if c.Simulation.SeedRadius < 0 {
		return fmt.Errorf("simulation.seed_radius %d: must not be negative", c.Simulation.SeedRadius)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	// Grid defaults to the window area left of the panel
	c.Derived.GridW = c.Simulation.Width
	if c.Derived.GridW == 0 {
		c.Derived.GridW = max(c.Screen.Width-c.Screen.PanelWidth, 1)
	}
	c.Derived.GridH = c.Simulation.Height
	if c.Derived.GridH == 0 {
		c.Derived.GridH = c.Screen.Height
	}
	c.Derived.FrameInterval = time.Duration(c.Server.FrameIntervalMS) * time.Millisecond
}

// SetGridSize overrides the grid dimensions, e.g. from command-line flags.
// Non-positive values keep the current size.
func (c *Config) SetGridSize(w, h int) {
	if w > 0 {
		c.Simulation.Width = w
	}
	if h > 0 {
		c.Simulation.Height = h
	}
	c.computeDerived()
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
