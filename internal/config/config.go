// Package config handles renderer configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/integrator"
)

// ErrUnknownIntegrator is returned for integrator names other than path or debug
var ErrUnknownIntegrator = errors.New("config: unknown integrator")

// Config holds all renderer settings.
type Config struct {
	Render  RenderConfig  `yaml:"render"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// RenderConfig holds view and tracing settings.
type RenderConfig struct {
	Width               int     `yaml:"width"`
	Height              int     `yaml:"height"`
	FovDegrees          float64 `yaml:"fov_degrees"`
	Threads             int     `yaml:"threads"`
	Iterations          int     `yaml:"iterations"` // 0 renders until interrupted
	SamplesPerIteration int     `yaml:"samples_per_iteration"`
	Seed                uint64  `yaml:"seed"`
	MaxBounces          int     `yaml:"max_bounces"`
	Integrator          string  `yaml:"integrator"` // path or debug
	DebugMode           string  `yaml:"debug_mode"`
}

// OutputConfig holds image output settings.
type OutputConfig struct {
	Path      string  `yaml:"path"`
	Exposure  float64 `yaml:"exposure"`
	SaveEvery int     `yaml:"save_every"` // iterations between intermediate saves, 0 disables
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// ServerConfig holds web server settings.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	ScenesDir string `yaml:"scenes_dir"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	view := core.DefaultViewParameters()
	trace := core.DefaultTraceParameters()
	return &Config{
		Render: RenderConfig{
			Width:               view.Width,
			Height:              view.Height,
			FovDegrees:          45,
			Threads:             trace.NumThreads,
			Iterations:          trace.Iterations,
			SamplesPerIteration: trace.SamplesPerIteration,
			Seed:                0,
			MaxBounces:          integrator.DefaultMaxBounces,
			Integrator:          "path",
			DebugMode:           "albedo",
		},
		Output: OutputConfig{
			Path:      "result.png",
			Exposure:  1.0,
			SaveEvery: 0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Server: ServerConfig{
			Port:      8080,
			ScenesDir: "scenes",
		},
	}
}

// View returns the image and lens parameters of the render section.
func (c *Config) View() core.ViewParameters {
	return core.ViewParameters{
		Width:  c.Render.Width,
		Height: c.Render.Height,
		FovY:   c.Render.FovDegrees * math.Pi / 180,
	}
}

// Trace returns the work parameters of the render section.
func (c *Config) Trace() core.TraceParameters {
	return core.TraceParameters{
		NumThreads:          c.Render.Threads,
		Iterations:          c.Render.Iterations,
		SamplesPerIteration: c.Render.SamplesPerIteration,
	}
}

// NewIntegrator builds the integrator selected by the render section.
func (c *Config) NewIntegrator() (integrator.Integrator, error) {
	switch c.Render.Integrator {
	case "", "path":
		return integrator.NewPathTracingIntegrator(c.Render.MaxBounces), nil
	case "debug":
		mode, err := integrator.ParseDebugMode(c.Render.DebugMode)
		if err != nil {
			return nil, err
		}
		return integrator.NewDebugIntegrator(mode), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownIntegrator, c.Render.Integrator)
}

// Validate checks every setting that would make a render fail.
func (c *Config) Validate() error {
	if err := c.View().Validate(); err != nil {
		return err
	}
	if err := c.Trace().Validate(); err != nil {
		return err
	}
	if _, err := c.NewIntegrator(); err != nil {
		return err
	}
	if c.Output.SaveEvery < 0 {
		return fmt.Errorf("config: save_every must not be negative, got %d", c.Output.SaveEvery)
	}
	return nil
}
