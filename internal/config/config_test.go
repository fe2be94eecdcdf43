package config

import (
	"errors"
	"flag"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/urfave/cli"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/integrator"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Render.Width != 512 || cfg.Render.Height != 512 {
		t.Errorf("expected 512x512, got %dx%d", cfg.Render.Width, cfg.Render.Height)
	}
	if cfg.Render.Threads != 4 {
		t.Errorf("expected 4 threads, got %d", cfg.Render.Threads)
	}
	if cfg.Render.Iterations != 10 {
		t.Errorf("expected 10 iterations, got %d", cfg.Render.Iterations)
	}
	if cfg.Render.SamplesPerIteration != 256 {
		t.Errorf("expected 256 samples, got %d", cfg.Render.SamplesPerIteration)
	}
	if cfg.Render.MaxBounces != integrator.DefaultMaxBounces {
		t.Errorf("expected %d bounces, got %d", integrator.DefaultMaxBounces, cfg.Render.MaxBounces)
	}
	if cfg.Output.Path != "result.png" {
		t.Errorf("expected result.png, got %s", cfg.Output.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}

	view := cfg.View()
	if math.Abs(view.FovY-math.Pi/4) > 1e-12 {
		t.Errorf("expected 45 degrees in radians, got %v", view.FovY)
	}
	if cfg.Trace() != core.DefaultTraceParameters() {
		t.Errorf("expected default trace parameters, got %+v", cfg.Trace())
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
render:
  width: 320
  height: 200
  iterations: 0
  seed: 42
  integrator: debug
  debug_mode: normal

output:
  path: out/frame.png
  exposure: 2.5
  save_every: 5

logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Render.Width != 320 || cfg.Render.Height != 200 {
		t.Errorf("expected 320x200, got %dx%d", cfg.Render.Width, cfg.Render.Height)
	}
	if !cfg.Trace().Unbounded() {
		t.Error("expected iterations 0 to be unbounded")
	}
	if cfg.Render.Seed != 42 {
		t.Errorf("expected seed 42, got %d", cfg.Render.Seed)
	}
	// values absent from the file keep their defaults
	if cfg.Render.SamplesPerIteration != 256 {
		t.Errorf("expected default samples, got %d", cfg.Render.SamplesPerIteration)
	}
	if cfg.Output.Exposure != 2.5 || cfg.Output.SaveEvery != 5 {
		t.Errorf("unexpected output section %+v", cfg.Output)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}

	integ, err := cfg.NewIntegrator()
	if err != nil {
		t.Fatalf("NewIntegrator failed: %v", err)
	}
	debug, ok := integ.(*integrator.DebugIntegrator)
	if !ok || debug.Mode != integrator.DebugNormal {
		t.Errorf("expected a normal debug integrator, got %#v", integ)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	invalidYAML := `
render:
  width: not a number
  invalid syntax here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Render.Threads = 12
	cfg.Output.Path = "render.png"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("expected %+v, got %+v", cfg, loaded)
	}
}

func TestSaveToRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Render.Threads = 0
	if err := cfg.SaveTo(path); !errors.Is(err, core.ErrNoThreads) {
		t.Errorf("expected ErrNoThreads, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected no file to be written for an invalid config")
	}
}

func TestSaveWritesDefaultPath(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("config directory is taken from XDG_CONFIG_HOME on linux only")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Render.Iterations = 3
	path, err := cfg.Save()
	if err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	if path != DefaultPath() || filepath.Base(path) != FileName {
		t.Errorf("expected %s, got %s", DefaultPath(), path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# pathtracer") {
		t.Errorf("expected a header comment, got %q", data[:min(len(data), 40)])
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Render.Iterations != 3 {
		t.Errorf("expected 3 iterations, got %d", loaded.Render.Iterations)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		expected error
	}{
		{"zero width", func(c *Config) { c.Render.Width = 0 }, core.ErrInvalidResolution},
		{"flat fov", func(c *Config) { c.Render.FovDegrees = 200 }, core.ErrInvalidFov},
		{"no threads", func(c *Config) { c.Render.Threads = 0 }, core.ErrNoThreads},
		{"no samples", func(c *Config) { c.Render.SamplesPerIteration = 0 }, core.ErrNoSamples},
		{"unknown integrator", func(c *Config) { c.Render.Integrator = "bdpt" }, ErrUnknownIntegrator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}

	cfg := Default()
	cfg.Render.Integrator = "debug"
	cfg.Render.DebugMode = "depth"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for an unknown debug mode")
	}
}

// flagContext parses args against RenderFlags the way the render command does
func flagContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("render", flag.ContinueOnError)
	for _, f := range RenderFlags() {
		f.Apply(set)
	}
	if err := set.Parse(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cli.NewContext(nil, set, nil)
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()
	cfg.Output.Exposure = 3

	ctx := flagContext(t, "-width", "64", "-spp", "8", "-seed", "7", "-out", "x.png", "-debug-mode", "roughness")
	ApplyFlags(cfg, ctx)

	if cfg.Render.Width != 64 {
		t.Errorf("expected width 64, got %d", cfg.Render.Width)
	}
	if cfg.Render.Height != 512 {
		t.Errorf("expected untouched height 512, got %d", cfg.Render.Height)
	}
	if cfg.Render.SamplesPerIteration != 8 {
		t.Errorf("expected 8 samples, got %d", cfg.Render.SamplesPerIteration)
	}
	if cfg.Render.Seed != 7 {
		t.Errorf("expected seed 7, got %d", cfg.Render.Seed)
	}
	if cfg.Output.Path != "x.png" {
		t.Errorf("expected x.png, got %s", cfg.Output.Path)
	}
	// unset flags do not reset file values
	if cfg.Output.Exposure != 3 {
		t.Errorf("expected exposure 3 to survive, got %v", cfg.Output.Exposure)
	}
	// a debug mode alone selects the debug integrator
	if cfg.Render.Integrator != "debug" || cfg.Render.DebugMode != "roughness" {
		t.Errorf("expected debug integrator in roughness mode, got %s/%s", cfg.Render.Integrator, cfg.Render.DebugMode)
	}
}

func TestConfigPath(t *testing.T) {
	if got := ConfigPath(flagContext(t, "-config", "a.yaml")); got != "a.yaml" {
		t.Errorf("expected a.yaml, got %q", got)
	}
	if got := ConfigPath(flagContext(t)); got != "" {
		t.Errorf("expected empty path, got %q", got)
	}
}
