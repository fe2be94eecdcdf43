package config

import "github.com/urfave/cli"

// RenderFlags returns the command line flags that override the render and
// output sections. Defaults are left to the config file, so only flags the
// user actually passes take effect.
func RenderFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "path to config file"},
		cli.IntFlag{Name: "width", Usage: "image width"},
		cli.IntFlag{Name: "height", Usage: "image height"},
		cli.Float64Flag{Name: "fov", Usage: "vertical field of view in degrees"},
		cli.IntFlag{Name: "threads, t", Usage: "number of worker threads"},
		cli.IntFlag{Name: "iterations, i", Usage: "number of iterations, 0 renders until interrupted"},
		cli.IntFlag{Name: "spp, s", Usage: "samples per pixel for each iteration"},
		cli.Uint64Flag{Name: "seed", Usage: "random seed"},
		cli.IntFlag{Name: "bounces", Usage: "path recursion budget"},
		cli.StringFlag{Name: "integrator", Usage: "path or debug"},
		cli.StringFlag{Name: "debug-mode", Usage: "albedo, emission, roughness, metallic or normal"},
		cli.Float64Flag{Name: "exposure", Usage: "camera exposure for tone-mapping"},
		cli.StringFlag{Name: "out, o", Usage: "image filename for the rendered frame"},
		cli.IntFlag{Name: "save-every", Usage: "save the image every N iterations"},
	}
}

// ConfigPath returns the explicit config path if provided via --config.
func ConfigPath(ctx *cli.Context) string {
	return ctx.String("config")
}

// ApplyFlags applies command line overrides to the config.
func ApplyFlags(cfg *Config, ctx *cli.Context) {
	if ctx.IsSet("width") {
		cfg.Render.Width = ctx.Int("width")
	}
	if ctx.IsSet("height") {
		cfg.Render.Height = ctx.Int("height")
	}
	if ctx.IsSet("fov") {
		cfg.Render.FovDegrees = ctx.Float64("fov")
	}
	if ctx.IsSet("threads") {
		cfg.Render.Threads = ctx.Int("threads")
	}
	if ctx.IsSet("iterations") {
		cfg.Render.Iterations = ctx.Int("iterations")
	}
	if ctx.IsSet("spp") {
		cfg.Render.SamplesPerIteration = ctx.Int("spp")
	}
	if ctx.IsSet("seed") {
		cfg.Render.Seed = ctx.Uint64("seed")
	}
	if ctx.IsSet("bounces") {
		cfg.Render.MaxBounces = ctx.Int("bounces")
	}
	if ctx.IsSet("integrator") {
		cfg.Render.Integrator = ctx.String("integrator")
	}
	if ctx.IsSet("debug-mode") {
		cfg.Render.DebugMode = ctx.String("debug-mode")
		if !ctx.IsSet("integrator") {
			cfg.Render.Integrator = "debug"
		}
	}
	if ctx.IsSet("exposure") {
		cfg.Output.Exposure = ctx.Float64("exposure")
	}
	if ctx.IsSet("out") {
		cfg.Output.Path = ctx.String("out")
	}
	if ctx.IsSet("save-every") {
		cfg.Output.SaveEvery = ctx.Int("save-every")
	}
}
