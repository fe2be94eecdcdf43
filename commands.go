package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/erbuka/pathtracing/internal/config"
	"github.com/erbuka/pathtracing/internal/logger"
	"github.com/erbuka/pathtracing/pkg/loaders"
	"github.com/erbuka/pathtracing/pkg/renderer"
	"github.com/erbuka/pathtracing/pkg/scene"
)

func renderFlags() []cli.Flag {
	return config.RenderFlags()
}

// setupLogging initializes the global logger from the config and the
// global verbosity switches
func setupLogging(ctx *cli.Context, cfg *config.Config) error {
	level := logger.VerbosityLevel(ctx.GlobalBool("v"), ctx.GlobalBool("vv"), cfg.Logging.Level)
	logFile := cfg.Logging.LogFile
	if ctx.GlobalIsSet("log-file") {
		logFile = ctx.GlobalString("log-file")
	}
	return logger.Init(level, logFile)
}

// loadConfig merges defaults, the config file and the command flags
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(config.ConfigPath(ctx))
	if err != nil {
		return nil, err
	}
	config.ApplyFlags(cfg, ctx)
	return cfg, nil
}

// Render a scene until the configured iterations are done or the user
// interrupts, then save the image.
func renderScene(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := setupLogging(ctx, cfg); err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if ctx.NArg() != 1 {
		return errors.New("missing scene argument")
	}

	log := logger.Named("render")
	sc, err := createScene(ctx.Args().First(), log)
	if err != nil {
		return err
	}

	integ, err := cfg.NewIntegrator()
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pr := renderer.NewProgressiveRenderer(integ, logger.Named("renderer"))
	result, err := pr.Run(runCtx, cfg.View(), cfg.Trace(), sc, renderer.RenderOptions{
		Events: true,
		Seed:   cfg.Render.Seed,
	})
	if err != nil {
		return err
	}
	defer result.Close()

	log.Info("rendering",
		zap.String("scene", sc.Name),
		zap.String("output", cfg.Output.Path),
		zap.Int("primitives", sc.GetPrimitiveCount()))

	for ev := range result.Events() {
		if ev.Type != renderer.EventIterationEnd {
			continue
		}
		reportIteration(log, ev.Stats, cfg.Render.Iterations)

		every := cfg.Output.SaveEvery
		if every > 0 && (ev.Iteration+1)%every == 0 {
			if err := loaders.SavePNG(cfg.Output.Path, ev.Image, cfg.Output.Exposure); err != nil {
				log.Warn("intermediate save failed", zap.Error(err))
			} else {
				log.Debug("intermediate image saved", zap.Int("iteration", ev.Iteration+1))
			}
		}
	}
	result.Wait()

	if err := loaders.SavePNG(cfg.Output.Path, result.Image(), cfg.Output.Exposure); err != nil {
		return fmt.Errorf("saving %s: %w", cfg.Output.Path, err)
	}

	stats := result.Stats()
	if stats.Interrupted {
		log.Info("render interrupted, partial image saved", zap.String("output", cfg.Output.Path))
	} else {
		log.Info("render saved", zap.String("output", cfg.Output.Path))
	}
	displayRenderStats(os.Stdout, stats)
	return nil
}

// reportIteration logs one progress line with an ETA for bounded renders
func reportIteration(log *zap.Logger, s renderer.IterationStats, total int) {
	fields := []zap.Field{
		zap.Int("iteration", s.Iteration+1),
		zap.Int("spp", s.SamplesPerPixel),
		zap.Duration("took", s.Duration.Round(time.Millisecond)),
		zap.Float64("samples_per_sec", s.SamplesPerSecond),
	}
	if total > 0 {
		fields = append(fields,
			zap.Int("of", total),
			zap.Duration("eta", renderer.EstimateRemaining(s.Elapsed, s.Iteration+1, total).Round(time.Second)))
	}
	log.Info("iteration done", fields...)
}

// Print statistics for a scene.
func inspectScene(ctx *cli.Context) error {
	if err := setupLogging(ctx, config.Default()); err != nil {
		return err
	}
	defer logger.Sync()

	if ctx.NArg() != 1 {
		return errors.New("missing scene argument")
	}

	sc, err := createScene(ctx.Args().First(), logger.Named("inspect"))
	if err != nil {
		return err
	}
	sc.Compile()

	displaySceneStats(os.Stdout, sc)
	return nil
}

// Write the effective settings (defaults, config file, flags) to a config
// file so later renders pick them up.
func writeConfig(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	path := ctx.String("write")
	if path == "" {
		path, err = cfg.Save()
	} else {
		err = cfg.SaveTo(path)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "wrote %s\n", path)
	return nil
}

// List built-in scenes and the scene files of a directory.
func listScenes(ctx *cli.Context) error {
	listing, err := scene.ListAllScenes(ctx.String("dir"))
	if err != nil {
		return err
	}
	displaySceneList(os.Stdout, listing)
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	return table
}

func displayRenderStats(w io.Writer, stats renderer.RenderStats) {
	table := newTable(w, []string{"Iteration", "SPP", "Time", "Samples/s", "Dropped", "Luminance"})
	for _, s := range stats.Iterations {
		table.Append([]string{
			fmt.Sprintf("%d", s.Iteration+1),
			fmt.Sprintf("%d", s.SamplesPerPixel),
			s.Duration.Round(time.Millisecond).String(),
			fmt.Sprintf("%.0f", s.SamplesPerSecond),
			fmt.Sprintf("%d", s.DroppedSamples),
			fmt.Sprintf("%.4f", s.AverageLuminance),
		})
	}
	status := "TOTAL"
	if stats.Interrupted {
		status = "INTERRUPTED"
	}
	table.SetFooter([]string{
		status,
		fmt.Sprintf("%d", stats.SamplesPerPixel),
		stats.Elapsed.Round(time.Millisecond).String(),
		fmt.Sprintf("%.0f", stats.SamplesPerSecond()),
		"",
		fmt.Sprintf("%.4f", stats.AverageLuminance),
	})
	table.Render()
}

func displaySceneStats(w io.Writer, sc *scene.Scene) {
	stats := sc.Stats()
	table := newTable(w, []string{"Property", "Value"})
	table.AppendBulk([][]string{
		{"Name", sc.Name},
		{"Nodes", fmt.Sprintf("%d", stats.Nodes)},
		{"Spheres", fmt.Sprintf("%d", stats.Spheres)},
		{"Meshes", fmt.Sprintf("%d", stats.Meshes)},
		{"Mesh instances", fmt.Sprintf("%d", stats.Instances)},
		{"Triangles", fmt.Sprintf("%d", stats.Triangles)},
		{"Lights", fmt.Sprintf("%d", stats.Lights)},
		{"Tree nodes", fmt.Sprintf("%d", stats.TreeNodes)},
		{"Tree leaves", fmt.Sprintf("%d", stats.TreeLeaves)},
		{"Tree depth", fmt.Sprintf("%d", stats.TreeMaxDepth)},
	})
	table.Render()
}

func displaySceneList(w io.Writer, listing scene.ScenesResponse) {
	table := newTable(w, []string{"Group", "ID", "Name", "Description"})
	for _, group := range listing.Groups {
		for _, info := range group.Scenes {
			id := info.ID
			if info.Type == "file" {
				id = info.FilePath
			}
			table.Append([]string{group.Name, id, info.Name, info.Description})
		}
	}
	table.Render()
}
