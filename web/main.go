package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/erbuka/pathtracing/internal/config"
	"github.com/erbuka/pathtracing/internal/logger"
	"github.com/erbuka/pathtracing/web/server"
)

func main() {
	app := cli.NewApp()
	app.Name = "pathtracer-web"
	app.Usage = "stream progressive renders to the browser"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "path to config file"},
		cli.IntFlag{Name: "port, p", Usage: "port to serve on"},
		cli.StringFlag{Name: "scenes", Usage: "directory holding scene files"},
		cli.BoolFlag{Name: "v", Usage: "enable verbose logging"},
		cli.BoolFlag{Name: "vv", Usage: "enable even more verbose logging"},
		cli.StringFlag{Name: "log-file", Usage: "also write logs to this file"},
	}
	app.Action = serve

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}
	if ctx.IsSet("port") {
		cfg.Server.Port = ctx.Int("port")
	}
	if ctx.IsSet("scenes") {
		cfg.Server.ScenesDir = ctx.String("scenes")
	}
	if ctx.IsSet("log-file") {
		cfg.Logging.LogFile = ctx.String("log-file")
	}

	level := logger.VerbosityLevel(ctx.Bool("v"), ctx.Bool("vv"), cfg.Logging.Level)
	if err := logger.Init(level, cfg.Logging.LogFile); err != nil {
		return err
	}
	defer logger.Sync()

	log := logger.Named("web")
	log.Info("progressive path tracer web server",
		zap.Int("port", cfg.Server.Port),
		zap.String("scenes", cfg.Server.ScenesDir))

	return server.NewServer(cfg, log).Start()
}
