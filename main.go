package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/erbuka/pathtracing/internal/logger"
	"github.com/erbuka/pathtracing/pkg/loaders"
	"github.com/erbuka/pathtracing/pkg/scene"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "pathtracer"
	app.Usage = "render scenes with a progressive path tracer"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "also write logs to this file, rotated by size",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render a scene to a PNG file",
			Description: `
Render a scene file (YAML or JSON) or a built-in scene by name. The image is
refined progressively; press Ctrl+C to stop early and keep the current result.

Settings come from the config file, overridden by any flag given here.`,
			ArgsUsage: "scene.yaml | builtin-name",
			Flags:     renderFlags(),
			Action:    renderScene,
		},
		{
			Name:        "inspect",
			Usage:       "print scene statistics",
			Description: `Load a scene, build its acceleration structures and print a summary.`,
			ArgsUsage:   "scene.yaml | builtin-name",
			Action:      inspectScene,
		},
		{
			Name:  "config",
			Usage: "save render settings to a config file",
			Description: `
Merge the defaults, the current config file and the given flags, then write
the result as YAML. Without --write the file goes to the user config
directory, where render finds it when the working directory has none.`,
			Flags: append(renderFlags(), cli.StringFlag{
				Name:  "write, w",
				Usage: "path of the file to write",
			}),
			Action: writeConfig,
		},
		{
			Name:  "scenes",
			Usage: "list built-in scenes and scene files",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "dir, d",
					Value: "scenes",
					Usage: "directory holding scene files",
				},
			},
			Action: listScenes,
		},
	}
	return app
}

// createScene resolves a built-in scene name or loads a scene file
func createScene(name string, log *zap.Logger) (*scene.Scene, error) {
	if name == "" {
		return nil, fmt.Errorf("missing scene argument")
	}
	if sc, err := scene.Builtin(name); err == nil {
		return sc, nil
	}
	if !scene.IsSceneFile(name) {
		return nil, fmt.Errorf("unknown scene %q (built-in scenes: %v)", name, scene.BuiltinIDs())
	}
	return loaders.LoadScene(name, log)
}
