package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/erbuka/pathtracing/internal/config"
	"github.com/erbuka/pathtracing/pkg/renderer"
	"github.com/erbuka/pathtracing/pkg/scene"
)

const quadScene = `name: Quad
meshes:
  - file: quad.obj
    ids: [quad]
nodes:
  - mesh: quad
`

const quadOBJ = `o quad
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
f 1 2 3 4
`

func writeQuadScene(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "quad.obj"), []byte(quadOBJ), 0644); err != nil {
		t.Fatalf("failed to write mesh: %v", err)
	}
	path := filepath.Join(dir, "quad.yaml")
	if err := os.WriteFile(path, []byte(quadScene), 0644); err != nil {
		t.Fatalf("failed to write scene: %v", err)
	}
	return path
}

func TestCreateScene(t *testing.T) {
	scenePath := writeQuadScene(t)

	tests := []struct {
		name        string
		sceneType   string
		expectError bool
	}{
		{"sphere scene", "sphere", false},
		{"sphere grid scene", "sphere-grid", false},
		{"instancing scene", "instancing", false},
		{"scene file", scenePath, false},

		{"unknown scene", "nonexistent", true},
		{"missing scene file", filepath.Join(t.TempDir(), "missing.yaml"), true},
		{"unsupported extension", "scenes/cornell.pbrt", true},
		{"empty scene name", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := createScene(tt.sceneType, nil)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for scene type '%s', but got none", tt.sceneType)
				}
				if sc != nil {
					t.Errorf("Expected nil scene for invalid scene type '%s'", tt.sceneType)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error for scene type '%s': %v", tt.sceneType, err)
			}
			if sc == nil || len(sc.Nodes()) == 0 {
				t.Errorf("Expected a scene with nodes for '%s'", tt.sceneType)
			}
		})
	}
}

func TestApp_HasCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"render", "inspect", "config", "scenes"} {
		if app.Command(name) == nil {
			t.Errorf("Expected command %q", name)
		}
	}
}

func TestRenderCommand_WritesPNG(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pathtracer.yaml")
	if err := os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	out := filepath.Join(dir, "out.png")

	args := []string{"pathtracer", "render",
		"--config", cfgPath,
		"--width", "16", "--height", "12",
		"--iterations", "2", "--spp", "1", "--threads", "2",
		"--save-every", "1",
		"--out", out,
		"sphere"}
	if err := newApp().Run(args); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("Expected output image: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 12 {
		t.Errorf("Expected 16x12 image, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestConfigCommand_WritesMergedSettings(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pathtracer.yaml")
	if err := os.WriteFile(cfgPath, []byte("render:\n  threads: 3\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	out := filepath.Join(dir, "saved", "pathtracer.yaml")

	app := newApp()
	var stdout bytes.Buffer
	app.Writer = &stdout
	args := []string{"pathtracer", "config", "--config", cfgPath, "--width", "320", "--write", out}
	if err := app.Run(args); err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if !strings.Contains(stdout.String(), out) {
		t.Errorf("Expected the written path to be printed, got %q", stdout.String())
	}

	saved, err := config.Load(out)
	if err != nil {
		t.Fatalf("Failed to load written config: %v", err)
	}
	if saved.Render.Threads != 3 || saved.Render.Width != 320 || saved.Render.Height != 512 {
		t.Errorf("Expected file, flag and default settings merged, got %+v", saved.Render)
	}

	// invalid settings are not written
	bad := filepath.Join(dir, "bad.yaml")
	if err := newApp().Run([]string{"pathtracer", "config", "--config", cfgPath, "--spp", "0", "--write", bad}); err == nil {
		t.Error("Expected an error for zero samples")
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Error("Expected no file for an invalid config")
	}
}

func TestRenderCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pathtracer.yaml")
	os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0644)

	tests := []struct {
		name string
		args []string
	}{
		{"missing scene", []string{"pathtracer", "render", "--config", cfgPath}},
		{"unknown scene", []string{"pathtracer", "render", "--config", cfgPath, "nowhere"}},
		{"bad resolution", []string{"pathtracer", "render", "--config", cfgPath, "--width", "0", "sphere"}},
		{"bad integrator", []string{"pathtracer", "render", "--config", cfgPath, "--integrator", "bdpt", "sphere"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := newApp().Run(tt.args); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestDisplayRenderStats(t *testing.T) {
	stats := renderer.RenderStats{
		Iterations: []renderer.IterationStats{
			{Iteration: 0, SamplesPerPixel: 4, Duration: 20 * time.Millisecond, SamplesPerSecond: 1000},
			{Iteration: 1, SamplesPerPixel: 8, Duration: 30 * time.Millisecond, SamplesPerSecond: 1200, DroppedSamples: 2},
		},
		SamplesPerPixel: 8,
		TotalSamples:    800,
		Elapsed:         time.Second,
		Interrupted:     true,
	}

	var buf bytes.Buffer
	displayRenderStats(&buf, stats)
	out := buf.String()

	for _, want := range []string{"Iteration", "Samples/s", "30ms", "INTERRUPTED", "800"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in table:\n%s", want, out)
		}
	}
}

func TestDisplaySceneStats(t *testing.T) {
	sc := scene.NewInstancingScene()
	sc.Compile()

	var buf bytes.Buffer
	displaySceneStats(&buf, sc)
	out := buf.String()

	for _, want := range []string{"Mesh instances", "Triangles", "Tree nodes"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in table:\n%s", want, out)
		}
	}
}

func TestDisplaySceneList(t *testing.T) {
	dir := filepath.Dir(writeQuadScene(t))
	listing, err := scene.ListAllScenes(dir)
	if err != nil {
		t.Fatalf("ListAllScenes failed: %v", err)
	}

	var buf bytes.Buffer
	displaySceneList(&buf, listing)
	out := buf.String()

	for _, want := range []string{"sphere-grid", "Quad", "quad.yaml"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in listing:\n%s", want, out)
		}
	}
}
