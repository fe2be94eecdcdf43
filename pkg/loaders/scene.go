package loaders

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/geometry"
	"github.com/erbuka/pathtracing/pkg/material"
	"github.com/erbuka/pathtracing/pkg/scene"
)

// Scene description errors
var (
	ErrUnknownReference = errors.New("loaders: unknown reference")
	ErrInvalidScene     = errors.New("loaders: invalid scene description")
)

// SceneFile is a scene description. JSON documents are accepted too.
type SceneFile struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Group       string         `yaml:"group"`
	Meshes      []MeshDef      `yaml:"meshes"`
	Camera      *CameraDef     `yaml:"camera"`
	Samplers    []SamplerDef   `yaml:"samplers"`
	Background  *BackgroundDef `yaml:"background"`
	Nodes       []NodeDef      `yaml:"nodes"`
}

// MeshDef imports the named objects of a mesh file
type MeshDef struct {
	File string   `yaml:"file"`
	IDs  []string `yaml:"ids"`
}

// CameraDef places the camera
type CameraDef struct {
	Position  []float64 `yaml:"position"`
	Direction []float64 `yaml:"direction"`
}

// SamplerDef declares a constant color or an image sampler
type SamplerDef struct {
	ID    string    `yaml:"id"`
	Color []float64 `yaml:"color"`
	File  string    `yaml:"file"`
	Type  string    `yaml:"type"` // image (default) or equirectangular
	Mode  string    `yaml:"mode"` // linear (default) or nearest
	LDR   bool      `yaml:"ldr"`
}

// BackgroundDef names the environment sampler
type BackgroundDef struct {
	Color string `yaml:"color"`
}

// NodeDef is one scene node. The transform is translate, then rotate
// (degrees, Z*Y*X), then scale.
type NodeDef struct {
	Name      string       `yaml:"name"`
	Translate []float64    `yaml:"translate"`
	Rotate    []float64    `yaml:"rotate"`
	Scale     []float64    `yaml:"scale"`
	Mesh      string       `yaml:"mesh"`
	Shape     string       `yaml:"shape"`
	Material  *MaterialDef `yaml:"material"`
}

// MaterialDef references samplers by id
type MaterialDef struct {
	Albedo    string `yaml:"albedo"`
	Emission  string `yaml:"emission"`
	Roughness string `yaml:"roughness"`
	Metallic  string `yaml:"metallic"`
}

// LoadScene reads a scene file. Mesh and image paths are relative to the
// directory of the scene file.
func LoadScene(path string, logger *zap.Logger) (*scene.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	sc, err := ParseScene(data, filepath.Dir(path), logger)
	if err != nil {
		return nil, fmt.Errorf("loading scene %s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// sceneBuilder resolves ids while a description is turned into a scene
type sceneBuilder struct {
	baseDir   string
	logger    *zap.Logger
	meshes    map[string]*geometry.Mesh
	samplers  map[string]material.Sampler2D
	envs      map[string]material.Sampler3D
	sphere    *geometry.Sphere
	sc        *scene.Scene
	meshFiles map[string]map[string]*geometry.Mesh
}

// ParseScene builds a scene from a YAML or JSON description
func ParseScene(data []byte, baseDir string, logger *zap.Logger) (*scene.Scene, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var def SceneFile
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}

	b := &sceneBuilder{
		baseDir:   baseDir,
		logger:    logger,
		meshes:    map[string]*geometry.Mesh{},
		samplers:  map[string]material.Sampler2D{},
		envs:      map[string]material.Sampler3D{},
		sphere:    geometry.NewSphere(),
		sc:        scene.NewScene(),
		meshFiles: map[string]map[string]*geometry.Mesh{},
	}
	b.sc.Name = def.Name

	steps := []func(*SceneFile) error{
		b.loadMeshes,
		b.loadCamera,
		b.loadSamplers,
		b.loadBackground,
		b.loadNodes,
	}
	for _, step := range steps {
		if err := step(&def); err != nil {
			return nil, err
		}
	}

	logger.Debug("scene parsed",
		zap.String("name", def.Name),
		zap.Int("meshes", len(b.meshes)),
		zap.Int("samplers", len(def.Samplers)),
		zap.Int("nodes", len(def.Nodes)))

	return b.sc, nil
}

func (b *sceneBuilder) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.baseDir, path)
}

// loadMeshFile loads every object of an OBJ or PLY file once
func (b *sceneBuilder) loadMeshFile(path string) (map[string]*geometry.Mesh, error) {
	if meshes, ok := b.meshFiles[path]; ok {
		return meshes, nil
	}

	var meshes map[string]*geometry.Mesh
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ply":
		mesh, err := LoadPLY(path, b.logger)
		if err != nil {
			return nil, err
		}
		meshes = map[string]*geometry.Mesh{mesh.Name: mesh}
	default:
		var err error
		if meshes, err = LoadWavefront(path, b.logger); err != nil {
			return nil, err
		}
	}

	b.meshFiles[path] = meshes
	return meshes, nil
}

func (b *sceneBuilder) loadMeshes(def *SceneFile) error {
	for _, md := range def.Meshes {
		if md.File == "" {
			return fmt.Errorf("%w: mesh entry without file", ErrInvalidScene)
		}
		meshes, err := b.loadMeshFile(b.resolve(md.File))
		if err != nil {
			return err
		}
		for _, id := range md.IDs {
			mesh, ok := meshes[id]
			if !ok {
				return fmt.Errorf("%w: mesh %q not found in %s", ErrUnknownReference, id, md.File)
			}
			b.meshes[id] = mesh
		}
	}
	return nil
}

func (b *sceneBuilder) loadCamera(def *SceneFile) error {
	if def.Camera == nil {
		return nil
	}
	if def.Camera.Position != nil {
		p, err := toVec3("camera.position", def.Camera.Position)
		if err != nil {
			return err
		}
		b.sc.Camera.Position = p
	}
	if def.Camera.Direction != nil {
		d, err := toVec3("camera.direction", def.Camera.Direction)
		if err != nil {
			return err
		}
		if d.IsZero() {
			return fmt.Errorf("%w: camera.direction is zero", ErrInvalidScene)
		}
		b.sc.Camera.SetDirection(d)
	}
	return nil
}

func (b *sceneBuilder) loadSamplers(def *SceneFile) error {
	for _, sd := range def.Samplers {
		if sd.ID == "" {
			return fmt.Errorf("%w: sampler without id", ErrInvalidScene)
		}

		switch {
		case sd.File != "":
			img, err := LoadImage(b.resolve(sd.File))
			if err != nil {
				return err
			}
			if sd.LDR {
				img.ToLDR()
			}
			switch sd.Mode {
			case "", "linear":
				img.Mode = material.SampleLinear
			case "nearest":
				img.Mode = material.SampleNearest
			default:
				return fmt.Errorf("%w: sampler %q has unknown mode %q", ErrInvalidScene, sd.ID, sd.Mode)
			}

			switch sd.Type {
			case "", "image":
				b.samplers[sd.ID] = img
			case "equirectangular":
				b.envs[sd.ID] = material.NewEquirectangularMap(img)
			default:
				return fmt.Errorf("%w: sampler %q has unknown type %q", ErrInvalidScene, sd.ID, sd.Type)
			}

		case sd.Color != nil:
			c, err := toVec3("sampler "+sd.ID, sd.Color)
			if err != nil {
				return err
			}
			b.samplers[sd.ID] = material.NewColorSampler(c)
			b.envs[sd.ID] = material.NewColorEnvironment(c)

		default:
			return fmt.Errorf("%w: sampler %q needs a color or a file", ErrInvalidScene, sd.ID)
		}
	}
	return nil
}

func (b *sceneBuilder) loadBackground(def *SceneFile) error {
	if def.Background == nil || def.Background.Color == "" {
		return nil
	}
	env, ok := b.envs[def.Background.Color]
	if !ok {
		return fmt.Errorf("%w: background sampler %q", ErrUnknownReference, def.Background.Color)
	}
	b.sc.Background = env
	return nil
}

func (b *sceneBuilder) loadNodes(def *SceneFile) error {
	for i, nd := range def.Nodes {
		node, err := b.buildNode(nd)
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
		b.sc.AddNode(node)
	}
	return nil
}

func (b *sceneBuilder) buildNode(nd NodeDef) (*scene.Node, error) {
	node := scene.NewNode(nil, nil)
	node.Name = nd.Name

	if nd.Translate != nil {
		t, err := toVec3("translate", nd.Translate)
		if err != nil {
			return nil, err
		}
		node.Translate(t)
	}
	if nd.Rotate != nil {
		r, err := toVec3("rotate", nd.Rotate)
		if err != nil {
			return nil, err
		}
		node.RotateEuler(r)
	}
	if nd.Scale != nil {
		s, err := toVec3("scale", nd.Scale)
		if err != nil {
			return nil, err
		}
		node.Scale(s)
	}

	switch {
	case nd.Mesh != "":
		mesh, ok := b.meshes[nd.Mesh]
		if !ok {
			return nil, fmt.Errorf("%w: mesh %q", ErrUnknownReference, nd.Mesh)
		}
		node.Shape = mesh
	case nd.Shape == "sphere":
		node.Shape = b.sphere
	case nd.Shape != "":
		return nil, fmt.Errorf("%w: unknown shape %q", ErrInvalidScene, nd.Shape)
	}

	if nd.Material != nil {
		channels := []struct {
			id  string
			dst *material.Sampler2D
		}{
			{nd.Material.Albedo, &node.Material.Albedo},
			{nd.Material.Emission, &node.Material.Emission},
			{nd.Material.Roughness, &node.Material.Roughness},
			{nd.Material.Metallic, &node.Material.Metallic},
		}
		for _, ch := range channels {
			if ch.id == "" {
				continue
			}
			s, ok := b.samplers[ch.id]
			if !ok {
				return nil, fmt.Errorf("%w: sampler %q", ErrUnknownReference, ch.id)
			}
			*ch.dst = s
		}
	}

	return node, nil
}

func toVec3(field string, v []float64) (core.Vec3, error) {
	if len(v) != 3 {
		return core.Vec3{}, fmt.Errorf("%w: %s needs 3 components, got %d", ErrInvalidScene, field, len(v))
	}
	return core.NewVec3(v[0], v[1], v[2]), nil
}
