package scene

import (
	"fmt"
	"sort"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/geometry"
	"github.com/erbuka/pathtracing/pkg/material"
)

// builtinScenes maps scene ids to their constructors
var builtinScenes = map[string]func() *Scene{
	"sphere":      NewSphereScene,
	"sphere-grid": NewSphereGridScene,
	"instancing":  NewInstancingScene,
}

// Builtin returns a freshly constructed built-in scene
func Builtin(id string) (*Scene, error) {
	ctor, ok := builtinScenes[id]
	if !ok {
		return nil, fmt.Errorf("scene: unknown built-in scene %q", id)
	}
	return ctor(), nil
}

// BuiltinIDs returns the sorted ids of all built-in scenes
func BuiltinIDs() []string {
	ids := make([]string, 0, len(builtinScenes))
	for id := range builtinScenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewSphereScene creates a single white unit sphere on a black background,
// seen from (0, 0, 3) looking down -Z. The sphere glows white since nothing
// else lights it.
func NewSphereScene() *Scene {
	s := NewScene()
	s.Name = "Sphere"
	s.Camera.Position = core.NewVec3(0, 0, 3)
	s.Camera.SetDirection(core.NewVec3(0, 0, -1))

	white := material.NewMaterial()
	white.Emission = material.NewColorSampler(core.Splat(1))
	s.AddNode(NewNode(geometry.NewSphere(), white))
	return s
}

// NewSphereGridScene creates a 10x10 grid of red spheres. Roughness grows
// along X and metallic along Y, lit by a uniform sky.
func NewSphereGridScene() *Scene {
	s := NewScene()
	s.Name = "Sphere Grid"
	s.Background = material.NewColorEnvironment(core.NewVec3(0.8, 0.9, 1.0))
	s.Camera.Position = core.NewVec3(-1.5, -1.5, 40)
	s.Camera.SetDirection(core.NewVec3(0, 0, -1))

	red := material.NewColorSampler(core.NewVec3(0.9, 0.1, 0.1))
	steps := make([]*material.ColorSampler, 10)
	for i := range steps {
		steps[i] = material.NewColorSampler(core.Splat(float64(i) / 10))
	}

	// One sphere shape shared by every node
	sphere := geometry.NewSphere()

	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			mat := material.NewMaterial()
			mat.Albedo = red
			mat.Roughness = steps[x]
			mat.Metallic = steps[y]

			node := NewNode(sphere, mat)
			node.Name = fmt.Sprintf("sphere-%d-%d", x, y)
			node.Translate(core.NewVec3(float64(x-5)*3, float64(y-5)*3, 0))
			s.AddNode(node)
		}
	}

	return s
}

// NewInstancingScene places three instances of one octahedron mesh on a
// floor under an emissive sphere
func NewInstancingScene() *Scene {
	s := NewScene()
	s.Name = "Instancing"
	s.Background = material.NewColorEnvironment(core.NewVec3(0.05, 0.05, 0.08))
	s.Camera.Position = core.NewVec3(0, 2, 8)
	s.Camera.LookAt(core.NewVec3(0, 0.5, 0))

	floor := NewNode(NewQuadMesh("floor", 20), nil)
	floor.Name = "floor"
	s.AddNode(floor)

	octahedron := NewOctahedronMesh("octahedron")
	colors := []core.Vec3{
		core.NewVec3(0.8, 0.2, 0.2),
		core.NewVec3(0.2, 0.8, 0.2),
		core.NewVec3(0.2, 0.2, 0.8),
	}
	for i, color := range colors {
		mat := material.NewMaterial()
		mat.Albedo = material.NewColorSampler(color)
		mat.Roughness = material.NewColorSampler(core.Splat(float64(i) * 0.4))

		node := NewNode(octahedron, mat)
		node.Name = fmt.Sprintf("octahedron-%d", i)
		node.Translate(core.NewVec3(float64(i-1)*2.5, 1, 0))
		node.RotateEuler(core.NewVec3(0, float64(i)*30, 0))
		s.AddNode(node)
	}

	light := material.NewMaterial()
	light.Emission = material.NewColorSampler(core.Splat(8))
	lamp := NewNode(geometry.NewSphere(), light)
	lamp.Name = "lamp"
	lamp.Translate(core.NewVec3(0, 6, 2))
	lamp.Scale(core.Splat(0.75))
	s.AddNode(lamp)

	return s
}

// NewQuadMesh creates a square of the given size on the XZ plane facing +Y
func NewQuadMesh(name string, size float64) *geometry.Mesh {
	h := size / 2
	up := core.NewVec3(0, 1, 0)
	corner := func(x, z, u, v float64) geometry.Vertex {
		return geometry.NewVertex(core.NewVec3(x, 0, z), up, core.NewVec2(u, v))
	}
	a := corner(-h, -h, 0, 0)
	b := corner(-h, h, 0, 1)
	c := corner(h, h, 1, 1)
	d := corner(h, -h, 1, 0)

	return geometry.NewMeshFromTriangles(name, []geometry.Triangle{
		geometry.NewTriangle(a, b, c),
		geometry.NewTriangle(a, c, d),
	})
}

// NewOctahedronMesh creates a unit octahedron with outward faces
func NewOctahedronMesh(name string) *geometry.Mesh {
	px, nx := core.NewVec3(1, 0, 0), core.NewVec3(-1, 0, 0)
	py, ny := core.NewVec3(0, 1, 0), core.NewVec3(0, -1, 0)
	pz, nz := core.NewVec3(0, 0, 1), core.NewVec3(0, 0, -1)

	faces := [][3]core.Vec3{
		{px, py, pz}, {pz, py, nx}, {nx, py, nz}, {nz, py, px},
		{px, pz, ny}, {pz, nx, ny}, {nx, nz, ny}, {nz, px, ny},
	}

	triangles := make([]geometry.Triangle, 0, len(faces))
	for _, f := range faces {
		triangles = append(triangles, geometry.NewTriangle(
			geometry.NewVertex(f[0], core.Vec3{}, core.Vec2{}),
			geometry.NewVertex(f[1], core.Vec3{}, core.Vec2{}),
			geometry.NewVertex(f[2], core.Vec3{}, core.Vec2{}),
		))
	}
	return geometry.NewMeshFromTriangles(name, triangles)
}
