package scene

import (
	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/geometry"
	"github.com/erbuka/pathtracing/pkg/material"
)

// Camera is a pinhole camera with a position and a unit view direction
type Camera struct {
	Position  core.Vec3
	direction core.Vec3
}

// NewCamera creates a camera at the origin looking down -Z
func NewCamera() *Camera {
	return &Camera{direction: core.NewVec3(0, 0, -1)}
}

// Direction returns the unit view direction
func (c *Camera) Direction() core.Vec3 {
	return c.direction
}

// SetDirection normalizes and stores the view direction. A zero vector is
// ignored.
func (c *Camera) SetDirection(direction core.Vec3) {
	if d := direction.Normalize(); !d.IsZero() {
		c.direction = d
	}
}

// LookAt points the camera at target
func (c *Camera) LookAt(target core.Vec3) {
	c.SetDirection(target.Subtract(c.Position))
}

// Scene contains all the elements needed for rendering
type Scene struct {
	Name       string
	Camera     *Camera
	Background material.Sampler3D // nil renders as black
	nodes      []*Node
	lights     []NodeID
}

// NewScene creates an empty scene with a black background
func NewScene() *Scene {
	return &Scene{
		Camera:     NewCamera(),
		Background: material.NewColorEnvironment(core.Vec3{}),
	}
}

// AddNode appends a node and returns its handle
func (s *Scene) AddNode(n *Node) NodeID {
	if n.Material == nil {
		n.Material = material.NewMaterial()
	}
	s.nodes = append(s.nodes, n)
	return NodeID(len(s.nodes) - 1)
}

// Node returns the node for id, or nil when id is out of range
func (s *Scene) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(s.nodes) {
		return nil
	}
	return s.nodes[id]
}

// Nodes returns all nodes in insertion order
func (s *Scene) Nodes() []*Node {
	return s.nodes
}

// Compile builds every shape's acceleration structure once, even when the
// shape is shared, and recomputes the light list
func (s *Scene) Compile() {
	compiled := make(map[geometry.Shape]bool)
	for _, n := range s.nodes {
		if n.Shape == nil || compiled[n.Shape] {
			continue
		}
		n.Shape.Compile()
		compiled[n.Shape] = true
	}

	s.lights = s.lights[:0]
	for i, n := range s.nodes {
		if n.Material.IsEmissive() {
			s.lights = append(s.lights, NodeID(i))
		}
	}
}

// Lights returns the emissive nodes found by the last Compile
func (s *Scene) Lights() []NodeID {
	return s.lights
}

// BackgroundColor samples the background along direction
func (s *Scene) BackgroundColor(direction core.Vec3) core.Vec3 {
	if s.Background == nil {
		return core.Vec3{}
	}
	return s.Background.Sample(direction)
}

// CastRay finds the closest hit among all nodes not listed in avoid. With
// returnOnFirstHit the first hit found is returned, which is enough for
// occlusion queries.
func (s *Scene) CastRay(ray core.Ray, returnOnFirstHit bool, avoid ...NodeID) (geometry.RaycastResult, NodeID) {
	best := geometry.Miss
	bestNode := NoNode
	bestDistance := 0.0

	for i, n := range s.nodes {
		id := NodeID(i)
		if n.Shape == nil || n.singular || avoided(id, avoid) {
			continue
		}

		result := n.Shape.Intersect(n.ToLocal(ray))
		if !result.Hit {
			continue
		}
		result = n.ToWorld(result)

		if returnOnFirstHit {
			return result, id
		}

		distance := result.Position.Subtract(ray.Origin).LengthSquared()
		if bestNode == NoNode || distance < bestDistance {
			best = result
			bestNode = id
			bestDistance = distance
		}
	}

	return best, bestNode
}

func avoided(id NodeID, avoid []NodeID) bool {
	for _, a := range avoid {
		if a == id {
			return true
		}
	}
	return false
}

// Stats summarizes scene content
type Stats struct {
	Nodes        int
	Spheres      int
	Meshes       int // distinct meshes
	Instances    int // nodes referencing a mesh
	Triangles    int // triangles across distinct meshes
	Lights       int
	TreeNodes    int
	TreeLeaves   int
	TreeMaxDepth int
}

// Stats walks the scene; call it after Compile for tree statistics
func (s *Scene) Stats() Stats {
	stats := Stats{Nodes: len(s.nodes), Lights: len(s.lights)}
	seen := make(map[*geometry.Mesh]bool)

	for _, n := range s.nodes {
		switch shape := n.Shape.(type) {
		case *geometry.Sphere:
			stats.Spheres++
		case *geometry.Mesh:
			stats.Instances++
			if seen[shape] {
				continue
			}
			seen[shape] = true
			stats.Meshes++
			stats.Triangles += shape.TriangleCount()
			if tree := shape.Tree(); tree != nil {
				ts := tree.Stats()
				stats.TreeNodes += ts.TotalNodes
				stats.TreeLeaves += ts.LeafNodes
				stats.TreeMaxDepth = max(stats.TreeMaxDepth, ts.MaxDepth)
			}
		}
	}

	return stats
}

// GetPrimitiveCount returns spheres plus triangles across distinct meshes
func (s *Scene) GetPrimitiveCount() int {
	stats := s.Stats()
	return stats.Spheres + stats.Triangles
}
