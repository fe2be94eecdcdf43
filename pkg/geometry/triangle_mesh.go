package geometry

import (
	"github.com/erbuka/pathtracing/pkg/core"
)

// Mesh represents a collection of triangles with a space tree for fast
// intersection. A single compiled mesh may be shared by many scene nodes.
type Mesh struct {
	Name      string
	triangles []Triangle
	tree      *SpaceTree
	bounds    core.BoundingBox
}

// NewMesh creates an empty mesh
func NewMesh(name string) *Mesh {
	return &Mesh{Name: name, bounds: core.EmptyBoundingBox()}
}

// NewMeshFromTriangles creates a compiled mesh from the given triangles
func NewMeshFromTriangles(name string, triangles []Triangle) *Mesh {
	m := NewMesh(name)
	m.triangles = append(m.triangles, triangles...)
	m.Compile()
	return m
}

// AddTriangle appends a triangle. The mesh must be compiled again before
// the next intersection query.
func (m *Mesh) AddTriangle(t Triangle) {
	m.triangles = append(m.triangles, t)
	m.tree = nil
}

// Compile recomputes the bounds and rebuilds the space tree
func (m *Mesh) Compile() {
	bounds := core.EmptyBoundingBox()
	for i := range m.triangles {
		bounds = bounds.Union(m.triangles[i].Bounds())
	}
	m.bounds = bounds
	m.tree = BuildSpaceTree(m.triangles, bounds)
}

// Compiled reports whether the space tree reflects the current triangles
func (m *Mesh) Compiled() bool {
	return m.tree != nil
}

// Intersect returns the nearest hit. An uncompiled mesh never hits.
func (m *Mesh) Intersect(ray core.Ray) RaycastResult {
	if m.tree == nil {
		return Miss
	}
	return m.tree.Intersect(ray)
}

// Bounds returns the box around all triangles as of the last Compile
func (m *Mesh) Bounds() core.BoundingBox {
	return m.bounds
}

// TriangleCount returns the number of triangles in this mesh
func (m *Mesh) TriangleCount() int {
	return len(m.triangles)
}

// Triangles returns the triangles; the slice must not be modified
func (m *Mesh) Triangles() []Triangle {
	return m.triangles
}

// Tree returns the space tree built by the last Compile, or nil
func (m *Mesh) Tree() *SpaceTree {
	return m.tree
}
