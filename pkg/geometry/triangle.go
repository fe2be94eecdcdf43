package geometry

import (
	"math"

	"github.com/erbuka/pathtracing/pkg/core"
)

// Vertex is a triangle corner with its shading normal and texture coordinate
type Vertex struct {
	Position core.Vec3
	Normal   core.Vec3
	UV       core.Vec2
}

// NewVertex creates a vertex
func NewVertex(position, normal core.Vec3, uv core.Vec2) Vertex {
	return Vertex{Position: position, Normal: normal, UV: uv}
}

// Triangle is an immutable triangle with precomputed barycentric terms.
// Build it with NewTriangle; the zero value never reports a hit.
type Triangle struct {
	vertices [3]Vertex
	normal   core.Vec3 // Cached face normal
	edge0    core.Vec3 // v1 - v0
	edge1    core.Vec3 // v2 - v0
	d00      float64
	d01      float64
	d11      float64
	invDenom float64
	valid    bool // false for zero-area triangles
}

// NewTriangle creates a triangle from three vertices. Vertices with a zero
// normal take the face normal.
func NewTriangle(v0, v1, v2 Vertex) Triangle {
	t := Triangle{vertices: [3]Vertex{v0, v1, v2}}

	t.edge0 = v1.Position.Subtract(v0.Position)
	t.edge1 = v2.Position.Subtract(v0.Position)
	t.normal = t.edge0.Cross(t.edge1).Normalize()

	t.d00 = t.edge0.Dot(t.edge0)
	t.d01 = t.edge0.Dot(t.edge1)
	t.d11 = t.edge1.Dot(t.edge1)

	denom := t.d00*t.d11 - t.d01*t.d01
	t.invDenom = 1.0 / denom
	t.valid = denom != 0 && !math.IsInf(t.invDenom, 0) && !math.IsNaN(t.invDenom) && !t.normal.IsZero()

	for i := range t.vertices {
		if t.vertices[i].Normal.IsZero() {
			t.vertices[i].Normal = t.normal
		} else {
			t.vertices[i].Normal = t.vertices[i].Normal.Normalize()
		}
	}

	return t
}

// Vertex returns one of the three vertices
func (t Triangle) Vertex(i int) Vertex {
	return t.vertices[i]
}

// Normal returns the face normal
func (t Triangle) Normal() core.Vec3 {
	return t.normal
}

// Degenerate reports whether the triangle has zero area
func (t Triangle) Degenerate() bool {
	return !t.valid
}

// Centroid returns the average of the three vertex positions
func (t Triangle) Centroid() core.Vec3 {
	return t.vertices[0].Position.Add(t.vertices[1].Position).Add(t.vertices[2].Position).Multiply(1.0 / 3.0)
}

// Bounds returns the axis-aligned bounding box of the triangle
func (t Triangle) Bounds() core.BoundingBox {
	return core.NewBoundingBoxFromPoints(t.vertices[0].Position, t.vertices[1].Position, t.vertices[2].Position)
}

// Barycentric returns the weights (u, v, w) of p for vertices v0, v1, v2.
// p is assumed to lie on the triangle's plane.
func (t Triangle) Barycentric(p core.Vec3) (u, v, w float64) {
	v2 := p.Subtract(t.vertices[0].Position)
	d20 := v2.Dot(t.edge0)
	d21 := v2.Dot(t.edge1)

	v = (t.d11*d20 - t.d01*d21) * t.invDenom
	w = (t.d00*d21 - t.d01*d20) * t.invDenom
	u = 1.0 - v - w
	return u, v, w
}

// Intersect tests the ray against the front face of the triangle. Rays
// starting behind the plane or travelling away from it miss.
func (t Triangle) Intersect(ray core.Ray) RaycastResult {
	if !t.valid {
		return Miss
	}

	distance := ray.Origin.Subtract(t.vertices[0].Position).Dot(t.normal)
	if distance < 0 {
		return Miss
	}

	cos := ray.Direction.Dot(t.normal)
	if cos >= 0 {
		return Miss
	}

	projected := ray.Origin.Add(ray.Direction.Multiply(distance / -cos))

	u, v, w := t.Barycentric(projected)
	if u < 0 || v < 0 || w < 0 || math.IsNaN(u+v+w) {
		return Miss
	}

	v0, v1, v2 := t.vertices[0], t.vertices[1], t.vertices[2]
	normal := v0.Normal.Multiply(u).Add(v1.Normal.Multiply(v)).Add(v2.Normal.Multiply(w)).Normalize()
	if normal.IsZero() {
		normal = t.normal
	}
	uv := v0.UV.Multiply(u).Add(v1.UV.Multiply(v)).Add(v2.UV.Multiply(w))

	return RaycastResult{
		Hit:      true,
		Position: projected,
		Normal:   normal,
		UV:       uv,
	}
}
