package geometry

import (
	"math"

	"github.com/erbuka/pathtracing/pkg/core"
)

// Sphere is the unit sphere centered at the local origin. Position and
// size come from the transform of the node that holds it.
type Sphere struct{}

// NewSphere creates a unit sphere
func NewSphere() *Sphere {
	return &Sphere{}
}

// Intersect solves the ray against the unit sphere and returns the nearest
// non-negative root
func (s *Sphere) Intersect(ray core.Ray) RaycastResult {
	// Projection of the center onto the ray
	proj := ray.Origin.Negate().Dot(ray.Direction)
	sqDistance := ray.Origin.LengthSquared() - proj*proj

	if sqDistance > 1 || math.IsNaN(sqDistance) {
		return Miss
	}

	offset := math.Sqrt(1 - sqDistance)
	t1 := proj - offset
	t2 := proj + offset

	if t1 < 0 && t2 < 0 {
		return Miss
	}

	t := t1
	if t < 0 {
		t = t2
	}

	position := ray.At(t)
	normal := position.Normalize()

	return RaycastResult{
		Hit:      true,
		Position: position,
		Normal:   normal,
		UV:       SphericalUV(normal),
	}
}

// SphericalUV maps a unit direction to longitude/latitude texture coordinates
func SphericalUV(n core.Vec3) core.Vec2 {
	return core.NewVec2(
		math.Atan2(n.X, n.Z)/(2*math.Pi)+0.5,
		n.Y*0.5+0.5,
	)
}

// Bounds returns the box [-1, 1] on every axis
func (s *Sphere) Bounds() core.BoundingBox {
	return core.NewBoundingBox(core.Splat(-1), core.Splat(1))
}

// Compile is a no-op; the sphere has no acceleration structure
func (s *Sphere) Compile() {}
