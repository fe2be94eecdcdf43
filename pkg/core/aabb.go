package core

import "math"

// Axis selects one of the three coordinate axes
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// BoundingBox represents an axis-aligned bounding box.
// An empty box has Min > Max on every axis.
type BoundingBox struct {
	Min Vec3 // Minimum corner
	Max Vec3 // Maximum corner
}

// NewBoundingBox creates a new box from min and max points
func NewBoundingBox(min, max Vec3) BoundingBox {
	return BoundingBox{Min: min, Max: max}
}

// EmptyBoundingBox returns a box that contains nothing and is the identity for Union
func EmptyBoundingBox() BoundingBox {
	inf := math.Inf(1)
	return BoundingBox{
		Min: Splat(inf),
		Max: Splat(-inf),
	}
}

// NewBoundingBoxFromPoints creates a box that bounds all given points
func NewBoundingBoxFromPoints(points ...Vec3) BoundingBox {
	box := EmptyBoundingBox()
	for _, point := range points {
		box = box.Extend(point)
	}
	return box
}

// Extend returns the box grown to include the point
func (b BoundingBox) Extend(point Vec3) BoundingBox {
	return BoundingBox{Min: b.Min.Min(point), Max: b.Max.Max(point)}
}

// Union returns a box that bounds both this box and another
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	return BoundingBox{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// IsEmpty reports whether the box holds no volume and no points
func (b BoundingBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Center returns the center point of the box
func (b BoundingBox) Center() Vec3 {
	return b.Min.Add(b.Max).Multiply(0.5)
}

// Size returns the extent of the box along each axis
func (b BoundingBox) Size() Vec3 {
	return b.Max.Subtract(b.Min)
}

// Surface returns the surface area of the box
func (b BoundingBox) Surface() float64 {
	if b.IsEmpty() {
		return 0
	}
	size := b.Size()
	return 2.0 * (size.X*size.Y + size.Y*size.Z + size.Z*size.X)
}

// Split cuts the box in two along axis at value. The left box keeps Min,
// the right box keeps Max.
func (b BoundingBox) Split(axis Axis, value float64) (left, right BoundingBox) {
	left, right = b, b
	switch axis {
	case AxisX:
		left.Max.X = value
		right.Min.X = value
	case AxisY:
		left.Max.Y = value
		right.Min.Y = value
	case AxisZ:
		left.Max.Z = value
		right.Min.Z = value
	}
	return left, right
}

// parallelEpsilon is the direction magnitude under which a ray counts as
// parallel to a slab
const parallelEpsilon = 1e-12

// Intersect tests if the ray hits the box anywhere in front of its origin
// using the slab method. Rays parallel to a slab only hit when their origin
// lies within it, so no NaN is produced for axis-aligned rays.
func (b BoundingBox) Intersect(ray Ray) bool {
	tNear := math.Inf(-1)
	tFar := math.Inf(1)

	for axis := AxisX; axis <= AxisZ; axis++ {
		lo := b.Min.Axis(axis)
		hi := b.Max.Axis(axis)
		origin := ray.Origin.Axis(axis)
		direction := ray.Direction.Axis(axis)

		if math.Abs(direction) < parallelEpsilon {
			if origin < lo || origin > hi {
				return false
			}
			continue
		}

		invDirection := 1.0 / direction
		t1 := (lo - origin) * invDirection
		t2 := (hi - origin) * invDirection
		if t1 > t2 {
			t1, t2 = t2, t1
		}

		tNear = math.Max(tNear, t1)
		tFar = math.Min(tFar, t2)
	}

	if math.IsNaN(tNear) || math.IsNaN(tFar) {
		return false
	}

	return tFar >= 0 && tNear <= tFar
}
