package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/geometry"
	"github.com/erbuka/pathtracing/pkg/material"
)

// NodeID is the index of a node inside its scene
type NodeID int

// NoNode is returned when a ray hits nothing
const NoNode NodeID = -1

// Node places a shape in the world with a material. The inverse and
// normal transforms are recomputed by every transform mutation.
type Node struct {
	Name     string
	Shape    geometry.Shape // may be shared with other nodes
	Material *material.Material

	transform mgl64.Mat4
	inverse   mgl64.Mat4
	normal    mgl64.Mat4
	singular  bool
}

// NewNode creates a node with the identity transform. A nil material is
// replaced with the default material.
func NewNode(shape geometry.Shape, mat *material.Material) *Node {
	if mat == nil {
		mat = material.NewMaterial()
	}
	n := &Node{Shape: shape, Material: mat}
	n.LoadIdentity()
	return n
}

// updateMatrices recomputes the cached inverse and inverse-transpose
func (n *Node) updateMatrices() {
	det := n.transform.Det()
	n.singular = det == 0 || math.IsNaN(det) || math.IsInf(det, 0)
	if n.singular {
		n.inverse = mgl64.Mat4{}
		n.normal = mgl64.Mat4{}
		return
	}
	n.inverse = n.transform.Inv()
	n.normal = n.inverse.Transpose()
}

// LoadIdentity resets the transform
func (n *Node) LoadIdentity() {
	n.transform = mgl64.Ident4()
	n.updateMatrices()
}

// SetTransform replaces the local-to-world transform
func (n *Node) SetTransform(m mgl64.Mat4) {
	n.transform = m
	n.updateMatrices()
}

// Translate appends a translation to the transform
func (n *Node) Translate(t core.Vec3) {
	n.Multiply(mgl64.Translate3D(t.X, t.Y, t.Z))
}

// Rotate appends a rotation of angle radians around axis
func (n *Node) Rotate(axis core.Vec3, angle float64) {
	a := axis.Normalize()
	n.Multiply(mgl64.HomogRotate3D(angle, mgl64.Vec3{a.X, a.Y, a.Z}))
}

// RotateEuler appends rotations given in degrees, applied as Z * Y * X
func (n *Node) RotateEuler(degrees core.Vec3) {
	rz := mgl64.HomogRotate3DZ(mgl64.DegToRad(degrees.Z))
	ry := mgl64.HomogRotate3DY(mgl64.DegToRad(degrees.Y))
	rx := mgl64.HomogRotate3DX(mgl64.DegToRad(degrees.X))
	n.Multiply(rz.Mul4(ry).Mul4(rx))
}

// Scale appends a non-uniform scale to the transform
func (n *Node) Scale(s core.Vec3) {
	n.Multiply(mgl64.Scale3D(s.X, s.Y, s.Z))
}

// Multiply post-multiplies the transform by m
func (n *Node) Multiply(m mgl64.Mat4) {
	n.transform = n.transform.Mul4(m)
	n.updateMatrices()
}

// Transform returns the local-to-world transform
func (n *Node) Transform() mgl64.Mat4 { return n.transform }

// InverseTransform returns the world-to-local transform
func (n *Node) InverseTransform() mgl64.Mat4 { return n.inverse }

// NormalTransform returns the inverse-transpose used for normals
func (n *Node) NormalTransform() mgl64.Mat4 { return n.normal }

// Singular reports whether the transform cannot be inverted. Singular
// nodes are never hit.
func (n *Node) Singular() bool { return n.singular }

// ToLocal moves a world ray into the node's space, keeping the direction
// normalized
func (n *Node) ToLocal(ray core.Ray) core.Ray {
	return core.NewRay(
		transformPoint(n.inverse, ray.Origin),
		transformDirection(n.inverse, ray.Direction),
	)
}

// ToWorld moves a local hit into world space
func (n *Node) ToWorld(result geometry.RaycastResult) geometry.RaycastResult {
	result.Position = transformPoint(n.transform, result.Position)
	result.Normal = transformDirection(n.normal, result.Normal).Normalize()
	return result
}

func transformPoint(m mgl64.Mat4, p core.Vec3) core.Vec3 {
	v := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return core.NewVec3(v[0], v[1], v[2])
}

func transformDirection(m mgl64.Mat4, d core.Vec3) core.Vec3 {
	v := m.Mul4x1(mgl64.Vec4{d.X, d.Y, d.Z, 0})
	return core.NewVec3(v[0], v[1], v[2])
}
