package geometry

import "github.com/erbuka/pathtracing/pkg/core"

// RaycastResult contains information about a ray-surface intersection.
// Position, Normal and UV are meaningful only when Hit is true.
type RaycastResult struct {
	Hit      bool
	Position core.Vec3 // Point of intersection
	Normal   core.Vec3 // Unit surface normal at intersection
	UV       core.Vec2 // Texture coordinate at intersection
}

// Miss is the result of a ray that hit nothing
var Miss = RaycastResult{}

// Shape is a surface that can be intersected in its own local space.
// Implementations are Sphere and Mesh.
type Shape interface {
	Intersect(ray core.Ray) RaycastResult
	Bounds() core.BoundingBox
	// Compile prepares acceleration structures; must be called after any
	// change and before the first Intersect
	Compile()
}
