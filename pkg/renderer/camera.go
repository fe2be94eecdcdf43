package renderer

import (
	"math"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/scene"
)

var worldUp = core.NewVec3(0, 1, 0)

// Camera generates primary rays for one view
type Camera struct {
	origin     core.Vec3
	forward    core.Vec3
	right      core.Vec3
	up         core.Vec3
	halfWidth  float64
	halfHeight float64
	width      float64
	height     float64
}

// NewCamera derives the camera basis from the scene camera and the view
func NewCamera(cam *scene.Camera, view core.ViewParameters) *Camera {
	forward := cam.Direction()
	right := forward.Cross(worldUp).Normalize()
	if right.IsZero() {
		// looking straight up or down
		right = core.NewVec3(1, 0, 0)
	}
	up := right.Cross(forward)

	halfHeight := math.Tan(view.FovY / 2)

	return &Camera{
		origin:     cam.Position,
		forward:    forward,
		right:      right,
		up:         up,
		halfHeight: halfHeight,
		halfWidth:  halfHeight * view.AspectRatio(),
		width:      float64(view.Width),
		height:     float64(view.Height),
	}
}

// GetRay returns the ray through image position (fx, fy), measured in
// pixels from the top-left corner. Pixel centers sit at integer coordinates.
func (c *Camera) GetRay(fx, fy float64) core.Ray {
	xFactor := fx/c.width*2 - 1
	yFactor := 1 - fy/c.height*2

	direction := c.forward.
		Add(c.right.Multiply(xFactor * c.halfWidth)).
		Add(c.up.Multiply(yFactor * c.halfHeight))

	return core.NewRay(c.origin, direction)
}

// GetJitteredRay returns a ray for pixel (x, y) offset by a uniform
// sub-pixel jitter in [-0.5, 0.5)
func (c *Camera) GetJitteredRay(x, y int, sampler core.Sampler) core.Ray {
	jitter := sampler.Get2D()
	return c.GetRay(float64(x)+jitter.X-0.5, float64(y)+jitter.Y-0.5)
}
