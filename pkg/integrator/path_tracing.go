package integrator

import (
	"math"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/scene"
)

const (
	// DefaultMaxBounces is the recursion budget of a traced path
	DefaultMaxBounces = 5
	// BounceWeight scales the reflected radiance of every bounce
	BounceWeight = 2.0
	// rayEpsilon offsets a bounce origin along its direction
	rayEpsilon = 1e-3
)

// PathTracingIntegrator blends a mirror reflection with a uniform
// hemisphere sample according to surface roughness. It is a heuristic
// estimator, not an energy-conserving BRDF.
type PathTracingIntegrator struct {
	MaxBounces int
}

// NewPathTracingIntegrator creates a path tracer; a non-positive budget
// selects DefaultMaxBounces
func NewPathTracingIntegrator(maxBounces int) *PathTracingIntegrator {
	if maxBounces <= 0 {
		maxBounces = DefaultMaxBounces
	}
	return &PathTracingIntegrator{MaxBounces: maxBounces}
}

// Trace returns the radiance arriving along ray
func (pt *PathTracingIntegrator) Trace(view core.ViewParameters, ray core.Ray, sc *scene.Scene, sampler core.Sampler) core.Vec3 {
	return pt.traceRecursive(ray, sc, sampler, pt.MaxBounces)
}

// traceRecursive returns black once the budget is spent and the
// background when the ray escapes
func (pt *PathTracingIntegrator) traceRecursive(ray core.Ray, sc *scene.Scene, sampler core.Sampler, budget int) core.Vec3 {
	if budget <= 0 {
		return core.Vec3{}
	}

	result, id := sc.CastRay(ray, false)
	if !result.Hit {
		return sc.BackgroundColor(ray.Direction)
	}

	surface := sc.Node(id).Material.Evaluate(result.UV)
	normal := result.Normal

	hemisphere := core.SampleUniformHemisphere(normal, sampler.Get2D())
	reflected := ray.Direction.Reflect(normal)

	// roughness 0 is a perfect mirror, roughness 1 a uniform hemisphere
	direction := reflected.Mix(hemisphere, surface.Roughness).Normalize()
	if direction.IsZero() {
		direction = normal
	}

	bounce := core.Ray{
		Origin:    result.Position.Add(direction.Multiply(rayEpsilon)),
		Direction: direction,
	}

	cosTheta := math.Max(0, direction.Dot(normal))
	if cosTheta == 0 {
		return surface.Emission
	}

	radiance := pt.traceRecursive(bounce, sc, sampler, budget-1)

	// Metals reflect without tinting by the albedo
	tint := surface.Albedo.Mix(core.Splat(1), surface.Metallic)

	return surface.Emission.Add(tint.MultiplyVec(radiance).Multiply(cosTheta * BounceWeight))
}
