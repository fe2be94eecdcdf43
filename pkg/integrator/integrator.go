package integrator

import (
	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/scene"
)

// Integrator defines the interface for light transport algorithms.
// Trace is called concurrently from many workers; implementations must
// keep per-call state on the stack and draw randomness only from sampler.
type Integrator interface {
	Trace(view core.ViewParameters, ray core.Ray, sc *scene.Scene, sampler core.Sampler) core.Vec3
}
