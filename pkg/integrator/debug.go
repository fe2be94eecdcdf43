package integrator

import (
	"fmt"
	"strings"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/scene"
)

// DebugMode selects the surface channel shown by DebugIntegrator
type DebugMode int

const (
	DebugAlbedo DebugMode = iota
	DebugEmission
	DebugRoughness
	DebugMetallic
	DebugNormal
)

var debugModeNames = []string{"albedo", "emission", "roughness", "metallic", "normal"}

// String returns the mode name
func (m DebugMode) String() string {
	if m < 0 || int(m) >= len(debugModeNames) {
		return fmt.Sprintf("DebugMode(%d)", int(m))
	}
	return debugModeNames[m]
}

// ParseDebugMode converts a mode name to a DebugMode
func ParseDebugMode(name string) (DebugMode, error) {
	for i, n := range debugModeNames {
		if strings.EqualFold(n, name) {
			return DebugMode(i), nil
		}
	}
	return 0, fmt.Errorf("integrator: unknown debug mode %q", name)
}

// DebugIntegrator shows one surface channel at the first hit
type DebugIntegrator struct {
	Mode DebugMode
}

// NewDebugIntegrator creates a debug integrator for the given mode
func NewDebugIntegrator(mode DebugMode) *DebugIntegrator {
	return &DebugIntegrator{Mode: mode}
}

// Trace returns the selected channel, or the background on a miss
func (d *DebugIntegrator) Trace(view core.ViewParameters, ray core.Ray, sc *scene.Scene, sampler core.Sampler) core.Vec3 {
	result, id := sc.CastRay(ray, false)
	if !result.Hit {
		return sc.BackgroundColor(ray.Direction)
	}

	mat := sc.Node(id).Material
	switch d.Mode {
	case DebugAlbedo:
		return mat.Albedo.Sample(result.UV)
	case DebugEmission:
		return mat.Emission.Sample(result.UV)
	case DebugRoughness:
		return mat.Roughness.Sample(result.UV)
	case DebugMetallic:
		return mat.Metallic.Sample(result.UV)
	case DebugNormal:
		return result.Normal.Multiply(0.5).Add(core.Splat(0.5))
	}
	return core.Vec3{}
}
