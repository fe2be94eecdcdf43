package material

import (
	"github.com/erbuka/pathtracing/pkg/core"
)

// Material describes a surface with four independently textured channels.
// Roughness and metallic are read from the first (red) channel.
type Material struct {
	Albedo    Sampler2D
	Emission  Sampler2D
	Roughness Sampler2D
	Metallic  Sampler2D
}

// NewMaterial returns a white, fully rough, non-metallic, non-emissive material
func NewMaterial() *Material {
	return &Material{
		Albedo:    NewColorSampler(core.Splat(1)),
		Emission:  NewColorSampler(core.Splat(0)),
		Roughness: NewColorSampler(core.Splat(1)),
		Metallic:  NewColorSampler(core.Splat(0)),
	}
}

// SurfaceSample holds every channel evaluated at one texture coordinate
type SurfaceSample struct {
	Albedo    core.Vec3
	Emission  core.Vec3
	Roughness float64
	Metallic  float64
}

// Evaluate samples all four channels at uv
func (m *Material) Evaluate(uv core.Vec2) SurfaceSample {
	return SurfaceSample{
		Albedo:    m.Albedo.Sample(uv),
		Emission:  m.Emission.Sample(uv),
		Roughness: m.Roughness.Sample(uv).X,
		Metallic:  m.Metallic.Sample(uv).X,
	}
}

// IsEmissive reports whether the average emission is non-zero
func (m *Material) IsEmissive() bool {
	avg := m.Emission.Average()
	return avg.X+avg.Y+avg.Z > 0
}
