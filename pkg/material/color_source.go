package material

import (
	"github.com/erbuka/pathtracing/pkg/core"
)

// Sampler2D provides colors over texture space
type Sampler2D interface {
	// Sample returns the color at the given texture coordinate
	Sample(uv core.Vec2) core.Vec3
	// Average returns the mean color over the whole texture
	Average() core.Vec3
}

// Sampler3D provides colors over directions, used for environments
type Sampler3D interface {
	Sample(direction core.Vec3) core.Vec3
}

// ColorSampler provides a uniform color over texture space
type ColorSampler struct {
	Color core.Vec3
}

// NewColorSampler creates a new constant color sampler
func NewColorSampler(color core.Vec3) *ColorSampler {
	return &ColorSampler{Color: color}
}

// Sample returns the constant color
func (s *ColorSampler) Sample(uv core.Vec2) core.Vec3 {
	return s.Color
}

// Average returns the constant color
func (s *ColorSampler) Average() core.Vec3 {
	return s.Color
}

// ColorEnvironment provides a uniform color over all directions
type ColorEnvironment struct {
	Color core.Vec3
}

// NewColorEnvironment creates a constant environment
func NewColorEnvironment(color core.Vec3) *ColorEnvironment {
	return &ColorEnvironment{Color: color}
}

// Sample returns the constant color for every direction
func (e *ColorEnvironment) Sample(direction core.Vec3) core.Vec3 {
	return e.Color
}
