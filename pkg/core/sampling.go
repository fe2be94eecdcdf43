package core

import (
	"math"
	"math/rand/v2"
)

// Sampler provides random sampling for rendering algorithms
// Can be swapped out for deterministic testing or different sampling patterns
type Sampler interface {
	Get1D() float64
	Get2D() Vec2
}

// RandomSampler wraps a PCG generator. It is not safe for concurrent use;
// every worker owns its own instance.
type RandomSampler struct {
	source *rand.PCG
	random *rand.Rand
}

// NewRandomSampler creates a sampler seeded with the given seed and stream
func NewRandomSampler(seed, stream uint64) *RandomSampler {
	source := rand.NewPCG(seed, stream)
	return &RandomSampler{source: source, random: rand.New(source)}
}

// Reseed restarts the sequence, so the same (seed, stream) pair always
// produces the same variates regardless of which worker draws them
func (r *RandomSampler) Reseed(seed, stream uint64) {
	r.source.Seed(seed, stream)
}

// Get1D returns a random float64 in [0, 1)
func (r *RandomSampler) Get1D() float64 {
	return r.random.Float64()
}

// Get2D returns two random float64 values in [0, 1)
func (r *RandomSampler) Get2D() Vec2 {
	return NewVec2(r.random.Float64(), r.random.Float64())
}

// StreamID mixes several integers into a single PCG stream selector
func StreamID(parts ...uint64) uint64 {
	h := uint64(0x9E3779B97F4A7C15)
	for _, p := range parts {
		h ^= p + 0x9E3779B97F4A7C15 + (h << 6) + (h >> 2)
		h *= 0xBF58476D1CE4E5B9
	}
	return h
}

// OrthonormalBasis builds a tangent and bitangent around the unit normal n.
// The tangent is taken in the plane of the normal's two largest components
// so the cross product never degenerates.
func OrthonormalBasis(n Vec3) (tangent, bitangent Vec3) {
	if math.Abs(n.X) > math.Abs(n.Y) {
		tangent = NewVec3(n.Z, 0, -n.X).Normalize()
	} else {
		tangent = NewVec3(0, -n.Z, n.Y).Normalize()
	}
	bitangent = n.Cross(tangent)
	return tangent, bitangent
}

// SampleUniformHemisphere generates a uniformly distributed direction in the
// hemisphere around normal
func SampleUniformHemisphere(normal Vec3, sample Vec2) Vec3 {
	tangent, bitangent := OrthonormalBasis(normal)

	z := sample.X
	r := math.Sqrt(math.Max(0, 1.0-z*z))
	phi := 2.0 * math.Pi * sample.Y

	x := r * math.Cos(phi)
	y := r * math.Sin(phi)

	return tangent.Multiply(x).Add(bitangent.Multiply(y)).Add(normal.Multiply(z))
}

// SampleCosineHemisphere generates a cosine-weighted random direction in hemisphere around normal
func SampleCosineHemisphere(normal Vec3, sample Vec2) Vec3 {
	a := 2.0 * math.Pi * sample.X
	z := sample.Y
	r := math.Sqrt(z)

	x := r * math.Cos(a)
	y := r * math.Sin(a)
	zCoord := math.Sqrt(1.0 - z)

	tangent, bitangent := OrthonormalBasis(normal)
	return tangent.Multiply(x).Add(bitangent.Multiply(y)).Add(normal.Multiply(zCoord))
}
