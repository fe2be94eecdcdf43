package core

import (
	"fmt"
	"math"
)

// ViewParameters describes the output image and the camera lens
type ViewParameters struct {
	Width  int
	Height int
	FovY   float64 // vertical field of view in radians
}

// DefaultViewParameters returns a 512x512 view with a 45 degree field of view
func DefaultViewParameters() ViewParameters {
	return ViewParameters{
		Width:  512,
		Height: 512,
		FovY:   math.Pi / 4,
	}
}

// AspectRatio returns width / height
func (v ViewParameters) AspectRatio() float64 {
	return float64(v.Width) / float64(v.Height)
}

// Validate rejects view parameters that would produce undefined geometry
func (v ViewParameters) Validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidResolution, v.Width, v.Height)
	}
	if math.IsNaN(v.FovY) || v.FovY <= 0 || v.FovY >= math.Pi {
		return fmt.Errorf("%w: got %g", ErrInvalidFov, v.FovY)
	}
	return nil
}

// TraceParameters controls how much work a progressive render does
type TraceParameters struct {
	NumThreads          int
	Iterations          int // 0 renders until interrupted
	SamplesPerIteration int
}

// DefaultTraceParameters returns 4 threads, 10 iterations and 256 samples per iteration
func DefaultTraceParameters() TraceParameters {
	return TraceParameters{
		NumThreads:          4,
		Iterations:          10,
		SamplesPerIteration: 256,
	}
}

// Validate rejects trace parameters that cannot make progress
func (t TraceParameters) Validate() error {
	if t.NumThreads <= 0 {
		return fmt.Errorf("%w: got %d", ErrNoThreads, t.NumThreads)
	}
	if t.SamplesPerIteration <= 0 {
		return fmt.Errorf("%w: got %d", ErrNoSamples, t.SamplesPerIteration)
	}
	if t.Iterations < 0 {
		return fmt.Errorf("core: iterations must not be negative, got %d", t.Iterations)
	}
	return nil
}

// Unbounded reports whether the render runs until interrupted
func (t TraceParameters) Unbounded() bool {
	return t.Iterations == 0
}
