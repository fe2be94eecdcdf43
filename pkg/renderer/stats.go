package renderer

import (
	"time"

	"github.com/erbuka/pathtracing/pkg/material"
)

// IterationStats describes one completed iteration
type IterationStats struct {
	Iteration        int           // zero-based iteration index
	Duration         time.Duration // wall time of this iteration
	Elapsed          time.Duration // wall time since the render started
	SamplesPerPixel  int           // cumulative samples per pixel after this iteration
	SamplesPerSecond float64       // camera samples traced per second in this iteration
	DroppedSamples   int           // non-finite or panicking samples
	AverageLuminance float64
}

// RenderStats summarises a whole render
type RenderStats struct {
	Iterations       []IterationStats
	TotalSamples     int64 // camera samples across all pixels
	SamplesPerPixel  int
	Elapsed          time.Duration
	Interrupted      bool
	AverageLuminance float64
}

// SamplesPerSecond returns the overall throughput
func (s RenderStats) SamplesPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.TotalSamples) / s.Elapsed.Seconds()
}

// EstimateRemaining extrapolates the remaining time from the average
// iteration duration. Unbounded renders (total 0) have no estimate.
func EstimateRemaining(elapsed time.Duration, completed, total int) time.Duration {
	if total <= 0 || completed <= 0 || completed >= total {
		return 0
	}
	perIteration := elapsed / time.Duration(completed)
	return perIteration * time.Duration(total-completed)
}

// CalculateAverageLuminance returns the mean Rec. 709 luminance of img
func CalculateAverageLuminance(img *material.Image) float64 {
	if img == nil || len(img.Pixels()) == 0 {
		return 0
	}
	return img.Average().Luminance()
}
