package renderer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/integrator"
	"github.com/erbuka/pathtracing/pkg/material"
	"github.com/erbuka/pathtracing/pkg/scene"
)

const renderTimeout = 30 * time.Second

// waitFor fails the test when the render does not finish in time
func waitFor(t *testing.T, r *Result) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(renderTimeout):
		t.Fatal("render did not finish in time")
	}
}

// renderScene runs a render to completion and returns its handle
func renderScene(t *testing.T, integ integrator.Integrator, sc *scene.Scene, view core.ViewParameters, trace core.TraceParameters) *Result {
	t.Helper()
	r, err := NewProgressiveRenderer(integ, nil).Run(context.Background(), view, trace, sc, RenderOptions{Seed: 42})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	waitFor(t, r)
	return r
}

func TestProgressive_ConstantBackground(t *testing.T) {
	background := core.NewVec3(0.2, 0.4, 0.6)
	view := core.ViewParameters{Width: 16, Height: 12, FovY: math.Pi / 4}

	for _, threads := range []int{1, 3, 8} {
		sc := scene.NewScene()
		sc.Background = material.NewColorEnvironment(background)
		trace := core.TraceParameters{NumThreads: threads, Iterations: 1, SamplesPerIteration: 4}

		img := renderScene(t, nil, sc, view, trace).Image()
		for y := 0; y < view.Height; y++ {
			for x := 0; x < view.Width; x++ {
				if got := img.Pixel(x, y); !vecNear(got, background, 1e-12) {
					t.Fatalf("%d threads: pixel (%d, %d) expected %v, got %v", threads, x, y, background, got)
				}
			}
		}
	}
}

func TestProgressive_ThreadCountDoesNotChangeImage(t *testing.T) {
	view := core.ViewParameters{Width: 24, Height: 24, FovY: math.Pi / 4}

	render := func(threads int) *material.Image {
		trace := core.TraceParameters{NumThreads: threads, Iterations: 2, SamplesPerIteration: 2}
		return renderScene(t, nil, scene.NewSphereGridScene(), view, trace).Image()
	}

	single := render(1)
	multi := render(8)

	for y := 0; y < view.Height; y++ {
		for x := 0; x < view.Width; x++ {
			a, b := single.Pixel(x, y), multi.Pixel(x, y)
			if !vecNear(a, b, 1e-9) {
				t.Fatalf("Pixel (%d, %d) differs: %v vs %v", x, y, a, b)
			}
		}
	}
}

func TestProgressive_SamplesPerPixelCounter(t *testing.T) {
	view := core.ViewParameters{Width: 8, Height: 8, FovY: math.Pi / 4}
	trace := core.TraceParameters{NumThreads: 2, Iterations: 3, SamplesPerIteration: 5}

	r := renderScene(t, nil, scene.NewSphereScene(), view, trace)

	if got := r.SamplesPerPixel(); got != 15 {
		t.Errorf("Expected 15 samples per pixel, got %d", got)
	}
	if got := r.Iteration(); got != 3 {
		t.Errorf("Expected 3 iterations, got %d", got)
	}
	if r.IsInterrupted() {
		t.Error("Expected a completed render")
	}

	stats := r.Stats()
	if len(stats.Iterations) != 3 {
		t.Fatalf("Expected 3 iteration stats, got %d", len(stats.Iterations))
	}
	if stats.TotalSamples != 8*8*15 {
		t.Errorf("Expected %d total samples, got %d", 8*8*15, stats.TotalSamples)
	}
	for i, it := range stats.Iterations {
		if it.SamplesPerPixel != (i+1)*5 {
			t.Errorf("Iteration %d: expected %d spp, got %d", i, (i+1)*5, it.SamplesPerPixel)
		}
	}
	if r.Progress() != 1 {
		t.Errorf("Expected progress 1 after the last iteration, got %v", r.Progress())
	}
}

func TestProgressive_SphereExample(t *testing.T) {
	view := core.ViewParameters{Width: 64, Height: 64, FovY: math.Pi / 4}
	trace := core.TraceParameters{NumThreads: 1, Iterations: 1, SamplesPerIteration: 1}

	img := renderScene(t, nil, scene.NewSphereScene(), view, trace).Image()

	if center := img.Pixel(32, 32); center.IsZero() {
		t.Errorf("Expected non-black center, got %v", center)
	}
	for _, corner := range [][2]int{{0, 0}, {63, 0}, {0, 63}, {63, 63}} {
		if got := img.Pixel(corner[0], corner[1]); !got.IsZero() {
			t.Errorf("Expected black corner %v, got %v", corner, got)
		}
	}
}

func TestProgressive_InterruptStopsRender(t *testing.T) {
	view := core.ViewParameters{Width: 48, Height: 48, FovY: math.Pi / 4}
	trace := core.TraceParameters{NumThreads: 2, Iterations: 0, SamplesPerIteration: 4}

	r, err := NewProgressiveRenderer(nil, nil).Run(context.Background(), view, trace, scene.NewSphereGridScene(), RenderOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	deadline := time.Now().Add(renderTimeout)
	for r.Iteration() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	r.Interrupt()
	waitFor(t, r)

	if !r.IsInterrupted() || !r.Stats().Interrupted {
		t.Error("Expected the render to report interruption")
	}
	if r.Iteration() < 1 {
		t.Errorf("Expected at least one completed iteration, got %d", r.Iteration())
	}
	if got, want := r.SamplesPerPixel(), r.Iteration()*4; got != want {
		t.Errorf("Expected %d samples per pixel, got %d", want, got)
	}

	for _, p := range r.Image().Pixels() {
		if !p.IsFinite() || p.X < 0 || p.Y < 0 || p.Z < 0 {
			t.Fatalf("Garbage pixel %v", p)
		}
	}

	// a second interrupt is harmless
	r.Interrupt()
	r.Close()
}

func TestProgressive_InterruptBeforeFirstIteration(t *testing.T) {
	view := core.ViewParameters{Width: 32, Height: 32, FovY: math.Pi / 4}
	trace := core.TraceParameters{NumThreads: 4, Iterations: 0, SamplesPerIteration: 64}

	r, err := NewProgressiveRenderer(nil, nil).Run(context.Background(), view, trace, scene.NewSphereGridScene(), RenderOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	r.Interrupt()
	waitFor(t, r)

	img := r.Image()
	if img.Width() != 32 || img.Height() != 32 {
		t.Fatalf("Expected a 32x32 image, got %dx%d", img.Width(), img.Height())
	}
	for _, p := range img.Pixels() {
		if !p.IsFinite() {
			t.Fatalf("Garbage pixel %v", p)
		}
	}
}

func TestProgressive_ContextCancelInterrupts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	view := core.ViewParameters{Width: 16, Height: 16, FovY: math.Pi / 4}
	trace := core.TraceParameters{NumThreads: 2, Iterations: 0, SamplesPerIteration: 1}

	r, err := NewProgressiveRenderer(nil, nil).Run(ctx, view, trace, scene.NewSphereScene(), RenderOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	cancel()
	waitFor(t, r)

	if !r.IsInterrupted() {
		t.Error("Expected cancellation to interrupt the render")
	}
}

func TestProgressive_Events(t *testing.T) {
	view := core.ViewParameters{Width: 8, Height: 4, FovY: math.Pi / 4}
	trace := core.TraceParameters{NumThreads: 2, Iterations: 2, SamplesPerIteration: 1}

	r, err := NewProgressiveRenderer(nil, nil).Run(context.Background(), view, trace, scene.NewSphereScene(), RenderOptions{Events: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var events []Event
	for ev := range r.Events() {
		events = append(events, ev)
	}
	waitFor(t, r)

	expected := []struct {
		typ       EventType
		iteration int
	}{
		{EventIterationStart, 0},
		{EventIterationEnd, 0},
		{EventIterationStart, 1},
		{EventIterationEnd, 1},
		{EventRenderEnd, 2},
	}
	if len(events) != len(expected) {
		t.Fatalf("Expected %d events, got %d", len(expected), len(events))
	}
	for i, want := range expected {
		ev := events[i]
		if ev.Type != want.typ || ev.Iteration != want.iteration {
			t.Errorf("Event %d: expected %v/%d, got %v/%d", i, want.typ, want.iteration, ev.Type, ev.Iteration)
		}
		if ev.Image == nil || ev.Image.Width() != 8 || ev.Image.Height() != 4 {
			t.Errorf("Event %d: expected an 8x4 snapshot", i)
		}
	}
	if events[3].Stats.SamplesPerPixel != 2 {
		t.Errorf("Expected 2 spp in the last iteration stats, got %d", events[3].Stats.SamplesPerPixel)
	}

	// snapshots are private copies
	events[4].Image.Fill(core.Splat(5))
	if r.Image().Pixel(0, 0) == core.Splat(5) {
		t.Error("Expected event image to be a copy")
	}
}

// drainEvents reads events until the channel closes, sleeping after each
// one to simulate a slow receiver
func drainEvents(t *testing.T, r *Result, delay time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(renderTimeout)
	for {
		select {
		case ev, ok := <-r.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
			time.Sleep(delay)
		case <-deadline:
			t.Fatalf("events channel not closed, got %d events", len(events))
		}
	}
}

// checkEventSequence verifies that every counted iteration has its start
// and end events in order and that render-end comes last
func checkEventSequence(t *testing.T, events []Event, completed int) {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("Expected at least the render-end event")
	}
	last := events[len(events)-1]
	if last.Type != EventRenderEnd || last.Iteration != completed {
		t.Fatalf("Expected render-end/%d last, got %v/%d", completed, last.Type, last.Iteration)
	}

	i := 0
	for it := 0; it < completed; it++ {
		if i+1 >= len(events) || events[i].Type != EventIterationStart || events[i].Iteration != it ||
			events[i+1].Type != EventIterationEnd || events[i+1].Iteration != it {
			t.Fatalf("Expected start/end pair for iteration %d at event %d, got %v", it, i, events[i:])
		}
		i += 2
	}
	// an interrupted iteration may have started without ending
	if events[i].Type == EventIterationStart {
		if events[i].Iteration != completed {
			t.Errorf("Expected the interrupted iteration to be %d, got %d", completed, events[i].Iteration)
		}
		i++
	}
	if i != len(events)-1 {
		t.Errorf("Unexpected events after iteration %d: %v", completed, events[i:len(events)-1])
	}
}

func TestProgressive_SlowReceiverGetsEveryEvent(t *testing.T) {
	view := core.ViewParameters{Width: 4, Height: 4, FovY: math.Pi / 4}
	trace := core.TraceParameters{NumThreads: 2, Iterations: 30, SamplesPerIteration: 1}

	r, err := NewProgressiveRenderer(nil, nil).Run(context.Background(), view, trace, scene.NewSphereScene(), RenderOptions{Events: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	events := drainEvents(t, r, time.Millisecond)
	waitFor(t, r)

	if len(events) != 61 {
		t.Fatalf("Expected 61 events, got %d", len(events))
	}
	checkEventSequence(t, events, 30)
}

func TestProgressive_RenderEndSurvivesInterrupt(t *testing.T) {
	view := core.ViewParameters{Width: 4, Height: 4, FovY: math.Pi / 4}
	trace := core.TraceParameters{NumThreads: 2, Iterations: 0, SamplesPerIteration: 1}

	for run := 0; run < 5; run++ {
		r, err := NewProgressiveRenderer(nil, nil).Run(context.Background(), view, trace, scene.NewSphereScene(), RenderOptions{Events: true})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		time.AfterFunc(50*time.Millisecond, r.Interrupt)

		events := drainEvents(t, r, 2*time.Millisecond)
		waitFor(t, r)

		if !r.IsInterrupted() {
			t.Fatal("Expected the render to be interrupted")
		}
		checkEventSequence(t, events, r.Iteration())
	}
}

func TestProgressive_EventsDeliveredAfterWait(t *testing.T) {
	view := core.ViewParameters{Width: 4, Height: 4, FovY: math.Pi / 4}
	trace := core.TraceParameters{NumThreads: 2, Iterations: 0, SamplesPerIteration: 1}

	r, err := NewProgressiveRenderer(nil, nil).Run(context.Background(), view, trace, scene.NewSphereScene(), RenderOptions{Events: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// let the buffer fill up before interrupting
	time.Sleep(50 * time.Millisecond)
	r.Interrupt()
	waitFor(t, r)

	events := drainEvents(t, r, 0)
	checkEventSequence(t, events, r.Iteration())
}

func TestProgressive_CloseDropsUnreadEvents(t *testing.T) {
	view := core.ViewParameters{Width: 4, Height: 4, FovY: math.Pi / 4}
	trace := core.TraceParameters{NumThreads: 2, Iterations: 0, SamplesPerIteration: 1}

	r, err := NewProgressiveRenderer(nil, nil).Run(context.Background(), view, trace, scene.NewSphereScene(), RenderOptions{Events: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	r.Close()

	// the channel still closes without a receiver keeping up
	if events := drainEvents(t, r, 0); len(events) > eventBuffer {
		t.Errorf("Expected at most %d buffered events, got %d", eventBuffer, len(events))
	}
}

func TestProgressive_EventsDisabled(t *testing.T) {
	view := core.ViewParameters{Width: 4, Height: 4, FovY: math.Pi / 4}
	trace := core.TraceParameters{NumThreads: 1, Iterations: 1, SamplesPerIteration: 1}

	r, err := NewProgressiveRenderer(nil, nil).Run(context.Background(), view, trace, scene.NewSphereScene(), RenderOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, ok := <-r.Events(); ok {
		t.Error("Expected a closed events channel")
	}
	waitFor(t, r)
}

func TestProgressive_RejectsInvalidParameters(t *testing.T) {
	good := core.ViewParameters{Width: 4, Height: 4, FovY: math.Pi / 4}
	goodTrace := core.TraceParameters{NumThreads: 1, Iterations: 1, SamplesPerIteration: 1}

	tests := []struct {
		name     string
		view     core.ViewParameters
		trace    core.TraceParameters
		sc       *scene.Scene
		expected error
	}{
		{"nil scene", good, goodTrace, nil, core.ErrNilScene},
		{"zero width", core.ViewParameters{Width: 0, Height: 4, FovY: 1}, goodTrace, scene.NewScene(), core.ErrInvalidResolution},
		{"zero fov", core.ViewParameters{Width: 4, Height: 4}, goodTrace, scene.NewScene(), core.ErrInvalidFov},
		{"no threads", good, core.TraceParameters{Iterations: 1, SamplesPerIteration: 1}, scene.NewScene(), core.ErrNoThreads},
		{"no samples", good, core.TraceParameters{NumThreads: 1, Iterations: 1}, scene.NewScene(), core.ErrNoSamples},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewProgressiveRenderer(nil, nil).Run(context.Background(), tt.view, tt.trace, tt.sc, RenderOptions{})
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
			if r != nil {
				t.Error("Expected no result handle")
			}
		})
	}
}

// faultyIntegrator panics on the left half of the image and returns NaN on
// the right half of the top row
type faultyIntegrator struct{}

func (faultyIntegrator) Trace(view core.ViewParameters, ray core.Ray, sc *scene.Scene, sampler core.Sampler) core.Vec3 {
	if ray.Direction.X < 0 {
		panic("broken sample")
	}
	if ray.Direction.Y > 0.2 {
		return core.Splat(math.NaN())
	}
	return core.Splat(1)
}

func TestProgressive_FaultySamplesContributeNothing(t *testing.T) {
	view := core.ViewParameters{Width: 16, Height: 16, FovY: math.Pi / 2}
	trace := core.TraceParameters{NumThreads: 3, Iterations: 1, SamplesPerIteration: 2}

	r := renderScene(t, faultyIntegrator{}, scene.NewScene(), view, trace)
	img := r.Image()

	for _, p := range img.Pixels() {
		if !p.IsFinite() {
			t.Fatalf("Non-finite pixel %v", p)
		}
	}
	// left edge always panics, bottom-right always succeeds
	if got := img.Pixel(0, 8); !got.IsZero() {
		t.Errorf("Expected black where every sample panicked, got %v", got)
	}
	if got := img.Pixel(15, 15); !vecNear(got, core.Splat(1), 1e-12) {
		t.Errorf("Expected white where every sample succeeded, got %v", got)
	}
	if r.Stats().Iterations[0].DroppedSamples == 0 {
		t.Error("Expected dropped samples to be counted")
	}
}

// flakyIntegrator panics on roughly half of its calls, chosen by the sampler
type flakyIntegrator struct{}

func (flakyIntegrator) Trace(view core.ViewParameters, ray core.Ray, sc *scene.Scene, sampler core.Sampler) core.Vec3 {
	if sampler.Get1D() < 0.5 {
		panic("flaky sample")
	}
	return core.Splat(1)
}

func TestProgressive_DroppedSamplesLeftOutOfMean(t *testing.T) {
	view := core.ViewParameters{Width: 8, Height: 8, FovY: math.Pi / 4}
	trace := core.TraceParameters{NumThreads: 2, Iterations: 1, SamplesPerIteration: 16}

	r := renderScene(t, flakyIntegrator{}, scene.NewScene(), view, trace)

	white := 0
	for _, p := range r.Image().Pixels() {
		switch {
		case vecNear(p, core.Splat(1), 1e-12):
			white++
		case p.IsZero():
		default:
			t.Fatalf("Expected dropped samples not to darken the mean, got %v", p)
		}
	}
	if white == 0 {
		t.Error("Expected pixels with valid samples to be white")
	}
	if r.Stats().Iterations[0].DroppedSamples == 0 {
		t.Error("Expected dropped samples to be counted")
	}
}
