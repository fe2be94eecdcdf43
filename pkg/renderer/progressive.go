package renderer

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/integrator"
	"github.com/erbuka/pathtracing/pkg/material"
	"github.com/erbuka/pathtracing/pkg/scene"
)

// EventType identifies a render lifecycle event
type EventType int

const (
	EventIterationStart EventType = iota
	EventIterationEnd
	EventRenderEnd
)

// String returns the event name
func (e EventType) String() string {
	switch e {
	case EventIterationStart:
		return "iteration-start"
	case EventIterationEnd:
		return "iteration-end"
	case EventRenderEnd:
		return "render-end"
	}
	return "unknown"
}

// Event is published by a running render. Image is a private snapshot the
// receiver may keep.
type Event struct {
	Type      EventType
	Iteration int
	Image     *material.Image
	Stats     IterationStats // set for EventIterationEnd
}

// RenderOptions configures progressive rendering behavior
type RenderOptions struct {
	Events bool   // publish lifecycle events; otherwise the channel is closed immediately
	Seed   uint64 // base seed of every per-column random stream
}

// eventBuffer is the capacity of the events channel
const eventBuffer = 16

// ProgressiveRenderer refines an image over repeated iterations, each one
// averaged into a running mean
type ProgressiveRenderer struct {
	integrator integrator.Integrator
	logger     *zap.Logger
}

// NewProgressiveRenderer creates a renderer; a nil integrator selects the
// path tracer and a nil logger discards output
func NewProgressiveRenderer(integ integrator.Integrator, logger *zap.Logger) *ProgressiveRenderer {
	if integ == nil {
		integ = integrator.NewPathTracingIntegrator(integrator.DefaultMaxBounces)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressiveRenderer{integrator: integ, logger: logger}
}

// Result is the handle of a running render
type Result struct {
	start    time.Time
	elapsed  atomic.Int64 // frozen once the render ends
	progress atomic.Uint64

	iteration       atomic.Int64
	samplesPerPixel atomic.Int64
	interrupted     atomic.Bool

	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
	events    chan Event
	pending   []Event // owned by the render goroutine

	mu    sync.RWMutex
	image *material.Image
	stats RenderStats
}

// Run validates the parameters, compiles the scene and starts rendering in
// a background goroutine. Cancelling ctx interrupts the render.
func (pr *ProgressiveRenderer) Run(ctx context.Context, view core.ViewParameters, trace core.TraceParameters, sc *scene.Scene, options RenderOptions) (*Result, error) {
	if sc == nil {
		return nil, core.ErrNilScene
	}
	if err := view.Validate(); err != nil {
		return nil, err
	}
	if err := trace.Validate(); err != nil {
		return nil, err
	}

	sc.Compile()

	r := &Result{
		start:  time.Now(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
		events: make(chan Event, eventBuffer),
		image:  material.NewImage(view.Width, view.Height),
	}
	if !options.Events {
		close(r.events)
	}

	stopWatch := context.AfterFunc(ctx, r.Interrupt)

	pr.logger.Info("render started",
		zap.Int("width", view.Width),
		zap.Int("height", view.Height),
		zap.Int("threads", trace.NumThreads),
		zap.Int("iterations", trace.Iterations),
		zap.Int("samples_per_iteration", trace.SamplesPerIteration))

	go func() {
		defer close(r.done)
		defer stopWatch()
		pr.render(r, view, trace, sc, options)
		if options.Events {
			go r.flush(r.pending)
			r.pending = nil
		}
	}()

	return r, nil
}

// render is the driver loop owned by the result goroutine
func (pr *ProgressiveRenderer) render(r *Result, view core.ViewParameters, trace core.TraceParameters, sc *scene.Scene, options RenderOptions) {
	img := material.NewImage(view.Width, view.Height)
	camera := NewCamera(sc.Camera, view)
	pool := NewWorkerPool(pr.integrator, trace.NumThreads, pr.logger)

	for it := 0; trace.Unbounded() || it < trace.Iterations; it++ {
		if r.interrupted.Load() {
			break
		}

		r.progress.Store(0)
		r.publish(options, Event{Type: EventIterationStart, Iteration: it}, img)

		iterationStart := time.Now()
		task := &IterationTask{
			Iteration: it,
			Seed:      options.Seed,
			View:      view,
			Samples:   trace.SamplesPerIteration,
			Camera:    camera,
			Scene:     sc,
			Image:     img,
			cursor: &columnCursor{
				total:    view.Width,
				progress: &r.progress,
			},
			interrupted: &r.interrupted,
		}
		dropped := pool.Run(task)

		if dropped > 0 {
			pr.logger.Warn("samples dropped", zap.Int("iteration", it), zap.Int("dropped", dropped))
		}

		// a partial iteration is kept in the image but not counted
		if r.interrupted.Load() {
			break
		}

		duration := time.Since(iterationStart)
		spp := r.samplesPerPixel.Add(int64(trace.SamplesPerIteration))
		r.iteration.Store(int64(it + 1))

		samples := float64(view.Width * view.Height * trace.SamplesPerIteration)
		stats := IterationStats{
			Iteration:        it,
			Duration:         duration,
			Elapsed:          time.Since(r.start),
			SamplesPerPixel:  int(spp),
			SamplesPerSecond: samples / math.Max(duration.Seconds(), 1e-9),
			DroppedSamples:   dropped,
			AverageLuminance: CalculateAverageLuminance(img),
		}
		r.completeIteration(img, stats)

		pr.logger.Debug("iteration completed",
			zap.Int("iteration", it),
			zap.Duration("duration", duration),
			zap.Int64("samples_per_pixel", spp))

		r.publish(options, Event{Type: EventIterationEnd, Iteration: it, Stats: stats}, img)
	}

	r.finish(img)
	if r.IsInterrupted() {
		pr.logger.Info("render interrupted",
			zap.Int64("iterations", r.iteration.Load()),
			zap.Duration("elapsed", r.ElapsedTime()))
	} else {
		pr.logger.Info("render completed",
			zap.Int64("iterations", r.iteration.Load()),
			zap.Duration("elapsed", r.ElapsedTime()))
	}

	r.publish(options, Event{Type: EventRenderEnd, Iteration: int(r.iteration.Load())}, img)
}

// completeIteration stores the snapshot and stats of a finished iteration
func (r *Result) completeIteration(img *material.Image, stats IterationStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.image = img.Clone()
	r.stats.Iterations = append(r.stats.Iterations, stats)
	r.stats.SamplesPerPixel = stats.SamplesPerPixel
	r.stats.TotalSamples = int64(img.Width()) * int64(img.Height()) * int64(stats.SamplesPerPixel)
	r.stats.AverageLuminance = stats.AverageLuminance
}

// finish freezes the clock and stores the final image
func (r *Result) finish(img *material.Image) {
	r.elapsed.Store(int64(time.Since(r.start)))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.image = img.Clone()
	r.stats.Elapsed = time.Duration(r.elapsed.Load())
	r.stats.Interrupted = r.interrupted.Load()
	r.stats.AverageLuminance = CalculateAverageLuminance(r.image)
}

// publish sends an event when events are enabled. While running, a lagging
// receiver slows the render down. Once interrupted, events that do not fit
// are queued and delivered by flush after the render ends, so none is lost.
func (r *Result) publish(options RenderOptions, ev Event, img *material.Image) {
	if !options.Events {
		return
	}
	ev.Image = img.Clone()

	if len(r.pending) > 0 {
		r.pending = append(r.pending, ev)
		return
	}
	select {
	case r.events <- ev:
	case <-r.stop:
		select {
		case r.events <- ev:
		default:
			r.pending = append(r.pending, ev)
		}
	}
}

// flush delivers the events queued after an interrupt and closes the
// channel. Close abandons the remaining events.
func (r *Result) flush(pending []Event) {
	defer close(r.events)
	for _, ev := range pending {
		select {
		case r.events <- ev:
		case <-r.closed:
			return
		}
	}
}

// Wait blocks until the render goroutine has finished
func (r *Result) Wait() {
	<-r.done
}

// Done is closed when the render goroutine has finished
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Interrupt asks the render to stop. It returns immediately; use Wait to
// block until the workers have wound down.
func (r *Result) Interrupt() {
	r.stopOnce.Do(func() {
		r.interrupted.Store(true)
		close(r.stop)
	})
}

// IsInterrupted reports whether Interrupt was called
func (r *Result) IsInterrupted() bool {
	return r.interrupted.Load()
}

// Close interrupts the render, waits for it and drops any events not yet
// received. A caller that enables events must either drain them or Close.
func (r *Result) Close() {
	r.Interrupt()
	r.Wait()
	r.closeOnce.Do(func() { close(r.closed) })
}

// ElapsedTime returns the render duration so far, or the total once done
func (r *Result) ElapsedTime() time.Duration {
	if d := r.elapsed.Load(); d > 0 {
		return time.Duration(d)
	}
	return time.Since(r.start)
}

// Progress returns the claimed fraction of columns in the current iteration
func (r *Result) Progress() float64 {
	return math.Float64frombits(r.progress.Load())
}

// Iteration returns the number of completed iterations
func (r *Result) Iteration() int {
	return int(r.iteration.Load())
}

// SamplesPerPixel returns the cumulative samples per pixel of completed iterations
func (r *Result) SamplesPerPixel() int {
	return int(r.samplesPerPixel.Load())
}

// Events returns the lifecycle event channel. It is closed after the
// render-end event, or immediately when events are disabled. Every
// iteration-start is followed by its iteration-end unless the iteration
// was interrupted, and render-end is always the last event.
func (r *Result) Events() <-chan Event {
	return r.events
}

// Image returns a copy of the latest image: the last completed iteration
// while running, the final state once done
func (r *Result) Image() *material.Image {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.image.Clone()
}

// Stats returns a copy of the render statistics
func (r *Result) Stats() RenderStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := r.stats
	stats.Iterations = append([]IterationStats(nil), r.stats.Iterations...)
	if r.elapsed.Load() == 0 {
		stats.Elapsed = time.Since(r.start)
	}
	return stats
}
