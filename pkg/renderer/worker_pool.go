package renderer

import (
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/integrator"
	"github.com/erbuka/pathtracing/pkg/material"
	"github.com/erbuka/pathtracing/pkg/scene"
)

// columnCursor hands out image columns to workers, one at a time
type columnCursor struct {
	mu       sync.Mutex
	next     int
	total    int
	progress *atomic.Uint64 // float64 bits of claimed/total
}

// claim returns the next unclaimed column, or false when none remain
func (c *columnCursor) claim() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.next >= c.total {
		return 0, false
	}
	x := c.next
	c.next++
	c.progress.Store(math.Float64bits(float64(c.next) / float64(c.total)))
	return x, true
}

// IterationTask is the shared state of one progressive iteration
type IterationTask struct {
	Iteration int
	Seed      uint64
	View      core.ViewParameters
	Samples   int
	Camera    *Camera
	Scene     *scene.Scene
	Image     *material.Image // written column-disjointly by the workers

	cursor      *columnCursor
	interrupted *atomic.Bool
}

// WorkerPool runs one iteration across a fixed number of workers.
// Workers are started per iteration and joined before Run returns.
type WorkerPool struct {
	workers []*Worker
	logger  *zap.Logger
}

// Worker renders claimed columns with its own sampler
type Worker struct {
	ID         int
	integrator integrator.Integrator
	sampler    *core.RandomSampler
	logger     *zap.Logger

	dropped int // non-finite or panicking samples in the current iteration
}

// NewWorkerPool creates a pool with numWorkers workers sharing integ
func NewWorkerPool(integ integrator.Integrator, numWorkers int, logger *zap.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}

	wp := &WorkerPool{logger: logger}
	for i := 0; i < numWorkers; i++ {
		wp.workers = append(wp.workers, &Worker{
			ID:         i,
			integrator: integ,
			sampler:    core.NewRandomSampler(0, uint64(i)),
			logger:     logger.With(zap.Int("worker", i)),
		})
	}
	return wp
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return len(wp.workers)
}

// Run renders every column of the task and blocks until all workers are
// done or the task is interrupted. It returns the number of dropped samples.
func (wp *WorkerPool) Run(task *IterationTask) int {
	var wg sync.WaitGroup
	for _, w := range wp.workers {
		w.dropped = 0
		wg.Add(1)
		go w.run(task, &wg)
	}
	wg.Wait()

	dropped := 0
	for _, w := range wp.workers {
		dropped += w.dropped
	}
	return dropped
}

// run is the main worker loop
func (w *Worker) run(task *IterationTask, wg *sync.WaitGroup) {
	defer wg.Done()

	for !task.interrupted.Load() {
		x, ok := task.cursor.claim()
		if !ok {
			return
		}
		w.renderColumn(task, x)
	}
}

// renderColumn samples every pixel of column x and folds the result into
// the running average. The sampler is reseeded per column so the output
// does not depend on which worker claimed it.
func (w *Worker) renderColumn(task *IterationTask, x int) {
	w.sampler.Reseed(task.Seed, core.StreamID(uint64(task.Iteration), uint64(x)))

	t := float64(task.Iteration) / float64(task.Iteration+1)

	for y := 0; y < task.View.Height; y++ {
		var sum core.Vec3
		taken, valid := 0, 0
		for s := 0; s < task.Samples; s++ {
			if task.interrupted.Load() {
				break
			}
			taken++
			if c, ok := w.sample(task, x, y); ok {
				sum = sum.Add(c)
				valid++
			}
		}

		if taken == 0 {
			return
		}
		// dropped samples are left out of the mean; a pixel without any
		// valid sample keeps its previous estimate
		if valid == 0 {
			continue
		}

		color := sum.Multiply(1 / float64(valid))
		task.Image.SetPixel(x, y, color.Mix(task.Image.Pixel(x, y), t))
	}
}

// sample traces one jittered camera ray. A panic or a non-finite result
// reports ok=false and is counted as dropped; the caller averages only the
// valid samples.
func (w *Worker) sample(task *IterationTask, x, y int) (color core.Vec3, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("sample panicked",
				zap.Any("panic", r), zap.Int("x", x), zap.Int("y", y))
			color, ok = core.Vec3{}, false
			w.dropped++
		}
	}()

	ray := task.Camera.GetJitteredRay(x, y, w.sampler)
	color = w.integrator.Trace(task.View, ray, task.Scene, w.sampler)
	if !color.IsFinite() {
		w.dropped++
		return core.Vec3{}, false
	}
	return color, true
}
