package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/erbuka/pathtracing/pkg/loaders"
	"github.com/erbuka/pathtracing/pkg/material"
	"github.com/erbuka/pathtracing/pkg/renderer"
)

// RenderRequest represents a render request from the client
type RenderRequest struct {
	SceneParams
	Iterations int     `json:"iterations"` // 0 renders until the client disconnects
	Samples    int     `json:"samples"`    // samples per pixel per iteration
	Threads    int     `json:"threads"`
	Exposure   float64 `json:"exposure"`
	Seed       uint64  `json:"seed"`
	Integrator string  `json:"integrator"`
	DebugMode  string  `json:"debugMode"`
}

// IterationUpdate is sent after every completed iteration
type IterationUpdate struct {
	Iteration        int     `json:"iteration"` // 1-based
	TotalIterations  int     `json:"totalIterations"`
	ImageData        string  `json:"imageData"` // Base64 encoded PNG
	SamplesPerPixel  int     `json:"samplesPerPixel"`
	ElapsedMs        int64   `json:"elapsedMs"`
	RemainingMs      int64   `json:"remainingMs"`
	SamplesPerSecond float64 `json:"samplesPerSecond"`
	AverageLuminance float64 `json:"averageLuminance"`
	DroppedSamples   int     `json:"droppedSamples"`
	PrimitiveCount   int     `json:"primitiveCount"`
}

// CompleteUpdate is sent once when the render ends
type CompleteUpdate struct {
	Iterations      int    `json:"iterations"`
	SamplesPerPixel int    `json:"samplesPerPixel"`
	ElapsedMs       int64  `json:"elapsedMs"`
	Interrupted     bool   `json:"interrupted"`
	ImageData       string `json:"imageData"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "iteration", "complete", "error"
	Data string `json:"data"` // JSON-encoded data
}

// sseStream serializes events onto one response from a single writer goroutine
type sseStream struct {
	ctx    context.Context
	events chan SSEEvent
	done   chan struct{}
}

func newSSEStream(ctx context.Context, w http.ResponseWriter) *sseStream {
	st := &sseStream{
		ctx:    ctx,
		events: make(chan SSEEvent, 100),
		done:   make(chan struct{}),
	}
	go st.writeEvents(w)
	return st
}

// writeEvents drains the channel until it is closed. After a failed write
// or a disconnect, events are discarded.
func (st *sseStream) writeEvents(w http.ResponseWriter) {
	defer close(st.done)
	flusher, _ := w.(http.Flusher)
	failed := false

	for event := range st.events {
		if failed || st.ctx.Err() != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
			failed = true
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// send queues an event unless the client is gone
func (st *sseStream) send(eventType, data string) {
	select {
	case st.events <- SSEEvent{Type: eventType, Data: data}:
	case <-st.ctx.Done():
	}
}

// sendJSON queues an event with a JSON payload
func (st *sseStream) sendJSON(eventType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	st.send(eventType, string(data))
	return nil
}

// close waits for queued events to be written
func (st *sseStream) close() {
	close(st.events)
	<-st.done
}

// handleRender streams a progressive render as server-sent events. The
// render stops when the client disconnects.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.setSSEHeaders(w)

	ctx := r.Context()
	stream := newSSEStream(ctx, w)
	defer stream.close()

	req, err := s.parseRenderRequest(r)
	if err != nil {
		stream.send("error", fmt.Sprintf("Invalid request: %v", err))
		return
	}

	renderID := fmt.Sprintf("render-%d", time.Now().UnixNano())
	consoleChan := make(chan ConsoleMessage, 50)
	stopConsole := s.streamConsoleMessages(consoleChan, stream)
	defer stopConsole()

	renderLogger := NewConsoleLogger(s.logger, consoleChan).With(zap.String("render", renderID))

	if err := s.runRender(ctx, req, renderLogger, stream); err != nil {
		renderLogger.Warn("render failed", zap.Error(err))
		stream.send("error", err.Error())
	}
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// streamConsoleMessages forwards console messages to the stream until the
// returned function is called. Buffered messages are flushed first.
func (s *Server) streamConsoleMessages(consoleChan <-chan ConsoleMessage, stream *sseStream) (stop func()) {
	quit := make(chan struct{})
	finished := make(chan struct{})

	forward := func(msg ConsoleMessage) {
		if err := stream.sendJSON("console", msg); err != nil {
			s.logger.Warn("failed to marshal console message", zap.Error(err))
		}
	}

	go func() {
		defer close(finished)
		for {
			select {
			case msg := <-consoleChan:
				forward(msg)
			case <-quit:
				for {
					select {
					case msg := <-consoleChan:
						forward(msg)
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		close(quit)
		<-finished
	}
}

// runRender renders the requested scene and streams one update per iteration
func (s *Server) runRender(ctx context.Context, req *RenderRequest, logger *zap.Logger, stream *sseStream) error {
	cfg := *s.defaults
	cfg.Render.Width = req.Width
	cfg.Render.Height = req.Height
	cfg.Render.Iterations = req.Iterations
	cfg.Render.SamplesPerIteration = req.Samples
	cfg.Render.Threads = req.Threads
	cfg.Render.Seed = req.Seed
	cfg.Render.Integrator = req.Integrator
	cfg.Render.DebugMode = req.DebugMode
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc, err := s.createScene(req.Scene, logger)
	if err != nil {
		return err
	}
	integ, err := cfg.NewIntegrator()
	if err != nil {
		return err
	}

	pr := renderer.NewProgressiveRenderer(integ, logger)
	result, err := pr.Run(ctx, cfg.View(), cfg.Trace(), sc, renderer.RenderOptions{Events: true, Seed: cfg.Render.Seed})
	if err != nil {
		return err
	}
	defer result.Close()

	primitives := sc.GetPrimitiveCount()
	for ev := range result.Events() {
		switch ev.Type {
		case renderer.EventIterationEnd:
			imageData, err := encodeImage(ev.Image, req.Exposure)
			if err != nil {
				return fmt.Errorf("failed to encode image: %w", err)
			}
			st := ev.Stats
			update := IterationUpdate{
				Iteration:        st.Iteration + 1,
				TotalIterations:  req.Iterations,
				ImageData:        imageData,
				SamplesPerPixel:  st.SamplesPerPixel,
				ElapsedMs:        st.Elapsed.Milliseconds(),
				RemainingMs:      renderer.EstimateRemaining(st.Elapsed, st.Iteration+1, req.Iterations).Milliseconds(),
				SamplesPerSecond: st.SamplesPerSecond,
				AverageLuminance: st.AverageLuminance,
				DroppedSamples:   st.DroppedSamples,
				PrimitiveCount:   primitives,
			}
			if err := stream.sendJSON("iteration", update); err != nil {
				return err
			}

		case renderer.EventRenderEnd:
			imageData, err := encodeImage(ev.Image, req.Exposure)
			if err != nil {
				return fmt.Errorf("failed to encode image: %w", err)
			}
			stats := result.Stats()
			complete := CompleteUpdate{
				Iterations:      ev.Iteration,
				SamplesPerPixel: stats.SamplesPerPixel,
				ElapsedMs:       stats.Elapsed.Milliseconds(),
				Interrupted:     stats.Interrupted,
				ImageData:       imageData,
			}
			if err := stream.sendJSON("complete", complete); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseRenderRequest parses request parameters
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	values := r.URL.Query()
	params, err := s.parseSceneParams(values)
	if err != nil {
		return nil, err
	}

	d := s.defaults
	req := &RenderRequest{
		SceneParams: params,
		Integrator:  d.Render.Integrator,
		DebugMode:   d.Render.DebugMode,
	}
	if req.Iterations, err = parseIntParam(values, "iterations", d.Render.Iterations, 0, 10000); err != nil {
		return nil, err
	}
	if req.Samples, err = parseIntParam(values, "samples", d.Render.SamplesPerIteration, 1, 10000); err != nil {
		return nil, err
	}
	if req.Threads, err = parseIntParam(values, "threads", d.Render.Threads, 1, 256); err != nil {
		return nil, err
	}
	if req.Exposure, err = parseFloatParam(values, "exposure", d.Output.Exposure, 0, 100); err != nil {
		return nil, err
	}
	seed, err := parseIntParam(values, "seed", int(d.Render.Seed), 0, 1<<31-1)
	if err != nil {
		return nil, err
	}
	req.Seed = uint64(seed)

	if v := values.Get("integrator"); v != "" {
		req.Integrator = v
	}
	if v := values.Get("debugMode"); v != "" {
		req.DebugMode = v
		if values.Get("integrator") == "" {
			req.Integrator = "debug"
		}
	}

	if req.Width*req.Height > 800*600 && req.Samples > 100 {
		s.logger.Warn("large image with high samples may render slowly",
			zap.Int("width", req.Width), zap.Int("height", req.Height), zap.Int("samples", req.Samples))
	}

	return req, nil
}

// encodeImage tone maps img and returns it as a base64 PNG
func encodeImage(img *material.Image, exposure float64) (string, error) {
	data, err := loaders.PNGBytes(img, exposure)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
