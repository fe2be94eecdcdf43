package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erbuka/pathtracing/internal/config"
	"github.com/erbuka/pathtracing/pkg/loaders"
	"github.com/erbuka/pathtracing/pkg/scene"
)

// ErrUnknownScene is returned when a scene id matches neither a built-in
// scene nor a file in the scenes directory
var ErrUnknownScene = errors.New("server: unknown scene")

// Server handles web requests for the progressive path tracer
type Server struct {
	port      int
	scenesDir string
	defaults  *config.Config
	logger    *zap.Logger
}

// NewServer creates a new web server. Render requests start from the
// render and output sections of cfg.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		port:      cfg.Server.Port,
		scenesDir: cfg.Server.ScenesDir,
		defaults:  cfg,
		logger:    logger,
	}
}

// Handler returns the routes of the API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/scenes", s.handleScenes)
	mux.HandleFunc("/api/inspect", s.handleInspect)
	return mux
}

// Start starts the web server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting web server", zap.String("addr", "http://localhost"+addr))

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScenes lists built-in scenes and the scene files of the scenes directory
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	listing, err := scene.ListAllScenes(s.scenesDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// SceneParams are the query parameters shared by render and inspect
type SceneParams struct {
	Scene  string `json:"scene"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// parseSceneParams reads scene, width and height
func (s *Server) parseSceneParams(values url.Values) (SceneParams, error) {
	params := SceneParams{Scene: values.Get("scene")}
	if params.Scene == "" {
		params.Scene = "sphere"
	}

	var err error
	if params.Width, err = parseIntParam(values, "width", s.defaults.Render.Width, 16, 2000); err != nil {
		return params, err
	}
	if params.Height, err = parseIntParam(values, "height", s.defaults.Render.Height, 16, 2000); err != nil {
		return params, err
	}
	return params, nil
}

// createScene resolves a built-in id or a "file:<name>" id from the scene listing
func (s *Server) createScene(id string, logger *zap.Logger) (*scene.Scene, error) {
	if sc, err := scene.Builtin(id); err == nil {
		return sc, nil
	}

	name, ok := strings.CutPrefix(id, "file:")
	if !ok || name == "" || name != filepath.Base(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScene, id)
	}

	files, err := scene.ListSceneFiles(s.scenesDir)
	if err != nil {
		return nil, err
	}
	for _, info := range files {
		if info.ID == id {
			return loaders.LoadScene(info.FilePath, logger)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScene, id)
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseFloatParam parses a float parameter from URL query with validation
func parseFloatParam(values url.Values, key string, defaultValue, min, max float64) (float64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %f and %f, got: %f", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
