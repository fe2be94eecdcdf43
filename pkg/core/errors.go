package core

import "errors"

// Configuration errors returned before a render starts
var (
	ErrInvalidResolution = errors.New("core: image width and height must be positive")
	ErrInvalidFov        = errors.New("core: vertical field of view must be in (0, pi)")
	ErrNoThreads         = errors.New("core: at least one worker thread is required")
	ErrNoSamples         = errors.New("core: samples per iteration must be positive")
	ErrNilScene          = errors.New("core: scene is nil")
)
