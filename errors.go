package lorekeep

import "errors"

var (
	// ErrClosed is returned by operations on a closed Engine.
	ErrClosed = errors.New("engine is closed")

	// ErrOffline is returned by operations that need an embedding provider
	// when none is configured.
	ErrOffline = errors.New("no embedding provider configured")
)
