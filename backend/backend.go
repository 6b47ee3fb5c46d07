package backend

import (
	"errors"

	"github.com/gogpu/rendertask"
)

// Common backend errors.
var (
	// ErrNotFound is returned when no backend is registered under a name.
	ErrNotFound = errors.New("backend: not found")

	// ErrNotAvailable is returned when no registered backend is available
	// on this system, or the named one is not.
	ErrNotAvailable = errors.New("backend: not available")
)

// Standard backend names.
const (
	// NameHAL is the backend on github.com/gogpu/wgpu/hal.
	NameHAL = "hal"
	// NameNull is the capability-less fallback.
	NameNull = "null"
)

// Standard priorities (higher is preferred).
const (
	PriorityGPU      = 100
	PriorityFallback = 0
)

// Factory opens a device for a Runner.
type Factory func() (rendertask.Device, error)
