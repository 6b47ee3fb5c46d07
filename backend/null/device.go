// Package null provides a rendertask.Device with no capabilities.
//
// It backs headless runs and machines without a usable GPU. Every call
// succeeds and does nothing, fences are never created, and draws fall back
// to client memory and client-side vertex state.
package null

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendertask"
	"github.com/gogpu/rendertask/backend"
)

// ErrUnsupported is returned for objects the device cannot create.
var ErrUnsupported = errors.New("null: unsupported")

func init() {
	backend.Register(backend.NameNull, backend.PriorityFallback, func() (rendertask.Device, error) {
		return New(), nil
	}, nil)
}

// Device is a capability-less rendertask.Device.
type Device struct {
	current  atomic.Bool
	presents atomic.Int64
}

// New returns a null device.
func New() *Device { return &Device{} }

// Presents returns how many frames were presented.
func (d *Device) Presents() int64 { return d.presents.Load() }

func (d *Device) Capabilities() rendertask.Capabilities { return rendertask.Capabilities{} }

func (d *Device) MakeCurrent() error {
	if !d.current.CompareAndSwap(false, true) {
		return errors.New("null: device already current")
	}
	return nil
}

func (d *Device) ReleaseCurrent() error {
	d.current.Store(false)
	return nil
}

func (d *Device) CreateFence() (rendertask.FenceHandle, error) { return 0, ErrUnsupported }

func (d *Device) ClientWaitFence(rendertask.FenceHandle, rendertask.WaitFlags, time.Duration) (bool, error) {
	return true, nil
}

func (d *Device) ServerWaitFence(rendertask.FenceHandle) error { return nil }
func (d *Device) DeleteFence(rendertask.FenceHandle)           {}

func (d *Device) CreateBuffers(int) ([]rendertask.BufferHandle, error) { return nil, ErrUnsupported }
func (d *Device) DeleteBuffers([]rendertask.BufferHandle)              {}

func (d *Device) CreateVertexArray() (rendertask.VertexArrayHandle, error) { return 0, ErrUnsupported }
func (d *Device) BindVertexArray(rendertask.VertexArrayHandle)             {}
func (d *Device) DeleteVertexArray(rendertask.VertexArrayHandle)           {}

func (d *Device) CreateFramebuffer() (rendertask.FramebufferHandle, error)               { return 0, ErrUnsupported }
func (d *Device) BindFramebuffer(rendertask.FramebufferHandle, rendertask.TextureHandle) {}
func (d *Device) DeleteFramebuffer(rendertask.FramebufferHandle)                         {}

func (d *Device) EnableVertexAttrib(uint32)       {}
func (d *Device) SetClearColor(gputypes.Color)    {}
func (d *Device) Clear()                          {}
func (d *Device) SetViewport(rendertask.Viewport) {}
func (d *Device) SetProjection(rendertask.Mat4)   {}

func (d *Device) Present(rendertask.Drawable) error {
	d.presents.Add(1)
	return nil
}

func (d *Device) Flush() error           { return nil }
func (d *Device) ReleaseShaderCompiler() {}

var _ rendertask.Device = (*Device)(nil)
