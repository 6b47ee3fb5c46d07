// Package fakegpu provides a recording rendertask.Device for tests.
package fakegpu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendertask"
	"github.com/gogpu/rendertask/internal/gid"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("fakegpu: injected failure")

// Call is one recorded device call.
type Call struct {
	Op  string
	Arg string
	// Goroutine is the id of the goroutine that issued the call.
	Goroutine uint64
}

// Device records every call it receives. It is safe for concurrent use.
type Device struct {
	Caps rendertask.Capabilities

	// MakeCurrentErr is returned by MakeCurrent when set.
	MakeCurrentErr error
	// FailBuffers makes CreateBuffers fail.
	FailBuffers bool
	// WaitTimesOut makes ClientWaitFence report an expired timeout.
	WaitTimesOut bool
	// WaitDelay is slept inside ClientWaitFence.
	WaitDelay time.Duration

	mu          sync.Mutex
	calls       []Call
	nextFence   rendertask.FenceHandle
	nextObject  uint32
	liveFences  map[rendertask.FenceHandle]bool
	deleted     map[rendertask.FenceHandle]int
	clearColor  gputypes.Color
	viewport    rendertask.Viewport
	presented   int
	currentGoID uint64
}

// New returns a Device reporting caps.
func New(caps rendertask.Capabilities) *Device {
	return &Device{
		Caps:       caps,
		liveFences: make(map[rendertask.FenceHandle]bool),
		deleted:    make(map[rendertask.FenceHandle]int),
	}
}

// AllCaps returns capabilities with every feature enabled.
func AllCaps() rendertask.Capabilities {
	return rendertask.Capabilities{
		SyncFences:                 true,
		NoFlushCrossThreadWait:     true,
		StreamBuffers:              true,
		VertexArrayObjects:         true,
		ExplicitDefaultFramebuffer: true,
		ShaderCompilerRelease:      true,
	}
}

func (d *Device) record(op string, arg any) {
	d.mu.Lock()
	d.calls = append(d.calls, Call{Op: op, Arg: fmt.Sprint(arg), Goroutine: gid.Current()})
	d.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Count returns how many times op was called.
func (d *Device) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// CurrentGoroutine returns the goroutine the context was made current on.
func (d *Device) CurrentGoroutine() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentGoID
}

// Deletions returns how many times h was deleted.
func (d *Device) Deletions(h rendertask.FenceHandle) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleted[h]
}

// LiveFences returns the number of fences created and not deleted.
func (d *Device) LiveFences() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.liveFences)
}

// ClearColor returns the last clear colour set.
func (d *Device) ClearColor() gputypes.Color {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clearColor
}

// Viewport returns the last viewport set.
func (d *Device) Viewport() rendertask.Viewport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport
}

// Presented returns the number of presented frames.
func (d *Device) Presented() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presented
}

func (d *Device) Capabilities() rendertask.Capabilities { return d.Caps }

func (d *Device) MakeCurrent() error {
	d.record("MakeCurrent", nil)
	if d.MakeCurrentErr != nil {
		return d.MakeCurrentErr
	}
	d.mu.Lock()
	d.currentGoID = gid.Current()
	d.mu.Unlock()
	return nil
}

func (d *Device) ReleaseCurrent() error {
	d.record("ReleaseCurrent", nil)
	d.mu.Lock()
	d.currentGoID = 0
	d.mu.Unlock()
	return nil
}

func (d *Device) CreateFence() (rendertask.FenceHandle, error) {
	d.mu.Lock()
	d.nextFence++
	h := d.nextFence
	d.liveFences[h] = true
	d.mu.Unlock()
	d.record("CreateFence", h)
	return h, nil
}

func (d *Device) ClientWaitFence(h rendertask.FenceHandle, flags rendertask.WaitFlags, timeout time.Duration) (bool, error) {
	d.record("ClientWaitFence", h)
	d.mu.Lock()
	live := d.liveFences[h]
	d.mu.Unlock()
	if !live {
		return false, fmt.Errorf("fakegpu: wait on unknown fence %d", h)
	}
	if d.WaitDelay > 0 {
		time.Sleep(d.WaitDelay)
	}
	return !d.WaitTimesOut, nil
}

func (d *Device) ServerWaitFence(h rendertask.FenceHandle) error {
	d.record("ServerWaitFence", h)
	return nil
}

func (d *Device) DeleteFence(h rendertask.FenceHandle) {
	d.record("DeleteFence", h)
	d.mu.Lock()
	delete(d.liveFences, h)
	d.deleted[h]++
	d.mu.Unlock()
}

func (d *Device) object() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextObject++
	return d.nextObject
}

func (d *Device) CreateBuffers(n int) ([]rendertask.BufferHandle, error) {
	d.record("CreateBuffers", n)
	if d.FailBuffers {
		return nil, ErrInjected
	}
	bufs := make([]rendertask.BufferHandle, n)
	for i := range bufs {
		bufs[i] = rendertask.BufferHandle(d.object())
	}
	return bufs, nil
}

func (d *Device) DeleteBuffers(bufs []rendertask.BufferHandle) { d.record("DeleteBuffers", len(bufs)) }

func (d *Device) CreateVertexArray() (rendertask.VertexArrayHandle, error) {
	d.record("CreateVertexArray", nil)
	return rendertask.VertexArrayHandle(d.object()), nil
}

func (d *Device) BindVertexArray(vao rendertask.VertexArrayHandle) { d.record("BindVertexArray", vao) }

func (d *Device) DeleteVertexArray(vao rendertask.VertexArrayHandle) {
	d.record("DeleteVertexArray", vao)
}

func (d *Device) CreateFramebuffer() (rendertask.FramebufferHandle, error) {
	d.record("CreateFramebuffer", nil)
	return rendertask.FramebufferHandle(d.object()), nil
}

func (d *Device) BindFramebuffer(fb rendertask.FramebufferHandle, tex rendertask.TextureHandle) {
	d.record("BindFramebuffer", [2]uint32{uint32(fb), uint32(tex)})
}

func (d *Device) DeleteFramebuffer(fb rendertask.FramebufferHandle) {
	d.record("DeleteFramebuffer", fb)
}

func (d *Device) EnableVertexAttrib(index uint32) { d.record("EnableVertexAttrib", index) }

func (d *Device) SetClearColor(c gputypes.Color) {
	d.record("SetClearColor", c)
	d.mu.Lock()
	d.clearColor = c
	d.mu.Unlock()
}

func (d *Device) Clear() { d.record("Clear", nil) }

func (d *Device) SetViewport(v rendertask.Viewport) {
	d.record("SetViewport", v)
	d.mu.Lock()
	d.viewport = v
	d.mu.Unlock()
}

func (d *Device) SetProjection(m rendertask.Mat4) { d.record("SetProjection", nil) }

func (d *Device) Present(dr rendertask.Drawable) error {
	d.record("Present", nil)
	d.mu.Lock()
	d.presented++
	d.mu.Unlock()
	return nil
}

func (d *Device) Flush() error {
	d.record("Flush", nil)
	return nil
}

func (d *Device) ReleaseShaderCompiler() { d.record("ReleaseShaderCompiler", nil) }

var _ rendertask.Device = (*Device)(nil)
