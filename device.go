package rendertask

import (
	"time"

	"github.com/gogpu/gputypes"
)

// FenceHandle is an opaque backend sync object. Zero means "no fence".
type FenceHandle uint64

// BufferHandle names a backend vertex/stream buffer. Zero means none.
type BufferHandle uint32

// VertexArrayHandle names a backend vertex array object. Zero means none.
type VertexArrayHandle uint32

// FramebufferHandle names a backend framebuffer. Zero is the drawable's own
// framebuffer.
type FramebufferHandle uint32

// TextureHandle names a backend texture used as a render target.
type TextureHandle uint32

// WaitFlags modify a client-side fence wait.
type WaitFlags uint32

const (
	// WaitFlushCommands flushes pending commands before waiting, so the wait
	// cannot stall on work the GPU has not seen yet. A flushing wait must run
	// on the runner goroutine.
	WaitFlushCommands WaitFlags = 1 << iota
)

// Viewport is the drawable region commands render into, in pixels.
type Viewport struct {
	X, Y          int
	Width, Height int
}

// Mat4 is a column-major 4x4 projection matrix. rendertask carries it to the
// device without interpreting it.
type Mat4 [16]float32

// IdentityMat4 returns the identity matrix.
func IdentityMat4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Drawable is the platform surface a frame is presented to. It is created
// and destroyed by a DrawableHolder.
type Drawable interface {
	// Size returns the drawable size in physical pixels.
	Size() (width, height int)
}

// Device is a graphics context together with the calls rendertask issues on
// it. A Runner makes the device current on its own goroutine and issues every
// method from there, except the fence methods named below when the device
// reports NoFlushCrossThreadWait.
//
// Implementations live under backend/.
type Device interface {
	// Capabilities reports what the device supports. It is queried once,
	// on the runner goroutine, after MakeCurrent.
	Capabilities() Capabilities

	// MakeCurrent binds the context to the calling OS thread.
	MakeCurrent() error

	// ReleaseCurrent unbinds the context from the calling OS thread.
	ReleaseCurrent() error

	// CreateFence inserts a fence after all previously issued commands.
	CreateFence() (FenceHandle, error)

	// ClientWaitFence blocks the caller until the fence is signalled or the
	// timeout expires; it reports whether the fence was signalled.
	// Safe off the runner goroutine when NoFlushCrossThreadWait is set and
	// flags is zero.
	ClientWaitFence(h FenceHandle, flags WaitFlags, timeout time.Duration) (bool, error)

	// ServerWaitFence makes the GPU wait for the fence before executing
	// later commands. It does not block the caller.
	ServerWaitFence(h FenceHandle) error

	// DeleteFence releases the fence. Safe off the runner goroutine when
	// NoFlushCrossThreadWait is set.
	DeleteFence(h FenceHandle)

	CreateBuffers(n int) ([]BufferHandle, error)
	DeleteBuffers(bufs []BufferHandle)

	CreateVertexArray() (VertexArrayHandle, error)
	BindVertexArray(vao VertexArrayHandle)
	DeleteVertexArray(vao VertexArrayHandle)

	CreateFramebuffer() (FramebufferHandle, error)
	// BindFramebuffer binds fb, attaching tex as its color target when tex
	// is non-zero.
	BindFramebuffer(fb FramebufferHandle, tex TextureHandle)
	DeleteFramebuffer(fb FramebufferHandle)

	EnableVertexAttrib(index uint32)
	SetClearColor(c gputypes.Color)
	Clear()
	SetViewport(v Viewport)
	SetProjection(m Mat4)

	// Present shows the finished frame on d.
	Present(d Drawable) error

	// Flush submits buffered commands to the GPU without waiting.
	Flush() error

	// ReleaseShaderCompiler hints that shader compilation is done for now.
	ReleaseShaderCompiler()
}
