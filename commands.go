package rendertask

import (
	"github.com/gogpu/gputypes"
)

// Commands issues GPU calls for one frame. It is only valid inside the task
// that made it; every method panics with a *PreconditionError when called off
// the runner goroutine.
type Commands struct {
	r                  *Runner
	holder             DrawableHolder
	win                *Window
	sem                *semaphore
	notifyAfterPresent bool
	drawableReset      bool
}

// Runner returns the runner that made c.
func (c *Commands) Runner() *Runner { return c.r }

// Window returns the window c draws into.
func (c *Commands) Window() *Window { return c.win }

// DrawableReset reports whether the drawable was reset since the previous
// frame. It is true for exactly one frame after a SurfaceReset change.
func (c *Commands) DrawableReset() bool { return c.drawableReset }

// SetClearColor sets the colour Clear fills the target with.
func (c *Commands) SetClearColor(col gputypes.Color) {
	c.r.verifyRunnerThread("Commands.SetClearColor")
	c.r.dev.SetClearColor(col)
}

// Clear clears the bound target.
func (c *Commands) Clear() {
	c.r.verifyRunnerThread("Commands.Clear")
	c.r.dev.Clear()
}

// SetViewport sets the viewport.
func (c *Commands) SetViewport(v Viewport) {
	c.r.verifyRunnerThread("Commands.SetViewport")
	c.r.dev.SetViewport(v)
}

// SetProjectionMatrix sets the projection applied to streamed geometry.
func (c *Commands) SetProjectionMatrix(m Mat4) {
	c.r.verifyRunnerThread("Commands.SetProjectionMatrix")
	c.r.dev.SetProjection(m)
}

// StreamBuffer returns the next buffer of the stream ring. It returns zero on
// devices that stream from client memory.
func (c *Commands) StreamBuffer() BufferHandle {
	c.r.verifyRunnerThread("Commands.StreamBuffer")
	return c.r.buffers.next()
}

// BindFramebufferTexture renders into tex through the runner's offscreen
// framebuffer, which is made on first use. A zero tex binds the drawable's
// default framebuffer again.
func (c *Commands) BindFramebufferTexture(tex TextureHandle) error {
	c.r.verifyRunnerThread("Commands.BindFramebufferTexture")
	if tex == 0 {
		c.r.dev.BindFramebuffer(c.r.defaultFB, 0)
		return nil
	}
	if c.r.fbo == 0 {
		fb, err := c.r.dev.CreateFramebuffer()
		if err != nil {
			return err
		}
		Logger().Debug("made offscreen framebuffer", "fbo", fb)
		c.r.fbo = fb
	}
	c.r.dev.BindFramebuffer(c.r.fbo, tex)
	return nil
}

// Flush submits the commands issued so far.
func (c *Commands) Flush() error {
	c.r.verifyRunnerThread("Commands.Flush")
	return c.r.dev.Flush()
}

// Present shows the frame on the holder's drawable. A caller drawing with
// DrawAsyncPresent is released once Present returns.
func (c *Commands) Present() error {
	c.r.verifyRunnerThread("Commands.Present")
	var err error
	if d := c.holder.Drawable(); d != nil {
		err = c.r.dev.Present(d)
	} else {
		Logger().Warn("present without drawable", "label", c.r.opts.label)
	}
	if c.notifyAfterPresent {
		c.sem.notify()
	}
	return err
}
