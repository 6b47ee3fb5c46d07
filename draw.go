package rendertask

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// DrawAsyncMode selects how long Draw blocks its caller.
type DrawAsyncMode int

const (
	// DrawAsyncNone blocks until the draw task has finished.
	DrawAsyncNone DrawAsyncMode = iota
	// DrawAsyncPresent blocks until the draw task presents the frame.
	DrawAsyncPresent
	// DrawAsyncFull returns as soon as the draw task is queued.
	DrawAsyncFull
)

func (m DrawAsyncMode) String() string {
	switch m {
	case DrawAsyncNone:
		return "None"
	case DrawAsyncPresent:
		return "Present"
	case DrawAsyncFull:
		return "Full"
	default:
		return fmt.Sprintf("DrawAsyncMode(%d)", int(m))
	}
}

// DrawParams configures one Draw call.
type DrawParams struct {
	AsyncMode DrawAsyncMode
}

// WindowDrawParams carries the window state of the frame being drawn.
type WindowDrawParams struct {
	// WasResized is set on the first frame after the window changed size.
	WasResized bool
	// NeedsSync forces DrawAsyncNone, for frames whose caller must observe
	// the result, such as the first frame after a resize.
	NeedsSync bool
}

// DrawContext is handed to the draw function on the runner goroutine.
type DrawContext struct {
	r                  *Runner
	sem                *semaphore
	notifyAfterPresent bool
}

// Runner returns the runner executing the draw.
func (dc DrawContext) Runner() *Runner { return dc.r }

// Draw runs fn on the runner goroutine to produce one frame for win.
//
// Before queueing, Draw registers the orientation handler of a resized main
// window and makes the holder's drawable if it has none. When the runner is
// already closed the frame is skipped with ErrRunnerClosed.
func (r *Runner) Draw(holder DrawableHolder, win *Window, params WindowDrawParams, dp DrawParams, fn func(DrawContext)) error {
	if fn == nil {
		return ErrNilTask
	}
	if holder == nil {
		return ErrNilHolder
	}
	if err := r.preDraw(holder, win, params); err != nil {
		return err
	}
	mode := dp.AsyncMode
	if params.NeedsSync {
		mode = DrawAsyncNone
	}
	if mode != DrawAsyncFull && r.IsRunnerThread() {
		fatalf("Draw", "blocking draw (%s) from the runner goroutine of %q", mode, r.opts.label)
	}

	if mode == DrawAsyncFull {
		return r.Run(func(ctx TaskContext) {
			fn(DrawContext{r: r})
		})
	}

	var taskErr error
	sem := newSemaphore()
	notify := mode == DrawAsyncPresent
	task := func(ctx TaskContext) {
		fn(DrawContext{r: r, sem: ctx.sem, notifyAfterPresent: notify})
	}
	if err := r.queue.Push(taskItem{fn: task, sem: sem, err: &taskErr}); err != nil {
		return ErrRunnerClosed
	}
	sem.wait()
	return taskErr
}

func (r *Runner) preDraw(holder DrawableHolder, win *Window, params WindowDrawParams) error {
	if r.Closed() {
		Logger().Warn("draw skipped, runner closed", "label", r.opts.label)
		return ErrRunnerClosed
	}
	if params.WasResized && win != nil && win.IsMain() {
		win.registerOrientationHandler()
	}
	if !holder.HasDrawable() {
		if err := holder.MakeDrawable(r, win); err != nil {
			return fmt.Errorf("rendertask: make drawable: %w", err)
		}
	}
	return nil
}

// MakeCommands prepares the context for a frame and returns the commands to
// issue it with. The first call on a runner also sets the initial context
// state; viewport and projection are set on every call.
func (dc DrawContext) MakeCommands(holder DrawableHolder, win *Window, vp Viewport, proj Mat4) (*Commands, error) {
	r := dc.r
	r.verifyRunnerThread("DrawContext.MakeCommands")
	if holder == nil {
		return nil, ErrNilHolder
	}

	if err := r.ensureDefaultFramebuffer(); err != nil {
		return nil, err
	}
	c := &Commands{
		r:                  r,
		holder:             holder,
		win:                win,
		sem:                dc.sem,
		notifyAfterPresent: dc.notifyAfterPresent,
		drawableReset:      r.resetDrawable.Swap(false),
	}
	if err := r.initialCommands(); err != nil {
		return nil, err
	}
	c.SetViewport(vp)
	c.SetProjectionMatrix(proj)
	return c, nil
}

// ensureDefaultFramebuffer makes the drawable framebuffer on devices that do
// not provide one implicitly.
func (r *Runner) ensureDefaultFramebuffer() error {
	if r.defaultFBReady || !r.caps.ExplicitDefaultFramebuffer {
		return nil
	}
	fb, err := r.dev.CreateFramebuffer()
	if err != nil {
		return fmt.Errorf("rendertask: make default framebuffer: %w", err)
	}
	Logger().Debug("made default framebuffer", "fbo", fb)
	r.defaultFB = fb
	r.defaultFBReady = true
	r.dev.BindFramebuffer(fb, 0)
	return nil
}

// initialCommands sets up per-context state once.
func (r *Runner) initialCommands() error {
	if r.initialStateSet {
		return nil
	}
	if err := r.buffers.init(r.dev); err != nil {
		return fmt.Errorf("rendertask: make stream buffers: %w", err)
	}
	if err := r.arrays.init(r.dev); err != nil {
		return fmt.Errorf("rendertask: make vertex array: %w", err)
	}
	r.dev.EnableVertexAttrib(attribPosition)
	r.dev.SetClearColor(gputypes.Color{R: 0, G: 0, B: 0, A: 1})
	r.initialStateSet = true
	return nil
}
