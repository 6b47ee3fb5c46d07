package rendertask

import "fmt"

// DrawableHolder owns the platform drawable of one window. The runner asks
// it to create the drawable lazily and to destroy it on surface loss.
type DrawableHolder interface {
	// HasDrawable reports whether a drawable currently exists.
	HasDrawable() bool

	// Drawable returns the current drawable, or nil.
	Drawable() Drawable

	// MakeDrawable creates the drawable for win.
	MakeDrawable(r *Runner, win *Window) error

	// DestroyDrawable releases the drawable. The runner has no pending tasks
	// when it is called.
	DestroyDrawable(r *Runner)
}

// SurfaceChange describes what happened to a window's surface.
type SurfaceChange uint32

const (
	// SurfaceDestroyed means the surface is gone; the drawable must be
	// destroyed.
	SurfaceDestroyed SurfaceChange = 1 << iota
	// SurfaceInvalidated means the surface contents are stale.
	SurfaceInvalidated
	// SurfaceReset means the surface was recreated; the next frame sees
	// Commands.DrawableReset report true.
	SurfaceReset
)

// Has reports whether all bits of flag are set in c.
func (c SurfaceChange) Has(flag SurfaceChange) bool { return c&flag == flag }

// UpdateDrawableForSurfaceChange brings the holder's drawable in line with a
// surface change of win.
func (r *Runner) UpdateDrawableForSurfaceChange(holder DrawableHolder, win *Window, change SurfaceChange) error {
	if holder == nil {
		return ErrNilHolder
	}
	if change.Has(SurfaceDestroyed) {
		return r.DestroyDrawable(holder)
	}
	if !holder.HasDrawable() {
		if err := holder.MakeDrawable(r, win); err != nil {
			return fmt.Errorf("rendertask: make drawable: %w", err)
		}
	}
	if change.Has(SurfaceReset) {
		Logger().Debug("drawable reset", "label", r.opts.label)
		r.resetDrawable.Store(true)
	}
	return nil
}

// DestroyDrawable waits for all queued tasks, which may still present to the
// drawable, and then destroys it.
func (r *Runner) DestroyDrawable(holder DrawableHolder) error {
	if holder == nil {
		return ErrNilHolder
	}
	if err := r.AwaitPending(); err != nil {
		return err
	}
	if holder.HasDrawable() {
		holder.DestroyDrawable(r)
	}
	return nil
}
