package fakegpu

import (
	"sync"

	"github.com/gogpu/rendertask"
)

// Drawable is a fixed-size drawable.
type Drawable struct {
	W, H int
}

func (d *Drawable) Size() (int, int) { return d.W, d.H }

// Holder is a DrawableHolder that counts creations and destructions.
type Holder struct {
	// MakeErr is returned by MakeDrawable when set.
	MakeErr error

	mu        sync.Mutex
	drawable  *Drawable
	made      int
	destroyed int
}

func (h *Holder) HasDrawable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.drawable != nil
}

func (h *Holder) Drawable() rendertask.Drawable {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.drawable == nil {
		return nil
	}
	return h.drawable
}

func (h *Holder) MakeDrawable(r *rendertask.Runner, win *rendertask.Window) error {
	if h.MakeErr != nil {
		return h.MakeErr
	}
	w, ht := 0, 0
	if win != nil {
		w, ht = win.Size()
	}
	h.mu.Lock()
	h.drawable = &Drawable{W: w, H: ht}
	h.made++
	h.mu.Unlock()
	return nil
}

func (h *Holder) DestroyDrawable(r *rendertask.Runner) {
	h.mu.Lock()
	h.drawable = nil
	h.destroyed++
	h.mu.Unlock()
}

// Made returns how many drawables were created.
func (h *Holder) Made() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.made
}

// Destroyed returns how many drawables were destroyed.
func (h *Holder) Destroyed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}
