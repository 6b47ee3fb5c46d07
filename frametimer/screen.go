package frametimer

import (
	"sync/atomic"
	"time"
)

// Screen consumes vblank timestamps to produce frames.
type Screen interface {
	// IsPosted reports whether the screen is visible and wants frames.
	IsPosted() bool

	// FrameUpdate is called with the timestamp of the vblank that was
	// requested, in microsecond resolution.
	FrameUpdate(ts time.Duration)
}

// ScreenRef is a back-reference from a Timer to the Screen it drives. The
// screen's owner calls Release when the screen goes away; deliveries after
// that are dropped.
type ScreenRef struct {
	p atomic.Pointer[screenBox]
}

type screenBox struct{ s Screen }

// NewScreenRef returns a reference to s.
func NewScreenRef(s Screen) *ScreenRef {
	r := &ScreenRef{}
	if s != nil {
		r.p.Store(&screenBox{s: s})
	}
	return r
}

// Get returns the screen if it has not been released.
func (r *ScreenRef) Get() (Screen, bool) {
	if r == nil {
		return nil, false
	}
	b := r.p.Load()
	if b == nil {
		return nil, false
	}
	return b.s, true
}

// Set replaces the referenced screen.
func (r *ScreenRef) Set(s Screen) {
	if s == nil {
		r.p.Store(nil)
		return
	}
	r.p.Store(&screenBox{s: s})
}

// Release drops the reference.
func (r *ScreenRef) Release() { r.p.Store(nil) }
