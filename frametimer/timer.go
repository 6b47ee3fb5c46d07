// Package frametimer paces frame production with vertical blank events.
//
// A Timer keeps a single outstanding vblank request. ScheduleNext arms the
// hardware wait unless one is already armed; the source delivers one
// timestamp per arm, which the Timer forwards to the registered Screen.
// Cancel suppresses the next delivery without aborting the hardware wait.
//
// A Timer whose source fails its probe is inert: ScheduleNext returns
// ErrInert without touching the source and no frame is ever delivered.
package frametimer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/rendertask"
)

var (
	// ErrInert is returned by ScheduleNext on a timer whose source could not
	// be probed.
	ErrInert = errors.New("frametimer: timer is inert")

	// ErrSourceClosed is returned after Close.
	ErrSourceClosed = errors.New("frametimer: source closed")
)

// VBlankSource is a platform vertical blank event source.
type VBlankSource interface {
	// Bind sets the functions the source calls exactly once per armed
	// request: deliver with the vblank timestamp, or drop when the event
	// could not be received. It is called by New before Probe.
	Bind(deliver func(ts time.Duration), drop func(err error))

	// Probe checks that the source can deliver vblank events, acquiring
	// whatever it needs to do so.
	Probe() error

	// Arm requests one vblank event. It must not deliver before returning.
	Arm() error

	// Close releases the source.
	Close() error
}

// State is the state of a Timer's vblank request.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateArmed:
		return "Armed"
	case StateCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Timer is a single-slot vblank request.
//
// ScheduleNext and Cancel may be called from any goroutine. Screen.FrameUpdate
// runs on the goroutine the source delivers on, without the timer's lock
// held, so it may call ScheduleNext.
type Timer struct {
	src    VBlankSource
	screen *ScreenRef
	label  string

	mu        sync.Mutex
	inert     bool
	closed    bool
	armed     bool
	cancelled bool
	last      time.Duration
	frames    uint64
}

// New binds src to a new Timer and probes it. If the probe fails the timer is
// inert; the error is logged, not returned.
func New(src VBlankSource, screen *ScreenRef, opts ...Option) *Timer {
	o := options{label: "frametimer"}
	for _, opt := range opts {
		opt(&o)
	}
	t := &Timer{src: src, screen: screen, label: o.label}
	if src == nil {
		t.inert = true
		rendertask.Logger().Error("no vblank source, timer inert", "label", t.label)
		return t
	}
	src.Bind(t.deliver, t.drop)
	if err := src.Probe(); err != nil {
		t.inert = true
		rendertask.Logger().Error("vblank probe failed, timer inert", "label", t.label, "err", err)
		return t
	}
	rendertask.Logger().Info("vblank source ready", "label", t.label)
	return t
}

// Inert reports whether the timer can never deliver.
func (t *Timer) Inert() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inert
}

// ScheduleNext requests a frame at the next vblank. It clears a pending
// Cancel, so a cancel followed by ScheduleNext before delivery lets the
// armed request fire. While a request is armed it does nothing else.
//
// If arming fails the request is dropped and the error returned; the next
// call tries again.
func (t *Timer) ScheduleNext() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inert {
		return ErrInert
	}
	if t.closed {
		return ErrSourceClosed
	}
	t.cancelled = false
	if t.armed {
		return nil
	}
	if err := t.src.Arm(); err != nil {
		rendertask.Logger().Error("arm vblank", "label", t.label, "err", err)
		return fmt.Errorf("frametimer: arm: %w", err)
	}
	t.armed = true
	return nil
}

// Cancel suppresses the delivery of the armed request. It is a no-op when
// nothing is armed.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		t.cancelled = true
	}
}

// State returns the request state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.armed && t.cancelled:
		return StateCancelled
	case t.armed:
		return StateArmed
	default:
		return StateIdle
	}
}

// LastTimestamp returns the timestamp of the last forwarded vblank.
func (t *Timer) LastTimestamp() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Frames returns how many vblanks were forwarded to the screen.
func (t *Timer) Frames() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

// Close closes the source. Later ScheduleNext calls fail with
// ErrSourceClosed.
func (t *Timer) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.armed = false
	t.cancelled = false
	inert := t.inert
	t.mu.Unlock()
	if inert || t.src == nil {
		return nil
	}
	return t.src.Close()
}

// drop is bound to the source. The request is lost; the next ScheduleNext
// arms again.
func (t *Timer) drop(err error) {
	t.mu.Lock()
	t.armed = false
	t.cancelled = false
	t.mu.Unlock()
	rendertask.Logger().Error("vblank event lost", "label", t.label, "err", err)
}

// deliver is bound to the source.
func (t *Timer) deliver(ts time.Duration) {
	t.mu.Lock()
	t.armed = false
	if t.cancelled {
		t.cancelled = false
		t.mu.Unlock()
		rendertask.Logger().Debug("vblank suppressed", "label", t.label, "ts", ts)
		return
	}
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	s, ok := t.screen.Get()
	if !ok || !s.IsPosted() {
		return
	}
	t.mu.Lock()
	t.last = ts
	t.frames++
	t.mu.Unlock()
	s.FrameUpdate(ts)
}
