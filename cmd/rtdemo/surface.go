package main

import (
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendertask"
)

// screen hands vblank timestamps to the frame producer. A vblank that
// arrives while the previous one is still unread is dropped.
type screen struct {
	frames chan time.Duration
}

func newScreen() *screen {
	return &screen{frames: make(chan time.Duration, 1)}
}

func (s *screen) IsPosted() bool { return true }

func (s *screen) FrameUpdate(ts time.Duration) {
	select {
	case s.frames <- ts:
	default:
	}
}

type surface struct {
	w, h int
}

func (s *surface) Size() (int, int) { return s.w, s.h }

// surfaceHolder keeps a window-sized offscreen surface.
type surfaceHolder struct {
	mu      sync.Mutex
	surface *surface
}

func (h *surfaceHolder) HasDrawable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.surface != nil
}

func (h *surfaceHolder) Drawable() rendertask.Drawable {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.surface == nil {
		return nil
	}
	return h.surface
}

func (h *surfaceHolder) MakeDrawable(_ *rendertask.Runner, win *rendertask.Window) error {
	w, ht := win.Size()
	h.mu.Lock()
	h.surface = &surface{w: w, h: ht}
	h.mu.Unlock()
	rendertask.Logger().Debug("surface created", "width", w, "height", ht)
	return nil
}

func (h *surfaceHolder) DestroyDrawable(*rendertask.Runner) {
	h.mu.Lock()
	h.surface = nil
	h.mu.Unlock()
}

// pulse returns the clear color of frame i, cycling over two seconds at 60Hz.
func pulse(i int) gputypes.Color {
	t := 0.5 + 0.5*math.Sin(2*math.Pi*float64(i)/120)
	return gputypes.Color{R: 0.1, G: 0.2 + 0.6*t, B: 0.4, A: 1}
}
