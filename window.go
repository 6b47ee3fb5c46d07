package rendertask

import (
	"sync"

	"github.com/gogpu/gpucontext"
)

// Orientation is the display orientation of a window.
type Orientation int

const (
	OrientationUnknown Orientation = iota
	OrientationPortrait
	OrientationLandscape
	OrientationPortraitFlipped
	OrientationLandscapeFlipped
)

func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "Portrait"
	case OrientationLandscape:
		return "Landscape"
	case OrientationPortraitFlipped:
		return "PortraitFlipped"
	case OrientationLandscapeFlipped:
		return "LandscapeFlipped"
	default:
		return "Unknown"
	}
}

// Window is a platform window the runner draws into. The embedded
// WindowProvider supplies the size, scale and redraw requests.
//
// Orientation handlers are registered per window, so several windows and
// runners never share handler state.
type Window struct {
	gpucontext.WindowProvider

	main bool

	mu          sync.Mutex
	orientation Orientation
	handler     func(Orientation)
}

// NewWindow wraps p. A main window gets an orientation handler registered on
// resize.
func NewWindow(p gpucontext.WindowProvider, main bool) *Window {
	if p == nil {
		p = gpucontext.NullWindowProvider{}
	}
	return &Window{WindowProvider: p, main: main}
}

// IsMain reports whether w is the application's main window.
func (w *Window) IsMain() bool { return w.main }

// Orientation returns the last orientation dispatched to w.
func (w *Window) Orientation() Orientation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.orientation
}

// SetOrientationHandler replaces the orientation handler of w. A nil handler
// removes it.
func (w *Window) SetOrientationHandler(h func(Orientation)) {
	w.mu.Lock()
	w.handler = h
	w.mu.Unlock()
}

// HasOrientationHandler reports whether a handler is registered.
func (w *Window) HasOrientationHandler() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handler != nil
}

// DispatchOrientationChange records o and calls the registered handler, if
// any. Platform code calls it when the display rotates.
func (w *Window) DispatchOrientationChange(o Orientation) {
	w.mu.Lock()
	w.orientation = o
	h := w.handler
	w.mu.Unlock()
	if h != nil {
		h(o)
	}
}

// registerOrientationHandler installs the handler the runner uses for main
// windows: record the orientation and ask for a redraw.
func (w *Window) registerOrientationHandler() {
	w.SetOrientationHandler(func(o Orientation) {
		Logger().Debug("orientation changed", "orientation", o)
		w.RequestRedraw()
	})
}
