package frametimer

import (
	"errors"
	"sync"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"

	"github.com/gogpu/rendertask/internal/drm"
)

var errNoLoop = errors.New("frametimer: drm source needs an event loop")

// DRMSource delivers vblank events from a Linux DRM device. The device file
// descriptor is watched by an event loop; events are delivered on the loop
// goroutine.
//
// On other platforms Probe fails and the Timer using it is inert.
type DRMSource struct {
	path string
	loop *eventloop.Loop

	mu      sync.Mutex
	deliver func(time.Duration)
	drop    func(error)
	fd      int
	opened  bool
	arms    uint64
}

// NewDRMSource returns a source for the device at $KMSDEVICE, or
// /dev/dri/card0, unless WithDevicePath is given. WithLoop is required.
func NewDRMSource(opts ...SourceOption) *DRMSource {
	var o sourceOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.devicePath == "" {
		o.devicePath = drm.DevicePath()
	}
	return &DRMSource{path: o.devicePath, loop: o.loop, fd: -1}
}

// Path returns the device path.
func (s *DRMSource) Path() string { return s.path }

func (s *DRMSource) Bind(deliver func(time.Duration), drop func(error)) {
	s.mu.Lock()
	s.deliver, s.drop = deliver, drop
	s.mu.Unlock()
}

// dispatch forwards decoded events. Only vblank events are decoded, and each
// corresponds to one Arm.
func (s *DRMSource) dispatch(events []drm.VBlankEvent) {
	s.mu.Lock()
	deliver := s.deliver
	s.mu.Unlock()
	for _, e := range events {
		deliver(e.Timestamp())
	}
}

func (s *DRMSource) fail(err error) {
	s.mu.Lock()
	drop := s.drop
	s.mu.Unlock()
	if drop != nil {
		drop(err)
	}
}
