package frametimer

import (
	"errors"
	"sync"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"

	"github.com/gogpu/rendertask"
)

// DefaultPeriod is a 60 Hz refresh interval.
const DefaultPeriod = time.Second / 60

// SimulatedSource produces vblanks from a fixed refresh period, for
// headless operation and tests. Each Arm delivers one timestamp at the next
// period boundary, on the source's timer goroutine or, with WithLoop, on the
// event loop.
type SimulatedSource struct {
	period time.Duration
	loop   *eventloop.Loop

	mu      sync.Mutex
	deliver func(time.Duration)
	start   time.Time
	pending *time.Timer
	closed  bool
}

// NewSimulatedSource returns a source with the given refresh period. A
// non-positive period means DefaultPeriod.
func NewSimulatedSource(period time.Duration, opts ...SourceOption) *SimulatedSource {
	var o sourceOptions
	for _, opt := range opts {
		opt(&o)
	}
	if period <= 0 {
		period = DefaultPeriod
	}
	return &SimulatedSource{period: period, loop: o.loop}
}

func (s *SimulatedSource) Bind(deliver func(time.Duration), _ func(error)) {
	s.mu.Lock()
	s.deliver = deliver
	s.mu.Unlock()
}

func (s *SimulatedSource) Probe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}
	if s.deliver == nil {
		return errors.New("frametimer: source not bound")
	}
	s.start = time.Now()
	return nil
}

func (s *SimulatedSource) Arm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}
	elapsed := time.Since(s.start)
	next := (elapsed/s.period + 1) * s.period
	s.pending = time.AfterFunc(next-elapsed, func() { s.fire(next) })
	return nil
}

func (s *SimulatedSource) fire(ts time.Duration) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	deliver, loop := s.deliver, s.loop
	s.pending = nil
	s.mu.Unlock()

	ts = ts.Truncate(time.Microsecond)
	if loop == nil {
		deliver(ts)
		return
	}
	if err := loop.Submit(func() { deliver(ts) }); err != nil {
		rendertask.Logger().Warn("event loop rejected vblank, delivering directly", "err", err)
		deliver(ts)
	}
}

func (s *SimulatedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	return nil
}
