package frametimer

import (
	"context"
	"testing"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"
)

type chanScreen struct {
	frames chan time.Duration
}

func (s *chanScreen) IsPosted() bool { return true }

func (s *chanScreen) FrameUpdate(ts time.Duration) { s.frames <- ts }

func waitFrame(t *testing.T, frames <-chan time.Duration) time.Duration {
	t.Helper()
	select {
	case ts := <-frames:
		return ts
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
		return 0
	}
}

func TestSimulatedSource(t *testing.T) {
	const period = 5 * time.Millisecond
	src := NewSimulatedSource(period)
	scr := &chanScreen{frames: make(chan time.Duration, 4)}
	tm := New(src, NewScreenRef(scr))
	defer tm.Close()

	var prev time.Duration
	for i := 0; i < 3; i++ {
		if err := tm.ScheduleNext(); err != nil {
			t.Fatal(err)
		}
		ts := waitFrame(t, scr.frames)
		if ts%period != 0 {
			t.Errorf("timestamp %v not on a %v boundary", ts, period)
		}
		if ts <= prev {
			t.Errorf("timestamp %v not after %v", ts, prev)
		}
		prev = ts
	}
}

func TestSimulatedSourceCancel(t *testing.T) {
	src := NewSimulatedSource(time.Millisecond)
	scr := &chanScreen{frames: make(chan time.Duration, 4)}
	tm := New(src, NewScreenRef(scr))
	defer tm.Close()

	_ = tm.ScheduleNext()
	tm.Cancel()
	deadline := time.Now().Add(2 * time.Second)
	for tm.State() != StateIdle {
		if time.Now().After(deadline) {
			t.Fatal("cancelled request never arrived")
		}
		time.Sleep(time.Millisecond)
	}
	select {
	case ts := <-scr.frames:
		t.Fatalf("cancelled vblank delivered at %v", ts)
	default:
	}
}

func TestSimulatedSourceOnLoop(t *testing.T) {
	loop, err := eventloop.New()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), time.Second)
		defer scancel()
		_ = loop.Shutdown(sctx)
	}()

	src := NewSimulatedSource(2*time.Millisecond, WithLoop(loop))
	scr := &chanScreen{frames: make(chan time.Duration, 1)}
	tm := New(src, NewScreenRef(scr))
	defer tm.Close()

	if err := tm.ScheduleNext(); err != nil {
		t.Fatal(err)
	}
	waitFrame(t, scr.frames)
}

func TestSimulatedSourceClosed(t *testing.T) {
	src := NewSimulatedSource(0)
	if src.period != DefaultPeriod {
		t.Errorf("period = %v, want %v", src.period, DefaultPeriod)
	}
	_ = src.Close()
	tm := New(src, nil)
	if !tm.Inert() {
		t.Error("timer on a closed source is not inert")
	}
}

func TestDRMSourceWithoutLoop(t *testing.T) {
	src := NewDRMSource(WithDevicePath("/nonexistent/card0"))
	if src.Path() != "/nonexistent/card0" {
		t.Errorf("Path() = %q", src.Path())
	}
	tm := New(src, nil)
	if !tm.Inert() {
		t.Error("timer on a drm source without loop is not inert")
	}
}

func TestDRMSourceMissingDevice(t *testing.T) {
	loop, err := eventloop.New()
	if err != nil {
		t.Fatal(err)
	}
	defer loop.Close()

	src := NewDRMSource(WithLoop(loop), WithDevicePath(t.TempDir()+"/card9"))
	tm := New(src, nil)
	if !tm.Inert() {
		t.Error("timer on a missing device is not inert")
	}
}

func TestDRMSourceEnvPath(t *testing.T) {
	t.Setenv("KMSDEVICE", "/dev/dri/card7")
	if got := NewDRMSource().Path(); got != "/dev/dri/card7" {
		t.Errorf("Path() = %q, want /dev/dri/card7", got)
	}
}
