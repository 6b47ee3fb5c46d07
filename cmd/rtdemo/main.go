// Command rtdemo drives a render task runner from a vblank frame timer.
//
// Each vblank schedules one frame: the timer delivers the vblank timestamp,
// the frame is queued on the runner, and the next vblank is requested.
//
// Usage:
//
//	rtdemo -frames 300 -mode present
//	rtdemo -drm -v            # pace from /dev/dri/card0 (or $KMSDEVICE)
//	rtdemo -backend null      # headless, no GPU
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gogpu/gpucontext"
	eventloop "github.com/joeycumines/go-eventloop"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/rendertask"
	"github.com/gogpu/rendertask/backend"
	_ "github.com/gogpu/rendertask/backend/hal"
	_ "github.com/gogpu/rendertask/backend/null"
	"github.com/gogpu/rendertask/frametimer"

	_ "github.com/gogpu/wgpu/hal/noop"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

type config struct {
	backend string
	frames  int
	mode    rendertask.DrawAsyncMode
	drm     bool
	period  time.Duration
	width   int
	height  int
}

func main() {
	var (
		backendName = flag.String("backend", "", "backend name; empty picks the best available")
		frames      = flag.Int("frames", 120, "frames to draw before exiting")
		mode        = flag.String("mode", "present", "draw mode: none, present or full")
		useDRM      = flag.Bool("drm", false, "pace frames from DRM vblank events")
		period      = flag.Duration("period", frametimer.DefaultPeriod, "simulated vblank period")
		width       = flag.Int("width", 800, "window width")
		height      = flag.Int("height", 600, "window height")
		verbose     = flag.Bool("v", false, "debug logging")
		list        = flag.Bool("list", false, "list backends and exit")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	rendertask.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *list {
		for _, name := range backend.List() {
			fmt.Println(name)
		}
		return
	}

	m, err := parseMode(*mode)
	if err != nil {
		log.Fatalf("rtdemo: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config{
		backend: *backendName,
		frames:  *frames,
		mode:    m,
		drm:     *useDRM,
		period:  *period,
		width:   *width,
		height:  *height,
	}
	if err := run(ctx, cfg); err != nil {
		log.Fatalf("rtdemo: %v", err)
	}
}

func parseMode(s string) (rendertask.DrawAsyncMode, error) {
	switch s {
	case "none":
		return rendertask.DrawAsyncNone, nil
	case "present":
		return rendertask.DrawAsyncPresent, nil
	case "full":
		return rendertask.DrawAsyncFull, nil
	default:
		return 0, fmt.Errorf("unknown draw mode %q", s)
	}
}

func openDevice(name string) (rendertask.Device, error) {
	if name != "" {
		return backend.Open(name)
	}
	dev, picked, err := backend.OpenBest()
	if err != nil {
		return nil, err
	}
	rendertask.Logger().Info("backend selected", "backend", picked)
	return dev, nil
}

func run(ctx context.Context, cfg config) error {
	dev, err := openDevice(cfg.backend)
	if err != nil {
		return err
	}
	if c, ok := dev.(interface{ Close() }); ok {
		defer c.Close()
	}

	r, err := rendertask.NewRunner(dev, rendertask.WithLabel("rtdemo"))
	if err != nil {
		return err
	}
	defer r.Close()

	loop, err := eventloop.New()
	if err != nil {
		return fmt.Errorf("event loop: %w", err)
	}
	defer loop.Close()

	scr := newScreen()
	ref := frametimer.NewScreenRef(scr)
	defer ref.Release()
	tm := newTimer(cfg, loop, ref)
	defer tm.Close()

	win := rendertask.NewWindow(gpucontext.NullWindowProvider{W: cfg.width, H: cfg.height, SF: 1}, true)
	holder := &surfaceHolder{}
	defer func() { _ = r.DestroyDrawable(holder) }()

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error {
		if err := loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("event loop: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer stopLoop()
		return produce(gctx, cfg, r, tm, scr, holder, win)
	})
	return g.Wait()
}

func newTimer(cfg config, loop *eventloop.Loop, ref *frametimer.ScreenRef) *frametimer.Timer {
	if cfg.drm {
		tm := frametimer.New(frametimer.NewDRMSource(frametimer.WithLoop(loop)), ref, frametimer.WithLabel("drm"))
		if !tm.Inert() {
			return tm
		}
		rendertask.Logger().Warn("drm vblank unavailable, using simulated vblank")
	}
	src := frametimer.NewSimulatedSource(cfg.period, frametimer.WithLoop(loop))
	return frametimer.New(src, ref, frametimer.WithLabel("simulated"))
}

// produce draws one frame per vblank until cfg.frames frames were queued.
func produce(ctx context.Context, cfg config, r *rendertask.Runner, tm *frametimer.Timer,
	scr *screen, holder *surfaceHolder, win *rendertask.Window) error {
	var first time.Duration
	for i := 0; i < cfg.frames; i++ {
		if err := tm.ScheduleNext(); err != nil {
			return err
		}
		var ts time.Duration
		select {
		case ts = <-scr.frames:
		case <-ctx.Done():
			return nil
		}
		if i == 0 {
			first = ts
		}

		params := rendertask.WindowDrawParams{WasResized: i == 0, NeedsSync: i == 0}
		err := r.Draw(holder, win, params, rendertask.DrawParams{AsyncMode: cfg.mode}, frame(cfg, holder, win, i))
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		rendertask.Logger().Debug("frame queued", "frame", i, "vblank", ts)
	}
	if err := r.AwaitPending(); err != nil {
		return err
	}

	f, err := r.AddFence()
	if err != nil {
		return err
	}
	if err := r.ClientWait(&f, 0, time.Second); err != nil {
		return fmt.Errorf("final fence: %w", err)
	}
	rendertask.Logger().Info("done", "frames", tm.Frames(), "elapsed", tm.LastTimestamp()-first)
	return nil
}

func frame(cfg config, holder *surfaceHolder, win *rendertask.Window, i int) func(rendertask.DrawContext) {
	return func(dc rendertask.DrawContext) {
		vp := rendertask.Viewport{Width: cfg.width, Height: cfg.height}
		cmds, err := dc.MakeCommands(holder, win, vp, rendertask.IdentityMat4())
		if err != nil {
			rendertask.Logger().Error("make commands", "frame", i, "err", err)
			return
		}
		cmds.SetClearColor(pulse(i))
		cmds.Clear()
		if err := cmds.Present(); err != nil {
			rendertask.Logger().Error("present", "frame", i, "err", err)
		}
	}
}
