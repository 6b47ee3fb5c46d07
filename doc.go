// Package rendertask runs GPU commands on a single goroutine that owns the
// graphics context.
//
// # Overview
//
// Graphics contexts are bound to one OS thread. rendertask starts a runner
// goroutine locked to its own OS thread, makes the device current there and
// executes tasks submitted from any goroutine in the order they were queued.
// Callers either submit and move on (Run) or block until their task has
// finished (RunSync, AwaitPending).
//
// GPU completion is observed with fences (AddFence, ClientWait, ServerWait,
// DeleteFence). Frames are produced with Draw, which hands a DrawContext to a
// task on the runner; the task builds Commands and presents.
//
// Frame pacing lives in the frametimer sub-package; devices live under
// backend/.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/rendertask"
//	    "github.com/gogpu/rendertask/backend"
//	    _ "github.com/gogpu/rendertask/backend/null"
//	)
//
//	dev, _, err := backend.OpenBest()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := rendertask.NewRunner(dev, rendertask.WithLabel("main"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	err = r.RunSync(func(ctx rendertask.TaskContext) {
//	    ctx.Device().Clear()
//	})
//
// # Ordering
//
// All producers share one FIFO queue. Tasks run in the order their
// submissions entered the queue, and each producer's tasks run in the order
// that producer submitted them.
//
// # Precondition violations
//
// Blocking on the runner from the runner goroutine, and issuing Commands off
// it, are programming errors. They are logged and raised with panic carrying
// a *PreconditionError.
//
// # Logging
//
// rendertask is silent by default. Use SetLogger to route its log records,
// including those of its sub-packages, to a slog.Logger.
package rendertask

// Version is the current version of the library.
const Version = "0.1.0"
