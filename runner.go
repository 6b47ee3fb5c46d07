package rendertask

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rendertask/internal/gid"
	"github.com/gogpu/rendertask/internal/queue"
)

// Task is a unit of work executed on the runner goroutine with the device
// current.
type Task func(ctx TaskContext)

// TaskContext is passed to every task.
type TaskContext struct {
	r   *Runner
	sem *semaphore
}

// Runner returns the runner executing the task.
func (c TaskContext) Runner() *Runner { return c.r }

// Device returns the runner's device. It is current for the task's duration.
func (c TaskContext) Device() Device { return c.r.dev }

// NotifySemaphore releases the goroutine blocked in RunSync before the task
// returns. Anything the task does afterwards is no longer covered by the
// RunSync guarantee. It is a no-op for tasks submitted with Run.
func (c TaskContext) NotifySemaphore() { c.sem.notify() }

// semaphore is the completion channel of one synchronous submission. It is
// signalled exactly once.
type semaphore struct {
	ch       chan struct{}
	once     sync.Once
	notified atomic.Bool
}

func newSemaphore() *semaphore {
	return &semaphore{ch: make(chan struct{})}
}

func (s *semaphore) notify() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.notified.Store(true)
		close(s.ch)
	})
}

func (s *semaphore) wait() { <-s.ch }

// taskItem is one queue entry.
type taskItem struct {
	fn       Task
	sem      *semaphore
	err      *error
	shutdown bool
}

// Runner owns a graphics context and executes submitted tasks on a single
// goroutine locked to one OS thread, in submission order.
//
// Tasks from all producers share one FIFO queue, so the queue lock defines a
// global order: tasks run in the order their submissions acquired the lock.
//
// Thread safety: Runner's methods are safe for concurrent use. State used by
// Commands (stream buffers, vertex array, framebuffers, the initial-state
// flag) belongs to the runner goroutine and is only touched from tasks.
type Runner struct {
	dev   Device
	opts  options
	queue *queue.Queue[taskItem]

	// caps is written once on the runner goroutine before NewRunner returns.
	caps Capabilities

	gid  atomic.Uint64
	done chan struct{}

	// resetDrawable is set by UpdateDrawableForSurfaceChange and consumed by
	// the next MakeCommands.
	resetDrawable atomic.Bool

	// Owned by the runner goroutine.
	buffers         bufferStrategy
	arrays          arrayStrategy
	defaultFB       FramebufferHandle
	defaultFBReady  bool
	fbo             FramebufferHandle
	initialStateSet bool
}

// NewRunner starts a runner goroutine for dev and makes dev current on it.
// It returns once the context is current, or with the MakeCurrent error.
func NewRunner(dev Device, opts ...Option) (*Runner, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	r := &Runner{
		dev:   dev,
		opts:  o,
		queue: queue.New[taskItem](),
		done:  make(chan struct{}),
	}

	// The context must be made current on the runner's own OS thread, so
	// the result comes back through a channel.
	initErr := make(chan error)
	go r.loop(initErr)
	if err := <-initErr; err != nil {
		return nil, fmt.Errorf("rendertask: %s: make context current: %w", o.label, err)
	}
	Logger().Info("runner started", "label", o.label, "caps", fmt.Sprintf("%+v", r.caps))
	return r, nil
}

func (r *Runner) loop(initErr chan<- error) {
	defer close(r.done)
	runtime.LockOSThread()
	// Don't UnlockOSThread: the thread had a context bound to it and must not
	// be handed back to the Go scheduler.

	r.gid.Store(gid.Current())
	if err := r.dev.MakeCurrent(); err != nil {
		_ = r.queue.PushLast(taskItem{shutdown: true})
		initErr <- err
		return
	}
	r.caps = r.dev.Capabilities()
	r.buffers, r.arrays = selectStrategies(r.caps, r.opts.streamBufferCount)
	initErr <- nil

	for {
		it, ok := r.queue.Pop()
		if !ok || it.shutdown {
			break
		}
		r.execute(it)
	}

	r.releaseResources()
	if err := r.dev.ReleaseCurrent(); err != nil {
		Logger().Warn("release context", "label", r.opts.label, "err", err)
	}
	Logger().Info("runner stopped", "label", r.opts.label)
}

// execute runs one task and signals its semaphore, if any, exactly once.
func (r *Runner) execute(it taskItem) {
	defer it.sem.notify()
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		if pe, ok := v.(*PreconditionError); ok {
			panic(pe)
		}
		err := fmt.Errorf("%w: %v", ErrTaskPanicked, v)
		Logger().Error("task panicked", "label", r.opts.label, "panic", v)
		// Once the submitter has been released it may no longer read err.
		if it.err != nil && !it.sem.notified.Load() {
			*it.err = err
		}
	}()
	it.fn(TaskContext{r: r, sem: it.sem})
}

// releaseResources deletes the context-owned objects on shutdown.
func (r *Runner) releaseResources() {
	r.buffers.release(r.dev)
	r.arrays.release(r.dev)
	if r.fbo != 0 {
		r.dev.DeleteFramebuffer(r.fbo)
		r.fbo = 0
	}
	if r.defaultFB != 0 {
		r.dev.DeleteFramebuffer(r.defaultFB)
		r.defaultFB = 0
	}
	r.defaultFBReady = false
	r.initialStateSet = false
}

// Label returns the runner's label.
func (r *Runner) Label() string { return r.opts.label }

// Device returns the device the runner owns.
func (r *Runner) Device() Device { return r.dev }

// Capabilities returns the capabilities probed at startup.
func (r *Runner) Capabilities() Capabilities { return r.caps }

// IsRunnerThread reports whether the caller is the runner goroutine.
func (r *Runner) IsRunnerThread() bool {
	id := r.gid.Load()
	return id != 0 && id == gid.Current()
}

// Closed reports whether the runner stopped accepting tasks.
func (r *Runner) Closed() bool { return r.queue.Closed() }

// Run queues task and returns immediately.
func (r *Runner) Run(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if err := r.queue.Push(taskItem{fn: task}); err != nil {
		return ErrRunnerClosed
	}
	return nil
}

// RunSync queues task and blocks until it has finished executing, or until
// it calls TaskContext.NotifySemaphore. Anything the task itself submitted
// with RunSync has completed too.
//
// Calling RunSync from the runner goroutine would deadlock and is a fatal
// precondition violation.
func (r *Runner) RunSync(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if r.IsRunnerThread() {
		fatalf("RunSync", "called from the runner goroutine of %q", r.opts.label)
	}
	var taskErr error
	sem := newSemaphore()
	if err := r.queue.Push(taskItem{fn: task, sem: sem, err: &taskErr}); err != nil {
		return ErrRunnerClosed
	}
	sem.wait()
	return taskErr
}

// AwaitPending blocks until every task queued before the call has executed.
// It returns nil once the runner is closed: nothing can be pending then.
func (r *Runner) AwaitPending() error {
	if r == nil {
		return nil
	}
	err := r.RunSync(func(TaskContext) {})
	if errors.Is(err, ErrRunnerClosed) {
		return nil
	}
	return err
}

// Flush asynchronously submits buffered commands to the GPU.
func (r *Runner) Flush() error {
	return r.Run(func(ctx TaskContext) {
		if err := ctx.Device().Flush(); err != nil {
			Logger().Error("flush", "label", r.opts.label, "err", err)
		}
	})
}

// ReleaseShaderCompiler asynchronously hints that shader compilation is over.
// It does nothing on devices without the capability.
func (r *Runner) ReleaseShaderCompiler() error {
	if !r.caps.ShaderCompilerRelease {
		return nil
	}
	return r.Run(func(ctx TaskContext) {
		ctx.Device().ReleaseShaderCompiler()
	})
}

// Close queues the shutdown task and waits for the runner goroutine to
// release its resources and the context. Tasks queued before Close still run.
// Close is safe to call multiple times.
func (r *Runner) Close() error {
	if r.IsRunnerThread() {
		fatalf("Close", "called from the runner goroutine of %q", r.opts.label)
	}
	_ = r.queue.PushLast(taskItem{shutdown: true})
	<-r.done
	return nil
}

// verifyRunnerThread panics unless called on the runner goroutine, where the
// context is current.
func (r *Runner) verifyRunnerThread(op string) {
	if !r.IsRunnerThread() {
		fatalf(op, "context of %q is not current on the calling goroutine", r.opts.label)
	}
}
