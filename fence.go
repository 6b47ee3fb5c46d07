package rendertask

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// FenceState is the lifecycle state of a Fence.
type FenceState int32

const (
	// FenceUnset means no fence was created, either because the device has no
	// sync fences or because the Fence is the zero value.
	FenceUnset FenceState = iota
	// FencePending means the fence was inserted and not yet observed.
	FencePending
	// FenceSatisfied means a wait observed the fence signalled.
	FenceSatisfied
	// FenceDeleted means the backend handle was released.
	FenceDeleted
)

func (s FenceState) String() string {
	switch s {
	case FenceUnset:
		return "Unset"
	case FencePending:
		return "Pending"
	case FenceSatisfied:
		return "Satisfied"
	case FenceDeleted:
		return "Deleted"
	default:
		return fmt.Sprintf("FenceState(%d)", int32(s))
	}
}

// fenceState is shared by all copies of a Fence so that the handle is
// consumed exactly once.
type fenceState struct {
	handle  FenceHandle
	dev     Device
	claimed atomic.Bool
	state   atomic.Int32
}

// Fence marks a point in the GPU command stream. The zero value is an unset
// fence: waiting on it succeeds immediately.
//
// A pending Fence must be consumed exactly once, by ClientWait, ServerWait or
// DeleteFence. Those take a *Fence and clear it, so the holder cannot reuse
// the handle. Consuming a copy of an already consumed Fence is detected.
type Fence struct {
	st *fenceState
}

// IsSet reports whether f refers to a created fence, deleted or not.
func (f Fence) IsSet() bool { return f.st != nil }

// State returns the lifecycle state of f.
func (f Fence) State() FenceState {
	if f.st == nil {
		return FenceUnset
	}
	return FenceState(f.st.state.Load())
}

// Handle returns the backend handle, or zero for an unset fence.
func (f Fence) Handle() FenceHandle {
	if f.st == nil {
		return 0
	}
	return f.st.handle
}

// take clears the holder and claims the handle. It returns nil for an unset
// fence and for a fence that was already consumed.
func (r *Runner) take(op string, f *Fence) *fenceState {
	if f == nil || f.st == nil {
		return nil
	}
	st := f.st
	*f = Fence{}
	if !st.claimed.CompareAndSwap(false, true) {
		if r.opts.debugChecks {
			fatalf(op, "fence %d used after delete", st.handle)
		}
		Logger().Warn("fence used after delete", "op", op, "fence", st.handle)
		return nil
	}
	return st
}

func (st *fenceState) wait(flags WaitFlags, timeout time.Duration) error {
	ok, err := st.dev.ClientWaitFence(st.handle, flags, timeout)
	if err != nil {
		return fmt.Errorf("rendertask: wait fence %d: %w", st.handle, err)
	}
	if !ok {
		return ErrFenceTimeout
	}
	st.state.Store(int32(FenceSatisfied))
	return nil
}

func (st *fenceState) delete() {
	st.dev.DeleteFence(st.handle)
	st.state.Store(int32(FenceDeleted))
}

// AddFence inserts a fence after all commands queued so far. On devices
// without sync fences it returns an unset Fence and a nil error.
func (r *Runner) AddFence() (Fence, error) {
	if !r.caps.SyncFences {
		Logger().Debug("sync fences unsupported, fence left unset", "label", r.opts.label)
		return Fence{}, nil
	}
	if r.IsRunnerThread() {
		return r.createFence(r.dev)
	}
	var (
		f    Fence
		ferr error
	)
	if err := r.RunSync(func(ctx TaskContext) {
		f, ferr = r.createFence(ctx.Device())
	}); err != nil {
		return Fence{}, err
	}
	return f, ferr
}

func (r *Runner) createFence(dev Device) (Fence, error) {
	h, err := dev.CreateFence()
	if err != nil {
		return Fence{}, fmt.Errorf("rendertask: create fence: %w", err)
	}
	st := &fenceState{handle: h, dev: dev}
	st.state.Store(int32(FencePending))
	return Fence{st: st}, nil
}

// ClientWait blocks until the fence is signalled or timeout expires, then
// deletes it. A negative timeout waits forever. An unset fence returns nil
// immediately. On expiry the error is ErrFenceTimeout and the fence is
// deleted all the same.
//
// Without flags, on devices reporting NoFlushCrossThreadWait, the wait
// happens on the calling goroutine. Otherwise it runs on the runner and the
// caller is released as soon as the wait returns; the delete follows on the
// runner. On a closed runner the fence is deleted without waiting and the
// error is ErrRunnerClosed.
func (r *Runner) ClientWait(f *Fence, flags WaitFlags, timeout time.Duration) error {
	st := r.take("ClientWait", f)
	if st == nil {
		return nil
	}
	if (r.caps.NoFlushCrossThreadWait && flags == 0) || r.IsRunnerThread() {
		err := st.wait(flags, timeout)
		st.delete()
		return err
	}
	var werr error
	err := r.RunSync(func(ctx TaskContext) {
		werr = st.wait(flags, timeout)
		ctx.NotifySemaphore()
		st.delete()
	})
	if errors.Is(err, ErrRunnerClosed) {
		st.delete()
	}
	if err != nil {
		return err
	}
	return werr
}

// ClientWaitReset waits on f like ClientWait and then inserts a new fence in
// its place. The new fence is returned even when the wait timed out.
func (r *Runner) ClientWaitReset(f *Fence, flags WaitFlags, timeout time.Duration) (Fence, error) {
	werr := r.ClientWait(f, flags, timeout)
	nf, err := r.AddFence()
	if err != nil {
		return Fence{}, err
	}
	return nf, werr
}

// ServerWait makes the GPU wait for the fence before executing commands
// queued afterwards, then deletes it. It does not block the caller.
func (r *Runner) ServerWait(f *Fence) error {
	st := r.take("ServerWait", f)
	if st == nil {
		return nil
	}
	err := r.Run(func(TaskContext) {
		if err := st.dev.ServerWaitFence(st.handle); err != nil {
			Logger().Error("server wait", "label", r.opts.label, "fence", st.handle, "err", err)
		}
		st.delete()
	})
	if err != nil {
		Logger().Warn("server wait dropped", "label", r.opts.label, "fence", st.handle, "err", err)
		st.delete()
	}
	return err
}

// DeleteFence releases the fence without waiting on it. A fence outliving its
// runner is deleted on the calling goroutine.
func (r *Runner) DeleteFence(f *Fence) error {
	st := r.take("DeleteFence", f)
	if st == nil {
		return nil
	}
	if r.caps.NoFlushCrossThreadWait || r.IsRunnerThread() {
		st.delete()
		return nil
	}
	err := r.Run(func(TaskContext) {
		st.delete()
	})
	if errors.Is(err, ErrRunnerClosed) {
		st.delete()
		return nil
	}
	return err
}
