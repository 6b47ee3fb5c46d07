package rendertask

import (
	"errors"
	"fmt"
)

var (
	// ErrRunnerClosed is returned when work is submitted to a runner whose
	// shutdown task has already been queued.
	ErrRunnerClosed = errors.New("rendertask: runner closed")

	// ErrNilDevice is returned by NewRunner when no device is supplied.
	ErrNilDevice = errors.New("rendertask: nil device")

	// ErrNilTask is returned when a nil task or draw function is submitted.
	ErrNilTask = errors.New("rendertask: nil task")

	// ErrNilHolder is returned when a nil DrawableHolder is passed to Draw,
	// MakeCommands or the surface change calls.
	ErrNilHolder = errors.New("rendertask: nil drawable holder")

	// ErrTaskPanicked is wrapped by the error RunSync returns when the task
	// panicked on the runner goroutine. The runner keeps serving afterwards.
	ErrTaskPanicked = errors.New("rendertask: task panicked")

	// ErrFenceTimeout is returned by ClientWait when the timeout expired
	// before the fence was signalled. The fence is deleted regardless.
	ErrFenceTimeout = errors.New("rendertask: fence wait timed out")
)

// PreconditionError reports a programming error, such as a blocking
// submission from the runner goroutine or a context-mutating command issued
// off the runner goroutine. It is raised with panic and is not recovered by
// the runner.
type PreconditionError struct {
	Op  string
	Msg string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("rendertask: %s: precondition violated: %s", e.Op, e.Msg)
}

// fatalf logs and panics with a *PreconditionError.
func fatalf(op, format string, args ...any) {
	err := &PreconditionError{Op: op, Msg: fmt.Sprintf(format, args...)}
	Logger().Error("fatal precondition violation", "op", op, "err", err)
	panic(err)
}
