package worker

import (
	"errors"
	"fmt"
)

// State of the worker loop
type State int32

const (
	StateIdle State = iota
	StateExecuting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

var (
	// ErrInterrupted is returned when the process was cancelled; the current task is not reported
	ErrInterrupted = errors.New("worker: interrupted")

	// ErrCoordinator is returned when a worker is created on rank 0
	ErrCoordinator = errors.New("worker: rank 0 is reserved for the coordinator")
)

// Abort is panicked by task code that wants to bring the whole process down.
// Unlike other panics it is not turned into a task failure.
type Abort struct {
	Reason string
}

func (a Abort) Error() string {
	return "worker: aborted: " + a.Reason
}
