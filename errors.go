package evio

import (
	"errors"
	"fmt"
)

var (
	ErrLoopClosed   = errors.New("evio: event loop closed")
	ErrLoopRunning  = errors.New("evio: event loop already running")
	ErrGroupClosed  = errors.New("evio: event loop group closed")
	ErrGroupRunning = errors.New("evio: event loop group already started")

	// ErrCancelled rejects work still outstanding when a loop shuts down,
	// and timers removed by DisarmTimer.
	ErrCancelled = errors.New("evio: cancelled")
	// ErrSuperseded rejects a pending timer replaced by a newer ArmTimer.
	ErrSuperseded = errors.New("evio: timer superseded")

	ErrInvalidNumLoops = errors.New("evio: number of loops must be positive")
	ErrNilHandler      = errors.New("evio: nil handler")
)

// PollRegistrationError reports a failed register, modify or remove.
type PollRegistrationError struct {
	Op  string
	Fd  int
	Err error
}

func (e *PollRegistrationError) Error() string {
	return fmt.Sprintf("evio: %s fd %d: %v", e.Op, e.Fd, e.Err)
}

func (e *PollRegistrationError) Unwrap() error { return e.Err }

type TimerError struct {
	Op  string
	Err error
}

func (e *TimerError) Error() string {
	return fmt.Sprintf("evio: timer %s: %v", e.Op, e.Err)
}

func (e *TimerError) Unwrap() error { return e.Err }

// PoolInitError reports why a group could not be built. Index is the loop
// that failed, or -1 when the options themselves are invalid.
type PoolInitError struct {
	Index int
	Err   error
}

func (e *PoolInitError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("evio: init group: %v", e.Err)
	}
	return fmt.Sprintf("evio: init loop %d: %v", e.Index, e.Err)
}

func (e *PoolInitError) Unwrap() error { return e.Err }
