// Package toolbox defines the small set of host-specific contracts of the
// actor core: a mutex family, a monotonic clock, a pull-based tick source,
// and a task executor. An ActorSystem takes a Clock and an Executor, and a
// scheduler.Scheduler takes a Clock and a TickSource. No constructor takes
// a mutex family: the actor and scheduler packages guard their state with
// sync.Mutex directly.
package toolbox

import (
	"errors"
	"time"
)

// ErrRejectedExecution indicates the executor's queue or worker pool was
// at capacity when Execute was called; the caller may retry with backoff.
var ErrRejectedExecution = errors.New("toolbox: execution rejected")

// ErrExecutorUnavailable indicates the executor has been shut down and
// will never run another task.
var ErrExecutorUnavailable = errors.New("toolbox: executor unavailable")

// MutexFamily constructs guards around a value. Implementations need not
// be generic at the Go type system level (Go lacks higher-kinded generic
// constructors); LockGuard below is the minimal shape of such a guard.
type MutexFamily interface {
	// NewMutex returns a LockGuard wrapping no value of its own; callers
	// pair it with their own protected state and call Lock/Unlock around
	// accesses, mirroring how `sync.Mutex` is embedded throughout the
	// core rather than wrapped generically.
	NewMutex() LockGuard
}

// LockGuard is a minimal mutual-exclusion primitive.
type LockGuard interface {
	Lock()
	Unlock()
}

// RwLockFamily is an optional refinement of MutexFamily for components
// that benefit from concurrent readers.
type RwLockFamily interface {
	NewRwMutex() RwLockGuard
}

// RwLockGuard is the minimal reader/writer mutual-exclusion primitive.
type RwLockGuard interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

// Clock provides monotonic time to the scheduler and restart-statistics
// window arithmetic.
type Clock interface {
	Now() time.Time
}

// TickSource yields a lease-based pull of accumulated ticks, letting a
// scheduler implementation stay agnostic to whether ticks arrive from a
// real timer, a test driver, or an interrupt.
type TickSource interface {
	// NextTick blocks (respecting the executor's own cancellation
	// conventions) until at least one tick has accumulated, then returns
	// the count of ticks elapsed since the last call.
	NextTick() uint64
}

// Task is one unit of work submitted to an Executor, such as a single
// dispatcher turn.
type Task func()

// Executor runs Tasks, possibly on another goroutine or hardware context.
// Execute must return promptly; long-running work belongs inside the
// Task, not the call to Execute.
type Executor interface {
	Execute(task Task) error
}
