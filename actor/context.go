package actor

import (
	"context"
	"errors"
	"time"
)

// ScheduledHandle is a cancellable handle to a scheduled timer job, kept
// deliberately minimal so the actor package never needs to import the
// scheduler package — the dependency runs the other way, per §9's
// executor/mutex injection discipline.
type ScheduledHandle interface {
	Cancel() bool
}

// TimerService is the minimal contract Context.ScheduleOnce and friends
// need from a scheduler implementation. scheduler.Scheduler satisfies
// this interface structurally.
type TimerService interface {
	ScheduleOnce(delay time.Duration, target TellOnlyRef, msg AnyMessage) (ScheduledHandle, error)
	ScheduleFixedRate(initial, period time.Duration, target TellOnlyRef, msg AnyMessage) (ScheduledHandle, error)
	ScheduleFixedDelay(initial, period time.Duration, target TellOnlyRef, msg AnyMessage) (ScheduledHandle, error)
}

// Context is the handle an Actor's Receive method uses to observe the
// current message's sender and to act on its own cell: spawning
// children, watching peers, changing behavior, or stopping.
type Context struct {
	cell      *ActorCell
	system    *ActorSystem
	sender    PID
	hasSender bool
}

// PID returns this cell's own identifier.
func (c *Context) PID() PID { return c.cell.pid }

// Self returns an ActorRef to this cell.
func (c *Context) Self() ActorRef { return c.cell.Ref() }

// Parent returns this cell's parent PID, and whether it has one (only the
// root guardian does not).
func (c *Context) Parent() (PID, bool) {
	return c.cell.parent, c.cell.hasParent
}

// Sender returns the PID the current message's reply-to names, and
// whether one was present (a plain Tell with no reply-to leaves this
// false).
func (c *Context) Sender() (PID, bool) {
	return c.sender, c.hasSender
}

// SenderRef resolves the current message's reply-to PID into a usable
// ActorRef, for replying to an Ask. It returns false if the message
// carried no reply-to.
func (c *Context) SenderRef() (ActorRef, bool) {
	if !c.hasSender {
		return nil, false
	}
	return c.system.ResolveRef(c.sender), true
}

// Spawn creates a new child cell under this one using props, returning a
// reference to it. SpawnError wraps NameConflict, SystemUnavailable, or
// InvalidProps.
func (c *Context) Spawn(props Props) (ActorRef, error) {
	return c.system.spawnChild(c.cell, props)
}

// Watch registers this cell's interest in target's termination; it will
// later observe exactly one TerminatedMsg for target, unless it unwatches
// first.
func (c *Context) Watch(target ActorRef) error {
	return target.Watch(c.cell.pid)
}

// Unwatch cancels a previously registered Watch. A target that has
// already terminated makes this a no-op.
func (c *Context) Unwatch(target ActorRef) error {
	return target.Unwatch(c.cell.pid)
}

// Become pushes fn onto this cell's behavior stack; subsequent messages
// are dispatched to fn instead of the previous handler, until Unbecome.
func (c *Context) Become(fn ReceiveFunc) {
	c.cell.pushBehavior(fn)
}

// Unbecome pops the most recently pushed behavior. Popping below the
// original depth-1 behavior is a no-op.
func (c *Context) Unbecome() {
	c.cell.popBehavior()
}

// Stop requests termination of target, which may be this cell itself or
// one of its children.
func (c *Context) Stop(target PID) {
	if target.Equal(c.cell.pid) {
		c.cell.beginStop()
		return
	}
	c.cell.stopChild(target)
}

// ScheduleOnce arranges for msg to be sent to target after delay, via the
// system's configured TimerService. It returns ErrNoTimerService if none
// was configured.
func (c *Context) ScheduleOnce(delay time.Duration, target TellOnlyRef, msg AnyMessage) (ScheduledHandle, error) {
	if c.system.timers == nil {
		return nil, ErrNoTimerService
	}
	return c.system.timers.ScheduleOnce(delay, target, msg)
}

// ScheduleRepeatedly arranges for msg to be sent to target every period,
// starting after initial, using fixed-rate semantics (next fire at
// last_scheduled + period, so backlog can accumulate under load).
func (c *Context) ScheduleRepeatedly(initial, period time.Duration, target TellOnlyRef, msg AnyMessage) (ScheduledHandle, error) {
	if c.system.timers == nil {
		return nil, ErrNoTimerService
	}
	return c.system.timers.ScheduleFixedRate(initial, period, target, msg)
}

// PipeToSelf awaits fut in a dedicated goroutine and delivers its outcome
// back to this cell as an ordinary user message (NewAnyMessage(result) on
// success, NewAnyMessage(err) on failure), re-entering the dispatcher
// through the normal Tell path rather than blocking the current turn.
func (c *Context) PipeToSelf(ctx context.Context, fut Future[AnyMessage]) {
	self := c.cell.Ref()
	go func() {
		result := fut.Await(ctx)
		val, err := result.Unpack()
		if err != nil {
			_ = self.Tell(NewAnyMessage(err))
			return
		}
		_ = self.Tell(val)
	}()
}

// DeadLetter explicitly routes msg to the system's dead-letter router
// with ExplicitRouting as its reason.
func (c *Context) DeadLetter(msg AnyMessage) {
	self := c.cell.pid
	c.system.deadLetters.Route(msg, ReasonExplicitRouting, nil, &self)
}

// ErrNoTimerService indicates ScheduleOnce/ScheduleRepeatedly was called
// on a system with no TimerService configured.
var ErrNoTimerService = errors.New("actor: no timer service configured")
