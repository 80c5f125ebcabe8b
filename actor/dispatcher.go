package actor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/roasbeef/actorcore/internal/log"
	"github.com/roasbeef/actorcore/toolbox"
)

type dispatcherState uint32

const (
	dispatcherIdle dispatcherState = iota
	dispatcherScheduled
	dispatcherRunning
)

// maxSubmitRetries bounds the backoff loop on executor rejection before
// the dispatcher gives up on this submission and logs a rejection warning
// rather than retrying forever. Queued work stays in the mailbox until the
// next RequestSchedule.
const maxSubmitRetries = 5

// Dispatcher is the per-cell state machine described in §4.2: it
// guarantees at most one concurrent turn per cell and resubmits itself
// to the executor whenever a turn leaves work behind.
type Dispatcher struct {
	cell       *ActorCell
	executor   toolbox.Executor
	throughput int

	state    atomic.Uint32
	resubmit atomic.Uint32
}

func newDispatcher(cell *ActorCell, executor toolbox.Executor, throughput int) *Dispatcher {
	return &Dispatcher{cell: cell, executor: executor, throughput: throughput}
}

// RequestSchedule is called any time new work may exist for this cell
// (an Offer, a resume, a restart completion). It is safe to call from
// any goroutine and cheap to call redundantly.
func (d *Dispatcher) RequestSchedule() {
	for {
		switch dispatcherState(d.state.Load()) {
		case dispatcherIdle:
			if d.state.CompareAndSwap(uint32(dispatcherIdle), uint32(dispatcherScheduled)) {
				d.submit(0)
				return
			}
			// Lost the race with another Idle->Scheduled transition;
			// re-read and retry.

		case dispatcherScheduled:
			// Already queued to run; the pending turn will observe
			// any work enqueued up to the moment it starts.
			return

		case dispatcherRunning:
			// A turn is in flight; flag that it must resubmit rather
			// than go Idle when it finishes, even if it has already
			// observed an empty mailbox by the time this Offer lands.
			d.resubmit.Store(1)
			return
		}
	}
}

func (d *Dispatcher) submit(attempt int) {
	err := d.executor.Execute(d.runTurn)
	if err == nil {
		return
	}

	if attempt+1 >= maxSubmitRetries {
		log.WarnS(context.Background(), "dispatcher: executor rejected submission, giving up", err,
			"pid", d.cell.pid.String(), "attempts", attempt+1)
		d.state.Store(uint32(dispatcherIdle))
		return
	}

	backoff := time.Duration(1<<uint(attempt)) * time.Millisecond
	time.Sleep(backoff)
	d.submit(attempt + 1)
}

// runTurn is the Task handed to the executor. It must not be called
// directly except by the executor.
func (d *Dispatcher) runTurn() {
	d.state.Store(uint32(dispatcherRunning))
	d.resubmit.Store(0)

	d.cell.turn(d.throughput)

	resubmitRequested := d.resubmit.Swap(0) == 1
	if resubmitRequested || d.hasWork() {
		d.state.Store(uint32(dispatcherScheduled))
		d.submit(0)
		return
	}

	d.state.Store(uint32(dispatcherIdle))

	// Close the lost-wakeup window: work may have arrived between the
	// hasWork() check above and the Idle store.
	if d.hasWork() {
		d.RequestSchedule()
	}
}

func (d *Dispatcher) hasWork() bool {
	hints := d.cell.mailbox.Hints()
	return hints.HasSystem || hints.HasUser
}
