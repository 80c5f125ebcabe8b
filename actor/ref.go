package actor

import "context"

// TellOnlyRef is the minimal capability to fire-and-forget a message at
// an actor, without being able to watch it or await a reply. Scheduler
// jobs and pool broadcast helpers accept this narrower interface so they
// can't accidentally block a timer tick awaiting a response.
type TellOnlyRef interface {
	// Tell enqueues msg without waiting for a reply. A SendError is
	// returned only when the message could not be enqueued at all
	// (closed/terminated mailbox); policy-driven drops of an otherwise
	// accepted message are reported via the dead-letter stream instead.
	Tell(msg AnyMessage) error

	// PID returns the identifier of the actor this ref addresses.
	PID() PID
}

// ActorRef is the full reference capability exposed to application code:
// Tell, Ask, and the watch protocol.
type ActorRef interface {
	TellOnlyRef

	// Ask sends msg and returns a future for the reply. The reply-to PID
	// embedded in msg's envelope is overwritten with an ephemeral PID
	// backing the returned future.
	Ask(ctx context.Context, msg AnyMessage) AskResponse

	// Watch registers watcher's interest in this actor's termination.
	Watch(watcher PID) error

	// Unwatch cancels a previously registered Watch.
	Unwatch(watcher PID) error

	// Path returns the hierarchical path this ref addresses.
	Path() ActorPath
}

// cellRef is the concrete ActorRef backing every live cell. It holds a
// pointer to the cell; once the cell terminates, Tell/Ask deflect to dead
// letters rather than panicking, matching the "weak-by-intent" reference
// semantics in §3.
type cellRef struct {
	cell *ActorCell
}

var _ ActorRef = (*cellRef)(nil)

func (r *cellRef) PID() PID { return r.cell.pid }

func (r *cellRef) Path() ActorPath { return r.cell.path }

func (r *cellRef) Tell(msg AnyMessage) error {
	return r.cell.enqueueUser(msg)
}

func (r *cellRef) Ask(ctx context.Context, msg AnyMessage) AskResponse {
	promise := NewPromise[AnyMessage]()

	replyPID := r.cell.system.registerEphemeral(promise)

	envelope := msg.WithReplyTo(replyPID)
	if err := r.cell.enqueueUser(envelope); err != nil {
		r.cell.system.removeEphemeral(replyPID)
		promise.Fail(&AskError{Kind: AskSendFailed, cause: err})
		return AskResponse{future: promise.Future()}
	}

	// The ephemeral registry entry is removed either when a reply
	// arrives (ephemeralRef.Tell) or when the caller's context expires,
	// whichever happens first, so an unanswered Ask never leaks.
	go func() {
		<-ctx.Done()
		r.cell.system.removeEphemeral(replyPID)
	}()

	return AskResponse{future: promise.Future()}
}

func (r *cellRef) Watch(watcher PID) error {
	return r.cell.offerSystem(WatchMsg{Watcher: watcher})
}

func (r *cellRef) Unwatch(watcher PID) error {
	return r.cell.offerSystem(UnwatchMsg{Watcher: watcher})
}

// deadRef is returned for PIDs that no longer resolve to a live cell;
// every operation deflects straight to dead letters.
type deadRef struct {
	pid         PID
	path        ActorPath
	deadLetters *DeadLetterRouter
}

var _ ActorRef = (*deadRef)(nil)

func (r *deadRef) PID() PID        { return r.pid }
func (r *deadRef) Path() ActorPath { return r.path }

func (r *deadRef) Tell(msg AnyMessage) error {
	pid := r.pid
	r.deadLetters.Route(msg, ReasonRecipientUnavailable, nil, &pid)
	return &SendError{Kind: SendDisconnected, Message: msg}
}

func (r *deadRef) Ask(_ context.Context, msg AnyMessage) AskResponse {
	promise := NewPromise[AnyMessage]()
	pid := r.pid
	r.deadLetters.Route(msg, ReasonRecipientUnavailable, nil, &pid)
	promise.Fail(&AskError{Kind: AskDeadLetter})
	return AskResponse{future: promise.Future()}
}

func (r *deadRef) Watch(PID) error   { return ErrActorTerminated }
func (r *deadRef) Unwatch(PID) error { return nil }
