package actor

import "sync"

// DeadLetterReason classifies why a message could not be delivered to its
// intended recipient.
type DeadLetterReason uint8

const (
	// ReasonMailboxFull indicates a bounded mailbox under DropNewest or
	// DropOldest discarded the message to make (or keep) room.
	ReasonMailboxFull DeadLetterReason = iota

	// ReasonMailboxSuspended indicates the target mailbox had already
	// closed or terminated at the time of send, or the message was still
	// queued when the cell's mailbox was drained during teardown.
	ReasonMailboxSuspended

	// ReasonRecipientUnavailable indicates the PID resolved to no
	// currently-live cell (e.g. a stale reference after termination).
	ReasonRecipientUnavailable

	// ReasonMissingRecipient indicates a lookup (by name or service key)
	// found no registered recipient at all.
	ReasonMissingRecipient

	// ReasonFatalActorError indicates the message was in flight to a
	// cell that failed fatally before it could be processed.
	ReasonFatalActorError

	// ReasonExplicitRouting indicates application code routed the
	// message to the dead-letter router directly (ctx.DeadLetter).
	ReasonExplicitRouting
)

// String renders the reason as it appears in a DeadLetterEvent's log line.
func (r DeadLetterReason) String() string {
	switch r {
	case ReasonMailboxFull:
		return "mailbox_full"
	case ReasonMailboxSuspended:
		return "mailbox_suspended"
	case ReasonRecipientUnavailable:
		return "recipient_unavailable"
	case ReasonMissingRecipient:
		return "missing_recipient"
	case ReasonFatalActorError:
		return "fatal_actor_error"
	case ReasonExplicitRouting:
		return "explicit_routing"
	default:
		return "unknown"
	}
}

// DeadLetterEntry records one message that could not be delivered.
type DeadLetterEntry struct {
	Message   AnyMessage
	Reason    DeadLetterReason
	Sender    *PID
	Recipient *PID
}

// DeadLetterRouter publishes undeliverable messages to the event stream.
// It never blocks a producer: Route only takes a read lock briefly to
// read the stream, then publishes outside the lock.
type DeadLetterRouter struct {
	mu     sync.RWMutex
	events *EventStream
}

// NewDeadLetterRouter constructs a router publishing onto the given event
// stream. events may be nil in tests that don't care about observing
// dead letters.
func NewDeadLetterRouter(events *EventStream) *DeadLetterRouter {
	return &DeadLetterRouter{events: events}
}

// Route records one undeliverable message and publishes a DeadLetterEvent.
func (d *DeadLetterRouter) Route(msg AnyMessage, reason DeadLetterReason, sender, recipient *PID) {
	entry := DeadLetterEntry{
		Message:   msg,
		Reason:    reason,
		Sender:    sender,
		Recipient: recipient,
	}

	d.mu.RLock()
	events := d.events
	d.mu.RUnlock()

	if events == nil {
		return
	}
	events.Publish(DeadLetterEvent{Entry: entry})
}
