package actor

import (
	"context"
	"sync"

	"github.com/roasbeef/actorcore/internal/log"
)

// Event is a sealed interface over the four kinds of notification the
// event stream carries: lifecycle transitions, dead letters, log records,
// and mailbox state changes.
type Event interface {
	eventMarker()
}

type baseEvent struct{}

func (baseEvent) eventMarker() {}

var (
	_ Event = DeadLetterEvent{}
	_ Event = MailboxEvent{}
)

// DeadLetterEvent wraps one undeliverable message for subscribers.
type DeadLetterEvent struct {
	baseEvent
	Entry DeadLetterEntry
}

// LogEvent carries a structured log record onto the event stream, letting
// subscribers (e.g. a test harness) observe logging without intercepting
// the logger itself.
type LogEvent struct {
	baseEvent
	Level   string
	Message string
	Fields  map[string]any
}

// MailboxEvent reports a cell's mailbox state (lengths, backpressure) at
// the end of every dispatcher turn, for subscribers building monitoring
// dashboards.
type MailboxEvent struct {
	baseEvent
	PID   PID
	Hints SchedulingHints
}

var _ Event = LifecycleEvent{}

func (LifecycleEvent) eventMarker() {}

// Subscription is the handle returned by EventStream.Subscribe; call
// Unsubscribe to stop receiving events.
type Subscription struct {
	id     uint64
	stream *EventStream
}

// Unsubscribe removes this subscription from the stream. Safe to call
// more than once.
func (s *Subscription) Unsubscribe() {
	s.stream.unsubscribe(s.id)
}

type subscriber struct {
	id     uint64
	filter func(Event) bool
	sink   chan<- Event
}

// EventStream is a process-wide, panic-isolated publish/subscribe bus.
// Subscribers are notified in registration order; a panicking or blocked
// subscriber never prevents delivery to the others, and never blocks the
// publisher (delivery to a full subscriber channel is dropped, not
// queued).
type EventStream struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []*subscriber
}

// NewEventStream constructs an empty event stream.
func NewEventStream() *EventStream {
	return &EventStream{}
}

// Subscribe registers sink to receive every published Event for which
// filter returns true (a nil filter matches everything). Delivery to sink
// never blocks the publisher: if sink's buffer is full, that event is
// silently dropped for that subscriber.
func (e *EventStream) Subscribe(sink chan<- Event, filter func(Event) bool) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, &subscriber{id: id, filter: filter, sink: sink})

	return &Subscription{id: id, stream: e}
}

func (e *EventStream) unsubscribe(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, s := range e.subs {
		if s.id == id {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers evt to every matching subscriber in registration order.
// A subscriber whose filter or send path panics is isolated: the panic is
// recovered and logged, that subscriber is removed, and the remaining
// subscribers still receive the event.
func (e *EventStream) Publish(evt Event) {
	e.mu.RLock()
	subs := make([]*subscriber, len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()

	for _, s := range subs {
		e.deliverSafely(s, evt)
	}
}

func (e *EventStream) deliverSafely(s *subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WarnS(context.Background(), "event stream: removing panicking subscriber",
				panicToError(r), "subscription", s.id)
			e.unsubscribe(s.id)
		}
	}()

	if s.filter != nil && !s.filter(evt) {
		return
	}

	select {
	case s.sink <- evt:
	default:
	}
}
