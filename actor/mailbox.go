package actor

import (
	"container/list"
	"sync"
)

// MailboxCapacity selects between a bounded and an unbounded user-message
// lane. The system lane is always unbounded regardless of this setting
// (§4.1).
type MailboxCapacity struct {
	// Bounded, when true, caps the user lane at Limit entries and
	// engages Policy once full. When false the user lane grows without
	// bound and Policy is ignored.
	Bounded bool
	Limit   uint
}

// BoundedCapacity returns a MailboxCapacity enforcing limit entries in the
// user lane.
func BoundedCapacity(limit uint) MailboxCapacity {
	if limit == 0 {
		limit = 1
	}
	return MailboxCapacity{Bounded: true, Limit: limit}
}

// UnboundedCapacity returns a MailboxCapacity with no user-lane limit.
func UnboundedCapacity() MailboxCapacity {
	return MailboxCapacity{}
}

// OverflowPolicy selects the behavior engaged when a bounded user lane is
// full at the time of Offer.
type OverflowPolicy uint8

const (
	// DropNewest silently discards the incoming message, dead-lettering
	// it with MailboxFull. The existing queue contents are untouched.
	DropNewest OverflowPolicy = iota

	// DropOldest evicts the head of the queue (dead-lettering it with
	// MailboxFull) to make room for the incoming message.
	DropOldest

	// Grow reallocates the bounded limit to max(current*2, current+1)
	// and stores the message.
	Grow

	// Block returns a Pending outcome that resolves once room becomes
	// available (or the mailbox closes).
	Block
)

// EnqueueOutcome is returned by Offer. Pending is only non-nil when the
// caller must wait for capacity under the Block policy; the channel closes
// once the message has been accepted, and also when the mailbox closes
// first, in which case the message is never admitted; the channel alone
// does not tell the two apart.
type EnqueueOutcome struct {
	Enqueued bool
	Pending  <-chan struct{}
}

// SchedulingHints summarizes mailbox state immediately after a state
// transition, letting the dispatcher decide whether to request
// re-scheduling or pause producers.
type SchedulingHints struct {
	HasSystem    bool
	HasUser      bool
	Backpressure bool
	UserLen      int
	SystemLen    int
}

// pendingOffer represents a producer blocked under the Block policy,
// waiting for room in the user lane.
type pendingOffer struct {
	msg  AnyMessage
	done chan struct{}
}

// Mailbox is a cell's dual-lane FIFO: an unbounded, always-accepting system
// lane and a user lane governed by MailboxCapacity/OverflowPolicy. All
// exported methods are safe for concurrent use; Dequeue* methods are
// intended to be called exclusively by the owning dispatcher's turn.
type Mailbox struct {
	mu sync.Mutex

	capacity MailboxCapacity
	policy   OverflowPolicy

	userQueue *list.List // of AnyMessage
	sysQueue  *list.List // of SystemMessage

	waiters *list.List // of *pendingOffer, FIFO order

	suspended  bool
	terminated bool
	closed     bool

	deadLetters *DeadLetterRouter
	self        PID
}

// NewMailbox constructs a mailbox for the given cell PID. deadLetters may
// be nil, in which case dropped messages are silently discarded.
func NewMailbox(self PID, capacity MailboxCapacity, policy OverflowPolicy, deadLetters *DeadLetterRouter) *Mailbox {
	return &Mailbox{
		capacity:    capacity,
		policy:      policy,
		userQueue:   list.New(),
		sysQueue:    list.New(),
		waiters:     list.New(),
		deadLetters: deadLetters,
		self:        self,
	}
}

// Offer enqueues a user message, applying the configured overflow policy
// if the lane is bounded and full. It never blocks the caller; under the
// Block policy it instead returns a Pending channel the caller may await
// outside of any lock it holds (the "Schedule(continuation)" discipline
// required by §9 to avoid dispatcher-producer deadlocks).
func (m *Mailbox) Offer(msg AnyMessage) (EnqueueOutcome, SchedulingHints) {
	m.mu.Lock()

	if m.terminated || m.closed {
		m.mu.Unlock()
		m.routeDeadLetter(msg, ReasonMailboxSuspended)
		return EnqueueOutcome{Enqueued: false}, m.hintsLocked()
	}

	if !m.capacity.Bounded || uint(m.userQueue.Len()) < m.capacity.Limit {
		m.userQueue.PushBack(msg)
		hints := m.hintsLocked()
		m.mu.Unlock()
		return EnqueueOutcome{Enqueued: true}, hints
	}

	switch m.policy {
	case DropNewest:
		m.mu.Unlock()
		m.routeDeadLetter(msg, ReasonMailboxFull)
		return EnqueueOutcome{Enqueued: true}, m.hints()

	case DropOldest:
		front := m.userQueue.Front()
		var evicted AnyMessage
		if front != nil {
			evicted = front.Value.(AnyMessage)
			m.userQueue.Remove(front)
		}
		m.userQueue.PushBack(msg)
		hints := m.hintsLocked()
		m.mu.Unlock()
		m.routeDeadLetter(evicted, ReasonMailboxFull)
		return EnqueueOutcome{Enqueued: true}, hints

	case Grow:
		newLimit := m.capacity.Limit * 2
		if newLimit <= m.capacity.Limit {
			newLimit = m.capacity.Limit + 1
		}
		m.capacity.Limit = newLimit
		m.userQueue.PushBack(msg)
		hints := m.hintsLocked()
		m.mu.Unlock()
		return EnqueueOutcome{Enqueued: true}, hints

	case Block:
		done := make(chan struct{})
		m.waiters.PushBack(&pendingOffer{msg: msg, done: done})
		hints := m.hintsLocked()
		m.mu.Unlock()
		return EnqueueOutcome{Enqueued: false, Pending: done}, hints

	default:
		m.mu.Unlock()
		return EnqueueOutcome{Enqueued: false}, m.hints()
	}
}

// OfferSystem enqueues a system message. The system lane never refuses; it
// always grows. It returns true unless the mailbox has already terminated.
func (m *Mailbox) OfferSystem(msg SystemMessage) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.terminated {
		return false
	}
	m.sysQueue.PushBack(msg)
	return true
}

// DequeueSystem pops the next system message, if any.
func (m *Mailbox) DequeueSystem() (SystemMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	front := m.sysQueue.Front()
	if front == nil {
		return nil, false
	}
	m.sysQueue.Remove(front)
	return front.Value.(SystemMessage), true
}

// DequeueUser pops the next user message, if any and if the mailbox is not
// suspended. Popping a slot may free room for a Block-policy waiter, which
// is admitted here (still inside the lock, but the waiter's own blocked
// caller is only unblocked via its done channel, not re-entered).
func (m *Mailbox) DequeueUser() (AnyMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.suspended {
		return AnyMessage{}, false
	}

	front := m.userQueue.Front()
	if front == nil {
		return AnyMessage{}, false
	}
	m.userQueue.Remove(front)
	msg := front.Value.(AnyMessage)

	m.admitNextWaiterLocked()

	return msg, true
}

// admitNextWaiterLocked moves the oldest Block-policy waiter's message into
// the user queue if room now exists, and signals its done channel. Must be
// called with m.mu held.
func (m *Mailbox) admitNextWaiterLocked() {
	if m.waiters.Len() == 0 {
		return
	}
	if m.capacity.Bounded && uint(m.userQueue.Len()) >= m.capacity.Limit {
		return
	}

	front := m.waiters.Front()
	waiter := front.Value.(*pendingOffer)
	m.waiters.Remove(front)

	m.userQueue.PushBack(waiter.msg)
	close(waiter.done)
}

// Suspend holds off the user lane; system messages continue to drain.
func (m *Mailbox) Suspend() {
	m.mu.Lock()
	m.suspended = true
	m.mu.Unlock()
}

// Resume releases a previously suspended user lane.
func (m *Mailbox) Resume() {
	m.mu.Lock()
	m.suspended = false
	m.mu.Unlock()
}

// IsSuspended reports whether the user lane is currently held off.
func (m *Mailbox) IsSuspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

// MarkTerminated flags the mailbox as tearing down; further Offers deflect
// to the dead-letter router instead of enqueueing.
func (m *Mailbox) MarkTerminated() {
	m.mu.Lock()
	m.terminated = true
	m.mu.Unlock()
}

// Close marks the mailbox closed, releasing any Block-policy waiters
// without admitting their messages (their done channel still closes so
// they stop waiting; Pending callers should treat an unresolved send after
// a closed mailbox as a failed Tell).
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.terminated = true
	waiters := m.waiters
	m.waiters = list.New()
	m.mu.Unlock()

	for e := waiters.Front(); e != nil; e = e.Next() {
		close(e.Value.(*pendingOffer).done)
	}
}

// Drain returns any user messages still queued after Close, for routing to
// the dead-letter router during cell teardown.
func (m *Mailbox) Drain() []AnyMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]AnyMessage, 0, m.userQueue.Len())
	for e := m.userQueue.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(AnyMessage))
	}
	m.userQueue.Init()
	return out
}

// Hints returns the current scheduling hints without mutating state.
func (m *Mailbox) Hints() SchedulingHints {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hintsLocked()
}

func (m *Mailbox) hints() SchedulingHints {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hintsLocked()
}

func (m *Mailbox) hintsLocked() SchedulingHints {
	backpressure := m.capacity.Bounded &&
		uint(m.userQueue.Len()) >= m.capacity.Limit

	return SchedulingHints{
		HasSystem:    m.sysQueue.Len() > 0,
		HasUser:      m.userQueue.Len() > 0 && !m.suspended,
		Backpressure: backpressure,
		UserLen:      m.userQueue.Len(),
		SystemLen:    m.sysQueue.Len(),
	}
}

func (m *Mailbox) routeDeadLetter(msg AnyMessage, reason DeadLetterReason) {
	if m.deadLetters == nil {
		return
	}
	recipient := m.self
	m.deadLetters.Route(msg, reason, nil, &recipient)
}
