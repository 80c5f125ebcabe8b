package actor

import "reflect"

// AnyMessage is an owned, type-erased user message envelope. The payload's
// runtime type is captured once at construction time as a stable string
// identifier so downcasts never need reflection on the hot path after
// creation. ReplyTo, when present, names the actor a response should be
// sent to (populated automatically by Ask).
type AnyMessage struct {
	payload  any
	typeID   string
	replyTo  PID
	hasReply bool
}

// NewAnyMessage wraps payload in an owned envelope with no reply-to
// reference (a "tell").
func NewAnyMessage(payload any) AnyMessage {
	return AnyMessage{
		payload: payload,
		typeID:  reflect.TypeOf(payload).String(),
	}
}

// WithReplyTo returns a copy of this envelope carrying the given reply-to
// PID, used internally by Ask to let the receiver address its response.
func (m AnyMessage) WithReplyTo(pid PID) AnyMessage {
	m.replyTo = pid
	m.hasReply = true
	return m
}

// ReplyTo returns the reply-to PID and whether one was set.
func (m AnyMessage) ReplyTo() (PID, bool) {
	return m.replyTo, m.hasReply
}

// TypeID returns the stable runtime type identifier of the payload.
func (m AnyMessage) TypeID() string {
	return m.typeID
}

// Payload returns the owned payload. Most actor code should prefer
// View().Downcast instead; Payload is for infrastructure (dead-letter
// routing, logging) that needs the raw value without a known type.
func (m AnyMessage) Payload() any {
	return m.payload
}

// View returns a read-only, non-owning view of this envelope suitable for
// handing to a Receive call.
func (m AnyMessage) View() AnyMessageView {
	return AnyMessageView{msg: &m}
}

// AnyMessageView is a borrowed view over an AnyMessage. It exposes no
// mutation accessors; only Downcast lets a receiver recover a concrete
// payload type.
type AnyMessageView struct {
	msg *AnyMessage
}

// TypeID returns the stable runtime type identifier of the underlying
// payload.
func (v AnyMessageView) TypeID() string {
	return v.msg.typeID
}

// ReplyTo returns the underlying envelope's reply-to PID, if any.
func (v AnyMessageView) ReplyTo() (PID, bool) {
	return v.msg.ReplyTo()
}

// Downcast attempts to recover a concrete payload type T from the view. It
// compares the view's cached type identifier against T's static type
// identifier and only performs the type assertion on a match, so a type
// mismatch returns (zero, false) rather than panicking.
func Downcast[T any](v AnyMessageView) (T, bool) {
	var zero T
	want := reflect.TypeOf((*T)(nil)).Elem()

	// A payload's cached identifier always names its concrete type, so
	// it can never equal an interface type's name (e.g. T = error); for
	// an interface T the type assertion alone decides.
	if want.Kind() != reflect.Interface && want.String() != v.msg.typeID {
		return zero, false
	}

	val, ok := v.msg.payload.(T)
	if !ok {
		return zero, false
	}
	return val, true
}
