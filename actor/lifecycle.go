package actor

// LifecycleStage enumerates the points in a cell's life an observer can be
// notified about.
type LifecycleStage uint8

const (
	// Started fires once, after a cell's Create handling completes and
	// before its first user message is dispatched.
	Started LifecycleStage = iota

	// Restarted fires after a cell completes the restart sequence
	// (§ supervision) and resumes accepting user messages.
	Restarted

	// Stopped fires once a cell's teardown (children stopped, mailbox
	// drained, watchers and parent notified) has fully completed.
	Stopped
)

// String renders the stage as it appears in a LifecycleEvent's log line.
func (s LifecycleStage) String() string {
	switch s {
	case Started:
		return "started"
	case Restarted:
		return "restarted"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// LifecycleEvent is published to the event stream at each of a cell's
// Started/Restarted/Stopped transitions.
type LifecycleEvent struct {
	PID   PID
	Stage LifecycleStage
}
