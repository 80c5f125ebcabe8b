package actor

// SystemMessage is a sealed interface over the closed set of priority
// control messages a cell's system lane carries: Suspend, Resume, Stop,
// Watch, Unwatch, Failure, Terminated, Restart, and Create. The unexported
// marker method keeps the set closed to this package, mirroring how
// AnyMessage's teacher lineage (actor.Message in the baselib actor package)
// sealed its own message interface.
type SystemMessage interface {
	systemMessageMarker()
}

// baseSystemMessage is embedded by every concrete SystemMessage to satisfy
// the sealed interface.
type baseSystemMessage struct{}

func (baseSystemMessage) systemMessageMarker() {}

// SuspendMsg holds off the user lane (e.g. while a failure is being
// decided by the parent's supervisor strategy).
type SuspendMsg struct{ baseSystemMessage }

// ResumeMsg releases a previously suspended user lane.
type ResumeMsg struct{ baseSystemMessage }

// StopMsg requests that the cell begin its shutdown sequence.
type StopMsg struct{ baseSystemMessage }

// WatchMsg registers the sender's interest in the target's termination.
type WatchMsg struct {
	baseSystemMessage
	Watcher PID
}

// UnwatchMsg cancels a previously registered Watch.
type UnwatchMsg struct {
	baseSystemMessage
	Watcher PID
}

// FailureMsg is enqueued on a parent's system lane when a child's receive
// handler returns an ActorError.
type FailureMsg struct {
	baseSystemMessage
	Child PID
	Err   error
}

// TerminatedMsg is delivered to every watcher (and, implicitly, observed by
// the parent) once a cell has fully torn down.
type TerminatedMsg struct {
	baseSystemMessage
	Target PID
}

// RestartMsg instructs a cell to run the restart sequence described in
// Supervision's restart protocol.
type RestartMsg struct {
	baseSystemMessage
	Reason error
}

// CreateMsg is the first message a freshly spawned cell processes,
// triggering the Started lifecycle event.
type CreateMsg struct{ baseSystemMessage }

var (
	_ SystemMessage = SuspendMsg{}
	_ SystemMessage = ResumeMsg{}
	_ SystemMessage = StopMsg{}
	_ SystemMessage = WatchMsg{}
	_ SystemMessage = UnwatchMsg{}
	_ SystemMessage = FailureMsg{}
	_ SystemMessage = TerminatedMsg{}
	_ SystemMessage = RestartMsg{}
	_ SystemMessage = CreateMsg{}
)
