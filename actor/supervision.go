package actor

import (
	"container/ring"
	"time"
)

// Directive is a supervisor's decision for a failed child. Resume is
// intentionally absent: a restart fully reconstructs the actor's state,
// so there is no partial-recovery path that would need a supervisor to
// simply wave a failure through.
type Directive uint8

const (
	// DirectiveRestart tears the child's instance down and rebuilds it
	// via its factory, preserving its PID.
	DirectiveRestart Directive = iota

	// DirectiveStop terminates the child permanently.
	DirectiveStop

	// DirectiveEscalate re-raises the failure to this cell's own
	// parent, as if this cell itself had failed.
	DirectiveEscalate
)

// String renders the directive as it appears in log lines.
func (d Directive) String() string {
	switch d {
	case DirectiveRestart:
		return "restart"
	case DirectiveStop:
		return "stop"
	case DirectiveEscalate:
		return "escalate"
	default:
		return "unknown"
	}
}

// RestartStatistics is a sliding window of recent restart timestamps used
// to enforce "at most MaxRestarts within Window" before a Restart
// directive is upgraded to Stop. It is owned by the parent, one instance
// per child, and is only ever touched from within the parent's dispatcher
// turn.
type RestartStatistics struct {
	window *ring.Ring // of time.Time, nil slots mean "unused"
	size   int
}

// NewRestartStatistics allocates a window that tracks up to capacity
// restart timestamps. A capacity below 1 is raised to 1; whether a failure
// breaches the window is decided by RecordAndCheck's maxRestarts.
func NewRestartStatistics(capacity int) *RestartStatistics {
	if capacity < 1 {
		capacity = 1
	}
	return &RestartStatistics{window: ring.New(capacity), size: capacity}
}

// RecordAndCheck appends now to the window and reports whether the number
// of restarts within the last `within` duration (including this one)
// exceeds maxRestarts — the signal to upgrade Restart to Stop.
func (s *RestartStatistics) RecordAndCheck(now time.Time, maxRestarts int, within time.Duration) bool {
	s.window.Value = now
	s.window = s.window.Next()

	count := 0
	s.window.Do(func(v any) {
		if v == nil {
			return
		}
		ts := v.(time.Time)
		if now.Sub(ts) <= within {
			count++
		}
	})

	return count > maxRestarts
}

// Reset clears the window so that no earlier restart is counted. The cell
// supervision code does not call it; earlier restarts age out of the
// window through RecordAndCheck's duration check instead.
func (s *RestartStatistics) Reset() {
	s.window = ring.New(s.size)
}
