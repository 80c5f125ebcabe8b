package actor

import (
	"context"
	"sync"
	"time"

	"github.com/roasbeef/actorcore/internal/log"
)

// ActorCell is the per-actor state container: behavior stack, children,
// watch sets, mailbox, and dispatcher. Everything here except the
// mailbox and dispatcher's own atomic state is only ever touched from
// within this cell's single active dispatcher turn, per §5's per-cell
// ordering guarantee. The mutex below guards the fields listed after it,
// since some of them (children, watchers) are also read or written from
// outside the turn (Spawn, guardian bootstrap).
type ActorCell struct {
	pid    PID
	path   ActorPath
	parent PID

	hasParent bool
	name      string
	props     Props
	system    *ActorSystem

	mailbox    *Mailbox
	dispatcher *Dispatcher

	mu             sync.Mutex
	behaviorStack  []ReceiveFunc
	instance       Actor
	children       map[string]PID
	childOrder     []string
	watchers       map[PID]struct{}
	watchees       map[PID]struct{}
	restartStats   map[PID]*RestartStatistics
	pendingStops   map[PID]struct{}
	stopping       bool
	terminated     bool
	lastUserMsg    AnyMessage
	hasLastUserMsg bool
}

// newActorCell constructs and wires a cell but does not yet start its
// dispatcher or deliver Create; callers (ActorSystem.spawnChild) finish
// wiring (parent bookkeeping) before calling start().
func newActorCell(system *ActorSystem, pid PID, path ActorPath, parent PID, hasParent bool, name string, props Props) *ActorCell {
	mailbox := NewMailbox(pid, props.Mailbox.Capacity, props.Mailbox.Overflow, system.deadLetters)

	cell := &ActorCell{
		pid:          pid,
		path:         path,
		parent:       parent,
		hasParent:    hasParent,
		name:         name,
		props:        props,
		system:       system,
		mailbox:      mailbox,
		children:     make(map[string]PID),
		watchers:     make(map[PID]struct{}),
		watchees:     make(map[PID]struct{}),
		restartStats: make(map[PID]*RestartStatistics),
		pendingStops: make(map[PID]struct{}),
	}

	executor := system.executorFor(props.Dispatcher.ExecutorID)
	throughput := props.Dispatcher.Throughput
	if throughput < 1 {
		throughput = 1
	}
	cell.dispatcher = newDispatcher(cell, executor, throughput)

	return cell
}

// start enqueues the Create system message and requests the first
// dispatcher turn.
func (c *ActorCell) start() {
	c.mailbox.OfferSystem(CreateMsg{})
	c.dispatcher.RequestSchedule()
}

// Ref returns an ActorRef addressing this cell.
func (c *ActorCell) Ref() ActorRef {
	return &cellRef{cell: c}
}

func (c *ActorCell) enqueueUser(msg AnyMessage) error {
	c.mu.Lock()
	terminated := c.terminated
	c.mu.Unlock()

	if terminated {
		pid := c.pid
		c.system.deadLetters.Route(msg, ReasonRecipientUnavailable, nil, &pid)
		return &SendError{Kind: SendDisconnected, Message: msg}
	}

	outcome, _ := c.mailbox.Offer(msg)
	if !outcome.Enqueued && outcome.Pending != nil {
		go func() {
			<-outcome.Pending
			c.dispatcher.RequestSchedule()
		}()
		return nil
	}

	c.dispatcher.RequestSchedule()
	return nil
}

func (c *ActorCell) offerSystem(msg SystemMessage) error {
	if !c.mailbox.OfferSystem(msg) {
		return ErrActorTerminated
	}
	c.dispatcher.RequestSchedule()
	return nil
}

func (c *ActorCell) pushBehavior(fn ReceiveFunc) {
	c.mu.Lock()
	c.behaviorStack = append(c.behaviorStack, fn)
	c.mu.Unlock()
}

func (c *ActorCell) popBehavior() {
	c.mu.Lock()
	if len(c.behaviorStack) > 1 {
		c.behaviorStack = c.behaviorStack[:len(c.behaviorStack)-1]
	}
	c.mu.Unlock()
}

// turn runs one dispatcher activation: drain the system lane to empty,
// then up to throughput user messages, each preceded by another system
// drain, exactly per §4.2's pseudocode.
func (c *ActorCell) turn(throughput int) {
	c.drainSystem()

	for i := 0; i < throughput; i++ {
		if c.mailbox.IsSuspended() {
			break
		}
		msg, ok := c.mailbox.DequeueUser()
		if !ok {
			break
		}

		c.drainSystem()
		c.invokeUser(msg)
	}

	hints := c.mailbox.Hints()
	c.system.events.Publish(MailboxEvent{PID: c.pid, Hints: hints})
}

func (c *ActorCell) drainSystem() {
	for {
		sysMsg, ok := c.mailbox.DequeueSystem()
		if !ok {
			return
		}
		c.handleSystem(sysMsg)
	}
}

func (c *ActorCell) invokeUser(msg AnyMessage) {
	c.mu.Lock()
	c.lastUserMsg = msg
	c.hasLastUserMsg = true
	behavior := c.behaviorStack[len(c.behaviorStack)-1]
	c.mu.Unlock()

	sender, hasSender := msg.ReplyTo()
	ctx := &Context{cell: c, system: c.system, sender: sender, hasSender: hasSender}

	err := c.safeReceive(behavior, ctx, msg.View())
	if err != nil {
		c.reportFailure(err)
	}
}

// safeReceive converts a panic inside user code into a Fatal ActorError,
// per §7: "the dispatcher never unwinds into the executor."
func (c *ActorCell) safeReceive(behavior ReceiveFunc, ctx *Context, view AnyMessageView) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewFatalError("panic in receive").WithCause(panicToError(r))
		}
	}()
	return behavior(ctx, view)
}

func (c *ActorCell) reportFailure(cause error) {
	log.WarnS(context.Background(), "actor receive failed", cause, "pid", c.pid.String())

	c.mailbox.Suspend()

	if !c.hasParent {
		// The root guardian has no parent to escalate to; a failure
		// there is treated as fatal to the cell itself.
		c.beginStop()
		return
	}

	parentCell, ok := c.system.lookupCell(c.parent)
	if !ok {
		return
	}
	_ = parentCell.offerSystem(FailureMsg{Child: c.pid, Err: cause})
}

func (c *ActorCell) handleSystem(msg SystemMessage) {
	switch m := msg.(type) {
	case CreateMsg:
		c.handleCreate()

	case SuspendMsg:
		c.mailbox.Suspend()

	case ResumeMsg:
		c.mailbox.Resume()

	case StopMsg:
		c.beginStop()

	case WatchMsg:
		c.mu.Lock()
		c.watchers[m.Watcher] = struct{}{}
		c.mu.Unlock()

	case UnwatchMsg:
		c.mu.Lock()
		delete(c.watchers, m.Watcher)
		c.mu.Unlock()

	case FailureMsg:
		c.handleChildFailure(m.Child, m.Err)

	case TerminatedMsg:
		c.handleChildTerminated(m.Target)

	case RestartMsg:
		c.runRestart(m.Reason)
	}
}

func (c *ActorCell) handleCreate() {
	c.mu.Lock()
	if c.instance == nil {
		c.instance = c.props.Factory()
		c.behaviorStack = []ReceiveFunc{c.instance.Receive}
	}
	c.mu.Unlock()

	c.system.events.Publish(LifecycleEvent{PID: c.pid, Stage: Started})
}

// beginStop starts this cell's teardown: broadcast Stop to every child
// and wait for their Terminated before finalizing (§4.3 bottom-up stop).
// A cell with no children finalizes immediately.
func (c *ActorCell) beginStop() {
	c.mu.Lock()
	if c.stopping || c.terminated {
		c.mu.Unlock()
		return
	}
	c.stopping = true
	c.mailbox.Suspend()

	children := make([]PID, 0, len(c.childOrder))
	for _, name := range c.childOrder {
		pid := c.children[name]
		children = append(children, pid)
		c.pendingStops[pid] = struct{}{}
	}
	c.mu.Unlock()

	if len(children) == 0 {
		c.finalizeStop()
		return
	}

	for _, childPID := range children {
		c.stopChild(childPID)
	}
}

func (c *ActorCell) stopChild(pid PID) {
	if childCell, ok := c.system.lookupCell(pid); ok {
		_ = childCell.offerSystem(StopMsg{})
	}
}

func (c *ActorCell) handleChildTerminated(target PID) {
	c.mu.Lock()
	delete(c.pendingStops, target)
	remaining := len(c.pendingStops)
	stopping := c.stopping
	for name, pid := range c.children {
		if pid.Equal(target) {
			delete(c.children, name)
			for i, n := range c.childOrder {
				if n == name {
					c.childOrder = append(c.childOrder[:i], c.childOrder[i+1:]...)
					break
				}
			}
			break
		}
	}
	c.mu.Unlock()

	if stopping && remaining == 0 {
		c.finalizeStop()
	}
}

// finalizeStop completes this cell's teardown: drains any remaining user
// messages to dead letters, notifies watchers and the parent, and
// publishes the Stopped lifecycle event.
func (c *ActorCell) finalizeStop() {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.terminated = true
	watchers := make([]PID, 0, len(c.watchers))
	for w := range c.watchers {
		watchers = append(watchers, w)
	}
	c.mu.Unlock()

	c.mailbox.MarkTerminated()
	c.mailbox.Close()

	pid := c.pid
	for _, leftover := range c.mailbox.Drain() {
		c.system.deadLetters.Route(leftover, ReasonMailboxSuspended, nil, &pid)
	}

	for _, w := range watchers {
		if watcherCell, ok := c.system.lookupCell(w); ok {
			_ = watcherCell.offerSystem(TerminatedMsg{Target: c.pid})
		}
	}

	if c.hasParent {
		if parentCell, ok := c.system.lookupCell(c.parent); ok {
			_ = parentCell.offerSystem(TerminatedMsg{Target: c.pid})
		}
	}

	c.system.events.Publish(LifecycleEvent{PID: c.pid, Stage: Stopped})
	c.system.removeCell(c.pid)
}

// handleChildFailure runs the supervisor decision protocol of §4.4 steps
// 1-4 for a single reported failure.
func (c *ActorCell) handleChildFailure(child PID, cause error) {
	directive := c.props.Supervisor.Decider(c.childPath(child), cause)

	switch directive {
	case DirectiveRestart:
		c.restartWithWindowCheck(child, cause)

	case DirectiveStop:
		c.stopChild(child)

	case DirectiveEscalate:
		if !c.hasParent {
			c.stopChild(child)
			return
		}
		if parentCell, ok := c.system.lookupCell(c.parent); ok {
			_ = parentCell.offerSystem(FailureMsg{Child: c.pid, Err: cause})
		}
	}

	if c.props.Supervisor.Strategy == AllForOne {
		c.mu.Lock()
		siblings := make([]PID, 0, len(c.childOrder))
		for _, name := range c.childOrder {
			pid := c.children[name]
			if !pid.Equal(child) {
				siblings = append(siblings, pid)
			}
		}
		c.mu.Unlock()

		for _, sibling := range siblings {
			switch directive {
			case DirectiveRestart:
				c.restartWithWindowCheck(sibling, cause)
			case DirectiveStop:
				c.stopChild(sibling)
			}
		}
	}
}

func (c *ActorCell) childPath(child PID) ActorPath {
	if childCell, ok := c.system.lookupCell(child); ok {
		return childCell.path
	}
	return ActorPath{}
}

// restartWithWindowCheck increments the child's restart window and
// upgrades to Stop if it has been breached (§4.4 step 2, §8 property 7).
func (c *ActorCell) restartWithWindowCheck(child PID, reason error) {
	c.mu.Lock()
	stats, ok := c.restartStats[child]
	if !ok {
		stats = NewRestartStatistics(c.props.Supervisor.MaxRestarts + 1)
		c.restartStats[child] = stats
	}
	c.mu.Unlock()

	breached := stats.RecordAndCheck(
		c.system.clock.Now(),
		c.props.Supervisor.MaxRestarts,
		c.props.Supervisor.RestartWindow,
	)

	if breached {
		c.stopChild(child)
		return
	}

	if childCell, ok := c.system.lookupCell(child); ok {
		_ = childCell.offerSystem(RestartMsg{Reason: reason})
	}
}

// runRestart executes the restart sequence of §4.4 steps 1-6 against this
// cell (the failing child, receiving its own RestartMsg).
func (c *ActorCell) runRestart(reason error) {
	c.mailbox.Suspend()

	c.mu.Lock()
	children := make([]PID, 0, len(c.childOrder))
	for _, name := range c.childOrder {
		children = append(children, c.children[name])
	}
	lastMsg := c.lastUserMsg
	hasLastMsg := c.hasLastUserMsg
	old := c.instance
	c.mu.Unlock()

	for _, childPID := range children {
		c.stopChild(childPID)
	}
	c.waitForChildTermination(children, 5*time.Second)

	if preRestarter, ok := old.(PreRestarter); ok {
		preRestarter.PreRestart(reason, lastMsg, hasLastMsg)
	}

	fresh := c.props.Factory()

	c.mu.Lock()
	c.instance = fresh
	c.behaviorStack = []ReceiveFunc{fresh.Receive}
	c.mu.Unlock()

	if postRestarter, ok := fresh.(PostRestarter); ok {
		postRestarter.PostRestart(reason)
	}

	c.system.events.Publish(LifecycleEvent{PID: c.pid, Stage: Restarted})

	c.mailbox.Resume()
	c.dispatcher.RequestSchedule()
}

// waitForChildTermination blocks the current turn briefly for children to
// report Terminated. This is the one place a turn deliberately waits
// rather than returning, since the restart sequence's correctness depends
// on children being fully torn down (§4.4 step 2) before pre_restart
// runs; it is bounded by timeout so a stuck child cannot wedge the parent
// forever.
func (c *ActorCell) waitForChildTermination(children []PID, timeout time.Duration) {
	if len(children) == 0 {
		return
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		remaining := len(c.pendingStops)
		c.mu.Unlock()
		if remaining == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// PreRestarter is an optional hook an Actor implements to observe the
// reason and last in-flight message before a restart discards its state.
type PreRestarter interface {
	PreRestart(reason error, lastMessage AnyMessage, hasLastMessage bool)
}

// PostRestarter is an optional hook a freshly constructed Actor
// implements to observe why the restart happened.
type PostRestarter interface {
	PostRestart(reason error)
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &panicValue{r}
}

type panicValue struct{ v any }

func (p *panicValue) Error() string {
	return "panic: " + toString(p.v)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if stringer, ok := v.(interface{ String() string }); ok {
		return stringer.String()
	}
	return "non-string panic value"
}
