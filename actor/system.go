package actor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roasbeef/actorcore/toolbox"
)

// SystemConfig bundles the toolbox dependencies and executors an
// ActorSystem is built from. A nil Clock or DefaultExecutor is replaced
// with the same defaults DefaultConfig uses.
type SystemConfig struct {
	Clock           toolbox.Clock
	DefaultExecutor toolbox.Executor
	Executors       map[string]toolbox.Executor
	Timers          TimerService
}

// DefaultConfig returns a SystemConfig backed by the standard library
// clock and a small pool executor, suitable for tests and the demo CLI.
func DefaultConfig() SystemConfig {
	return SystemConfig{
		Clock:           toolbox.StdClock{},
		DefaultExecutor: toolbox.NewPoolExecutor(4, 256),
	}
}

// ActorSystem is the root of an actor hierarchy: it allocates PIDs, owns
// the cell map, the three guardians, the event stream, the dead-letter
// router, and the extension registry.
type ActorSystem struct {
	instanceID string
	authority  string

	pidCounter atomic.Uint64

	mu    sync.RWMutex
	cells map[PID]*ActorCell
	names map[string]PID

	ephemMu   sync.Mutex
	ephemeral map[PID]*Promise[AnyMessage]

	events      *EventStream
	deadLetters *DeadLetterRouter
	extensions  *ExtensionRegistry

	clock           toolbox.Clock
	defaultExecutor toolbox.Executor
	executors       map[string]toolbox.Executor
	timers          TimerService

	rootGuardian   *ActorCell
	systemGuardian *ActorCell
	userGuardian   *ActorCell

	shutdownCtx context.Context
	shutdownFn  context.CancelFunc
	cellWg      sync.WaitGroup

	terminatedOnce sync.Once
	terminated     chan struct{}
}

// NewActorSystem constructs a system with DefaultConfig.
func NewActorSystem() (*ActorSystem, error) {
	return NewActorSystemWithConfig(DefaultConfig())
}

// NewActorSystemWithConfig constructs a system using cfg, spawning the
// three guardians before returning.
func NewActorSystemWithConfig(cfg SystemConfig) (*ActorSystem, error) {
	if cfg.Clock == nil {
		cfg.Clock = toolbox.StdClock{}
	}
	if cfg.DefaultExecutor == nil {
		cfg.DefaultExecutor = toolbox.NewPoolExecutor(4, 256)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sys := &ActorSystem{
		instanceID:      uuid.NewString(),
		cells:           make(map[PID]*ActorCell),
		names:           make(map[string]PID),
		ephemeral:       make(map[PID]*Promise[AnyMessage]),
		events:          NewEventStream(),
		extensions:      NewExtensionRegistry(),
		clock:           cfg.Clock,
		defaultExecutor: cfg.DefaultExecutor,
		executors:       cfg.Executors,
		timers:          cfg.Timers,
		shutdownCtx:     ctx,
		shutdownFn:      cancel,
		terminated:      make(chan struct{}),
	}
	sys.authority = "local-" + sys.instanceID
	sys.deadLetters = NewDeadLetterRouter(sys.events)

	sys.rootGuardian = sys.spawnGuardian(GuardianRoot, "root", PID{}, false)
	sys.systemGuardian = sys.spawnGuardian(GuardianSystem, "system", sys.rootGuardian.pid, true)
	sys.userGuardian = sys.spawnGuardian(GuardianUser, "user", sys.rootGuardian.pid, true)

	sys.registerChildUnderParent(sys.rootGuardian, "system", sys.systemGuardian.pid)
	sys.registerChildUnderParent(sys.rootGuardian, "user", sys.userGuardian.pid)

	return sys, nil
}

func (s *ActorSystem) spawnGuardian(kind GuardianKind, name string, parent PID, hasParent bool) *ActorCell {
	pid := s.nextPID()
	path := NewActorPath(kind, s.authority)

	props := NewProps(func() Actor {
		return NewFunctionActor(func(ctx *Context, view AnyMessageView) error {
			pid := ctx.PID()
			s.deadLetters.Route(*view.msg, ReasonMissingRecipient, nil, &pid)
			return nil
		})
	}, WithMailbox(MailboxConfig{Capacity: UnboundedCapacity()}))

	cell := newActorCell(s, pid, path, parent, hasParent, name, props)

	s.mu.Lock()
	s.cells[pid] = cell
	s.mu.Unlock()

	cell.start()
	return cell
}

func (s *ActorSystem) registerChildUnderParent(parent *ActorCell, name string, pid PID) {
	parent.mu.Lock()
	parent.children[name] = pid
	parent.childOrder = append(parent.childOrder, name)
	parent.mu.Unlock()
}

// nextPID allocates a monotonically increasing PID. Since Value is never
// reused, Generation is fixed at 1 for the lifetime of this system: there
// is never a "reused slot" for it to distinguish.
func (s *ActorSystem) nextPID() PID {
	return PID{Value: s.pidCounter.Add(1), Generation: 1}
}

// UserGuardianRef returns a reference to the user guardian, the parent of
// every actor spawned by Spawn.
func (s *ActorSystem) UserGuardianRef() ActorRef {
	return s.userGuardian.Ref()
}

// EventStream returns the system's event stream.
func (s *ActorSystem) EventStream() *EventStream {
	return s.events
}

// DeadLetters returns the system's dead-letter router.
func (s *ActorSystem) DeadLetters() *DeadLetterRouter {
	return s.deadLetters
}

// Extensions returns the system's extension registry.
func (s *ActorSystem) Extensions() *ExtensionRegistry {
	return s.extensions
}

// Spawn creates a new actor under the user guardian.
func (s *ActorSystem) Spawn(props Props) (ActorRef, error) {
	return s.spawnChild(s.userGuardian, props)
}

func (s *ActorSystem) spawnChild(parent *ActorCell, props Props) (ActorRef, error) {
	select {
	case <-s.shutdownCtx.Done():
		return nil, &SpawnError{Kind: SystemUnavailable}
	default:
	}

	if err := props.Validate(); err != nil {
		return nil, err
	}

	hasName := props.Name.IsSome()
	name := props.Name.UnwrapOr("")
	pid := s.nextPID()
	if !hasName {
		name = anonymousName(pid)
	}

	parent.mu.Lock()
	if _, exists := parent.children[name]; exists {
		parent.mu.Unlock()
		return nil, &SpawnError{Kind: NameConflict, Name: name}
	}
	path, err := parent.path.Child(name)
	if err != nil {
		parent.mu.Unlock()
		return nil, &SpawnError{Kind: InvalidProps, Name: name, Reason: err.Error()}
	}
	parent.children[name] = pid
	parent.childOrder = append(parent.childOrder, name)
	parent.mu.Unlock()

	cell := newActorCell(s, pid, path, parent.pid, true, name, props)

	s.mu.Lock()
	s.cells[pid] = cell
	s.names[path.HashKey(false)] = pid
	s.mu.Unlock()

	s.cellWg.Add(1)
	cell.start()

	return cell.Ref(), nil
}

func (s *ActorSystem) lookupCell(pid PID) (*ActorCell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cell, ok := s.cells[pid]
	return cell, ok
}

// StopActor requests termination of the cell at pid, as if its parent had
// called ctx.Stop on it. It is a no-op if pid no longer resolves to a
// live cell.
func (s *ActorSystem) StopActor(pid PID) error {
	cell, ok := s.lookupCell(pid)
	if !ok {
		return nil
	}
	return cell.offerSystem(StopMsg{})
}

// ResolveByPath looks up a live cell by its full path, for callers that
// only have a path (e.g. deserialized from a log) rather than a PID. A
// path with no occupant returns ok=false with a nil error; ErrInvalidName
// guards only the empty-path case, mirroring the teacher receptionist's
// FindInReceptionist shape.
func (s *ActorSystem) ResolveByPath(path ActorPath) (ActorRef, bool, error) {
	if len(path.segments) == 0 {
		return nil, false, ErrInvalidName
	}
	key := path.HashKey(false)

	s.mu.RLock()
	pid, ok := s.names[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	cell, ok := s.lookupCell(pid)
	if !ok {
		return nil, false, nil
	}
	return cell.Ref(), true, nil
}

func (s *ActorSystem) removeCell(pid PID) {
	s.mu.Lock()
	cell, ok := s.cells[pid]
	if ok {
		delete(s.cells, pid)
		delete(s.names, cell.path.HashKey(false))
	}
	s.mu.Unlock()

	// Only cells created by spawnChild were added to cellWg; guardian
	// paths have no segments.
	if ok && len(cell.path.segments) > 0 {
		s.cellWg.Done()
	}
}

// ResolveRef resolves pid to a usable ActorRef: an ephemeral Ask reply
// target, a live cell, or a deadRef that routes to dead letters.
func (s *ActorSystem) ResolveRef(pid PID) ActorRef {
	s.ephemMu.Lock()
	if promise, ok := s.ephemeral[pid]; ok {
		s.ephemMu.Unlock()
		return &ephemeralRef{pid: pid, promise: promise, system: s}
	}
	s.ephemMu.Unlock()

	if cell, ok := s.lookupCell(pid); ok {
		return cell.Ref()
	}

	return &deadRef{pid: pid, deadLetters: s.deadLetters}
}

func (s *ActorSystem) registerEphemeral(promise *Promise[AnyMessage]) PID {
	pid := s.nextPID()
	s.ephemMu.Lock()
	s.ephemeral[pid] = promise
	s.ephemMu.Unlock()
	return pid
}

func (s *ActorSystem) removeEphemeral(pid PID) {
	s.ephemMu.Lock()
	delete(s.ephemeral, pid)
	s.ephemMu.Unlock()
}

func (s *ActorSystem) executorFor(id string) toolbox.Executor {
	if id == "" {
		return s.defaultExecutor
	}
	if ex, ok := s.executors[id]; ok {
		return ex
	}
	return s.defaultExecutor
}

// Shutdown cancels the system context first (closing the spawn race
// window), then broadcasts Stop root-downward and waits for every
// non-guardian cell to terminate or ctx to expire.
func (s *ActorSystem) Shutdown(ctx context.Context) error {
	s.shutdownFn()

	s.mu.RLock()
	root := s.rootGuardian
	s.mu.RUnlock()

	_ = root.offerSystem(StopMsg{})

	done := make(chan struct{})
	go func() {
		s.cellWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.markTerminated()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ActorSystem) markTerminated() {
	s.terminatedOnce.Do(func() {
		close(s.terminated)
	})
}

// WhenTerminated returns a future that resolves once Shutdown has fully
// drained the cell tree.
func (s *ActorSystem) WhenTerminated() Future[struct{}] {
	promise := NewPromise[struct{}]()
	go func() {
		<-s.terminated
		promise.Complete(struct{}{})
	}()
	return promise.Future()
}

// SubscribeEventStream registers sink on the system's event stream.
func (s *ActorSystem) SubscribeEventStream(sink chan<- Event, filter func(Event) bool) *Subscription {
	return s.events.Subscribe(sink, filter)
}

// ephemeralRef backs the reply-to PID handed out by Ask: Tell completes
// the waiting promise instead of enqueueing into any mailbox.
type ephemeralRef struct {
	pid     PID
	promise *Promise[AnyMessage]
	system  *ActorSystem
}

var _ ActorRef = (*ephemeralRef)(nil)

func (r *ephemeralRef) PID() PID        { return r.pid }
func (r *ephemeralRef) Path() ActorPath { return ActorPath{} }

func (r *ephemeralRef) Tell(msg AnyMessage) error {
	r.promise.Complete(msg)
	r.system.removeEphemeral(r.pid)
	return nil
}

func (r *ephemeralRef) Ask(_ context.Context, _ AnyMessage) AskResponse {
	promise := NewPromise[AnyMessage]()
	promise.Fail(fmt.Errorf("actor: cannot ask an ephemeral reply target"))
	return AskResponse{future: promise.Future()}
}

func (r *ephemeralRef) Watch(PID) error   { return nil }
func (r *ephemeralRef) Unwatch(PID) error { return nil }
