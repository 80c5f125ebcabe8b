package actor

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// MailboxConfig describes the mailbox a cell is spawned with.
type MailboxConfig struct {
	Capacity      MailboxCapacity
	Overflow      OverflowPolicy
	WarnThreshold uint
}

// DefaultMailboxConfig returns a mailbox whose user lane is bounded at 100
// messages under the DropNewest policy, matching the teacher's
// DefaultConfig MailboxCapacity of 100.
func DefaultMailboxConfig() MailboxConfig {
	return MailboxConfig{
		Capacity: BoundedCapacity(100),
		Overflow: DropNewest,
	}
}

// DispatcherConfig describes a cell's turn-based scheduling parameters.
type DispatcherConfig struct {
	// Throughput bounds how many user messages a single turn processes.
	Throughput int

	// ExecutorID selects a named toolbox.Executor registered with the
	// owning ActorSystem; the empty string selects the system default.
	ExecutorID string
}

// DefaultDispatcherConfig returns a throughput of 30, the teacher's usual
// per-turn batch size for bounded-latency fairness across many cells
// sharing a pool executor.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{Throughput: 30}
}

// StrategyKind selects how a supervisor's directive applies across
// siblings on failure.
type StrategyKind uint8

const (
	// OneForOne applies the decider's directive only to the failing
	// child.
	OneForOne StrategyKind = iota

	// AllForOne applies the decider's directive to the failing child
	// and every sibling, in insertion order.
	AllForOne
)

// DeciderFunc maps a child's failure to a supervision Directive.
type DeciderFunc func(childPath ActorPath, cause error) Directive

// DefaultDecider restarts on any ActorError, recoverable or fatal,
// escalating anything it doesn't recognize as an ActorError at all.
func DefaultDecider(_ ActorPath, cause error) Directive {
	if _, ok := cause.(*ActorError); ok {
		return DirectiveRestart
	}
	return DirectiveEscalate
}

// SupervisorOptions configures a cell's supervision of its children.
type SupervisorOptions struct {
	Strategy      StrategyKind
	Decider       DeciderFunc
	MaxRestarts   int
	RestartWindow time.Duration
}

// DefaultSupervisorOptions allows one restart per second before
// escalating to Stop, matching E2E-5's max:1/window:1s scenario.
func DefaultSupervisorOptions() SupervisorOptions {
	return SupervisorOptions{
		Strategy:      OneForOne,
		Decider:       DefaultDecider,
		MaxRestarts:   1,
		RestartWindow: time.Second,
	}
}

// Props bundles everything needed to spawn a cell: its behavior factory
// plus mailbox, dispatcher, and supervisor configuration.
type Props struct {
	Factory    ActorFactory
	Name       fn.Option[string]
	Mailbox    MailboxConfig
	Dispatcher DispatcherConfig
	Supervisor SupervisorOptions
}

// PropsOption customizes a Props value built by NewProps.
type PropsOption func(*Props)

// NewProps constructs Props around factory with the core's defaults,
// applying opts in order.
func NewProps(factory ActorFactory, opts ...PropsOption) Props {
	p := Props{
		Factory:    factory,
		Mailbox:    DefaultMailboxConfig(),
		Dispatcher: DefaultDispatcherConfig(),
		Supervisor: DefaultSupervisorOptions(),
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithName requests a specific child name instead of an anonymous one.
func WithName(name string) PropsOption {
	return func(p *Props) { p.Name = fn.Some(name) }
}

// WithMailbox overrides the mailbox configuration.
func WithMailbox(cfg MailboxConfig) PropsOption {
	return func(p *Props) { p.Mailbox = cfg }
}

// WithDispatcher overrides the dispatcher configuration.
func WithDispatcher(cfg DispatcherConfig) PropsOption {
	return func(p *Props) { p.Dispatcher = cfg }
}

// WithSupervisor overrides the supervisor configuration.
func WithSupervisor(opts SupervisorOptions) PropsOption {
	return func(p *Props) { p.Supervisor = opts }
}

// Validate reports InvalidProps if the props cannot be used to spawn a
// cell.
func (p Props) Validate() error {
	if p.Factory == nil {
		return &SpawnError{Kind: InvalidProps, Reason: "nil factory"}
	}
	return nil
}
