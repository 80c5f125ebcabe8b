package actorutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/actorcore/actor"
)

// Pool distributes messages across a fixed set of identically-behaved
// actors using round-robin scheduling, for horizontal scaling of a
// stateless worker behavior.
type Pool[M any, R any] struct {
	id    string
	refs  []TypedRef[M, R]
	next  atomic.Uint64
}

// PoolConfig configures a new actor pool.
type PoolConfig[M any, R any] struct {
	// ID names the pool; each member is spawned as "{ID}-{index}".
	ID string

	// Size is the number of actor instances to create.
	Size int

	// System is the actor system each member is spawned under.
	System *actor.ActorSystem

	// Factory builds the behavior for pool member idx.
	Factory func(idx int) actor.ActorFactory

	// PropsOptions customizes every member's Props beyond the name.
	PropsOptions []actor.PropsOption
}

// NewPool spawns cfg.Size actors under cfg.System and returns a Pool
// addressing them.
func NewPool[M any, R any](cfg PoolConfig[M, R]) (*Pool[M, R], error) {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}

	p := &Pool[M, R]{
		id:   cfg.ID,
		refs: make([]TypedRef[M, R], cfg.Size),
	}

	for i := 0; i < cfg.Size; i++ {
		opts := append(
			[]actor.PropsOption{actor.WithName(fmt.Sprintf("%s-%d", cfg.ID, i))},
			cfg.PropsOptions...,
		)
		props := actor.NewProps(cfg.Factory(i), opts...)

		ref, err := cfg.System.Spawn(props)
		if err != nil {
			return nil, fmt.Errorf("actorutil: spawning pool member %d: %w", i, err)
		}
		p.refs[i] = NewTypedRef[M, R](ref)
	}

	return p, nil
}

// ID returns the pool's identifier.
func (p *Pool[M, R]) ID() string { return p.id }

// Size returns the number of actors in the pool.
func (p *Pool[M, R]) Size() int { return len(p.refs) }

// Actors returns a copy of the pool's member refs.
func (p *Pool[M, R]) Actors() []TypedRef[M, R] {
	out := make([]TypedRef[M, R], len(p.refs))
	copy(out, p.refs)
	return out
}

func (p *Pool[M, R]) nextRef() TypedRef[M, R] {
	idx := p.next.Add(1) % uint64(len(p.refs))
	return p.refs[idx]
}

// Tell fires msg at the next actor in round-robin order.
func (p *Pool[M, R]) Tell(msg M) error {
	return p.nextRef().Tell(msg)
}

// Ask sends msg to the next actor in round-robin order and returns its
// future.
func (p *Pool[M, R]) Ask(ctx context.Context, msg M) TypedFuture[R] {
	return p.nextRef().Ask(ctx, msg)
}

// Broadcast fires msg at every actor in the pool.
func (p *Pool[M, R]) Broadcast(msg M) {
	TellAll(p.refs, msg)
}

// BroadcastAsk sends msg to every actor in the pool and returns their
// results in member order.
func (p *Pool[M, R]) BroadcastAsk(ctx context.Context, msg M) []fn.Result[R] {
	return ParallelAskSame(ctx, p.refs, msg)
}

// Stop requests termination of every member and returns immediately;
// callers that need to observe completion should Watch each member
// first.
func (p *Pool[M, R]) Stop(system *actor.ActorSystem) {
	for _, ref := range p.refs {
		_ = system.StopActor(ref.PID())
	}
}

// PoolRef adapts a Pool to the TypedRef-shaped Tell/Ask surface so a pool
// can be handed anywhere a single TypedRef is expected.
type PoolRef[M any, R any] struct {
	pool *Pool[M, R]
}

// NewPoolRef wraps pool as a round-robin TypedRef-like value.
func NewPoolRef[M any, R any](pool *Pool[M, R]) *PoolRef[M, R] {
	return &PoolRef[M, R]{pool: pool}
}

// Tell fires msg at the next pool member.
func (r *PoolRef[M, R]) Tell(msg M) error { return r.pool.Tell(msg) }

// Ask sends msg to the next pool member.
func (r *PoolRef[M, R]) Ask(ctx context.Context, msg M) TypedFuture[R] {
	return r.pool.Ask(ctx, msg)
}
