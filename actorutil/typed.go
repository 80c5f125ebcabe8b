// Package actorutil supplies generic, type-safe sugar over the
// non-generic actor.ActorRef/actor.AnyMessage core: a TypedRef[M, R]
// wrapper for callers who know their actor's concrete message and
// response types, plus a set of small composable helpers for fan-out
// asks across many refs.
package actorutil

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/actorcore/actor"
)

// TypedRef wraps an actor.ActorRef, erasing the AnyMessage boundary for
// callers that statically know their actor speaks M and replies with R.
type TypedRef[M any, R any] struct {
	ref actor.ActorRef
}

// NewTypedRef wraps ref as a TypedRef[M, R]. The caller is responsible
// for ref actually being the typed actor it claims to be; a mismatched
// wrap surfaces as an Ask error at the first call, not a panic.
func NewTypedRef[M any, R any](ref actor.ActorRef) TypedRef[M, R] {
	return TypedRef[M, R]{ref: ref}
}

// PID returns the wrapped ref's identifier.
func (t TypedRef[M, R]) PID() actor.PID { return t.ref.PID() }

// Untyped returns the underlying non-generic ActorRef.
func (t TypedRef[M, R]) Untyped() actor.ActorRef { return t.ref }

// Tell wraps msg in an AnyMessage envelope and fires it at the target.
func (t TypedRef[M, R]) Tell(msg M) error {
	return t.ref.Tell(actor.NewAnyMessage(msg))
}

// Ask wraps msg, sends it, and returns a TypedFuture that downcasts the
// reply to R once it arrives.
func (t TypedRef[M, R]) Ask(ctx context.Context, msg M) TypedFuture[R] {
	return TypedFuture[R]{resp: t.ref.Ask(ctx, actor.NewAnyMessage(msg))}
}

// TypedFuture adapts actor.AskResponse's AnyMessage result into a typed
// fn.Result[R], failing with a descriptive error on a type mismatch
// rather than panicking.
type TypedFuture[R any] struct {
	resp actor.AskResponse
}

// Await blocks for the reply or ctx's expiry, downcasting on arrival.
func (f TypedFuture[R]) Await(ctx context.Context) fn.Result[R] {
	result := f.resp.Await(ctx)

	reply, err := result.Unpack()
	if err != nil {
		return fn.Err[R](err)
	}

	typed, ok := actor.Downcast[R](reply.View())
	if !ok {
		return fn.Err[R](fmt.Errorf(
			"actorutil: unexpected response type %s", reply.TypeID(),
		))
	}
	return fn.Ok(typed)
}
