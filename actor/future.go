package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Promise is the write side of a one-shot Future. Complete/Fail may be
// called at most once; later calls are ignored, mirroring the teacher's
// single-assignment promise discipline.
type Promise[T any] struct {
	ch   chan fn.Result[T]
	once sync.Once
}

// NewPromise constructs an unresolved promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{ch: make(chan fn.Result[T], 1)}
}

// Complete resolves the promise successfully with val.
func (p *Promise[T]) Complete(val T) {
	p.once.Do(func() {
		p.ch <- fn.Ok(val)
	})
}

// Fail resolves the promise with err.
func (p *Promise[T]) Fail(err error) {
	p.once.Do(func() {
		p.ch <- fn.Err[T](err)
	})
}

// Future returns the read-only side of this promise.
func (p *Promise[T]) Future() Future[T] {
	return Future[T]{ch: p.ch}
}

// Future is the read side of a Promise: a one-shot, awaitable result.
type Future[T any] struct {
	ch <-chan fn.Result[T]
}

// Await blocks until the promise resolves or ctx is done, whichever comes
// first. A context cancellation never races with a true resolution — if
// Await observes ctx.Done() it returns immediately without consuming a
// later Complete/Fail, since the promise's channel is buffered by one.
func (f Future[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case r := <-f.ch:
		return r
	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// AskResponse is the future returned by ActorRef.Ask: it resolves to the
// reply envelope, or an *AskError classifying why no reply arrived.
type AskResponse struct {
	future Future[AnyMessage]
}

// Await blocks for the reply or ctx's expiry. A ctx expiry surfaces as an
// *AskError{Kind: AskTimeout} rather than the bare context error, so
// callers can uniformly type-switch on AskError per §7.
func (a AskResponse) Await(ctx context.Context) fn.Result[AnyMessage] {
	select {
	case r := <-a.future.ch:
		return r
	case <-ctx.Done():
		return fn.Err[AnyMessage](&AskError{Kind: AskTimeout, cause: ctx.Err()})
	}
}
