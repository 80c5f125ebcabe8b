package actorutil

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// AskAwait sends an Ask and blocks until the response is available,
// unpacking the Result directly into (value, error).
func AskAwait[M any, R any](
	ctx context.Context,
	ref TypedRef[M, R],
	msg M,
) (R, error) {

	return ref.Ask(ctx, msg).Await(ctx).Unpack()
}

// AskAwaitTyped is like AskAwait but asserts the response into a further
// concrete type T, useful when R is itself a union/interface type.
func AskAwaitTyped[M any, R any, T any](
	ctx context.Context,
	ref TypedRef[M, R],
	msg M,
) (T, error) {

	resp, err := AskAwait(ctx, ref, msg)
	if err != nil {
		var zero T
		return zero, err
	}

	typed, ok := any(resp).(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf(
			"unexpected response type: got %T, want %T", resp, zero,
		)
	}

	return typed, nil
}

// TellAll fires msg at every ref, fire-and-forget.
func TellAll[M any, R any](refs []TypedRef[M, R], msg M) {
	for _, ref := range refs {
		_ = ref.Tell(msg)
	}
}

// ParallelAsk sends msgs[i] to refs[i] concurrently and collects results
// in input order. refs and msgs must have the same length.
func ParallelAsk[M any, R any](
	ctx context.Context,
	refs []TypedRef[M, R],
	msgs []M,
) []fn.Result[R] {

	if len(refs) != len(msgs) {
		panic("actorutil: refs and msgs must have same length")
	}

	futures := make([]TypedFuture[R], len(refs))
	for i, ref := range refs {
		futures[i] = ref.Ask(ctx, msgs[i])
	}

	results := make([]fn.Result[R], len(futures))
	for i, f := range futures {
		results[i] = f.Await(ctx)
	}

	return results
}

// ParallelAskSame sends the same msg to every ref concurrently and
// collects results in input order.
func ParallelAskSame[M any, R any](
	ctx context.Context,
	refs []TypedRef[M, R],
	msg M,
) []fn.Result[R] {

	futures := make([]TypedFuture[R], len(refs))
	for i, ref := range refs {
		futures[i] = ref.Ask(ctx, msg)
	}

	results := make([]fn.Result[R], len(futures))
	for i, f := range futures {
		results[i] = f.Await(ctx)
	}

	return results
}

// FirstSuccess sends msg to every ref concurrently and returns the first
// successful reply, cancelling the rest. If every ref fails, the last
// observed error is returned.
func FirstSuccess[M any, R any](
	ctx context.Context,
	refs []TypedRef[M, R],
	msg M,
) (R, error) {

	if len(refs) == 0 {
		var zero R
		return zero, fmt.Errorf("actorutil: no actors provided")
	}

	type indexedResult struct {
		result fn.Result[R]
		idx    int
	}
	resultCh := make(chan indexedResult, len(refs))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i, ref := range refs {
		go func(idx int, r TypedRef[M, R]) {
			result := r.Ask(ctx, msg).Await(ctx)
			select {
			case resultCh <- indexedResult{result: result, idx: idx}:
			case <-ctx.Done():
			}
		}(i, ref)
	}

	var lastErr error
	received := 0
	for received < len(refs) {
		select {
		case res := <-resultCh:
			received++
			val, err := res.result.Unpack()
			if err == nil {
				cancel()
				return val, nil
			}
			lastErr = err

		case <-ctx.Done():
			var zero R
			return zero, ctx.Err()
		}
	}

	var zero R
	return zero, lastErr
}

// MapResponses transforms every successful result with mapFn, passing
// error results through unchanged.
func MapResponses[R any, T any](
	results []fn.Result[R],
	mapFn func(R) T,
) []fn.Result[T] {

	mapped := make([]fn.Result[T], len(results))
	for i, r := range results {
		val, err := r.Unpack()
		if err != nil {
			mapped[i] = fn.Err[T](err)
		} else {
			mapped[i] = fn.Ok(mapFn(val))
		}
	}
	return mapped
}

// CollectSuccesses returns only the successful values from results,
// discarding errors.
func CollectSuccesses[R any](results []fn.Result[R]) []R {
	var successes []R
	for _, r := range results {
		if val, err := r.Unpack(); err == nil {
			successes = append(successes, val)
		}
	}
	return successes
}

// AllSucceeded reports whether every result in results succeeded.
func AllSucceeded[R any](results []fn.Result[R]) bool {
	for _, r := range results {
		if _, err := r.Unpack(); err != nil {
			return false
		}
	}
	return true
}

// FirstError returns the first error among results, or nil if all
// succeeded.
func FirstError[R any](results []fn.Result[R]) error {
	for _, r := range results {
		if _, err := r.Unpack(); err != nil {
			return err
		}
	}
	return nil
}
