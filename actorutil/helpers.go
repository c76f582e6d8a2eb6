package actorutil

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/troupe/actor"
)

// AskAwait sends a message and blocks until the typed reply is available.
func AskAwait[R any, A any](ctx context.Context, ref *actor.ActorRef[A],
	msg actor.Message[A]) (R, error) {

	return actor.Await[R](ctx, ref.Ask(ctx, msg))
}

// QueryAwait sends a query and blocks until the typed reply is available.
func QueryAwait[R any, A any](ctx context.Context, ref *actor.ActorRef[A],
	q actor.Query[A]) (R, error) {

	return actor.Await[R](ctx, ref.Query(ctx, q))
}

// TellAll fire-and-forgets the same message to every reference in the slice
// and returns the number of mailboxes that accepted it.
func TellAll[A any](ctx context.Context, refs []*actor.ActorRef[A],
	msg actor.Message[A]) int {

	accepted := 0
	for _, ref := range refs {
		if err := ref.Tell(ctx, msg); err == nil {
			accepted++
		}
	}

	return accepted
}

// AwaitAll collects the typed results of a batch of reply futures, in input
// order.
func AwaitAll[R any](ctx context.Context,
	futures []*actor.ReplyFuture) []fn.Result[R] {

	results := make([]fn.Result[R], len(futures))
	for i, fut := range futures {
		results[i] = actor.AwaitResult[R](ctx, fut)
	}

	return results
}

// ParallelAskSame sends the same message to every reference concurrently and
// collects all typed results in input order.
func ParallelAskSame[R any, A any](ctx context.Context,
	refs []*actor.ActorRef[A], msg actor.Message[A]) []fn.Result[R] {

	futures := make([]*actor.ReplyFuture, len(refs))
	for i, ref := range refs {
		futures[i] = ref.Ask(ctx, msg)
	}

	return AwaitAll[R](ctx, futures)
}

// FirstSuccess sends the same message to every reference concurrently and
// returns the first successful typed reply. If every actor fails, the last
// error is returned.
func FirstSuccess[R any, A any](ctx context.Context,
	refs []*actor.ActorRef[A], msg actor.Message[A]) (R, error) {

	var zero R
	if len(refs) == 0 {
		return zero, fmt.Errorf("no actors provided")
	}

	resultCh := make(chan fn.Result[R], len(refs))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, ref := range refs {
		go func(r *actor.ActorRef[A]) {
			resultCh <- actor.AwaitResult[R](
				ctx, r.Ask(ctx, msg),
			)
		}(ref)
	}

	var lastErr error
	for received := 0; received < len(refs); received++ {
		select {
		case res := <-resultCh:
			value, err := res.Unpack()
			if err == nil {
				cancel()
				return value, nil
			}
			lastErr = err

		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}

// MapResults transforms a slice of results using the provided function,
// passing error results through unchanged.
func MapResults[R any, T any](results []fn.Result[R],
	mapFn func(R) T) []fn.Result[T] {

	mapped := make([]fn.Result[T], len(results))
	for i, r := range results {
		value, err := r.Unpack()
		if err != nil {
			mapped[i] = fn.Err[T](err)
		} else {
			mapped[i] = fn.Ok(mapFn(value))
		}
	}

	return mapped
}

// CollectSuccesses filters a slice of results down to the successful values.
func CollectSuccesses[R any](results []fn.Result[R]) []R {
	var successes []R
	for _, r := range results {
		if value, err := r.Unpack(); err == nil {
			successes = append(successes, value)
		}
	}

	return successes
}

// FirstError returns the first error in a slice of results, or nil if all
// succeeded.
func FirstError[R any](results []fn.Result[R]) error {
	for _, r := range results {
		if _, err := r.Unpack(); err != nil {
			return err
		}
	}

	return nil
}
