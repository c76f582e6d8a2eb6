package actor

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Message is implemented by payload types an actor processes with exclusive
// mutable access to its state. Message handlers run strictly one at a time;
// no query is in flight while a message runs.
//
// The returned Reply carries an erased value that the caller recovers with
// Await using its static knowledge of the handler's reply type.
type Message[A any] interface {
	// Handle processes the payload against the actor state. The context
	// is the actor's lifecycle context: it is cancelled when the actor is
	// killed, never by caller-side timeouts.
	Handle(ctx context.Context, state *A, mctx *Context[A]) Reply
}

// Query is implemented by payload types an actor processes with shared
// read-only access to its state. Up to MaxConcurrentQueries queries may run
// simultaneously, but never while a message handler is running.
//
// Query handlers receive the state pointer for symmetry with Message but must
// not mutate through it; the runtime does not serialize them against each
// other.
type Query[A any] interface {
	// Query processes the payload against the actor state.
	Query(ctx context.Context, state *A, qctx *Context[A]) Reply
}

// Reply is the capability every handler return value exposes: the runtime
// forwards the value to a waiting caller, and inspects the error half to
// detect failures that nobody is waiting on.
type Reply interface {
	// ReplyValue returns the erased success value forwarded to the
	// caller.
	ReplyValue() any

	// ReplyErr returns the error half of the reply, or nil on success.
	// An error reply with no caller waiting is re-raised inside the
	// actor so supervision observes the failure.
	ReplyErr() error
}

// valueReply is the ordinary successful reply.
type valueReply struct {
	v any
}

func (r valueReply) ReplyValue() any { return r.v }

func (r valueReply) ReplyErr() error { return nil }

// errReply is a failed reply.
type errReply struct {
	err error
}

func (r errReply) ReplyValue() any { return nil }

func (r errReply) ReplyErr() error { return r.err }

// Value wraps a plain value as a successful Reply.
func Value[T any](v T) Reply {
	return valueReply{v: v}
}

// Fail wraps an error as a failed Reply. If the caller used Ask, the error is
// delivered to it; if the caller used Tell, the loop re-raises the error
// through the panic path so the failure is not silently lost.
func Fail(err error) Reply {
	return errReply{err: err}
}

// FromResult adapts an fn.Result into a Reply, mapping Ok to Value and Err to
// Fail.
func FromResult[T any](res fn.Result[T]) Reply {
	value, err := res.Unpack()
	if err != nil {
		return Fail(err)
	}

	return Value(value)
}

// DelegatedReply is the marker a handler returns after taking the reply
// sender out of its Context, signaling that it (or whoever it handed the
// sender to) will resolve the reply later and the loop must not auto-reply
// from the return value.
type DelegatedReply struct{}

func (DelegatedReply) ReplyValue() any { return nil }

func (DelegatedReply) ReplyErr() error { return nil }
