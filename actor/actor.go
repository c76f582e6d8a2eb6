// Package actor implements an asynchronous actor runtime: stateful values
// that each run on a dedicated goroutine, exchange typed messages and queries
// through mailboxes, observe each other's lifecycle through supervision
// links, and recover from panics.
//
// State types opt into lifecycle behavior by implementing the optional
// capability interfaces below; anything not implemented falls back to the
// documented default. Hooks receive a weak self-reference so they cannot
// accidentally keep their own actor alive during shutdown.
package actor

import (
	"context"
	"reflect"
	"runtime"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Named lets a state type override the name used in logs and metrics. The
// default is the state's type name.
type Named interface {
	// ActorName returns the display name for this actor.
	ActorName() string
}

// QueryLimiter lets a state type bound how many read-only queries may run
// against it concurrently. The default is the host CPU count.
type QueryLimiter interface {
	// MaxConcurrentQueries returns the query concurrency bound. Values
	// below one are treated as one.
	MaxConcurrentQueries() int
}

// BoundedActor lets a state type choose a bounded mailbox with the returned
// capacity. Without it (or with a non-positive capacity), the actor gets an
// unbounded mailbox.
type BoundedActor interface {
	// MailboxCapacity returns the bounded mailbox capacity.
	MailboxCapacity() int
}

// Startable is the optional start hook, invoked inside the actor's own
// goroutine before any signal is processed. A non-nil error is fatal: the
// actor stops with PanickedReason without entering the dispatch loop (the
// stop hook still runs).
type Startable[A any] interface {
	OnStart(ctx context.Context, self *WeakActorRef[A]) error
}

// PanicRecoverer is the optional panic hook. It observes every handler panic
// (and every unobserved error reply surfaced through the panic path) and
// decides whether the actor stops: Some(reason) stops it, None resumes
// dispatch.
//
// Without this hook the default is Some(PanickedReason), matching the
// fail-fast supervision posture. An error returned by the hook itself is
// fatal and bypasses further panic handling.
type PanicRecoverer[A any] interface {
	OnPanic(ctx context.Context, self *WeakActorRef[A],
		panicErr *PanicError) (fn.Option[StopReason], error)
}

// LinkObserver is the optional link-death hook. The default policy ignores
// peers that stopped normally and stops the actor with LinkDiedReason for any
// abnormal peer termination.
type LinkObserver[A any] interface {
	OnLinkDied(ctx context.Context, self *WeakActorRef[A], id ActorID,
		reason StopReason) (fn.Option[StopReason], error)
}

// Stoppable is the optional stop hook, invoked exactly once after the
// dispatch loop exits and the mailbox has closed, before link deaths are
// propagated to peers. The state is not touched by the runtime afterwards.
type Stoppable[A any] interface {
	OnStop(ctx context.Context, self *WeakActorRef[A],
		reason StopReason) error
}

// actorName resolves the display name for a state value: the Named override
// when present, otherwise the bare type name.
func actorName[A any](state *A) string {
	if named, ok := any(state).(Named); ok {
		return named.ActorName()
	}

	return reflect.TypeOf(state).Elem().String()
}

// maxConcurrentQueries resolves the query concurrency bound for a state
// value.
func maxConcurrentQueries[A any](state *A) int {
	if limiter, ok := any(state).(QueryLimiter); ok {
		if n := limiter.MaxConcurrentQueries(); n > 0 {
			return n
		}
		return 1
	}

	return runtime.NumCPU()
}

// defaultMailbox builds the mailbox a state type asks for: bounded when the
// BoundedActor capability is present with a positive capacity, unbounded
// otherwise.
func defaultMailbox[A any](state *A) Mailbox[A] {
	if bounded, ok := any(state).(BoundedActor); ok {
		if capacity := bounded.MailboxCapacity(); capacity > 0 {
			return NewBoundedMailbox[A](capacity)
		}
	}

	return NewUnboundedMailbox[A]()
}

// defaultOnLinkDied is the link-death policy applied when the state type does
// not implement LinkObserver: ignore normal peer stops, die on anything else.
func defaultOnLinkDied(id ActorID, reason StopReason) fn.Option[StopReason] {
	if reasonIsNormal(reason) {
		return fn.None[StopReason]()
	}

	return fn.Some[StopReason](LinkDiedReason{ID: id, Reason: reason})
}
