package actor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ActorID is a process-unique, monotonically increasing identifier assigned
// at spawn. IDs are stable for the actor's lifetime and never reused.
type ActorID uint64

// actorState is the shared core behind every strong and weak reference to a
// single actor: identity, mailbox, link registry, the handle refcounts, and
// the lifecycle barriers the loop releases.
type actorState[A any] struct {
	id   ActorID
	name string

	mbox  Mailbox[A]
	links *links

	// strong counts live strong handles. When it reaches zero the mailbox
	// closes and the loop observes end-of-stream. weak is advisory.
	strong atomic.Int64
	weak   atomic.Int64

	// started closes once the loop has processed the startup barrier
	// signal; stopped closes once the loop has fully exited. stopReason
	// is written before stopped closes and never afterwards.
	started     chan struct{}
	startedOnce sync.Once
	stopped     chan struct{}
	stopReason  StopReason

	// cancel aborts the loop's context; killed records that the abort
	// came from Kill rather than from graceful shutdown.
	cancel context.CancelFunc
	killed atomic.Bool

	// tracker holds the in-flight reply promises the loop owes answers
	// to.
	tracker *replyTracker
}

// ActorRef is a strong, clonable handle to a running actor. Holding at least
// one strong handle keeps the mailbox open; releasing the last one closes it,
// which the actor observes as a graceful end-of-stream stop.
//
// References are compared by ID. The zero value is not usable; obtain
// references from Spawn, Clone or WeakActorRef.Upgrade.
type ActorRef[A any] struct {
	st *actorState[A]

	// withinActor marks the loop's own alias of the reference, handed to
	// handlers through their Context. Sends through it are tagged so the
	// unobserved-error re-raise does not loop.
	withinActor bool

	// released guards this particular handle against double release.
	released atomic.Bool
}

// ID returns the actor's unique identifier.
func (r *ActorRef[A]) ID() ActorID {
	return r.st.id
}

// Name returns the actor's display name.
func (r *ActorRef[A]) Name() string {
	return r.st.name
}

// Equal reports whether two references designate the same actor.
func (r *ActorRef[A]) Equal(other Ref) bool {
	return other != nil && r.st.id == other.ID()
}

// Clone creates an additional strong handle to the same actor.
func (r *ActorRef[A]) Clone() *ActorRef[A] {
	r.st.strong.Add(1)

	return &ActorRef[A]{st: r.st}
}

// Release drops this strong handle. Releasing the last strong handle closes
// the mailbox: queued signals still drain, after which the actor stops with
// NormalReason. Release is idempotent per handle.
func (r *ActorRef[A]) Release() {
	if !r.released.CompareAndSwap(false, true) {
		return
	}

	if r.st.strong.Add(-1) == 0 {
		log.DebugS(context.Background(),
			"Last strong reference released, closing mailbox",
			"actor_id", r.st.id, "actor", r.st.name)

		r.st.mbox.Close()
	}
}

// Downgrade produces a weak reference that does not keep the mailbox open.
func (r *ActorRef[A]) Downgrade() *WeakActorRef[A] {
	r.st.weak.Add(1)

	return &WeakActorRef[A]{st: r.st}
}

// StrongCount returns an advisory snapshot of the live strong handle count.
func (r *ActorRef[A]) StrongCount() int {
	return int(r.st.strong.Load())
}

// WeakCount returns an advisory snapshot of the weak handle count.
func (r *ActorRef[A]) WeakCount() int {
	return int(r.st.weak.Load())
}

// Ask enqueues a message carrying a fresh reply channel and returns the
// future half. The reply resolves with the handler's return value, the
// handler's error, a *PanicError if the handler panicked, or
// ErrActorStopped/ErrMailboxClosed when the actor is unavailable.
func (r *ActorRef[A]) Ask(ctx context.Context,
	msg Message[A]) *ReplyFuture {

	promise := newReplyPromise()
	sig := &messageSignal[A]{
		msg:         msg,
		reply:       promise,
		withinActor: r.withinActor,
	}

	if err := r.st.mbox.Send(ctx, sig); err != nil {
		promise.complete(nil, err)
	}

	return &ReplyFuture{p: promise}
}

// Tell enqueues a message with no reply channel (fire-and-forget). If the
// handler later returns an error reply, the loop re-raises it through the
// panic path so supervision still observes the failure.
func (r *ActorRef[A]) Tell(ctx context.Context, msg Message[A]) error {
	sig := &messageSignal[A]{
		msg:         msg,
		withinActor: r.withinActor,
	}

	return r.st.mbox.Send(ctx, sig)
}

// Query enqueues a read-only query. Queries may be processed concurrently
// with one another, up to the actor's MaxConcurrentQueries bound, but never
// concurrently with a message handler.
func (r *ActorRef[A]) Query(ctx context.Context, q Query[A]) *ReplyFuture {
	promise := newReplyPromise()
	sig := &querySignal[A]{
		query: q,
		reply: promise,
	}

	if err := r.st.mbox.Send(ctx, sig); err != nil {
		promise.complete(nil, err)
	}

	return &ReplyFuture{p: promise}
}

// StopGracefully enqueues a stop signal. Because the signal travels the
// ordinary mailbox, messages enqueued before it on the same handle are
// processed first; signals enqueued after it are resolved with
// ErrActorStopped when the actor drains its mailbox on the way out.
func (r *ActorRef[A]) StopGracefully(ctx context.Context) error {
	return r.st.mbox.Send(ctx, &stopSignal[A]{})
}

// Kill forcibly terminates the actor: the mailbox closes immediately and the
// loop's context is cancelled, aborting any in-flight handler at its next
// context-aware operation. Pending replies resolve with ErrActorStopped.
// There is no ordering guarantee with in-flight work.
func (r *ActorRef[A]) Kill() {
	if !r.st.killed.CompareAndSwap(false, true) {
		return
	}

	log.DebugS(context.Background(), "Actor killed",
		"actor_id", r.st.id, "actor", r.st.name)

	r.st.mbox.Close()
	r.st.cancel()
}

// WaitStartup blocks until the actor has finished its start hook and
// processed the startup barrier. It fails with ErrActorStopped if the actor
// terminates before reaching that point.
func (r *ActorRef[A]) WaitStartup(ctx context.Context) error {
	select {
	case <-r.st.started:
		return nil

	case <-r.st.stopped:
		// The barrier may have been released just before the stop;
		// prefer reporting startup success in that case.
		select {
		case <-r.st.started:
			return nil
		default:
			return ErrActorStopped
		}

	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForStop blocks until the actor's loop has fully exited and returns the
// stop reason. Any number of observers may wait.
func (r *ActorRef[A]) WaitForStop(ctx context.Context) (StopReason, error) {
	select {
	case <-r.st.stopped:
		return r.st.stopReason, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// IsStopped reports whether the actor's loop has exited.
func (r *ActorRef[A]) IsStopped() bool {
	select {
	case <-r.st.stopped:
		return true
	default:
		return false
	}
}

// Link establishes a symmetric supervision link with another actor. See the
// package-level Link.
func (r *ActorRef[A]) Link(other Ref) {
	Link(r, other)
}

// Unlink removes the supervision link with another actor from both sides.
func (r *ActorRef[A]) Unlink(other Ref) {
	Unlink(r, other)
}

// linkRegistry implements Ref.
func (r *ActorRef[A]) linkRegistry() *links {
	return r.st.links
}

// signaler implements Ref.
func (r *ActorRef[A]) signaler() SignalMailbox {
	return r.st.mbox
}

// WeakActorRef is a handle that does not keep the actor's mailbox open. It is
// what lifecycle hooks receive, so a hook holding on to its self-reference
// cannot prevent shutdown.
type WeakActorRef[A any] struct {
	st *actorState[A]
}

// ID returns the actor's unique identifier.
func (w *WeakActorRef[A]) ID() ActorID {
	return w.st.id
}

// Name returns the actor's display name.
func (w *WeakActorRef[A]) Name() string {
	return w.st.name
}

// Upgrade attempts to recover a strong reference. It succeeds iff at least
// one strong handle still exists and the mailbox has not closed.
func (w *WeakActorRef[A]) Upgrade() fn.Option[*ActorRef[A]] {
	for {
		count := w.st.strong.Load()
		if count <= 0 || w.st.mbox.IsClosed() {
			return fn.None[*ActorRef[A]]()
		}

		if w.st.strong.CompareAndSwap(count, count+1) {
			return fn.Some(&ActorRef[A]{st: w.st})
		}
	}
}

// StrongCount returns an advisory snapshot of the live strong handle count.
func (w *WeakActorRef[A]) StrongCount() int {
	return int(w.st.strong.Load())
}
