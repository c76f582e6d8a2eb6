package actor

import (
	"context"
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// replyPromise is the one-shot carrier behind a reply channel. The value side
// is erased (any); callers recover the concrete type via Await. Completion is
// guarded by sync.Once: the first of handler auto-reply, delegated send,
// send-failure and actor-exit resolution wins, and every later attempt is a
// no-op.
type replyPromise struct {
	done chan struct{}
	once sync.Once

	value any
	err   error

	// tracker, when non-nil, is the per-actor registry of in-flight
	// replies. Completion removes the promise from it so that only
	// genuinely orphaned replies are resolved with ErrActorStopped at
	// actor exit.
	mu      sync.Mutex
	tracker *replyTracker
}

func newReplyPromise() *replyPromise {
	return &replyPromise{
		done: make(chan struct{}),
	}
}

// complete resolves the promise exactly once and unblocks all waiters.
func (p *replyPromise) complete(value any, err error) {
	p.once.Do(func() {
		p.value = value
		p.err = err
		close(p.done)
	})

	p.mu.Lock()
	tracker := p.tracker
	p.tracker = nil
	p.mu.Unlock()

	if tracker != nil {
		tracker.untrack(p)
	}
}

// attach registers the promise with the actor's in-flight tracker. Called by
// the loop when the enclosing signal is dequeued.
func (p *replyPromise) attach(tracker *replyTracker) {
	p.mu.Lock()
	select {
	case <-p.done:
		// Already resolved, nothing to track.
		p.mu.Unlock()
		return
	default:
	}
	p.tracker = tracker
	p.mu.Unlock()

	tracker.track(p)
}

// await blocks until the promise resolves or the context is cancelled.
// Cancelling the wait discards the reply but does not cancel the handler.
func (p *replyPromise) await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.value, p.err

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReplyFuture is the consumer half of a reply channel, returned by Ask and
// Query. The carried value is erased; use Await or AwaitResult with the reply
// type the target actor's handler produces. Discarding a ReplyFuture without
// awaiting it is permitted and turns the call into fire-and-forget.
type ReplyFuture struct {
	p *replyPromise
}

// Done returns a channel that closes once the reply has resolved, allowing
// select-based composition.
func (f *ReplyFuture) Done() <-chan struct{} {
	return f.p.done
}

// Err blocks until the reply resolves and returns only its error half,
// discarding any value. Useful when the caller only cares about success.
func (f *ReplyFuture) Err(ctx context.Context) error {
	_, err := f.p.await(ctx)
	return err
}

// Await blocks until the reply future resolves, then downcasts the erased
// reply value to R. A failed downcast reports ErrReplyTypeMismatch, which
// indicates a defect at the call site or in the handler, not a runtime
// condition.
func Await[R any](ctx context.Context, f *ReplyFuture) (R, error) {
	var zero R

	value, err := f.p.await(ctx)
	if err != nil {
		return zero, err
	}

	typed, ok := value.(R)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T",
			ErrReplyTypeMismatch, value, zero)
	}

	return typed, nil
}

// AwaitResult is Await packaged as an fn.Result for call sites that compose
// results functionally.
func AwaitResult[R any](ctx context.Context, f *ReplyFuture) fn.Result[R] {
	value, err := Await[R](ctx, f)
	if err != nil {
		return fn.Err[R](err)
	}

	return fn.Ok(value)
}

// ReplySender is the producer half of a reply channel after a handler has
// taken it out of its Context via ReplySender(). The holder becomes
// responsible for resolving the reply; if it never does, the runtime resolves
// it with ErrActorStopped when the actor exits.
type ReplySender struct {
	p *replyPromise
}

// Send resolves the reply with the given Reply's value or error. Later sends
// on the same sender are no-ops.
func (s *ReplySender) Send(reply Reply) {
	s.p.complete(reply.ReplyValue(), reply.ReplyErr())
}

// replyTracker records every reply promise currently owned by an actor:
// dispatched but unresolved, including senders delegated out of handler
// contexts. At actor exit, failAll resolves the stragglers with
// ErrActorStopped so no caller is left hanging.
type replyTracker struct {
	mu      sync.Mutex
	pending map[*replyPromise]struct{}
}

func newReplyTracker() *replyTracker {
	return &replyTracker{
		pending: make(map[*replyPromise]struct{}),
	}
}

func (t *replyTracker) track(p *replyPromise) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		t.pending[p] = struct{}{}
	}
}

func (t *replyTracker) untrack(p *replyPromise) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.pending, p)
}

// failAll resolves every still-pending reply with the given error. The map is
// snapshotted first so the untrack callbacks in complete() do not deadlock.
func (t *replyTracker) failAll(err error) {
	t.mu.Lock()
	snapshot := make([]*replyPromise, 0, len(t.pending))
	for p := range t.pending {
		snapshot = append(snapshot, p)
	}
	t.pending = make(map[*replyPromise]struct{})
	t.mu.Unlock()

	for _, p := range snapshot {
		p.complete(nil, err)
	}
}
