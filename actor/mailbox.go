package actor

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// SignalMailbox is the object-safe projection of a mailbox that only knows
// how to deliver control signals. Link registries store peers behind this
// interface, since the peer's state type is unknown to the holder.
type SignalMailbox interface {
	// SignalStartupFinished enqueues the startup barrier signal.
	SignalStartupFinished() error

	// SignalLinkDied notifies the owning actor that peer id terminated
	// with the given reason.
	SignalLinkDied(id ActorID, reason StopReason) error

	// SignalStop requests a graceful stop, ordered after any signals
	// already enqueued.
	SignalStop() error
}

// Mailbox defines the message queue for a single actor. Implementations come
// in two flavors: bounded (fixed capacity, senders suspend when full) and
// unbounded (sends never suspend on capacity). Both preserve strict FIFO per
// sender and deliver in arrival order at the single receiver.
//
// Thread safety:
//   - Send and TrySend may be called concurrently from many goroutines.
//   - Receive and Drain are single-consumer: only the actor's loop calls
//     them.
//   - Close is idempotent and may race with concurrent sends.
type Mailbox[A any] interface {
	SignalMailbox

	// Send enqueues a signal, suspending on a bounded mailbox until
	// capacity frees up. It fails with ErrMailboxClosed once the mailbox
	// closes, or with the context's error if the caller gives up first; a
	// cancelled send releases its slot and does not deliver.
	Send(ctx context.Context, sig Signal[A]) error

	// TrySend enqueues without suspending. On a bounded mailbox at
	// capacity it fails with ErrMailboxFull.
	TrySend(sig Signal[A]) error

	// Receive returns an iterator over signals. It blocks while the
	// mailbox is empty and stops once the provided context is cancelled
	// or the mailbox is closed and drained of its buffered signals.
	Receive(ctx context.Context) iter.Seq[Signal[A]]

	// Drain yields whatever is still buffered after Close without
	// blocking, so shutdown can resolve reply-bearing signals.
	Drain() iter.Seq[Signal[A]]

	// Close closes the mailbox. Subsequent sends observe
	// ErrMailboxClosed.
	Close()

	// IsClosed reports whether Close has run.
	IsClosed() bool

	// Closed returns a channel that closes when the mailbox does,
	// allowing select-based observation.
	Closed() <-chan struct{}

	// Len is an advisory snapshot of the number of buffered signals.
	Len() int
}

// UnboundedMailbox is the default mailbox: sends never suspend on capacity,
// only fail on closure. Backed by a mutex-guarded slice with a single-slot
// wakeup channel for the receiver.
type UnboundedMailbox[A any] struct {
	mu    sync.Mutex
	queue []Signal[A]

	// notify wakes the receiver after an enqueue into an empty queue.
	// Capacity one: coalescing wakeups is fine for a single consumer.
	notify chan struct{}

	closed    atomic.Bool
	closedCh  chan struct{}
	closeOnce sync.Once
}

// NewUnboundedMailbox creates an unbounded mailbox.
func NewUnboundedMailbox[A any]() *UnboundedMailbox[A] {
	return &UnboundedMailbox[A]{
		notify:   make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

// Send enqueues the signal. Unbounded sends never block; the context is
// consulted only for a fast-fail when the caller has already given up.
func (m *UnboundedMailbox[A]) Send(ctx context.Context,
	sig Signal[A]) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	return m.TrySend(sig)
}

// TrySend enqueues the signal without blocking.
func (m *UnboundedMailbox[A]) TrySend(sig Signal[A]) error {
	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return ErrMailboxClosed
	}
	m.queue = append(m.queue, sig)
	m.mu.Unlock()

	// Coalesced wakeup for the single receiver.
	select {
	case m.notify <- struct{}{}:
	default:
	}

	return nil
}

// Receive returns the single-consumer iterator over enqueued signals.
func (m *UnboundedMailbox[A]) Receive(
	ctx context.Context) iter.Seq[Signal[A]] {

	return func(yield func(Signal[A]) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			sig, ok, empty := m.pop()
			if ok {
				if !yield(sig) {
					return
				}
				continue
			}

			// Nothing buffered. If the mailbox is closed and the
			// queue is empty, we have observed end-of-stream.
			if empty && m.closed.Load() {
				return
			}

			select {
			case <-m.notify:
			case <-m.closedCh:
				// Loop once more to drain anything enqueued
				// just before the close won the race.
			case <-ctx.Done():
				return
			}
		}
	}
}

// pop removes the head of the queue. The third return reports whether the
// queue was observed empty under the lock.
func (m *UnboundedMailbox[A]) pop() (Signal[A], bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return nil, false, true
	}

	sig := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]

	return sig, true, false
}

// Drain yields remaining buffered signals without blocking. Only meaningful
// after Close.
func (m *UnboundedMailbox[A]) Drain() iter.Seq[Signal[A]] {
	return func(yield func(Signal[A]) bool) {
		if !m.closed.Load() {
			return
		}

		for {
			sig, ok, _ := m.pop()
			if !ok {
				return
			}
			if !yield(sig) {
				return
			}
		}
	}
}

// Close closes the mailbox, failing all further sends. Safe to call multiple
// times.
func (m *UnboundedMailbox[A]) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed.Store(true)
		m.mu.Unlock()

		close(m.closedCh)
	})
}

// IsClosed reports whether the mailbox has been closed.
func (m *UnboundedMailbox[A]) IsClosed() bool {
	return m.closed.Load()
}

// Closed returns the closure broadcast channel.
func (m *UnboundedMailbox[A]) Closed() <-chan struct{} {
	return m.closedCh
}

// Len returns an advisory snapshot of the queue depth.
func (m *UnboundedMailbox[A]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.queue)
}

// SignalStartupFinished implements SignalMailbox.
func (m *UnboundedMailbox[A]) SignalStartupFinished() error {
	return m.TrySend(&startupFinishedSignal[A]{})
}

// SignalLinkDied implements SignalMailbox.
func (m *UnboundedMailbox[A]) SignalLinkDied(id ActorID,
	reason StopReason) error {

	return m.TrySend(&linkDiedSignal[A]{id: id, reason: reason})
}

// SignalStop implements SignalMailbox.
func (m *UnboundedMailbox[A]) SignalStop() error {
	return m.TrySend(&stopSignal[A]{})
}
