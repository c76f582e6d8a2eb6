package actor

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// BoundedMailbox is a fixed-capacity mailbox backed by a buffered channel.
// Senders suspend when the mailbox is full and are served in FIFO order by
// the runtime's channel sender queue, which is what gives bounded sends their
// first-come-first-served back-pressure semantics.
type BoundedMailbox[A any] struct {
	ch chan Signal[A]

	// closed is read lock-free on the send fast path.
	closed atomic.Bool

	// mu protects sends against close. Senders hold the read lock for the
	// entire operation; Close takes the write lock before closing ch, so
	// the channel can never be closed mid-send.
	mu sync.RWMutex

	closedCh  chan struct{}
	closeOnce sync.Once
}

// NewBoundedMailbox creates a bounded mailbox with the given capacity. A
// capacity below one is raised to one so the mailbox is always buffered.
func NewBoundedMailbox[A any](capacity int) *BoundedMailbox[A] {
	if capacity < 1 {
		capacity = 1
	}

	return &BoundedMailbox[A]{
		ch:       make(chan Signal[A], capacity),
		closedCh: make(chan struct{}),
	}
}

// Send enqueues the signal, suspending while the mailbox is full. The send is
// abandoned (and its slot released) if the caller's context is cancelled or
// the mailbox closes while waiting.
func (m *BoundedMailbox[A]) Send(ctx context.Context, sig Signal[A]) error {
	// Fast-path rejections before taking the lock.
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed.Load() {
		return ErrMailboxClosed
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return ErrMailboxClosed
	}

	select {
	case m.ch <- sig:
		return nil

	case <-ctx.Done():
		return ctx.Err()

	case <-m.closedCh:
		return ErrMailboxClosed
	}
}

// TrySend enqueues without suspending, failing with ErrMailboxFull when at
// capacity.
func (m *BoundedMailbox[A]) TrySend(sig Signal[A]) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return ErrMailboxClosed
	}

	select {
	case m.ch <- sig:
		return nil
	default:
		return ErrMailboxFull
	}
}

// Receive returns the single-consumer iterator over enqueued signals. The
// context is checked before each receive so shutdown is deterministic rather
// than racing the select.
func (m *BoundedMailbox[A]) Receive(
	ctx context.Context) iter.Seq[Signal[A]] {

	return func(yield func(Signal[A]) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			select {
			case sig, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(sig) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// Drain yields any signals still buffered after Close without blocking.
func (m *BoundedMailbox[A]) Drain() iter.Seq[Signal[A]] {
	return func(yield func(Signal[A]) bool) {
		if !m.closed.Load() {
			return
		}

		for {
			select {
			case sig, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(sig) {
					return
				}

			default:
				return
			}
		}
	}
}

// Close closes the mailbox. The broadcast channel is closed before the write
// lock is taken so senders suspended in Send wake up and release their read
// locks instead of deadlocking against the close.
func (m *BoundedMailbox[A]) Close() {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		close(m.closedCh)

		m.mu.Lock()
		close(m.ch)
		m.mu.Unlock()
	})
}

// IsClosed reports whether the mailbox has been closed.
func (m *BoundedMailbox[A]) IsClosed() bool {
	return m.closed.Load()
}

// Closed returns the closure broadcast channel.
func (m *BoundedMailbox[A]) Closed() <-chan struct{} {
	return m.closedCh
}

// Len returns an advisory snapshot of the queue depth.
func (m *BoundedMailbox[A]) Len() int {
	return len(m.ch)
}

// Cap returns the mailbox capacity.
func (m *BoundedMailbox[A]) Cap() int {
	return cap(m.ch)
}

// SignalStartupFinished implements SignalMailbox. Control signals use a
// background blocking send: they must not be dropped on a momentarily full
// mailbox.
func (m *BoundedMailbox[A]) SignalStartupFinished() error {
	return m.Send(context.Background(), &startupFinishedSignal[A]{})
}

// SignalLinkDied implements SignalMailbox.
func (m *BoundedMailbox[A]) SignalLinkDied(id ActorID,
	reason StopReason) error {

	return m.Send(
		context.Background(), &linkDiedSignal[A]{id: id, reason: reason},
	)
}

// SignalStop implements SignalMailbox.
func (m *BoundedMailbox[A]) SignalStop() error {
	return m.Send(context.Background(), &stopSignal[A]{})
}
