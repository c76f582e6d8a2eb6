package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// testState is a placeholder state type for mailbox-level tests.
type testState struct {
	value int
}

// noopMsg is a message payload used purely as mailbox cargo.
type noopMsg struct {
	seq int
}

func (m noopMsg) Handle(_ context.Context, _ *testState,
	_ *Context[testState]) Reply {

	return Value(m.seq)
}

// newMsgSignal builds a reply-free message signal for mailbox tests.
func newMsgSignal(seq int) *messageSignal[testState] {
	return &messageSignal[testState]{msg: noopMsg{seq: seq}}
}

// recvOne receives a single signal from the mailbox or fails the test after a
// timeout.
func recvOne(t *testing.T, m Mailbox[testState]) Signal[testState] {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for sig := range m.Receive(ctx) {
		return sig
	}

	t.Fatal("expected a signal before timeout")

	return nil
}

// TestUnboundedMailboxSendReceive tests that signals sent to an unbounded
// mailbox arrive in send order.
func TestUnboundedMailboxSendReceive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewUnboundedMailbox[testState]()
	defer m.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, m.Send(ctx, newMsgSignal(i)))
	}
	require.Equal(t, 10, m.Len())

	for i := 0; i < 10; i++ {
		sig := recvOne(t, m)
		msg, ok := sig.(*messageSignal[testState])
		require.True(t, ok)
		require.Equal(t, i, msg.msg.(noopMsg).seq)
	}
}

// TestUnboundedMailboxSendAfterClose tests that sends fail with
// ErrMailboxClosed once the mailbox has been closed.
func TestUnboundedMailboxSendAfterClose(t *testing.T) {
	t.Parallel()

	m := NewUnboundedMailbox[testState]()
	m.Close()

	err := m.Send(context.Background(), newMsgSignal(1))
	require.ErrorIs(t, err, ErrMailboxClosed)

	err = m.TrySend(newMsgSignal(2))
	require.ErrorIs(t, err, ErrMailboxClosed)
}

// TestUnboundedMailboxCloseDrains tests that signals enqueued before the
// close are still received, and that Drain yields anything the receiver did
// not consume.
func TestUnboundedMailboxCloseDrains(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewUnboundedMailbox[testState]()

	require.NoError(t, m.Send(ctx, newMsgSignal(1)))
	require.NoError(t, m.Send(ctx, newMsgSignal(2)))
	m.Close()

	// The receiver still sees both buffered signals, then end-of-stream.
	var got []int
	for sig := range m.Receive(ctx) {
		got = append(got, sig.(*messageSignal[testState]).msg.(noopMsg).seq)
	}
	require.Equal(t, []int{1, 2}, got)

	// Everything was consumed, so the drain is empty.
	for range m.Drain() {
		t.Fatal("drain should be empty")
	}
}

// TestUnboundedMailboxClosedBroadcast tests that the Closed channel releases
// observers exactly when the mailbox closes.
func TestUnboundedMailboxClosedBroadcast(t *testing.T) {
	t.Parallel()

	m := NewUnboundedMailbox[testState]()

	select {
	case <-m.Closed():
		t.Fatal("mailbox should not be closed yet")
	default:
	}

	m.Close()
	m.Close()

	select {
	case <-m.Closed():
	case <-time.After(time.Second):
		t.Fatal("Closed channel should be released")
	}
	require.True(t, m.IsClosed())
}

// TestBoundedMailboxTrySendFull tests that TrySend reports ErrMailboxFull at
// capacity without suspending.
func TestBoundedMailboxTrySendFull(t *testing.T) {
	t.Parallel()

	m := NewBoundedMailbox[testState](2)
	defer m.Close()

	require.NoError(t, m.TrySend(newMsgSignal(1)))
	require.NoError(t, m.TrySend(newMsgSignal(2)))

	err := m.TrySend(newMsgSignal(3))
	require.ErrorIs(t, err, ErrMailboxFull)
}

// TestBoundedMailboxSendBackpressure tests that a blocking send on a full
// mailbox completes once the receiver frees a slot.
func TestBoundedMailboxSendBackpressure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewBoundedMailbox[testState](1)
	defer m.Close()

	require.NoError(t, m.Send(ctx, newMsgSignal(1)))

	sendDone := make(chan error, 1)
	go func() {
		sendDone <- m.Send(ctx, newMsgSignal(2))
	}()

	// The send must be suspended: nothing has been consumed yet.
	select {
	case err := <-sendDone:
		t.Fatalf("send should have suspended, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// Consuming one signal releases the waiter.
	recvOne(t, m)

	select {
	case err := <-sendDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("suspended send should have completed")
	}
}

// TestBoundedMailboxSendCancelled tests that a cancelled send releases its
// slot and does not deliver.
func TestBoundedMailboxSendCancelled(t *testing.T) {
	t.Parallel()

	m := NewBoundedMailbox[testState](1)
	defer m.Close()

	require.NoError(t, m.TrySend(newMsgSignal(1)))

	ctx, cancel := context.WithTimeout(
		context.Background(), 20*time.Millisecond,
	)
	defer cancel()

	err := m.Send(ctx, newMsgSignal(2))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Only the first signal is ever delivered.
	sig := recvOne(t, m)
	require.Equal(t, 1, sig.(*messageSignal[testState]).msg.(noopMsg).seq)
	require.Equal(t, 0, m.Len())
}

// TestBoundedMailboxCloseReleasesWaiters tests that senders suspended on a
// full mailbox are released with ErrMailboxClosed when the mailbox closes.
func TestBoundedMailboxCloseReleasesWaiters(t *testing.T) {
	t.Parallel()

	m := NewBoundedMailbox[testState](1)
	require.NoError(t, m.TrySend(newMsgSignal(1)))

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Send(context.Background(), newMsgSignal(99))
		}()
	}

	// Give the senders a moment to suspend, then close.
	time.Sleep(20 * time.Millisecond)
	m.Close()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrMailboxClosed)
		}
	}
}

// TestMailboxControlSignals tests the SignalMailbox projection shared by both
// mailbox flavors.
func TestMailboxControlSignals(t *testing.T) {
	t.Parallel()

	mailboxes := map[string]Mailbox[testState]{
		"unbounded": NewUnboundedMailbox[testState](),
		"bounded":   NewBoundedMailbox[testState](8),
	}

	for name, m := range mailboxes {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			defer m.Close()

			require.NoError(t, m.SignalStartupFinished())
			require.NoError(t, m.SignalLinkDied(
				7, KilledReason{},
			))
			require.NoError(t, m.SignalStop())

			sig := recvOne(t, m)
			_, ok := sig.(*startupFinishedSignal[testState])
			require.True(t, ok)

			sig = recvOne(t, m)
			died, ok := sig.(*linkDiedSignal[testState])
			require.True(t, ok)
			require.Equal(t, ActorID(7), died.id)
			require.IsType(t, KilledReason{}, died.reason)

			sig = recvOne(t, m)
			_, ok = sig.(*stopSignal[testState])
			require.True(t, ok)
		})
	}
}

// TestMailboxFIFOProperty property-tests that, for any sequence of sends from
// a single sender, receive order equals send order on both mailbox flavors.
func TestMailboxFIFOProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		seqs := rapid.SliceOfN(
			rapid.IntRange(0, 1<<20), 0, 64,
		).Draw(rt, "seqs")
		bounded := rapid.Bool().Draw(rt, "bounded")

		var m Mailbox[testState]
		if bounded {
			m = NewBoundedMailbox[testState](len(seqs) + 1)
		} else {
			m = NewUnboundedMailbox[testState]()
		}

		ctx := context.Background()
		for _, seq := range seqs {
			if err := m.Send(ctx, newMsgSignal(seq)); err != nil {
				rt.Fatalf("send failed: %v", err)
			}
		}
		m.Close()

		var got []int
		for sig := range m.Receive(ctx) {
			msg := sig.(*messageSignal[testState])
			got = append(got, msg.msg.(noopMsg).seq)
		}

		if len(got) != len(seqs) {
			rt.Fatalf("received %d signals, sent %d",
				len(got), len(seqs))
		}
		for i := range seqs {
			if got[i] != seqs[i] {
				rt.Fatalf("position %d: got %d, want %d",
					i, got[i], seqs[i])
			}
		}
	})
}

// TestReplyTrackerFailAll tests that outstanding replies are resolved, and
// completed ones left alone, when the tracker fails everything at actor exit.
func TestReplyTrackerFailAll(t *testing.T) {
	t.Parallel()

	tracker := newReplyTracker()

	resolved := newReplyPromise()
	resolved.attach(tracker)
	resolved.complete("done", nil)

	orphaned := newReplyPromise()
	orphaned.attach(tracker)

	tracker.failAll(ErrActorStopped)

	ctx := context.Background()
	value, err := resolved.await(ctx)
	require.NoError(t, err)
	require.Equal(t, "done", value)

	_, err = orphaned.await(ctx)
	require.ErrorIs(t, err, ErrActorStopped)
}

// TestReplyPromiseCompleteOnce tests that only the first completion of a
// reply wins.
func TestReplyPromiseCompleteOnce(t *testing.T) {
	t.Parallel()

	p := newReplyPromise()
	p.complete(1, nil)
	p.complete(2, errors.New("late"))

	value, err := p.await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, value)
}
