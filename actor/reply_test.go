package actor_test

import (
	"context"
	"testing"
	"time"

	"github.com/roasbeef/troupe/actor"
	"github.com/stretchr/testify/require"
)

// delegator hands its reply sender to a background goroutine, replying only
// after an external event fires.
type delegator struct{}

// delayedEcho asks for the reply to be sent out-of-band once release closes.
type delayedEcho struct {
	text    string
	release <-chan struct{}
}

func (m delayedEcho) Handle(_ context.Context, _ *delegator,
	mctx *actor.Context[delegator]) actor.Reply {

	marker, sender := mctx.ReplySender()

	sender.WhenSome(func(tx *actor.ReplySender) {
		release := m.release
		text := m.text

		go func() {
			<-release
			tx.Send(actor.Value(text))
		}()
	})

	return marker
}

// neverReplies takes the sender and drops it on the floor.
type neverReplies struct{}

func (neverReplies) Handle(_ context.Context, _ *delegator,
	mctx *actor.Context[delegator]) actor.Reply {

	marker, _ := mctx.ReplySender()

	return marker
}

// TestDelegatedReply tests that a handler that takes its reply sender can
// resolve the reply after returning, and the loop does not auto-reply.
func TestDelegatedReply(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	ref := actor.Spawn(delegator{})
	defer ref.Release()

	release := make(chan struct{})
	fut := ref.Ask(ctx, delayedEcho{text: "later", release: release})

	// Until release closes, the reply stays outstanding: the loop does not
	// auto-reply from the handler's DelegatedReply return value.
	require.NoError(t, ref.WaitStartup(ctx))
	select {
	case <-fut.Done():
		t.Fatal("reply should still be pending")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)

	got, err := actor.Await[string](ctx, fut)
	require.NoError(t, err)
	require.Equal(t, "later", got)
}

// TestDelegatedReplyOnTell tests that ReplySender yields None when the caller
// used Tell, and the handler still works.
func TestDelegatedReplyOnTell(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	ref := actor.Spawn(delegator{})
	defer ref.Release()

	release := make(chan struct{})
	close(release)

	require.NoError(t, ref.Tell(
		ctx, delayedEcho{text: "ignored", release: release},
	))

	// The actor is still healthy afterwards.
	fut := ref.Ask(ctx, delayedEcho{text: "ok", release: release})
	got, err := actor.Await[string](ctx, fut)
	require.NoError(t, err)
	require.Equal(t, "ok", got)
}

// TestUnsentDelegatedReplyResolvedAtStop tests that a delegated reply sender
// that is never used resolves with ErrActorStopped when the actor exits,
// rather than hanging its caller forever.
func TestUnsentDelegatedReplyResolvedAtStop(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	ref := actor.Spawn(delegator{})

	fut := ref.Ask(ctx, neverReplies{})

	require.NoError(t, ref.StopGracefully(ctx))
	_, err := ref.WaitForStop(ctx)
	require.NoError(t, err)
	ref.Release()

	_, err = actor.Await[string](ctx, fut)
	require.ErrorIs(t, err, actor.ErrActorStopped)
}

// TestFireAndForgetDiscard tests that dropping a reply future without reading
// it neither blocks the actor nor leaks the reply.
func TestFireAndForgetDiscard(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	ref := actor.Spawn(counter{})
	defer ref.Release()

	// Discard the futures entirely.
	for i := 0; i < 16; i++ {
		ref.Ask(ctx, inc{amount: 1})
	}

	got, err := actor.Await[int64](ctx, ref.Ask(ctx, inc{amount: 1}))
	require.NoError(t, err)
	require.Equal(t, int64(17), got)
}

// selfSender messages itself through its handler context.
type selfSender struct {
	relayed int64
}

// relay bumps the state through a self-directed tell, then replies with the
// pre-bump value.
type relay struct{}

func (relay) Handle(ctx context.Context, s *selfSender,
	mctx *actor.Context[selfSender]) actor.Reply {

	before := s.relayed

	// Self-directed tell: processed after this handler returns.
	if err := mctx.ActorRef().Tell(ctx, bump{}); err != nil {
		return actor.Fail(err)
	}

	return actor.Value(before)
}

type bump struct{}

func (bump) Handle(_ context.Context, s *selfSender,
	_ *actor.Context[selfSender]) actor.Reply {

	s.relayed++

	return actor.Value(s.relayed)
}

type relayed struct{}

func (relayed) Query(_ context.Context, s *selfSender,
	_ *actor.Context[selfSender]) actor.Reply {

	return actor.Value(s.relayed)
}

// TestHandlerSelfSend tests that handlers can message their own actor through
// the context's self-reference, with the self-sent message processed after
// the current handler completes.
func TestHandlerSelfSend(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	ref := actor.Spawn(selfSender{})
	defer ref.Release()

	before, err := actor.Await[int64](ctx, ref.Ask(ctx, relay{}))
	require.NoError(t, err)
	require.Equal(t, int64(0), before)

	require.Eventually(t, func() bool {
		n, err := actor.Await[int64](ctx, ref.Query(ctx, relayed{}))
		return err == nil && n == 1
	}, testWaitTimeout, testPollInterval)
}
