package actorutil_test

import (
	"context"
	"testing"
	"time"

	"github.com/roasbeef/troupe/actor"
	"github.com/roasbeef/troupe/actorutil"
	"github.com/stretchr/testify/require"
)

// worker is the pool test actor: it remembers its index and counts the work
// items it has seen.
type worker struct {
	idx  int
	seen int64
}

// workItem bumps the worker's counter and replies with the worker index.
type workItem struct{}

func (workItem) Handle(_ context.Context, w *worker,
	_ *actor.Context[worker]) actor.Reply {

	w.seen++

	return actor.Value(w.idx)
}

// seenCount reads how many items this worker processed.
type seenCount struct{}

func (seenCount) Query(_ context.Context, w *worker,
	_ *actor.Context[worker]) actor.Reply {

	return actor.Value(w.seen)
}

func testCtx(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	t.Cleanup(cancel)

	return ctx
}

func newWorkerPool(t *testing.T, size int) *actorutil.Pool[worker] {
	t.Helper()

	p := actorutil.NewPool(actorutil.PoolConfig[worker]{
		Size: size,
		Factory: func(idx int) worker {
			return worker{idx: idx}
		},
	})
	t.Cleanup(p.Release)

	return p
}

// TestPoolRoundRobin tests that consecutive asks land on distinct workers in
// rotation, covering the whole pool.
func TestPoolRoundRobin(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	p := newWorkerPool(t, 4)
	require.Equal(t, 4, p.Size())

	hits := make(map[int]int)
	for i := 0; i < 20; i++ {
		idx, err := actor.Await[int](ctx, p.Ask(ctx, workItem{}))
		require.NoError(t, err)
		hits[idx]++
	}

	// 20 items over 4 workers round-robin: exactly 5 each.
	require.Len(t, hits, 4)
	for idx, count := range hits {
		require.Equal(t, 5, count, "worker %d", idx)
	}
}

// TestPoolBroadcast tests that Broadcast reaches every worker once.
func TestPoolBroadcast(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	p := newWorkerPool(t, 3)

	require.Equal(t, 3, p.Broadcast(ctx, workItem{}))

	for _, w := range p.Workers() {
		require.Eventually(t, func() bool {
			seen, err := actorutil.QueryAwait[int64](
				ctx, w, seenCount{},
			)

			return err == nil && seen == 1
		}, 3*time.Second, 10*time.Millisecond)
	}
}

// TestPoolGracefulStop tests that a graceful stop drains queued work and
// every worker reports a normal stop.
func TestPoolGracefulStop(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	p := newWorkerPool(t, 2)

	futures := make([]*actor.ReplyFuture, 6)
	for i := range futures {
		futures[i] = p.Ask(ctx, workItem{})
	}

	require.NoError(t, p.StopGracefully(ctx))
	require.NoError(t, p.WaitForStop(ctx))

	for _, fut := range futures {
		_, err := actor.Await[int](ctx, fut)
		require.NoError(t, err)
	}

	for _, w := range p.Workers() {
		reason, err := w.WaitForStop(ctx)
		require.NoError(t, err)
		require.IsType(t, actor.NormalReason{}, reason)
	}
}

// TestPoolKill tests that Kill terminates every worker promptly.
func TestPoolKill(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	p := newWorkerPool(t, 3)

	p.Kill()
	require.NoError(t, p.WaitForStop(ctx))

	for _, w := range p.Workers() {
		reason, err := w.WaitForStop(ctx)
		require.NoError(t, err)
		require.IsType(t, actor.KilledReason{}, reason)
	}
}
