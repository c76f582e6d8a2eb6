package actorutil_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/troupe/actor"
	"github.com/roasbeef/troupe/actorutil"
	"github.com/stretchr/testify/require"
)

// echoActor replies with its configured tag, or fails when told to.
type echoActor struct {
	tag  string
	fail bool
}

type echoMsg struct{}

func (echoMsg) Handle(_ context.Context, e *echoActor,
	_ *actor.Context[echoActor]) actor.Reply {

	if e.fail {
		return actor.Fail(errors.New("echo refused"))
	}

	return actor.Value(e.tag)
}

func spawnEchoes(t *testing.T, tags []string,
	failing map[int]bool) []*actor.ActorRef[echoActor] {

	t.Helper()

	refs := make([]*actor.ActorRef[echoActor], len(tags))
	for i, tag := range tags {
		refs[i] = actor.Spawn(echoActor{
			tag:  tag,
			fail: failing[i],
		})
		t.Cleanup(refs[i].Release)
	}

	return refs
}

// TestAskAwait tests the one-shot ask-and-downcast helper.
func TestAskAwait(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	refs := spawnEchoes(t, []string{"solo"}, nil)

	got, err := actorutil.AskAwait[string](ctx, refs[0], echoMsg{})
	require.NoError(t, err)
	require.Equal(t, "solo", got)
}

// TestParallelAskSame tests that results come back in input order with
// per-actor failures preserved in place.
func TestParallelAskSame(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	refs := spawnEchoes(
		t, []string{"a", "b", "c"}, map[int]bool{1: true},
	)

	results := actorutil.ParallelAskSame[string](ctx, refs, echoMsg{})
	require.Len(t, results, 3)

	value, err := results[0].Unpack()
	require.NoError(t, err)
	require.Equal(t, "a", value)

	_, err = results[1].Unpack()
	require.ErrorContains(t, err, "echo refused")

	value, err = results[2].Unpack()
	require.NoError(t, err)
	require.Equal(t, "c", value)

	require.ErrorContains(t, actorutil.FirstError(results), "echo refused")
	require.Equal(
		t, []string{"a", "c"}, actorutil.CollectSuccesses(results),
	)
}

// TestFirstSuccess tests that the first healthy reply wins even when some
// actors fail.
func TestFirstSuccess(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	refs := spawnEchoes(
		t, []string{"x", "y"}, map[int]bool{0: true},
	)

	got, err := actorutil.FirstSuccess[string](ctx, refs, echoMsg{})
	require.NoError(t, err)
	require.Equal(t, "y", got)
}

// TestFirstSuccessAllFail tests that the last failure surfaces when no actor
// succeeds.
func TestFirstSuccessAllFail(t *testing.T) {
	t.Parallel()

	ctx := testCtx(t)
	refs := spawnEchoes(
		t, []string{"x", "y"}, map[int]bool{0: true, 1: true},
	)

	_, err := actorutil.FirstSuccess[string](ctx, refs, echoMsg{})
	require.ErrorContains(t, err, "echo refused")
}

// TestMapResults tests mapping over mixed results.
func TestMapResults(t *testing.T) {
	t.Parallel()

	results := []fn.Result[string]{
		fn.Ok("ab"),
		fn.Err[string](errors.New("broken")),
	}

	mapped := actorutil.MapResults(results, func(s string) int {
		return len(s)
	})

	n, err := mapped[0].Unpack()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = mapped[1].Unpack()
	require.ErrorContains(t, err, "broken")
}
