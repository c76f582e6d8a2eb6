package actor_test

import (
	"context"
	"fmt"
	"time"

	"github.com/roasbeef/troupe/actor"
)

// tally is a small aggregate used by the package example.
type tally struct {
	total int64
}

// add mutates the tally and replies with the running total.
type add struct {
	n int64
}

func (m add) Handle(_ context.Context, s *tally,
	_ *actor.Context[tally]) actor.Reply {

	s.total += m.n

	return actor.Value(s.total)
}

// total reads the tally without blocking other readers.
type total struct{}

func (total) Query(_ context.Context, s *tally,
	_ *actor.Context[tally]) actor.Reply {

	return actor.Value(s.total)
}

// ExampleSpawn demonstrates spawning an actor, mutating it through messages,
// reading it through a query, and stopping it gracefully.
func ExampleSpawn() {
	ctx, cancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer cancel()

	ref := actor.Spawn(tally{})
	defer ref.Release()

	for _, n := range []int64{1, 2, 3} {
		running, err := actor.Await[int64](ctx, ref.Ask(ctx, add{n: n}))
		if err != nil {
			fmt.Println("ask failed:", err)
			return
		}
		fmt.Println("running total:", running)
	}

	final, err := actor.Await[int64](ctx, ref.Query(ctx, total{}))
	if err != nil {
		fmt.Println("query failed:", err)
		return
	}
	fmt.Println("final total:", final)

	if err := ref.StopGracefully(ctx); err != nil {
		fmt.Println("stop failed:", err)
		return
	}

	reason, err := ref.WaitForStop(ctx)
	if err != nil {
		fmt.Println("wait failed:", err)
		return
	}
	fmt.Println("stopped:", reason)

	// Output:
	// running total: 1
	// running total: 3
	// running total: 6
	// final total: 6
	// stopped: normal
}
