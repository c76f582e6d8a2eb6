// Package actorutil provides conveniences layered on top of the core actor
// runtime: a round-robin worker pool and helpers for awaiting and combining
// reply futures.
package actorutil

import (
	"context"
	"sync/atomic"

	"github.com/roasbeef/troupe/actor"
)

// Pool distributes messages across a fixed set of identical worker actors
// using round-robin scheduling. It is a thin user of the core: each worker is
// an ordinary actor, and the pool itself holds one strong reference per
// worker.
type Pool[A any] struct {
	// workers holds the pooled actor references in spawn order.
	workers []*actor.ActorRef[A]

	// next is the atomic counter for round-robin selection.
	next atomic.Uint64
}

// PoolConfig holds configuration for creating a new actor pool.
type PoolConfig[A any] struct {
	// Size is the number of worker actors to spawn. Values below one are
	// raised to one.
	Size int

	// Factory builds the state value for each worker.
	Factory func(idx int) A

	// SpawnOpts are applied to every worker spawn.
	SpawnOpts []actor.SpawnOption[A]
}

// NewPool spawns a pool of identical workers. Each worker is created through
// the factory and started immediately.
func NewPool[A any](cfg PoolConfig[A]) *Pool[A] {
	if cfg.Size < 1 {
		cfg.Size = 1
	}

	p := &Pool[A]{
		workers: make([]*actor.ActorRef[A], cfg.Size),
	}

	for i := 0; i < cfg.Size; i++ {
		p.workers[i] = actor.Spawn(
			cfg.Factory(i), cfg.SpawnOpts...,
		)
	}

	return p
}

// pick selects the next worker round-robin.
func (p *Pool[A]) pick() *actor.ActorRef[A] {
	idx := p.next.Add(1) % uint64(len(p.workers))

	return p.workers[idx]
}

// Size returns the number of workers in the pool.
func (p *Pool[A]) Size() int {
	return len(p.workers)
}

// Workers returns the pooled references in spawn order. The slice is shared;
// callers must not mutate it.
func (p *Pool[A]) Workers() []*actor.ActorRef[A] {
	return p.workers
}

// Ask sends a message to the next worker and returns its reply future.
func (p *Pool[A]) Ask(ctx context.Context,
	msg actor.Message[A]) *actor.ReplyFuture {

	return p.pick().Ask(ctx, msg)
}

// Tell fire-and-forgets a message to the next worker.
func (p *Pool[A]) Tell(ctx context.Context, msg actor.Message[A]) error {
	return p.pick().Tell(ctx, msg)
}

// Query sends a read-only query to the next worker.
func (p *Pool[A]) Query(ctx context.Context,
	q actor.Query[A]) *actor.ReplyFuture {

	return p.pick().Query(ctx, q)
}

// Broadcast fire-and-forgets a message to every worker and returns the
// number of workers it reached.
func (p *Pool[A]) Broadcast(ctx context.Context, msg actor.Message[A]) int {
	reached := 0
	for _, w := range p.workers {
		if err := w.Tell(ctx, msg); err == nil {
			reached++
		}
	}

	return reached
}

// StopGracefully asks every worker to stop after draining its queued work.
// The first send error is returned, but all workers are signaled regardless.
func (p *Pool[A]) StopGracefully(ctx context.Context) error {
	var firstErr error
	for _, w := range p.workers {
		if err := w.StopGracefully(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Kill forcibly terminates every worker.
func (p *Pool[A]) Kill() {
	for _, w := range p.workers {
		w.Kill()
	}
}

// WaitForStop blocks until every worker has fully stopped.
func (p *Pool[A]) WaitForStop(ctx context.Context) error {
	for _, w := range p.workers {
		if _, err := w.WaitForStop(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Release drops the pool's strong references. With no other holders, the
// workers drain and stop normally.
func (p *Pool[A]) Release() {
	for _, w := range p.workers {
		w.Release()
	}
}
