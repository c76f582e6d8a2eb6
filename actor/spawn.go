package actor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// DefaultCleanupTimeout bounds how long a stop hook may run before its
// context expires. Override per actor with WithCleanupTimeout for state types
// that manage external resources needing slower shutdown.
const DefaultCleanupTimeout = 5 * time.Second

// nextActorID hands out process-unique actor IDs, monotonically increasing
// and never reused.
var nextActorID atomic.Uint64

// spawnConfig holds optional per-spawn overrides.
type spawnConfig[A any] struct {
	mailbox        fn.Option[Mailbox[A]]
	cleanupTimeout fn.Option[time.Duration]
}

// SpawnOption is a functional option for Spawn.
type SpawnOption[A any] func(*spawnConfig[A])

// WithMailbox overrides the mailbox the actor would otherwise choose through
// its BoundedActor capability (or the unbounded default).
func WithMailbox[A any](mbox Mailbox[A]) SpawnOption[A] {
	return func(cfg *spawnConfig[A]) {
		cfg.mailbox = fn.Some(mbox)
	}
}

// WithCleanupTimeout sets the stop-hook timeout for the actor. If not
// specified, DefaultCleanupTimeout is used.
func WithCleanupTimeout[A any](d time.Duration) SpawnOption[A] {
	return func(cfg *spawnConfig[A]) {
		cfg.cleanupTimeout = fn.Some(d)
	}
}

// Spawn starts a new actor around the given state value and returns the
// initial strong reference to it. The state is moved into the actor's
// goroutine: the caller must not touch it afterwards. The start hook runs
// inside the loop task, not in the caller; use WaitStartup to observe its
// completion.
//
// Spawn never fails from the caller's perspective.
func Spawn[A any](state A, opts ...SpawnOption[A]) *ActorRef[A] {
	var cfg spawnConfig[A]
	for _, opt := range opts {
		opt(&cfg)
	}

	id := ActorID(nextActorID.Add(1))
	name := actorName(&state)

	var mbox Mailbox[A]
	if cfg.mailbox.IsSome() {
		mbox = cfg.mailbox.UnwrapOr(nil)
	} else {
		mbox = defaultMailbox(&state)
	}

	ctx, cancel := context.WithCancel(context.Background())

	st := &actorState[A]{
		id:      id,
		name:    name,
		mbox:    mbox,
		links:   newLinks(),
		started: make(chan struct{}),
		stopped: make(chan struct{}),
		cancel:  cancel,
		tracker: newReplyTracker(),
	}
	st.strong.Store(1)

	maxQueries := maxConcurrentQueries(&state)

	r := &runner[A]{
		state:      state,
		st:         st,
		self:       &ActorRef[A]{st: st, withinActor: true},
		weak:       &WeakActorRef[A]{st: st},
		ctx:        ctx,
		maxQueries: maxQueries,
		queryDone:  make(chan queryOutcome, maxQueries),
		cleanupTimeout: cfg.cleanupTimeout.UnwrapOr(
			DefaultCleanupTimeout,
		),
	}

	// Enqueue the startup barrier while the mailbox is guaranteed empty
	// and unclosed: it must be the first signal the loop sees, and the
	// loop itself must never block enqueueing it on a bounded mailbox.
	if err := mbox.SignalStartupFinished(); err != nil {
		log.WarnS(ctx, "Failed to enqueue startup barrier", err,
			"actor_id", id)
	}

	actorsSpawned.Inc()
	actorsAlive.Inc()

	log.DebugS(ctx, "Spawning actor",
		"actor_id", id, "actor", name,
		"max_concurrent_queries", maxQueries)

	go r.run()

	return &ActorRef[A]{st: st}
}

// SpawnLinked spawns a new actor and then links it to an existing one. The
// link is made after Spawn has started the new actor's goroutine, so the two
// steps are not atomic: if the new actor stops before the link is in place,
// the parent receives no LinkDied signal for it.
func SpawnLinked[A any](parent Ref, state A,
	opts ...SpawnOption[A]) *ActorRef[A] {

	ref := Spawn(state, opts...)
	Link(parent, ref)

	return ref
}
