package actor

import (
	"context"
	"sync"
)

// links is an actor's supervision link registry: the set of peer IDs it is
// linked to, each paired with just enough of the peer's mailbox to deliver a
// LinkDied signal without knowing the peer's state type.
//
// The registry is mutated from Link/Unlink callers and read by the owning
// actor's loop during death broadcast, so access is mutex-guarded. Both
// mutations are idempotent, which is what makes a concurrent unlink and
// termination settle without a dangling one-sided link.
type links struct {
	mu    sync.Mutex
	peers map[ActorID]SignalMailbox
}

func newLinks() *links {
	return &links{
		peers: make(map[ActorID]SignalMailbox),
	}
}

// add inserts a peer. Re-adding an existing peer is a no-op.
func (l *links) add(id ActorID, mbox SignalMailbox) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.peers[id]; ok {
		return
	}
	l.peers[id] = mbox
}

// remove deletes a peer if present.
func (l *links) remove(id ActorID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.peers, id)
}

// contains reports whether the peer is currently linked.
func (l *links) contains(id ActorID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.peers[id]
	return ok
}

// drain removes and returns every peer in one shot. Used by the loop at
// shutdown so the death broadcast happens against a stable snapshot.
func (l *links) drain() map[ActorID]SignalMailbox {
	l.mu.Lock()
	defer l.mu.Unlock()

	peers := l.peers
	l.peers = make(map[ActorID]SignalMailbox)

	return peers
}

// len returns the current number of linked peers.
func (l *links) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.peers)
}

// Ref is the type-erased view of an actor reference used by operations that
// span two actors of different state types, such as linking. It is sealed:
// only ActorRef values implement it.
type Ref interface {
	// ID returns the actor's process-unique identifier.
	ID() ActorID

	// linkRegistry exposes the actor's own link set.
	linkRegistry() *links

	// signaler exposes the control-signal projection of the actor's
	// mailbox.
	signaler() SignalMailbox
}

// Link establishes a symmetric supervision link between two actors: when
// either terminates, the other receives a LinkDied signal carrying the stop
// reason. Linking an actor to itself is a no-op, and re-linking an existing
// pair is idempotent.
func Link(a, b Ref) {
	if a.ID() == b.ID() {
		return
	}

	a.linkRegistry().add(b.ID(), b.signaler())
	b.linkRegistry().add(a.ID(), a.signaler())

	log.DebugS(context.Background(), "Actors linked",
		"actor_a", a.ID(), "actor_b", b.ID())
}

// Unlink removes the supervision link between two actors from both sides.
// Unlinking actors that were never linked is a no-op.
func Unlink(a, b Ref) {
	a.linkRegistry().remove(b.ID())
	b.linkRegistry().remove(a.ID())

	log.DebugS(context.Background(), "Actors unlinked",
		"actor_a", a.ID(), "actor_b", b.ID())
}
