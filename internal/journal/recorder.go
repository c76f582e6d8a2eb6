package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/roasbeef/troupe/actor"
)

const (
	// writeTimeout bounds each background journal write.
	writeTimeout = 5 * time.Second
)

// Recorder writes lifecycle events for one process run, moving the actual
// database writes off the callers' goroutines through a single-worker pond
// pool so event ordering is preserved without blocking the runtime.
type Recorder struct {
	store *Store
	log   *slog.Logger

	// runID tags every event this recorder emits.
	runID string

	// writer serializes the asynchronous writes.
	writer pond.Pool
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store *Store, log *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		log:    log,
		runID:  uuid.NewString(),
		writer: pond.NewPool(1),
	}
}

// RunID returns the identifier tagging this process run's events.
func (r *Recorder) RunID() string {
	return r.runID
}

// record submits one event for background insertion.
func (r *Recorder) record(actorID uint64, name, kind, reason string) {
	ev := Event{
		ID:         uuid.NewString(),
		RunID:      r.runID,
		ActorID:    actorID,
		ActorName:  name,
		Kind:       kind,
		Reason:     reason,
		OccurredAt: time.Now(),
	}

	r.writer.Submit(func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), writeTimeout,
		)
		defer cancel()

		if err := r.store.WriteEvent(ctx, ev); err != nil {
			r.log.Error("Failed to record lifecycle event",
				"actor_id", ev.ActorID, "kind", ev.Kind,
				"error", err)
		}
	})
}

// Close flushes pending writes and stops the background worker.
func (r *Recorder) Close() {
	r.writer.StopAndWait()
}

// Watch records the spawn of the given actor and follows it until it stops,
// recording the stop reason. The watcher holds no strong reference, so it
// never delays shutdown; ctx bounds how long the watch itself may linger.
func Watch[A any](ctx context.Context, rec *Recorder,
	ref *actor.ActorRef[A]) {

	rec.record(uint64(ref.ID()), ref.Name(), "spawned", "")

	go func() {
		reason, err := ref.WaitForStop(ctx)
		if err != nil {
			rec.log.Warn("Lifecycle watch abandoned",
				"actor_id", ref.ID(), "error", err)

			return
		}

		rec.record(
			uint64(ref.ID()), ref.Name(), "stopped",
			reason.String(),
		)
	}()
}
