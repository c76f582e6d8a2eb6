package actor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for actor lifecycle and dispatch. Labeled metrics use
// the actor's display name, which is expected to be low-cardinality (type
// names, not instance IDs).

var (
	// actorsSpawned counts actors spawned since process start.
	actorsSpawned = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "troupe_actors_spawned_total",
		Help: "The total number of actors spawned",
	})

	// actorsStopped counts stopped actors, partitioned by the coarse stop
	// reason kind.
	actorsStopped = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "troupe_actors_stopped_total",
		Help: "The total number of actors stopped",
	}, []string{"reason"})

	// actorsAlive tracks the number of currently running actors.
	actorsAlive = promauto.NewGauge(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "troupe_actors_alive",
		Help: "The number of actors currently running",
	})

	// messagesProcessed counts message handler invocations.
	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "troupe_actor_messages_total",
		Help: "The total number of messages processed",
	}, []string{"actor"})

	// queriesProcessed counts query dispatches.
	queriesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "troupe_actor_queries_total",
		Help: "The total number of queries dispatched",
	}, []string{"actor"})

	// handlerPanics counts panics recovered from handlers and hooks.
	handlerPanics = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "troupe_actor_panics_total",
		Help: "The total number of recovered handler panics",
	}, []string{"actor"})

	// processingSeconds measures message handler execution time.
	processingSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name: "troupe_actor_processing_seconds",
		Help: "The time spent processing a message",
		Buckets: []float64{
			0.001, // 1ms
			0.01,  // 10ms
			0.1,   // 100ms
			1,     // 1s
			10,    // 10s
			60,    // 1m
		},
	}, []string{"actor"})
)

// reasonLabel maps a stop reason to its coarse metric label, keeping the
// stopped-counter cardinality bounded.
func reasonLabel(reason StopReason) string {
	switch reason.(type) {
	case NormalReason:
		return "normal"
	case KilledReason:
		return "killed"
	case PanickedReason:
		return "panicked"
	case LinkDiedReason:
		return "link_died"
	default:
		return "unknown"
	}
}
