// trouped is a demonstration daemon for the troupe actor runtime. It spawns
// a small supervised troupe of worker actors, drives periodic load through
// them, records their lifecycle to the journal database, and exports runtime
// metrics over HTTP.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btclog/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/roasbeef/troupe/actor"
	"github.com/roasbeef/troupe/actorutil"
	"github.com/roasbeef/troupe/internal/build"
	"github.com/roasbeef/troupe/internal/journal"
)

func main() {
	var (
		dbPath      = flag.String("db", "~/.troupe/journal.db", "Path to the lifecycle journal database")
		logDir      = flag.String("log-dir", "~/.troupe/logs", "Directory for log files (empty to disable file logging)")
		metricsAddr = flag.String("metrics", "localhost:9464", "Prometheus metrics address (empty to disable)")
		workers     = flag.Int("workers", 4, "Number of worker actors in the demo pool")
		tick        = flag.Duration("tick", time.Second, "Interval between demo work batches")
		maxLogFiles = flag.Int("max-log-files", build.DefaultMaxLogFiles, "Maximum number of rotated log files to keep")
		maxLogSize  = flag.Int("max-log-file-size", build.DefaultMaxLogFileSize, "Maximum log file size in MB before rotation")
	)
	flag.Parse()

	// Expand home directory in paths.
	expandHome := func(path string) string {
		if len(path) > 0 && path[0] == '~' {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatalf("Failed to get home directory: %v",
					err)
			}

			return home + path[1:]
		}

		return os.ExpandEnv(path)
	}

	dbPathExpanded := expandHome(*dbPath)
	logDirExpanded := expandHome(*logDir)

	// Initialize the rotating log writer when file logging is enabled.
	var logRotator *build.RotatingLogWriter
	if logDirExpanded != "" {
		logRotator = build.NewRotatingLogWriter()
		err := logRotator.Init(&build.LogRotatorConfig{
			LogDir:         logDirExpanded,
			MaxLogFiles:    *maxLogFiles,
			MaxLogFileSize: *maxLogSize,
		})
		if err != nil {
			log.Printf("Failed to init log rotator: %v "+
				"(continuing without file logging)", err)
			logRotator = nil
		} else {
			defer logRotator.Close()

			// Mirror the standard log package to both streams.
			log.SetOutput(io.MultiWriter(os.Stderr, logRotator))
		}
	}

	log.Println(build.VersionString())

	// Wire the runtime's structured logger: console plus, when enabled,
	// the rotating file, fanned out through a single handler set.
	handlers := []btclog.Handler{btclog.NewDefaultHandler(os.Stderr)}
	if logRotator != nil {
		handlers = append(handlers, btclog.NewDefaultHandler(logRotator))
	}
	combined := build.NewHandlerSet(handlers...)

	actorLogger := btclog.NewSLogger(combined)
	actor.UseLogger(actorLogger.WithPrefix(actor.Subsystem))

	// Open the lifecycle journal.
	store, err := journal.NewStore(&journal.Config{
		DatabaseFileName: dbPathExpanded,
	}, slog.Default())
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer store.Close()

	recorder := journal.NewRecorder(store, slog.Default())
	defer recorder.Close()

	// Serve Prometheus metrics when enabled.
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			err := srv.ListenAndServe()
			if err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
		defer srv.Close()

		log.Printf("Metrics available at http://%s/metrics",
			*metricsAddr)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	if err := runDemo(ctx, recorder, *workers, *tick); err != nil {
		log.Fatalf("Demo troupe failed: %v", err)
	}

	log.Println("trouped shut down cleanly")
}

// runDemo spawns the supervised worker pool, drives periodic batches through
// it until the context is cancelled, then winds everything down gracefully.
func runDemo(ctx context.Context, recorder *journal.Recorder,
	workers int, tick time.Duration) error {

	pool := actorutil.NewPool(actorutil.PoolConfig[demoWorker]{
		Size: workers,
		Factory: func(idx int) demoWorker {
			return demoWorker{idx: idx}
		},
	})

	// A monitor actor linked to every worker: if a worker dies
	// abnormally, the monitor goes down with it and takes the rest of the
	// troupe along through its own links.
	monitor := actor.Spawn(demoMonitor{})
	for _, w := range pool.Workers() {
		monitor.Link(w)
		journal.Watch(context.Background(), recorder, w)
	}
	journal.Watch(context.Background(), recorder, monitor)

	log.Printf("Demo troupe running: %d workers, tick %s",
		pool.Size(), tick)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	batch := int64(0)
	for {
		select {
		case <-ctx.Done():
			log.Println("Shutting down demo troupe")

			if err := pool.StopGracefully(
				context.Background(),
			); err != nil {
				log.Printf("Pool stop error: %v", err)
			}

			shutdownCtx, cancel := context.WithTimeout(
				context.Background(), 10*time.Second,
			)
			defer cancel()

			if err := pool.WaitForStop(shutdownCtx); err != nil {
				return err
			}
			pool.Release()

			monitor.Release()

			return nil

		case <-ticker.C:
			batch++
			fut := pool.Ask(ctx, demoBatch{seq: batch})

			go func() {
				processed, err := actor.Await[int64](ctx, fut)
				if err != nil {
					log.Printf("Batch failed: %v", err)
					return
				}

				if processed%10 == 0 {
					log.Printf("Processed %d batches",
						processed)
				}
			}()
		}
	}
}

// demoWorker is the pool member state: it counts the batches it has handled.
type demoWorker struct {
	idx     int
	handled int64
}

// demoBatch is one unit of demo work.
type demoBatch struct {
	seq int64
}

func (m demoBatch) Handle(_ context.Context, w *demoWorker,
	_ *actor.Context[demoWorker]) actor.Reply {

	w.handled++

	return actor.Value(w.handled)
}

// demoMonitor exists to demonstrate supervision links: it holds no state and
// relies on the default link-death policy.
type demoMonitor struct{}

func (demoMonitor) ActorName() string { return "demo-monitor" }
