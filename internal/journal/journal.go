// Package journal persists a record of actor lifecycle events (spawns,
// stops, link deaths) to a local SQLite database. It observes actors purely
// through the public runtime API; actor state itself is never persisted.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// defaultMaxConns bounds the connection pool. SQLite wants a single
	// writer with a handful of readers.
	defaultMaxConns = 4

	// defaultConnMaxLifetime is the maximum amount of time a connection
	// can be reused for before it is closed.
	defaultConnMaxLifetime = 10 * time.Minute
)

// Event is one row of the lifecycle journal.
type Event struct {
	// ID is a random unique identifier for the event row.
	ID string

	// RunID groups events recorded by one process run.
	RunID string

	// ActorID is the runtime-assigned actor identifier.
	ActorID uint64

	// ActorName is the actor's display name.
	ActorName string

	// Kind is the event kind: "spawned" or "stopped".
	Kind string

	// Reason carries the stop reason description for stopped events,
	// empty otherwise.
	Reason string

	// OccurredAt is when the event was recorded.
	OccurredAt time.Time
}

// Config holds the arguments needed to open the journal database.
type Config struct {
	// DatabaseFileName is the full path of the database file.
	DatabaseFileName string

	// SkipMigrations skips schema migrations on open when set.
	SkipMigrations bool
}

// Store is the SQLite-backed journal store.
type Store struct {
	cfg *Config
	log *slog.Logger
	db  *sql.DB
}

// NewStore opens (creating if needed) the journal database and applies any
// pending migrations.
func NewStore(cfg *Config, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.DatabaseFileName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create journal "+
			"directory: %w", err)
	}

	// Open with foreign keys and WAL mode enabled via URI.
	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		cfg.DatabaseFileName,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxConns)
	db.SetMaxIdleConns(defaultMaxConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	s := &Store{
		cfg: cfg,
		log: log,
		db:  db,
	}

	if !cfg.SkipMigrations {
		if err := s.executeMigrations(TargetLatest); err != nil {
			db.Close()
			return nil, fmt.Errorf("error executing journal "+
				"migrations: %w", err)
		}
	}

	return s, nil
}

// DB exposes the underlying handle for the migration driver and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteEvent inserts one lifecycle event.
func (s *Store) WriteEvent(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lifecycle_events (
			id, run_id, actor_id, actor_name, kind, reason,
			occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RunID, int64(ev.ActorID), ev.ActorName, ev.Kind,
		ev.Reason, ev.OccurredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to write journal event: %w", err)
	}

	return nil
}

// ListEvents returns the most recent events, newest first, up to limit.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, actor_id, actor_name, kind, reason,
			occurred_at
		FROM lifecycle_events
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// EventsForActor returns every event recorded for one actor, oldest first.
func (s *Store) EventsForActor(ctx context.Context,
	actorID uint64) ([]Event, error) {

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, actor_id, actor_name, kind, reason,
			occurred_at
		FROM lifecycle_events
		WHERE actor_id = ?
		ORDER BY occurred_at ASC, id ASC`, int64(actorID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal events: %w",
			err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// scanEvents folds a result set into Event values.
func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			ev       Event
			actorID  int64
			occurred int64
		)
		err := rows.Scan(
			&ev.ID, &ev.RunID, &actorID, &ev.ActorName, &ev.Kind,
			&ev.Reason, &occurred,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal "+
				"event: %w", err)
		}

		ev.ActorID = uint64(actorID)
		ev.OccurredAt = time.Unix(0, occurred)
		events = append(events, ev)
	}

	return events, rows.Err()
}

// DefaultDBPath returns the default journal database location.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".troupe", "journal.db"), nil
}
