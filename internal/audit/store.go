// Package audit persists bind attempts and policy decisions to a local
// SQLite database for later security review. The write path never
// blocks a session: events are pushed onto a buffered channel and a
// single background goroutine does the actual insert.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a write-mostly audit log: Record is called from session
// goroutines, Recent is called from the management API.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger

	events    chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	dropped atomic.Uint64
}

// Config configures Open.
type Config struct {
	Path      string
	QueueSize int // buffered channel capacity, default 1024
	Logger    *slog.Logger
}

// Open opens or creates the SQLite database at cfg.Path, applies
// pending migrations, and starts the writer goroutine.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", cfg.Path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	s := &Store{
		conn:   conn,
		logger: cfg.Logger,
		events: make(chan Event, queueSize),
		done:   make(chan struct{}),
	}

	if err := s.runMigrations(); err != nil {
		conn.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

func (s *Store) runMigrations() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("audit: migration source: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(s.conn, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("audit: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("audit: migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("audit: running migrations: %w", err)
	}
	return nil
}

// Close stops the writer goroutine, draining any queued events first,
// and closes the database.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	return s.conn.Close()
}

// Dropped returns the number of events discarded because the queue was
// full, for the /stats endpoint.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case e := <-s.events:
			s.insert(e)
		case <-s.done:
			for {
				select {
				case e := <-s.events:
					s.insert(e)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) insert(e Event) {
	_, err := s.conn.Exec(
		`INSERT INTO audit_events (conn_id, remote_addr, kind, bind_dn, base, scope, filter, decision, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ConnID, e.RemoteAddr, e.Kind, e.BindDN, e.Base, e.Scope, e.Filter, e.Decision, e.Detail,
	)
	if err != nil {
		s.logger.Warn("audit: insert failed", slog.Any("error", err))
	}
}

// Recent returns up to limit of the most recently recorded events,
// newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT occurred_at, conn_id, remote_addr, kind, bind_dn, base, scope, filter, decision, detail
		 FROM audit_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: querying recent events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.OccurredAt, &e.ConnID, &e.RemoteAddr, &e.Kind, &e.BindDN, &e.Base, &e.Scope, &e.Filter, &e.Decision, &e.Detail); err != nil {
			return nil, fmt.Errorf("audit: scanning event row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
