// Package storage implements Redlite's data model layer (component B):
// the typed key registry and per-type side tables described in spec §3,
// backed by an embedded SQLite database opened through database/sql.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the relational connection and exposes one method per
// per-command contract named in spec §4.1. All operations are
// self-contained: they open a short transaction, read/write, and commit —
// no transaction is ever held across network I/O (§4.1).
type Store struct {
	db *sql.DB

	// notifier is the blocking-wait broadcaster (component D). It is
	// optional: a Store used purely for migrations/tests may leave it nil.
	notifier Notifier
}

// Notifier is the minimal surface component D must provide so the storage
// layer can publish a hint after every write to a list or stream key,
// without storage importing the notify package (which itself has no
// storage dependency, but keeping the edge one-directional avoids an
// import cycle with callers that construct both from the same package).
type Notifier interface {
	Publish(db int, key string)
}

// Open opens (creating if necessary) the SQLite database at dsn and brings
// its schema up to date via embedded goose migrations. dsn may be a
// filesystem path or ":memory:" (spec §6's CLI note).
func Open(ctx context.Context, dsn string) (*Store, error) {
	connString := dsn
	if dsn != ":memory:" {
		// A file: URI with a busy timeout query parameter lets the driver
		// apply SQLite's own lock-wait behavior in addition to the PRAGMA
		// we set explicitly below.
		connString = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dsn)
	}

	db, err := sql.Open("sqlite", connString)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// A single shared-cache writer connection avoids SQLITE_BUSY storms
	// under concurrent connection goroutines; reads and writes both flow
	// through the same *sql.DB, relying on WAL for reader/writer concurrency.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck

		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}

	// Pragmas grounded on original_source/src/db.rs::Db::open.
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	if dsn != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck

			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		db.Close() //nolint:errcheck

		return nil, err
	}

	return &Store{db: db, notifier: nil}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrationsFS)
	if err != nil {
		return fmt.Errorf("constructing migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// SetNotifier wires the blocking-wait broadcaster into the store. Called
// once at server startup (cmd/redlite) after both have been constructed.
func (s *Store) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Store) notify(db int, key string) {
	if s.notifier != nil {
		s.notifier.Publish(db, key)
	}
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing sqlite database: %w", err)
	}

	return nil
}

// DB exposes the raw *sql.DB, used by the admin MEMORY/INFO commands to
// report driver-level statistics and by tests that want to assert on
// persisted rows directly.
func (s *Store) DB() *sql.DB {
	return s.db
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
