package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store provides resilient access to the quiz database.
// The underlying *sql.DB may be discarded and redialed by the recovery
// path at any time, so it is only ever touched through handle().
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	path    string
	lastErr error
}

// Open creates or opens the quiz database at the given path and applies
// the bootstrap schema. Idempotent - safe to call multiple times.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*Store, error) {
	db, err := dial(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// dial establishes a fresh connection, applies pragmas and the schema,
// and verifies liveness. Used by Open and by the recovery path.
func dial(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return db, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// handle returns the current connection, redialing if a previous
// recovery discarded it.
func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	db, err := dial(s.path)
	if err != nil {
		s.lastErr = err
		return nil, err
	}
	s.db = db
	return db, nil
}

// Healthcheck reports whether the database answers a liveness probe,
// running the recovery sequence if it does not. The message carries the
// last captured error for operator diagnostics.
func (s *Store) Healthcheck(ctx context.Context) (bool, string) {
	db, err := s.handle()
	if err == nil {
		err = probe(ctx, db)
	}
	if err != nil {
		if _, recovered := s.recover(ctx); !recovered {
			return false, fmt.Sprintf("database unavailable: %v", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil {
		return true, fmt.Sprintf("database available (last error: %v)", s.lastErr)
	}
	return true, "database available"
}

// LastError returns the most recently captured infrastructure error.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
