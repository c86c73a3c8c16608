package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/mkarpov/readquiz/internal/metrics"
)

// ErrUnavailable is returned together with an operation's fallback value
// when the statement failed and recovery did not restore a usable
// connection. Raw driver errors never escape the package.
var ErrUnavailable = errors.New("store: database unavailable")

// withRecovery runs a statement closure under the recovery contract.
//
// On failure the error is captured, the connection is recovered, and a
// liveness probe decides what happens next: if the probe succeeds and
// the operation is idempotent, the closure runs exactly one more time;
// otherwise the fallback value is returned with ErrUnavailable. The
// business statement is never attempted more than twice per logical
// call, and non-idempotent writes are never re-submitted - recovery
// covers the connection, not the statement.
func withRecovery[T any](ctx context.Context, s *Store, name string, idempotent bool, fallback T, op func(ctx context.Context, db *sql.DB) (T, error)) (T, error) {
	db, err := s.handle()
	if err != nil {
		slog.Error("store: no connection", "op", name, "error", err)
		metrics.StoreFallbacks.Inc()
		return fallback, errors.Join(ErrUnavailable, err)
	}

	result, err := op(ctx, db)
	if err == nil || isBusinessError(err) {
		return result, err
	}

	s.noteFailure(name, err)
	db, recovered := s.recover(ctx)
	if !recovered {
		metrics.StoreFallbacks.Inc()
		return fallback, errors.Join(ErrUnavailable, err)
	}

	if !idempotent {
		// The statement may or may not have applied before the failure;
		// re-submitting could double a side effect. Degrade instead.
		metrics.StoreFallbacks.Inc()
		return fallback, errors.Join(ErrUnavailable, err)
	}

	result, err = op(ctx, db)
	if err != nil && isBusinessError(err) {
		return result, err
	}
	if err != nil {
		s.noteFailure(name, err)
		metrics.StoreFallbacks.Inc()
		return fallback, errors.Join(ErrUnavailable, err)
	}
	slog.Info("store: operation succeeded after recovery", "op", name)
	return result, nil
}

func (s *Store) noteFailure(name string, err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	slog.Warn("store: statement failed", "op", name, "error", err)
}

// recover repairs the connection after a failure and reports whether it
// is usable again. Classification mirrors the two failure states a
// relational session can be left in:
//
//   - a transaction wedged in an aborted state: per-operation
//     transactions roll back on their deferred Rollback, so clearing the
//     cached error and probing is sufficient;
//   - a dead link: the handle is discarded and redialed.
//
// After repair a trivial probe (SELECT 1) decides the outcome.
func (s *Store) recover(ctx context.Context) (*sql.DB, bool) {
	slog.Info("store: recovery starts")

	s.mu.Lock()
	db := s.db
	s.mu.Unlock()

	if db != nil {
		if err := probe(ctx, db); err == nil {
			s.clearError()
			slog.Info("store: recovery finished", "action", "rollback")
			metrics.StoreRecoveries.WithLabelValues("recovered").Inc()
			return db, true
		}
		slog.Warn("store: connection is bad, redialing")
		db.Close()
	}

	fresh, err := dial(s.path)
	if err != nil {
		s.mu.Lock()
		s.db = nil
		s.lastErr = err
		s.mu.Unlock()
		slog.Error("store: recovery failed", "error", err)
		metrics.StoreRecoveries.WithLabelValues("failed").Inc()
		return nil, false
	}

	s.mu.Lock()
	s.db = fresh
	s.mu.Unlock()

	if err := probe(ctx, fresh); err != nil {
		slog.Error("store: recovery failed", "error", err)
		metrics.StoreRecoveries.WithLabelValues("failed").Inc()
		return nil, false
	}

	s.clearError()
	slog.Info("store: recovery finished", "action", "redial")
	metrics.StoreRecoveries.WithLabelValues("recovered").Inc()
	return fresh, true
}

func (s *Store) clearError() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

// isBusinessError reports whether an error is part of an operation's
// contract (missing row, version conflict) rather than an infrastructure
// failure. Business errors pass through untouched and never trigger the
// recovery sequence.
func isBusinessError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStateConflict) ||
		errors.Is(err, ErrDuplicateFeedback)
}

// probe runs the SELECT 1 liveness check.
func probe(ctx context.Context, db *sql.DB) error {
	var one int
	return db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}
