package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups whose key matches no row.
var ErrNotFound = errors.New("store: not found")

// ErrStateConflict is returned by SetState when the optimistic version
// check fails: another advance wrote the session state first.
var ErrStateConflict = errors.New("store: session state version conflict")

// SessionState is a session's persisted navigation document together
// with the version used for optimistic concurrency control.
type SessionState struct {
	Data    map[string]any
	Version int64
}

// CreateSession inserts a fresh session row with empty state and returns
// its id. Not idempotent; a failed call is reported, never re-submitted.
func (s *Store) CreateSession(ctx context.Context, hashToken string) (int64, error) {
	return withRecovery(ctx, s, "create session", false, 0, func(ctx context.Context, db *sql.DB) (int64, error) {
		var id int64
		err := db.QueryRowContext(ctx,
			`INSERT INTO passage (hash_token, state) VALUES (?, '{}') RETURNING id`,
			hashToken,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("create session: %w", err)
		}
		return id, nil
	})
}

// Login verifies that a session id and hash token pair exists.
func (s *Store) Login(ctx context.Context, id int64, hashToken string) (bool, error) {
	return withRecovery(ctx, s, "login", true, false, func(ctx context.Context, db *sql.DB) (bool, error) {
		var one int
		err := db.QueryRowContext(ctx,
			`SELECT 1 FROM passage WHERE id = ? AND hash_token = ?`,
			id, hashToken,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("login: %w", err)
		}
		return true, nil
	})
}

// GetState loads a session's state document and its current version.
// Returns ErrNotFound for an unknown session id.
func (s *Store) GetState(ctx context.Context, id int64) (SessionState, error) {
	return withRecovery(ctx, s, "get state", true, SessionState{}, func(ctx context.Context, db *sql.DB) (SessionState, error) {
		var raw string
		var version int64
		err := db.QueryRowContext(ctx,
			`SELECT state, version FROM passage WHERE id = ?`,
			id,
		).Scan(&raw, &version)
		if errors.Is(err, sql.ErrNoRows) {
			return SessionState{}, ErrNotFound
		}
		if err != nil {
			return SessionState{}, fmt.Errorf("get state: %w", err)
		}

		data := make(map[string]any)
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return SessionState{}, fmt.Errorf("get state: decode: %w", err)
		}
		return SessionState{Data: data, Version: version}, nil
	})
}

// SetState persists a session's state document if and only if the stored
// version still matches. A zero-row update reports ErrStateConflict so a
// concurrent advance loses cleanly instead of silently dropping updates.
//
// The version check makes the write idempotent: re-submitting after a
// recovery either applies once or conflicts, never applies twice.
func (s *Store) SetState(ctx context.Context, id int64, data map[string]any, version int64) error {
	_, err := withRecovery(ctx, s, "set state", true, struct{}{}, func(ctx context.Context, db *sql.DB) (struct{}, error) {
		encoded, err := json.Marshal(data)
		if err != nil {
			return struct{}{}, fmt.Errorf("set state: encode: %w", err)
		}

		res, err := db.ExecContext(ctx,
			`UPDATE passage SET state = ?, version = version + 1 WHERE id = ? AND version = ?`,
			string(encoded), id, version,
		)
		if err != nil {
			return struct{}{}, fmt.Errorf("set state: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return struct{}{}, fmt.Errorf("set state: rows affected: %w", err)
		}
		if affected == 0 {
			return struct{}{}, ErrStateConflict
		}
		return struct{}{}, nil
	})
	return err
}
