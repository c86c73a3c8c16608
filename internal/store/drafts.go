package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// DraftVersion is one immutable row of authored draft content.
type DraftVersion struct {
	ID           int64
	Text         string
	Name         string
	Publisher    string
	PurchaseLink string
}

// AddDraft appends a new draft version (drafts are never mutated in
// place) and returns its id.
func (s *Store) AddDraft(ctx context.Context, text, draftName, publisher, purchaseLink, adminID string) (int64, error) {
	return withRecovery(ctx, s, "add draft", false, 0, func(ctx context.Context, db *sql.DB) (int64, error) {
		var id int64
		err := db.QueryRowContext(ctx, `
			INSERT INTO draft_version (text, draft_name, publisher, purchase_link, admin_id)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id
		`, text, draftName, publisher, purchaseLink, adminID).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("add draft: %w", err)
		}
		return id, nil
	})
}

// GetActiveDraft returns the draft currently flagged active.
// Returns ErrNotFound when no draft is active - a degraded state callers
// must tolerate.
func (s *Store) GetActiveDraft(ctx context.Context) (DraftVersion, error) {
	return withRecovery(ctx, s, "get active draft", true, DraftVersion{}, func(ctx context.Context, db *sql.DB) (DraftVersion, error) {
		return scanDraft(db.QueryRowContext(ctx, `
			SELECT id, text, draft_name, publisher, purchase_link
			FROM draft_version WHERE active = 1
			ORDER BY timestamp DESC, id DESC LIMIT 1
		`))
	})
}

// GetDraftByName returns the most recent version carrying a draft name.
func (s *Store) GetDraftByName(ctx context.Context, draftName string) (DraftVersion, error) {
	return withRecovery(ctx, s, "get draft by name", true, DraftVersion{}, func(ctx context.Context, db *sql.DB) (DraftVersion, error) {
		return scanDraft(db.QueryRowContext(ctx, `
			SELECT id, text, draft_name, publisher, purchase_link
			FROM draft_version WHERE draft_name = ?
			ORDER BY timestamp DESC, id DESC LIMIT 1
		`, draftName))
	})
}

// GetDraftByID returns a specific draft version.
func (s *Store) GetDraftByID(ctx context.Context, id int64) (DraftVersion, error) {
	return withRecovery(ctx, s, "get draft by id", true, DraftVersion{}, func(ctx context.Context, db *sql.DB) (DraftVersion, error) {
		return scanDraft(db.QueryRowContext(ctx, `
			SELECT id, text, draft_name, publisher, purchase_link
			FROM draft_version WHERE id = ?
		`, id))
	})
}

// DraftNames lists the distinct draft names known to the store.
// Fallback is an empty list.
func (s *Store) DraftNames(ctx context.Context) ([]string, error) {
	return withRecovery(ctx, s, "draft names", true, []string{}, func(ctx context.Context, db *sql.DB) ([]string, error) {
		rows, err := db.QueryContext(ctx, `SELECT DISTINCT draft_name FROM draft_version ORDER BY draft_name`)
		if err != nil {
			return nil, fmt.Errorf("draft names: %w", err)
		}
		defer rows.Close()

		var names []string
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return nil, fmt.Errorf("draft names: scan: %w", err)
			}
			names = append(names, name)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("draft names: %w", err)
		}
		return names, nil
	})
}

// SetActiveDraft flips the active flag to the given draft id. The two
// updates run in one transaction so at most one draft is ever observed
// active. Idempotent: re-applying the same flip is a no-op.
func (s *Store) SetActiveDraft(ctx context.Context, draftID int64) error {
	_, err := withRecovery(ctx, s, "set active draft", true, struct{}{}, func(ctx context.Context, db *sql.DB) (struct{}, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return struct{}{}, fmt.Errorf("set active draft: begin tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`UPDATE draft_version SET active = 1 WHERE id = ?`, draftID); err != nil {
			return struct{}{}, fmt.Errorf("set active draft: activate: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE draft_version SET active = 0 WHERE id != ? AND active = 1`, draftID); err != nil {
			return struct{}{}, fmt.Errorf("set active draft: retire: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return struct{}{}, fmt.Errorf("set active draft: commit: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// RotateDailyDraft picks the next daily draft uniformly at random among
// versions other than the one currently marked daily-active, records the
// selection, and moves the active marker - all in one transaction.
// Returns the newly selected draft.
func (s *Store) RotateDailyDraft(ctx context.Context) (DraftVersion, error) {
	return withRecovery(ctx, s, "rotate daily draft", false, DraftVersion{}, func(ctx context.Context, db *sql.DB) (DraftVersion, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return DraftVersion{}, fmt.Errorf("rotate daily draft: begin tx: %w", err)
		}
		defer tx.Rollback()

		var currentID sql.NullInt64
		var currentDraftID sql.NullInt64
		err = tx.QueryRowContext(ctx,
			`SELECT id, draft_id FROM daily_drafts WHERE active = 1 LIMIT 1`,
		).Scan(&currentID, &currentDraftID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return DraftVersion{}, fmt.Errorf("rotate daily draft: current: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, text, draft_name, publisher, purchase_link
			FROM draft_version WHERE id != ?
		`, currentDraftID.Int64)
		if err != nil {
			return DraftVersion{}, fmt.Errorf("rotate daily draft: candidates: %w", err)
		}
		candidates, err := collectDrafts(rows)
		if err != nil {
			return DraftVersion{}, fmt.Errorf("rotate daily draft: %w", err)
		}
		if len(candidates) == 0 {
			return DraftVersion{}, ErrNotFound
		}

		// Uniform random among non-active candidates; nothing stronger
		// is promised.
		next := candidates[rand.Intn(len(candidates))]

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO daily_drafts (draft_id, active, was_selected, date)
			VALUES (?, 1, 1, ?)
		`, next.ID, time.Now().Format("2006-01-02")); err != nil {
			return DraftVersion{}, fmt.Errorf("rotate daily draft: select next: %w", err)
		}

		if currentID.Valid {
			if _, err := tx.ExecContext(ctx,
				`UPDATE daily_drafts SET active = 0 WHERE id = ?`, currentID.Int64); err != nil {
				return DraftVersion{}, fmt.Errorf("rotate daily draft: retire previous: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return DraftVersion{}, fmt.Errorf("rotate daily draft: commit: %w", err)
		}
		return next, nil
	})
}

func scanDraft(row *sql.Row) (DraftVersion, error) {
	var d DraftVersion
	err := row.Scan(&d.ID, &d.Text, &d.Name, &d.Publisher, &d.PurchaseLink)
	if errors.Is(err, sql.ErrNoRows) {
		return DraftVersion{}, ErrNotFound
	}
	if err != nil {
		return DraftVersion{}, fmt.Errorf("scan draft: %w", err)
	}
	return d, nil
}

func collectDrafts(rows *sql.Rows) ([]DraftVersion, error) {
	defer rows.Close()
	var drafts []DraftVersion
	for rows.Next() {
		var d DraftVersion
		if err := rows.Scan(&d.ID, &d.Text, &d.Name, &d.Publisher, &d.PurchaseLink); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return drafts, nil
}
