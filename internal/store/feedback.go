package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrDuplicateFeedback is returned when a session submits feedback twice.
// One entry per session is kept.
var ErrDuplicateFeedback = errors.New("store: feedback already received")

// AddFeedback stores a session's feedback. The passage id is the primary
// key, so a second submission (or a retry after recovery) reports
// ErrDuplicateFeedback instead of inserting a duplicate.
func (s *Store) AddFeedback(ctx context.Context, passageID int64, email, name, mainText string) error {
	_, err := withRecovery(ctx, s, "add feedback", true, struct{}{}, func(ctx context.Context, db *sql.DB) (struct{}, error) {
		res, err := db.ExecContext(ctx, `
			INSERT INTO feedbacks (passage_id, email, user_name, main_text)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(passage_id) DO NOTHING
		`, passageID, email, name, mainText)
		if err != nil {
			return struct{}{}, fmt.Errorf("add feedback: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return struct{}{}, fmt.Errorf("add feedback: rows affected: %w", err)
		}
		if affected == 0 {
			return struct{}{}, ErrDuplicateFeedback
		}
		return struct{}{}, nil
	})
	return err
}
