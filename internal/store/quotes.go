package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Comment is one quote comment row.
type Comment struct {
	ID        int64
	PassageID int64
	QuoteID   string
	Content   string
	Timestamp time.Time
}

// AddQuote registers a quote id in the durable like-counter table.
// Idempotent upsert: calling it twice with the same id leaves exactly
// one row, so counters survive draft replacement.
func (s *Store) AddQuote(ctx context.Context, quoteID string) error {
	_, err := withRecovery(ctx, s, "add quote", true, struct{}{}, func(ctx context.Context, db *sql.DB) (struct{}, error) {
		_, err := db.ExecContext(ctx,
			`INSERT INTO quote_likes (quote_id, likes) VALUES (?, 0) ON CONFLICT DO NOTHING`,
			quoteID,
		)
		if err != nil {
			return struct{}{}, fmt.Errorf("add quote: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// IncrementQuoteLikes bumps a quote's like counter and returns the new
// total. Returns ErrNotFound for an unregistered quote id. Not treated
// as idempotent: a recovery cycle must not double-count.
func (s *Store) IncrementQuoteLikes(ctx context.Context, quoteID string) (int64, error) {
	return withRecovery(ctx, s, "increment quote likes", false, 0, func(ctx context.Context, db *sql.DB) (int64, error) {
		var likes int64
		err := db.QueryRowContext(ctx,
			`UPDATE quote_likes SET likes = likes + 1 WHERE quote_id = ? RETURNING likes`,
			quoteID,
		).Scan(&likes)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("increment quote likes: %w", err)
		}
		return likes, nil
	})
}

// GetQuoteLikes returns a quote's like counter, zero if unregistered.
func (s *Store) GetQuoteLikes(ctx context.Context, quoteID string) (int64, error) {
	return withRecovery(ctx, s, "get quote likes", true, 0, func(ctx context.Context, db *sql.DB) (int64, error) {
		var likes int64
		err := db.QueryRowContext(ctx,
			`SELECT likes FROM quote_likes WHERE quote_id = ?`, quoteID,
		).Scan(&likes)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("get quote likes: %w", err)
		}
		return likes, nil
	})
}

// IsAlreadyLiked reports whether a session has already liked a quote.
func (s *Store) IsAlreadyLiked(ctx context.Context, passageID int64, quoteID string) (bool, error) {
	return withRecovery(ctx, s, "is already liked", true, false, func(ctx context.Context, db *sql.DB) (bool, error) {
		var one int
		err := db.QueryRowContext(ctx,
			`SELECT 1 FROM user_likes WHERE passage_id = ? AND quote_id = ?`,
			passageID, quoteID,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("is already liked: %w", err)
		}
		return true, nil
	})
}

// AddUserLike records that a session liked a quote. Idempotent upsert on
// the (passage, quote) pair.
func (s *Store) AddUserLike(ctx context.Context, passageID int64, quoteID string) error {
	_, err := withRecovery(ctx, s, "add user like", true, struct{}{}, func(ctx context.Context, db *sql.DB) (struct{}, error) {
		_, err := db.ExecContext(ctx,
			`INSERT INTO user_likes (passage_id, quote_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			passageID, quoteID,
		)
		if err != nil {
			return struct{}{}, fmt.Errorf("add user like: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// IsAlreadyCommented reports whether a session has already commented on
// a quote; one comment per (session, quote) pair is allowed.
func (s *Store) IsAlreadyCommented(ctx context.Context, passageID int64, quoteID string) (bool, error) {
	return withRecovery(ctx, s, "is already commented", true, false, func(ctx context.Context, db *sql.DB) (bool, error) {
		var one int
		err := db.QueryRowContext(ctx,
			`SELECT 1 FROM quote_comments WHERE passage_id = ? AND quote_id = ?`,
			passageID, quoteID,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("is already commented: %w", err)
		}
		return true, nil
	})
}

// AddComment stores a session's comment on a quote. The UNIQUE pair
// constraint makes a retry after recovery safe.
func (s *Store) AddComment(ctx context.Context, passageID int64, quoteID, content string) error {
	_, err := withRecovery(ctx, s, "add comment", true, struct{}{}, func(ctx context.Context, db *sql.DB) (struct{}, error) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO quote_comments (passage_id, quote_id, content)
			VALUES (?, ?, ?)
			ON CONFLICT(passage_id, quote_id) DO NOTHING
		`, passageID, quoteID, content)
		if err != nil {
			return struct{}{}, fmt.Errorf("add comment: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// GetQuoteComments pages through a quote's comments.
// Fallback is an empty list.
func (s *Store) GetQuoteComments(ctx context.Context, quoteID string, limit, offset int) ([]Comment, error) {
	return withRecovery(ctx, s, "get quote comments", true, []Comment{}, func(ctx context.Context, db *sql.DB) ([]Comment, error) {
		rows, err := db.QueryContext(ctx, `
			SELECT id, passage_id, quote_id, content, timestamp
			FROM quote_comments WHERE quote_id = ?
			ORDER BY id LIMIT ? OFFSET ?
		`, quoteID, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("get quote comments: %w", err)
		}
		return collectComments(rows)
	})
}

// GetLatestComments returns a quote's most recent comments, newest
// first. Used when assembling result views.
func (s *Store) GetLatestComments(ctx context.Context, quoteID string, limit int) ([]Comment, error) {
	return withRecovery(ctx, s, "get latest comments", true, []Comment{}, func(ctx context.Context, db *sql.DB) ([]Comment, error) {
		rows, err := db.QueryContext(ctx, `
			SELECT id, passage_id, quote_id, content, timestamp
			FROM quote_comments WHERE quote_id = ?
			ORDER BY timestamp DESC, id DESC LIMIT ?
		`, quoteID, limit)
		if err != nil {
			return nil, fmt.Errorf("get latest comments: %w", err)
		}
		return collectComments(rows)
	})
}

func collectComments(rows *sql.Rows) ([]Comment, error) {
	defer rows.Close()
	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PassageID, &c.QuoteID, &c.Content, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}
