package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// StepRecord is one append-only history row per advance call.
type StepRecord struct {
	// AdvanceID is the idempotency key for this logical advance call.
	// The UNIQUE constraint on it guarantees at-most-one insert even
	// after a connection recovery cycle.
	AdvanceID   string
	PassageID   int64
	Key         string
	FullData    any
	SummaryData any
	DraftName   string
	Stats       any
}

// StepRecordRow is a step record as read back from the store.
type StepRecordRow struct {
	Key         string
	DraftName   string
	FullData    string
	SummaryData string
	Timestamp   time.Time
}

// AddStepRecord appends a step-history row and returns its id.
// Idempotent per AdvanceID: a duplicate insert is silently ignored and
// the existing row's id is returned.
func (s *Store) AddStepRecord(ctx context.Context, rec StepRecord) (int64, error) {
	return withRecovery(ctx, s, "add step record", true, 0, func(ctx context.Context, db *sql.DB) (int64, error) {
		fullJSON, err := json.Marshal(rec.FullData)
		if err != nil {
			return 0, fmt.Errorf("add step record: encode full data: %w", err)
		}
		summaryJSON, err := json.Marshal(rec.SummaryData)
		if err != nil {
			return 0, fmt.Errorf("add step record: encode summary data: %w", err)
		}
		statsJSON, err := json.Marshal(rec.Stats)
		if err != nil {
			return 0, fmt.Errorf("add step record: encode stats: %w", err)
		}

		res, err := db.ExecContext(ctx, `
			INSERT INTO step_data (advance_id, passage_id, key, full_data, summary_data, draft_name, stats)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(advance_id) DO NOTHING
		`,
			rec.AdvanceID, rec.PassageID, rec.Key,
			string(fullJSON), string(summaryJSON), rec.DraftName, string(statsJSON),
		)
		if err != nil {
			return 0, fmt.Errorf("add step record: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("add step record: rows affected: %w", err)
		}
		if affected > 0 {
			id, err := res.LastInsertId()
			if err != nil {
				return 0, fmt.Errorf("add step record: last insert id: %w", err)
			}
			return id, nil
		}

		// Conflict - this advance already wrote its row.
		var id int64
		err = db.QueryRowContext(ctx,
			`SELECT id FROM step_data WHERE advance_id = ?`, rec.AdvanceID,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("add step record: select existing: %w", err)
		}
		return id, nil
	})
}

// AddTracking appends a telemetry row keyed to a step record.
// Scalar payloads are wrapped in a list so the column always holds a
// JSON collection. At-least-once is the contract; duplicates from an
// ambiguous recovery are acceptable for telemetry, so the insert is
// treated as idempotent for retry purposes.
func (s *Store) AddTracking(ctx context.Context, stepDataID int64, fullData, summaryData any) error {
	_, err := withRecovery(ctx, s, "add tracking", true, struct{}{}, func(ctx context.Context, db *sql.DB) (struct{}, error) {
		fullJSON, err := json.Marshal(asCollection(fullData))
		if err != nil {
			return struct{}{}, fmt.Errorf("add tracking: encode full data: %w", err)
		}
		summaryJSON, err := json.Marshal(asCollection(summaryData))
		if err != nil {
			return struct{}{}, fmt.Errorf("add tracking: encode summary data: %w", err)
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO tracking_data (step_data_id, full_data, summary_data)
			VALUES (?, ?, ?)
		`, stepDataID, string(fullJSON), string(summaryJSON))
		if err != nil {
			return struct{}{}, fmt.Errorf("add tracking: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// GetStepRecords lists a session's step history, oldest first.
// Fallback is an empty list.
func (s *Store) GetStepRecords(ctx context.Context, passageID int64) ([]StepRecordRow, error) {
	return withRecovery(ctx, s, "get step records", true, []StepRecordRow{}, func(ctx context.Context, db *sql.DB) ([]StepRecordRow, error) {
		rows, err := db.QueryContext(ctx, `
			SELECT key, draft_name, full_data, summary_data, timestamp
			FROM step_data WHERE passage_id = ? ORDER BY id
		`, passageID)
		if err != nil {
			return nil, fmt.Errorf("get step records: %w", err)
		}
		defer rows.Close()

		var records []StepRecordRow
		for rows.Next() {
			var r StepRecordRow
			if err := rows.Scan(&r.Key, &r.DraftName, &r.FullData, &r.SummaryData, &r.Timestamp); err != nil {
				return nil, fmt.Errorf("get step records: scan: %w", err)
			}
			records = append(records, r)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get step records: %w", err)
		}
		return records, nil
	})
}

// asCollection wraps scalars in a single-element list.
func asCollection(v any) any {
	switch v.(type) {
	case nil:
		return []any{}
	case []any, map[string]any:
		return v
	default:
		return []any{v}
	}
}
