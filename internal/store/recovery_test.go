package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestRecovery_IdempotentReadRetriesAfterDrop(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "token")
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	state, _ := s.GetState(ctx, id)
	doc := map[string]any{"steps_trace": []any{"welcome"}}
	if err := s.SetState(ctx, id, doc, state.Version); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}

	// A dropped connection mid-read must be repaired inside the same
	// logical call: redial, probe, retry once, return the real state.
	breakConnection(t, s)

	got, err := s.GetState(ctx, id)
	if err != nil {
		t.Fatalf("GetState() after drop = %v, want recovered read", err)
	}
	if !reflect.DeepEqual(got.Data, doc) {
		t.Errorf("recovered state = %v, want %v", got.Data, doc)
	}
	if s.LastError() != nil {
		t.Errorf("LastError() = %v, want cleared after recovery", s.LastError())
	}
}

func TestRecovery_NonIdempotentWriteFallsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	breakConnection(t, s)

	// CreateSession is not retried: a write that may have landed cannot
	// be safely repeated, so the caller gets the fallback and
	// ErrUnavailable.
	id, err := s.CreateSession(ctx, "token")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("CreateSession() after drop = %v, want ErrUnavailable", err)
	}
	if id != 0 {
		t.Errorf("fallback id = %d, want 0", id)
	}

	// The recovery itself still happened; the next call succeeds.
	if _, err := s.CreateSession(ctx, "token"); err != nil {
		t.Errorf("CreateSession() after recovery = %v, want success", err)
	}
}

func TestRecovery_RetryDoesNotDuplicateHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	pid, _ := s.CreateSession(ctx, "token")
	rec := StepRecord{AdvanceID: "adv-1", PassageID: pid, Key: "q1", DraftName: "demo"}
	if _, err := s.AddStepRecord(ctx, rec); err != nil {
		t.Fatalf("AddStepRecord() failed: %v", err)
	}

	// Worst case after an ambiguous failure: the caller repeats the
	// whole call. The advance id keeps the history append-once.
	breakConnection(t, s)
	if _, err := s.AddStepRecord(ctx, rec); err != nil {
		t.Fatalf("AddStepRecord() after drop = %v, want recovered write", err)
	}

	records, err := s.GetStepRecords(ctx, pid)
	if err != nil {
		t.Fatalf("GetStepRecords() failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d history rows, want 1", len(records))
	}
}

func TestRecovery_BusinessErrorsBypassRecovery(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.GetState(ctx, 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetState(unknown) = %v, want ErrNotFound", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("business error was wrapped with ErrUnavailable")
	}
	if s.LastError() != nil {
		t.Errorf("LastError() = %v, want nil for a business error", s.LastError())
	}
}
