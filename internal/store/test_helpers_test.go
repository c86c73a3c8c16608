package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// breakConnection simulates a transient connection drop by closing the
// underlying handle out from under the store.
func breakConnection(t *testing.T, s *Store) {
	t.Helper()
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		t.Fatal("store has no connection to break")
	}
	if err := db.Close(); err != nil {
		t.Fatalf("closing connection: %v", err)
	}
}
