package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/varpath/internal/ir"
)

// createTestStore creates a new store in a temp directory.
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

// createTestSession writes a session with minimal required fields.
func createTestSession(t *testing.T, s *Store, id string) ir.Session {
	t.Helper()
	sess := ir.Session{ID: id, LayoutHash: "layout-hash", Source: "test_structs.c"}
	if err := s.WriteSession(context.Background(), sess); err != nil {
		t.Fatalf("WriteSession(%s) failed: %v", id, err)
	}
	return sess
}

// createTestRecord builds a write record with a content-addressed ID.
func createTestRecord(t *testing.T, sessionID string, seq int64, path string, v ir.Value, addr uint64) ir.WriteRecord {
	t.Helper()
	return ir.WriteRecord{
		ID:         ir.MustWriteID(sessionID, seq, path, v),
		SessionID:  sessionID,
		Seq:        seq,
		Path:       path,
		Value:      v,
		Address:    addr,
		Size:       1,
		LayoutHash: "layout-hash",
	}
}
