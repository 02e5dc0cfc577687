package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varpath/internal/ir"
)

func TestReadSessions_Empty(t *testing.T) {
	s := createTestStore(t)

	sessions, err := s.ReadSessions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sessions, "empty result must be a slice, not nil")
	assert.Empty(t, sessions)
}

func TestReadSessions_OrderAndCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestSession(t, s, "0192-b")
	createTestSession(t, s, "0192-a")
	require.NoError(t, s.WriteRecord(ctx, createTestRecord(t, "0192-b", 1, "someA.a", ir.Uint(1), 0)))
	require.NoError(t, s.WriteRecord(ctx, createTestRecord(t, "0192-b", 2, "someA.b", ir.Uint(2), 1)))

	sessions, err := s.ReadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "0192-a", sessions[0].ID)
	assert.Equal(t, 0, sessions[0].Writes)
	assert.Equal(t, "0192-b", sessions[1].ID)
	assert.Equal(t, 2, sessions[1].Writes)
}

func TestReadSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadSession(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestFindSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestSession(t, s, "0192aaaa-1111")
	createTestSession(t, s, "0192aaaa-2222")
	createTestSession(t, s, "0193bbbb-3333")

	tests := []struct {
		name    string
		prefix  string
		wantID  string
		wantErr error
	}{
		{"full id", "0192aaaa-2222", "0192aaaa-2222", nil},
		{"unique prefix", "0193", "0193bbbb-3333", nil},
		{"ambiguous", "0192aaaa", "", ErrAmbiguousSession},
		{"no match", "0194", "", sql.ErrNoRows},
		{"empty", "", "", sql.ErrNoRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindSession(ctx, tt.prefix)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestReadWrites_SeqOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1")

	// Inserted out of order.
	for _, seq := range []int64{3, 1, 2} {
		require.NoError(t, s.WriteRecord(ctx, createTestRecord(t, "sess-1", seq, "someA.a", ir.Uint(uint64(seq)), 0)))
	}

	writes, err := s.ReadWrites(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, writes, 3)
	for i, w := range writes {
		assert.Equal(t, int64(i+1), w.Seq)
	}
}

func TestReadWrites_Deterministic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1")
	for seq := int64(1); seq <= 5; seq++ {
		require.NoError(t, s.WriteRecord(ctx, createTestRecord(t, "sess-1", seq, "someA.b", ir.Uint(uint64(seq)), 1)))
	}

	first, err := s.ReadWrites(ctx, "sess-1")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.ReadWrites(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestReadWrites_UnknownSession(t *testing.T) {
	s := createTestStore(t)

	writes, err := s.ReadWrites(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, writes)
	assert.Empty(t, writes)
}

func TestReadPathHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-b")
	createTestSession(t, s, "sess-a")

	require.NoError(t, s.WriteRecord(ctx, createTestRecord(t, "sess-b", 1, "someA.a", ir.Uint(3), 0)))
	require.NoError(t, s.WriteRecord(ctx, createTestRecord(t, "sess-a", 2, "someA.a", ir.Uint(2), 0)))
	require.NoError(t, s.WriteRecord(ctx, createTestRecord(t, "sess-a", 1, "someA.a", ir.Uint(1), 0)))
	require.NoError(t, s.WriteRecord(ctx, createTestRecord(t, "sess-a", 3, "someA.b", ir.Uint(9), 1)))

	history, err := s.ReadPathHistory(ctx, "someA.a")
	require.NoError(t, err)
	require.Len(t, history, 3)

	var got []ir.Value
	for _, w := range history {
		got = append(got, w.Value)
	}
	assert.Equal(t, []ir.Value{ir.Int(1), ir.Int(2), ir.Int(3)}, got)
}

func TestReadWrite_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadWrite(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadWrite_CorruptValue(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1")

	_, err := s.db.Exec(`
		INSERT INTO writes (id, session_id, seq, path, value, address, size, layout_hash)
		VALUES ('w1', 'sess-1', 1, 'someA.a', 'not json', 0, 1, 'h')
	`)
	require.NoError(t, err)

	_, err = s.ReadWrite(ctx, "w1")
	assert.Error(t, err)
}
