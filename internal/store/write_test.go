package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varpath/internal/ir"
)

func TestWriteSession_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sess := ir.Session{ID: "sess-1", LayoutHash: "h1", Source: "a.elf"}
	require.NoError(t, s.WriteSession(ctx, sess))

	// Same ID with different content is ignored, not an error.
	require.NoError(t, s.WriteSession(ctx, ir.Session{ID: "sess-1", LayoutHash: "h2", Source: "b.elf"}))

	got, err := s.ReadSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.LayoutHash)
	assert.Equal(t, "a.elf", got.Source)
}

func TestWriteRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1")

	rec := createTestRecord(t, "sess-1", 1, "someA.a", ir.Uint(7), 0x20000000)
	require.NoError(t, s.WriteRecord(ctx, rec))

	got, err := s.ReadWrite(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.SessionID, got.SessionID)
	assert.Equal(t, rec.Seq, got.Seq)
	assert.Equal(t, rec.Path, got.Path)
	assert.Equal(t, ir.Int(7), got.Value, "stored JSON reads back in input form")
	assert.Equal(t, rec.Address, got.Address)
	assert.Equal(t, rec.Size, got.Size)
	assert.Equal(t, rec.LayoutHash, got.LayoutHash)
}

func TestWriteRecord_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1")

	rec := createTestRecord(t, "sess-1", 1, "someA.a", ir.Uint(7), 0x20000000)
	require.NoError(t, s.WriteRecord(ctx, rec))
	require.NoError(t, s.WriteRecord(ctx, rec))

	writes, err := s.ReadWrites(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, writes, 1)
}

func TestWriteRecord_DuplicateSeqRejected(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1")

	require.NoError(t, s.WriteRecord(ctx, createTestRecord(t, "sess-1", 1, "someA.a", ir.Uint(7), 0x20000000)))
	err := s.WriteRecord(ctx, createTestRecord(t, "sess-1", 1, "someA.b", ir.Uint(8), 0x20000001))
	assert.Error(t, err)
}

func TestWriteRecord_RequiresSession(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteRecord(context.Background(), createTestRecord(t, "missing", 1, "someA.a", ir.Uint(1), 0))
	assert.Error(t, err, "foreign key should reject unknown session")
}

func TestWriteRecord_HighAddress(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1")

	rec := createTestRecord(t, "sess-1", 1, "g", ir.Uint(1), 0xFFFF_FFFF_FFFF_FFF0)
	require.NoError(t, s.WriteRecord(ctx, rec))

	got, err := s.ReadWrite(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFFFF_FFFF_FFFF_FFF0), got.Address)
}

func TestWriteRecord_CompositeValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1")

	tests := []struct {
		name string
		in   ir.Value
		want ir.Value
	}{
		{"known enum", ir.Enum{Name: "SomeEnumB", Raw: 1}, ir.String("SomeEnumB")},
		{"unnamed enum", ir.Enum{Raw: 9}, ir.Int(9)},
		{"pointer", ir.Pointer(0x20000014), ir.String("0x20000014")},
		{"array", ir.Array{ir.Uint(1), ir.Uint(2)}, ir.Array{ir.Int(1), ir.Int(2)}},
		{
			"struct",
			ir.Struct{ir.S("b", ir.Uint(2)), ir.S("a", ir.Uint(1))},
			ir.Struct{ir.S("a", ir.Int(1)), ir.S("b", ir.Int(2))},
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := createTestRecord(t, "sess-1", int64(i+1), "v", tt.in, 0)
			require.NoError(t, s.WriteRecord(ctx, rec))

			got, err := s.ReadWrite(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value)
		})
	}
}
