package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/memlink"
	"github.com/roach88/varpath/internal/symtab"
	"github.com/roach88/varpath/internal/testutil"
	"github.com/roach88/varpath/internal/varstore"
)

const relinkOffset = 0x100

// relinkedLayout is the fixture after a relink that moved every symbol.
func relinkedLayout() ir.Layout {
	l := testutil.FixtureLayout()
	for i := range l.Symbols {
		l.Symbols[i].Address += relinkOffset
	}
	return l
}

func newVarStore(t *testing.T, layout ir.Layout, base uint64, opts ...varstore.Option) (*varstore.Store, *memlink.Image) {
	t.Helper()
	snap, err := varstore.NewSnapshot(layout)
	require.NoError(t, err)
	img := memlink.NewBufferFrom(base, testutil.FixtureImage())
	return varstore.New(snap, img, opts...), img
}

// recordSession journals a few writes through a varstore and returns the session id.
func recordSession(t *testing.T, s *Store) string {
	t.Helper()
	ctx := context.Background()

	vs, _ := newVarStore(t, testutil.FixtureLayout(), testutil.FixtureBase,
		varstore.WithJournal(s),
		varstore.WithClock(varstore.NewClock()),
		varstore.WithSessionGenerator(testutil.NewFixedSessionGenerator("sess-rec")),
	)

	require.NoError(t, vs.Set(ctx, "someA.a", ir.Uint(7)))
	require.NoError(t, vs.Set(ctx, "nestedStructArray[1].someA.b", ir.Uint(99)))
	require.NoError(t, vs.Set(ctx, "someEnum", ir.String("SomeEnumC")))
	require.NoError(t, vs.Set(ctx, "recursiveStruct.next", ir.Pointer(testutil.AddrRecursiveStruct)))
	return vs.SessionID()
}

func TestReplay_SameLayout(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sessionID := recordSession(t, s)

	target, _ := newVarStore(t, testutil.FixtureLayout(), testutil.FixtureBase)
	result, err := s.Replay(ctx, sessionID, target, ReplayOptions{LayoutHash: target.Snapshot().LayoutHash})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Applied)
	assert.Equal(t, 0, result.Relocated)
	assert.False(t, result.LayoutChanged)
	assert.Empty(t, result.Failed)

	v, err := target.Get(ctx, "someA.a")
	require.NoError(t, err)
	assert.Equal(t, ir.Uint(7), v)

	v, err = target.Get(ctx, "someEnum")
	require.NoError(t, err)
	assert.Equal(t, ir.Enum{Name: "SomeEnumC", Raw: 2}, v)

	v, err = target.Get(ctx, "recursiveStruct.next")
	require.NoError(t, err)
	assert.Equal(t, ir.Pointer(testutil.AddrRecursiveStruct), v)
}

func TestReplay_Relinked(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sessionID := recordSession(t, s)

	target, img := newVarStore(t, relinkedLayout(), testutil.FixtureBase+relinkOffset)
	result, err := s.Replay(ctx, sessionID, target, ReplayOptions{LayoutHash: target.Snapshot().LayoutHash})
	require.NoError(t, err)

	assert.True(t, result.LayoutChanged)
	assert.Equal(t, 4, result.Applied)
	assert.Equal(t, 4, result.Relocated)

	// Bytes landed at the new addresses.
	b, err := img.ReadBytes(ctx, testutil.AddrSomeA+relinkOffset, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, b)

	v, err := target.Get(ctx, "nestedStructArray[1].someA.b")
	require.NoError(t, err)
	assert.Equal(t, ir.Uint(99), v)
}

func TestReplay_DryRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sessionID := recordSession(t, s)

	target, img := newVarStore(t, testutil.FixtureLayout(), testutil.FixtureBase)
	result, err := s.Replay(ctx, sessionID, target, ReplayOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Applied)

	b, err := img.ReadBytes(ctx, testutil.AddrSomeA, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{69}, b, "dry run must not touch the target")
}

func TestReplay_MissingSymbol(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sessionID := recordSession(t, s)

	layout := testutil.FixtureLayout()
	kept := layout.Symbols[:0]
	for _, sym := range layout.Symbols {
		if sym.Name != "someEnum" {
			kept = append(kept, sym)
		}
	}
	layout.Symbols = kept

	target, _ := newVarStore(t, layout, testutil.FixtureBase)
	result, err := s.Replay(ctx, sessionID, target, ReplayOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Applied)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "someEnum", result.Failed[0].Path)
	assert.Equal(t, int64(3), result.Failed[0].Seq)
	assert.True(t, symtab.IsUnknownSymbol(result.Failed[0].Err))
}

func TestReplay_StopOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sessionID := recordSession(t, s)

	layout := testutil.FixtureLayout()
	layout.Symbols = layout.Symbols[1:] // drop someA

	target, _ := newVarStore(t, layout, testutil.FixtureBase)
	result, err := s.Replay(ctx, sessionID, target, ReplayOptions{StopOnError: true})
	require.Error(t, err)
	assert.True(t, symtab.IsUnknownSymbol(err))
	assert.Equal(t, 0, result.Applied)
	assert.Len(t, result.Failed, 1)
}

func TestReplay_UnknownSession(t *testing.T) {
	s := createTestStore(t)

	target, _ := newVarStore(t, testutil.FixtureLayout(), testutil.FixtureBase)
	_, err := s.Replay(context.Background(), "missing", target, ReplayOptions{})
	assert.Error(t, err)
}

func TestReplay_JournalsIntoNewSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sessionID := recordSession(t, s)

	target, _ := newVarStore(t, testutil.FixtureLayout(), testutil.FixtureBase,
		varstore.WithJournal(s),
		varstore.WithSessionGenerator(testutil.NewFixedSessionGenerator("sess-replay")),
	)
	_, err := s.Replay(ctx, sessionID, target, ReplayOptions{})
	require.NoError(t, err)

	original, err := s.ReadWrites(ctx, sessionID)
	require.NoError(t, err)
	replayed, err := s.ReadWrites(ctx, "sess-replay")
	require.NoError(t, err)
	require.Len(t, replayed, len(original))
	for i := range original {
		assert.Equal(t, original[i].Path, replayed[i].Path)
		assert.Equal(t, original[i].Value, replayed[i].Value)
	}
}
