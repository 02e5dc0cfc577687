package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varpath/internal/compiler"
	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/memlink"
	"github.com/roach88/varpath/internal/store"
	"github.com/roach88/varpath/internal/varstore"
)

// seedJournal records one session of sets against the addresses fixture and
// returns its id.
func seedJournal(t *testing.T, dbPath string, sets map[string]ir.Value, order ...string) string {
	t.Helper()
	ctx := context.Background()

	layout, err := compiler.LoadFile(addressesLayout)
	require.NoError(t, err)
	snap, err := varstore.NewSnapshot(*layout)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	vars := varstore.New(snap, memlink.NewBuffer(0x1000, 0x2010), varstore.WithJournal(st))
	for _, path := range order {
		require.NoError(t, vars.Set(ctx, path, sets[path]))
	}
	return vars.SessionID()
}

func TestJournal_ListsSessions(t *testing.T) {
	db := filepath.Join(t.TempDir(), "writes.db")
	img := fixtureImage(t)

	_, _, err := execute(t, "--layout", addressesLayout, "--image", img, "--journal", db, "set", "someA.b", "42")
	require.NoError(t, err)
	_, _, err = execute(t, "--layout", addressesLayout, "--image", img, "--journal", db, "set", "nestedStruct.c", "7")
	require.NoError(t, err)

	out, _, err := execute(t, "--journal", db, "--format", "json", "journal")
	require.NoError(t, err)

	var sessions []ir.Session
	decodeResponse(t, out, &sessions)
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		assert.Equal(t, 1, s.Writes)
		assert.Len(t, s.LayoutHash, 64)
		assert.Equal(t, "addresses.c", s.Source)
	}
}

func TestJournal_SessionWrites(t *testing.T) {
	db := filepath.Join(t.TempDir(), "writes.db")
	id := seedJournal(t, db, map[string]ir.Value{
		"someA.b":        ir.Int(42),
		"nestedStruct.c": ir.Int(7),
	}, "someA.b", "nestedStruct.c")

	out, _, err := execute(t, "--journal", db, "--format", "json", "journal", id[:13])
	require.NoError(t, err)

	var writes []WriteInfo
	decodeResponse(t, out, &writes)
	require.Len(t, writes, 2)
	assert.Equal(t, id, writes[0].Session)
	assert.Equal(t, int64(1), writes[0].Seq)
	assert.Equal(t, "someA.b", writes[0].Path)
	assert.Equal(t, "0x00001001", writes[0].Address)
	assert.JSONEq(t, "42", string(writes[0].Value))
	assert.Equal(t, "nestedStruct.c", writes[1].Path)
	assert.Equal(t, int64(2), writes[1].Seq)
}

func TestJournal_Text(t *testing.T) {
	db := filepath.Join(t.TempDir(), "writes.db")
	id := seedJournal(t, db, map[string]ir.Value{"someA.a": ir.Int(5)}, "someA.a")

	out, _, err := execute(t, "--journal", db, "journal")
	require.NoError(t, err)
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, id)

	out, _, err = execute(t, "--journal", db, "journal", id)
	require.NoError(t, err)
	assert.Contains(t, out, "someA.a")
	assert.Contains(t, out, "0x00001000")
}

func TestJournal_PathHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "writes.db")
	seedJournal(t, db, map[string]ir.Value{"someA.b": ir.Int(1)}, "someA.b")
	seedJournal(t, db, map[string]ir.Value{"someA.b": ir.Int(2), "someA.a": ir.Int(3)}, "someA.b", "someA.a")

	out, _, err := execute(t, "--journal", db, "--format", "json", "journal", "--path", "someA.b")
	require.NoError(t, err)

	var writes []WriteInfo
	decodeResponse(t, out, &writes)
	require.Len(t, writes, 2)
	assert.JSONEq(t, "1", string(writes[0].Value))
	assert.JSONEq(t, "2", string(writes[1].Value))
}

func TestJournal_UnknownSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "writes.db")
	seedJournal(t, db, map[string]ir.Value{"someA.a": ir.Int(5)}, "someA.a")

	out, _, err := execute(t, "--journal", db, "journal", "zzzz")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `no session matches "zzzz"`)
}

func TestJournal_Required(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "journal")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, ErrCodeJournal, resp.Error.Code)
}
