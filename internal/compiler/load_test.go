package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varpath/internal/testutil"
)

const fixtureYAML = `
source: test_structs.c
byte_order: little
pointer_size: 4
types:
  SomeA:
    kind: struct
    fields:
      - {name: a, type: uint8_t, offset: 0}
      - {name: b, type: uint8_t, offset: 1}
  NestedStruct:
    kind: struct
    fields:
      - {name: someA, type: SomeA, offset: 0}
      - {name: c, type: uint8_t, offset: 2}
  SomeEnum:
    kind: enum
    size: 4
    values: {SomeEnumA: 0, SomeEnumB: 1, SomeEnumC: 2}
  RecursiveStruct:
    kind: struct
    size: 8
    fields:
      - {name: next, type: "*RecursiveStruct", offset: 0}
      - {name: a, type: uint8_t, offset: 4}
symbols:
  - {name: someA, type: SomeA, address: 0x20000000, section: .parameter}
  - {name: nestedStruct, type: NestedStruct, address: 0x20000002, section: .parameter}
  - {name: someEnum, type: SomeEnum, address: 0x20000008, section: .parameter}
  - {name: nestedStructArray, type: "NestedStruct[2]", address: "0x2000000C", section: .parameter}
  - {name: recursiveStruct, type: RecursiveStruct, address: 0x20000014, section: .parameter}
`

const smallJSON = `{
  "byte_order": "big",
  "types": [{"name": "Pair", "kind": "struct", "fields": [
    {"name": "x", "type": "int16_t", "offset": 0},
    {"name": "y", "type": "int16_t", "offset": 2}
  ]}],
  "symbols": [{"name": "origin", "type": "Pair", "address": 4096}]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileFormatsAgree(t *testing.T) {
	dir := t.TempDir()
	want := testutil.FixtureLayout()

	for _, path := range []string{
		writeFile(t, dir, "layout.cue", fixtureCUE),
		writeFile(t, dir, "layout.yaml", fixtureYAML),
	} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			layout, err := LoadFile(path)
			require.NoError(t, err)

			assert.Equal(t, want.Source, layout.Source)
			assert.ElementsMatch(t, want.Types, layout.Types)
			assert.Equal(t, want.Symbols, layout.Symbols)
			assert.Empty(t, Validate(layout))
		})
	}
}

func TestLoadFileJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pair.json", smallJSON)

	layout, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, path, layout.Source, "source defaults to the file path")
	assert.True(t, layout.IsBigEndian())
	require.Len(t, layout.Types, 1)
	assert.Len(t, layout.Types[0].Fields, 2)
	require.Len(t, layout.Symbols, 1)
	assert.Equal(t, uint64(4096), layout.Symbols[0].Address)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "types.cue", `
package layout

types: Pair: {kind: "struct", fields: [
	{name: "x", type: "int16_t", offset: 0},
	{name: "y", type: "int16_t", offset: 2},
]}
`)
	writeFile(t, dir, "symbols.cue", `
package layout

symbols: origin: {type: "Pair", address: 0x1000}
`)

	layout, err := LoadFile(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, layout.Source)
	require.Len(t, layout.Types, 1)
	require.Len(t, layout.Symbols, 1)
	assert.Equal(t, uint64(0x1000), layout.Symbols[0].Address)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "nope.cue"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("extension", func(t *testing.T) {
		_, err := LoadFile(writeFile(t, dir, "layout.txt", "x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported extension")
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := LoadFile(writeFile(t, dir, "bad.yaml", "types: [\n"))
		require.Error(t, err)
	})

	t.Run("empty yaml", func(t *testing.T) {
		_, err := LoadFile(writeFile(t, dir, "empty.yaml", ""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty document")
	})

	t.Run("cue syntax error has position", func(t *testing.T) {
		_, err := LoadFile(writeFile(t, dir, "bad.cue", "types: {\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad.cue")
	})

	t.Run("empty dir", func(t *testing.T) {
		_, err := LoadFile(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no CUE files")
	})
}

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{
		"a.cue":  FormatCUE,
		"a.YAML": FormatYAML,
		"a.yml":  FormatYAML,
		"a.json": FormatJSON,
	}
	for path, want := range tests {
		got, ok := FormatOf(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	_, ok := FormatOf("a.elf")
	assert.False(t, ok)
}
