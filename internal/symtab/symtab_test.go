package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/testutil"
	"github.com/roach88/varpath/internal/typegraph"
)

func fixtureTable(t *testing.T) (*typegraph.Graph, *Table) {
	t.Helper()
	l := testutil.FixtureLayout()
	g, err := typegraph.Build(l)
	require.NoError(t, err)
	tab, err := New(g, l.Symbols)
	require.NoError(t, err)
	return g, tab
}

func TestLookup(t *testing.T) {
	g, tab := fixtureTable(t)

	s, err := tab.Lookup("nestedStructArray")
	require.NoError(t, err)
	assert.Equal(t, uint64(testutil.AddrNestedStructArray), s.Address)
	assert.Equal(t, ".parameter", s.Section)
	assert.Equal(t, "NestedStruct[2]", g.Name(s.Type))
	assert.Equal(t, uint64(6), g.SizeOf(s.Type))
}

func TestLookupUnknown(t *testing.T) {
	_, tab := fixtureTable(t)

	_, err := tab.Lookup("nested")
	require.Error(t, err)
	assert.True(t, IsUnknownSymbol(err))

	var ue *UnknownSymbolError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "nested", ue.Name)
	assert.Equal(t, []string{"nestedStruct", "nestedStructArray"}, ue.Suggestions)
	assert.Equal(t, ErrCodeUnknownSymbol, ue.Code())
	assert.Contains(t, err.Error(), "did you mean nestedStruct, nestedStructArray?")
}

func TestLookupUnknownWithoutSuggestions(t *testing.T) {
	_, tab := fixtureTable(t)

	_, err := tab.Lookup("zzz")
	var ue *UnknownSymbolError
	require.ErrorAs(t, err, &ue)
	assert.Empty(t, ue.Suggestions)
	assert.Equal(t, `UNKNOWN_SYMBOL: "zzz"`, err.Error())
}

func TestNewDuplicateSymbol(t *testing.T) {
	l := testutil.FixtureLayout()
	g, err := typegraph.Build(l)
	require.NoError(t, err)

	defs := append(l.Symbols, ir.SymbolDef{Name: "someA", Type: "SomeA", Address: 0x30000000})
	_, err = New(g, defs)
	require.Error(t, err)
	assert.True(t, IsDuplicateSymbol(err))

	var de *DuplicateSymbolError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "someA", de.Name)
	assert.Equal(t, uint64(testutil.AddrSomeA), de.FirstAddress)
	assert.Equal(t, uint64(0x30000000), de.SecondAddress)
}

func TestNewUnknownType(t *testing.T) {
	g, err := typegraph.Build(ir.Layout{})
	require.NoError(t, err)

	_, err = New(g, []ir.SymbolDef{{Name: "x", Type: "Missing", Address: 1}})
	require.Error(t, err)
	assert.True(t, typegraph.IsMalformedType(err))

	_, err = New(g, []ir.SymbolDef{{Name: "x", Address: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol without a type")
}

func TestSectionIsAdvisory(t *testing.T) {
	g, err := typegraph.Build(ir.Layout{})
	require.NoError(t, err)

	tab, err := New(g, []ir.SymbolDef{
		{Name: "a", Type: "uint8_t", Address: 0x10, Section: ".parameter"},
		{Name: "b", Type: "uint8_t", Address: 0x20, Section: ".bss"},
		{Name: "c", Type: "uint8_t", Address: 0x30},
	})
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		s, err := tab.Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, "uint8_t", g.Name(s.Type))
	}

	assert.Equal(t, map[string][]string{
		".parameter": {"a"},
		".bss":       {"b"},
		"":           {"c"},
	}, tab.Sections())
}

func TestSymbolsSorted(t *testing.T) {
	_, tab := fixtureTable(t)

	syms := tab.Symbols()
	require.Len(t, syms, tab.Len())

	names := make([]string, len(syms))
	for i, s := range syms {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"nestedStruct", "nestedStructArray", "recursiveStruct", "someA", "someEnum"}, names)
}
