package resolve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	segs, err := Parse("nestedStructArray[0].someA.a")
	require.NoError(t, err)

	assert.Equal(t, []Segment{
		{Kind: SegmentSymbol, Name: "nestedStructArray", Offset: 0},
		{Kind: SegmentIndex, Index: 0, Offset: 17},
		{Kind: SegmentField, Name: "someA", Offset: 20},
		{Kind: SegmentField, Name: "a", Offset: 26},
	}, segs)
	assert.Equal(t, "nestedStructArray[0].someA.a", Format(segs))
}

func TestParseIdentifiers(t *testing.T) {
	for _, path := range []string{"_x", "x_1", "A9", "grid[1][2]", "a.b_c.d9[10]"} {
		segs, err := Parse(path)
		require.NoError(t, err, path)
		assert.Equal(t, path, Format(segs))
	}
}

func TestParseIndexOverflow(t *testing.T) {
	segs, err := Parse("a[18446744073709551616]")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), segs[1].Index)
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		path   string
		offset int
		reason string
	}{
		{"", 0, "empty path"},
		{".a", 0, "expected identifier"},
		{"9a", 0, "expected identifier"},
		{"a.", 2, "end of path"},
		{"a.1", 2, "field name"},
		{"a[]", 2, "decimal index"},
		{"a[-1]", 2, "decimal index"},
		{"a[1", 3, "']'"},
		{"a[1x]", 3, "']'"},
		{"a b", 1, "'.' or '['"},
		{"a.b ", 3, "'.' or '['"},
		{"ä", 0, "expected identifier"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := Parse(tt.path)
			require.Error(t, err)

			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.offset, se.Offset)
			assert.Contains(t, se.Reason, tt.reason)
			assert.Equal(t, ErrCodeSyntax, se.Code())
		})
	}
}

func TestParseTail(t *testing.T) {
	segs, err := ParseTail("")
	require.NoError(t, err)
	assert.Empty(t, segs)

	segs, err = ParseTail("[1].c")
	require.NoError(t, err)
	assert.Equal(t, "[1].c", Format(segs))

	_, err = ParseTail("c")
	assert.True(t, IsSyntax(err))
}
