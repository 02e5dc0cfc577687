package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/memlink"
)

func TestSet_WritesImageInPlace(t *testing.T) {
	img := fixtureImage(t)

	out, _, err := execute(t, "--layout", addressesLayout, "--image", img, "set", "someA.b", "42")
	require.NoError(t, err)
	assert.Equal(t, "✓ someA.b = 42\n", out)
	assert.Equal(t, []byte{7, 42}, readImage(t, img, 0x1000, 2))
}

func TestSet_StructValue(t *testing.T) {
	img := fixtureImage(t)

	out, _, err := execute(t, "--layout", addressesLayout, "--image", img, "set", "nestedStructArray[0].someA", `{"a": 3, "b": 4}`)
	require.NoError(t, err)
	assert.Contains(t, out, "{a: 3, b: 4}")
	assert.Equal(t, []byte{3, 4, 0, 1, 2, 5}, readImage(t, img, 0x3000, 6))
}

func TestSet_OutputLeavesSourceUntouched(t *testing.T) {
	img := fixtureImage(t)
	patched := filepath.Join(t.TempDir(), "patched.hex")

	out, _, err := execute(t, "--layout", addressesLayout, "--image", img, "--format", "json", "set", "nestedStruct.c", "200", "-o", patched)
	require.NoError(t, err)

	var result struct {
		Path    string `json:"path"`
		Address string `json:"address"`
		Value   int    `json:"value"`
		Saved   string `json:"saved"`
		Session string `json:"session"`
	}
	decodeResponse(t, out, &result)
	assert.Equal(t, "0x00002002", result.Address)
	assert.Equal(t, 200, result.Value)
	assert.Equal(t, patched, result.Saved)
	assert.Empty(t, result.Session, "no journal configured")

	assert.Equal(t, []byte{200}, readImage(t, patched, 0x2002, 1))
	assert.Equal(t, []byte{0}, readImage(t, img, 0x2002, 1))
}

func TestSet_FailuresLeaveImageUntouched(t *testing.T) {
	tests := []struct {
		name string
		path string
		arg  string
		exit int
	}{
		{"unknown_field", "someA.z", "1", ExitFailure},
		{"wrong_shape", "someA", "[1, 2]", ExitFailure},
		{"empty_value", "someA.a", "", ExitCommandError},
		{"null_value", "someA.a", "null", ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := fixtureImage(t)

			_, _, err := execute(t, "--layout", addressesLayout, "--image", img, "set", tt.path, tt.arg)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.Equal(t, []byte{7, 9}, readImage(t, img, 0x1000, 2))
		})
	}
}

func TestParseValueArg(t *testing.T) {
	tests := []struct {
		arg  string
		want string
	}{
		{"42", "42"},
		{"-3", "-3"},
		{"true", "true"},
		{`"quoted"`, `"quoted"`},
		{"SomeEnumB", `"SomeEnumB"`},
		{"[1, 2]", "[1, 2]"},
		{`{"a": 1}`, "{a: 1}"},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			v, err := parseValueArg(tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ir.FormatValue(v))
		})
	}

	for _, bad := range []string{"", "null"} {
		_, err := parseValueArg(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestSaveTarget(t *testing.T) {
	dest, format, err := saveTarget("params.hex", memlink.FormatHex, "")
	require.NoError(t, err)
	assert.Equal(t, "params.hex", dest)
	assert.Equal(t, memlink.FormatHex, format)

	dest, format, err = saveTarget("params.hex", memlink.FormatHex, "out.bin")
	require.NoError(t, err)
	assert.Equal(t, "out.bin", dest)
	assert.Equal(t, memlink.FormatRaw, format)

	_, _, err = saveTarget("firmware.elf", memlink.FormatELF, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass -o")

	dest, format, err = saveTarget("firmware.elf", memlink.FormatELF, "patched.hex")
	require.NoError(t, err)
	assert.Equal(t, "patched.hex", dest)
	assert.Equal(t, memlink.FormatHex, format)
}
