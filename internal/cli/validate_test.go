package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varpath/internal/compiler"
)

const unknownTypeLayout = `byte_order: little
pointer_size: 4
types:
  Holder:
    kind: struct
    fields:
      - {name: m, type: Missing, offset: 0}
symbols:
  - {name: holder, type: Holder, address: 0x1000}
`

func writeLayout(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidate_Valid(t *testing.T) {
	out, _, err := execute(t, "validate", addressesLayout)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Layout valid")
	assert.Contains(t, out, "3 symbol(s)")
}

func TestValidate_JSONListsSections(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", testStructsLayout)
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, 5, result.Symbols)
	assert.Equal(t, []string{".parameter"}, result.Sections)
	assert.Len(t, result.LayoutHash, 64)
}

func TestValidate_UnknownType(t *testing.T) {
	path := writeLayout(t, unknownTypeLayout)

	out, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrUnknownTypeRef)
	assert.Contains(t, out, "Missing")
}

func TestValidate_UnknownTypeJSON(t *testing.T) {
	path := writeLayout(t, unknownTypeLayout)

	out, _, err := execute(t, "--format", "json", "validate", path)
	require.Error(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, result.Errors[0].Code, resp.Error.Code)

	var codes []string
	for _, e := range result.Errors {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, compiler.ErrUnknownTypeRef)
}

func TestValidate_InvalidLayoutIsCommandErrorElsewhere(t *testing.T) {
	path := writeLayout(t, unknownTypeLayout)

	_, _, err := execute(t, "--layout", path, "resolve", "holder")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate_DuplicateSymbol(t *testing.T) {
	path := writeLayout(t, `byte_order: little
pointer_size: 4
symbols:
  - {name: counter, type: uint32_t, address: 0x1000}
  - {name: counter, type: uint32_t, address: 0x1004}
`)

	_, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidate_NotAnELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firmware.bin")
	require.NoError(t, os.WriteFile(path, []byte("not an elf"), 0o644))

	out, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeLoadFailed)
}
