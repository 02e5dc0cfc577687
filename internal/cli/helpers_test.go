package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/varpath/internal/config"
	"github.com/roach88/varpath/internal/memlink"
)

const (
	addressesLayout   = "../harness/testdata/layouts/addresses.yaml"
	testStructsLayout = "../harness/testdata/layouts/test_structs.yaml"
	scenariosDir      = "../harness/testdata/scenarios"
)

// execute runs the root command with args and returns stdout and stderr.
// The environment cannot leak a config file or overrides into the run.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvConfigPath, "")
	for _, name := range []string{"VARPATH_LAYOUT", "VARPATH_IMAGE", "VARPATH_JOURNAL", "VARPATH_LOG_LEVEL"} {
		t.Setenv(name, "")
	}

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// writeImage saves a zeroed Intel HEX image of size bytes at base, with
// patches applied, and returns its path.
func writeImage(t *testing.T, base uint64, size int, patches map[uint64][]byte) string {
	t.Helper()
	img := memlink.NewBuffer(base, size)
	for addr, data := range patches {
		require.NoError(t, img.WriteBytes(context.Background(), addr, data))
	}
	path := filepath.Join(t.TempDir(), "image.hex")
	require.NoError(t, memlink.Save(path, img, memlink.FormatHex))
	return path
}

// readImage returns n bytes at addr of an image file.
func readImage(t *testing.T, path string, addr uint64, n int) []byte {
	t.Helper()
	img, _, err := memlink.Open(path, 0)
	require.NoError(t, err)
	data, err := img.ReadBytes(context.Background(), addr, n)
	require.NoError(t, err)
	return data
}

// relinkedLayout writes a copy of the addresses fixture with every symbol
// moved by 0x10 bytes. When drop is set, that symbol is left out.
func relinkedLayout(t *testing.T, drop string) string {
	t.Helper()
	data, err := os.ReadFile(addressesLayout)
	require.NoError(t, err)

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if drop != "" && strings.Contains(line, "{name: "+drop+",") && strings.Contains(line, "address:") {
			continue
		}
		line = strings.NewReplacer("0x1000", "0x1010", "0x2000", "0x2010", "0x3000", "0x3010").Replace(line)
		lines = append(lines, line)
	}

	path := filepath.Join(t.TempDir(), "relinked.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))
	return path
}

// decodeResponse parses a JSON CLI response, decoding its data into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data), string(raw.Data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}
