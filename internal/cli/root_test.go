package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "varpath", cmd.Use)
	assert.Contains(t, cmd.Long, "nestedStructArray[1].someA.b")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "symbols", "resolve", "get", "set", "export", "journal", "replay", "check"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	flags := cmd.PersistentFlags()

	verboseFlag := flags.Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := flags.Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	layoutFlag := flags.Lookup("layout")
	require.NotNil(t, layoutFlag)
	assert.Equal(t, "l", layoutFlag.Shorthand)

	imageFlag := flags.Lookup("image")
	require.NotNil(t, imageFlag)
	assert.Equal(t, "i", imageFlag.Shorthand)

	for _, name := range []string{"config", "journal", "log-level"} {
		assert.NotNil(t, flags.Lookup(name), name)
	}
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"compile", []string{"output"}},
		{"symbols", []string{"section"}},
		{"set", []string{"output"}},
		{"export", []string{"output"}},
		{"journal", []string{"path"}},
		{"replay", []string{"dry-run", "stop-on-error", "output"}},
		{"check", []string{"update", "filter"}},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			cmd, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(name), "--%s", name)
			}
		})
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, _, err := execute(t, "--format", "invalid", "validate", addressesLayout)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigFileSuppliesLayout(t *testing.T) {
	layout, err := filepath.Abs(addressesLayout)
	require.NoError(t, err)
	cfg := filepath.Join(t.TempDir(), "varpath.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("layout: "+layout+"\n"), 0o644))

	out, _, err := execute(t, "--config", cfg, "resolve", "someA.b")
	require.NoError(t, err)
	assert.Equal(t, "someA.b\t0x00001001\t1\tuint8_t\n", out)
}

func TestLayoutFlagOverridesConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "varpath.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("layout: /nonexistent/layout.yaml\n"), 0o644))

	out, _, err := execute(t, "--config", cfg, "--layout", addressesLayout, "resolve", "nestedStruct.c")
	require.NoError(t, err)
	assert.Contains(t, out, "0x00002002")
}

func TestMissingExplicitConfig(t *testing.T) {
	_, _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "symbols")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVerboseLogsToStderr(t *testing.T) {
	out, errOut, err := execute(t, "-v", "--layout", addressesLayout, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Layout valid")
	assert.Contains(t, errOut, "Layout loaded")
}
