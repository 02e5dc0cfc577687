package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/varpath/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the JSON payload of a successful compile.
type CompilationResult struct {
	LayoutHash string          `json:"layout_hash"`
	Types      int             `json:"types"`
	Symbols    int             `json:"symbols"`
	Output     string          `json:"output,omitempty"`
	Layout     json.RawMessage `json:"layout,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [layout]",
		Short: "Compile a layout to canonical JSON",
		Long: `Compile a CUE, YAML or JSON layout (or extract one from an ELF's DWARF
info) and print it as canonical JSON.

The canonical form is what the layout hash is computed over: keys sorted,
no whitespace, source path dropped. It loads back as a JSON layout.

Examples:
  varpath compile ./layout.cue
  varpath compile ./firmware.elf -o layout.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, layoutArg(rootOpts, args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	layout, err := opts.loadLayout(path)
	if err != nil {
		return loadFailure(formatter, err)
	}
	formatter.VerboseLog("Compiled %d type(s), %d symbol(s) from %s", len(layout.Types), len(layout.Symbols), path)

	data, err := ir.MarshalLayout(*layout)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, err)
	}
	hash, err := ir.LayoutHash(*layout)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, err)
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Errorf("writing output file: %w", err))
		}
	}

	result := CompilationResult{
		LayoutHash: hash,
		Types:      len(layout.Types),
		Symbols:    len(layout.Symbols),
		Output:     opts.Output,
	}
	if opts.Output == "" {
		result.Layout = data
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if opts.Output == "" {
		fmt.Fprintln(formatter.Writer, string(data))
		return nil
	}
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d type(s), %d symbol(s)\n", result.Types, result.Symbols)
	fmt.Fprintf(formatter.Writer, "Wrote canonical layout to %s (hash %s)\n", opts.Output, shortHash(hash))
	return nil
}

// shortHash abbreviates a hex digest for text output.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
