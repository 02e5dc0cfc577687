package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/varpath/internal/compiler"
	"github.com/roach88/varpath/internal/varstore"
)

// ValidationResult holds the result of validating a layout.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Layout     string                     `json:"layout"`
	Types      int                        `json:"types,omitempty"`
	Symbols    int                        `json:"symbols,omitempty"`
	Sections   []string                   `json:"sections,omitempty"`
	LayoutHash string                     `json:"layout_hash,omitempty"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [layout]",
		Short: "Validate a layout",
		Long: `Validate a layout without touching any image.

Runs the structural checks (E2xx codes) on compiled layouts, then builds
the type graph and the symbol table, which catches value cycles,
overlapping fields and duplicate symbols.

Exit codes:
  0 - Layout is valid
  1 - Layout has errors
  2 - Command error (layout not found, compile error)

Examples:
  varpath validate ./layout.cue
  varpath validate ./firmware.elf --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, layoutArg(rootOpts, args), cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	layout, err := opts.loadLayout(path)
	if err != nil {
		var ie *InvalidLayoutError
		if errors.As(err, &ie) {
			return outputValidationErrors(formatter, path, ie.Errors, ExitFailure)
		}
		return loadFailure(formatter, err)
	}
	formatter.VerboseLog("Loaded %d type(s), %d symbol(s) from %s", len(layout.Types), len(layout.Symbols), path)

	snap, err := varstore.NewSnapshot(*layout)
	if err != nil {
		code := codeOf(err, ErrCodeInvalid)
		_ = formatter.Error(code, err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: code, Err: err, Reported: true}
	}

	sections := make([]string, 0)
	for name := range snap.Symbols.Sections() {
		if name != "" {
			sections = append(sections, name)
		}
	}
	slices.Sort(sections)

	result := ValidationResult{
		Valid:      true,
		Layout:     path,
		Types:      len(layout.Types),
		Symbols:    snap.Symbols.Len(),
		Sections:   sections,
		LayoutHash: snap.LayoutHash,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Layout valid: %d type(s), %d symbol(s)\n", result.Types, result.Symbols)
	for _, s := range sections {
		formatter.VerboseLog("  section %s: %d symbol(s)", s, len(snap.Symbols.Sections()[s]))
	}
	formatter.VerboseLog("  layout hash %s", snap.LayoutHash)
	return nil
}

// layoutArg returns the layout named on the command line, or the configured one.
func layoutArg(opts *RootOptions, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if opts.Config != nil {
		return opts.Config.Layout
	}
	return ""
}

// outputValidationErrors outputs every validation error of a layout.
func outputValidationErrors(formatter *OutputFormatter, path string, errs []compiler.ValidationError, exitCode int) error {
	message := fmt.Sprintf("validation failed with %d error(s)", len(errs))

	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Layout: path, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return reportedExit(exitCode, message)
	}

	// Text format
	fmt.Fprintf(formatter.Writer, "✗ Validation failed: %s\n\n", path)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return reportedExit(exitCode, message)
}
