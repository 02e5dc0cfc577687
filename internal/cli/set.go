package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/memlink"
)

// SetOptions holds flags for the set command.
type SetOptions struct {
	*RootOptions
	Output string // save the patched image here instead of in place
}

// SetResult is the JSON payload of a successful set.
type SetResult struct {
	PathResult
	Session string `json:"session,omitempty"`
	Saved   string `json:"saved"`
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Write a variable into the image",
		Long: `Encode a value for the type at path, write it into the image and save
the image.

The value is JSON: 7, -1, 1.5, true, "SomeEnumC", "0x20000014",
[1, 2], {"a": 1, "b": 2}. A bare word that is not JSON is taken as a
string, so enum names need no quotes. Struct values must name every
field.

ELF images cannot be written back; pass -o with a .hex or .bin file.
With --journal the write is recorded and can be replayed later.

Examples:
  varpath set someA.b 7 --image params.hex
  varpath set someEnum SomeEnumC --journal writes.db
  varpath set nestedStruct '{"someA": {"a": 1, "b": 2}, "c": 3}' -o patched.hex`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the patched image to this file")

	return cmd
}

// parseValueArg reads a command-line value: JSON first, a bare string otherwise.
func parseValueArg(arg string) (ir.Value, error) {
	v, err := ir.UnmarshalValue([]byte(arg))
	if err == nil {
		return v, nil
	}
	if arg == "" || arg == "null" {
		return nil, fmt.Errorf("value %q: %w", arg, err)
	}
	return ir.String(arg), nil
}

func runSet(ctx context.Context, opts *SetOptions, path, arg string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	v, err := parseValueArg(arg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadValue, err)
	}

	snap, err := opts.snapshot("")
	if err != nil {
		return loadFailure(formatter, err)
	}
	img, format, err := opts.openImage()
	if err != nil {
		return loadFailure(formatter, err)
	}
	dest, destFormat, err := saveTarget(opts.Config.Image, format, opts.Output)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
	}

	journal, err := opts.openJournal(false)
	if err != nil {
		return loadFailure(formatter, err)
	}
	if journal != nil {
		defer journal.Close()
	}

	vars := opts.newStore(snap, img, journal)
	loc, err := vars.Resolve(path)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}
	if err := vars.Set(ctx, path, v); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}

	if err := memlink.Save(dest, img, destFormat); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
	}

	stored, _ := vars.LastValue(path)
	result := SetResult{
		PathResult: locatedPath(snap, loc),
		Session:    vars.SessionID(),
		Saved:      dest,
	}
	if result.Value, err = renderValue(formatter, stored); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s = %v\n", path, result.Value)
	formatter.VerboseLog("  %s %s (%d bytes), saved to %s", result.Address, result.Type, result.Size, dest)
	if result.Session != "" {
		formatter.VerboseLog("  journaled in session %s", result.Session)
	}
	return nil
}

// saveTarget picks where and how a patched image is written.
func saveTarget(image string, format memlink.Format, output string) (string, memlink.Format, error) {
	if output != "" {
		return output, memlink.DetectFormat(output, nil), nil
	}
	if format == memlink.FormatELF {
		return "", "", fmt.Errorf("cannot write back into ELF image %s: pass -o with a .hex or .bin file", image)
	}
	return image, format, nil
}
