package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/roach88/varpath/internal/ir"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <path>...",
		Short: "Read variables from the image",
		Long: `Resolve each path, read its bytes from the image and decode them.

Structs print as {field: value}, arrays as [a, b], enums as Name (raw)
and pointers as hex addresses. With --format json values use the same
JSON form set accepts.

Examples:
  varpath get someA 'nestedStructArray[1].c' --image params.hex
  varpath get someEnum --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), rootOpts, args, cmd)
		},
	}
	return cmd
}

func runGet(ctx context.Context, opts *RootOptions, paths []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	snap, err := opts.snapshot("")
	if err != nil {
		return loadFailure(formatter, err)
	}
	img, _, err := opts.openImage()
	if err != nil {
		return loadFailure(formatter, err)
	}
	vars := opts.newStore(snap, img, nil)

	results := make([]PathResult, 0, len(paths))
	for _, p := range paths {
		loc, err := vars.Resolve(p)
		if err != nil {
			results = append(results, failedPath(p, err))
			continue
		}
		v, err := vars.Get(ctx, p)
		if err != nil {
			results = append(results, failedPath(p, err))
			continue
		}

		r := locatedPath(snap, loc)
		r.Value, err = renderValue(formatter, v)
		if err != nil {
			results = append(results, failedPath(p, err))
			continue
		}
		results = append(results, r)
	}

	return outputPathResults(formatter, results)
}

// renderValue returns v in the form the formatter prints.
func renderValue(formatter *OutputFormatter, v ir.Value) (any, error) {
	if formatter.Format != "json" {
		return ir.FormatValue(v), nil
	}
	data, err := ir.MarshalValue(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
