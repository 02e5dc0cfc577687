package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/varpath/internal/resolve"
	"github.com/roach88/varpath/internal/varstore"
)

// PathResult is the outcome of one path argument.
type PathResult struct {
	Path    string    `json:"path"`
	Address string    `json:"address,omitempty"`
	Size    uint64    `json:"size,omitempty"`
	Type    string    `json:"type,omitempty"`
	Value   any       `json:"value,omitempty"`
	Error   *CLIError `json:"error,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <path>...",
		Short: "Resolve variable paths to addresses",
		Long: `Resolve each path against the layout and print its address, size and type.
No image is read.

Exit codes:
  0 - Every path resolved
  1 - At least one path failed
  2 - Command error

Examples:
  varpath resolve someA.b 'nestedStructArray[1].c'
  varpath resolve --layout firmware.elf --format json nestedStruct`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runResolve(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	snap, err := opts.snapshot("")
	if err != nil {
		return loadFailure(formatter, err)
	}

	results := make([]PathResult, 0, len(paths))
	for _, p := range paths {
		loc, err := snap.Resolver.Resolve(p)
		if err != nil {
			results = append(results, failedPath(p, err))
			continue
		}
		results = append(results, locatedPath(snap, loc))
	}

	return outputPathResults(formatter, results)
}

func locatedPath(snap *varstore.Snapshot, loc resolve.Location) PathResult {
	return PathResult{
		Path:    loc.Path,
		Address: fmt.Sprintf("0x%08x", loc.Address),
		Size:    loc.Size,
		Type:    snap.Graph.Name(loc.Type),
	}
}

func failedPath(path string, err error) PathResult {
	return PathResult{
		Path:  path,
		Error: &CLIError{Code: codeOf(err, ErrCodeGeneric), Message: err.Error()},
	}
}

// outputPathResults prints one line per path; any failed path makes the
// command exit 1.
func outputPathResults(formatter *OutputFormatter, results []PathResult) error {
	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: results}
		if failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_PATH_FAILED", Message: fmt.Sprintf("%d path(s) failed", failed)}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			switch {
			case r.Error != nil:
				fmt.Fprintf(formatter.Writer, "✗ %s\n  %s\n", r.Path, r.Error.Message)
			case r.Value != nil:
				fmt.Fprintf(formatter.Writer, "%s = %v\n", r.Path, r.Value)
				formatter.VerboseLog("  %s %s (%d bytes)", r.Address, r.Type, r.Size)
			default:
				fmt.Fprintf(formatter.Writer, "%s\t%s\t%d\t%s\n", r.Path, r.Address, r.Size, r.Type)
			}
		}
	}

	if failed > 0 {
		return reportedExit(ExitFailure, fmt.Sprintf("%d path(s) failed", failed))
	}
	return nil
}
