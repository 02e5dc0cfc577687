package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <paths-file>",
		Short: "Export an address table for a list of paths",
		Long: `Resolve every path listed in a file (one per line, # starts a comment)
and print an address table: path, address, size and type.

The table is what a calibration description (A2L ECU_ADDRESS entries)
needs after every relink.

Exit codes:
  0 - Every path resolved
  1 - At least one path failed (the rest are still exported)
  2 - Command error

Examples:
  varpath export params.txt --layout firmware.elf
  varpath export params.txt -o addresses.tsv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the table to this file")

	return cmd
}

// readPathsFile returns the non-empty, non-comment lines of a paths file.
func readPathsFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, sc.Err()
}

func runExport(opts *ExportOptions, pathsFile string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	paths, err := readPathsFile(pathsFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("paths file: %w", err))
	}

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

	if opts.Output == "" {
		return outputPathResults(formatter, results)
	}

	var b strings.Builder
	b.WriteString("# path\taddress\tsize\ttype\n")
	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			formatter.VerboseLog("skipping %s: %s", r.Path, r.Error.Message)
			continue
		}
		fmt.Fprintf(&b, "%s\t%s\t%d\t%s\n", r.Path, r.Address, r.Size, r.Type)
	}
	if err := os.WriteFile(opts.Output, []byte(b.String()), 0o644); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(map[string]any{
			"output":   opts.Output,
			"exported": len(results) - failed,
			"failed":   failed,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "Wrote %d address(es) to %s\n", len(results)-failed, opts.Output)
	}
	if failed > 0 {
		return reportedExit(ExitFailure, fmt.Sprintf("%d path(s) failed", failed))
	}
	return nil
}
