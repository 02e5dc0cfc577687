package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// SymbolsOptions holds flags for the symbols command.
type SymbolsOptions struct {
	*RootOptions
	Section string
}

// SymbolInfo is one row of the symbol listing.
type SymbolInfo struct {
	Name    string `json:"name"`
	Section string `json:"section,omitempty"`
	Address string `json:"address"`
	Size    uint64 `json:"size"`
	Type    string `json:"type"`
}

// NewSymbolsCommand creates the symbols command.
func NewSymbolsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SymbolsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List the symbols of a layout",
		Long: `List every global symbol of the configured layout, sorted by name,
with its section, address, size and type.

Examples:
  varpath symbols --layout ./firmware.elf
  varpath symbols --section .parameter --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSymbols(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Section, "section", "", "only list symbols in this section")

	return cmd
}

func runSymbols(opts *SymbolsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	snap, err := opts.snapshot("")
	if err != nil {
		return loadFailure(formatter, err)
	}

	rows := make([]SymbolInfo, 0, snap.Symbols.Len())
	for _, sym := range snap.Symbols.Symbols() {
		if opts.Section != "" && sym.Section != opts.Section {
			continue
		}
		rows = append(rows, SymbolInfo{
			Name:    sym.Name,
			Section: sym.Section,
			Address: fmt.Sprintf("0x%08x", sym.Address),
			Size:    snap.Graph.SizeOf(sym.Type),
			Type:    snap.Graph.Name(sym.Type),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(formatter.Writer, "No symbols found.")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSECTION\tADDRESS\tSIZE\tTYPE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.Name, r.Section, r.Address, r.Size, r.Type)
	}
	return tw.Flush()
}
