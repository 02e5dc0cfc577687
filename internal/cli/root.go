package cli

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/varpath/internal/config"
	"github.com/roach88/varpath/internal/logging"
)

// RootOptions holds global flags for all commands, and the configuration
// and logger built from them before any command runs.
type RootOptions struct {
	ConfigPath string
	Layout     string
	Image      string
	Journal    string
	LogLevel   string
	Verbose    bool
	Format     string // "json" | "text"

	Config *config.Config
	Logger zerolog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the varpath CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:   "varpath",
		Short: "varpath - symbolic access to firmware variables",
		Long: `Resolve symbolic variable paths such as nestedStructArray[1].someA.b
against a binary's type and symbol layout, and read or write the values
they name in a memory image.

Layouts come from CUE, YAML or JSON files, or straight from an ELF's DWARF
debug info. Writes can be journaled and replayed after a relink.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default $"+config.EnvConfigPath+" or ./"+config.DefaultFile+")")
	flags.StringVarP(&opts.Layout, "layout", "l", "", "layout file, CUE package directory, or ELF with DWARF")
	flags.StringVarP(&opts.Image, "image", "i", "", "memory image (ELF, Intel HEX, or raw binary)")
	flags.StringVar(&opts.Journal, "journal", "", "sqlite write journal")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (trace|debug|info|warn|error|off)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSymbolsCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}

// setup validates global flags, loads the config and applies flag overrides.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, file, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("layout") {
		cfg.Layout = o.Layout
	}
	if flags.Changed("image") {
		cfg.Image = o.Image
	}
	if flags.Changed("journal") {
		cfg.Journal = o.Journal
	}
	switch {
	case flags.Changed("log-level"):
		cfg.Log.Level = o.LogLevel
	case o.Verbose:
		cfg.Log.Level = "debug"
	}

	o.Config = cfg
	o.Logger = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})
	if file != "" {
		o.Logger.Debug().Str("file", file).Msg("Config loaded")
	}
	return nil
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
