package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/varpath/internal/memlink"
	"github.com/roach88/varpath/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	DryRun      bool
	StopOnError bool
	Output      string
}

// ReplayFailureInfo is a write that could not be re-applied.
type ReplayFailureInfo struct {
	Seq   int64     `json:"seq"`
	Path  string    `json:"path"`
	Error *CLIError `json:"error"`
}

// ReplayResult is the JSON payload of a replay.
type ReplayResult struct {
	Session       string              `json:"session"`
	NewSession    string              `json:"new_session,omitempty"`
	Applied       int                 `json:"applied"`
	Relocated     int                 `json:"relocated"`
	LayoutChanged bool                `json:"layout_changed"`
	DryRun        bool                `json:"dry_run"`
	Failed        []ReplayFailureInfo `json:"failed"`
	Saved         string              `json:"saved,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <session>",
		Short: "Re-apply a journaled session to the image",
		Long: `Re-apply the writes of a journaled session, in order, to the configured
image under the configured layout.

Writes are replayed by path: each path is resolved again against the
current layout, so a session recorded before a relink lands at the new
addresses. Paths that no longer resolve are reported and skipped.
The replayed writes are journaled as a new session.

Exit codes:
  0 - Every write was applied
  1 - At least one write failed
  2 - Command error (journal, layout or image unavailable)

Examples:
  varpath replay 0192f3 --journal writes.db --layout new.elf --image params.hex
  varpath replay 0192f3 --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runReplay(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "resolve every write without applying any")
	cmd.Flags().BoolVar(&opts.StopOnError, "stop-on-error", false, "stop at the first write that fails")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the patched image to this file")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, session string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := opts.openJournal(true)
	if err != nil {
		return loadFailure(formatter, err)
	}
	defer st.Close()

	sess, err := findSession(ctx, st, session)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
	}

	snap, err := opts.snapshot("")
	if err != nil {
		return loadFailure(formatter, err)
	}
	img, format, err := opts.openImage()
	if err != nil {
		return loadFailure(formatter, err)
	}
	dest, destFormat := "", memlink.Format("")
	if !opts.DryRun {
		dest, destFormat, err = saveTarget(opts.Config.Image, format, opts.Output)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
		}
	}

	var journal *store.Store
	if !opts.DryRun {
		journal = st
	}
	vars := opts.newStore(snap, img, journal)

	res, replayErr := st.Replay(ctx, sess.ID, vars, store.ReplayOptions{
		LayoutHash:  snap.LayoutHash,
		DryRun:      opts.DryRun,
		StopOnError: opts.StopOnError,
	})
	// With --stop-on-error the first failed write is also returned; only
	// errors that stopped the replay before any write count as command errors.
	if replayErr != nil && len(res.Failed) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, replayErr)
	}

	result := ReplayResult{
		Session:       sess.ID,
		Applied:       res.Applied,
		Relocated:     res.Relocated,
		LayoutChanged: res.LayoutChanged,
		DryRun:        opts.DryRun,
		Failed:        make([]ReplayFailureInfo, 0, len(res.Failed)),
	}
	if !opts.DryRun {
		result.NewSession = vars.SessionID()
	}
	for _, f := range res.Failed {
		result.Failed = append(result.Failed, ReplayFailureInfo{
			Seq:   f.Seq,
			Path:  f.Path,
			Error: &CLIError{Code: codeOf(f.Err, ErrCodeGeneric), Message: f.Err.Error()},
		})
	}

	// Writes that were applied stay applied, so the image is saved even when
	// some failed.
	if !opts.DryRun && res.Applied > 0 {
		if err := memlink.Save(dest, img, destFormat); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
		}
		result.Saved = dest
	}

	if err := outputReplay(formatter, result); err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return reportedExit(ExitFailure, fmt.Sprintf("%d write(s) failed", len(result.Failed)))
	}
	return nil
}

func outputReplay(formatter *OutputFormatter, result ReplayResult) error {
	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if len(result.Failed) > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    "E_REPLAY_FAILED",
				Message: fmt.Sprintf("%d write(s) failed", len(result.Failed)),
			}
		}
		return formatter.encode(resp)
	}

	w := formatter.Writer
	verb := "Replayed"
	if result.DryRun {
		verb = "Dry run:"
	}
	fmt.Fprintf(w, "%s %d write(s) from session %s (%d relocated)\n", verb, result.Applied, result.Session, result.Relocated)
	if result.LayoutChanged {
		fmt.Fprintln(w, "  layout changed since the session was recorded")
	}
	for _, f := range result.Failed {
		fmt.Fprintf(w, "✗ seq %d %s\n  %s\n", f.Seq, f.Path, f.Error.Message)
	}
	if result.Saved != "" {
		formatter.VerboseLog("Saved image to %s", result.Saved)
	}
	if result.NewSession != "" {
		formatter.VerboseLog("Journaled as session %s", result.NewSession)
	}
	return nil
}
