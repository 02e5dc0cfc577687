package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Path string // history of one path across sessions
}

// WriteInfo is a journaled write as the CLI prints it.
type WriteInfo struct {
	Session    string          `json:"session"`
	Seq        int64           `json:"seq"`
	Path       string          `json:"path"`
	Value      json.RawMessage `json:"value"`
	Address    string          `json:"address"`
	Size       int64           `json:"size"`
	LayoutHash string          `json:"layout_hash"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal [session]",
		Short: "Inspect the write journal",
		Long: `Without arguments, list the journal's sessions. With a session id (or a
unique prefix of one), list that session's writes in order. With --path,
list every write to one path across all sessions.

Examples:
  varpath journal --journal writes.db
  varpath journal 0192f3 --journal writes.db
  varpath journal --path someA.b --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			session := ""
			if len(args) > 0 {
				session = args[0]
			}
			return runJournal(ctx, opts, session, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", "", "show the write history of one path")

	return cmd
}

func runJournal(ctx context.Context, opts *JournalOptions, session string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := opts.openJournal(true)
	if err != nil {
		return loadFailure(formatter, err)
	}
	defer st.Close()

	var writes []ir.WriteRecord
	switch {
	case opts.Path != "":
		writes, err = st.ReadPathHistory(ctx, opts.Path)
	case session != "":
		var sess ir.Session
		sess, err = findSession(ctx, st, session)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
		}
		formatter.VerboseLog("Session %s: layout %s, source %s", sess.ID, shortHash(sess.LayoutHash), sess.Source)
		writes, err = st.ReadWrites(ctx, sess.ID)
	default:
		return listSessions(ctx, formatter, st)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
	}

	infos := make([]WriteInfo, 0, len(writes))
	for _, w := range writes {
		data, err := ir.MarshalValue(w.Value)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
		}
		infos = append(infos, WriteInfo{
			Session:    w.SessionID,
			Seq:        w.Seq,
			Path:       w.Path,
			Value:      data,
			Address:    fmt.Sprintf("0x%08x", w.Address),
			Size:       w.Size,
			LayoutHash: w.LayoutHash,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(formatter.Writer, "No writes found.")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSEQ\tPATH\tADDRESS\tVALUE")
	for _, w := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", shortHash(w.Session), w.Seq, w.Path, w.Address, w.Value)
	}
	return tw.Flush()
}

func listSessions(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	sessions, err := st.ReadSessions(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(formatter.Writer, "No sessions in journal.")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tWRITES\tLAYOUT\tSOURCE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.ID, s.Writes, shortHash(s.LayoutHash), s.Source)
	}
	return tw.Flush()
}

// findSession resolves a session id or prefix with a readable error.
func findSession(ctx context.Context, st *store.Store, prefix string) (ir.Session, error) {
	sess, err := st.FindSession(ctx, prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Session{}, fmt.Errorf("no session matches %q", prefix)
	}
	return sess, err
}
