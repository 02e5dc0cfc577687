package store

import (
	"context"
	"fmt"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/resolve"
)

// ReplayTarget is what a session is replayed into.
// Implemented by varstore.Store.
type ReplayTarget interface {
	Resolve(path string) (resolve.Location, error)
	Set(ctx context.Context, path string, v ir.Value) error
}

// ReplayOptions controls Replay.
type ReplayOptions struct {
	// LayoutHash identifies the layout the target currently serves.
	// Empty skips the layout comparison.
	LayoutHash string

	// DryRun resolves every write without applying any.
	DryRun bool

	// StopOnError aborts at the first write that cannot be applied.
	StopOnError bool
}

// ReplayFailure is a write that could not be re-applied.
type ReplayFailure struct {
	Seq  int64
	Path string
	Err  error
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	SessionID     string
	Applied       int
	Relocated     int  // writes whose path now resolves to a different address
	LayoutChanged bool // session was recorded under a different layout hash
	Failed        []ReplayFailure
}

// Replay re-applies a session's writes to target in seq order.
//
// Writes are replayed by path: each is resolved against the target's current
// layout, so addresses recorded in the journal are only used to count
// relocations. Paths that no longer resolve become failures; with
// StopOnError the first failure is also returned as the error.
func (s *Store) Replay(ctx context.Context, sessionID string, target ReplayTarget, opts ReplayOptions) (ReplayResult, error) {
	result := ReplayResult{SessionID: sessionID, Failed: []ReplayFailure{}}

	sess, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return result, fmt.Errorf("replay session %s: %w", sessionID, err)
	}
	result.LayoutChanged = opts.LayoutHash != "" && opts.LayoutHash != sess.LayoutHash

	writes, err := s.ReadWrites(ctx, sessionID)
	if err != nil {
		return result, fmt.Errorf("replay session %s: %w", sessionID, err)
	}

	for _, rec := range writes {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		err := replayOne(ctx, target, rec, opts.DryRun, &result)
		if err == nil {
			continue
		}
		result.Failed = append(result.Failed, ReplayFailure{Seq: rec.Seq, Path: rec.Path, Err: err})
		if opts.StopOnError {
			return result, fmt.Errorf("replay seq %d %s: %w", rec.Seq, rec.Path, err)
		}
	}

	return result, nil
}

func replayOne(ctx context.Context, target ReplayTarget, rec ir.WriteRecord, dryRun bool, result *ReplayResult) error {
	loc, err := target.Resolve(rec.Path)
	if err != nil {
		return err
	}
	relocated := loc.Address != rec.Address

	if !dryRun {
		if err := target.Set(ctx, rec.Path, rec.Value); err != nil {
			return err
		}
	}

	result.Applied++
	if relocated {
		result.Relocated++
	}
	return nil
}
