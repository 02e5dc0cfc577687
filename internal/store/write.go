package store

import (
	"context"
	"fmt"

	"github.com/roach88/varpath/internal/ir"
)

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteSession(ctx context.Context, sess ir.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, layout_hash, source)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.LayoutHash,
		sess.Source,
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteRecord inserts a journaled write.
// Uses ON CONFLICT(id) DO NOTHING: the ID is content-addressed, so writing the
// same record twice is a no-op. A different record reusing a (session, seq)
// pair is rejected by the UNIQUE constraint.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteRecord(ctx context.Context, rec ir.WriteRecord) error {
	valueJSON, err := marshalValue(rec.Value)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO writes
		(id, session_id, seq, path, value, address, size, layout_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.SessionID,
		rec.Seq,
		rec.Path,
		valueJSON,
		addressToDB(rec.Address),
		rec.Size,
		rec.LayoutHash,
	)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
