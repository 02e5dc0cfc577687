package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/varpath/internal/ir"
)

// ErrAmbiguousSession is returned by FindSession when a prefix matches more
// than one session.
var ErrAmbiguousSession = errors.New("session prefix is ambiguous")

// ReadSessions returns every session with its write count, oldest first.
// Returns an empty slice (not nil) when the journal is empty.
func (s *Store) ReadSessions(ctx context.Context) ([]ir.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.layout_hash, s.source, COUNT(w.id)
		FROM sessions s
		LEFT JOIN writes w ON w.session_id = s.id
		GROUP BY s.id
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []ir.Session{}
	for rows.Next() {
		var sess ir.Session
		if err := rows.Scan(&sess.ID, &sess.LayoutHash, &sess.Source, &sess.Writes); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadSession retrieves a single session by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (ir.Session, error) {
	var sess ir.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.layout_hash, s.source, COUNT(w.id)
		FROM sessions s
		LEFT JOIN writes w ON w.session_id = s.id
		WHERE s.id = ?
		GROUP BY s.id
	`, id).Scan(&sess.ID, &sess.LayoutHash, &sess.Source, &sess.Writes)
	if err != nil {
		return ir.Session{}, err
	}
	return sess, nil
}

// FindSession resolves a full session ID or a unique prefix of one.
// Returns sql.ErrNoRows if nothing matches and ErrAmbiguousSession if
// several sessions do.
func (s *Store) FindSession(ctx context.Context, prefix string) (ir.Session, error) {
	if prefix == "" {
		return ir.Session{}, sql.ErrNoRows
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM sessions
		WHERE substr(id, 1, ?) = ?
		ORDER BY id COLLATE BINARY ASC
		LIMIT 2
	`, len(prefix), prefix)
	if err != nil {
		return ir.Session{}, fmt.Errorf("query session prefix: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return ir.Session{}, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return ir.Session{}, fmt.Errorf("iterate session ids: %w", err)
	}

	switch len(ids) {
	case 0:
		return ir.Session{}, sql.ErrNoRows
	case 1:
		return s.ReadSession(ctx, ids[0])
	default:
		return ir.Session{}, fmt.Errorf("%q: %w", prefix, ErrAmbiguousSession)
	}
}

// ReadWrites returns a session's writes in seq order.
// Returns an empty slice (not nil) if the session has none.
func (s *Store) ReadWrites(ctx context.Context, sessionID string) ([]ir.WriteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, path, value, address, size, layout_hash
		FROM writes
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query writes: %w", err)
	}
	return scanWrites(rows)
}

// ReadPathHistory returns every journaled write to path, oldest session first.
func (s *Store) ReadPathHistory(ctx context.Context, path string) ([]ir.WriteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, path, value, address, size, layout_hash
		FROM writes
		WHERE path = ?
		ORDER BY session_id COLLATE BINARY ASC, seq ASC, id COLLATE BINARY ASC
	`, path)
	if err != nil {
		return nil, fmt.Errorf("query path history: %w", err)
	}
	return scanWrites(rows)
}

// ReadWrite retrieves a single write by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadWrite(ctx context.Context, id string) (ir.WriteRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, seq, path, value, address, size, layout_hash
		FROM writes
		WHERE id = ?
	`, id)
	return scanWrite(row)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWrite(row rowScanner) (ir.WriteRecord, error) {
	var (
		rec       ir.WriteRecord
		valueJSON string
		address   int64
	)
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.Seq, &rec.Path, &valueJSON, &address, &rec.Size, &rec.LayoutHash)
	if err != nil {
		return ir.WriteRecord{}, err
	}

	rec.Value, err = unmarshalValue(valueJSON)
	if err != nil {
		return ir.WriteRecord{}, fmt.Errorf("write %s: %w", rec.ID, err)
	}
	rec.Address = addressFromDB(address)
	return rec, nil
}

func scanWrites(rows *sql.Rows) ([]ir.WriteRecord, error) {
	defer rows.Close()

	records := []ir.WriteRecord{}
	for rows.Next() {
		rec, err := scanWrite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan write: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate writes: %w", err)
	}
	return records, nil
}
