package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aeqet/ucp"
)

// SessionStore persists checkout sessions in PostgreSQL. Writes carry an
// optimistic revision check: a row may only be replaced by a writer that
// read its current revision, so concurrent writers cannot silently clobber
// each other.
type SessionStore struct {
	db         *sql.DB
	serializer *ucp.Serializer
}

// NewSessionStore builds a SessionStore over an open connection pool.
func NewSessionStore(db *sql.DB, serializer *ucp.Serializer) *SessionStore {
	if db == nil {
		panic("postgres: session store requires a database")
	}
	if serializer == nil {
		serializer = ucp.NewSerializer(nil)
	}
	return &SessionStore{db: db, serializer: serializer}
}

// Get loads a session record by id.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*ucp.SessionRecord, error) {
	var (
		cartRef  string
		revision int64
		snapshot []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT cart_ref, revision, snapshot FROM ucp_sessions WHERE session_id = $1`,
		sessionID,
	).Scan(&cartRef, &revision, &snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ucp.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load session %q: %w", sessionID, err)
	}
	session, err := s.serializer.Decode(snapshot)
	if err != nil {
		return nil, err
	}
	return &ucp.SessionRecord{
		Session:  session,
		CartRef:  cartRef,
		Revision: revision,
	}, nil
}

// FindByCartRef returns the session id bound to a cart reference.
func (s *SessionStore) FindByCartRef(ctx context.Context, cartRef string) (string, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id FROM ucp_sessions WHERE cart_ref = $1`,
		cartRef,
	).Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ucp.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres: look up session for cart %q: %w", cartRef, err)
	}
	return sessionID, nil
}

// Save persists the record. A record with revision zero is inserted; any
// other revision must match the stored row or the write is rejected with
// [ucp.ErrSessionConflict]. On success the record's revision is advanced.
func (s *SessionStore) Save(ctx context.Context, rec *ucp.SessionRecord) error {
	snapshot, err := s.serializer.Encode(rec.Session)
	if err != nil {
		return err
	}

	if rec.Revision == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO ucp_sessions (session_id, cart_ref, status, snapshot, revision)
			 VALUES ($1, $2, $3, $4, 1)
			 ON CONFLICT DO NOTHING`,
			rec.Session.ID, rec.CartRef, string(rec.Session.Status), snapshot,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert session %q: %w", rec.Session.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("postgres: insert session %q: %w", rec.Session.ID, err)
		}
		if n == 0 {
			return ucp.ErrSessionConflict
		}
		rec.Revision = 1
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE ucp_sessions
		 SET cart_ref = $2, status = $3, snapshot = $4, revision = $5, updated_at = now()
		 WHERE session_id = $1 AND revision = $6`,
		rec.Session.ID, rec.CartRef, string(rec.Session.Status), snapshot,
		rec.Revision+1, rec.Revision,
	)
	if err != nil {
		return fmt.Errorf("postgres: update session %q: %w", rec.Session.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: update session %q: %w", rec.Session.ID, err)
	}
	if n == 0 {
		return ucp.ErrSessionConflict
	}
	rec.Revision++
	return nil
}

// Delete removes a session row. Deleting an absent session is a no-op.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM ucp_sessions WHERE session_id = $1`, sessionID,
	); err != nil {
		return fmt.Errorf("postgres: delete session %q: %w", sessionID, err)
	}
	return nil
}
