package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/threadkeep/threadkeep/datalayer"
)

// CreateSession upserts a session record keyed on its app-level string id.
func (s *Store) CreateSession(ctx context.Context, sess datalayer.Session) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}

	sess.ID = strings.TrimSpace(sess.ID)
	if sess.ID == "" {
		sess.ID = datalayer.NewID()
	}
	sess.UserIdentifier = datalayer.NormalizeIdentifier(sess.UserIdentifier)
	sess.ThreadID = strings.TrimSpace(sess.ThreadID)

	now := datalayer.Now()
	if sess.CreatedAt == "" {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	metadata, err := encodeMap(sess.Metadata)
	if err != nil {
		return "", err
	}

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO sessions(id, user_identifier, thread_id, metadata, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  user_identifier = excluded.user_identifier,
  thread_id = excluded.thread_id,
  metadata = excluded.metadata,
  updated_at = excluded.updated_at
`, sess.ID, sess.UserIdentifier, sess.ThreadID, metadata, sess.CreatedAt, sess.UpdatedAt); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sess.ID, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*datalayer.Session, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, nil
	}

	var sess datalayer.Session
	var metadata string
	err := s.db.QueryRowContext(ctx, `
SELECT id, user_identifier, thread_id, metadata, created_at, updated_at
FROM sessions
WHERE id = ?
`, sessionID).Scan(&sess.ID, &sess.UserIdentifier, &sess.ThreadID, &metadata, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.Metadata = decodeMap(metadata)
	return &sess, nil
}

// UpdateSession patches the session's thread binding, user identifier or
// metadata. Unknown patch keys are ignored.
func (s *Store) UpdateSession(ctx context.Context, sessionID string, patch map[string]any) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("missing session id")
	}

	norm := datalayer.CanonicalizeDoc(patch)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var sess datalayer.Session
	var metadata string
	err = tx.QueryRowContext(ctx, `
SELECT id, user_identifier, thread_id, metadata, created_at, updated_at
FROM sessions
WHERE id = ?
`, sessionID).Scan(&sess.ID, &sess.UserIdentifier, &sess.ThreadID, &metadata, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return datalayer.ErrNotFound
		}
		return fmt.Errorf("update session: %w", err)
	}
	sess.Metadata = decodeMap(metadata)

	if ident := datalayer.DocString(norm, "userIdentifier"); ident != "" {
		sess.UserIdentifier = datalayer.NormalizeIdentifier(ident)
	}
	if threadID := datalayer.DocString(norm, "threadId"); threadID != "" {
		sess.ThreadID = threadID
	}
	if m, ok := norm["metadata"].(map[string]any); ok {
		sess.Metadata = m
	}

	encoded, err := encodeMap(sess.Metadata)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE sessions
SET user_identifier = ?, thread_id = ?, metadata = ?, updated_at = ?
WHERE id = ?
`, sess.UserIdentifier, sess.ThreadID, encoded, datalayer.Now(), sessionID); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return tx.Commit()
}

// DeleteSession deletes by the app-level string id. Deleting by a
// store-native key here is the classic bug this layer exists to prevent.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("missing session id")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return datalayer.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteThreadSessions(ctx context.Context, threadID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return 0, errors.New("missing thread id")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE thread_id = ?`, threadID)
	if err != nil {
		return 0, fmt.Errorf("delete thread sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
