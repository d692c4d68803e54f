package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/threadkeep/threadkeep/datalayer"
)

// UpsertFeedback inserts or replaces the feedback entry, generating an id
// when the caller did not supply one. The id is returned either way.
func (s *Store) UpsertFeedback(ctx context.Context, fb datalayer.Feedback) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}

	fb.ID = strings.TrimSpace(fb.ID)
	if fb.ID == "" {
		fb.ID = datalayer.NewID()
	}
	fb.ForID = strings.TrimSpace(fb.ForID)
	fb.ThreadID = strings.TrimSpace(fb.ThreadID)

	now := datalayer.Now()
	if fb.CreatedAt == "" {
		fb.CreatedAt = now
	}
	fb.UpdatedAt = now

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO feedback(id, for_id, thread_id, value, comment, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  for_id = excluded.for_id,
  thread_id = excluded.thread_id,
  value = excluded.value,
  comment = excluded.comment,
  updated_at = excluded.updated_at
`, fb.ID, fb.ForID, fb.ThreadID, fb.Value, fb.Comment, fb.CreatedAt, fb.UpdatedAt); err != nil {
		return "", fmt.Errorf("upsert feedback: %w", err)
	}

	s.log.Debug("feedback upserted", "feedback_id", fb.ID, "for_id", fb.ForID)
	return fb.ID, nil
}

func (s *Store) GetFeedback(ctx context.Context, feedbackID string) (*datalayer.Feedback, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	feedbackID = strings.TrimSpace(feedbackID)
	if feedbackID == "" {
		return nil, nil
	}

	var fb datalayer.Feedback
	err := s.db.QueryRowContext(ctx, `
SELECT id, for_id, thread_id, value, comment, created_at, updated_at
FROM feedback
WHERE id = ?
`, feedbackID).Scan(&fb.ID, &fb.ForID, &fb.ThreadID, &fb.Value, &fb.Comment, &fb.CreatedAt, &fb.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return &fb, nil
}

func (s *Store) DeleteFeedback(ctx context.Context, feedbackID string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	feedbackID = strings.TrimSpace(feedbackID)
	if feedbackID == "" {
		return errors.New("missing feedback id")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM feedback WHERE id = ?`, feedbackID)
	if err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return datalayer.ErrNotFound
	}
	return nil
}
