package sqlitestore

import (
	"context"
	"errors"
	"fmt"
)

// EnsureIndexes re-issues the index DDL. The schema migration already
// creates every index, so this is a no-op on a healthy database; it exists
// so operators can repair a database whose indexes were dropped by hand.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}

	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_threads_user_updated ON threads(user_identifier, updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_chat_profile ON threads(chat_profile)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_thread_created ON steps(thread_id, created_at ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_elements_thread ON elements(thread_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_thread ON feedback(thread_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_for ON feedback(for_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_thread ON sessions(thread_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_updated ON sessions(user_identifier, updated_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
	}

	s.log.Info("sqlite indexes ensured")
	return nil
}
