package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/threadkeep/threadkeep/datalayer"
)

func (s *Store) GetUser(ctx context.Context, identifier string) (*datalayer.User, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	identifier = datalayer.NormalizeIdentifier(identifier)
	if identifier == "" {
		return nil, nil
	}

	var u datalayer.User
	var metadata string
	err := s.db.QueryRowContext(ctx, `
SELECT id, identifier, metadata, created_at, updated_at
FROM users
WHERE identifier = ?
`, identifier).Scan(&u.ID, &u.Identifier, &metadata, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Metadata = decodeMap(metadata)
	return &u, nil
}

// CreateUser is an idempotent upsert keyed on the lowercased identifier.
// Metadata and created_at are only written on first insert; updated_at is
// always refreshed.
func (s *Store) CreateUser(ctx context.Context, user datalayer.User) (*datalayer.User, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	identifier := datalayer.NormalizeIdentifier(user.Identifier)
	if identifier == "" {
		return nil, errors.New("missing identifier")
	}

	metadata, err := encodeMap(user.Metadata)
	if err != nil {
		return nil, err
	}
	now := datalayer.Now()
	id := user.ID
	if id == "" {
		id = datalayer.NewID()
	}

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO users(id, identifier, metadata, created_at, updated_at)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(identifier) DO UPDATE SET updated_at = excluded.updated_at
`, id, identifier, metadata, now, now); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user created or retrieved", "identifier", identifier)
	return s.GetUser(ctx, identifier)
}

func (s *Store) UpdateUser(ctx context.Context, identifier string, metadata map[string]any) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	identifier = datalayer.NormalizeIdentifier(identifier)
	if identifier == "" {
		return errors.New("missing identifier")
	}

	encoded, err := encodeMap(metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE users
SET metadata = ?, updated_at = ?
WHERE identifier = ?
`, encoded, datalayer.Now(), identifier)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return datalayer.ErrNotFound
	}
	return nil
}

// DeleteUser removes the user and cascades over every thread they own.
func (s *Store) DeleteUser(ctx context.Context, identifier string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	identifier = datalayer.NormalizeIdentifier(identifier)
	if identifier == "" {
		return errors.New("missing identifier")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM threads WHERE user_identifier = ?`, identifier)
	if err != nil {
		return fmt.Errorf("list user threads: %w", err)
	}
	threadIDs, err := collectIDs(rows)
	if err != nil {
		return err
	}

	for _, threadID := range threadIDs {
		if _, err := deleteThreadTx(ctx, tx, threadID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE identifier = ?`, identifier)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return datalayer.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.log.Info("user deleted", "identifier", identifier, "threads", len(threadIDs))
	return nil
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if id != "" {
			out = append(out, id)
		}
	}
	return out, rows.Err()
}
