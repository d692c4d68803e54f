package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/threadkeep/threadkeep/datalayer"
)

const stepColumns = `id, thread_id, type, name, user_identifier, input, output, metadata, extra, created_at, updated_at`

func scanStep(row interface{ Scan(...any) error }) (*datalayer.Step, error) {
	var st datalayer.Step
	var metadata, extra string
	if err := row.Scan(&st.ID, &st.ThreadID, &st.Type, &st.Name, &st.UserIdentifier, &st.Input, &st.Output, &metadata, &extra, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.Metadata = decodeMap(metadata)
	st.Extra = decodeMap(extra)
	return &st, nil
}

// CreateStep normalizes and upserts the step document, then upserts the
// owning thread, but only when the step is a user message. A replayed
// create merges into the stored step instead of replacing it, so fields an
// earlier write established survive a partial re-send. The step write and
// the thread write share one transaction so a concurrent delete cannot
// observe a step without its thread.
func (s *Store) CreateStep(ctx context.Context, doc map[string]any) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}

	norm := datalayer.NormalizeStepDoc(doc)
	st := datalayer.StepFromDoc(norm)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	row := st
	existing, err := scanStep(tx.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM steps WHERE id = ?`, st.ID))
	switch {
	case err == nil:
		row = datalayer.MergeStep(*existing, st)
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("create step: %w", err)
	}

	metadata, err := encodeMap(row.Metadata)
	if err != nil {
		return "", err
	}
	extra, err := encodeMap(row.Extra)
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO steps(`+stepColumns+`)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  thread_id = excluded.thread_id,
  type = excluded.type,
  name = excluded.name,
  user_identifier = excluded.user_identifier,
  input = excluded.input,
  output = excluded.output,
  metadata = excluded.metadata,
  extra = excluded.extra,
  updated_at = excluded.updated_at
`, row.ID, row.ThreadID, row.Type, row.Name, row.UserIdentifier, row.Input, row.Output, metadata, extra, row.CreatedAt, row.UpdatedAt); err != nil {
		return "", fmt.Errorf("create step: %w", err)
	}

	if datalayer.IsUserMessage(st.Type) && st.ThreadID != "" {
		if err := upsertThreadForStep(ctx, tx, st, norm); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	s.log.Debug("step created", "step_id", st.ID, "thread_id", st.ThreadID, "type", st.Type)
	return st.ID, nil
}

// upsertThreadForStep creates the thread on the first user message and
// refreshes last-activity fields on subsequent ones.
func upsertThreadForStep(ctx context.Context, tx *sql.Tx, st datalayer.Step, norm map[string]any) error {
	name := datalayer.DocString(norm, "threadName")
	if name == "" {
		name = st.Name
	}
	if name == "" {
		name = "Untitled"
	}
	chatProfile := datalayer.DocString(norm, "chatProfile")
	now := datalayer.Now()

	metadata, err := encodeMap(nil)
	if err != nil {
		return err
	}
	tags, err := encodeTags(nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO threads(id, name, user_identifier, chat_profile, metadata, tags, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  updated_at = excluded.updated_at,
  user_identifier = CASE WHEN excluded.user_identifier != '' THEN excluded.user_identifier ELSE threads.user_identifier END,
  chat_profile = CASE WHEN excluded.chat_profile != '' THEN excluded.chat_profile ELSE threads.chat_profile END
`, st.ThreadID, name, st.UserIdentifier, chatProfile, metadata, tags, now, now); err != nil {
		return fmt.Errorf("upsert thread for step: %w", err)
	}
	return nil
}

// UpdateStep patches an existing step with the provided document fields.
// The document must carry an id.
func (s *Store) UpdateStep(ctx context.Context, doc map[string]any) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}

	norm := datalayer.CanonicalizeDoc(doc)
	id := datalayer.DocString(norm, "id")
	if id == "" {
		return errors.New("missing step id")
	}
	if ident := datalayer.DocString(norm, "userIdentifier"); ident != "" {
		norm["userIdentifier"] = datalayer.NormalizeIdentifier(ident)
	}
	norm["updatedAt"] = datalayer.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanStep(tx.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM steps WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return datalayer.ErrNotFound
		}
		return fmt.Errorf("update step: %w", err)
	}

	merged := datalayer.MergeStep(*existing, datalayer.StepFromDoc(norm))
	metadata, err := encodeMap(merged.Metadata)
	if err != nil {
		return err
	}
	extra, err := encodeMap(merged.Extra)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE steps
SET thread_id = ?, type = ?, name = ?, user_identifier = ?, input = ?, output = ?, metadata = ?, extra = ?, updated_at = ?
WHERE id = ?
`, merged.ThreadID, merged.Type, merged.Name, merged.UserIdentifier, merged.Input, merged.Output, metadata, extra, merged.UpdatedAt, id); err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	return tx.Commit()
}

func (s *Store) DeleteStep(ctx context.Context, stepID string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	stepID = strings.TrimSpace(stepID)
	if stepID == "" {
		return errors.New("missing step id")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM steps WHERE id = ?`, stepID)
	if err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return datalayer.ErrNotFound
	}
	return nil
}

func (s *Store) GetStep(ctx context.Context, stepID string) (*datalayer.Step, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	stepID = strings.TrimSpace(stepID)
	if stepID == "" {
		return nil, nil
	}

	st, err := scanStep(s.db.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM steps WHERE id = ?`, stepID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get step: %w", err)
	}
	return st, nil
}

func (s *Store) listThreadSteps(ctx context.Context, threadID string, userIdentifier string) ([]datalayer.Step, error) {
	q := `SELECT ` + stepColumns + ` FROM steps WHERE thread_id = ?`
	args := []any{threadID}
	if userIdentifier != "" {
		q += ` AND user_identifier = ?`
		args = append(args, userIdentifier)
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list thread steps: %w", err)
	}
	defer rows.Close()

	var out []datalayer.Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}
