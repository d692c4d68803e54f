package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/threadkeep/threadkeep/datalayer"
)

const elementColumns = `id, thread_id, for_id, type, name, url, mime, metadata, extra, created_at, updated_at`

func scanElement(row interface{ Scan(...any) error }) (*datalayer.Element, error) {
	var el datalayer.Element
	var metadata, extra string
	if err := row.Scan(&el.ID, &el.ThreadID, &el.ForID, &el.Type, &el.Name, &el.URL, &el.Mime, &metadata, &extra, &el.CreatedAt, &el.UpdatedAt); err != nil {
		return nil, err
	}
	el.Metadata = decodeMap(metadata)
	el.Extra = decodeMap(extra)
	return &el, nil
}

// CreateElement upserts the element document keyed on its app-level id.
func (s *Store) CreateElement(ctx context.Context, doc map[string]any) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}

	el := datalayer.ElementFromDoc(datalayer.NormalizeElementDoc(doc))
	metadata, err := encodeMap(el.Metadata)
	if err != nil {
		return "", err
	}
	extra, err := encodeMap(el.Extra)
	if err != nil {
		return "", err
	}

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO elements(`+elementColumns+`)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  thread_id = excluded.thread_id,
  for_id = excluded.for_id,
  type = excluded.type,
  name = excluded.name,
  url = excluded.url,
  mime = excluded.mime,
  metadata = excluded.metadata,
  extra = excluded.extra,
  updated_at = excluded.updated_at
`, el.ID, el.ThreadID, el.ForID, el.Type, el.Name, el.URL, el.Mime, metadata, extra, el.CreatedAt, el.UpdatedAt); err != nil {
		return "", fmt.Errorf("create element: %w", err)
	}

	s.log.Debug("element created", "element_id", el.ID, "thread_id", el.ThreadID)
	return el.ID, nil
}

func (s *Store) GetElement(ctx context.Context, threadID string, elementID string) (*datalayer.Element, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	elementID = strings.TrimSpace(elementID)
	if threadID == "" || elementID == "" {
		return nil, nil
	}

	el, err := scanElement(s.db.QueryRowContext(ctx, `
SELECT `+elementColumns+` FROM elements WHERE id = ? AND thread_id = ?
`, elementID, threadID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get element: %w", err)
	}
	return el, nil
}

// UpdateElement patches element fields. The id and thread binding are
// immutable; those keys are dropped from the patch.
func (s *Store) UpdateElement(ctx context.Context, elementID string, patch map[string]any) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	elementID = strings.TrimSpace(elementID)
	if elementID == "" {
		return errors.New("missing element id")
	}
	if len(patch) == 0 {
		return errors.New("empty patch")
	}

	norm := datalayer.CanonicalizeDoc(patch)
	delete(norm, "id")
	delete(norm, "threadId")
	norm["updatedAt"] = datalayer.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanElement(tx.QueryRowContext(ctx, `SELECT `+elementColumns+` FROM elements WHERE id = ?`, elementID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return datalayer.ErrNotFound
		}
		return fmt.Errorf("update element: %w", err)
	}

	merged := datalayer.MergeElement(*existing, datalayer.ElementFromDoc(norm))
	metadata, err := encodeMap(merged.Metadata)
	if err != nil {
		return err
	}
	extra, err := encodeMap(merged.Extra)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE elements
SET for_id = ?, type = ?, name = ?, url = ?, mime = ?, metadata = ?, extra = ?, updated_at = ?
WHERE id = ?
`, merged.ForID, merged.Type, merged.Name, merged.URL, merged.Mime, metadata, extra, merged.UpdatedAt, elementID); err != nil {
		return fmt.Errorf("update element: %w", err)
	}
	return tx.Commit()
}

func (s *Store) DeleteElement(ctx context.Context, elementID string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	elementID = strings.TrimSpace(elementID)
	if elementID == "" {
		return errors.New("missing element id")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM elements WHERE id = ?`, elementID)
	if err != nil {
		return fmt.Errorf("delete element: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return datalayer.ErrNotFound
	}
	return nil
}
