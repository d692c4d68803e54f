package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/threadkeep/threadkeep/datalayer"
)

const threadColumns = `id, name, user_identifier, chat_profile, metadata, tags, created_at, updated_at`

func scanThread(row interface{ Scan(...any) error }) (*datalayer.Thread, error) {
	var t datalayer.Thread
	var metadata, tags string
	if err := row.Scan(&t.ID, &t.Name, &t.UserIdentifier, &t.ChatProfile, &metadata, &tags, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Metadata = decodeMap(metadata)
	t.Tags = decodeTags(tags)
	return &t, nil
}

func (s *Store) CreateThread(ctx context.Context, opts datalayer.CreateThreadOptions) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}
	identifier := datalayer.NormalizeIdentifier(opts.UserIdentifier)
	if identifier == "" {
		return "", errors.New("missing user identifier")
	}

	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = datalayer.NewID()
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "Untitled"
	}
	metadata, err := encodeMap(opts.Metadata)
	if err != nil {
		return "", err
	}
	tags, err := encodeTags(opts.Tags)
	if err != nil {
		return "", err
	}

	now := datalayer.Now()
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO threads(id, name, user_identifier, chat_profile, metadata, tags, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)
`, id, name, identifier, strings.TrimSpace(opts.ChatProfile), metadata, tags, now, now); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}

	s.log.Info("thread created", "thread_id", id, "user", identifier)
	return id, nil
}

// GetThread returns the thread with its steps in chronological order. When
// userIdentifier is non-empty the thread (and its steps) must belong to that
// user.
func (s *Store) GetThread(ctx context.Context, threadID string, userIdentifier string) (*datalayer.Thread, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, nil
	}
	userIdentifier = datalayer.NormalizeIdentifier(userIdentifier)

	q := `SELECT ` + threadColumns + ` FROM threads WHERE id = ?`
	args := []any{threadID}
	if userIdentifier != "" {
		q += ` AND user_identifier = ?`
		args = append(args, userIdentifier)
	}

	t, err := scanThread(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get thread: %w", err)
	}

	steps, err := s.listThreadSteps(ctx, threadID, userIdentifier)
	if err != nil {
		return nil, err
	}
	t.Steps = steps
	return t, nil
}

func (s *Store) GetThreadAuthor(ctx context.Context, threadID string) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return "", nil
	}

	var author string
	err := s.db.QueryRowContext(ctx, `SELECT user_identifier FROM threads WHERE id = ?`, threadID).Scan(&author)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get thread author: %w", err)
	}
	return datalayer.NormalizeIdentifier(author), nil
}

// UpdateThread patches thread fields, creating the thread when it does not
// exist yet. The upsert closes the race between a rename arriving from the
// host UI and the first step creating the thread; without it the two writers
// produced duplicate thread rows under one logical conversation.
func (s *Store) UpdateThread(ctx context.Context, threadID string, patch datalayer.ThreadPatch) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return errors.New("missing thread id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := datalayer.Now()
	existing, err := scanThread(tx.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = ?`, threadID))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update thread: %w", err)
		}
		existing = &datalayer.Thread{ID: threadID, Name: "Untitled", CreatedAt: now, UpdatedAt: now}
		metadata, encErr := encodeMap(nil)
		if encErr != nil {
			return encErr
		}
		tags, encErr := encodeTags(nil)
		if encErr != nil {
			return encErr
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO threads(id, name, user_identifier, chat_profile, metadata, tags, created_at, updated_at)
VALUES(?, ?, '', '', ?, ?, ?, ?)
`, threadID, existing.Name, metadata, tags, now, now); err != nil {
			return fmt.Errorf("update thread insert: %w", err)
		}
	}

	name := existing.Name
	if patch.Name != nil {
		name = strings.TrimSpace(*patch.Name)
	}
	userIdentifier := existing.UserIdentifier
	if patch.UserIdentifier != nil {
		userIdentifier = datalayer.NormalizeIdentifier(*patch.UserIdentifier)
	}
	chatProfile := existing.ChatProfile
	if patch.ChatProfile != nil {
		chatProfile = strings.TrimSpace(*patch.ChatProfile)
	}
	metadataMap := existing.Metadata
	if patch.Metadata != nil {
		metadataMap = patch.Metadata
	}
	tagsList := existing.Tags
	if patch.Tags != nil {
		tagsList = patch.Tags
	}

	metadata, err := encodeMap(metadataMap)
	if err != nil {
		return err
	}
	tags, err := encodeTags(tagsList)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE threads
SET name = ?, user_identifier = ?, chat_profile = ?, metadata = ?, tags = ?, updated_at = ?
WHERE id = ?
`, name, userIdentifier, chatProfile, metadata, tags, now, threadID); err != nil {
		return fmt.Errorf("update thread: %w", err)
	}
	return tx.Commit()
}

// DeleteThread cascades over steps, elements, feedback (both by thread id
// and by the step ids it referenced) and sessions before removing the
// thread itself. Children are removed even when the thread row is already
// gone; in that case ErrNotFound is returned alongside the counts.
func (s *Store) DeleteThread(ctx context.Context, threadID string) (datalayer.CascadeResult, error) {
	if s == nil || s.db == nil {
		return datalayer.CascadeResult{}, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return datalayer.CascadeResult{}, errors.New("missing thread id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return datalayer.CascadeResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := deleteThreadTx(ctx, tx, threadID)
	if err != nil {
		return datalayer.CascadeResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return datalayer.CascadeResult{}, err
	}

	s.log.Info("thread cascade deleted",
		"thread_id", threadID,
		"threads", result.Threads,
		"steps", result.Steps,
		"elements", result.Elements,
		"feedback", result.Feedback,
		"sessions", result.Sessions,
	)
	if result.Threads == 0 {
		return result, datalayer.ErrNotFound
	}
	return result, nil
}

func deleteThreadTx(ctx context.Context, tx *sql.Tx, threadID string) (datalayer.CascadeResult, error) {
	var result datalayer.CascadeResult

	rows, err := tx.QueryContext(ctx, `SELECT id FROM steps WHERE thread_id = ?`, threadID)
	if err != nil {
		return result, fmt.Errorf("list thread steps: %w", err)
	}
	stepIDs, err := collectIDs(rows)
	if err != nil {
		return result, err
	}

	fbQuery := `DELETE FROM feedback WHERE thread_id = ?`
	fbArgs := []any{threadID}
	if len(stepIDs) > 0 {
		fbQuery += ` OR for_id IN (?` + strings.Repeat(",?", len(stepIDs)-1) + `)`
		for _, id := range stepIDs {
			fbArgs = append(fbArgs, id)
		}
	}
	res, err := tx.ExecContext(ctx, fbQuery, fbArgs...)
	if err != nil {
		return result, fmt.Errorf("delete thread feedback: %w", err)
	}
	result.Feedback, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM elements WHERE thread_id = ?`, threadID)
	if err != nil {
		return result, fmt.Errorf("delete thread elements: %w", err)
	}
	result.Elements, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE thread_id = ?`, threadID)
	if err != nil {
		return result, fmt.Errorf("delete thread sessions: %w", err)
	}
	result.Sessions, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM steps WHERE thread_id = ?`, threadID)
	if err != nil {
		return result, fmt.Errorf("delete thread steps: %w", err)
	}
	result.Steps, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID)
	if err != nil {
		return result, fmt.Errorf("delete thread: %w", err)
	}
	result.Threads, _ = res.RowsAffected()

	return result, nil
}

// ListThreads resolves the filter's UserID (native id or identifier) and
// returns the user's threads sorted by last activity, newest first.
func (s *Store) ListThreads(ctx context.Context, p datalayer.Pagination, f datalayer.ThreadFilter) (*datalayer.ThreadPage, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}

	identifier, err := s.resolveUserIdentifier(ctx, f.UserID)
	if err != nil {
		return nil, err
	}
	if identifier == "" {
		s.log.Warn("list threads: user not found", "user_id", f.UserID)
		return datalayer.EmptyThreadPage(), nil
	}

	where := `WHERE user_identifier = ?`
	args := []any{identifier}
	chatProfile := strings.TrimSpace(f.ChatProfile)
	if chatProfile != "" {
		where += ` AND chat_profile = ?`
		args = append(args, chatProfile)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM threads `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count threads: %w", err)
	}

	skip, limit := p.Window()
	args = append(args, limit, skip)
	rows, err := s.db.QueryContext(ctx, `
SELECT `+threadColumns+`
FROM threads
`+where+`
ORDER BY updated_at DESC, id DESC
LIMIT ? OFFSET ?
`, args...)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	data := make([]datalayer.Thread, 0, limit)
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		if t.Name == "" {
			t.Name = "Untitled"
		}
		data = append(data, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &datalayer.ThreadPage{
		Data:  data,
		Total: total,
		PageInfo: datalayer.PageInfo{
			Page:  datalayer.PageNumber(skip, limit),
			Size:  limit,
			Total: total,
		},
	}, nil
}

// resolveUserIdentifier accepts either a store-native user id or an
// identifier and returns the canonical identifier, or "" when no such user
// exists.
func (s *Store) resolveUserIdentifier(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", nil
	}

	var identifier string
	err := s.db.QueryRowContext(ctx, `SELECT identifier FROM users WHERE id = ?`, userID).Scan(&identifier)
	if err == nil {
		return identifier, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("resolve user id: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT identifier FROM users WHERE identifier = ?`, datalayer.NormalizeIdentifier(userID)).Scan(&identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("resolve user identifier: %w", err)
	}
	return identifier, nil
}
