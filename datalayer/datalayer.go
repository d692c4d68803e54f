// Package datalayer defines the persistence contract a host chat runtime
// uses to store and retrieve users, threads, steps, elements, feedback and
// sessions, plus the normalization rules shared by every backend.
package datalayer

import (
	"context"
	"errors"
)

// ErrNotFound is returned by mutations that target a record that does not
// exist. Getters return (nil, nil) instead.
var ErrNotFound = errors.New("record not found")

// DataLayer is the plugin contract the host runtime calls.
//
// Notes:
// - User identifiers are case-folded to lowercase on every path.
// - Step and element writes accept raw documents because callers disagree on
//   field naming (thread_id vs threadId); see Normalize*Doc.
// - Upserts key on the app-level string id, never on a store-native id.
type DataLayer interface {
	// Users.
	GetUser(ctx context.Context, identifier string) (*User, error)
	CreateUser(ctx context.Context, user User) (*User, error)
	UpdateUser(ctx context.Context, identifier string, metadata map[string]any) error
	DeleteUser(ctx context.Context, identifier string) error

	// Steps (messages and tool calls).
	CreateStep(ctx context.Context, doc map[string]any) (string, error)
	UpdateStep(ctx context.Context, doc map[string]any) error
	DeleteStep(ctx context.Context, stepID string) error
	GetStep(ctx context.Context, stepID string) (*Step, error)

	// Elements (attachments).
	CreateElement(ctx context.Context, doc map[string]any) (string, error)
	GetElement(ctx context.Context, threadID string, elementID string) (*Element, error)
	UpdateElement(ctx context.Context, elementID string, patch map[string]any) error
	DeleteElement(ctx context.Context, elementID string) error

	// Feedback.
	UpsertFeedback(ctx context.Context, fb Feedback) (string, error)
	GetFeedback(ctx context.Context, feedbackID string) (*Feedback, error)
	DeleteFeedback(ctx context.Context, feedbackID string) error

	// Threads.
	CreateThread(ctx context.Context, opts CreateThreadOptions) (string, error)
	GetThread(ctx context.Context, threadID string, userIdentifier string) (*Thread, error)
	GetThreadAuthor(ctx context.Context, threadID string) (string, error)
	UpdateThread(ctx context.Context, threadID string, patch ThreadPatch) error
	DeleteThread(ctx context.Context, threadID string) (CascadeResult, error)
	ListThreads(ctx context.Context, p Pagination, f ThreadFilter) (*ThreadPage, error)

	// Sessions.
	CreateSession(ctx context.Context, s Session) (string, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	UpdateSession(ctx context.Context, sessionID string, patch map[string]any) error
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteThreadSessions(ctx context.Context, threadID string) (int64, error)

	// EnsureIndexes is idempotent and meant to run once at startup.
	EnsureIndexes(ctx context.Context) error

	// BuildDebugURL returns an operator-facing URL for inspecting a thread.
	BuildDebugURL(threadID string) string

	Close() error
}

// CascadeResult reports what a thread cascade delete removed.
type CascadeResult struct {
	Threads  int64 `json:"threads"`
	Steps    int64 `json:"steps"`
	Elements int64 `json:"elements"`
	Feedback int64 `json:"feedback"`
	Sessions int64 `json:"sessions"`
}
