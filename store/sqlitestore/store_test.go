package sqlitestore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/threadkeep/threadkeep/datalayer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{
		Path:   filepath.Join(t.TempDir(), "threadkeep.sqlite"),
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.GetUser(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u != nil {
		t.Fatalf("GetUser missing user=%+v, want nil", u)
	}

	created, err := s.CreateUser(ctx, datalayer.User{
		Identifier: "Alice@Example.COM",
		Metadata:   map[string]any{"role": "admin"},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.Identifier != "alice@example.com" {
		t.Fatalf("Identifier=%q, want lowercased", created.Identifier)
	}
	if created.ID == "" {
		t.Fatalf("ID not generated")
	}
	if created.Metadata["role"] != "admin" {
		t.Fatalf("Metadata=%v", created.Metadata)
	}

	// Second create with different casing is idempotent.
	again, err := s.CreateUser(ctx, datalayer.User{
		Identifier: "ALICE@example.com",
		Metadata:   map[string]any{"role": "other"},
	})
	if err != nil {
		t.Fatalf("CreateUser again: %v", err)
	}
	if again.ID != created.ID {
		t.Fatalf("ID changed on re-create: %q vs %q", again.ID, created.ID)
	}
	if again.Metadata["role"] != "admin" {
		t.Fatalf("Metadata overwritten on re-create: %v", again.Metadata)
	}

	if err := s.UpdateUser(ctx, "alice@example.com", map[string]any{"role": "viewer"}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	u, err = s.GetUser(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUser after update: %v", err)
	}
	if u.Metadata["role"] != "viewer" {
		t.Fatalf("Metadata=%v, want viewer", u.Metadata)
	}

	if err := s.UpdateUser(ctx, "ghost@example.com", nil); !errors.Is(err, datalayer.ErrNotFound) {
		t.Fatalf("UpdateUser missing=%v, want ErrNotFound", err)
	}

	if err := s.DeleteUser(ctx, "alice@example.com"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	u, err = s.GetUser(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUser after delete: %v", err)
	}
	if u != nil {
		t.Fatalf("user survived delete: %+v", u)
	}
	if err := s.DeleteUser(ctx, "alice@example.com"); !errors.Is(err, datalayer.ErrNotFound) {
		t.Fatalf("DeleteUser again=%v, want ErrNotFound", err)
	}
}

func TestCreateStepMaterializesThreadForUserMessages(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	// A tool step before the user commits must not create a thread.
	if _, err := s.CreateStep(ctx, map[string]any{
		"thread_id": "th_1",
		"type":      "tool_call",
		"name":      "search",
	}); err != nil {
		t.Fatalf("CreateStep tool_call: %v", err)
	}
	th, err := s.GetThread(ctx, "th_1", "")
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if th != nil {
		t.Fatalf("tool step materialized a thread: %+v", th)
	}

	id, err := s.CreateStep(ctx, map[string]any{
		"thread_id":       "th_1",
		"type":            "user_message",
		"thread_name":     "First question",
		"user_identifier": "Alice@Example.com",
		"input":           "hello",
	})
	if err != nil {
		t.Fatalf("CreateStep user_message: %v", err)
	}
	if id == "" {
		t.Fatalf("step id not generated")
	}

	th, err = s.GetThread(ctx, "th_1", "")
	if err != nil {
		t.Fatalf("GetThread after user_message: %v", err)
	}
	if th == nil {
		t.Fatalf("thread not created by user message")
	}
	if th.Name != "First question" {
		t.Fatalf("Name=%q, want First question", th.Name)
	}
	if th.UserIdentifier != "alice@example.com" {
		t.Fatalf("UserIdentifier=%q, want lowercased", th.UserIdentifier)
	}
	if len(th.Steps) != 2 {
		t.Fatalf("Steps=%d, want 2", len(th.Steps))
	}
}

func TestCreateStepUpsertsByID(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateStep(ctx, map[string]any{
		"id":        "st_1",
		"thread_id": "th_1",
		"type":      "run",
		"input":     "v1",
	}); err != nil {
		t.Fatalf("CreateStep: %v", err)
	}
	if _, err := s.CreateStep(ctx, map[string]any{
		"id":        "st_1",
		"thread_id": "th_1",
		"type":      "run",
		"input":     "v2",
	}); err != nil {
		t.Fatalf("CreateStep again: %v", err)
	}

	st, err := s.GetStep(ctx, "st_1")
	if err != nil {
		t.Fatalf("GetStep: %v", err)
	}
	if st.Input != "v2" {
		t.Fatalf("Input=%q, want v2", st.Input)
	}
}

func TestCreateStepReplayMergesPartialDoc(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateStep(ctx, map[string]any{
		"id":        "st_1",
		"thread_id": "th_1",
		"type":      "run",
		"input":     "question",
		"showInput": true,
	}); err != nil {
		t.Fatalf("CreateStep: %v", err)
	}

	// A re-sent create carrying only new fields must not wipe the rest.
	if _, err := s.CreateStep(ctx, map[string]any{
		"id":     "st_1",
		"output": "answer",
	}); err != nil {
		t.Fatalf("CreateStep replay: %v", err)
	}

	st, err := s.GetStep(ctx, "st_1")
	if err != nil {
		t.Fatalf("GetStep: %v", err)
	}
	if st.Input != "question" {
		t.Fatalf("Input=%q, want preserved", st.Input)
	}
	if st.ThreadID != "th_1" {
		t.Fatalf("ThreadID=%q, want preserved", st.ThreadID)
	}
	if st.Output != "answer" {
		t.Fatalf("Output=%q, want answer", st.Output)
	}
	if st.Extra["showInput"] != true {
		t.Fatalf("Extra=%v, want showInput preserved", st.Extra)
	}
}

func TestUpdateStepMergesFields(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateStep(ctx, map[string]any{
		"id":        "st_1",
		"thread_id": "th_1",
		"type":      "run",
		"input":     "question",
		"showInput": true,
	}); err != nil {
		t.Fatalf("CreateStep: %v", err)
	}

	if err := s.UpdateStep(ctx, map[string]any{
		"id":     "st_1",
		"output": "answer",
	}); err != nil {
		t.Fatalf("UpdateStep: %v", err)
	}

	st, err := s.GetStep(ctx, "st_1")
	if err != nil {
		t.Fatalf("GetStep: %v", err)
	}
	if st.Input != "question" {
		t.Fatalf("Input=%q, want preserved", st.Input)
	}
	if st.Output != "answer" {
		t.Fatalf("Output=%q, want answer", st.Output)
	}
	if st.Extra["showInput"] != true {
		t.Fatalf("Extra=%v, want showInput preserved", st.Extra)
	}

	if err := s.UpdateStep(ctx, map[string]any{"id": "ghost"}); !errors.Is(err, datalayer.ErrNotFound) {
		t.Fatalf("UpdateStep missing=%v, want ErrNotFound", err)
	}
}

func TestUpdateThreadUpsertsMissingThread(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	name := "Renamed before first step"
	if err := s.UpdateThread(ctx, "th_race", datalayer.ThreadPatch{Name: &name}); err != nil {
		t.Fatalf("UpdateThread: %v", err)
	}

	th, err := s.GetThread(ctx, "th_race", "")
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if th == nil {
		t.Fatalf("thread not upserted")
	}
	if th.Name != name {
		t.Fatalf("Name=%q, want %q", th.Name, name)
	}

	// A later user message attaches to the same thread instead of creating a
	// duplicate.
	if _, err := s.CreateStep(ctx, map[string]any{
		"thread_id":       "th_race",
		"type":            "user_message",
		"user_identifier": "bob",
	}); err != nil {
		t.Fatalf("CreateStep: %v", err)
	}
	th, err = s.GetThread(ctx, "th_race", "")
	if err != nil {
		t.Fatalf("GetThread after step: %v", err)
	}
	if th.Name != name {
		t.Fatalf("Name=%q after step, want rename preserved", th.Name)
	}
	if th.UserIdentifier != "bob" {
		t.Fatalf("UserIdentifier=%q, want bob", th.UserIdentifier)
	}
}

func TestDeleteThreadCascade(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateThread(ctx, datalayer.CreateThreadOptions{ID: "th_1", UserIdentifier: "alice"}); err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	for _, stepID := range []string{"st_1", "st_2"} {
		if _, err := s.CreateStep(ctx, map[string]any{
			"id": stepID, "thread_id": "th_1", "type": "run",
		}); err != nil {
			t.Fatalf("CreateStep %s: %v", stepID, err)
		}
	}
	if _, err := s.CreateElement(ctx, map[string]any{
		"id": "el_1", "thread_id": "th_1", "for_id": "st_1", "type": "image",
	}); err != nil {
		t.Fatalf("CreateElement: %v", err)
	}
	// One feedback bound to the thread, one bound only to a step.
	if _, err := s.UpsertFeedback(ctx, datalayer.Feedback{ID: "fb_1", ThreadID: "th_1", Value: 1}); err != nil {
		t.Fatalf("UpsertFeedback fb_1: %v", err)
	}
	if _, err := s.UpsertFeedback(ctx, datalayer.Feedback{ID: "fb_2", ForID: "st_2", Value: -1}); err != nil {
		t.Fatalf("UpsertFeedback fb_2: %v", err)
	}
	if _, err := s.CreateSession(ctx, datalayer.Session{ID: "se_1", ThreadID: "th_1", UserIdentifier: "alice"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	result, err := s.DeleteThread(ctx, "th_1")
	if err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}
	want := datalayer.CascadeResult{Threads: 1, Steps: 2, Elements: 1, Feedback: 2, Sessions: 1}
	if result != want {
		t.Fatalf("CascadeResult=%+v, want %+v", result, want)
	}

	if st, _ := s.GetStep(ctx, "st_1"); st != nil {
		t.Fatalf("step survived cascade")
	}
	if fb, _ := s.GetFeedback(ctx, "fb_2"); fb != nil {
		t.Fatalf("step-bound feedback survived cascade")
	}
	if sess, _ := s.GetSession(ctx, "se_1"); sess != nil {
		t.Fatalf("session survived cascade")
	}

	// Deleting again reports not found with empty counts.
	result, err = s.DeleteThread(ctx, "th_1")
	if !errors.Is(err, datalayer.ErrNotFound) {
		t.Fatalf("DeleteThread again=%v, want ErrNotFound", err)
	}
	if result.Threads != 0 {
		t.Fatalf("Threads=%d, want 0", result.Threads)
	}
}

func TestGetThreadScopedToUser(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateThread(ctx, datalayer.CreateThreadOptions{ID: "th_1", UserIdentifier: "alice"}); err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	th, err := s.GetThread(ctx, "th_1", "Alice")
	if err != nil {
		t.Fatalf("GetThread owner: %v", err)
	}
	if th == nil {
		t.Fatalf("owner denied access")
	}

	th, err = s.GetThread(ctx, "th_1", "mallory")
	if err != nil {
		t.Fatalf("GetThread stranger: %v", err)
	}
	if th != nil {
		t.Fatalf("stranger can read thread")
	}

	author, err := s.GetThreadAuthor(ctx, "th_1")
	if err != nil {
		t.Fatalf("GetThreadAuthor: %v", err)
	}
	if author != "alice" {
		t.Fatalf("author=%q, want alice", author)
	}
	author, err = s.GetThreadAuthor(ctx, "ghost")
	if err != nil {
		t.Fatalf("GetThreadAuthor missing: %v", err)
	}
	if author != "" {
		t.Fatalf("author=%q for missing thread, want empty", author)
	}
}

func TestListThreads(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, datalayer.User{Identifier: "alice"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	threadIDs := []string{"th_a", "th_b", "th_c"}
	for _, id := range threadIDs {
		if _, err := s.CreateThread(ctx, datalayer.CreateThreadOptions{ID: id, UserIdentifier: "alice"}); err != nil {
			t.Fatalf("CreateThread %s: %v", id, err)
		}
	}
	// Another user's thread must not leak into the listing.
	if _, err := s.CreateThread(ctx, datalayer.CreateThreadOptions{ID: "th_other", UserIdentifier: "bob"}); err != nil {
		t.Fatalf("CreateThread other: %v", err)
	}

	// Bump th_a so it becomes the most recently active.
	name := "bumped"
	if err := s.UpdateThread(ctx, "th_a", datalayer.ThreadPatch{Name: &name}); err != nil {
		t.Fatalf("UpdateThread: %v", err)
	}

	// Resolve by native user id.
	page, err := s.ListThreads(ctx, datalayer.Pagination{}, datalayer.ThreadFilter{UserID: user.ID})
	if err != nil {
		t.Fatalf("ListThreads by id: %v", err)
	}
	if page.Total != 3 || len(page.Data) != 3 {
		t.Fatalf("Total=%d len=%d, want 3/3", page.Total, len(page.Data))
	}
	if page.Data[0].ID != "th_a" {
		t.Fatalf("first=%q, want th_a (most recently updated)", page.Data[0].ID)
	}

	// Resolve by identifier, with pagination.
	page, err = s.ListThreads(ctx, datalayer.Pagination{Page: 2, Size: 2}, datalayer.ThreadFilter{UserID: "ALICE"})
	if err != nil {
		t.Fatalf("ListThreads by identifier: %v", err)
	}
	if page.Total != 3 || len(page.Data) != 1 {
		t.Fatalf("Total=%d len=%d, want 3/1", page.Total, len(page.Data))
	}
	if page.PageInfo.Page != 2 || page.PageInfo.Size != 2 {
		t.Fatalf("PageInfo=%+v", page.PageInfo)
	}

	// Unknown user gets an empty page, not an error.
	page, err = s.ListThreads(ctx, datalayer.Pagination{}, datalayer.ThreadFilter{UserID: "ghost"})
	if err != nil {
		t.Fatalf("ListThreads unknown user: %v", err)
	}
	if page.Total != 0 || len(page.Data) != 0 {
		t.Fatalf("page=%+v, want empty", page)
	}
}

func TestElements(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateElement(ctx, map[string]any{
		"id":        "el_1",
		"thread_id": "th_1",
		"for_id":    "st_1",
		"type":      "image",
		"mime":      "image/png",
		"display":   "inline",
	})
	if err != nil {
		t.Fatalf("CreateElement: %v", err)
	}
	if id != "el_1" {
		t.Fatalf("id=%q, want el_1", id)
	}

	el, err := s.GetElement(ctx, "th_1", "el_1")
	if err != nil {
		t.Fatalf("GetElement: %v", err)
	}
	if el == nil || el.Mime != "image/png" {
		t.Fatalf("element=%+v", el)
	}
	if el.Extra["display"] != "inline" {
		t.Fatalf("Extra=%v", el.Extra)
	}

	// Wrong thread scoping returns nothing.
	el, err = s.GetElement(ctx, "th_other", "el_1")
	if err != nil {
		t.Fatalf("GetElement wrong thread: %v", err)
	}
	if el != nil {
		t.Fatalf("element leaked across threads")
	}

	if err := s.UpdateElement(ctx, "el_1", map[string]any{
		"name":      "a.png",
		"thread_id": "th_hijack",
	}); err != nil {
		t.Fatalf("UpdateElement: %v", err)
	}
	el, err = s.GetElement(ctx, "th_1", "el_1")
	if err != nil {
		t.Fatalf("GetElement after update: %v", err)
	}
	if el == nil {
		t.Fatalf("thread binding changed by patch")
	}
	if el.Name != "a.png" {
		t.Fatalf("Name=%q, want a.png", el.Name)
	}

	if err := s.DeleteElement(ctx, "el_1"); err != nil {
		t.Fatalf("DeleteElement: %v", err)
	}
	if err := s.DeleteElement(ctx, "el_1"); !errors.Is(err, datalayer.ErrNotFound) {
		t.Fatalf("DeleteElement again=%v, want ErrNotFound", err)
	}
}

func TestFeedbackUpsert(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertFeedback(ctx, datalayer.Feedback{ForID: "st_1", ThreadID: "th_1", Value: 1, Comment: "good"})
	if err != nil {
		t.Fatalf("UpsertFeedback: %v", err)
	}
	if id == "" {
		t.Fatalf("id not generated")
	}

	fb, err := s.GetFeedback(ctx, id)
	if err != nil {
		t.Fatalf("GetFeedback: %v", err)
	}
	created := fb.CreatedAt

	if _, err := s.UpsertFeedback(ctx, datalayer.Feedback{ID: id, ForID: "st_1", ThreadID: "th_1", Value: -1}); err != nil {
		t.Fatalf("UpsertFeedback update: %v", err)
	}
	fb, err = s.GetFeedback(ctx, id)
	if err != nil {
		t.Fatalf("GetFeedback after update: %v", err)
	}
	if fb.Value != -1 {
		t.Fatalf("Value=%d, want -1", fb.Value)
	}
	if fb.CreatedAt != created {
		t.Fatalf("CreatedAt changed on upsert")
	}

	if err := s.DeleteFeedback(ctx, id); err != nil {
		t.Fatalf("DeleteFeedback: %v", err)
	}
	if err := s.DeleteFeedback(ctx, id); !errors.Is(err, datalayer.ErrNotFound) {
		t.Fatalf("DeleteFeedback again=%v, want ErrNotFound", err)
	}
}

func TestSessions(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, datalayer.Session{ID: "se_1", UserIdentifier: "Alice", ThreadID: "th_1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if id != "se_1" {
		t.Fatalf("id=%q, want se_1", id)
	}

	sess, err := s.GetSession(ctx, "se_1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.UserIdentifier != "alice" {
		t.Fatalf("UserIdentifier=%q, want lowercased", sess.UserIdentifier)
	}

	if err := s.UpdateSession(ctx, "se_1", map[string]any{
		"thread_id": "th_2",
		"metadata":  map[string]any{"client": "web"},
	}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	sess, err = s.GetSession(ctx, "se_1")
	if err != nil {
		t.Fatalf("GetSession after update: %v", err)
	}
	if sess.ThreadID != "th_2" {
		t.Fatalf("ThreadID=%q, want th_2", sess.ThreadID)
	}
	if sess.Metadata["client"] != "web" {
		t.Fatalf("Metadata=%v", sess.Metadata)
	}

	if _, err := s.CreateSession(ctx, datalayer.Session{ID: "se_2", UserIdentifier: "alice", ThreadID: "th_2"}); err != nil {
		t.Fatalf("CreateSession se_2: %v", err)
	}
	n, err := s.DeleteThreadSessions(ctx, "th_2")
	if err != nil {
		t.Fatalf("DeleteThreadSessions: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted=%d, want 2", n)
	}

	if err := s.DeleteSession(ctx, "se_1"); !errors.Is(err, datalayer.ErrNotFound) {
		t.Fatalf("DeleteSession after cascade=%v, want ErrNotFound", err)
	}
}

func TestEnsureIndexesIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes again: %v", err)
	}
}

func TestBuildDebugURL(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if got := s.BuildDebugURL("th_1"); got != "threadkeep://debug/thread/th_1" {
		t.Fatalf("BuildDebugURL=%q", got)
	}

	custom, err := Open(Options{
		Path:             filepath.Join(t.TempDir(), "custom.sqlite"),
		Logger:           testLogger(),
		DebugURLTemplate: "https://ops.example.invalid/threads/%s",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = custom.Close() }()
	if got := custom.BuildDebugURL("th_2"); got != "https://ops.example.invalid/threads/th_2" {
		t.Fatalf("BuildDebugURL custom=%q", got)
	}
}
