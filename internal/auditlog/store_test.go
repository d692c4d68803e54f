package auditlog

import (
	"testing"
)

func TestAppendAndList(t *testing.T) {
	t.Parallel()

	s, err := New(Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Append(Entry{Action: "thread_deleted", ThreadID: "th_1"})
	s.Append(Entry{Action: "user_deleted", UserIdentifier: "alice", Status: "failure", Error: "boom"})

	entries, err := s.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len=%d, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Action != "user_deleted" {
		t.Fatalf("first=%q, want user_deleted", entries[0].Action)
	}
	if entries[0].Status != "failure" || entries[0].Error != "boom" {
		t.Fatalf("failure entry: %+v", entries[0])
	}
	if entries[1].Status != "success" {
		t.Fatalf("Status=%q, want success default", entries[1].Status)
	}
	if entries[1].CreatedAt == "" {
		t.Fatalf("CreatedAt not filled")
	}
}

func TestRotation(t *testing.T) {
	t.Parallel()

	s, err := New(Options{Dir: t.TempDir(), MaxBytes: 256, MaxBackups: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 50; i++ {
		s.Append(Entry{Action: "thread_deleted", ThreadID: "th_1", Detail: map[string]any{"i": i}})
	}

	entries, err := s.List(1000)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("no entries after rotation")
	}
	// Rotation keeps the active file plus at most MaxBackups rotated files,
	// so old entries fall off instead of growing without bound.
	if len(entries) >= 50 {
		t.Fatalf("len=%d, want fewer than 50 after rotation", len(entries))
	}
}
