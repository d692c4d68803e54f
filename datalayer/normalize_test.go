package datalayer

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeIdentifier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Alice@Example.COM", "alice@example.com"},
		{"  Bob  ", "bob"},
		{"", ""},
		{"   ", ""},
		{"already-lower", "already-lower"},
	}
	for _, tc := range cases {
		if got := NormalizeIdentifier(tc.in); got != tc.want {
			t.Fatalf("NormalizeIdentifier(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalizeDoc(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"thread_id":  "th_1",
		"for_id":     "st_1",
		"customKey":  "kept",
		"created_at": "2024-01-01T00:00:00.000000Z",
	}
	out := CanonicalizeDoc(doc)

	if out["threadId"] != "th_1" {
		t.Fatalf("threadId=%v, want th_1", out["threadId"])
	}
	if out["forId"] != "st_1" {
		t.Fatalf("forId=%v, want st_1", out["forId"])
	}
	if out["createdAt"] != "2024-01-01T00:00:00.000000Z" {
		t.Fatalf("createdAt=%v", out["createdAt"])
	}
	if out["customKey"] != "kept" {
		t.Fatalf("customKey=%v, want kept", out["customKey"])
	}
	if _, ok := out["thread_id"]; ok {
		t.Fatalf("alias thread_id survived canonicalization")
	}
	// The input is not mutated.
	if _, ok := doc["threadId"]; ok {
		t.Fatalf("input map was mutated")
	}
}

func TestCanonicalizeDocCanonicalWins(t *testing.T) {
	t.Parallel()

	out := CanonicalizeDoc(map[string]any{
		"threadId":  "canonical",
		"thread_id": "alias",
	})
	if out["threadId"] != "canonical" {
		t.Fatalf("threadId=%v, want canonical", out["threadId"])
	}
}

func TestNormalizeStepDoc(t *testing.T) {
	t.Parallel()

	out := NormalizeStepDoc(map[string]any{
		"thread_id":       "th_1",
		"user_identifier": "Alice@Example.com",
		"type":            "user_message",
	})

	if DocString(out, "id") == "" {
		t.Fatalf("id not generated")
	}
	if out["userIdentifier"] != "alice@example.com" {
		t.Fatalf("userIdentifier=%v, want alice@example.com", out["userIdentifier"])
	}
	created := DocString(out, "createdAt")
	if created == "" || DocString(out, "updatedAt") == "" {
		t.Fatalf("timestamps not filled: %v", out)
	}
	if _, err := time.Parse(TimeLayout, created); err != nil {
		t.Fatalf("createdAt %q does not match layout: %v", created, err)
	}
}

func TestNormalizeStepDocKeepsProvidedFields(t *testing.T) {
	t.Parallel()

	out := NormalizeStepDoc(map[string]any{
		"id":        "st_1",
		"createdAt": "2024-01-01T00:00:00.000000Z",
	})
	if out["id"] != "st_1" {
		t.Fatalf("id=%v, want st_1", out["id"])
	}
	if out["createdAt"] != "2024-01-01T00:00:00.000000Z" {
		t.Fatalf("createdAt was overwritten: %v", out["createdAt"])
	}
}

func TestTimeLayoutOrdersLexicographically(t *testing.T) {
	t.Parallel()

	earlier := time.Date(2024, 3, 9, 23, 59, 59, 999999000, time.UTC).Format(TimeLayout)
	later := time.Date(2024, 3, 10, 0, 0, 0, 1000, time.UTC).Format(TimeLayout)
	if strings.Compare(earlier, later) >= 0 {
		t.Fatalf("lexicographic order broken: %q >= %q", earlier, later)
	}
	if len(earlier) != len(later) {
		t.Fatalf("layout is not fixed-width: %d vs %d", len(earlier), len(later))
	}
}

func TestIsUserMessage(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{"user_message", "message"} {
		if !IsUserMessage(typ) {
			t.Fatalf("IsUserMessage(%q)=false, want true", typ)
		}
	}
	for _, typ := range []string{"tool_call", "system_message", "run", ""} {
		if IsUserMessage(typ) {
			t.Fatalf("IsUserMessage(%q)=true, want false", typ)
		}
	}
}

func TestDocString(t *testing.T) {
	t.Parallel()

	doc := map[string]any{"a": " x ", "b": 42, "c": nil}
	if got := DocString(doc, "a"); got != "x" {
		t.Fatalf("DocString(a)=%q, want x", got)
	}
	if got := DocString(doc, "b"); got != "" {
		t.Fatalf("DocString(b)=%q, want empty", got)
	}
	if got := DocString(doc, "missing"); got != "" {
		t.Fatalf("DocString(missing)=%q, want empty", got)
	}
}
