package datalayer

import "testing"

func TestStepFromDoc(t *testing.T) {
	t.Parallel()

	st := StepFromDoc(map[string]any{
		"id":        "st_1",
		"threadId":  "th_1",
		"type":      "user_message",
		"name":      " hello ",
		"input":     "hi",
		"metadata":  map[string]any{"k": "v"},
		"streaming": true,
		"parentId":  "st_0",
	})

	if st.ID != "st_1" || st.ThreadID != "th_1" || st.Type != "user_message" {
		t.Fatalf("core fields: %+v", st)
	}
	if st.Name != "hello" {
		t.Fatalf("Name=%q, want trimmed hello", st.Name)
	}
	if st.Metadata["k"] != "v" {
		t.Fatalf("Metadata=%v", st.Metadata)
	}
	if st.Extra["streaming"] != true || st.Extra["parentId"] != "st_0" {
		t.Fatalf("Extra=%v, want streaming and parentId preserved", st.Extra)
	}
	if _, ok := st.Extra["id"]; ok {
		t.Fatalf("known key leaked into Extra")
	}
}

func TestElementFromDoc(t *testing.T) {
	t.Parallel()

	el := ElementFromDoc(map[string]any{
		"id":       "el_1",
		"threadId": "th_1",
		"forId":    "st_1",
		"type":     "image",
		"mime":     "image/png",
		"url":      "https://example.invalid/a.png",
		"display":  "inline",
	})
	if el.ID != "el_1" || el.ForID != "st_1" || el.Mime != "image/png" {
		t.Fatalf("core fields: %+v", el)
	}
	if el.Extra["display"] != "inline" {
		t.Fatalf("Extra=%v", el.Extra)
	}
}

func TestMergeStep(t *testing.T) {
	t.Parallel()

	existing := Step{
		ID:       "st_1",
		ThreadID: "th_1",
		Type:     "user_message",
		Input:    "original",
		Metadata: map[string]any{"a": 1},
		Extra:    map[string]any{"x": "old"},
	}
	patch := Step{
		Output:    "done",
		UpdatedAt: "2024-01-02T00:00:00.000000Z",
		Extra:     map[string]any{"x": "new", "y": 2},
	}

	merged := MergeStep(existing, patch)
	if merged.Input != "original" {
		t.Fatalf("Input=%q, want original preserved", merged.Input)
	}
	if merged.Output != "done" {
		t.Fatalf("Output=%q, want done", merged.Output)
	}
	if merged.Metadata["a"] != 1 {
		t.Fatalf("Metadata=%v, want preserved", merged.Metadata)
	}
	if merged.Extra["x"] != "new" || merged.Extra["y"] != 2 {
		t.Fatalf("Extra=%v, want key-wise merge", merged.Extra)
	}
	if merged.UpdatedAt != "2024-01-02T00:00:00.000000Z" {
		t.Fatalf("UpdatedAt=%q", merged.UpdatedAt)
	}
}

func TestMergeElement(t *testing.T) {
	t.Parallel()

	existing := Element{ID: "el_1", ThreadID: "th_1", Name: "a.png", Mime: "image/png"}
	patch := Element{Name: "b.png", Metadata: map[string]any{"size": 10}}

	merged := MergeElement(existing, patch)
	if merged.Name != "b.png" {
		t.Fatalf("Name=%q, want b.png", merged.Name)
	}
	if merged.Mime != "image/png" {
		t.Fatalf("Mime=%q, want preserved", merged.Mime)
	}
	if merged.ThreadID != "th_1" {
		t.Fatalf("ThreadID=%q, want preserved", merged.ThreadID)
	}
	if merged.Metadata["size"] != 10 {
		t.Fatalf("Metadata=%v", merged.Metadata)
	}
}
