package mongostore

import (
	"testing"

	"github.com/threadkeep/threadkeep/datalayer"
)

func TestStepDocRoundTrip(t *testing.T) {
	t.Parallel()

	st := datalayer.Step{
		ID:             "st_1",
		ThreadID:       "th_1",
		Type:           "user_message",
		Name:           "hello",
		UserIdentifier: "alice",
		Input:          "hi",
		Output:         "yo",
		Metadata:       map[string]any{"k": "v"},
		CreatedAt:      "2024-01-01T00:00:00.000000Z",
		UpdatedAt:      "2024-01-01T00:00:01.000000Z",
		Extra:          map[string]any{"streaming": true},
	}

	got := *fromStep(st).toStep()
	if got.ID != st.ID || got.ThreadID != st.ThreadID || got.Input != st.Input {
		t.Fatalf("round trip lost core fields: %+v", got)
	}
	if got.Metadata["k"] != "v" {
		t.Fatalf("Metadata=%v", got.Metadata)
	}
	if got.Extra["streaming"] != true {
		t.Fatalf("Extra=%v", got.Extra)
	}
}

func TestStepDocEmptyExtraIsNil(t *testing.T) {
	t.Parallel()

	got := stepDoc{ID: "st_1", Extra: map[string]any{}}.toStep()
	if got.Extra != nil {
		t.Fatalf("Extra=%v, want nil", got.Extra)
	}
}

func TestThreadDocDefaultsName(t *testing.T) {
	t.Parallel()

	got := threadDoc{ID: "th_1"}.toThread()
	if got.Name != "Untitled" {
		t.Fatalf("Name=%q, want Untitled", got.Name)
	}
}

func TestElementDocRoundTrip(t *testing.T) {
	t.Parallel()

	el := datalayer.Element{
		ID:       "el_1",
		ThreadID: "th_1",
		ForID:    "st_1",
		Type:     "image",
		Mime:     "image/png",
		Extra:    map[string]any{"display": "inline"},
	}
	got := *fromElement(el).toElement()
	if got.ForID != "st_1" || got.Mime != "image/png" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if got.Extra["display"] != "inline" {
		t.Fatalf("Extra=%v", got.Extra)
	}
}
