package datalayer

import "strings"

// StepFromDoc maps a canonicalized step document onto the typed model. Keys
// the model does not cover (and non-string values under string keys) are
// preserved in Extra.
func StepFromDoc(doc map[string]any) Step {
	rest := make(map[string]any, len(doc))
	for k, v := range doc {
		rest[k] = v
	}

	var st Step
	takeString(rest, "id", &st.ID)
	takeString(rest, "threadId", &st.ThreadID)
	takeString(rest, "type", &st.Type)
	takeString(rest, "name", &st.Name)
	takeString(rest, "userIdentifier", &st.UserIdentifier)
	takeString(rest, "input", &st.Input)
	takeString(rest, "output", &st.Output)
	takeString(rest, "createdAt", &st.CreatedAt)
	takeString(rest, "updatedAt", &st.UpdatedAt)
	if m, ok := rest["metadata"].(map[string]any); ok {
		st.Metadata = m
		delete(rest, "metadata")
	}
	if len(rest) > 0 {
		st.Extra = rest
	}
	return st
}

// ElementFromDoc maps a canonicalized element document onto the typed model.
func ElementFromDoc(doc map[string]any) Element {
	rest := make(map[string]any, len(doc))
	for k, v := range doc {
		rest[k] = v
	}

	var el Element
	takeString(rest, "id", &el.ID)
	takeString(rest, "threadId", &el.ThreadID)
	takeString(rest, "forId", &el.ForID)
	takeString(rest, "type", &el.Type)
	takeString(rest, "name", &el.Name)
	takeString(rest, "url", &el.URL)
	takeString(rest, "mime", &el.Mime)
	takeString(rest, "createdAt", &el.CreatedAt)
	takeString(rest, "updatedAt", &el.UpdatedAt)
	if m, ok := rest["metadata"].(map[string]any); ok {
		el.Metadata = m
		delete(rest, "metadata")
	}
	if len(rest) > 0 {
		el.Extra = rest
	}
	return el
}

func takeString(rest map[string]any, key string, dst *string) {
	if s, ok := rest[key].(string); ok {
		*dst = strings.TrimSpace(s)
		delete(rest, key)
	}
}

// MergeStep overlays the non-empty patch fields onto the stored step.
func MergeStep(existing Step, patch Step) Step {
	out := existing
	if patch.ThreadID != "" {
		out.ThreadID = patch.ThreadID
	}
	if patch.Type != "" {
		out.Type = patch.Type
	}
	if patch.Name != "" {
		out.Name = patch.Name
	}
	if patch.UserIdentifier != "" {
		out.UserIdentifier = patch.UserIdentifier
	}
	if patch.Input != "" {
		out.Input = patch.Input
	}
	if patch.Output != "" {
		out.Output = patch.Output
	}
	if patch.Metadata != nil {
		out.Metadata = patch.Metadata
	}
	if patch.UpdatedAt != "" {
		out.UpdatedAt = patch.UpdatedAt
	}
	if len(patch.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]any, len(patch.Extra))
		}
		for k, v := range patch.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// MergeElement overlays the non-empty patch fields onto the stored element.
func MergeElement(existing Element, patch Element) Element {
	out := existing
	if patch.ForID != "" {
		out.ForID = patch.ForID
	}
	if patch.Type != "" {
		out.Type = patch.Type
	}
	if patch.Name != "" {
		out.Name = patch.Name
	}
	if patch.URL != "" {
		out.URL = patch.URL
	}
	if patch.Mime != "" {
		out.Mime = patch.Mime
	}
	if patch.Metadata != nil {
		out.Metadata = patch.Metadata
	}
	if patch.UpdatedAt != "" {
		out.UpdatedAt = patch.UpdatedAt
	}
	if len(patch.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]any, len(patch.Extra))
		}
		for k, v := range patch.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
