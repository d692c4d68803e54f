package datalayer

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is fixed-width so that lexicographic order of stored timestamps
// is chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Now returns the current UTC time in the canonical storage layout.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}

// NewID returns a fresh app-level id.
func NewID() string {
	return uuid.NewString()
}

// NormalizeIdentifier case-folds a user identifier. Identifiers arrive from
// several auth providers with inconsistent casing; the store only ever sees
// the lowercase form.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// keyAliases maps the snake_case field names some callers use onto the
// canonical document keys.
var keyAliases = map[string]string{
	"thread_id":       "threadId",
	"for_id":          "forId",
	"user_identifier": "userIdentifier",
	"chat_profile":    "chatProfile",
	"thread_name":     "threadName",
	"created_at":      "createdAt",
	"updated_at":      "updatedAt",
}

// CanonicalizeDoc returns a copy of doc with aliased keys rewritten to their
// canonical names. When both spellings are present the canonical one wins
// and the alias is dropped. The input map is not mutated.
func CanonicalizeDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		canonical, ok := keyAliases[k]
		if !ok {
			out[k] = v
			continue
		}
		if _, exists := doc[canonical]; exists {
			continue
		}
		out[canonical] = v
	}
	return out
}

// NormalizeStepDoc canonicalizes a raw step document: aliased keys are
// rewritten, a missing id is generated, missing timestamps are filled with
// UTC now, and the user identifier is lowercased.
func NormalizeStepDoc(doc map[string]any) map[string]any {
	out := CanonicalizeDoc(doc)
	ensureID(out)
	ensureTimestamps(out)
	if ident := DocString(out, "userIdentifier"); ident != "" {
		out["userIdentifier"] = NormalizeIdentifier(ident)
	}
	return out
}

// NormalizeElementDoc canonicalizes a raw element document the same way.
func NormalizeElementDoc(doc map[string]any) map[string]any {
	out := CanonicalizeDoc(doc)
	ensureID(out)
	ensureTimestamps(out)
	return out
}

func ensureID(doc map[string]any) {
	if DocString(doc, "id") == "" {
		doc["id"] = NewID()
	}
}

func ensureTimestamps(doc map[string]any) {
	now := Now()
	if DocString(doc, "createdAt") == "" {
		doc["createdAt"] = now
	}
	if DocString(doc, "updatedAt") == "" {
		doc["updatedAt"] = now
	}
}

// DocString reads a string field from a raw document, tolerating absent and
// non-string values.
func DocString(doc map[string]any, key string) string {
	v, ok := doc[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// userMessageTypes are the step types that represent a user sending a
// message. Only these may create the owning thread: the host emits system
// and tool steps before the user ever commits to a conversation, and those
// must not materialize threads in the sidebar.
var userMessageTypes = map[string]bool{
	"user_message": true,
	"message":      true,
}

// IsUserMessage reports whether a step type counts as a user message.
func IsUserMessage(stepType string) bool {
	return userMessageTypes[strings.TrimSpace(stepType)]
}
