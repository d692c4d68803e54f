package datalayer

// User is an account known to the host runtime. Identifier is always stored
// lowercase; ID is the store-native id exposed back to the host.
type User struct {
	ID         string         `json:"id"`
	Identifier string         `json:"identifier"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"createdAt,omitempty"`
	UpdatedAt  string         `json:"updatedAt,omitempty"`
}

// Thread is one conversation session owned by a user identifier.
type Thread struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	UserIdentifier string         `json:"userIdentifier,omitempty"`
	ChatProfile    string         `json:"chatProfile,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	CreatedAt      string         `json:"createdAt"`
	UpdatedAt      string         `json:"updatedAt"`

	// Steps is populated by GetThread only, in chronological order.
	Steps []Step `json:"steps,omitempty"`
}

// Step is a single message or tool-call event within a thread.
type Step struct {
	ID             string         `json:"id"`
	ThreadID       string         `json:"threadId,omitempty"`
	Type           string         `json:"type,omitempty"`
	Name           string         `json:"name,omitempty"`
	UserIdentifier string         `json:"userIdentifier,omitempty"`
	Input          string         `json:"input,omitempty"`
	Output         string         `json:"output,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      string         `json:"createdAt,omitempty"`
	UpdatedAt      string         `json:"updatedAt,omitempty"`

	// Extra preserves caller fields the contract does not model.
	Extra map[string]any `json:"extra,omitempty"`
}

// Element is a file or attachment associated with a thread and optionally a
// step (ForID).
type Element struct {
	ID        string         `json:"id"`
	ThreadID  string         `json:"threadId,omitempty"`
	ForID     string         `json:"forId,omitempty"`
	Type      string         `json:"type,omitempty"`
	Name      string         `json:"name,omitempty"`
	URL       string         `json:"url,omitempty"`
	Mime      string         `json:"mime,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"createdAt,omitempty"`
	UpdatedAt string         `json:"updatedAt,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// Feedback is a rating attached to a step.
type Feedback struct {
	ID        string `json:"id"`
	ForID     string `json:"forId"`
	ThreadID  string `json:"threadId,omitempty"`
	Value     int    `json:"value"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Session is a server-side record of one host runtime session.
type Session struct {
	ID             string         `json:"id"`
	UserIdentifier string         `json:"userIdentifier,omitempty"`
	ThreadID       string         `json:"threadId,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      string         `json:"createdAt,omitempty"`
	UpdatedAt      string         `json:"updatedAt,omitempty"`
}

// CreateThreadOptions carries the optional fields of an explicit thread
// creation. UserIdentifier is required.
type CreateThreadOptions struct {
	ID             string
	Name           string
	UserIdentifier string
	ChatProfile    string
	Metadata       map[string]any
	Tags           []string
}

// ThreadPatch is a partial thread update. Nil fields are left untouched.
type ThreadPatch struct {
	Name           *string
	UserIdentifier *string
	ChatProfile    *string
	Metadata       map[string]any
	Tags           []string
}

// ThreadFilter selects threads for listing. UserID may be either the
// store-native user id or a user identifier; backends resolve both.
type ThreadFilter struct {
	UserID      string
	ChatProfile string
}

// PageInfo describes the window a ThreadPage covers.
type PageInfo struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// ThreadPage is the paginated ListThreads response.
type ThreadPage struct {
	Data     []Thread `json:"data"`
	Total    int      `json:"total"`
	PageInfo PageInfo `json:"pageInfo"`
}

// EmptyThreadPage returns the page ListThreads yields when the filter
// resolves to no user.
func EmptyThreadPage() *ThreadPage {
	return &ThreadPage{Data: []Thread{}, Total: 0, PageInfo: PageInfo{Page: 1, Size: 0, Total: 0}}
}
