package mongostore

import "github.com/threadkeep/threadkeep/datalayer"

// Persisted document shapes. Reads always project out "_id" (see noID), so
// the inline maps only ever carry caller-provided extra fields.

type userDoc struct {
	ID         string         `bson:"id"`
	Identifier string         `bson:"identifier"`
	Metadata   map[string]any `bson:"metadata,omitempty"`
	CreatedAt  string         `bson:"createdAt,omitempty"`
	UpdatedAt  string         `bson:"updatedAt,omitempty"`
}

func (d userDoc) toUser() *datalayer.User {
	return &datalayer.User{
		ID:         d.ID,
		Identifier: d.Identifier,
		Metadata:   d.Metadata,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type threadDoc struct {
	ID             string         `bson:"id"`
	Name           string         `bson:"name,omitempty"`
	UserIdentifier string         `bson:"userIdentifier,omitempty"`
	ChatProfile    string         `bson:"chatProfile,omitempty"`
	Metadata       map[string]any `bson:"metadata,omitempty"`
	Tags           []string       `bson:"tags,omitempty"`
	CreatedAt      string         `bson:"createdAt,omitempty"`
	UpdatedAt      string         `bson:"updatedAt,omitempty"`
}

func (d threadDoc) toThread() *datalayer.Thread {
	name := d.Name
	if name == "" {
		name = "Untitled"
	}
	return &datalayer.Thread{
		ID:             d.ID,
		Name:           name,
		UserIdentifier: d.UserIdentifier,
		ChatProfile:    d.ChatProfile,
		Metadata:       d.Metadata,
		Tags:           d.Tags,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type stepDoc struct {
	ID             string         `bson:"id"`
	ThreadID       string         `bson:"threadId,omitempty"`
	Type           string         `bson:"type,omitempty"`
	Name           string         `bson:"name,omitempty"`
	UserIdentifier string         `bson:"userIdentifier,omitempty"`
	Input          string         `bson:"input,omitempty"`
	Output         string         `bson:"output,omitempty"`
	Metadata       map[string]any `bson:"metadata,omitempty"`
	CreatedAt      string         `bson:"createdAt,omitempty"`
	UpdatedAt      string         `bson:"updatedAt,omitempty"`
	Extra          map[string]any `bson:",inline"`
}

func (d stepDoc) toStep() *datalayer.Step {
	extra := d.Extra
	if len(extra) == 0 {
		extra = nil
	}
	return &datalayer.Step{
		ID:             d.ID,
		ThreadID:       d.ThreadID,
		Type:           d.Type,
		Name:           d.Name,
		UserIdentifier: d.UserIdentifier,
		Input:          d.Input,
		Output:         d.Output,
		Metadata:       d.Metadata,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		Extra:          extra,
	}
}

func fromStep(st datalayer.Step) stepDoc {
	return stepDoc{
		ID:             st.ID,
		ThreadID:       st.ThreadID,
		Type:           st.Type,
		Name:           st.Name,
		UserIdentifier: st.UserIdentifier,
		Input:          st.Input,
		Output:         st.Output,
		Metadata:       st.Metadata,
		CreatedAt:      st.CreatedAt,
		UpdatedAt:      st.UpdatedAt,
		Extra:          st.Extra,
	}
}

type elementDoc struct {
	ID        string         `bson:"id"`
	ThreadID  string         `bson:"threadId,omitempty"`
	ForID     string         `bson:"forId,omitempty"`
	Type      string         `bson:"type,omitempty"`
	Name      string         `bson:"name,omitempty"`
	URL       string         `bson:"url,omitempty"`
	Mime      string         `bson:"mime,omitempty"`
	Metadata  map[string]any `bson:"metadata,omitempty"`
	CreatedAt string         `bson:"createdAt,omitempty"`
	UpdatedAt string         `bson:"updatedAt,omitempty"`
	Extra     map[string]any `bson:",inline"`
}

func (d elementDoc) toElement() *datalayer.Element {
	extra := d.Extra
	if len(extra) == 0 {
		extra = nil
	}
	return &datalayer.Element{
		ID:        d.ID,
		ThreadID:  d.ThreadID,
		ForID:     d.ForID,
		Type:      d.Type,
		Name:      d.Name,
		URL:       d.URL,
		Mime:      d.Mime,
		Metadata:  d.Metadata,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		Extra:     extra,
	}
}

func fromElement(el datalayer.Element) elementDoc {
	return elementDoc{
		ID:        el.ID,
		ThreadID:  el.ThreadID,
		ForID:     el.ForID,
		Type:      el.Type,
		Name:      el.Name,
		URL:       el.URL,
		Mime:      el.Mime,
		Metadata:  el.Metadata,
		CreatedAt: el.CreatedAt,
		UpdatedAt: el.UpdatedAt,
		Extra:     el.Extra,
	}
}

type feedbackDoc struct {
	ID        string `bson:"id"`
	ForID     string `bson:"forId,omitempty"`
	ThreadID  string `bson:"threadId,omitempty"`
	Value     int    `bson:"value"`
	Comment   string `bson:"comment,omitempty"`
	CreatedAt string `bson:"createdAt,omitempty"`
	UpdatedAt string `bson:"updatedAt,omitempty"`
}

func (d feedbackDoc) toFeedback() *datalayer.Feedback {
	return &datalayer.Feedback{
		ID:        d.ID,
		ForID:     d.ForID,
		ThreadID:  d.ThreadID,
		Value:     d.Value,
		Comment:   d.Comment,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type sessionDoc struct {
	ID             string         `bson:"id"`
	UserIdentifier string         `bson:"userIdentifier,omitempty"`
	ThreadID       string         `bson:"threadId,omitempty"`
	Metadata       map[string]any `bson:"metadata,omitempty"`
	CreatedAt      string         `bson:"createdAt,omitempty"`
	UpdatedAt      string         `bson:"updatedAt,omitempty"`
}

func (d sessionDoc) toSession() *datalayer.Session {
	return &datalayer.Session{
		ID:             d.ID,
		UserIdentifier: d.UserIdentifier,
		ThreadID:       d.ThreadID,
		Metadata:       d.Metadata,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}
