package datalayer

import (
	"context"
	"time"

	"github.com/threadkeep/threadkeep/internal/auditlog"
	"github.com/threadkeep/threadkeep/internal/metrics"
)

// Observed wraps a DataLayer with per-operation metrics and an audit trail
// for destructive mutations. Either collaborator may be nil.
type Observed struct {
	inner   DataLayer
	metrics *metrics.Collector
	audit   *auditlog.Store
}

func NewObserved(inner DataLayer, m *metrics.Collector, audit *auditlog.Store) *Observed {
	return &Observed{inner: inner, metrics: m, audit: audit}
}

func (o *Observed) observe(op string, start time.Time, err error) {
	if o.metrics != nil {
		o.metrics.Observe(op, time.Since(start), err)
	}
}

func (o *Observed) record(e auditlog.Entry, err error) {
	if o.audit == nil {
		return
	}
	if err != nil {
		e.Status = "failure"
		e.Error = err.Error()
	}
	o.audit.Append(e)
}

func (o *Observed) GetUser(ctx context.Context, identifier string) (*User, error) {
	start := time.Now()
	u, err := o.inner.GetUser(ctx, identifier)
	o.observe("get_user", start, err)
	return u, err
}

func (o *Observed) CreateUser(ctx context.Context, user User) (*User, error) {
	start := time.Now()
	u, err := o.inner.CreateUser(ctx, user)
	o.observe("create_user", start, err)
	o.record(auditlog.Entry{Action: "user_created", UserIdentifier: NormalizeIdentifier(user.Identifier)}, err)
	return u, err
}

func (o *Observed) UpdateUser(ctx context.Context, identifier string, metadata map[string]any) error {
	start := time.Now()
	err := o.inner.UpdateUser(ctx, identifier, metadata)
	o.observe("update_user", start, err)
	return err
}

func (o *Observed) DeleteUser(ctx context.Context, identifier string) error {
	start := time.Now()
	err := o.inner.DeleteUser(ctx, identifier)
	o.observe("delete_user", start, err)
	o.record(auditlog.Entry{Action: "user_deleted", UserIdentifier: NormalizeIdentifier(identifier)}, err)
	return err
}

func (o *Observed) CreateStep(ctx context.Context, doc map[string]any) (string, error) {
	start := time.Now()
	id, err := o.inner.CreateStep(ctx, doc)
	o.observe("create_step", start, err)
	return id, err
}

func (o *Observed) UpdateStep(ctx context.Context, doc map[string]any) error {
	start := time.Now()
	err := o.inner.UpdateStep(ctx, doc)
	o.observe("update_step", start, err)
	return err
}

func (o *Observed) DeleteStep(ctx context.Context, stepID string) error {
	start := time.Now()
	err := o.inner.DeleteStep(ctx, stepID)
	o.observe("delete_step", start, err)
	o.record(auditlog.Entry{Action: "step_deleted", EntityID: stepID}, err)
	return err
}

func (o *Observed) GetStep(ctx context.Context, stepID string) (*Step, error) {
	start := time.Now()
	st, err := o.inner.GetStep(ctx, stepID)
	o.observe("get_step", start, err)
	return st, err
}

func (o *Observed) CreateElement(ctx context.Context, doc map[string]any) (string, error) {
	start := time.Now()
	id, err := o.inner.CreateElement(ctx, doc)
	o.observe("create_element", start, err)
	return id, err
}

func (o *Observed) GetElement(ctx context.Context, threadID string, elementID string) (*Element, error) {
	start := time.Now()
	el, err := o.inner.GetElement(ctx, threadID, elementID)
	o.observe("get_element", start, err)
	return el, err
}

func (o *Observed) UpdateElement(ctx context.Context, elementID string, patch map[string]any) error {
	start := time.Now()
	err := o.inner.UpdateElement(ctx, elementID, patch)
	o.observe("update_element", start, err)
	return err
}

func (o *Observed) DeleteElement(ctx context.Context, elementID string) error {
	start := time.Now()
	err := o.inner.DeleteElement(ctx, elementID)
	o.observe("delete_element", start, err)
	o.record(auditlog.Entry{Action: "element_deleted", EntityID: elementID}, err)
	return err
}

func (o *Observed) UpsertFeedback(ctx context.Context, fb Feedback) (string, error) {
	start := time.Now()
	id, err := o.inner.UpsertFeedback(ctx, fb)
	o.observe("upsert_feedback", start, err)
	return id, err
}

func (o *Observed) GetFeedback(ctx context.Context, feedbackID string) (*Feedback, error) {
	start := time.Now()
	fb, err := o.inner.GetFeedback(ctx, feedbackID)
	o.observe("get_feedback", start, err)
	return fb, err
}

func (o *Observed) DeleteFeedback(ctx context.Context, feedbackID string) error {
	start := time.Now()
	err := o.inner.DeleteFeedback(ctx, feedbackID)
	o.observe("delete_feedback", start, err)
	o.record(auditlog.Entry{Action: "feedback_deleted", EntityID: feedbackID}, err)
	return err
}

func (o *Observed) CreateThread(ctx context.Context, opts CreateThreadOptions) (string, error) {
	start := time.Now()
	id, err := o.inner.CreateThread(ctx, opts)
	o.observe("create_thread", start, err)
	o.record(auditlog.Entry{
		Action:         "thread_created",
		UserIdentifier: NormalizeIdentifier(opts.UserIdentifier),
		ThreadID:       id,
	}, err)
	return id, err
}

func (o *Observed) GetThread(ctx context.Context, threadID string, userIdentifier string) (*Thread, error) {
	start := time.Now()
	t, err := o.inner.GetThread(ctx, threadID, userIdentifier)
	o.observe("get_thread", start, err)
	return t, err
}

func (o *Observed) GetThreadAuthor(ctx context.Context, threadID string) (string, error) {
	start := time.Now()
	author, err := o.inner.GetThreadAuthor(ctx, threadID)
	o.observe("get_thread_author", start, err)
	return author, err
}

func (o *Observed) UpdateThread(ctx context.Context, threadID string, patch ThreadPatch) error {
	start := time.Now()
	err := o.inner.UpdateThread(ctx, threadID, patch)
	o.observe("update_thread", start, err)
	return err
}

func (o *Observed) DeleteThread(ctx context.Context, threadID string) (CascadeResult, error) {
	start := time.Now()
	result, err := o.inner.DeleteThread(ctx, threadID)
	o.observe("delete_thread", start, err)
	o.record(auditlog.Entry{
		Action:   "thread_deleted",
		ThreadID: threadID,
		Detail: map[string]any{
			"threads":  result.Threads,
			"steps":    result.Steps,
			"elements": result.Elements,
			"feedback": result.Feedback,
			"sessions": result.Sessions,
		},
	}, err)
	return result, err
}

func (o *Observed) ListThreads(ctx context.Context, p Pagination, f ThreadFilter) (*ThreadPage, error) {
	start := time.Now()
	page, err := o.inner.ListThreads(ctx, p, f)
	o.observe("list_threads", start, err)
	return page, err
}

func (o *Observed) CreateSession(ctx context.Context, s Session) (string, error) {
	start := time.Now()
	id, err := o.inner.CreateSession(ctx, s)
	o.observe("create_session", start, err)
	return id, err
}

func (o *Observed) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	start := time.Now()
	s, err := o.inner.GetSession(ctx, sessionID)
	o.observe("get_session", start, err)
	return s, err
}

func (o *Observed) UpdateSession(ctx context.Context, sessionID string, patch map[string]any) error {
	start := time.Now()
	err := o.inner.UpdateSession(ctx, sessionID, patch)
	o.observe("update_session", start, err)
	return err
}

func (o *Observed) DeleteSession(ctx context.Context, sessionID string) error {
	start := time.Now()
	err := o.inner.DeleteSession(ctx, sessionID)
	o.observe("delete_session", start, err)
	o.record(auditlog.Entry{Action: "session_deleted", EntityID: sessionID}, err)
	return err
}

func (o *Observed) DeleteThreadSessions(ctx context.Context, threadID string) (int64, error) {
	start := time.Now()
	n, err := o.inner.DeleteThreadSessions(ctx, threadID)
	o.observe("delete_thread_sessions", start, err)
	return n, err
}

func (o *Observed) EnsureIndexes(ctx context.Context) error {
	start := time.Now()
	err := o.inner.EnsureIndexes(ctx)
	o.observe("ensure_indexes", start, err)
	return err
}

func (o *Observed) BuildDebugURL(threadID string) string {
	return o.inner.BuildDebugURL(threadID)
}

func (o *Observed) Close() error {
	return o.inner.Close()
}

// Stats exposes the collector snapshot for debug dumps.
func (o *Observed) Stats() []metrics.OpSnapshot {
	if o.metrics == nil {
		return nil
	}
	return o.metrics.Snapshot()
}

var _ DataLayer = (*Observed)(nil)
