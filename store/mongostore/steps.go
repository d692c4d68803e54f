package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/threadkeep/threadkeep/datalayer"
)

// CreateStep normalizes and upserts the step document, then upserts the
// owning thread, but only when the step is a user message. The upsert sets
// only the fields the document carries, so a replayed create never wipes
// fields an earlier write established.
func (s *Store) CreateStep(ctx context.Context, doc map[string]any) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}

	norm := datalayer.NormalizeStepDoc(doc)
	st := datalayer.StepFromDoc(norm)

	_, err := s.steps().UpdateOne(ctx,
		bson.M{"id": st.ID},
		bson.M{"$set": norm},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("create step: %w", err)
	}

	if datalayer.IsUserMessage(st.Type) && st.ThreadID != "" {
		if err := s.upsertThreadForStep(ctx, st, norm); err != nil {
			return "", err
		}
	}

	s.log.Debug("step created", "step_id", st.ID, "thread_id", st.ThreadID, "type", st.Type)
	return st.ID, nil
}

// upsertThreadForStep creates the thread on the first user message and
// refreshes last-activity fields on subsequent ones.
func (s *Store) upsertThreadForStep(ctx context.Context, st datalayer.Step, norm map[string]any) error {
	name := datalayer.DocString(norm, "threadName")
	if name == "" {
		name = st.Name
	}
	if name == "" {
		name = "Untitled"
	}
	now := datalayer.Now()

	set := bson.M{"updatedAt": now}
	setOnInsert := bson.M{
		"id":        st.ThreadID,
		"name":      name,
		"metadata":  map[string]any{},
		"createdAt": now,
	}
	if st.UserIdentifier != "" {
		set["userIdentifier"] = st.UserIdentifier
	}
	if chatProfile := datalayer.DocString(norm, "chatProfile"); chatProfile != "" {
		set["chatProfile"] = chatProfile
	}

	_, err := s.threads().UpdateOne(ctx,
		bson.M{"id": st.ThreadID},
		bson.M{"$set": set, "$setOnInsert": setOnInsert},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert thread for step: %w", err)
	}
	return nil
}

// UpdateStep patches an existing step with the provided document fields.
// The document must carry an id.
func (s *Store) UpdateStep(ctx context.Context, doc map[string]any) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}

	norm := datalayer.CanonicalizeDoc(doc)
	id := datalayer.DocString(norm, "id")
	if id == "" {
		return errors.New("missing step id")
	}
	if ident := datalayer.DocString(norm, "userIdentifier"); ident != "" {
		norm["userIdentifier"] = datalayer.NormalizeIdentifier(ident)
	}
	norm["updatedAt"] = datalayer.Now()

	var existing stepDoc
	err := s.steps().FindOne(ctx, bson.M{"id": id},
		options.FindOne().SetProjection(noID)).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return datalayer.ErrNotFound
		}
		return fmt.Errorf("update step: %w", err)
	}

	merged := datalayer.MergeStep(*existing.toStep(), datalayer.StepFromDoc(norm))
	if _, err := s.steps().ReplaceOne(ctx, bson.M{"id": id}, fromStep(merged)); err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	return nil
}

func (s *Store) DeleteStep(ctx context.Context, stepID string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	stepID = strings.TrimSpace(stepID)
	if stepID == "" {
		return errors.New("missing step id")
	}

	res, err := s.steps().DeleteOne(ctx, bson.M{"id": stepID})
	if err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	if res.DeletedCount == 0 {
		return datalayer.ErrNotFound
	}
	return nil
}

func (s *Store) GetStep(ctx context.Context, stepID string) (*datalayer.Step, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	stepID = strings.TrimSpace(stepID)
	if stepID == "" {
		return nil, nil
	}

	var d stepDoc
	err := s.steps().FindOne(ctx, bson.M{"id": stepID},
		options.FindOne().SetProjection(noID)).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get step: %w", err)
	}
	return d.toStep(), nil
}

func (s *Store) listThreadSteps(ctx context.Context, threadID string, userIdentifier string) ([]datalayer.Step, error) {
	filter := bson.M{"threadId": threadID}
	if userIdentifier != "" {
		filter["userIdentifier"] = userIdentifier
	}

	cur, err := s.steps().Find(ctx, filter, options.Find().
		SetProjection(noID).
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list thread steps: %w", err)
	}
	defer cur.Close(ctx)

	var out []datalayer.Step
	for cur.Next(ctx) {
		var d stepDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, *d.toStep())
	}
	return out, cur.Err()
}
