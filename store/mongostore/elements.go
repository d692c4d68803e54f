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

// CreateElement upserts the element document keyed on its app-level id.
func (s *Store) CreateElement(ctx context.Context, doc map[string]any) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}

	el := datalayer.ElementFromDoc(datalayer.NormalizeElementDoc(doc))
	_, err := s.elements().ReplaceOne(ctx,
		bson.M{"id": el.ID},
		fromElement(el),
		options.Replace().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("create element: %w", err)
	}

	s.log.Debug("element created", "element_id", el.ID, "thread_id", el.ThreadID)
	return el.ID, nil
}

func (s *Store) GetElement(ctx context.Context, threadID string, elementID string) (*datalayer.Element, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	elementID = strings.TrimSpace(elementID)
	if threadID == "" || elementID == "" {
		return nil, nil
	}

	var d elementDoc
	err := s.elements().FindOne(ctx,
		bson.M{"id": elementID, "threadId": threadID},
		options.FindOne().SetProjection(noID)).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get element: %w", err)
	}
	return d.toElement(), nil
}

// UpdateElement patches element fields. The id and thread binding are
// immutable; those keys are dropped from the patch.
func (s *Store) UpdateElement(ctx context.Context, elementID string, patch map[string]any) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	elementID = strings.TrimSpace(elementID)
	if elementID == "" {
		return errors.New("missing element id")
	}
	if len(patch) == 0 {
		return errors.New("empty patch")
	}

	norm := datalayer.CanonicalizeDoc(patch)
	delete(norm, "id")
	delete(norm, "threadId")
	norm["updatedAt"] = datalayer.Now()

	var existing elementDoc
	err := s.elements().FindOne(ctx, bson.M{"id": elementID},
		options.FindOne().SetProjection(noID)).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return datalayer.ErrNotFound
		}
		return fmt.Errorf("update element: %w", err)
	}

	merged := datalayer.MergeElement(*existing.toElement(), datalayer.ElementFromDoc(norm))
	if _, err := s.elements().ReplaceOne(ctx, bson.M{"id": elementID}, fromElement(merged)); err != nil {
		return fmt.Errorf("update element: %w", err)
	}
	return nil
}

func (s *Store) DeleteElement(ctx context.Context, elementID string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	elementID = strings.TrimSpace(elementID)
	if elementID == "" {
		return errors.New("missing element id")
	}

	res, err := s.elements().DeleteOne(ctx, bson.M{"id": elementID})
	if err != nil {
		return fmt.Errorf("delete element: %w", err)
	}
	if res.DeletedCount == 0 {
		return datalayer.ErrNotFound
	}
	return nil
}
