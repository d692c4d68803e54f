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

// UpsertFeedback inserts or replaces the feedback entry, generating an id
// when the caller did not supply one. The id is returned either way.
func (s *Store) UpsertFeedback(ctx context.Context, fb datalayer.Feedback) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}

	fb.ID = strings.TrimSpace(fb.ID)
	if fb.ID == "" {
		fb.ID = datalayer.NewID()
	}
	fb.ForID = strings.TrimSpace(fb.ForID)
	fb.ThreadID = strings.TrimSpace(fb.ThreadID)
	now := datalayer.Now()

	_, err := s.feedback().UpdateOne(ctx,
		bson.M{"id": fb.ID},
		bson.M{
			"$setOnInsert": bson.M{"createdAt": now},
			"$set": bson.M{
				"forId":     fb.ForID,
				"threadId":  fb.ThreadID,
				"value":     fb.Value,
				"comment":   fb.Comment,
				"updatedAt": now,
			},
		},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("upsert feedback: %w", err)
	}

	s.log.Debug("feedback upserted", "feedback_id", fb.ID, "for_id", fb.ForID)
	return fb.ID, nil
}

func (s *Store) GetFeedback(ctx context.Context, feedbackID string) (*datalayer.Feedback, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	feedbackID = strings.TrimSpace(feedbackID)
	if feedbackID == "" {
		return nil, nil
	}

	var d feedbackDoc
	err := s.feedback().FindOne(ctx, bson.M{"id": feedbackID},
		options.FindOne().SetProjection(noID)).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return d.toFeedback(), nil
}

func (s *Store) DeleteFeedback(ctx context.Context, feedbackID string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	feedbackID = strings.TrimSpace(feedbackID)
	if feedbackID == "" {
		return errors.New("missing feedback id")
	}

	res, err := s.feedback().DeleteOne(ctx, bson.M{"id": feedbackID})
	if err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}
	if res.DeletedCount == 0 {
		return datalayer.ErrNotFound
	}
	return nil
}
