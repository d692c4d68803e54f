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

// CreateSession upserts a session record keyed on its app-level string id.
func (s *Store) CreateSession(ctx context.Context, sess datalayer.Session) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}

	sess.ID = strings.TrimSpace(sess.ID)
	if sess.ID == "" {
		sess.ID = datalayer.NewID()
	}
	sess.UserIdentifier = datalayer.NormalizeIdentifier(sess.UserIdentifier)
	sess.ThreadID = strings.TrimSpace(sess.ThreadID)
	now := datalayer.Now()
	metadata := sess.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	_, err := s.sessions().UpdateOne(ctx,
		bson.M{"id": sess.ID},
		bson.M{
			"$setOnInsert": bson.M{"createdAt": now},
			"$set": bson.M{
				"userIdentifier": sess.UserIdentifier,
				"threadId":       sess.ThreadID,
				"metadata":       metadata,
				"updatedAt":      now,
			},
		},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sess.ID, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*datalayer.Session, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, nil
	}

	var d sessionDoc
	err := s.sessions().FindOne(ctx, bson.M{"id": sessionID},
		options.FindOne().SetProjection(noID)).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return d.toSession(), nil
}

// UpdateSession patches the session's thread binding, user identifier or
// metadata. Unknown patch keys are ignored.
func (s *Store) UpdateSession(ctx context.Context, sessionID string, patch map[string]any) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("missing session id")
	}

	norm := datalayer.CanonicalizeDoc(patch)
	set := bson.M{"updatedAt": datalayer.Now()}
	if ident := datalayer.DocString(norm, "userIdentifier"); ident != "" {
		set["userIdentifier"] = datalayer.NormalizeIdentifier(ident)
	}
	if threadID := datalayer.DocString(norm, "threadId"); threadID != "" {
		set["threadId"] = threadID
	}
	if m, ok := norm["metadata"].(map[string]any); ok {
		set["metadata"] = m
	}

	res, err := s.sessions().UpdateOne(ctx, bson.M{"id": sessionID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if res.MatchedCount == 0 {
		return datalayer.ErrNotFound
	}
	return nil
}

// DeleteSession deletes by the app-level string id. Deleting by a
// store-native key here is the classic bug this layer exists to prevent.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("missing session id")
	}

	res, err := s.sessions().DeleteOne(ctx, bson.M{"id": sessionID})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if res.DeletedCount == 0 {
		return datalayer.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteThreadSessions(ctx context.Context, threadID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return 0, errors.New("missing thread id")
	}

	res, err := s.sessions().DeleteMany(ctx, bson.M{"threadId": threadID})
	if err != nil {
		return 0, fmt.Errorf("delete thread sessions: %w", err)
	}
	return res.DeletedCount, nil
}
