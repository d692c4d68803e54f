package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/threadkeep/threadkeep/datalayer"
)

func (s *Store) GetUser(ctx context.Context, identifier string) (*datalayer.User, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	identifier = datalayer.NormalizeIdentifier(identifier)
	if identifier == "" {
		return nil, nil
	}

	var d userDoc
	err := s.users().FindOne(ctx, bson.M{"identifier": identifier},
		options.FindOne().SetProjection(noID)).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return d.toUser(), nil
}

// CreateUser is an idempotent upsert keyed on the lowercased identifier.
// Metadata and createdAt are only written on first insert; updatedAt is
// always refreshed.
func (s *Store) CreateUser(ctx context.Context, user datalayer.User) (*datalayer.User, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	identifier := datalayer.NormalizeIdentifier(user.Identifier)
	if identifier == "" {
		return nil, errors.New("missing identifier")
	}

	now := datalayer.Now()
	id := user.ID
	if id == "" {
		id = datalayer.NewID()
	}
	metadata := user.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	_, err := s.users().UpdateOne(ctx,
		bson.M{"identifier": identifier},
		bson.M{
			"$setOnInsert": bson.M{
				"id":        id,
				"metadata":  metadata,
				"createdAt": now,
			},
			"$set": bson.M{"updatedAt": now},
		},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user created or retrieved", "identifier", identifier)
	return s.GetUser(ctx, identifier)
}

func (s *Store) UpdateUser(ctx context.Context, identifier string, metadata map[string]any) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	identifier = datalayer.NormalizeIdentifier(identifier)
	if identifier == "" {
		return errors.New("missing identifier")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	res, err := s.users().UpdateOne(ctx,
		bson.M{"identifier": identifier},
		bson.M{"$set": bson.M{"metadata": metadata, "updatedAt": datalayer.Now()}})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return datalayer.ErrNotFound
	}
	return nil
}

// DeleteUser removes the user and cascades over every thread they own.
func (s *Store) DeleteUser(ctx context.Context, identifier string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	identifier = datalayer.NormalizeIdentifier(identifier)
	if identifier == "" {
		return errors.New("missing identifier")
	}

	threadIDs, err := s.collectIDs(ctx, s.threads(), bson.M{"userIdentifier": identifier})
	if err != nil {
		return fmt.Errorf("list user threads: %w", err)
	}
	for _, threadID := range threadIDs {
		if _, err := s.deleteThreadCascade(ctx, threadID); err != nil {
			return err
		}
	}

	res, err := s.users().DeleteOne(ctx, bson.M{"identifier": identifier})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return datalayer.ErrNotFound
	}

	s.log.Info("user deleted", "identifier", identifier, "threads", len(threadIDs))
	return nil
}

// collectIDs returns the app-level "id" values of every document matching the
// filter.
func (s *Store) collectIDs(ctx context.Context, coll *mongo.Collection, filter bson.M) ([]string, error) {
	cur, err := coll.Find(ctx, filter,
		options.Find().SetProjection(bson.M{"_id": 0, "id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []string
	for cur.Next(ctx) {
		var d struct {
			ID string `bson:"id"`
		}
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		if d.ID != "" {
			out = append(out, d.ID)
		}
	}
	return out, cur.Err()
}
