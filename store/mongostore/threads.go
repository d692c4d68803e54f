package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/threadkeep/threadkeep/datalayer"
)

func (s *Store) CreateThread(ctx context.Context, opts datalayer.CreateThreadOptions) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}
	identifier := datalayer.NormalizeIdentifier(opts.UserIdentifier)
	if identifier == "" {
		return "", errors.New("missing user identifier")
	}

	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = datalayer.NewID()
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "Untitled"
	}

	now := datalayer.Now()
	doc := threadDoc{
		ID:             id,
		Name:           name,
		UserIdentifier: identifier,
		ChatProfile:    strings.TrimSpace(opts.ChatProfile),
		Metadata:       opts.Metadata,
		Tags:           opts.Tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.threads().InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}

	s.log.Info("thread created", "thread_id", id, "user", identifier)
	return id, nil
}

// GetThread returns the thread with its steps in chronological order. When
// userIdentifier is non-empty the thread (and its steps) must belong to that
// user.
func (s *Store) GetThread(ctx context.Context, threadID string, userIdentifier string) (*datalayer.Thread, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, nil
	}
	userIdentifier = datalayer.NormalizeIdentifier(userIdentifier)

	filter := bson.M{"id": threadID}
	if userIdentifier != "" {
		filter["userIdentifier"] = userIdentifier
	}

	var d threadDoc
	err := s.threads().FindOne(ctx, filter, options.FindOne().SetProjection(noID)).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get thread: %w", err)
	}

	t := d.toThread()
	steps, err := s.listThreadSteps(ctx, threadID, userIdentifier)
	if err != nil {
		return nil, err
	}
	t.Steps = steps
	return t, nil
}

func (s *Store) GetThreadAuthor(ctx context.Context, threadID string) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return "", nil
	}

	var d struct {
		UserIdentifier string `bson:"userIdentifier"`
	}
	err := s.threads().FindOne(ctx, bson.M{"id": threadID},
		options.FindOne().SetProjection(bson.M{"_id": 0, "userIdentifier": 1})).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", fmt.Errorf("get thread author: %w", err)
	}
	return datalayer.NormalizeIdentifier(d.UserIdentifier), nil
}

// UpdateThread patches thread fields, creating the thread when it does not
// exist yet. The upsert closes the race between a rename arriving from the
// host UI and the first step creating the thread; without it the two writers
// produced duplicate thread documents under one logical conversation.
func (s *Store) UpdateThread(ctx context.Context, threadID string, patch datalayer.ThreadPatch) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return errors.New("missing thread id")
	}

	now := datalayer.Now()
	set := bson.M{"updatedAt": now}
	setOnInsert := bson.M{"id": threadID, "createdAt": now}

	if patch.Name != nil {
		set["name"] = strings.TrimSpace(*patch.Name)
	} else {
		setOnInsert["name"] = "Untitled"
	}
	if patch.UserIdentifier != nil {
		set["userIdentifier"] = datalayer.NormalizeIdentifier(*patch.UserIdentifier)
	}
	if patch.ChatProfile != nil {
		set["chatProfile"] = strings.TrimSpace(*patch.ChatProfile)
	}
	if patch.Metadata != nil {
		set["metadata"] = patch.Metadata
	} else {
		setOnInsert["metadata"] = map[string]any{}
	}
	if patch.Tags != nil {
		set["tags"] = patch.Tags
	}

	_, err := s.threads().UpdateOne(ctx,
		bson.M{"id": threadID},
		bson.M{"$set": set, "$setOnInsert": setOnInsert},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("update thread: %w", err)
	}
	return nil
}

// DeleteThread cascades over steps, elements, feedback (both by thread id
// and by the step ids it referenced) and sessions before removing the
// thread itself. Children are removed even when the thread document is
// already gone; in that case ErrNotFound is returned alongside the counts.
func (s *Store) DeleteThread(ctx context.Context, threadID string) (datalayer.CascadeResult, error) {
	if s == nil || s.db == nil {
		return datalayer.CascadeResult{}, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return datalayer.CascadeResult{}, errors.New("missing thread id")
	}

	result, err := s.deleteThreadCascade(ctx, threadID)
	if err != nil {
		return datalayer.CascadeResult{}, err
	}

	s.log.Info("thread cascade deleted",
		"thread_id", threadID,
		"threads", result.Threads,
		"steps", result.Steps,
		"elements", result.Elements,
		"feedback", result.Feedback,
		"sessions", result.Sessions,
	)
	if result.Threads == 0 {
		return result, datalayer.ErrNotFound
	}
	return result, nil
}

// deleteThreadCascade fans the per-collection deletes out concurrently and
// removes the thread document last, so a failed child delete never leaves an
// orphaned-looking thread that is actually half gone.
func (s *Store) deleteThreadCascade(ctx context.Context, threadID string) (datalayer.CascadeResult, error) {
	var result datalayer.CascadeResult

	stepIDs, err := s.collectIDs(ctx, s.steps(), bson.M{"threadId": threadID})
	if err != nil {
		return result, fmt.Errorf("list thread steps: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Feedback hangs off the thread directly and off individual steps.
		res, err := s.feedback().DeleteMany(gctx, bson.M{"threadId": threadID})
		if err != nil {
			return fmt.Errorf("delete thread feedback: %w", err)
		}
		result.Feedback = res.DeletedCount
		if len(stepIDs) > 0 {
			res, err = s.feedback().DeleteMany(gctx, bson.M{"forId": bson.M{"$in": stepIDs}})
			if err != nil {
				return fmt.Errorf("delete step feedback: %w", err)
			}
			result.Feedback += res.DeletedCount
		}
		return nil
	})
	g.Go(func() error {
		res, err := s.elements().DeleteMany(gctx, bson.M{"threadId": threadID})
		if err != nil {
			return fmt.Errorf("delete thread elements: %w", err)
		}
		result.Elements = res.DeletedCount
		return nil
	})
	g.Go(func() error {
		res, err := s.sessions().DeleteMany(gctx, bson.M{"threadId": threadID})
		if err != nil {
			return fmt.Errorf("delete thread sessions: %w", err)
		}
		result.Sessions = res.DeletedCount
		return nil
	})
	g.Go(func() error {
		// Documents written before the key normalization landed carry the
		// snake_case thread key.
		res, err := s.steps().DeleteMany(gctx, bson.M{"$or": []bson.M{
			{"threadId": threadID},
			{"thread_id": threadID},
		}})
		if err != nil {
			return fmt.Errorf("delete thread steps: %w", err)
		}
		result.Steps = res.DeletedCount
		return nil
	})
	if err := g.Wait(); err != nil {
		return result, err
	}

	res, err := s.threads().DeleteOne(ctx, bson.M{"id": threadID})
	if err != nil {
		return result, fmt.Errorf("delete thread: %w", err)
	}
	result.Threads = res.DeletedCount
	return result, nil
}

// ListThreads resolves the filter's UserID (native id or identifier) and
// returns the user's threads sorted by last activity, newest first.
func (s *Store) ListThreads(ctx context.Context, p datalayer.Pagination, f datalayer.ThreadFilter) (*datalayer.ThreadPage, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}

	identifier, err := s.resolveUserIdentifier(ctx, f.UserID)
	if err != nil {
		return nil, err
	}
	if identifier == "" {
		s.log.Warn("list threads: user not found", "user_id", f.UserID)
		return datalayer.EmptyThreadPage(), nil
	}

	filter := bson.M{"userIdentifier": identifier}
	if chatProfile := strings.TrimSpace(f.ChatProfile); chatProfile != "" {
		filter["chatProfile"] = chatProfile
	}

	total, err := s.threads().CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count threads: %w", err)
	}

	skip, limit := p.Window()
	cur, err := s.threads().Find(ctx, filter, options.Find().
		SetProjection(noID).
		SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "id", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer cur.Close(ctx)

	data := make([]datalayer.Thread, 0, limit)
	for cur.Next(ctx) {
		var d threadDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		data = append(data, *d.toThread())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	return &datalayer.ThreadPage{
		Data:  data,
		Total: int(total),
		PageInfo: datalayer.PageInfo{
			Page:  datalayer.PageNumber(skip, limit),
			Size:  limit,
			Total: int(total),
		},
	}, nil
}

// resolveUserIdentifier accepts either a store-native user id or an
// identifier and returns the canonical identifier, or "" when no such user
// exists.
func (s *Store) resolveUserIdentifier(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", nil
	}

	proj := options.FindOne().SetProjection(bson.M{"_id": 0, "identifier": 1})
	var d struct {
		Identifier string `bson:"identifier"`
	}
	err := s.users().FindOne(ctx, bson.M{"id": userID}, proj).Decode(&d)
	if err == nil {
		return d.Identifier, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("resolve user id: %w", err)
	}

	err = s.users().FindOne(ctx, bson.M{"identifier": datalayer.NormalizeIdentifier(userID)}, proj).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", fmt.Errorf("resolve user identifier: %w", err)
	}
	return d.Identifier, nil
}
