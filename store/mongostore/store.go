// Package mongostore is the MongoDB backend of the data layer. Documents
// are keyed on app-level string ids under the "id" field; the native "_id"
// is never exposed to callers.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const defaultDebugURLTemplate = "threadkeep://debug/thread/%s"

// Store is a MongoDB-backed implementation of datalayer.DataLayer.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *slog.Logger

	debugURLTemplate string
}

type Options struct {
	// URL is the mongodb:// or mongodb+srv:// connection string.
	URL string
	// DBName defaults to "threadkeep".
	DBName string

	Logger *slog.Logger

	// DebugURLTemplate is a fmt template with one %s verb for the thread id.
	DebugURLTemplate string
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, errors.New("missing connection url")
	}
	dbName := strings.TrimSpace(opts.DBName)
	if dbName == "" {
		dbName = "threadkeep"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	tmpl := strings.TrimSpace(opts.DebugURLTemplate)
	if tmpl == "" {
		tmpl = defaultDebugURLTemplate
	}

	logger.Info("mongo data layer opened", "database", dbName)
	return &Store{
		client:           client,
		db:               client.Database(dbName),
		log:              logger,
		debugURLTemplate: tmpl,
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

func (s *Store) BuildDebugURL(threadID string) string {
	return fmt.Sprintf(s.debugURLTemplate, strings.TrimSpace(threadID))
}

func (s *Store) users() *mongo.Collection    { return s.db.Collection("users") }
func (s *Store) threads() *mongo.Collection  { return s.db.Collection("threads") }
func (s *Store) steps() *mongo.Collection    { return s.db.Collection("steps") }
func (s *Store) elements() *mongo.Collection { return s.db.Collection("elements") }
func (s *Store) feedback() *mongo.Collection { return s.db.Collection("feedback") }
func (s *Store) sessions() *mongo.Collection { return s.db.Collection("sessions") }

// EnsureIndexes creates the query indexes. Safe to run on every startup;
// CreateMany is a no-op for indexes that already exist.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}

	collections := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "identifier", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"threads": {
			{Keys: bson.D{{Key: "userIdentifier", Value: 1}, {Key: "updatedAt", Value: -1}}},
			{Keys: bson.D{{Key: "chatProfile", Value: 1}}},
		},
		"steps": {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "threadId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		"elements": {
			{Keys: bson.D{{Key: "threadId", Value: 1}}},
		},
		"feedback": {
			{Keys: bson.D{{Key: "threadId", Value: 1}}},
			{Keys: bson.D{{Key: "forId", Value: 1}}},
		},
		"sessions": {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "threadId", Value: 1}}},
			{Keys: bson.D{{Key: "userIdentifier", Value: 1}, {Key: "updatedAt", Value: -1}}},
		},
	}

	for name, indexes := range collections {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("create indexes for %s: %w", name, err)
		}
	}

	s.log.Info("mongo indexes ensured")
	return nil
}

// noID excludes the native object id from reads so documents round-trip as
// plain app-level maps.
var noID = bson.M{"_id": 0}
