package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aito-ai/voice-agent-backend/internal/utils"
)

// ErrNotFound is returned by all stores when the requested key is unknown.
var ErrNotFound = errors.New("db: record not found")

// Mongo owns the document-store connection and the collections backing
// users, sessions and feedback.
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
	Users    *mongo.Collection
	Sessions *mongo.Collection
	Feedback *mongo.Collection
}

func NewMongo(ctx context.Context, cfg utils.MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo: uri is required")
	}

	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	database := client.Database(cfg.Database)
	return &Mongo{
		Client:   client,
		Database: database,
		Users:    database.Collection("users"),
		Sessions: database.Collection("sessions"),
		Feedback: database.Collection("feedback"),
	}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.Client.Disconnect(ctx)
}

// EnsureIndexes creates the unique key indexes plus the query paths the
// admin surface and the session listing rely on.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	if m == nil || m.Database == nil {
		return fmt.Errorf("mongo: database not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{m.Users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "ipAddress", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		}},
		{m.Sessions, []mongo.IndexModel{
			{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "startTime", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "startTime", Value: 1}}},
		}},
		{m.Feedback, []mongo.IndexModel{
			{Keys: bson.D{{Key: "feedbackId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "submittedAt", Value: -1}}},
		}},
	}

	for _, entry := range indexes {
		if _, err := entry.coll.Indexes().CreateMany(ctx, entry.models); err != nil {
			return fmt.Errorf("mongo: ensure %s indexes: %w", entry.coll.Name(), err)
		}
	}

	return nil
}

func timeoutOrDefault(value time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return 10 * time.Second
}
