package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aito-ai/voice-agent-backend/internal/models"
)

// UserStore is the Mongo-backed user collection access layer.
type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(m *Mongo) *UserStore {
	return &UserStore{coll: m.Users}
}

func (s *UserStore) FindByAddress(ctx context.Context, ipAddress string) (*models.User, error) {
	var user models.User
	err := s.coll.FindOne(ctx, bson.M{"ipAddress": ipAddress}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: find by address: %w", err)
	}
	return &user, nil
}

func (s *UserStore) FindByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: find by id: %w", err)
	}
	return &user, nil
}

func (s *UserStore) Insert(ctx context.Context, user *models.User) error {
	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("users: insert: %w", err)
	}
	return nil
}

func (s *UserStore) TouchActivity(ctx context.Context, userID string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$set": bson.M{"lastActiveAt": at}},
	)
	if err != nil {
		return fmt.Errorf("users: touch activity: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) Rename(ctx context.Context, userID, username string, at time.Time) (*models.User, error) {
	var user models.User
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"userId": userID},
		bson.M{"$set": bson.M{"username": username, "lastActiveAt": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: rename: %w", err)
	}
	return &user, nil
}

// RecordSessionStart bumps the monotonic session counter and activity
// timestamp when a new session is opened for the user.
func (s *UserStore) RecordSessionStart(ctx context.Context, userID string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{
			"$inc": bson.M{"totalSessions": 1},
			"$set": bson.M{"lastActiveAt": at},
		},
	)
	if err != nil {
		return fmt.Errorf("users: record session start: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) List(ctx context.Context, page, limit int64) ([]models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("users: decode list: %w", err)
	}
	return users, nil
}

func (s *UserStore) Count(ctx context.Context) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("users: count: %w", err)
	}
	return count, nil
}

func (s *UserStore) Recent(ctx context.Context, n int64) ([]models.User, error) {
	return s.List(ctx, 1, n)
}
