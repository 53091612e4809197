package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aito-ai/voice-agent-backend/internal/models"
)

// FeedbackStore is the Mongo-backed feedback collection access layer.
type FeedbackStore struct {
	coll *mongo.Collection
}

func NewFeedbackStore(m *Mongo) *FeedbackStore {
	return &FeedbackStore{coll: m.Feedback}
}

func (s *FeedbackStore) Insert(ctx context.Context, feedback *models.Feedback) error {
	if _, err := s.coll.InsertOne(ctx, feedback); err != nil {
		return fmt.Errorf("feedback: insert: %w", err)
	}
	return nil
}

func (s *FeedbackStore) UpdateStatus(ctx context.Context, feedbackID, status string) (*models.Feedback, error) {
	var feedback models.Feedback
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"feedbackId": feedbackID},
		bson.M{"$set": bson.M{"status": status}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&feedback)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("feedback: update status: %w", err)
	}
	return &feedback, nil
}

func (s *FeedbackStore) List(ctx context.Context, page, limit int64) ([]models.Feedback, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "submittedAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("feedback: list: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []models.Feedback{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("feedback: decode list: %w", err)
	}
	return entries, nil
}

func (s *FeedbackStore) Count(ctx context.Context) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("feedback: count: %w", err)
	}
	return count, nil
}

func (s *FeedbackStore) Recent(ctx context.Context, n int64) ([]models.Feedback, error) {
	return s.List(ctx, 1, n)
}
