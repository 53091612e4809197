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

// SessionStore is the Mongo-backed session collection access layer.
// Individual message appends rely on the store serializing $push updates;
// ordering across concurrent requests is not guaranteed beyond that.
type SessionStore struct {
	coll *mongo.Collection
}

func NewSessionStore(m *Mongo) *SessionStore {
	return &SessionStore{coll: m.Sessions}
}

func (s *SessionStore) Insert(ctx context.Context, session *models.ConversationSession) error {
	if _, err := s.coll.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("sessions: insert: %w", err)
	}
	return nil
}

func (s *SessionStore) FindByID(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	var session models.ConversationSession
	err := s.coll.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: find by id: %w", err)
	}
	return &session, nil
}

// AppendMessage pushes one transcript entry and returns the updated
// session. There is deliberately no status guard: transcript events may
// trail a disconnect signal and are still recorded.
func (s *SessionStore) AppendMessage(ctx context.Context, sessionID string, msg models.Message) (*models.ConversationSession, error) {
	var session models.ConversationSession
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"sessionId": sessionID},
		bson.M{"$push": bson.M{"conversationData.messages": msg}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: append message: %w", err)
	}
	return &session, nil
}

// SaveFinal writes the terminal fields set by finalization in one update.
func (s *SessionStore) SaveFinal(ctx context.Context, session *models.ConversationSession) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"sessionId": session.SessionID},
		bson.M{"$set": bson.M{
			"endTime":          session.EndTime,
			"duration":         session.Duration,
			"status":           session.Status,
			"conversationData": session.ConversationData,
		}},
	)
	if err != nil {
		return fmt.Errorf("sessions: save final: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SessionStore) ListByUser(ctx context.Context, userID string, limit int64) ([]models.ConversationSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("sessions: list by user: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := []models.ConversationSession{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("sessions: decode list: %w", err)
	}
	return sessions, nil
}

// FindMostRecentActive resolves the disconnect fallback: the newest session
// for the user that has not yet been finalized.
func (s *SessionStore) FindMostRecentActive(ctx context.Context, userID string) (*models.ConversationSession, error) {
	var session models.ConversationSession
	err := s.coll.FindOne(ctx,
		bson.M{"userId": userID, "status": models.SessionActive},
		options.FindOne().SetSort(bson.D{{Key: "startTime", Value: -1}}),
	).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: find most recent active: %w", err)
	}
	return &session, nil
}

// ListStaleActive returns active sessions that started before cutoff,
// for the housekeeping sweep.
func (s *SessionStore) ListStaleActive(ctx context.Context, cutoff time.Time) ([]models.ConversationSession, error) {
	cursor, err := s.coll.Find(ctx, bson.M{
		"status":    models.SessionActive,
		"startTime": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return nil, fmt.Errorf("sessions: list stale: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := []models.ConversationSession{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("sessions: decode stale list: %w", err)
	}
	return sessions, nil
}

func (s *SessionStore) Count(ctx context.Context) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("sessions: count: %w", err)
	}
	return count, nil
}

func (s *SessionStore) CountActive(ctx context.Context) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"status": models.SessionActive})
	if err != nil {
		return 0, fmt.Errorf("sessions: count active: %w", err)
	}
	return count, nil
}
