package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aito-ai/voice-agent-backend/internal/models"
)

// Store interfaces consumed by the services. The Mongo implementations live
// in internal/db; tests supply in-memory fakes. Missing keys surface as
// db.ErrNotFound.

type UserStore interface {
	FindByAddress(ctx context.Context, ipAddress string) (*models.User, error)
	FindByID(ctx context.Context, userID string) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
	TouchActivity(ctx context.Context, userID string, at time.Time) error
	Rename(ctx context.Context, userID, username string, at time.Time) (*models.User, error)
	RecordSessionStart(ctx context.Context, userID string, at time.Time) error
}

type SessionStore interface {
	Insert(ctx context.Context, session *models.ConversationSession) error
	FindByID(ctx context.Context, sessionID string) (*models.ConversationSession, error)
	AppendMessage(ctx context.Context, sessionID string, msg models.Message) (*models.ConversationSession, error)
	SaveFinal(ctx context.Context, session *models.ConversationSession) error
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.ConversationSession, error)
	FindMostRecentActive(ctx context.Context, userID string) (*models.ConversationSession, error)
	ListStaleActive(ctx context.Context, cutoff time.Time) ([]models.ConversationSession, error)
}

type FeedbackStore interface {
	Insert(ctx context.Context, feedback *models.Feedback) error
	UpdateStatus(ctx context.Context, feedbackID, status string) (*models.Feedback, error)
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
