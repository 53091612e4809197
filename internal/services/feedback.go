package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aito-ai/voice-agent-backend/internal/models"
)

var (
	ErrFeedbackMessageRequired = errors.New("feedback: message is required")
	ErrInvalidFeedbackStatus   = errors.New("feedback: invalid status")
)

// FeedbackInput carries one submission plus request provenance.
type FeedbackInput struct {
	Name      string
	Email     string
	Message   string
	Rating    int
	Category  string
	IPAddress string
	UserAgent string
}

// FeedbackService is stateless record creation plus the admin-only status
// transition. No cross-entity side effects.
type FeedbackService struct {
	feedback FeedbackStore
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewFeedbackService(feedback FeedbackStore, logger *zap.SugaredLogger) *FeedbackService {
	return &FeedbackService{
		feedback: feedback,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *FeedbackService) Submit(ctx context.Context, input FeedbackInput) (*models.Feedback, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, ErrFeedbackMessageRequired
	}

	feedback := &models.Feedback{
		FeedbackID:  newID("feedback"),
		Name:        strings.TrimSpace(input.Name),
		Email:       strings.TrimSpace(input.Email),
		Message:     input.Message,
		Rating:      input.Rating,
		Category:    input.Category,
		IPAddress:   input.IPAddress,
		UserAgent:   input.UserAgent,
		SubmittedAt: s.now(),
		Status:      models.FeedbackNew,
	}

	if err := s.feedback.Insert(ctx, feedback); err != nil {
		return nil, fmt.Errorf("feedback: submit: %w", err)
	}

	s.logger.Infow("feedback submitted", "feedbackId", feedback.FeedbackID, "category", feedback.Category)
	return feedback, nil
}

func (s *FeedbackService) UpdateStatus(ctx context.Context, feedbackID, status string) (*models.Feedback, error) {
	if !models.ValidFeedbackStatus(status) {
		return nil, ErrInvalidFeedbackStatus
	}
	return s.feedback.UpdateStatus(ctx, feedbackID, status)
}
