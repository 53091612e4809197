package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aito-ai/voice-agent-backend/internal/db"
	"github.com/aito-ai/voice-agent-backend/internal/models"
	"github.com/aito-ai/voice-agent-backend/internal/testutil"
)

func TestResolveIsStablePerAddress(t *testing.T) {
	users := testutil.NewMemUsers()
	svc := NewIdentityService(users, zap.NewNop().Sugar())
	ctx := context.Background()

	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	first, err := svc.Resolve(ctx, "198.51.100.4")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first.Username != models.DefaultUsername {
		t.Fatalf("new users start as %q, got %q", models.DefaultUsername, first.Username)
	}

	svc.now = func() time.Time { return base.Add(time.Hour) }
	second, err := svc.Resolve(ctx, "198.51.100.4")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if second.UserID != first.UserID {
		t.Fatalf("same address must resolve to the same user, got %q and %q", first.UserID, second.UserID)
	}
	if !second.LastActiveAt.After(first.CreatedAt) {
		t.Fatalf("lastActiveAt must advance on repeat contact")
	}

	other, err := svc.Resolve(ctx, "198.51.100.5")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if other.UserID == first.UserID {
		t.Fatalf("distinct addresses must not share a user")
	}
}

func TestRenameUnknownUser(t *testing.T) {
	svc := NewIdentityService(testutil.NewMemUsers(), zap.NewNop().Sugar())

	_, err := svc.Rename(context.Background(), "user_missing", "Alex")
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFeedbackSubmitRequiresMessage(t *testing.T) {
	svc := NewFeedbackService(testutil.NewMemFeedback(), zap.NewNop().Sugar())
	ctx := context.Background()

	if _, err := svc.Submit(ctx, FeedbackInput{Message: "   "}); !errors.Is(err, ErrFeedbackMessageRequired) {
		t.Fatalf("expected ErrFeedbackMessageRequired, got %v", err)
	}

	feedback, err := svc.Submit(ctx, FeedbackInput{
		Name:      "Dana",
		Message:   "voice quality was great",
		Rating:    5,
		Category:  "praise",
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if feedback.Status != models.FeedbackNew {
		t.Fatalf("new feedback must start in %q, got %q", models.FeedbackNew, feedback.Status)
	}
	if feedback.FeedbackID == "" {
		t.Fatalf("feedbackId must be generated")
	}
}

func TestFeedbackStatusValidation(t *testing.T) {
	store := testutil.NewMemFeedback()
	svc := NewFeedbackService(store, zap.NewNop().Sugar())
	ctx := context.Background()

	feedback, err := svc.Submit(ctx, FeedbackInput{Message: "please add transcripts"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, feedback.FeedbackID, "archived"); !errors.Is(err, ErrInvalidFeedbackStatus) {
		t.Fatalf("expected ErrInvalidFeedbackStatus, got %v", err)
	}

	updated, err := svc.UpdateStatus(ctx, feedback.FeedbackID, models.FeedbackResolved)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != models.FeedbackResolved {
		t.Fatalf("expected resolved, got %q", updated.Status)
	}
}
