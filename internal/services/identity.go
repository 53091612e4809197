package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aito-ai/voice-agent-backend/internal/models"
)

// IdentityService maps an observed network address to a stable user
// identity: one user per address, created on first contact.
type IdentityService struct {
	users  UserStore
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewIdentityService(users UserStore, logger *zap.SugaredLogger) *IdentityService {
	return &IdentityService{
		users:  users,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns the user for ipAddress, creating one on first contact and
// refreshing the activity timestamp otherwise.
func (s *IdentityService) Resolve(ctx context.Context, ipAddress string) (*models.User, error) {
	user, err := s.users.FindByAddress(ctx, ipAddress)
	if err == nil {
		user.LastActiveAt = s.now()
		if err := s.users.TouchActivity(ctx, user.UserID, user.LastActiveAt); err != nil {
			return nil, fmt.Errorf("identity: touch activity: %w", err)
		}
		return user, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("identity: resolve: %w", err)
	}

	now := s.now()
	user = &models.User{
		UserID:       newID("user"),
		Username:     models.DefaultUsername,
		IPAddress:    ipAddress,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, fmt.Errorf("identity: create user: %w", err)
	}

	s.logger.Infow("new user created", "userId", user.UserID, "ipAddress", ipAddress)
	return user, nil
}

// Rename overwrites the display name and bumps activity.
func (s *IdentityService) Rename(ctx context.Context, userID, username string) (*models.User, error) {
	return s.users.Rename(ctx, userID, username, s.now())
}
