package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aito-ai/voice-agent-backend/internal/models"
	"github.com/aito-ai/voice-agent-backend/internal/utils"
)

// DefaultSessionListLimit caps the per-user session listing.
const DefaultSessionListLimit = 50

// SessionService owns the conversation-session lifecycle: creation, message
// accumulation, and the single finalization path shared by explicit hang-up,
// inferred disconnect and abandonment sweeps.
//
// The state machine is active -> {completed, abandoned}; terminal states
// are absorbing. Finalizing an already-terminal session is a no-op that
// returns the stored record, so racing termination triggers cannot corrupt
// endTime or duration.
type SessionService struct {
	sessions SessionStore
	users    UserStore
	naming   *NameInference
	identity *IdentityService
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewSessionService(sessions SessionStore, users UserStore, identity *IdentityService, naming *NameInference, logger *zap.SugaredLogger) *SessionService {
	return &SessionService{
		sessions: sessions,
		users:    users,
		naming:   naming,
		identity: identity,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start opens a fresh active session for the user and bumps the owner's
// session counter. Multiple sessions per user may be active at once; the
// design does not enforce single-session-per-user.
func (s *SessionService) Start(ctx context.Context, userID, ipAddress string) (*models.ConversationSession, error) {
	session := &models.ConversationSession{
		SessionID:        newID("session"),
		UserID:           userID,
		StartTime:        s.now(),
		IPAddress:        ipAddress,
		Status:           models.SessionActive,
		ConversationData: models.ConversationData{Messages: []models.Message{}},
	}

	if err := s.sessions.Insert(ctx, session); err != nil {
		return nil, fmt.Errorf("session: start: %w", err)
	}

	// A failed counter bump after a successful insert leaves a partial
	// write; not compensated, matching the store-level consistency model.
	if err := s.users.RecordSessionStart(ctx, userID, session.StartTime); err != nil {
		return nil, fmt.Errorf("session: record start for user: %w", err)
	}

	s.logger.Infow("session started", "sessionId", session.SessionID, "userId", userID)
	return session, nil
}

// AppendMessage records one timestamped transcript entry. Appends to a
// terminal session are allowed: transcript events can arrive slightly after
// a disconnect signal. User-role messages additionally feed name inference
// for the owning user.
func (s *SessionService) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	msg := models.Message{Role: role, Content: content, Timestamp: s.now()}

	session, err := s.sessions.AppendMessage(ctx, sessionID, msg)
	if err != nil {
		return err
	}

	if role == models.RoleUser {
		s.maybeInferName(ctx, session.UserID, content)
	}

	return nil
}

// maybeInferName renames the owning user when the transcript text contains a
// confident self-introduction and the current name is still the default or
// implausibly long. Failures are logged, never surfaced: the append itself
// already succeeded.
func (s *SessionService) maybeInferName(ctx context.Context, userID, content string) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warnw("name inference: owner lookup failed", "userId", userID, "error", err)
		return
	}

	if !NameEligible(user.Username) {
		return
	}

	name, ok := s.naming.Infer(content)
	if !ok {
		return
	}

	if _, err := s.identity.Rename(ctx, userID, name); err != nil {
		s.logger.Warnw("name inference: rename failed", "userId", userID, "error", err)
		return
	}
	s.logger.Infow("username inferred from transcript", "userId", userID, "username", name)
}

// Finalize is the single terminal transition, invoked by all three
// termination triggers. Duration is whole seconds, floored, computed from
// the original start time. Status resolves to abandoned iff the effective
// message count is zero; a supplied conversationData replaces the stored
// transcript (last write wins, reconciling client-buffered state).
//
// A second call on an already-terminal session returns the stored session
// unchanged rather than recomputing endTime and duration.
func (s *SessionService) Finalize(ctx context.Context, sessionID string, conversationData *models.ConversationData) (*models.ConversationSession, error) {
	return s.finalize(ctx, sessionID, conversationData, false)
}

// ForceAbandon finalizes with status abandoned regardless of message count.
// Used by the housekeeping sweep over stale active sessions.
func (s *SessionService) ForceAbandon(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	return s.finalize(ctx, sessionID, nil, true)
}

func (s *SessionService) finalize(ctx context.Context, sessionID string, conversationData *models.ConversationData, forceAbandon bool) (*models.ConversationSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Terminal() {
		s.logger.Debugw("finalize on terminal session ignored", "sessionId", sessionID, "status", session.Status)
		return session, nil
	}

	endTime := s.now()
	duration := int64(endTime.Sub(session.StartTime) / time.Second)
	if duration < 0 {
		duration = 0
	}

	messageCount := session.MessageCount()
	if conversationData != nil {
		messageCount = len(conversationData.Messages)
		session.ConversationData = *conversationData
	}

	session.EndTime = &endTime
	session.Duration = &duration
	switch {
	case forceAbandon, messageCount == 0:
		session.Status = models.SessionAbandoned
	default:
		session.Status = models.SessionCompleted
	}

	if err := s.sessions.SaveFinal(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Infow("session finalized",
		"sessionId", session.SessionID,
		"userId", session.UserID,
		"status", session.Status,
		"duration", duration,
		"messageCount", messageCount,
	)
	return session, nil
}

// ListForUser returns transcript-free summaries, most recent first.
func (s *SessionService) ListForUser(ctx context.Context, userID string, limit int64) ([]models.SessionSummary, error) {
	if limit <= 0 {
		limit = DefaultSessionListLimit
	}

	sessions, err := s.sessions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.SessionSummary, 0, len(sessions))
	for i := range sessions {
		summaries = append(summaries, sessions[i].Summary())
	}
	return summaries, nil
}

// ListAllForUser returns full session records, most recent first. Admin use.
func (s *SessionService) ListAllForUser(ctx context.Context, userID string) ([]models.ConversationSession, error) {
	return s.sessions.ListByUser(ctx, userID, 0)
}

// Get returns the session with its full transcript.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	return s.sessions.FindByID(ctx, sessionID)
}

// MostRecentActive backs the disconnect fallback: when a closing trigger
// has lost its in-memory session reference, it finalizes the newest still-
// active session instead of creating anything.
func (s *SessionService) MostRecentActive(ctx context.Context, userID string) (*models.ConversationSession, error) {
	return s.sessions.FindMostRecentActive(ctx, userID)
}

// RunSweeper force-abandons sessions left active past cfg.StaleAfter, every
// cfg.SweepInterval, until ctx is cancelled. Run it as a goroutine.
func (s *SessionService) RunSweeper(ctx context.Context, cfg utils.SessionConfig) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx, cfg.StaleAfter)
		}
	}
}

func (s *SessionService) sweepOnce(ctx context.Context, staleAfter time.Duration) {
	cutoff := s.now().Add(-staleAfter)
	stale, err := s.sessions.ListStaleActive(ctx, cutoff)
	if err != nil {
		s.logger.Warnw("session sweep: listing stale sessions failed", "error", err)
		return
	}

	for i := range stale {
		if _, err := s.ForceAbandon(ctx, stale[i].SessionID); err != nil {
			s.logger.Warnw("session sweep: abandon failed", "sessionId", stale[i].SessionID, "error", err)
		}
	}

	if len(stale) > 0 {
		s.logger.Infow("session sweep completed", "abandoned", len(stale))
	}
}
