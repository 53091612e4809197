package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aito-ai/voice-agent-backend/internal/auth"
	"github.com/aito-ai/voice-agent-backend/internal/db"
	"github.com/aito-ai/voice-agent-backend/internal/models"
	"github.com/aito-ai/voice-agent-backend/internal/services"
	"github.com/aito-ai/voice-agent-backend/internal/utils"
)

// Admin read paths, satisfied by the db stores. Tests supply fakes.

type UserDirectory interface {
	List(ctx context.Context, page, limit int64) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
	Recent(ctx context.Context, n int64) ([]models.User, error)
}

type FeedbackDirectory interface {
	List(ctx context.Context, page, limit int64) ([]models.Feedback, error)
	Count(ctx context.Context) (int64, error)
	Recent(ctx context.Context, n int64) ([]models.Feedback, error)
}

type SessionCounts interface {
	Count(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
}

// Handler wires the HTTP surface to the services. All responses share the
// {success, ...} envelope; failures carry {success:false, error}.
type Handler struct {
	identity    *services.IdentityService
	sessions    *services.SessionService
	feedback    *services.FeedbackService
	authService *auth.Service

	userDir     UserDirectory
	feedbackDir FeedbackDirectory
	sessionCnt  SessionCounts

	logger *zap.SugaredLogger
}

func NewHandler(
	identity *services.IdentityService,
	sessions *services.SessionService,
	feedback *services.FeedbackService,
	authService *auth.Service,
	userDir UserDirectory,
	feedbackDir FeedbackDirectory,
	sessionCnt SessionCounts,
	logger *zap.SugaredLogger,
) *Handler {
	return &Handler{
		identity:    identity,
		sessions:    sessions,
		feedback:    feedback,
		authService: authService,
		userDir:     userDir,
		feedbackDir: feedbackDir,
		sessionCnt:  sessionCnt,
		logger:      logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	h.RegisterRoutesWith(router, nil)
}

// RegisterRoutesWith mounts the API; extra middleware (rate limiting) is
// applied to the public group only, so admin traffic is never throttled by
// anonymous abuse.
func (h *Handler) RegisterRoutesWith(router *gin.Engine, public []gin.HandlerFunc) {
	router.GET("/health", h.handleHealth)

	apiGroup := router.Group("/api")
	apiGroup.GET("/health", h.handleHealth)

	open := apiGroup.Group("")
	for _, mw := range public {
		open.Use(mw)
	}

	open.POST("/users", h.handleCreateUser)
	open.PUT("/users/:userId/username", h.handleRenameUser)
	open.GET("/users/:userId/sessions", h.handleUserSessions)
	open.POST("/sessions", h.handleStartSession)
	open.GET("/sessions/:sessionId", h.handleGetSession)
	open.PUT("/sessions/:sessionId/end", h.handleEndSession)
	open.PUT("/sessions/:sessionId/abandon", h.handleAbandonSession)
	open.POST("/sessions/:sessionId/messages", h.handleAddMessage)
	open.POST("/feedback", h.handleSubmitFeedback)

	adminGroup := apiGroup.Group("/admin")
	adminGroup.POST("/login", h.handleAdminLogin)

	protected := adminGroup.Group("")
	protected.Use(h.requireAdmin())
	protected.PUT("/change-password", h.handleChangePassword)
	protected.GET("/users", h.handleAdminUsers)
	protected.GET("/user/:userId/sessions", h.handleAdminUserSessions)
	protected.GET("/feedback", h.handleAdminFeedback)
	protected.PUT("/feedback/:feedbackId/status", h.handleAdminFeedbackStatus)
	protected.GET("/dashboard", h.handleAdminDashboard)
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Voice AI Agent API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type createUserRequest struct {
	IPAddress string `json:"ipAddress"`
}

func (h *Handler) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = utils.ClientIP(c.Request)
	}

	user, err := h.identity.Resolve(c.Request.Context(), req.IPAddress)
	if err != nil {
		h.fail(c, "resolve user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": userPayload(user)})
}

type renameUserRequest struct {
	Username string `json:"username"`
}

func (h *Handler) handleRenameUser(c *gin.Context) {
	var req renameUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		respondError(c, http.StatusBadRequest, "username is required")
		return
	}

	user, err := h.identity.Rename(c.Request.Context(), c.Param("userId"), req.Username)
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.fail(c, "rename user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": userPayload(user)})
}

type startSessionRequest struct {
	UserID    string `json:"userId"`
	IPAddress string `json:"ipAddress"`
}

func (h *Handler) handleStartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		respondError(c, http.StatusBadRequest, "userId is required")
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = utils.ClientIP(c.Request)
	}

	session, err := h.sessions.Start(c.Request.Context(), req.UserID, req.IPAddress)
	if err != nil {
		h.fail(c, "start session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "session": sessionPayload(session)})
}

type endSessionRequest struct {
	ConversationData *models.ConversationData `json:"conversationData"`
}

func (h *Handler) handleEndSession(c *gin.Context) {
	var req endSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "invalid payload")
		return
	}

	session, err := h.sessions.Finalize(c.Request.Context(), c.Param("sessionId"), req.ConversationData)
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		h.fail(c, "end session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "session": sessionPayload(session)})
}

func (h *Handler) handleAbandonSession(c *gin.Context) {
	session, err := h.sessions.ForceAbandon(c.Request.Context(), c.Param("sessionId"))
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		h.fail(c, "abandon session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "session": sessionPayload(session)})
}

type addMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h *Handler) handleAddMessage(c *gin.Context) {
	var req addMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAssistant {
		respondError(c, http.StatusBadRequest, "role must be user or assistant")
		return
	}

	err := h.sessions.AppendMessage(c.Request.Context(), c.Param("sessionId"), req.Role, req.Content)
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		h.fail(c, "add message", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) handleUserSessions(c *gin.Context) {
	summaries, err := h.sessions.ListForUser(c.Request.Context(), c.Param("userId"), services.DefaultSessionListLimit)
	if err != nil {
		h.fail(c, "list user sessions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": summaries})
}

func (h *Handler) handleGetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("sessionId"))
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		h.fail(c, "get session", err)
		return
	}

	payload := sessionPayload(session)
	payload["conversationData"] = session.ConversationData
	c.JSON(http.StatusOK, gin.H{"success": true, "session": payload})
}

type feedbackRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Message  string `json:"message"`
	Rating   int    `json:"rating"`
	Category string `json:"category"`
}

func (h *Handler) handleSubmitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid payload")
		return
	}

	feedback, err := h.feedback.Submit(c.Request.Context(), services.FeedbackInput{
		Name:      req.Name,
		Email:     req.Email,
		Message:   req.Message,
		Rating:    req.Rating,
		Category:  req.Category,
		IPAddress: utils.ClientIP(c.Request),
		UserAgent: c.Request.UserAgent(),
	})
	if errors.Is(err, services.ErrFeedbackMessageRequired) {
		respondError(c, http.StatusBadRequest, "message is required")
		return
	}
	if err != nil {
		h.fail(c, "submit feedback", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Feedback submitted successfully",
		"feedbackId": feedback.FeedbackID,
	})
}

func userPayload(user *models.User) gin.H {
	return gin.H{
		"userId":        user.UserID,
		"username":      user.Username,
		"ipAddress":     user.IPAddress,
		"totalSessions": user.TotalSessions,
	}
}

func sessionPayload(session *models.ConversationSession) gin.H {
	payload := gin.H{
		"sessionId": session.SessionID,
		"userId":    session.UserID,
		"startTime": session.StartTime,
		"status":    session.Status,
	}
	if session.EndTime != nil {
		payload["endTime"] = session.EndTime
		payload["duration"] = session.Duration
	}
	return payload
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

// fail logs the wrapped store error and answers with the uniform envelope;
// no structured error codes beyond the HTTP status.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	h.logger.Errorw("request failed", "op", op, "path", c.FullPath(), "error", err)
	respondError(c, http.StatusInternalServerError, err.Error())
}
