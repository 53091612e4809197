package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aito-ai/voice-agent-backend/internal/auth"
	"github.com/aito-ai/voice-agent-backend/internal/db"
	"github.com/aito-ai/voice-agent-backend/internal/models"
	"github.com/aito-ai/voice-agent-backend/internal/services"
)

const adminContextKey = "admin"

const (
	defaultPage  = 1
	defaultLimit = 20
)

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleAdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "username and password are required")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.fail(c, "admin login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   result.Token,
		"admin":   adminPayload(result.Admin),
	})
}

// requireAdmin resolves the bearer token to an active admin account and
// stashes it in the request context.
func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(c, http.StatusUnauthorized, "No token provided")
			c.Abort()
			return
		}

		admin, err := h.authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "Invalid token")
			c.Abort()
			return
		}

		c.Set(adminContextKey, admin)
		c.Next()
	}
}

func currentAdmin(c *gin.Context) *models.AdminAccount {
	value, ok := c.Get(adminContextKey)
	if !ok {
		return nil
	}
	admin, _ := value.(*models.AdminAccount)
	return admin
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) handleChangePassword(c *gin.Context) {
	admin := currentAdmin(c)
	if admin == nil {
		respondError(c, http.StatusUnauthorized, "Invalid token")
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid payload")
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), admin.ID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, auth.ErrPasswordIncorrect):
		respondError(c, http.StatusBadRequest, "Current password is incorrect")
		return
	case errors.Is(err, auth.ErrPasswordTooWeak):
		respondError(c, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	case err != nil:
		h.fail(c, "change password", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed successfully"})
}

func (h *Handler) handleAdminUsers(c *gin.Context) {
	page, limit := pagination(c)

	users, err := h.userDir.List(c.Request.Context(), page, limit)
	if err != nil {
		h.fail(c, "list users", err)
		return
	}

	total, err := h.userDir.Count(c.Request.Context())
	if err != nil {
		h.fail(c, "count users", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"users":      users,
		"pagination": paginationPayload(page, limit, total),
	})
}

func (h *Handler) handleAdminUserSessions(c *gin.Context) {
	sessions, err := h.sessions.ListAllForUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, "list admin user sessions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
}

func (h *Handler) handleAdminFeedback(c *gin.Context) {
	page, limit := pagination(c)

	entries, err := h.feedbackDir.List(c.Request.Context(), page, limit)
	if err != nil {
		h.fail(c, "list feedback", err)
		return
	}

	total, err := h.feedbackDir.Count(c.Request.Context())
	if err != nil {
		h.fail(c, "count feedback", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"feedback":   entries,
		"pagination": paginationPayload(page, limit, total),
	})
}

type feedbackStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleAdminFeedbackStatus(c *gin.Context) {
	var req feedbackStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid payload")
		return
	}

	feedback, err := h.feedback.UpdateStatus(c.Request.Context(), c.Param("feedbackId"), req.Status)
	switch {
	case errors.Is(err, services.ErrInvalidFeedbackStatus):
		respondError(c, http.StatusBadRequest, "status must be new, reviewed or resolved")
		return
	case errors.Is(err, db.ErrNotFound):
		respondError(c, http.StatusNotFound, "Feedback not found")
		return
	case err != nil:
		h.fail(c, "update feedback status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "feedback": feedback})
}

func (h *Handler) handleAdminDashboard(c *gin.Context) {
	ctx := c.Request.Context()

	totalUsers, err := h.userDir.Count(ctx)
	if err != nil {
		h.fail(c, "dashboard user count", err)
		return
	}
	totalSessions, err := h.sessionCnt.Count(ctx)
	if err != nil {
		h.fail(c, "dashboard session count", err)
		return
	}
	totalFeedback, err := h.feedbackDir.Count(ctx)
	if err != nil {
		h.fail(c, "dashboard feedback count", err)
		return
	}
	activeSessions, err := h.sessionCnt.CountActive(ctx)
	if err != nil {
		h.fail(c, "dashboard active session count", err)
		return
	}
	recentUsers, err := h.userDir.Recent(ctx, 5)
	if err != nil {
		h.fail(c, "dashboard recent users", err)
		return
	}
	recentFeedback, err := h.feedbackDir.Recent(ctx, 5)
	if err != nil {
		h.fail(c, "dashboard recent feedback", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"dashboard": gin.H{
			"stats": gin.H{
				"totalUsers":     totalUsers,
				"totalSessions":  totalSessions,
				"totalFeedback":  totalFeedback,
				"activeSessions": activeSessions,
			},
			"recentUsers":    recentUsers,
			"recentFeedback": recentFeedback,
		},
	})
}

func adminPayload(admin *models.AdminAccount) gin.H {
	return gin.H{
		"id":          admin.ID,
		"username":    admin.Username,
		"email":       admin.Email,
		"role":        admin.Role,
		"lastLoginAt": admin.LastLoginAt,
	}
}

func pagination(c *gin.Context) (page, limit int64) {
	page = defaultPage
	limit = defaultLimit
	if v, err := strconv.ParseInt(c.Query("page"), 10, 64); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.ParseInt(c.Query("limit"), 10, 64); err == nil && v > 0 {
		limit = v
	}
	return page, limit
}

func paginationPayload(page, limit, total int64) gin.H {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return gin.H{"page": page, "limit": limit, "total": total, "pages": pages}
}
