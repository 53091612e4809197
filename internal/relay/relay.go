// Package relay bridges the browser's voice-transport events to the
// session lifecycle manager over a websocket. It owns the server-side
// "current session" reference so the three racing termination signals
// (explicit hang-up, transport disconnect, page unload) converge on exactly
// one finalization per session.
package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aito-ai/voice-agent-backend/internal/db"
	"github.com/aito-ai/voice-agent-backend/internal/models"
	"github.com/aito-ai/voice-agent-backend/internal/services"
	"github.com/aito-ai/voice-agent-backend/internal/utils"
)

// Client -> server event types.
const (
	eventSessionStart = "session.start"
	eventTranscript   = "transcript"
	eventMode         = "mode"
	eventStatus       = "status"
	eventSessionEnd   = "session.end"
)

// Server -> client event types.
const (
	eventSessionStarted = "session.started"
	eventSessionEnded   = "session.ended"
	eventError          = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8 * 1024,
	WriteBufferSize: 8 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type clientEvent struct {
	Type             string                   `json:"type"`
	Role             string                   `json:"role,omitempty"`
	Content          string                   `json:"content,omitempty"`
	Mode             string                   `json:"mode,omitempty"`
	Status           string                   `json:"status,omitempty"`
	ConversationData *models.ConversationData `json:"conversationData,omitempty"`
}

// Relay is the websocket endpoint handler.
type Relay struct {
	identity *services.IdentityService
	sessions *services.SessionService
	logger   *zap.SugaredLogger
}

func NewRelay(identity *services.IdentityService, sessions *services.SessionService, logger *zap.SugaredLogger) *Relay {
	return &Relay{identity: identity, sessions: sessions, logger: logger}
}

// Handle upgrades the connection and runs the event loop for one client.
func (r *Relay) Handle(c *gin.Context) {
	ip := utils.ClientIP(c.Request)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.logger.Warnw("voice stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	sendJSON := func(payload any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(payload); err != nil {
			r.logger.Debugw("voice stream write failed", "error", err)
		}
	}

	ctx := c.Request.Context()

	user, err := r.identity.Resolve(ctx, ip)
	if err != nil {
		r.logger.Errorw("voice stream: resolve user failed", "ip", ip, "error", err)
		sendJSON(gin.H{"type": eventError, "error": "failed to resolve user"})
		return
	}

	register := &sessionRegister{}
	explicitEnd := false

	for {
		var event clientEvent
		if err := conn.ReadJSON(&event); err != nil {
			// Socket gone: transport disconnect or page unload.
			break
		}

		switch event.Type {
		case eventSessionStart:
			session, err := r.sessions.Start(ctx, user.UserID, ip)
			if err != nil {
				r.logger.Errorw("voice stream: start session failed", "userId", user.UserID, "error", err)
				sendJSON(gin.H{"type": eventError, "error": "failed to start session"})
				continue
			}
			register.Set(session)
			sendJSON(gin.H{"type": eventSessionStarted, "sessionId": session.SessionID, "userId": user.UserID})

		case eventTranscript:
			session, ok := register.Current()
			if !ok {
				sendJSON(gin.H{"type": eventError, "error": "no active session"})
				continue
			}
			if err := r.sessions.AppendMessage(ctx, session.SessionID, event.Role, event.Content); err != nil {
				r.logger.Warnw("voice stream: append failed", "sessionId", session.SessionID, "error", err)
			}

		case eventMode, eventStatus:
			// Emitted by the voice platform; consumed for observability only.
			r.logger.Debugw("voice stream event", "type", event.Type, "mode", event.Mode, "status", event.Status)

		case eventSessionEnd:
			ended := r.closeSession(ctx, user.UserID, register, event.ConversationData, true)
			explicitEnd = true
			if ended != nil {
				sendJSON(gin.H{
					"type":      eventSessionEnded,
					"sessionId": ended.SessionID,
					"status":    ended.Status,
					"duration":  ended.Duration,
				})
			}

		default:
			sendJSON(gin.H{"type": eventError, "error": "unknown event type"})
		}
	}

	// Disconnect trigger: whatever the register still holds gets finalized,
	// including a session started after an explicit hang-up on this
	// connection. The fallback is suppressed once a hang-up happened, so it
	// cannot close an unrelated session from another tab.
	r.closeSession(context.WithoutCancel(ctx), user.UserID, register, nil, !explicitEnd)
}

// closeSession finalizes the connection's session exactly once. Whichever
// trigger takes the register wins; with allowFallback set, a trigger that
// finds the slot empty falls back to the most recent active session for the
// user (covering a reference lost to a page reload before the disconnect
// arrived) and never creates a new one.
func (r *Relay) closeSession(ctx context.Context, userID string, register *sessionRegister, data *models.ConversationData, allowFallback bool) *models.ConversationSession {
	session, ok := register.Take()
	if !ok {
		if !allowFallback {
			return nil
		}
		fallback, err := r.sessions.MostRecentActive(ctx, userID)
		if err != nil {
			if !isNotFound(err) {
				r.logger.Warnw("voice stream: fallback lookup failed", "userId", userID, "error", err)
			}
			return nil
		}
		session = fallback
		r.logger.Infow("voice stream: closing via fallback", "userId", userID, "sessionId", session.SessionID)
	}

	finalized, err := r.sessions.Finalize(ctx, session.SessionID, data)
	if err != nil {
		r.logger.Errorw("voice stream: finalize failed", "sessionId", session.SessionID, "error", err)
		return nil
	}
	return finalized
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}
