package models

import "time"

// Session status values. Status only moves forward: active is the sole
// non-terminal state, completed and abandoned are absorbing.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionAbandoned = "abandoned"
)

// Message roles as tagged by the voice transport.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged transcript entry.
type Message struct {
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// ConversationData holds the transcript plus optional derived metadata.
// The session exclusively owns it; messages are append-only while the
// session is active, and a client-supplied copy replaces the whole thing
// at finalization (last write wins).
type ConversationData struct {
	Messages []Message `bson:"messages" json:"messages"`
	Summary  string    `bson:"summary,omitempty" json:"summary,omitempty"`
	Topics   []string  `bson:"topics,omitempty" json:"topics,omitempty"`
}

// ConversationSession is one continuous voice interaction, bounded by
// Start and a single finalization. EndTime and Duration are set together,
// exactly once, when the session leaves the active state.
type ConversationSession struct {
	SessionID        string           `bson:"sessionId" json:"sessionId"`
	UserID           string           `bson:"userId" json:"userId"`
	StartTime        time.Time        `bson:"startTime" json:"startTime"`
	EndTime          *time.Time       `bson:"endTime,omitempty" json:"endTime,omitempty"`
	Duration         *int64           `bson:"duration,omitempty" json:"duration,omitempty"`
	IPAddress        string           `bson:"ipAddress" json:"ipAddress"`
	ConversationData ConversationData `bson:"conversationData" json:"conversationData"`
	Status           string           `bson:"status" json:"status"`
}

// MessageCount reports the stored transcript length.
func (s *ConversationSession) MessageCount() int {
	return len(s.ConversationData.Messages)
}

// Terminal reports whether the session has already been finalized.
func (s *ConversationSession) Terminal() bool {
	return s.Status != SessionActive
}

// SessionSummary is the transcript-free listing shape returned to clients.
type SessionSummary struct {
	SessionID    string     `json:"sessionId"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Duration     *int64     `json:"duration,omitempty"`
	Status       string     `json:"status"`
	MessageCount int        `json:"messageCount"`
}

// Summary strips the transcript down to the listing shape.
func (s *ConversationSession) Summary() SessionSummary {
	return SessionSummary{
		SessionID:    s.SessionID,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Duration:     s.Duration,
		Status:       s.Status,
		MessageCount: s.MessageCount(),
	}
}
