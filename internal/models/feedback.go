package models

import "time"

// Feedback status values, mutated by admins only.
const (
	FeedbackNew      = "new"
	FeedbackReviewed = "reviewed"
	FeedbackResolved = "resolved"
)

// ValidFeedbackStatus reports whether status is one of the known values.
func ValidFeedbackStatus(status string) bool {
	switch status {
	case FeedbackNew, FeedbackReviewed, FeedbackResolved:
		return true
	}
	return false
}

// Feedback is one free-text submission. Immutable except for Status.
type Feedback struct {
	FeedbackID  string    `bson:"feedbackId" json:"feedbackId"`
	Name        string    `bson:"name,omitempty" json:"name,omitempty"`
	Email       string    `bson:"email,omitempty" json:"email,omitempty"`
	Message     string    `bson:"message" json:"message"`
	Rating      int       `bson:"rating,omitempty" json:"rating,omitempty"`
	Category    string    `bson:"category,omitempty" json:"category,omitempty"`
	IPAddress   string    `bson:"ipAddress" json:"ipAddress"`
	UserAgent   string    `bson:"userAgent" json:"userAgent"`
	SubmittedAt time.Time `bson:"submittedAt" json:"submittedAt"`
	Status      string    `bson:"status" json:"status"`
}
