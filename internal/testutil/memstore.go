// Package testutil provides in-memory store implementations backing the
// service, handler and relay tests. They mirror the semantics of the Mongo
// and Postgres stores in internal/db, including db.ErrNotFound on unknown
// keys.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aito-ai/voice-agent-backend/internal/db"
	"github.com/aito-ai/voice-agent-backend/internal/models"
)

// MemUsers is an in-memory UserStore and admin UserDirectory.
type MemUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMemUsers() *MemUsers {
	return &MemUsers{users: map[string]*models.User{}}
}

func (m *MemUsers) FindByAddress(_ context.Context, ipAddress string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.IPAddress == ipAddress {
			copied := *u
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *MemUsers) FindByID(_ context.Context, userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *MemUsers) Insert(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *user
	m.users[user.UserID] = &copied
	return nil
}

func (m *MemUsers) TouchActivity(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.LastActiveAt = at
	return nil
}

func (m *MemUsers) Rename(_ context.Context, userID, username string, at time.Time) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	u.Username = username
	u.LastActiveAt = at
	copied := *u
	return &copied, nil
}

func (m *MemUsers) RecordSessionStart(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.TotalSessions++
	u.LastActiveAt = at
	return nil
}

func (m *MemUsers) List(_ context.Context, page, limit int64) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page, limit), nil
}

func (m *MemUsers) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *MemUsers) Recent(ctx context.Context, n int64) ([]models.User, error) {
	return m.List(ctx, 1, n)
}

// MemSessions is an in-memory SessionStore and admin SessionCounts.
type MemSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.ConversationSession
}

func NewMemSessions() *MemSessions {
	return &MemSessions{sessions: map[string]*models.ConversationSession{}}
}

func (m *MemSessions) Insert(_ context.Context, session *models.ConversationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.SessionID] = &copied
	return nil
}

func (m *MemSessions) FindByID(_ context.Context, sessionID string) (*models.ConversationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *MemSessions) AppendMessage(_ context.Context, sessionID string, msg models.Message) (*models.ConversationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, db.ErrNotFound
	}
	s.ConversationData.Messages = append(s.ConversationData.Messages, msg)
	copied := *s
	return &copied, nil
}

func (m *MemSessions) SaveFinal(_ context.Context, session *models.ConversationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[session.SessionID]
	if !ok {
		return db.ErrNotFound
	}
	s.EndTime = session.EndTime
	s.Duration = session.Duration
	s.Status = session.Status
	s.ConversationData = session.ConversationData
	return nil
}

func (m *MemSessions) ListByUser(_ context.Context, userID string, limit int64) ([]models.ConversationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ConversationSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemSessions) FindMostRecentActive(ctx context.Context, userID string) (*models.ConversationSession, error) {
	all, _ := m.ListByUser(ctx, userID, 0)
	for i := range all {
		if all[i].Status == models.SessionActive {
			return &all[i], nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *MemSessions) ListStaleActive(_ context.Context, cutoff time.Time) ([]models.ConversationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ConversationSession
	for _, s := range m.sessions {
		if s.Status == models.SessionActive && s.StartTime.Before(cutoff) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *MemSessions) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sessions)), nil
}

func (m *MemSessions) CountActive(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.Status == models.SessionActive {
			n++
		}
	}
	return n, nil
}

// MemFeedback is an in-memory FeedbackStore and admin FeedbackDirectory.
type MemFeedback struct {
	mu      sync.Mutex
	entries map[string]*models.Feedback
}

func NewMemFeedback() *MemFeedback {
	return &MemFeedback{entries: map[string]*models.Feedback{}}
}

func (m *MemFeedback) Insert(_ context.Context, feedback *models.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *feedback
	m.entries[feedback.FeedbackID] = &copied
	return nil
}

func (m *MemFeedback) UpdateStatus(_ context.Context, feedbackID, status string) (*models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.entries[feedbackID]
	if !ok {
		return nil, db.ErrNotFound
	}
	f.Status = status
	copied := *f
	return &copied, nil
}

func (m *MemFeedback) List(_ context.Context, page, limit int64) ([]models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]models.Feedback, 0, len(m.entries))
	for _, f := range m.entries {
		all = append(all, *f)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SubmittedAt.After(all[j].SubmittedAt) })
	return paginate(all, page, limit), nil
}

func (m *MemFeedback) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

func (m *MemFeedback) Recent(ctx context.Context, n int64) ([]models.Feedback, error) {
	return m.List(ctx, 1, n)
}

// MemAdmins is an in-memory auth.AdminStore.
type MemAdmins struct {
	mu     sync.Mutex
	admins map[string]*models.AdminAccount
}

func NewMemAdmins() *MemAdmins {
	return &MemAdmins{admins: map[string]*models.AdminAccount{}}
}

func (m *MemAdmins) FindByUsername(_ context.Context, username string) (*models.AdminAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if a.Username == username {
			copied := *a
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *MemAdmins) FindByID(_ context.Context, id string) (*models.AdminAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *MemAdmins) Insert(_ context.Context, admin *models.AdminAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *admin
	m.admins[admin.ID] = &copied
	return nil
}

func (m *MemAdmins) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return db.ErrNotFound
	}
	a.LastLoginAt = &at
	return nil
}

func (m *MemAdmins) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return db.ErrNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

// SetActive flips the account's active flag; test hook for deactivation.
func (m *MemAdmins) SetActive(id string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.admins[id]; ok {
		a.IsActive = active
	}
}

// Len reports the number of stored accounts.
func (m *MemAdmins) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.admins)
}

func paginate[T any](all []T, page, limit int64) []T {
	if limit <= 0 {
		return all
	}
	start := (page - 1) * limit
	if start >= int64(len(all)) {
		return []T{}
	}
	end := start + limit
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	return all[start:end]
}
