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

func newTestSessionService(t *testing.T) (*SessionService, *testutil.MemUsers, *testutil.MemSessions) {
	t.Helper()
	users := testutil.NewMemUsers()
	sessions := testutil.NewMemSessions()
	logger := zap.NewNop().Sugar()
	identity := NewIdentityService(users, logger)
	svc := NewSessionService(sessions, users, identity, NewNameInference(), logger)
	return svc, users, sessions
}

func seedUser(t *testing.T, users *testutil.MemUsers, username string) *models.User {
	t.Helper()
	user := &models.User{
		UserID:       newID("user"),
		Username:     username,
		IPAddress:    "203.0.113.7",
		CreatedAt:    time.Now().UTC(),
		LastActiveAt: time.Now().UTC(),
	}
	if err := users.Insert(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestStartCreatesActiveSessionAndBumpsCounter(t *testing.T) {
	svc, users, _ := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, models.DefaultUsername)

	first, err := svc.Start(ctx, user.UserID, user.IPAddress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := svc.Start(ctx, user.UserID, user.IPAddress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if first.SessionID == second.SessionID {
		t.Fatalf("session ids must be unique, both were %q", first.SessionID)
	}
	if first.Status != models.SessionActive {
		t.Fatalf("expected active status, got %q", first.Status)
	}
	if first.EndTime != nil || first.Duration != nil {
		t.Fatalf("fresh session must not carry endTime or duration")
	}

	updated, err := users.FindByID(ctx, user.UserID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if updated.TotalSessions != 2 {
		t.Fatalf("expected totalSessions 2, got %d", updated.TotalSessions)
	}
}

func TestFinalizeCompletedWithStoredMessages(t *testing.T) {
	svc, users, _ := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, "Dana")

	session, err := svc.Start(ctx, user.UserID, user.IPAddress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, msg := range []struct{ role, content string }{
		{models.RoleUser, "hello"},
		{models.RoleAssistant, "hi, how can I help?"},
		{models.RoleUser, "what's the weather"},
	} {
		if err := svc.AppendMessage(ctx, session.SessionID, msg.role, msg.content); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	final, err := svc.Finalize(ctx, session.SessionID, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if final.Status != models.SessionCompleted {
		t.Fatalf("expected completed, got %q", final.Status)
	}
	if final.MessageCount() != 3 {
		t.Fatalf("expected transcript length 3, got %d", final.MessageCount())
	}
	if final.EndTime == nil || final.Duration == nil {
		t.Fatalf("endTime and duration must be set together at finalization")
	}
	if *final.Duration < 0 {
		t.Fatalf("duration must be non-negative, got %d", *final.Duration)
	}
}

func TestFinalizeAbandonedWhenNoMessages(t *testing.T) {
	svc, users, _ := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, "Dana")

	session, err := svc.Start(ctx, user.UserID, user.IPAddress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	final, err := svc.Finalize(ctx, session.SessionID, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Status != models.SessionAbandoned {
		t.Fatalf("zero messages must resolve to abandoned, got %q", final.Status)
	}
}

func TestFinalizeClientDataReplacesTranscript(t *testing.T) {
	svc, users, _ := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, "Dana")

	session, err := svc.Start(ctx, user.UserID, user.IPAddress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.AppendMessage(ctx, session.SessionID, models.RoleUser, "partial"); err != nil {
		t.Fatalf("append: %v", err)
	}

	clientData := &models.ConversationData{
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "one", Timestamp: time.Now().UTC()},
			{Role: models.RoleAssistant, Content: "two", Timestamp: time.Now().UTC()},
		},
		Summary: "short call",
	}

	final, err := svc.Finalize(ctx, session.SessionID, clientData)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Status != models.SessionCompleted {
		t.Fatalf("expected completed, got %q", final.Status)
	}
	if final.MessageCount() != 2 {
		t.Fatalf("client data must replace the stored transcript, got %d messages", final.MessageCount())
	}
	if final.ConversationData.Summary != "short call" {
		t.Fatalf("summary not carried over")
	}
}

func TestFinalizeEmptyClientDataWinsOverStoredMessages(t *testing.T) {
	svc, users, _ := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, "Dana")

	session, err := svc.Start(ctx, user.UserID, user.IPAddress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.AppendMessage(ctx, session.SessionID, models.RoleUser, "server side"); err != nil {
		t.Fatalf("append: %v", err)
	}

	final, err := svc.Finalize(ctx, session.SessionID, &models.ConversationData{Messages: []models.Message{}})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Status != models.SessionAbandoned {
		t.Fatalf("effective count from client data is zero, expected abandoned, got %q", final.Status)
	}
}

func TestFinalizeUnknownSession(t *testing.T) {
	svc, _, _ := newTestSessionService(t)

	_, err := svc.Finalize(context.Background(), "session_missing", nil)
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	svc, users, _ := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, "Dana")

	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	session, err := svc.Start(ctx, user.UserID, user.IPAddress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.AppendMessage(ctx, session.SessionID, models.RoleUser, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}

	svc.now = func() time.Time { return base.Add(30 * time.Second) }
	first, err := svc.Finalize(ctx, session.SessionID, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// A later double-end signal must not recompute duration.
	svc.now = func() time.Time { return base.Add(10 * time.Minute) }
	second, err := svc.Finalize(ctx, session.SessionID, nil)
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}

	if *first.Duration != 30 || *second.Duration != 30 {
		t.Fatalf("expected duration 30 on both calls, got %d and %d", *first.Duration, *second.Duration)
	}
	if !second.EndTime.Equal(*first.EndTime) {
		t.Fatalf("second finalize must not move endTime")
	}
	if second.Status != first.Status {
		t.Fatalf("second finalize must not change status")
	}
}

func TestFinalizeDurationFloorsToWholeSeconds(t *testing.T) {
	svc, users, _ := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, "Dana")

	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	session, err := svc.Start(ctx, user.UserID, user.IPAddress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	svc.now = func() time.Time { return base.Add(90*time.Second + 900*time.Millisecond) }
	final, err := svc.Finalize(ctx, session.SessionID, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if *final.Duration != 90 {
		t.Fatalf("expected floored duration 90, got %d", *final.Duration)
	}
}

func TestForceAbandonIgnoresMessageCount(t *testing.T) {
	svc, users, _ := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, "Dana")

	session, err := svc.Start(ctx, user.UserID, user.IPAddress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.AppendMessage(ctx, session.SessionID, models.RoleUser, "still talking"); err != nil {
		t.Fatalf("append: %v", err)
	}

	final, err := svc.ForceAbandon(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("force abandon: %v", err)
	}
	if final.Status != models.SessionAbandoned {
		t.Fatalf("force abandon must mark abandoned regardless of messages, got %q", final.Status)
	}
}

func TestAppendAfterFinalizeIsStillRecorded(t *testing.T) {
	svc, users, _ := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, "Dana")

	session, err := svc.Start(ctx, user.UserID, user.IPAddress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Finalize(ctx, session.SessionID, nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Transcript events may trail the disconnect signal.
	if err := svc.AppendMessage(ctx, session.SessionID, models.RoleAssistant, "goodbye"); err != nil {
		t.Fatalf("late append: %v", err)
	}

	got, err := svc.Get(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MessageCount() != 1 {
		t.Fatalf("late append must be recorded, got %d messages", got.MessageCount())
	}
}

func TestAppendUnknownSession(t *testing.T) {
	svc, _, _ := newTestSessionService(t)

	err := svc.AppendMessage(context.Background(), "session_missing", models.RoleUser, "hello")
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListForUserNewestFirstWithLimit(t *testing.T) {
	svc, users, sessions := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, "Dana")

	base := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		session := &models.ConversationSession{
			SessionID: newID("session"),
			UserID:    user.UserID,
			StartTime: base.Add(time.Duration(i) * time.Hour),
			IPAddress: user.IPAddress,
			Status:    models.SessionActive,
		}
		if err := sessions.Insert(ctx, session); err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, session.SessionID)
	}

	summaries, err := svc.ListForUser(ctx, user.UserID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected limit 2 applied, got %d", len(summaries))
	}
	if summaries[0].SessionID != ids[2] || summaries[1].SessionID != ids[1] {
		t.Fatalf("expected newest-first ordering, got %q then %q", summaries[0].SessionID, summaries[1].SessionID)
	}
}

func TestUserMessageTriggersNameInference(t *testing.T) {
	svc, users, _ := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, models.DefaultUsername)

	session, err := svc.Start(ctx, user.UserID, user.IPAddress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.AppendMessage(ctx, session.SessionID, models.RoleAssistant, "my name is Ava"); err != nil {
		t.Fatalf("append: %v", err)
	}
	unchanged, _ := users.FindByID(ctx, user.UserID)
	if unchanged.Username != models.DefaultUsername {
		t.Fatalf("assistant messages must not drive renames, got %q", unchanged.Username)
	}

	if err := svc.AppendMessage(ctx, session.SessionID, models.RoleUser, "Hi, my name is Alex, nice to meet you"); err != nil {
		t.Fatalf("append: %v", err)
	}
	renamed, _ := users.FindByID(ctx, user.UserID)
	if renamed.Username != "Alex" {
		t.Fatalf("expected inferred rename to Alex, got %q", renamed.Username)
	}

	// A named user is no longer eligible.
	if err := svc.AppendMessage(ctx, session.SessionID, models.RoleUser, "my name is Bob"); err != nil {
		t.Fatalf("append: %v", err)
	}
	still, _ := users.FindByID(ctx, user.UserID)
	if still.Username != "Alex" {
		t.Fatalf("rename must not fire for a non-default username, got %q", still.Username)
	}
}

func TestSweepAbandonsStaleActiveSessions(t *testing.T) {
	svc, users, sessions := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, "Dana")

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	stale := &models.ConversationSession{
		SessionID: newID("session"),
		UserID:    user.UserID,
		StartTime: now.Add(-2 * time.Hour),
		Status:    models.SessionActive,
	}
	fresh := &models.ConversationSession{
		SessionID: newID("session"),
		UserID:    user.UserID,
		StartTime: now.Add(-time.Minute),
		Status:    models.SessionActive,
	}
	for _, s := range []*models.ConversationSession{stale, fresh} {
		if err := sessions.Insert(ctx, s); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	svc.sweepOnce(ctx, 30*time.Minute)

	got, _ := svc.Get(ctx, stale.SessionID)
	if got.Status != models.SessionAbandoned {
		t.Fatalf("stale session must be abandoned, got %q", got.Status)
	}
	kept, _ := svc.Get(ctx, fresh.SessionID)
	if kept.Status != models.SessionActive {
		t.Fatalf("fresh session must stay active, got %q", kept.Status)
	}
}

func TestMostRecentActiveSkipsTerminalSessions(t *testing.T) {
	svc, users, sessions := newTestSessionService(t)
	ctx := context.Background()
	user := seedUser(t, users, "Dana")

	base := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	ended := base.Add(time.Hour)
	done := &models.ConversationSession{
		SessionID: newID("session"),
		UserID:    user.UserID,
		StartTime: base.Add(2 * time.Hour),
		EndTime:   &ended,
		Status:    models.SessionCompleted,
	}
	active := &models.ConversationSession{
		SessionID: newID("session"),
		UserID:    user.UserID,
		StartTime: base,
		Status:    models.SessionActive,
	}
	for _, s := range []*models.ConversationSession{done, active} {
		if err := sessions.Insert(ctx, s); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := svc.MostRecentActive(ctx, user.UserID)
	if err != nil {
		t.Fatalf("most recent active: %v", err)
	}
	if got.SessionID != active.SessionID {
		t.Fatalf("expected the active session, got %q", got.SessionID)
	}
}
