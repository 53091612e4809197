package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aito-ai/voice-agent-backend/internal/models"
	"github.com/aito-ai/voice-agent-backend/internal/testutil"
	"github.com/aito-ai/voice-agent-backend/internal/utils"
)

func newTestService(t *testing.T) (*Service, *testutil.MemAdmins) {
	t.Helper()
	store := testutil.NewMemAdmins()
	svc, err := NewService("test-secret", time.Hour, store, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func seedAdmin(t *testing.T, store *testutil.MemAdmins, username, password string, active bool) *models.AdminAccount {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin := &models.AdminAccount{
		ID:           "admin-" + username,
		Username:     username,
		PasswordHash: string(hash),
		Email:        username + "@example.com",
		Role:         models.RoleSuperAdmin,
		IsActive:     active,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.Insert(context.Background(), admin); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return admin
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedAdmin(t, store, "admin", "sup3rsecret", true)

	result, err := svc.Login(ctx, "admin", "sup3rsecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatalf("expected a token")
	}
	if result.Admin.LastLoginAt == nil {
		t.Fatalf("successful login must record lastLoginAt")
	}

	admin, err := svc.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if admin.Username != "admin" {
		t.Fatalf("token must resolve to the issuing account, got %q", admin.Username)
	}
}

func TestLoginWrongPasswordLeavesNoTrace(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seeded := seedAdmin(t, store, "admin", "sup3rsecret", true)

	_, err := svc.Login(ctx, "admin", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	after, _ := store.FindByID(ctx, seeded.ID)
	if after.LastLoginAt != nil {
		t.Fatalf("failed login must not touch lastLoginAt")
	}
}

func TestLoginUnknownOrInactive(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedAdmin(t, store, "retired", "sup3rsecret", false)

	if _, err := svc.Login(ctx, "nobody", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown account: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "retired", "sup3rsecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("inactive account: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateRejectsGarbageAndDeactivated(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seeded := seedAdmin(t, store, "admin", "sup3rsecret", true)

	if _, err := svc.Authenticate(ctx, "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	result, err := svc.Login(ctx, "admin", "sup3rsecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Deactivation takes effect on the next validation, not token expiry.
	store.SetActive(seeded.ID, false)

	if _, err := svc.Authenticate(ctx, result.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("deactivated account must fail validation, got %v", err)
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedAdmin(t, store, "admin", "sup3rsecret", true)

	svc.now = func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) }
	result, err := svc.Login(ctx, "admin", "sup3rsecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.now = func() time.Time { return time.Now().UTC() }
	if _, err := svc.Authenticate(ctx, result.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token must be rejected, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seeded := seedAdmin(t, store, "admin", "oldpassword", true)

	if err := svc.ChangePassword(ctx, seeded.ID, "wrong", "newpassword"); !errors.Is(err, ErrPasswordIncorrect) {
		t.Fatalf("expected ErrPasswordIncorrect, got %v", err)
	}
	if err := svc.ChangePassword(ctx, seeded.ID, "oldpassword", "123"); !errors.Is(err, ErrPasswordTooWeak) {
		t.Fatalf("expected ErrPasswordTooWeak, got %v", err)
	}

	if err := svc.ChangePassword(ctx, seeded.ID, "oldpassword", "newpassword"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := svc.Login(ctx, "admin", "oldpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working")
	}
	if _, err := svc.Login(ctx, "admin", "newpassword"); err != nil {
		t.Fatalf("new password must work: %v", err)
	}
}

func TestEnsureSeedAdmin(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	cfg := utils.AdminSeedConfig{Username: "admin", Password: "bootstrap", Email: "ops@example.com"}
	if err := svc.EnsureSeedAdmin(ctx, cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}

	seeded, err := store.FindByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("seeded admin missing: %v", err)
	}
	if seeded.Role != models.RoleSuperAdmin || !seeded.IsActive {
		t.Fatalf("seed admin must be an active super_admin")
	}

	// Second boot is a no-op.
	if err := svc.EnsureSeedAdmin(ctx, cfg); err != nil {
		t.Fatalf("repeat seed: %v", err)
	}
	if count := store.Len(); count != 1 {
		t.Fatalf("expected a single seeded account, got %d", count)
	}
}
