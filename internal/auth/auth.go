package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aito-ai/voice-agent-backend/internal/db"
	"github.com/aito-ai/voice-agent-backend/internal/models"
	"github.com/aito-ai/voice-agent-backend/internal/utils"
)

var (
	ErrSecretRequired     = errors.New("auth: jwt secret required")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrPasswordIncorrect  = errors.New("auth: current password is incorrect")
	ErrPasswordTooWeak    = errors.New("auth: password must be at least 6 characters")
)

// AdminStore is the account persistence the service needs; implemented by
// db.AdminStore over Postgres.
type AdminStore interface {
	FindByUsername(ctx context.Context, username string) (*models.AdminAccount, error)
	FindByID(ctx context.Context, id string) (*models.AdminAccount, error)
	Insert(ctx context.Context, admin *models.AdminAccount) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// AdminClaims carries admin identity and role inside the bearer token.
type AdminClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// LoginResult bundles the issued token with the authenticated account.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Admin     *models.AdminAccount
}

// Service issues and validates admin bearer credentials. Tokens are HS256
// with a 24h default validity window; every validation re-resolves the
// account so deactivation takes effect immediately.
type Service struct {
	secret []byte
	ttl    time.Duration
	admins AdminStore
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(secret string, ttl time.Duration, admins AdminStore, logger *zap.SugaredLogger) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		admins: admins,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Login verifies credentials against the stored bcrypt hash. Unknown,
// inactive and wrong-password accounts are indistinguishable to the caller.
// The login timestamp is only written after the password verifies.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	admin, err := s.admins.FindByUsername(ctx, username)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: lookup admin: %w", err)
	}
	if !admin.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.admins.UpdateLastLogin(ctx, admin.ID, now); err != nil {
		return nil, fmt.Errorf("auth: update last login: %w", err)
	}
	admin.LastLoginAt = &now

	token, expiresAt, err := s.generateToken(admin)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("admin login", "username", admin.Username)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Admin: admin}, nil
}

// ChangePassword replaces the hash after verifying the current password.
func (s *Service) ChangePassword(ctx context.Context, adminID, currentPassword, newPassword string) error {
	if len(strings.TrimSpace(newPassword)) < 6 {
		return ErrPasswordTooWeak
	}

	admin, err := s.admins.FindByID(ctx, adminID)
	if err != nil {
		return fmt.Errorf("auth: lookup admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrPasswordIncorrect
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}

	if err := s.admins.UpdatePassword(ctx, adminID, string(hash)); err != nil {
		return fmt.Errorf("auth: update password: %w", err)
	}

	s.logger.Infow("admin password changed", "username", admin.Username)
	return nil
}

// Authenticate parses and verifies a bearer token, then re-resolves the
// account and requires it to still be active.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.AdminAccount, error) {
	parsed, err := jwt.ParseWithClaims(token, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*AdminClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	admin, err := s.admins.FindByID(ctx, claims.Subject)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("auth: resolve admin: %w", err)
	}
	if !admin.IsActive {
		return nil, ErrInvalidToken
	}

	return admin, nil
}

// EnsureSeedAdmin provisions the operator account once at process start if
// the configured username does not exist yet.
func (s *Service) EnsureSeedAdmin(ctx context.Context, cfg utils.AdminSeedConfig) error {
	_, err := s.admins.FindByUsername(ctx, cfg.Username)
	if err == nil {
		s.logger.Debugw("seed admin already present", "username", cfg.Username)
		return nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("auth: check seed admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash seed password: %w", err)
	}

	admin := &models.AdminAccount{
		ID:           uuid.NewString(),
		Username:     cfg.Username,
		PasswordHash: string(hash),
		Email:        cfg.Email,
		Role:         models.RoleSuperAdmin,
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	if err := s.admins.Insert(ctx, admin); err != nil {
		return fmt.Errorf("auth: seed admin: %w", err)
	}

	s.logger.Infow("seed admin created", "username", cfg.Username)
	return nil
}

func (s *Service) generateToken(admin *models.AdminAccount) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := AdminClaims{
		Username: admin.Username,
		Role:     admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}

	return signed, expiresAt, nil
}
