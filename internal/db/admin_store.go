package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aito-ai/voice-agent-backend/internal/models"
)

// AdminStore is the Postgres-backed admin account access layer.
type AdminStore struct {
	pg *Postgres
}

func NewAdminStore(pg *Postgres) *AdminStore {
	return &AdminStore{pg: pg}
}

const adminColumns = "id, username, password_hash, email, role, is_active, created_at, last_login_at"

func (s *AdminStore) FindByUsername(ctx context.Context, username string) (*models.AdminAccount, error) {
	query := "SELECT " + adminColumns + " FROM admin_accounts WHERE username = $1"
	return s.scanOne(s.pg.Pool.QueryRow(ctx, query, username))
}

func (s *AdminStore) FindByID(ctx context.Context, id string) (*models.AdminAccount, error) {
	query := "SELECT " + adminColumns + " FROM admin_accounts WHERE id = $1"
	return s.scanOne(s.pg.Pool.QueryRow(ctx, query, id))
}

func (s *AdminStore) Insert(ctx context.Context, admin *models.AdminAccount) error {
	query := `INSERT INTO admin_accounts (id, username, password_hash, email, role, is_active, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pg.Pool.Exec(ctx, query,
		admin.ID, admin.Username, admin.PasswordHash, admin.Email,
		admin.Role, admin.IsActive, admin.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("admins: insert: %w", err)
	}
	return nil
}

func (s *AdminStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, "UPDATE admin_accounts SET last_login_at = $2 WHERE id = $1", id, at)
}

func (s *AdminStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.exec(ctx, "UPDATE admin_accounts SET password_hash = $2 WHERE id = $1", id, passwordHash)
}

func (s *AdminStore) exec(ctx context.Context, query string, args ...any) error {
	tag, err := s.pg.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("admins: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *AdminStore) scanOne(row pgx.Row) (*models.AdminAccount, error) {
	var admin models.AdminAccount
	err := row.Scan(
		&admin.ID, &admin.Username, &admin.PasswordHash, &admin.Email,
		&admin.Role, &admin.IsActive, &admin.CreatedAt, &admin.LastLoginAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("admins: scan: %w", err)
	}
	return &admin, nil
}
