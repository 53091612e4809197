package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aito-ai/voice-agent-backend/internal/utils"
)

// Postgres holds the relational pool backing admin accounts.
type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, cfg utils.PostgresConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.BuildDSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() {
	if p == nil || p.Pool == nil {
		return
	}
	p.Pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("postgres: pool not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.Pool.Ping(ctx)
}

// EnsureSchema creates the admin_accounts table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("postgres: pool not initialised")
	}

	stmt := strings.Join([]string{
		"CREATE TABLE IF NOT EXISTS admin_accounts (",
		"    id TEXT PRIMARY KEY,",
		"    username TEXT NOT NULL UNIQUE,",
		"    password_hash TEXT NOT NULL,",
		"    email TEXT NOT NULL,",
		"    role TEXT NOT NULL DEFAULT 'admin',",
		"    is_active BOOLEAN NOT NULL DEFAULT TRUE,",
		"    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),",
		"    last_login_at TIMESTAMPTZ",
		")",
	}, "\n")

	if _, err := p.Pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}

	return nil
}
