// Package database owns the PostgreSQL connection pool used by the Postgres
// session backend.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"complaintdesk/internal/config"
)

// Service is the database handle handed to the rest of the gateway.
type Service interface {
	GetPool() *pgxpool.Pool
	Health() map[string]string
	Close()
}

type service struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, cfg *config.DBConfig, logger *logrus.Logger) (Service, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log := logger.WithField("component", "database")
	log.WithField("max_conns", poolConfig.MaxConns).Info("database connected")
	return &service{pool: pool, log: log}, nil
}

func (s *service) GetPool() *pgxpool.Pool { return s.pool }

// Health pings the database and reports pool statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats := map[string]string{}
	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		s.log.WithError(err).Warn("database health check failed")
		return stats
	}

	ps := s.pool.Stat()
	stats["status"] = "up"
	stats["total_conns"] = fmt.Sprint(ps.TotalConns())
	stats["idle_conns"] = fmt.Sprint(ps.IdleConns())
	stats["acquired_conns"] = fmt.Sprint(ps.AcquiredConns())
	return stats
}

func (s *service) Close() {
	s.pool.Close()
	s.log.Info("database connection closed")
}

// Execer is the part of a pool EnsureSchema needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                 TEXT PRIMARY KEY,
	principal          JSONB NOT NULL,
	remote_token       TEXT NOT NULL DEFAULT '',
	access_token       TEXT NOT NULL,
	access_expires_at  TIMESTAMPTZ NOT NULL,
	refresh_hash       TEXT NOT NULL,
	refresh_expires_at TIMESTAMPTZ NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const sessionsIndex = `
CREATE INDEX IF NOT EXISTS sessions_refresh_expires_at_idx ON sessions (refresh_expires_at)`

// EnsureSchema creates the sessions table when it does not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	for _, stmt := range []string{sessionsSchema, sessionsIndex} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
