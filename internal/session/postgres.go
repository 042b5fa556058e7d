package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool the Postgres backend needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostgresBackend stores sessions in the sessions table.
type PostgresBackend struct {
	db Querier
}

// NewPostgresBackend creates a backend on top of a pgx pool (or any Querier).
func NewPostgresBackend(db Querier) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) Get(ctx context.Context, sessionID string) (*Record, error) {
	var (
		rec       Record
		principal []byte
	)
	err := b.db.QueryRow(ctx, `
		SELECT id, principal, remote_token, access_token, access_expires_at,
			refresh_hash, refresh_expires_at, created_at
		FROM sessions WHERE id = $1
	`, sessionID).Scan(
		&rec.SessionID, &principal, &rec.RemoteToken, &rec.AccessToken, &rec.AccessExpiresAt,
		&rec.RefreshHash, &rec.RefreshExpiresAt, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	if err := json.Unmarshal(principal, &rec.Principal); err != nil {
		return nil, fmt.Errorf("decode principal: %w", err)
	}
	return &rec, nil
}

func (b *PostgresBackend) Put(ctx context.Context, rec *Record) error {
	principal, err := json.Marshal(rec.Principal)
	if err != nil {
		return fmt.Errorf("encode principal: %w", err)
	}

	_, err = b.db.Exec(ctx, `
		INSERT INTO sessions (
			id, principal, remote_token, access_token, access_expires_at,
			refresh_hash, refresh_expires_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			principal = EXCLUDED.principal,
			remote_token = EXCLUDED.remote_token,
			access_token = EXCLUDED.access_token,
			access_expires_at = EXCLUDED.access_expires_at,
			refresh_hash = EXCLUDED.refresh_hash,
			refresh_expires_at = EXCLUDED.refresh_expires_at
	`, rec.SessionID, principal, rec.RemoteToken, rec.AccessToken, rec.AccessExpiresAt,
		rec.RefreshHash, rec.RefreshExpiresAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, sessionID string) error {
	if _, err := b.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (b *PostgresBackend) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := b.db.Exec(ctx, `DELETE FROM sessions WHERE refresh_expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
