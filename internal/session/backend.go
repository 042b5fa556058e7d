package session

import (
	"context"
	"time"
)

// Record is the persisted form of a session.
type Record struct {
	SessionID        string    `json:"sessionId"`
	Principal        Principal `json:"principal"`
	RemoteToken      string    `json:"remoteToken"`
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshHash      string    `json:"refreshHash"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Backend persists session records. Get returns ErrNotFound for unknown ids;
// Delete of an unknown id is not an error.
type Backend interface {
	Get(ctx context.Context, sessionID string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
