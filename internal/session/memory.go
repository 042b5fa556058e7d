package session

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps sessions in process memory. Used for single-node
// deployments and tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Record)}
}

func (b *MemoryBackend) Get(_ context.Context, sessionID string) (*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.records[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (b *MemoryBackend) Put(_ context.Context, rec *Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records[rec.SessionID] = *rec
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.records, sessionID)
	return nil
}

func (b *MemoryBackend) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int64
	for id, rec := range b.records {
		if rec.RefreshExpiresAt.Before(before) {
			delete(b.records, id)
			n++
		}
	}
	return n, nil
}
