package memory

import (
	"context"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
)

type MemorySessionRepository struct {
	sessions map[domain.SessionID]*domain.SessionRecord
	mu       sync.RWMutex
}

func NewMemorySessionRepository() ports.SessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[domain.SessionID]*domain.SessionRecord),
	}
}

func (r *MemorySessionRepository) Upsert(ctx context.Context, rec *domain.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *rec
	r.sessions[rec.SessionID] = &clone
	return nil
}

func (r *MemorySessionRepository) Get(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	clone := *rec
	return &clone, nil
}

func (r *MemorySessionRepository) MarkStarted(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	clone := *rec
	return &clone, nil
}

func (r *MemorySessionRepository) MarkEnded(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now()
	}
	if !rec.StartedAt.IsZero() && rec.EndedAt.After(rec.StartedAt) {
		rec.DurationMinutes = int(rec.EndedAt.Sub(rec.StartedAt).Minutes())
	}
	clone := *rec
	return &clone, nil
}
