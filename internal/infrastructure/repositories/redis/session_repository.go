package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const sessionTTL = 7 * 24 * time.Hour

// RedisSessionRepository stores call start/end telemetry shared across
// relay nodes.
type RedisSessionRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionRepository(client *redis.Client) ports.SessionRepository {
	return &RedisSessionRepository{
		client: client,
		prefix: "telecall:session:",
	}
}

func (r *RedisSessionRepository) key(id domain.SessionID) string {
	return r.prefix + string(id)
}

func (r *RedisSessionRepository) Upsert(ctx context.Context, rec *domain.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	if err := r.client.Set(ctx, r.key(rec.SessionID), data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to set session record in Redis: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) Get(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error) {
	data, err := r.client.Get(ctx, r.key(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session record from Redis: %w", err)
	}

	var rec domain.SessionRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &rec, nil
}

func (r *RedisSessionRepository) MarkStarted(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error) {
	return r.update(ctx, id, func(rec *domain.SessionRecord) {
		if rec.StartedAt.IsZero() {
			rec.StartedAt = time.Now()
		}
	})
}

func (r *RedisSessionRepository) MarkEnded(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error) {
	return r.update(ctx, id, func(rec *domain.SessionRecord) {
		if rec.EndedAt.IsZero() {
			rec.EndedAt = time.Now()
		}
		if !rec.StartedAt.IsZero() && rec.EndedAt.After(rec.StartedAt) {
			rec.DurationMinutes = int(rec.EndedAt.Sub(rec.StartedAt).Minutes())
		}
	})
}

func (r *RedisSessionRepository) update(ctx context.Context, id domain.SessionID, mutate func(*domain.SessionRecord)) (*domain.SessionRecord, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	mutate(rec)
	if err := r.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
