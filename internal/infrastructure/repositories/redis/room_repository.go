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

// roomTTL bounds how long a stale room may linger after a relay crash.
const roomTTL = 24 * time.Hour

// RedisRoomRepository shares room membership between relay nodes.
type RedisRoomRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRoomRepository(client *redis.Client) ports.RoomRepository {
	return &RedisRoomRepository{
		client: client,
		prefix: "telecall:room:",
	}
}

func (r *RedisRoomRepository) roomKey(id domain.RoomID) string {
	return r.prefix + string(id)
}

func (r *RedisRoomRepository) sessionKey(id domain.SessionID) string {
	return fmt.Sprintf("telecall:session-room:%s", id)
}

func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.roomKey(room.ID), data, roomTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to set room in Redis: %w", err)
	}
	if !ok {
		return fmt.Errorf("room already exists: %s", room.ID)
	}

	if room.SessionID != "" {
		if err := r.client.Set(ctx, r.sessionKey(room.SessionID), string(room.ID), roomTTL).Err(); err != nil {
			return fmt.Errorf("failed to index room by session: %w", err)
		}
	}
	return nil
}

func (r *RedisRoomRepository) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	data, err := r.client.Get(ctx, r.roomKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room from Redis: %w", err)
	}

	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &room, nil
}

func (r *RedisRoomRepository) GetBySession(ctx context.Context, sessionID domain.SessionID) (*domain.Room, error) {
	roomID, err := r.client.Get(ctx, r.sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session room: %w", err)
	}
	return r.Get(ctx, domain.RoomID(roomID))
}

// AddParticipant runs as an optimistic transaction so two relay nodes
// admitting participants concurrently cannot overfill the room.
func (r *RedisRoomRepository) AddParticipant(ctx context.Context, id domain.RoomID, p domain.ParticipantID) (*domain.Room, error) {
	key := r.roomKey(id)
	var before *domain.Room

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return domain.ErrRoomNotFound
		}
		if err != nil {
			return err
		}

		var room domain.Room
		if err := json.Unmarshal([]byte(data), &room); err != nil {
			return fmt.Errorf("failed to unmarshal room: %w", err)
		}
		if room.HasParticipant(p) {
			before = &room
			return nil
		}
		if len(room.Participants) >= domain.MaxRoomParticipants {
			return domain.ErrRoomFull
		}

		snapshot := room
		snapshot.Participants = append([]domain.ParticipantID(nil), room.Participants...)
		before = &snapshot

		room.Participants = append(room.Participants, p)
		updated, err := json.Marshal(&room)
		if err != nil {
			return fmt.Errorf("failed to marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, roomTTL)
			return nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		err := r.client.Watch(ctx, txn, key)
		if err == nil {
			return before, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("failed to admit participant after contention retries")
}

func (r *RedisRoomRepository) RemoveParticipant(ctx context.Context, id domain.RoomID, p domain.ParticipantID) error {
	key := r.roomKey(id)

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return domain.ErrRoomNotFound
		}
		if err != nil {
			return err
		}

		var room domain.Room
		if err := json.Unmarshal([]byte(data), &room); err != nil {
			return fmt.Errorf("failed to unmarshal room: %w", err)
		}

		members := room.Participants[:0]
		for _, member := range room.Participants {
			if member != p {
				members = append(members, member)
			}
		}
		room.Participants = members

		updated, err := json.Marshal(&room)
		if err != nil {
			return fmt.Errorf("failed to marshal room: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, roomTTL)
			return nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		err := r.client.Watch(ctx, txn, key)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("failed to remove participant after contention retries")
}

func (r *RedisRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	room, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if room.SessionID != "" {
		if err := r.client.Del(ctx, r.sessionKey(room.SessionID)).Err(); err != nil {
			return fmt.Errorf("failed to delete session index: %w", err)
		}
	}
	if err := r.client.Del(ctx, r.roomKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete room from Redis: %w", err)
	}
	return nil
}
