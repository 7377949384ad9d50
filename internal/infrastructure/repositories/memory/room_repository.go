package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
)

type MemoryRoomRepository struct {
	rooms map[domain.RoomID]*domain.Room
	mu    sync.RWMutex
}

func NewMemoryRoomRepository() ports.RoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[domain.RoomID]*domain.Room),
	}
}

func (r *MemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.ID]; exists {
		return fmt.Errorf("room already exists: %s", room.ID)
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}

	r.rooms[room.ID] = room
	return nil
}

func (r *MemoryRoomRepository) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[id]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	return copyRoom(room), nil
}

func (r *MemoryRoomRepository) GetBySession(ctx context.Context, sessionID domain.SessionID) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, room := range r.rooms {
		if room.SessionID == sessionID {
			return copyRoom(room), nil
		}
	}

	return nil, domain.ErrRoomNotFound
}

func (r *MemoryRoomRepository) AddParticipant(ctx context.Context, id domain.RoomID, p domain.ParticipantID) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[id]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}
	if room.HasParticipant(p) {
		return copyRoom(room), nil
	}
	if len(room.Participants) >= domain.MaxRoomParticipants {
		return nil, domain.ErrRoomFull
	}

	before := copyRoom(room)
	room.Participants = append(room.Participants, p)
	return before, nil
}

func (r *MemoryRoomRepository) RemoveParticipant(ctx context.Context, id domain.RoomID, p domain.ParticipantID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[id]
	if !exists {
		return domain.ErrRoomNotFound
	}

	members := room.Participants[:0]
	for _, member := range room.Participants {
		if member != p {
			members = append(members, member)
		}
	}
	room.Participants = members
	return nil
}

func (r *MemoryRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[id]; !exists {
		return domain.ErrRoomNotFound
	}

	delete(r.rooms, id)
	return nil
}

func copyRoom(room *domain.Room) *domain.Room {
	clone := *room
	clone.Participants = append([]domain.ParticipantID(nil), room.Participants...)
	return &clone
}
