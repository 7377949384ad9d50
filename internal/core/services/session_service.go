package services

import (
	"context"
	"errors"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/pkg/utils"

	"go.uber.org/zap"
)

// SessionService owns the room lifecycle on the relay side: one room
// per booked session, created lazily and reused on repeated requests
// so both participants land in the same room.
type SessionService interface {
	EnsureRoom(ctx context.Context, sessionID domain.SessionID, sessionType string) (*domain.Room, error)
	StartCall(ctx context.Context, sessionID domain.SessionID) (*domain.SessionRecord, error)
	EndCall(ctx context.Context, sessionID domain.SessionID) (*domain.SessionRecord, error)
	GetSession(ctx context.Context, sessionID domain.SessionID) (*domain.SessionRecord, error)
}

type sessionService struct {
	rooms    ports.RoomRepository
	sessions ports.SessionRepository
	logger   *zap.SugaredLogger
}

func NewSessionService(rooms ports.RoomRepository, sessions ports.SessionRepository, logger *zap.SugaredLogger) SessionService {
	return &sessionService{
		rooms:    rooms,
		sessions: sessions,
		logger:   logger,
	}
}

func (s *sessionService) EnsureRoom(ctx context.Context, sessionID domain.SessionID, sessionType string) (*domain.Room, error) {
	if existing, err := s.rooms.GetBySession(ctx, sessionID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrRoomNotFound) {
		return nil, err
	}

	room := &domain.Room{
		ID:          domain.RoomID(utils.GenerateRoomID()),
		SessionID:   sessionID,
		SessionType: sessionType,
		CreatedAt:   time.Now(),
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		// Lost a race with the other participant's request.
		if existing, getErr := s.rooms.GetBySession(ctx, sessionID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}

	if err := s.sessions.Upsert(ctx, &domain.SessionRecord{
		SessionID:   sessionID,
		RoomID:      room.ID,
		SessionType: sessionType,
	}); err != nil {
		s.logger.Warnw("failed to record session", "session_id", sessionID, "error", err)
	}

	s.logger.Infow("room created", "room_id", room.ID, "session_id", sessionID, "session_type", sessionType)
	return room, nil
}

func (s *sessionService) StartCall(ctx context.Context, sessionID domain.SessionID) (*domain.SessionRecord, error) {
	rec, err := s.sessions.MarkStarted(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("call started", "session_id", sessionID, "room_id", rec.RoomID)
	return rec, nil
}

func (s *sessionService) EndCall(ctx context.Context, sessionID domain.SessionID) (*domain.SessionRecord, error) {
	rec, err := s.sessions.MarkEnded(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// The room is single-use; drop it so a stale id cannot be rejoined.
	if rec.RoomID != "" {
		if err := s.rooms.Delete(ctx, rec.RoomID); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
			s.logger.Warnw("failed to delete room after call end", "room_id", rec.RoomID, "error", err)
		}
	}

	s.logger.Infow("call ended",
		"session_id", sessionID,
		"room_id", rec.RoomID,
		"duration_minutes", rec.DurationMinutes,
	)
	return rec, nil
}

func (s *sessionService) GetSession(ctx context.Context, sessionID domain.SessionID) (*domain.SessionRecord, error) {
	return s.sessions.Get(ctx, sessionID)
}
