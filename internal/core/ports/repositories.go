package ports

import (
	"context"

	"telecall/internal/core/domain"
)

// RoomRepository stores relay-side room membership.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	GetBySession(ctx context.Context, sessionID domain.SessionID) (*domain.Room, error)
	// AddParticipant enforces the two-participant cap and returns the
	// room state prior to the join (for existing-participants).
	AddParticipant(ctx context.Context, id domain.RoomID, p domain.ParticipantID) (*domain.Room, error)
	RemoveParticipant(ctx context.Context, id domain.RoomID, p domain.ParticipantID) error
	Delete(ctx context.Context, id domain.RoomID) error
}

// SessionRepository stores call start/end telemetry for bookings.
type SessionRepository interface {
	Upsert(ctx context.Context, rec *domain.SessionRecord) error
	Get(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error)
	MarkStarted(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error)
	MarkEnded(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error)
}
