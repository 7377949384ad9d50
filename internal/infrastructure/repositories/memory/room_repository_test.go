package memory

import (
	"context"
	"testing"

	"telecall/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRepository_CapEnforcedAndPreJoinStateReturned(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Room{ID: "room_r1", SessionID: "sess-1"}))

	before, err := repo.AddParticipant(ctx, "room_r1", "pt_a")
	require.NoError(t, err)
	assert.Empty(t, before.Participants)

	before, err = repo.AddParticipant(ctx, "room_r1", "pt_b")
	require.NoError(t, err)
	assert.Equal(t, []domain.ParticipantID{"pt_a"}, before.Participants)

	_, err = repo.AddParticipant(ctx, "room_r1", "pt_c")
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	// Re-adding an existing member is not a second seat.
	before, err = repo.AddParticipant(ctx, "room_r1", "pt_a")
	require.NoError(t, err)
	assert.Len(t, before.Participants, 2)
}

func TestRoomRepository_RemoveFreesSeat(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Room{ID: "room_r1"}))
	_, err := repo.AddParticipant(ctx, "room_r1", "pt_a")
	require.NoError(t, err)
	_, err = repo.AddParticipant(ctx, "room_r1", "pt_b")
	require.NoError(t, err)

	require.NoError(t, repo.RemoveParticipant(ctx, "room_r1", "pt_a"))

	before, err := repo.AddParticipant(ctx, "room_r1", "pt_c")
	require.NoError(t, err)
	assert.Equal(t, []domain.ParticipantID{"pt_b"}, before.Participants)
}

func TestRoomRepository_UnknownRoom(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	_, err := repo.Get(ctx, "room_missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = repo.AddParticipant(ctx, "room_missing", "pt_a")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomRepository_GetBySession(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Room{ID: "room_r1", SessionID: "sess-1"}))
	room, err := repo.GetBySession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("room_r1"), room.ID)

	_, err = repo.GetBySession(ctx, "sess-unknown")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestSessionRepository_MarkLifecycle(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.SessionRecord{SessionID: "sess-1", RoomID: "room_r1"}))

	started, err := repo.MarkStarted(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, started.StartedAt.IsZero())

	ended, err := repo.MarkEnded(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, ended.EndedAt.IsZero())
	assert.GreaterOrEqual(t, ended.DurationMinutes, 0)

	_, err = repo.MarkStarted(ctx, "sess-unknown")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
