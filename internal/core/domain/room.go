package domain

import "time"

// Room is the relay-side view of one call's signaling scope. A room never
// holds more than two participants (mesh-of-two).
type Room struct {
	ID           RoomID
	SessionID    SessionID
	SessionType  string
	Participants []ParticipantID
	CreatedAt    time.Time
}

const MaxRoomParticipants = 2

// HasParticipant reports whether p is a current member.
func (r *Room) HasParticipant(p ParticipantID) bool {
	for _, member := range r.Participants {
		if member == p {
			return true
		}
	}
	return false
}

// OtherParticipant returns the member that is not p, if any.
func (r *Room) OtherParticipant(p ParticipantID) (ParticipantID, bool) {
	for _, member := range r.Participants {
		if member != p {
			return member, true
		}
	}
	return "", false
}

// SessionRecord is the booking-side record the relay updates with call
// start/end telemetry.
type SessionRecord struct {
	SessionID       SessionID
	RoomID          RoomID
	SessionType     string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationMinutes int
}
