package domain

import "time"

type SessionID string
type RoomID string
type ParticipantID string

// Role is determined by join order, not by user type: the side that finds
// an existing participant in the room initiates the offer.
type Role string

const (
	RoleUnassigned Role = ""
	RoleInitiator  Role = "initiator"
	RoleReceiver   Role = "receiver"
)

type CallStatus string

const (
	StatusIdle           CallStatus = "idle"
	StatusAcquiringMedia CallStatus = "acquiring_media"
	StatusAwaitingRoom   CallStatus = "awaiting_room"
	StatusWaitingForPeer CallStatus = "waiting_for_peer"
	StatusNegotiating    CallStatus = "negotiating"
	StatusConnected      CallStatus = "connected"
	StatusDegraded       CallStatus = "degraded"
	StatusReconnecting   CallStatus = "reconnecting"
	StatusDisconnected   CallStatus = "disconnected"
	StatusEnded          CallStatus = "ended"
	StatusFailed         CallStatus = "failed"
)

// Terminal reports whether no further transition may leave the status.
func (s CallStatus) Terminal() bool {
	return s == StatusEnded || s == StatusFailed
}

// Live reports whether media is expected to be flowing.
func (s CallStatus) Live() bool {
	return s == StatusConnected || s == StatusDegraded
}

// CallSession is one attempt to connect two parties for a scheduled
// appointment. All mutation happens on the orchestrator's event loop.
type CallSession struct {
	SessionID     SessionID
	RoomID        RoomID
	ParticipantID ParticipantID
	PeerID        ParticipantID
	Role          Role
	Status        CallStatus
	Profile       MediaProfile
	StartedAt     time.Time
	EndedAt       time.Time
	Attempt       ReconnectionAttempt
}

// DurationMinutes is the reported call length, floor-rounded to whole
// minutes and never negative.
func (c *CallSession) DurationMinutes() int {
	if c.StartedAt.IsZero() || c.EndedAt.Before(c.StartedAt) {
		return 0
	}
	return int(c.EndedAt.Sub(c.StartedAt).Minutes())
}

// validTransitions encodes the call lifecycle state machine. A transition
// absent from this table is rejected by the orchestrator.
var validTransitions = map[CallStatus][]CallStatus{
	StatusIdle:           {StatusAcquiringMedia, StatusEnded},
	StatusAcquiringMedia: {StatusAwaitingRoom, StatusFailed, StatusEnded},
	StatusAwaitingRoom:   {StatusWaitingForPeer, StatusNegotiating, StatusFailed, StatusEnded},
	StatusWaitingForPeer: {StatusNegotiating, StatusFailed, StatusEnded},
	StatusNegotiating:    {StatusConnected, StatusReconnecting, StatusFailed, StatusEnded},
	StatusConnected:      {StatusDegraded, StatusReconnecting, StatusEnded, StatusFailed},
	StatusDegraded:       {StatusConnected, StatusReconnecting, StatusEnded, StatusFailed},
	StatusReconnecting:   {StatusNegotiating, StatusFailed, StatusEnded},
	StatusDisconnected:   {StatusReconnecting, StatusEnded, StatusFailed},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to CallStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
