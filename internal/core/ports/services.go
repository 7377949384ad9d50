package ports

import (
	"context"
	"time"

	"telecall/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

// LocalStream is an acquired capture stream. It is exclusively owned by
// one call session.
type LocalStream interface {
	Constraints() domain.MediaConstraints
	// VideoTrack returns nil for audio-only streams.
	VideoTrack() webrtc.TrackLocal
	AudioTrack() webrtc.TrackLocal
	Close() error
}

// MediaSource obtains local capture at given constraints. Tier fallback
// is the acquisition service's job, not the source's.
type MediaSource interface {
	Acquire(ctx context.Context, constraints domain.MediaConstraints) (LocalStream, error)
}

// SignalingChannel is one participant's connection to the relay. The
// implementation discards inbound handshake messages whose room id does
// not match the joined room, and handles its own bounded transport retry.
type SignalingChannel interface {
	Connect(ctx context.Context) error
	JoinRoom(ctx context.Context, roomID domain.RoomID, sessionID domain.SessionID) error
	SendSignal(ctx context.Context, to domain.ParticipantID, sig domain.Signal) error
	Events() <-chan domain.SignalingEvent
	Close() error
}

// PeerLinkEvents are callbacks fired by a peer link. They may be invoked
// from arbitrary goroutines; the orchestrator funnels them onto its loop.
type PeerLinkEvents struct {
	OnLocalSignal  func(domain.Signal)
	OnRemoteStream func()
	OnClosed       func()
	OnError        func(error)
}

// PeerLink owns one WebRTC peer connection. The underlying connection is
// never exposed for mutation outside the implementation.
type PeerLink interface {
	// StartNegotiation creates and emits the offer. Initiator only.
	StartNegotiation(ctx context.Context) error
	ApplyRemoteSignal(ctx context.Context, sig domain.Signal) error
	// ReplaceVideoTrack swaps the outgoing video track in place, falling
	// back to renegotiation when the transport cannot replace tracks.
	ReplaceVideoTrack(track webrtc.TrackLocal) error
	// Sample takes one quality measurement from the connection.
	Sample(ctx context.Context) (domain.QualitySample, error)
	Close() error
}

type PeerLinkConfig struct {
	Role       domain.Role
	ICEServers []domain.ICEServer
}

// PeerLinkFactory builds a fresh link per negotiation attempt.
type PeerLinkFactory interface {
	New(cfg PeerLinkConfig, stream LocalStream, events PeerLinkEvents) (PeerLink, error)
}

// BookingAPI is the external Booking/Session collaborator. Start/end
// notifications are best-effort telemetry, never a gate.
type BookingAPI interface {
	FetchICEServers(ctx context.Context) ([]domain.ICEServer, error)
	GenerateRoom(ctx context.Context, sessionID domain.SessionID) (domain.RoomID, string, error)
	NotifyCallStarted(ctx context.Context, sessionID domain.SessionID) error
	NotifyCallEnded(ctx context.Context, sessionID domain.SessionID, durationMinutes int) error
}

// CallMetrics receives call lifecycle events. Implementations must be
// safe for concurrent use; recording must never block the call.
type CallMetrics interface {
	RecordCallStarted()
	RecordCallEnded(duration time.Duration)
	RecordReconnectAttempt()
	RecordTierSwitch(direction string)
	RecordQualityLevel(level domain.QualityLevel)
}
