package domain

// SignalingEvent is an inbound event delivered by the signaling channel.
// Events for a room are delivered in arrival order per participant.
type SignalingEvent interface {
	signalingEvent()
}

// JoinSuccess confirms room membership. ParticipantCount includes self.
type JoinSuccess struct {
	SelfID           ParticipantID
	ParticipantCount int
}

// JoinError rejects a join-room request. Unauthorized joins are terminal.
type JoinError struct {
	Reason string
}

// ExistingParticipants lists members already present when we joined. A
// non-empty list makes this side the initiator.
type ExistingParticipants struct {
	Participants []ParticipantID
}

// PeerJoined announces the other party's arrival; the observer becomes
// the receiver.
type PeerJoined struct {
	PeerID   ParticipantID
	UserName string
}

// PeerLeft announces the other party's departure.
type PeerLeft struct {
	PeerID   ParticipantID
	UserName string
}

// RemoteSignal carries a handshake payload relayed from the peer. The
// channel has already discarded signals for foreign rooms.
type RemoteSignal struct {
	From   ParticipantID
	Signal Signal
}

// TransportDown reports that the signaling connection dropped and its
// bounded transport-level retry was exhausted.
type TransportDown struct {
	Err error
}

func (JoinSuccess) signalingEvent()          {}
func (JoinError) signalingEvent()            {}
func (ExistingParticipants) signalingEvent() {}
func (PeerJoined) signalingEvent()           {}
func (PeerLeft) signalingEvent()             {}
func (RemoteSignal) signalingEvent()         {}
func (TransportDown) signalingEvent()        {}
