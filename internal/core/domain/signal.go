package domain

import "encoding/json"

// SignalKind identifies a WebRTC handshake payload. The signaling message
// type sent on the wire is derived from the payload's own kind.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

// Signal is one handshake payload exchanged through the relay. SDP is set
// for offers and answers; Candidate carries a JSON-encoded ICE candidate.
type Signal struct {
	Kind      SignalKind
	SDP       string
	Candidate json.RawMessage
}

// ICEServer is one STUN/TURN entry handed to the peer connection, as
// returned by the booking collaborator's config endpoint.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}
