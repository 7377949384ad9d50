package signal

import (
	"encoding/json"
	"fmt"

	"telecall/internal/core/domain"
)

// Message types exchanged over the signaling channel. Every handshake
// message is scoped by the roomId it targets.
const (
	TypeJoinRoom             = "join-room"
	TypeJoinSuccess          = "join-success"
	TypeJoinError            = "join-error"
	TypeExistingParticipants = "existing-participants"
	TypeUserJoined           = "user-joined"
	TypeUserLeft             = "user-left"
	TypeOffer                = "offer"
	TypeAnswer               = "answer"
	TypeICECandidate         = "ice-candidate"
	TypeCallStarted          = "call-started"
	TypeCallEnded            = "call-ended"
	TypeCallStatus           = "call-status"
	TypeCallError            = "call-error"
)

// Envelope is the wire frame for every signaling message.
type Envelope struct {
	Type    string               `json:"type"`
	RoomID  domain.RoomID        `json:"roomId,omitempty"`
	From    domain.ParticipantID `json:"from,omitempty"`
	Payload json.RawMessage      `json:"payload,omitempty"`
}

type JoinRoomPayload struct {
	SessionID domain.SessionID `json:"sessionId"`
	UserName  string           `json:"userName,omitempty"`
}

type JoinSuccessPayload struct {
	SocketID         domain.ParticipantID `json:"socketId"`
	ParticipantCount int                  `json:"participantCount"`
}

type JoinErrorPayload struct {
	Reason string `json:"reason"`
}

type ParticipantInfo struct {
	SocketID domain.ParticipantID `json:"socketId"`
	UserName string               `json:"userName,omitempty"`
}

type ExistingParticipantsPayload struct {
	Participants []ParticipantInfo `json:"participants"`
}

type UserJoinedPayload struct {
	SocketID domain.ParticipantID `json:"socketId"`
	UserName string               `json:"userName,omitempty"`
}

type UserLeftPayload struct {
	SocketID domain.ParticipantID `json:"socketId"`
	UserName string               `json:"userName,omitempty"`
}

type OfferPayload struct {
	Offer string               `json:"offer"`
	To    domain.ParticipantID `json:"to"`
}

type AnswerPayload struct {
	Answer string               `json:"answer"`
	To     domain.ParticipantID `json:"to"`
}

type ICECandidatePayload struct {
	Candidate json.RawMessage      `json:"candidate"`
	To        domain.ParticipantID `json:"to"`
}

type CallStartedPayload struct {
	StartTime int64            `json:"startTime"`
	SessionID domain.SessionID `json:"sessionId"`
}

type CallEndedPayload struct {
	EndTime   int64            `json:"endTime"`
	Duration  int              `json:"duration"`
	SessionID domain.SessionID `json:"sessionId"`
}

type CallStatusPayload struct {
	Status    string `json:"status"`
	StartTime int64  `json:"startTime,omitempty"`
}

type CallErrorPayload struct {
	Error string `json:"error"`
}

func newEnvelope(msgType string, roomID domain.RoomID, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Envelope{Type: msgType, RoomID: roomID, Payload: raw}, nil
}

// signalEnvelope maps a domain handshake signal onto its wire type.
func signalEnvelope(sig domain.Signal, to domain.ParticipantID, roomID domain.RoomID) (Envelope, error) {
	switch sig.Kind {
	case domain.SignalOffer:
		return newEnvelope(TypeOffer, roomID, OfferPayload{Offer: sig.SDP, To: to})
	case domain.SignalAnswer:
		return newEnvelope(TypeAnswer, roomID, AnswerPayload{Answer: sig.SDP, To: to})
	case domain.SignalICECandidate:
		return newEnvelope(TypeICECandidate, roomID, ICECandidatePayload{Candidate: sig.Candidate, To: to})
	default:
		return Envelope{}, fmt.Errorf("unknown signal kind %q", sig.Kind)
	}
}
