package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// GenerateRoomID generates the opaque token scoping signaling messages to
// one call. Generated once per session and reused across rejoin attempts.
func GenerateRoomID() string {
	return fmt.Sprintf("room_%s", uuid.NewString())
}

// GenerateParticipantID generates a per-connection socket identity.
func GenerateParticipantID() string {
	return fmt.Sprintf("pt_%s", uuid.NewString())
}

// GenerateRequestID generates a short id for correlating relay requests.
func GenerateRequestID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return fmt.Sprintf("req_%s", hex.EncodeToString(b))
}
