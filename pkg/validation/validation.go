package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// SessionIDRegex validates external booking references.
	SessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// RoomIDRegex validates the opaque room token format.
	RoomIDRegex = regexp.MustCompile(`^room_[a-zA-Z0-9-]+$`)

	// ParticipantIDRegex validates per-connection socket identities.
	ParticipantIDRegex = regexp.MustCompile(`^pt_[a-zA-Z0-9-]+$`)
)

// ValidateSessionID validates an external session/booking reference.
func ValidateSessionID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("session id is too long (max 100 characters)")
	}
	if !SessionIDRegex.MatchString(id) {
		return fmt.Errorf("session id contains invalid characters")
	}
	return nil
}

// ValidateRoomID validates a room token.
func ValidateRoomID(id string) error {
	if id == "" {
		return fmt.Errorf("room id is required")
	}
	if !RoomIDRegex.MatchString(id) {
		return fmt.Errorf("invalid room id format")
	}
	return nil
}

// ValidateSDP performs a shallow sanity check on a session description
// before relaying it. The relay never parses media sections.
func ValidateSDP(sdp string) error {
	if sdp == "" {
		return fmt.Errorf("sdp cannot be empty")
	}
	if !strings.HasPrefix(sdp, "v=") {
		return fmt.Errorf("invalid sdp: must start with 'v='")
	}
	for _, field := range []string{"o=", "s=", "t="} {
		if !strings.Contains(sdp, field) {
			return fmt.Errorf("invalid sdp: missing required field %q", field)
		}
	}
	return nil
}
