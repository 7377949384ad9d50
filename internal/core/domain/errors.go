package domain

import "errors"

var (
	ErrPermissionDenied         = errors.New("media permission denied")
	ErrConstraintsUnsatisfiable = errors.New("media constraints unsatisfiable")
	ErrDeviceUnavailable        = errors.New("media device unavailable")
	ErrRoomMismatch             = errors.New("signal targets a different room")
	ErrRoomFull                 = errors.New("room already has two participants")
	ErrRoomNotFound             = errors.New("room not found")
	ErrSessionNotFound          = errors.New("session not found")
	ErrPeerGone                 = errors.New("peer left the room")
	ErrInvalidTransition        = errors.New("invalid call status transition")
)
