package domain

import "time"

// TriggerReason records why a reconnection attempt was scheduled.
type TriggerReason string

const (
	TriggerICEFailure       TriggerReason = "ice-failure"
	TriggerQualityOffline   TriggerReason = "quality-offline"
	TriggerConnectionClosed TriggerReason = "peer-connection-closed"
)

// ReconnectionAttempt tracks the current failure episode. Number resets to
// zero on any successful return to connected.
type ReconnectionAttempt struct {
	Number         int
	ScheduledDelay time.Duration
	Reason         TriggerReason
}

func (a *ReconnectionAttempt) Reset() {
	*a = ReconnectionAttempt{}
}
