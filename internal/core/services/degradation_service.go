package services

import (
	"time"

	"telecall/internal/core/domain"

	"go.uber.org/zap"
)

// DegradationAction is the adaptive step the orchestrator should take in
// response to a quality observation.
type DegradationAction int

const (
	ActionNone DegradationAction = iota
	ActionStepDown
	ActionStepUp
	ActionReconnect
)

func (a DegradationAction) String() string {
	switch a {
	case ActionStepDown:
		return "step_down"
	case ActionStepUp:
		return "step_up"
	case ActionReconnect:
		return "reconnect"
	default:
		return "none"
	}
}

// DegradationManager turns quality levels into tier steps. Downgrades
// react to a single fair observation (subject to a switch cooldown);
// upgrades require the link to hold good or better through a
// stabilization window. Poor or offline sustained past the grace period
// asks for a reconnect.
type DegradationManager struct {
	poorGrace      time.Duration
	upgradeWindow  time.Duration
	switchCooldown time.Duration
	logger         *zap.SugaredLogger

	badSince   time.Time
	goodSince  time.Time
	lastSwitch time.Time
}

func NewDegradationManager(poorGrace, upgradeWindow, switchCooldown time.Duration, logger *zap.SugaredLogger) *DegradationManager {
	return &DegradationManager{
		poorGrace:      poorGrace,
		upgradeWindow:  upgradeWindow,
		switchCooldown: switchCooldown,
		logger:         logger,
	}
}

// Reset clears accumulated timing state. Called whenever the call
// (re)enters connected.
func (d *DegradationManager) Reset(now time.Time) {
	d.badSince = time.Time{}
	d.goodSince = time.Time{}
	d.lastSwitch = now
}

// Observe processes one quality report taken at now with the given
// active tier and returns the action to take. Tier moves are always a
// single step.
func (d *DegradationManager) Observe(level domain.QualityLevel, tier domain.MediaTier, now time.Time) DegradationAction {
	switch level {
	case domain.QualityPoor, domain.QualityOffline:
		d.goodSince = time.Time{}
		if d.badSince.IsZero() {
			d.badSince = now
			// An unusable link is first met with the lowest-cost stream.
			if tier != domain.TierAudioOnly && d.canSwitch(now) {
				d.lastSwitch = now
				return ActionStepDown
			}
			return ActionNone
		}
		if now.Sub(d.badSince) >= d.poorGrace {
			d.badSince = time.Time{}
			d.logger.Warnw("link unusable past grace period", "level", level)
			return ActionReconnect
		}
		return ActionNone

	case domain.QualityFair:
		d.badSince = time.Time{}
		d.goodSince = time.Time{}
		if tier != domain.TierAudioOnly && d.canSwitch(now) {
			d.lastSwitch = now
			return ActionStepDown
		}
		return ActionNone

	case domain.QualityGood, domain.QualityExcellent:
		d.badSince = time.Time{}
		if tier == domain.TierHigh {
			d.goodSince = time.Time{}
			return ActionNone
		}
		if d.goodSince.IsZero() {
			d.goodSince = now
			return ActionNone
		}
		if now.Sub(d.goodSince) >= d.upgradeWindow && d.canSwitch(now) {
			d.goodSince = time.Time{}
			d.lastSwitch = now
			return ActionStepUp
		}
		return ActionNone

	default:
		return ActionNone
	}
}

func (d *DegradationManager) canSwitch(now time.Time) bool {
	return d.lastSwitch.IsZero() || now.Sub(d.lastSwitch) >= d.switchCooldown
}
