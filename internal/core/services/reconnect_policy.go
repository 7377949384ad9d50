package services

import (
	"math/rand"
	"time"

	"telecall/internal/core/domain"
)

// ReconnectPolicy computes the schedule for reconnection attempts.
// Delays grow exponentially from BaseDelay and never shrink between
// consecutive attempts; jitter only pushes a delay upward before it is
// clamped at MaxDelay.
type ReconnectPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	Jitter      float64

	rng *rand.Rand
}

func NewReconnectPolicy(base, max time.Duration, maxAttempts int, jitter float64) *ReconnectPolicy {
	return &ReconnectPolicy{
		BaseDelay:   base,
		MaxDelay:    max,
		MaxAttempts: maxAttempts,
		Jitter:      jitter,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextAttempt returns the attempt that should follow completed attempts.
// completed is how many attempts have already run for the current
// outage. The second return is false once the attempt budget is spent.
func (p *ReconnectPolicy) NextAttempt(completed int, reason domain.TriggerReason) (domain.ReconnectionAttempt, bool) {
	if completed >= p.MaxAttempts {
		return domain.ReconnectionAttempt{}, false
	}

	delay := p.BaseDelay << uint(completed)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	} else if p.Jitter > 0 {
		delay += time.Duration(p.rng.Float64() * p.Jitter * float64(delay))
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return domain.ReconnectionAttempt{
		Number:         completed + 1,
		ScheduledDelay: delay,
		Reason:         reason,
	}, true
}
