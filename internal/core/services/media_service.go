package services

import (
	"context"
	"errors"
	"fmt"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	apperrors "telecall/pkg/errors"

	"go.uber.org/zap"
)

// AcquisitionResult records the stream actually obtained and the tiers
// that failed along the way.
type AcquisitionResult struct {
	Stream          ports.LocalStream
	Profile         domain.MediaProfile
	FailedTiers     []domain.MediaTier
	FallbackApplied bool
}

// MediaAcquisition obtains local capture under a quality profile, falling
// back through tiers on constraint failure.
type MediaAcquisition struct {
	source ports.MediaSource
	logger *zap.SugaredLogger
}

func NewMediaAcquisition(source ports.MediaSource, logger *zap.SugaredLogger) *MediaAcquisition {
	return &MediaAcquisition{source: source, logger: logger}
}

// Acquire requests capture at the requested tier. On a constraints
// failure it retries at each lower tier in strict order; on a
// device-unavailable failure it probes audio-only directly, since stepping
// through intermediate video tiers cannot help a missing camera.
// Permission denial is never retried here: the caller runs an explicit
// permission flow and calls Acquire again.
func (m *MediaAcquisition) Acquire(ctx context.Context, tier domain.MediaTier) (*AcquisitionResult, error) {
	result := &AcquisitionResult{}

	for {
		constraints := domain.DefaultConstraints[tier]
		stream, err := m.source.Acquire(ctx, constraints)
		if err == nil {
			result.Stream = stream
			result.Profile = domain.MediaProfile{Tier: tier, Constraints: constraints}
			result.FallbackApplied = len(result.FailedTiers) > 0
			if result.FallbackApplied {
				m.logger.Infow("media acquired after fallback",
					"tier", tier.String(),
					"failed_tiers", len(result.FailedTiers),
				)
			}
			return result, nil
		}

		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			return nil, apperrors.NewMediaError("capture permission denied", err)

		case errors.Is(err, domain.ErrConstraintsUnsatisfiable):
			result.FailedTiers = append(result.FailedTiers, tier)
			if tier == domain.TierAudioOnly {
				return nil, apperrors.NewMediaError("no viable capture tier", err)
			}
			next := tier.Lower()
			m.logger.Infow("constraints unsatisfiable, stepping down",
				"from", tier.String(), "to", next.String())
			tier = next

		case errors.Is(err, domain.ErrDeviceUnavailable):
			result.FailedTiers = append(result.FailedTiers, tier)
			if tier == domain.TierAudioOnly {
				return nil, apperrors.NewMediaError("no capture device available", err)
			}
			m.logger.Warnw("capture device unavailable, probing audio only",
				"tier", tier.String())
			tier = domain.TierAudioOnly

		default:
			return nil, apperrors.NewMediaError(fmt.Sprintf("acquire at tier %s", tier), err)
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.NewMediaError("acquisition cancelled", ctx.Err())
		default:
		}
	}
}

// Reacquire obtains a stream at the given tier for an adaptive tier
// change. Unlike the initial probe it never falls back: a tier change is
// always an exact one-step move, and failure leaves the current stream in
// place.
func (m *MediaAcquisition) Reacquire(ctx context.Context, tier domain.MediaTier) (ports.LocalStream, error) {
	stream, err := m.source.Acquire(ctx, domain.DefaultConstraints[tier])
	if err != nil {
		return nil, apperrors.NewMediaError(fmt.Sprintf("reacquire at tier %s", tier), err)
	}
	return stream, nil
}
