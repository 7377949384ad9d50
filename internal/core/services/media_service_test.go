package services

import (
	"context"
	"errors"
	"testing"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	apperrors "telecall/pkg/errors"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeStream struct {
	constraints domain.MediaConstraints
	closed      bool
}

func (f *fakeStream) Constraints() domain.MediaConstraints { return f.constraints }
func (f *fakeStream) VideoTrack() webrtc.TrackLocal        { return nil }
func (f *fakeStream) AudioTrack() webrtc.TrackLocal        { return nil }
func (f *fakeStream) Close() error                         { f.closed = true; return nil }

// fakeSource fails with the configured error per tier; tiers not listed
// succeed.
type fakeSource struct {
	failures map[domain.MediaTier]error
	calls    []domain.MediaTier
}

func (f *fakeSource) Acquire(_ context.Context, c domain.MediaConstraints) (ports.LocalStream, error) {
	tier := tierFor(c)
	f.calls = append(f.calls, tier)
	if err, ok := f.failures[tier]; ok {
		return nil, err
	}
	return &fakeStream{constraints: c}, nil
}

func tierFor(c domain.MediaConstraints) domain.MediaTier {
	for tier, known := range domain.DefaultConstraints {
		if known == c {
			return tier
		}
	}
	return domain.TierAudioOnly
}

func TestAcquireSucceedsAtRequestedTier(t *testing.T) {
	src := &fakeSource{}
	svc := NewMediaAcquisition(src, zaptest.NewLogger(t).Sugar())

	res, err := svc.Acquire(context.Background(), domain.TierHigh)
	require.NoError(t, err)
	assert.Equal(t, domain.TierHigh, res.Profile.Tier)
	assert.False(t, res.FallbackApplied)
	assert.Empty(t, res.FailedTiers)
}

func TestAcquireFallsBackTierByTier(t *testing.T) {
	src := &fakeSource{failures: map[domain.MediaTier]error{
		domain.TierHigh:   domain.ErrConstraintsUnsatisfiable,
		domain.TierMedium: domain.ErrConstraintsUnsatisfiable,
	}}
	svc := NewMediaAcquisition(src, zaptest.NewLogger(t).Sugar())

	res, err := svc.Acquire(context.Background(), domain.TierHigh)
	require.NoError(t, err)
	assert.Equal(t, domain.TierLow, res.Profile.Tier)
	assert.True(t, res.FallbackApplied)
	assert.Equal(t, []domain.MediaTier{domain.TierHigh, domain.TierMedium}, res.FailedTiers)
	// Constraints failures never skip a tier.
	assert.Equal(t, []domain.MediaTier{domain.TierHigh, domain.TierMedium, domain.TierLow}, src.calls)
}

func TestAcquireNeverDowngradesPastAudioOnly(t *testing.T) {
	src := &fakeSource{failures: map[domain.MediaTier]error{
		domain.TierHigh:      domain.ErrConstraintsUnsatisfiable,
		domain.TierMedium:    domain.ErrConstraintsUnsatisfiable,
		domain.TierLow:       domain.ErrConstraintsUnsatisfiable,
		domain.TierAudioOnly: domain.ErrConstraintsUnsatisfiable,
	}}
	svc := NewMediaAcquisition(src, zaptest.NewLogger(t).Sugar())

	_, err := svc.Acquire(context.Background(), domain.TierHigh)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindMedia, apperrors.KindOf(err))
	assert.Len(t, src.calls, 4)
}

func TestAcquireDeviceUnavailableSkipsToAudioOnly(t *testing.T) {
	src := &fakeSource{failures: map[domain.MediaTier]error{
		domain.TierHigh: domain.ErrDeviceUnavailable,
	}}
	svc := NewMediaAcquisition(src, zaptest.NewLogger(t).Sugar())

	res, err := svc.Acquire(context.Background(), domain.TierHigh)
	require.NoError(t, err)
	assert.Equal(t, domain.TierAudioOnly, res.Profile.Tier)
	assert.Equal(t, []domain.MediaTier{domain.TierHigh, domain.TierAudioOnly}, src.calls)
}

func TestAcquirePermissionDeniedDoesNotRetry(t *testing.T) {
	src := &fakeSource{failures: map[domain.MediaTier]error{
		domain.TierHigh: domain.ErrPermissionDenied,
	}}
	svc := NewMediaAcquisition(src, zaptest.NewLogger(t).Sugar())

	_, err := svc.Acquire(context.Background(), domain.TierHigh)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindMedia, apperrors.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Len(t, src.calls, 1)
}

func TestReacquireDoesNotFallBack(t *testing.T) {
	src := &fakeSource{failures: map[domain.MediaTier]error{
		domain.TierMedium: domain.ErrConstraintsUnsatisfiable,
	}}
	svc := NewMediaAcquisition(src, zaptest.NewLogger(t).Sugar())

	_, err := svc.Reacquire(context.Background(), domain.TierMedium)
	require.Error(t, err)
	assert.Len(t, src.calls, 1)
}

func TestAcquireUnknownErrorIsTerminal(t *testing.T) {
	src := &fakeSource{failures: map[domain.MediaTier]error{
		domain.TierHigh: errors.New("driver crashed"),
	}}
	svc := NewMediaAcquisition(src, zaptest.NewLogger(t).Sugar())

	_, err := svc.Acquire(context.Background(), domain.TierHigh)
	require.Error(t, err)
	assert.Len(t, src.calls, 1)
}
