package webrtc

import (
	"testing"
	"time"

	"telecall/internal/core/domain"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
)

func TestApplyConnectionStats(t *testing.T) {
	sample := domain.QualitySample{}
	applyConnectionStats(&sample, webrtc.StatsReport{
		"pair": webrtc.ICECandidatePairStats{
			State:                    webrtc.StatsICECandidatePairStateSucceeded,
			CurrentRoundTripTime:     0.080,
			AvailableOutgoingBitrate: 2_500_000,
		},
	})

	assert.Equal(t, 80*time.Millisecond, sample.RoundTripTime)
	assert.Equal(t, 2500, sample.AvailableBitrate, "bandwidth is reported in kbps")
}

func TestApplyConnectionStatsSkipsFailedPairs(t *testing.T) {
	sample := domain.QualitySample{}
	applyConnectionStats(&sample, webrtc.StatsReport{
		"pair": webrtc.ICECandidatePairStats{
			State:                    webrtc.StatsICECandidatePairStateFailed,
			CurrentRoundTripTime:     0.5,
			AvailableOutgoingBitrate: 1_000_000,
		},
		"remote": webrtc.RemoteInboundRTPStreamStats{RoundTripTime: 0.120},
	})

	assert.Equal(t, 120*time.Millisecond, sample.RoundTripTime,
		"remote inbound RTT is the fallback when no pair succeeded")
	assert.Zero(t, sample.AvailableBitrate)
}
