package domain

// MediaTier is an ordered capture quality level. Lower value means higher
// quality; TierAudioOnly is the floor.
type MediaTier int

const (
	TierHigh MediaTier = iota
	TierMedium
	TierLow
	TierAudioOnly
)

func (t MediaTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	case TierAudioOnly:
		return "audio_only"
	default:
		return "unknown"
	}
}

// Lower returns the next tier down, clamped at TierAudioOnly.
func (t MediaTier) Lower() MediaTier {
	if t >= TierAudioOnly {
		return TierAudioOnly
	}
	return t + 1
}

// Higher returns the next tier up, clamped at TierHigh.
func (t MediaTier) Higher() MediaTier {
	if t <= TierHigh {
		return TierHigh
	}
	return t - 1
}

// MediaConstraints are the capture parameters associated with a tier.
type MediaConstraints struct {
	Width        int
	Height       int
	FrameRate    int
	VideoBitrate int // kbps
	AudioBitrate int // kbps
	VideoEnabled bool
}

// MediaProfile is the currently active capture quality. Exactly one tier
// is active at a time; tier changes step one level except the initial
// acquisition probe.
type MediaProfile struct {
	Tier        MediaTier
	Constraints MediaConstraints
}

// DefaultConstraints maps each tier to its capture parameters.
var DefaultConstraints = map[MediaTier]MediaConstraints{
	TierHigh:      {Width: 1280, Height: 720, FrameRate: 30, VideoBitrate: 2500, AudioBitrate: 64, VideoEnabled: true},
	TierMedium:    {Width: 854, Height: 480, FrameRate: 30, VideoBitrate: 1200, AudioBitrate: 48, VideoEnabled: true},
	TierLow:       {Width: 640, Height: 360, FrameRate: 20, VideoBitrate: 500, AudioBitrate: 32, VideoEnabled: true},
	TierAudioOnly: {VideoBitrate: 0, AudioBitrate: 32, VideoEnabled: false},
}

// ProfileFor returns the media profile for a tier.
func ProfileFor(tier MediaTier) MediaProfile {
	return MediaProfile{Tier: tier, Constraints: DefaultConstraints[tier]}
}
