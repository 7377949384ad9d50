package domain

import "time"

// QualityLevel is the discrete classification of the media link.
type QualityLevel string

const (
	QualityExcellent QualityLevel = "excellent"
	QualityGood      QualityLevel = "good"
	QualityFair      QualityLevel = "fair"
	QualityPoor      QualityLevel = "poor"
	QualityOffline   QualityLevel = "offline"
)

// Usable reports whether the link can carry a call at some tier.
func (q QualityLevel) Usable() bool {
	return q != QualityPoor && q != QualityOffline
}

// Ordinal maps the level onto a numeric scale for gauges and comparisons,
// 0 for offline up to 4 for excellent. Unknown values count as offline.
func (q QualityLevel) Ordinal() int {
	switch q {
	case QualityExcellent:
		return 4
	case QualityGood:
		return 3
	case QualityFair:
		return 2
	case QualityPoor:
		return 1
	default:
		return 0
	}
}

// QualitySample is one measurement taken from the peer connection.
type QualitySample struct {
	Timestamp        time.Time
	PacketLossRatio  float64
	RoundTripTime    time.Duration
	Jitter           time.Duration
	AvailableBitrate int // kbps, 0 when unknown
}

// SampleWindow keeps the last N samples so classification reacts to an
// aggregate rather than single-sample noise.
type SampleWindow struct {
	size    int
	samples []QualitySample
}

func NewSampleWindow(size int) *SampleWindow {
	if size < 1 {
		size = 1
	}
	return &SampleWindow{size: size}
}

func (w *SampleWindow) Add(s QualitySample) {
	w.samples = append(w.samples, s)
	if len(w.samples) > w.size {
		w.samples = w.samples[len(w.samples)-w.size:]
	}
}

func (w *SampleWindow) Len() int { return len(w.samples) }

// Last returns the most recent sample, or a zero sample when empty.
func (w *SampleWindow) Last() QualitySample {
	if len(w.samples) == 0 {
		return QualitySample{}
	}
	return w.samples[len(w.samples)-1]
}

// Aggregate averages the window into one representative sample. The
// returned timestamp is the newest sample's.
func (w *SampleWindow) Aggregate() QualitySample {
	if len(w.samples) == 0 {
		return QualitySample{}
	}
	var agg QualitySample
	var rtt, jitter time.Duration
	var bitrate int
	for _, s := range w.samples {
		agg.PacketLossRatio += s.PacketLossRatio
		rtt += s.RoundTripTime
		jitter += s.Jitter
		bitrate += s.AvailableBitrate
	}
	n := len(w.samples)
	agg.PacketLossRatio /= float64(n)
	agg.RoundTripTime = rtt / time.Duration(n)
	agg.Jitter = jitter / time.Duration(n)
	agg.AvailableBitrate = bitrate / n
	agg.Timestamp = w.samples[n-1].Timestamp
	return agg
}

func (w *SampleWindow) Reset() { w.samples = w.samples[:0] }
