package services

import (
	"context"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"

	"github.com/bep/debounce"
	"go.uber.org/zap"
)

// QualityThresholds are the tunable classification bands. Packet loss and
// RTT dominate; a sample is placed in the best band whose limits it
// satisfies.
type QualityThresholds struct {
	ExcellentLoss float64
	ExcellentRTT  time.Duration
	GoodLoss      float64
	GoodRTT       time.Duration
	FairLoss      float64
	FairRTT       time.Duration
}

func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		ExcellentLoss: 0.01,
		ExcellentRTT:  100 * time.Millisecond,
		GoodLoss:      0.03,
		GoodRTT:       200 * time.Millisecond,
		FairLoss:      0.08,
		FairRTT:       400 * time.Millisecond,
	}
}

// QualityClassifier maps an aggregated sample to a discrete level.
type QualityClassifier struct {
	thresholds QualityThresholds
}

func NewQualityClassifier(thresholds QualityThresholds) *QualityClassifier {
	return &QualityClassifier{thresholds: thresholds}
}

func (c *QualityClassifier) Classify(s domain.QualitySample) domain.QualityLevel {
	th := c.thresholds
	switch {
	case s.PacketLossRatio < th.ExcellentLoss && s.RoundTripTime < th.ExcellentRTT:
		return domain.QualityExcellent
	case s.PacketLossRatio < th.GoodLoss && s.RoundTripTime < th.GoodRTT:
		return domain.QualityGood
	case s.PacketLossRatio < th.FairLoss && s.RoundTripTime < th.FairRTT:
		return domain.QualityFair
	default:
		return domain.QualityPoor
	}
}

// QualityMonitor samples the peer link on a fixed interval while the call
// is live, keeps a rolling window, and reports the aggregate level. A
// silent period longer than the offline grace reports QualityOffline.
type QualityMonitor struct {
	classifier   *QualityClassifier
	interval     time.Duration
	offlineGrace time.Duration
	windowSize   int
	report       func(level domain.QualityLevel, aggregate domain.QualitySample)
	logger       *zap.SugaredLogger

	mu      sync.Mutex
	window  *domain.SampleWindow
	alive   func(f func())
	cancel  context.CancelFunc
	running bool
}

func NewQualityMonitor(
	classifier *QualityClassifier,
	interval, offlineGrace time.Duration,
	windowSize int,
	report func(domain.QualityLevel, domain.QualitySample),
	logger *zap.SugaredLogger,
) *QualityMonitor {
	return &QualityMonitor{
		classifier:   classifier,
		interval:     interval,
		offlineGrace: offlineGrace,
		windowSize:   windowSize,
		report:       report,
		logger:       logger,
		window:       domain.NewSampleWindow(windowSize),
	}
}

// Start begins sampling the link. Stop must be called before the link is
// closed.
func (qm *QualityMonitor) Start(ctx context.Context, link ports.PeerLink) {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	if qm.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	qm.cancel = cancel
	qm.running = true
	qm.window.Reset()
	// Each good sample re-arms the offline timer; silence past the grace
	// period fires it.
	qm.alive = debounce.New(qm.offlineGrace)
	qm.alive(func() { qm.markOffline(runCtx) })

	go qm.run(runCtx, link)
}

func (qm *QualityMonitor) Stop() {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	if !qm.running {
		return
	}
	qm.cancel()
	qm.running = false
}

func (qm *QualityMonitor) run(ctx context.Context, link ports.PeerLink) {
	ticker := time.NewTicker(qm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, err := link.Sample(ctx)
			if err != nil {
				// A dropped sample has no correctness impact; the offline
				// debounce catches sustained silence.
				qm.logger.Debugw("quality sample dropped", "error", err)
				continue
			}
			qm.observe(ctx, sample)
		}
	}
}

func (qm *QualityMonitor) observe(ctx context.Context, sample domain.QualitySample) {
	qm.mu.Lock()
	qm.window.Add(sample)
	aggregate := qm.window.Aggregate()
	alive := qm.alive
	qm.mu.Unlock()

	alive(func() { qm.markOffline(ctx) })

	level := qm.classifier.Classify(aggregate)
	qm.report(level, aggregate)
}

func (qm *QualityMonitor) markOffline(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	default:
	}
	qm.mu.Lock()
	last := qm.window.Last()
	alive := qm.alive
	qm.mu.Unlock()
	qm.logger.Warnw("no quality samples within grace period",
		"grace", qm.offlineGrace)
	qm.report(domain.QualityOffline, last)
	// Re-arm so a link that stays silent keeps reporting offline; the
	// degradation grace period needs repeated observations to escalate.
	alive(func() { qm.markOffline(ctx) })
}
