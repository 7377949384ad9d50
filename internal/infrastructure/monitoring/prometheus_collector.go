package monitoring

import (
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/internal/infrastructure/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	_ signal.RelayMetrics = (*PrometheusCollector)(nil)
	_ ports.CallMetrics   = (*PrometheusCollector)(nil)
)

// PrometheusCollector exposes relay and call metrics. The relay side
// feeds it through the signal.RelayMetrics interface; the call side
// feeds it through the ports.CallMetrics interface.
type PrometheusCollector struct {
	participantsConnected prometheus.Gauge
	joinsRejectedTotal    *prometheus.CounterVec
	messagesRelayedTotal  *prometheus.CounterVec

	callsStartedTotal   prometheus.Counter
	callDurationMinutes prometheus.Histogram

	reconnectAttemptsTotal prometheus.Counter
	tierSwitchesTotal      *prometheus.CounterVec
	qualityLevel           prometheus.Gauge
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		participantsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "telecall_participants_connected",
			Help: "Number of participants currently connected to the relay",
		}),

		joinsRejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "telecall_joins_rejected_total",
			Help: "Join attempts rejected by the relay",
		}, []string{"reason"}),

		messagesRelayedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "telecall_messages_relayed_total",
			Help: "Signaling messages forwarded by the relay",
		}, []string{"type"}),

		callsStartedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "telecall_calls_started_total",
			Help: "Calls that reached the connected state",
		}),

		callDurationMinutes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "telecall_call_duration_minutes",
			Help:    "Duration of completed calls in minutes",
			Buckets: []float64{1, 5, 15, 30, 45, 60, 90, 120},
		}),

		reconnectAttemptsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "telecall_reconnect_attempts_total",
			Help: "Reconnection attempts made by call clients",
		}),

		tierSwitchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "telecall_tier_switches_total",
			Help: "Media tier switches by direction",
		}, []string{"direction"}),

		qualityLevel: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "telecall_connection_quality_level",
			Help: "Current connection quality (0=offline .. 4=excellent)",
		}),
	}
}

// ParticipantJoined implements signal.RelayMetrics. Room ids are not
// used as labels; they are unbounded.
func (p *PrometheusCollector) ParticipantJoined(_ domain.RoomID) {
	p.participantsConnected.Inc()
}

// ParticipantLeft implements signal.RelayMetrics.
func (p *PrometheusCollector) ParticipantLeft(_ domain.RoomID) {
	p.participantsConnected.Dec()
}

// JoinRejected implements signal.RelayMetrics.
func (p *PrometheusCollector) JoinRejected(reason string) {
	p.joinsRejectedTotal.WithLabelValues(reason).Inc()
}

// MessageRelayed implements signal.RelayMetrics.
func (p *PrometheusCollector) MessageRelayed(msgType string) {
	p.messagesRelayedTotal.WithLabelValues(msgType).Inc()
}

func (p *PrometheusCollector) RecordCallStarted() {
	p.callsStartedTotal.Inc()
}

func (p *PrometheusCollector) RecordCallEnded(duration time.Duration) {
	p.callDurationMinutes.Observe(duration.Minutes())
}

func (p *PrometheusCollector) RecordReconnectAttempt() {
	p.reconnectAttemptsTotal.Inc()
}

func (p *PrometheusCollector) RecordTierSwitch(direction string) {
	p.tierSwitchesTotal.WithLabelValues(direction).Inc()
}

func (p *PrometheusCollector) RecordQualityLevel(level domain.QualityLevel) {
	p.qualityLevel.Set(float64(level.Ordinal()))
}
