package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/pkg/circuitbreaker"
	apperrors "telecall/pkg/errors"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubSignaling struct {
	mu     sync.Mutex
	events chan domain.SignalingEvent
	sent   []domain.Signal
	joined []domain.RoomID
	closed bool
}

func newStubSignaling() *stubSignaling {
	return &stubSignaling{events: make(chan domain.SignalingEvent, 16)}
}

func (s *stubSignaling) Connect(context.Context) error { return nil }

func (s *stubSignaling) JoinRoom(_ context.Context, roomID domain.RoomID, _ domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = append(s.joined, roomID)
	return nil
}

func (s *stubSignaling) SendSignal(_ context.Context, _ domain.ParticipantID, sig domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sig)
	return nil
}

func (s *stubSignaling) Events() <-chan domain.SignalingEvent { return s.events }

func (s *stubSignaling) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSignaling) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// stubLink is a peer link whose sample can be rewritten mid-test.
type stubLink struct {
	mu         sync.Mutex
	role       domain.Role
	negotiated bool
	closed     bool
	applied    []domain.Signal
	replaced   int
	sample     domain.QualitySample
	sampleErr  error
}

func (l *stubLink) StartNegotiation(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.negotiated = true
	return nil
}

func (l *stubLink) ApplyRemoteSignal(_ context.Context, sig domain.Signal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.applied = append(l.applied, sig)
	return nil
}

func (l *stubLink) ReplaceVideoTrack(webrtc.TrackLocal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.replaced++
	return nil
}

func (l *stubLink) Sample(context.Context) (domain.QualitySample, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sampleErr != nil {
		return domain.QualitySample{}, l.sampleErr
	}
	s := l.sample
	s.Timestamp = time.Now()
	return s, nil
}

func (l *stubLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *stubLink) setSample(loss float64, rtt time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sample = domain.QualitySample{PacketLossRatio: loss, RoundTripTime: rtt}
}

func (l *stubLink) setSampleErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sampleErr = err
}

func (l *stubLink) appliedSignals() []domain.Signal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Signal(nil), l.applied...)
}

type stubPeerFactory struct {
	mu     sync.Mutex
	links  []*stubLink
	events []ports.PeerLinkEvents
}

func (f *stubPeerFactory) New(cfg ports.PeerLinkConfig, _ ports.LocalStream, events ports.PeerLinkEvents) (ports.PeerLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link := &stubLink{role: cfg.Role}
	f.links = append(f.links, link)
	f.events = append(f.events, events)
	return link, nil
}

func (f *stubPeerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.links)
}

func (f *stubPeerFactory) link(i int) *stubLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links[i]
}

func (f *stubPeerFactory) fire(i int, fn func(ports.PeerLinkEvents)) {
	f.mu.Lock()
	events := f.events[i]
	f.mu.Unlock()
	fn(events)
}

type stubBooking struct {
	mu           sync.Mutex
	started      int
	ended        int
	endedMinutes int
}

func (b *stubBooking) FetchICEServers(context.Context) ([]domain.ICEServer, error) {
	return []domain.ICEServer{{URLs: []string{"stun:stun.example.org:3478"}}}, nil
}

func (b *stubBooking) GenerateRoom(context.Context, domain.SessionID) (domain.RoomID, string, error) {
	return "room_test", "video", nil
}

func (b *stubBooking) NotifyCallStarted(context.Context, domain.SessionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started++
	return nil
}

func (b *stubBooking) NotifyCallEnded(_ context.Context, _ domain.SessionID, minutes int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended++
	b.endedMinutes = minutes
	return nil
}

func (b *stubBooking) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started, b.ended
}

// recordingMetrics captures lifecycle metric calls for assertions.
type recordingMetrics struct {
	mu         sync.Mutex
	started    int
	ended      []time.Duration
	reconnects int
	switches   []string
	levels     []domain.QualityLevel
}

func (m *recordingMetrics) RecordCallStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *recordingMetrics) RecordCallEnded(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = append(m.ended, d)
}

func (m *recordingMetrics) RecordReconnectAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}

func (m *recordingMetrics) RecordTierSwitch(direction string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switches = append(m.switches, direction)
}

func (m *recordingMetrics) RecordQualityLevel(level domain.QualityLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = append(m.levels, level)
}

type orchHarness struct {
	orch      *CallOrchestrator
	signaling *stubSignaling
	peers     *stubPeerFactory
	booking   *stubBooking
	source    *fakeSource
}

type harnessOpts struct {
	cfg      func(*OrchestratorConfig)
	degrader *DegradationManager
	policy   *ReconnectPolicy
	metrics  ports.CallMetrics
}

func newOrchHarness(t *testing.T, opts harnessOpts) *orchHarness {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()

	cfg := OrchestratorConfig{
		SessionID:       "sess-1",
		InitialTier:     domain.TierHigh,
		PeerJoinTimeout: 2 * time.Second,
		SampleInterval:  10 * time.Millisecond,
		SampleWindow:    1,
		OfflineGrace:    time.Second,
	}
	if opts.cfg != nil {
		opts.cfg(&cfg)
	}
	degrader := opts.degrader
	if degrader == nil {
		// Inert by default so quality tests opt in explicitly.
		degrader = NewDegradationManager(time.Hour, time.Hour, time.Hour, logger)
	}
	policy := opts.policy
	if policy == nil {
		policy = NewReconnectPolicy(20*time.Millisecond, 100*time.Millisecond, 3, 0)
	}

	h := &orchHarness{
		signaling: newStubSignaling(),
		peers:     &stubPeerFactory{},
		booking:   &stubBooking{},
		source:    &fakeSource{},
	}
	h.orch = NewCallOrchestrator(cfg, OrchestratorDeps{
		Media:      NewMediaAcquisition(h.source, logger),
		Signaling:  h.signaling,
		Peers:      h.peers,
		Booking:    h.booking,
		Classifier: NewQualityClassifier(DefaultQualityThresholds()),
		Degrader:   degrader,
		Policy:     policy,
		Breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig()),
		Metrics:    opts.metrics,
		Logger:     logger,
	})
	return h
}

func (h *orchHarness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.orch.Start(context.Background()))
	t.Cleanup(h.orch.End)
}

func (h *orchHarness) waitStatus(t *testing.T, want domain.CallStatus) {
	t.Helper()
	require.Eventually(t, func() bool { return h.orch.Status() == want },
		2*time.Second, 2*time.Millisecond, "never reached %s, stuck at %s", want, h.orch.Status())
}

func (h *orchHarness) waitLinks(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.peers.count() >= n },
		2*time.Second, 2*time.Millisecond)
}

// connect drives the session to connected as the initiator against peer.
func (h *orchHarness) connect(t *testing.T, self, peer domain.ParticipantID) {
	t.Helper()
	h.start(t)
	h.signaling.events <- domain.JoinSuccess{SelfID: self, ParticipantCount: 2}
	h.signaling.events <- domain.ExistingParticipants{Participants: []domain.ParticipantID{peer}}
	h.waitStatus(t, domain.StatusNegotiating)
	h.waitLinks(t, 1)
	h.peers.fire(0, func(ev ports.PeerLinkEvents) { ev.OnRemoteStream() })
	h.waitStatus(t, domain.StatusConnected)
}

func TestOrchestrator_InitiatorFlow(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{})
	h.connect(t, "pt_a", "pt_b")

	sess := h.orch.Session()
	assert.Equal(t, domain.RoleInitiator, sess.Role)
	assert.Equal(t, domain.ParticipantID("pt_b"), sess.PeerID)
	assert.Equal(t, domain.RoomID("room_test"), sess.RoomID)
	assert.False(t, sess.StartedAt.IsZero())

	link := h.peers.link(0)
	link.mu.Lock()
	negotiated := link.negotiated
	role := link.role
	link.mu.Unlock()
	assert.True(t, negotiated, "initiator must produce the offer")
	assert.Equal(t, domain.RoleInitiator, role)

	require.Eventually(t, func() bool {
		started, _ := h.booking.counts()
		return started == 1
	}, time.Second, 2*time.Millisecond)
}

func TestOrchestrator_ReceiverWaitsForOffer(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{})
	h.start(t)

	h.signaling.events <- domain.JoinSuccess{SelfID: "pt_a", ParticipantCount: 1}
	h.waitStatus(t, domain.StatusWaitingForPeer)

	h.signaling.events <- domain.PeerJoined{PeerID: "pt_b", UserName: "dr-oak"}
	h.waitStatus(t, domain.StatusNegotiating)
	h.waitLinks(t, 1)

	link := h.peers.link(0)
	link.mu.Lock()
	negotiated := link.negotiated
	role := link.role
	link.mu.Unlock()
	assert.False(t, negotiated, "receiver never offers first")
	assert.Equal(t, domain.RoleReceiver, role)

	offer := domain.Signal{Kind: domain.SignalOffer, SDP: "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n"}
	h.signaling.events <- domain.RemoteSignal{From: "pt_b", Signal: offer}
	require.Eventually(t, func() bool { return len(link.appliedSignals()) == 1 },
		time.Second, 2*time.Millisecond)

	h.peers.fire(0, func(ev ports.PeerLinkEvents) { ev.OnRemoteStream() })
	h.waitStatus(t, domain.StatusConnected)
}

func TestOrchestrator_SignalsArrivingBeforeLinkAreReplayed(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{})
	h.start(t)

	// Candidate relayed before any role event reaches us.
	candidate := domain.Signal{Kind: domain.SignalICECandidate, Candidate: []byte(`{"candidate":"c1"}`)}
	h.signaling.events <- domain.RemoteSignal{From: "pt_b", Signal: candidate}
	h.signaling.events <- domain.JoinSuccess{SelfID: "pt_a", ParticipantCount: 2}
	h.signaling.events <- domain.ExistingParticipants{Participants: []domain.ParticipantID{"pt_b"}}

	h.waitLinks(t, 1)
	link := h.peers.link(0)
	require.Eventually(t, func() bool { return len(link.appliedSignals()) == 1 },
		time.Second, 2*time.Millisecond)
	assert.Equal(t, domain.SignalICECandidate, link.appliedSignals()[0].Kind)
}

func TestOrchestrator_GlareSmallerIDKeepsInitiating(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{})
	h.start(t)

	h.signaling.events <- domain.JoinSuccess{SelfID: "pt_a", ParticipantCount: 2}
	h.signaling.events <- domain.ExistingParticipants{Participants: []domain.ParticipantID{"pt_b"}}
	h.waitStatus(t, domain.StatusNegotiating)
	h.waitLinks(t, 1)

	offer := domain.Signal{Kind: domain.SignalOffer, SDP: "v=0\r\n"}
	h.signaling.events <- domain.RemoteSignal{From: "pt_b", Signal: offer}

	// The smaller socket id wins the race: the peer's offer is dropped
	// and the original initiator link stays up.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.peers.count())
	assert.Empty(t, h.peers.link(0).appliedSignals())
	assert.Equal(t, domain.RoleInitiator, h.orch.Session().Role)
}

func TestOrchestrator_GlareLargerIDRevertsToReceiver(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{})
	h.start(t)

	h.signaling.events <- domain.JoinSuccess{SelfID: "pt_z", ParticipantCount: 2}
	h.signaling.events <- domain.ExistingParticipants{Participants: []domain.ParticipantID{"pt_b"}}
	h.waitStatus(t, domain.StatusNegotiating)
	h.waitLinks(t, 1)

	offer := domain.Signal{Kind: domain.SignalOffer, SDP: "v=0\r\n"}
	h.signaling.events <- domain.RemoteSignal{From: "pt_b", Signal: offer}

	h.waitLinks(t, 2)
	second := h.peers.link(1)
	require.Eventually(t, func() bool { return len(second.appliedSignals()) == 1 },
		time.Second, 2*time.Millisecond)
	assert.Equal(t, domain.SignalOffer, second.appliedSignals()[0].Kind)
	assert.Equal(t, domain.RoleReceiver, h.orch.Session().Role)

	first := h.peers.link(0)
	first.mu.Lock()
	closed := first.closed
	first.mu.Unlock()
	assert.True(t, closed, "the losing initiator link must be torn down")
}

func TestOrchestrator_JoinErrorIsTerminal(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{})
	h.start(t)

	h.signaling.events <- domain.JoinError{Reason: "unauthorized"}
	h.waitStatus(t, domain.StatusFailed)

	<-h.orch.Done()
	assert.Equal(t, apperrors.KindSignaling, apperrors.KindOf(h.orch.Err()))
	started, ended := h.booking.counts()
	assert.Zero(t, started)
	assert.Zero(t, ended)
}

func TestOrchestrator_PeerJoinTimeoutFails(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{cfg: func(c *OrchestratorConfig) {
		c.PeerJoinTimeout = 30 * time.Millisecond
	}})
	h.start(t)

	h.signaling.events <- domain.JoinSuccess{SelfID: "pt_a", ParticipantCount: 1}
	h.waitStatus(t, domain.StatusWaitingForPeer)
	h.waitStatus(t, domain.StatusFailed)

	<-h.orch.Done()
	assert.Equal(t, apperrors.KindTimeout, apperrors.KindOf(h.orch.Err()))
}

func TestOrchestrator_MediaPermissionDeniedFails(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{})
	for tier := range domain.DefaultConstraints {
		if h.source.failures == nil {
			h.source.failures = map[domain.MediaTier]error{}
		}
		h.source.failures[tier] = domain.ErrPermissionDenied
	}
	h.start(t)

	h.waitStatus(t, domain.StatusFailed)
	<-h.orch.Done()
	assert.Equal(t, apperrors.KindMedia, apperrors.KindOf(h.orch.Err()))
}

func TestOrchestrator_TransportDownFails(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{})
	h.connect(t, "pt_a", "pt_b")

	h.signaling.events <- domain.TransportDown{Err: errors.New("dial tcp: refused")}
	h.waitStatus(t, domain.StatusFailed)
	<-h.orch.Done()
	assert.Equal(t, apperrors.KindSignaling, apperrors.KindOf(h.orch.Err()))
}

func TestOrchestrator_PeerLeftEndsCleanly(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{})
	h.connect(t, "pt_a", "pt_b")

	h.signaling.events <- domain.PeerLeft{PeerID: "pt_b"}
	h.waitStatus(t, domain.StatusEnded)
	<-h.orch.Done()

	assert.NoError(t, h.orch.Err())
	assert.True(t, h.signaling.isClosed())
	link := h.peers.link(0)
	link.mu.Lock()
	closed := link.closed
	link.mu.Unlock()
	assert.True(t, closed)
}

func TestOrchestrator_EndIsIdempotent(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{})
	h.connect(t, "pt_a", "pt_b")

	h.orch.End()
	h.orch.End()
	h.orch.End()
	<-h.orch.Done()
	h.waitStatus(t, domain.StatusEnded)

	// Teardown runs once: exactly one call-ended notification.
	require.Eventually(t, func() bool {
		_, ended := h.booking.counts()
		return ended == 1
	}, time.Second, 2*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	_, ended := h.booking.counts()
	assert.Equal(t, 1, ended)
	assert.Equal(t, 0, h.booking.endedMinutes)
}

func TestOrchestrator_LinkFailureReconnectsWithBackoff(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{
		policy: NewReconnectPolicy(20*time.Millisecond, 100*time.Millisecond, 3, 0),
	})
	h.connect(t, "pt_a", "pt_b")

	h.peers.fire(0, func(ev ports.PeerLinkEvents) { ev.OnError(errors.New("ice failed")) })
	h.waitStatus(t, domain.StatusReconnecting)

	sess := h.orch.Session()
	assert.Equal(t, 1, sess.Attempt.Number)
	assert.Equal(t, 20*time.Millisecond, sess.Attempt.ScheduledDelay)
	assert.Equal(t, domain.TriggerICEFailure, sess.Attempt.Reason)

	// The timer fires, a fresh link renegotiates with the same role.
	h.waitStatus(t, domain.StatusNegotiating)
	h.waitLinks(t, 2)
	second := h.peers.link(1)
	require.Eventually(t, func() bool {
		second.mu.Lock()
		defer second.mu.Unlock()
		return second.negotiated
	}, time.Second, 2*time.Millisecond)

	h.peers.fire(1, func(ev ports.PeerLinkEvents) { ev.OnRemoteStream() })
	h.waitStatus(t, domain.StatusConnected)

	// A successful reconnect resets the attempt budget.
	h.peers.fire(1, func(ev ports.PeerLinkEvents) { ev.OnClosed() })
	h.waitStatus(t, domain.StatusReconnecting)
	assert.Equal(t, 1, h.orch.Session().Attempt.Number)
	assert.Equal(t, domain.TriggerConnectionClosed, h.orch.Session().Attempt.Reason)
}

func TestOrchestrator_RetriesExhaustedFails(t *testing.T) {
	h := newOrchHarness(t, harnessOpts{
		policy: NewReconnectPolicy(10*time.Millisecond, 20*time.Millisecond, 1, 0),
	})
	h.connect(t, "pt_a", "pt_b")

	h.peers.fire(0, func(ev ports.PeerLinkEvents) { ev.OnError(errors.New("ice failed")) })
	h.waitStatus(t, domain.StatusReconnecting)
	h.waitStatus(t, domain.StatusNegotiating)
	h.waitLinks(t, 2)

	h.peers.fire(1, func(ev ports.PeerLinkEvents) { ev.OnError(errors.New("ice failed again")) })
	h.waitStatus(t, domain.StatusFailed)
	<-h.orch.Done()
	assert.Equal(t, apperrors.KindRetriesExhausted, apperrors.KindOf(h.orch.Err()))
}

func TestOrchestrator_DegradedCyclesDoNotSpendAttempts(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	h := newOrchHarness(t, harnessOpts{
		degrader: NewDegradationManager(time.Hour, time.Hour, time.Hour, logger),
	})
	h.connect(t, "pt_a", "pt_b")
	link := h.peers.link(0)

	for cycle := 0; cycle < 2; cycle++ {
		link.setSample(0.20, 600*time.Millisecond)
		h.waitStatus(t, domain.StatusDegraded)
		link.setSample(0.001, 40*time.Millisecond)
		h.waitStatus(t, domain.StatusConnected)
	}

	assert.Equal(t, 0, h.orch.Session().Attempt.Number)
	assert.Equal(t, 1, h.peers.count(), "degradation must not renegotiate")
}

func TestOrchestrator_SustainedPoorTriggersReconnect(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	h := newOrchHarness(t, harnessOpts{
		degrader: NewDegradationManager(40*time.Millisecond, time.Hour, time.Hour, logger),
	})
	h.connect(t, "pt_a", "pt_b")

	h.peers.link(0).setSample(0.20, 600*time.Millisecond)
	h.waitStatus(t, domain.StatusDegraded)
	h.waitStatus(t, domain.StatusReconnecting)
	assert.Equal(t, domain.TriggerQualityOffline, h.orch.Session().Attempt.Reason)
}

func TestOrchestrator_SilentLinkEscalatesToReconnect(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	h := newOrchHarness(t, harnessOpts{
		cfg: func(c *OrchestratorConfig) {
			c.OfflineGrace = 50 * time.Millisecond
		},
		degrader: NewDegradationManager(40*time.Millisecond, time.Hour, time.Hour, logger),
	})
	h.connect(t, "pt_a", "pt_b")

	// A dead transport yields no samples at all; repeated offline
	// reports must still walk degraded into a reconnect.
	h.peers.link(0).setSampleErr(errors.New("stats unavailable"))
	h.waitStatus(t, domain.StatusDegraded)
	h.waitStatus(t, domain.StatusReconnecting)
	assert.Equal(t, domain.TriggerQualityOffline, h.orch.Session().Attempt.Reason)
	assert.Equal(t, 1, h.orch.Session().Attempt.Number)
}

func TestOrchestrator_FairQualityStepsTierDownWhileConnected(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	h := newOrchHarness(t, harnessOpts{
		degrader: NewDegradationManager(time.Hour, time.Hour, time.Millisecond, logger),
	})
	h.connect(t, "pt_a", "pt_b")
	link := h.peers.link(0)

	link.setSample(0.05, 300*time.Millisecond)
	require.Eventually(t, func() bool {
		return h.orch.Session().Profile.Tier > domain.TierHigh
	}, 2*time.Second, 2*time.Millisecond)

	// Fair quality degrades the tier but never the lifecycle status.
	assert.Equal(t, domain.StatusConnected, h.orch.Status())
	link.mu.Lock()
	replaced := link.replaced
	link.mu.Unlock()
	assert.Greater(t, replaced, 0, "tier switch must swap the outgoing track")
}

func TestOrchestrator_LifecycleMetricsRecorded(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	metrics := &recordingMetrics{}
	h := newOrchHarness(t, harnessOpts{
		degrader: NewDegradationManager(time.Hour, time.Hour, time.Millisecond, logger),
		metrics:  metrics,
	})
	h.connect(t, "pt_a", "pt_b")
	link := h.peers.link(0)

	link.setSample(0.05, 300*time.Millisecond)
	require.Eventually(t, func() bool {
		return h.orch.Session().Profile.Tier > domain.TierHigh
	}, 2*time.Second, 2*time.Millisecond)

	h.peers.fire(0, func(ev ports.PeerLinkEvents) { ev.OnClosed() })
	h.waitStatus(t, domain.StatusReconnecting)

	h.orch.End()
	select {
	case <-h.orch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("teardown never completed")
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, 1, metrics.started, "reconnects must not count as new calls")
	require.Len(t, metrics.ended, 1)
	assert.Greater(t, metrics.ended[0], time.Duration(0))
	assert.GreaterOrEqual(t, metrics.reconnects, 1)
	assert.Contains(t, metrics.switches, "down")
	assert.Contains(t, metrics.levels, domain.QualityFair)
}
