package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/pkg/circuitbreaker"
	"telecall/pkg/errors"

	"go.uber.org/zap"
)

// StateUpdate is one lifecycle snapshot published to subscribers. The
// channel is best-effort: a slow subscriber misses intermediate states,
// never blocks the call.
type StateUpdate struct {
	Status  domain.CallStatus
	Tier    domain.MediaTier
	Attempt domain.ReconnectionAttempt
	Err     error
}

// OrchestratorConfig carries the per-session tunables. Zero values are
// replaced with the documented defaults.
type OrchestratorConfig struct {
	SessionID       domain.SessionID
	InitialTier     domain.MediaTier
	PeerJoinTimeout time.Duration
	SampleInterval  time.Duration
	SampleWindow    int
	OfflineGrace    time.Duration
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.PeerJoinTimeout <= 0 {
		c.PeerJoinTimeout = 2 * time.Minute
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = 3 * time.Second
	}
	if c.SampleWindow <= 0 {
		c.SampleWindow = 5
	}
	if c.OfflineGrace <= 0 {
		c.OfflineGrace = 10 * time.Second
	}
}

// OrchestratorDeps are the collaborators a call session runs against.
// ScreenSource is optional; without it screen sharing is rejected.
type OrchestratorDeps struct {
	Media        *MediaAcquisition
	ScreenSource ports.MediaSource
	Signaling    ports.SignalingChannel
	Peers        ports.PeerLinkFactory
	Booking      ports.BookingAPI
	Classifier   *QualityClassifier
	Degrader     *DegradationManager
	Policy       *ReconnectPolicy
	Breaker      *circuitbreaker.CircuitBreaker
	Metrics      ports.CallMetrics
	Logger       *zap.SugaredLogger
}

// noopCallMetrics is the default sink when no collector is configured.
type noopCallMetrics struct{}

func (noopCallMetrics) RecordCallStarted()                     {}
func (noopCallMetrics) RecordCallEnded(time.Duration)          {}
func (noopCallMetrics) RecordReconnectAttempt()                {}
func (noopCallMetrics) RecordTierSwitch(string)                {}
func (noopCallMetrics) RecordQualityLevel(domain.QualityLevel) {}

// internal loop events

type orchEvent interface{ orchEvent() }

type evMediaReady struct{ result *AcquisitionResult }
type evMediaFailed struct{ err error }
type evRoomReady struct {
	roomID domain.RoomID
	ice    []domain.ICEServer
}
type evRoomFailed struct{ err error }
type evSignaling struct{ ev domain.SignalingEvent }
type evLocalSignal struct{ sig domain.Signal }
type evRemoteStream struct{}
type evPeerClosed struct{}
type evPeerError struct{ err error }
type evQuality struct {
	level  domain.QualityLevel
	sample domain.QualitySample
}
type evReconnectFire struct{}
type evJoinTimeout struct{}
type evEnd struct{}
type evToggleScreen struct{ reply chan error }
type evTierSwitched struct {
	stream ports.LocalStream
	tier   domain.MediaTier
	err    error
}

func (evMediaReady) orchEvent()   {}
func (evMediaFailed) orchEvent()  {}
func (evRoomReady) orchEvent()    {}
func (evRoomFailed) orchEvent()   {}
func (evSignaling) orchEvent()    {}
func (evLocalSignal) orchEvent()  {}
func (evRemoteStream) orchEvent() {}
func (evPeerClosed) orchEvent()   {}
func (evPeerError) orchEvent()    {}
func (evQuality) orchEvent()      {}
func (evReconnectFire) orchEvent() {}
func (evJoinTimeout) orchEvent()  {}
func (evEnd) orchEvent()          {}
func (evToggleScreen) orchEvent() {}
func (evTierSwitched) orchEvent() {}

// CallOrchestrator drives one call session through its lifecycle. A
// single event loop goroutine owns the CallSession; everything else
// posts events onto it.
type CallOrchestrator struct {
	cfg  OrchestratorConfig
	deps OrchestratorDeps
	log  *zap.SugaredLogger

	events  chan orchEvent
	updates chan StateUpdate
	done    chan struct{}

	mu      sync.RWMutex
	session domain.CallSession
	endErr  error

	// loop-owned state, never touched off the loop goroutine
	stream         ports.LocalStream
	screenStream   ports.LocalStream
	sharingScreen  bool
	link           ports.PeerLink
	monitor        *QualityMonitor
	iceServers     []domain.ICEServer
	pendingSignals []domain.RemoteSignal
	completedTries int
	switching      bool
	startNotified  bool
	joinTimer      *time.Timer
	reconnectTimer *time.Timer

	runCtx  context.Context
	cancel  context.CancelFunc
	endOnce sync.Once
}

func NewCallOrchestrator(cfg OrchestratorConfig, deps OrchestratorDeps) *CallOrchestrator {
	cfg.applyDefaults()
	if deps.Metrics == nil {
		deps.Metrics = noopCallMetrics{}
	}
	o := &CallOrchestrator{
		cfg:     cfg,
		deps:    deps,
		log:     deps.Logger.With("session_id", cfg.SessionID),
		events:  make(chan orchEvent, 64),
		updates: make(chan StateUpdate, 16),
		done:    make(chan struct{}),
		session: domain.CallSession{
			SessionID: cfg.SessionID,
			Status:    domain.StatusIdle,
		},
	}
	return o
}

// Start launches the session. It returns immediately; progress is
// observable through Updates and Done.
func (o *CallOrchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.session.Status != domain.StatusIdle {
		o.mu.Unlock()
		return fmt.Errorf("session already started in status %s", o.session.Status)
	}
	o.mu.Unlock()

	o.runCtx, o.cancel = context.WithCancel(ctx)
	o.transition(domain.StatusAcquiringMedia)

	go o.loop()
	go func() {
		result, err := o.deps.Media.Acquire(o.runCtx, o.cfg.InitialTier)
		if err != nil {
			o.post(evMediaFailed{err: err})
			return
		}
		o.post(evMediaReady{result: result})
	}()
	return nil
}

// End requests an orderly teardown. Safe to call from any goroutine and
// any number of times.
func (o *CallOrchestrator) End() { o.post(evEnd{}) }

// ToggleScreenShare swaps the outgoing video between camera and screen
// capture. It blocks until the loop has processed the request.
func (o *CallOrchestrator) ToggleScreenShare(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case o.events <- evToggleScreen{reply: reply}:
	case <-o.done:
		return errors.New(errors.KindInternal, "session already ended")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done closes when the session reaches a terminal status.
func (o *CallOrchestrator) Done() <-chan struct{} { return o.done }

// Err reports why the session terminated; nil for a normal end.
func (o *CallOrchestrator) Err() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.endErr
}

// Updates delivers best-effort state snapshots for a UI surface.
func (o *CallOrchestrator) Updates() <-chan StateUpdate { return o.updates }

// Session returns a copy of the current session state.
func (o *CallOrchestrator) Session() domain.CallSession {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.session
}

func (o *CallOrchestrator) Status() domain.CallStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.session.Status
}

func (o *CallOrchestrator) post(ev orchEvent) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

func (o *CallOrchestrator) loop() {
	for {
		select {
		case <-o.done:
			return
		case ev := <-o.events:
			o.handle(ev)
			if o.Status().Terminal() {
				return
			}
		}
	}
}

func (o *CallOrchestrator) handle(ev orchEvent) {
	switch ev := ev.(type) {
	case evMediaReady:
		o.onMediaReady(ev.result)
	case evMediaFailed:
		o.fail(errors.NewMediaError("local media acquisition failed", ev.err))
	case evRoomReady:
		o.onRoomReady(ev.roomID, ev.ice)
	case evRoomFailed:
		o.fail(errors.NewSignalingError("room setup failed", ev.err))
	case evSignaling:
		o.onSignaling(ev.ev)
	case evLocalSignal:
		o.sendSignal(ev.sig)
	case evRemoteStream:
		o.onConnected()
	case evPeerClosed:
		o.onLinkDown(domain.TriggerConnectionClosed, nil)
	case evPeerError:
		o.onLinkDown(domain.TriggerICEFailure, ev.err)
	case evQuality:
		o.onQuality(ev.level, ev.sample)
	case evReconnectFire:
		o.onReconnectFire()
	case evJoinTimeout:
		if o.Status() == domain.StatusWaitingForPeer {
			o.fail(errors.NewTimeoutError("peer did not join before the timeout"))
		}
	case evEnd:
		o.finish(nil)
	case evToggleScreen:
		ev.reply <- o.toggleScreen()
	case evTierSwitched:
		o.onTierSwitched(ev)
	}
}

func (o *CallOrchestrator) onMediaReady(result *AcquisitionResult) {
	o.stream = result.Stream
	o.mu.Lock()
	o.session.Profile = result.Profile
	o.mu.Unlock()
	if result.FallbackApplied {
		o.log.Warnw("capture degraded during acquisition",
			"tier", result.Profile.Tier, "failed_tiers", result.FailedTiers)
	}
	o.transition(domain.StatusAwaitingRoom)

	go func() {
		ice, err := o.deps.Booking.FetchICEServers(o.runCtx)
		if err != nil {
			o.post(evRoomFailed{err: err})
			return
		}
		roomID, sessionType, err := o.deps.Booking.GenerateRoom(o.runCtx, o.cfg.SessionID)
		if err != nil {
			o.post(evRoomFailed{err: err})
			return
		}
		o.log.Infow("room generated", "room_id", roomID, "session_type", sessionType)
		if err := o.deps.Signaling.Connect(o.runCtx); err != nil {
			o.post(evRoomFailed{err: err})
			return
		}
		go o.pumpSignaling()
		if err := o.deps.Signaling.JoinRoom(o.runCtx, roomID, o.cfg.SessionID); err != nil {
			o.post(evRoomFailed{err: err})
			return
		}
		o.post(evRoomReady{roomID: roomID, ice: ice})
	}()
}

func (o *CallOrchestrator) pumpSignaling() {
	for {
		select {
		case <-o.done:
			return
		case ev, ok := <-o.deps.Signaling.Events():
			if !ok {
				return
			}
			o.post(evSignaling{ev: ev})
		}
	}
}

func (o *CallOrchestrator) onRoomReady(roomID domain.RoomID, ice []domain.ICEServer) {
	o.iceServers = ice
	o.mu.Lock()
	o.session.RoomID = roomID
	o.mu.Unlock()
}

func (o *CallOrchestrator) onSignaling(ev domain.SignalingEvent) {
	switch ev := ev.(type) {
	case domain.JoinSuccess:
		o.mu.Lock()
		o.session.ParticipantID = ev.SelfID
		o.mu.Unlock()
		if ev.ParticipantCount <= 1 {
			o.transition(domain.StatusWaitingForPeer)
			o.joinTimer = time.AfterFunc(o.cfg.PeerJoinTimeout, func() { o.post(evJoinTimeout{}) })
		}
	case domain.JoinError:
		o.fail(errors.NewSignalingError("join rejected: "+ev.Reason, nil))
	case domain.ExistingParticipants:
		if len(ev.Participants) == 0 {
			return
		}
		o.assignRole(domain.RoleInitiator, ev.Participants[0])
	case domain.PeerJoined:
		o.assignRole(domain.RoleReceiver, ev.PeerID)
	case domain.PeerLeft:
		o.log.Infow("peer left, ending call", "peer_id", ev.PeerID)
		o.finish(nil)
	case domain.RemoteSignal:
		o.onRemoteSignal(ev)
	case domain.TransportDown:
		o.fail(errors.NewSignalingError("signaling transport lost", ev.Err))
	}
}

// assignRole fixes role and peer identity once, then moves into
// negotiation. Later join-order events for the same peer are ignored.
func (o *CallOrchestrator) assignRole(role domain.Role, peer domain.ParticipantID) {
	o.mu.Lock()
	if o.session.Role != domain.RoleUnassigned {
		o.mu.Unlock()
		return
	}
	o.session.Role = role
	o.session.PeerID = peer
	o.mu.Unlock()

	if o.joinTimer != nil {
		o.joinTimer.Stop()
		o.joinTimer = nil
	}
	o.log.Infow("role assigned", "role", role, "peer_id", peer)
	if !o.transition(domain.StatusNegotiating) {
		return
	}
	o.notifyStartedOnce()
	o.openLink(role)
}

func (o *CallOrchestrator) openLink(role domain.Role) {
	link, err := o.deps.Peers.New(ports.PeerLinkConfig{
		Role:       role,
		ICEServers: o.iceServers,
	}, o.activeStream(), ports.PeerLinkEvents{
		OnLocalSignal:  func(sig domain.Signal) { o.post(evLocalSignal{sig: sig}) },
		OnRemoteStream: func() { o.post(evRemoteStream{}) },
		OnClosed:       func() { o.post(evPeerClosed{}) },
		OnError:        func(err error) { o.post(evPeerError{err: err}) },
	})
	if err != nil {
		o.fail(errors.NewPeerConnectionError("peer link setup failed", err))
		return
	}
	o.link = link

	for _, pending := range o.pendingSignals {
		o.applySignal(pending)
	}
	o.pendingSignals = nil

	if role == domain.RoleInitiator {
		if err := link.StartNegotiation(o.runCtx); err != nil {
			o.onLinkDown(domain.TriggerICEFailure, err)
		}
	}
}

func (o *CallOrchestrator) onRemoteSignal(ev domain.RemoteSignal) {
	sess := o.Session()

	// Offer glare: both sides joined at once and both decided to
	// initiate. The lexicographically smaller socket id keeps the
	// initiator role; the other side reverts to receiver and answers.
	if ev.Signal.Kind == domain.SignalOffer && sess.Role == domain.RoleInitiator {
		if sess.ParticipantID < ev.From {
			o.log.Debugw("ignoring glare offer, local side initiates", "from", ev.From)
			return
		}
		o.log.Infow("glare detected, reverting to receiver", "from", ev.From)
		o.mu.Lock()
		o.session.Role = domain.RoleReceiver
		o.mu.Unlock()
		if o.link != nil {
			o.link.Close()
		}
		o.pendingSignals = append(o.pendingSignals, ev)
		o.openLink(domain.RoleReceiver)
		return
	}

	if o.link == nil {
		o.pendingSignals = append(o.pendingSignals, ev)
		return
	}
	o.applySignal(ev)
}

func (o *CallOrchestrator) applySignal(ev domain.RemoteSignal) {
	if err := o.link.ApplyRemoteSignal(o.runCtx, ev.Signal); err != nil {
		o.log.Warnw("failed to apply remote signal",
			"kind", ev.Signal.Kind, "from", ev.From, "error", err)
	}
}

func (o *CallOrchestrator) sendSignal(sig domain.Signal) {
	sess := o.Session()
	if sess.PeerID == "" {
		return
	}
	go func() {
		if err := o.deps.Signaling.SendSignal(o.runCtx, sess.PeerID, sig); err != nil {
			o.log.Warnw("failed to send signal", "kind", sig.Kind, "error", err)
		}
	}()
}

func (o *CallOrchestrator) onConnected() {
	if !o.transition(domain.StatusConnected) {
		return
	}
	now := time.Now()
	o.mu.Lock()
	firstConnect := o.session.StartedAt.IsZero()
	if firstConnect {
		o.session.StartedAt = now
	}
	o.session.Attempt.Reset()
	o.mu.Unlock()
	if firstConnect {
		o.deps.Metrics.RecordCallStarted()
	}
	o.completedTries = 0
	o.deps.Degrader.Reset(now)

	o.monitor = NewQualityMonitor(
		o.deps.Classifier,
		o.cfg.SampleInterval,
		o.cfg.OfflineGrace,
		o.cfg.SampleWindow,
		func(level domain.QualityLevel, sample domain.QualitySample) {
			o.post(evQuality{level: level, sample: sample})
		},
		o.log,
	)
	o.monitor.Start(o.runCtx, o.link)
}

func (o *CallOrchestrator) onQuality(level domain.QualityLevel, sample domain.QualitySample) {
	status := o.Status()
	if !status.Live() {
		return
	}
	o.deps.Metrics.RecordQualityLevel(level)

	if level.Usable() {
		if status == domain.StatusDegraded {
			o.transition(domain.StatusConnected)
		}
	} else if status == domain.StatusConnected {
		o.transition(domain.StatusDegraded)
	}

	tier := o.Session().Profile.Tier
	switch o.deps.Degrader.Observe(level, tier, time.Now()) {
	case ActionStepDown:
		o.switchTier(tier.Lower())
	case ActionStepUp:
		o.switchTier(tier.Higher())
	case ActionReconnect:
		o.beginReconnect(domain.TriggerQualityOffline, nil)
	}
	o.log.Debugw("quality observed", "level", level,
		"loss", sample.PacketLossRatio, "rtt", sample.RoundTripTime)
}

// switchTier reacquires capture at the target tier off the loop, then
// swaps the outgoing video track in place. The call stays live
// throughout; a failed switch keeps the current stream.
func (o *CallOrchestrator) switchTier(target domain.MediaTier) {
	current := o.Session().Profile.Tier
	if o.switching || o.sharingScreen || target == current {
		return
	}
	o.switching = true
	o.log.Infow("switching media tier", "from", current, "to", target)
	go func() {
		stream, err := o.deps.Media.Reacquire(o.runCtx, target)
		o.post(evTierSwitched{stream: stream, tier: target, err: err})
	}()
}

func (o *CallOrchestrator) onTierSwitched(ev evTierSwitched) {
	o.switching = false
	if ev.err != nil {
		o.log.Warnw("tier switch failed, keeping current capture",
			"target", ev.tier, "error", ev.err)
		return
	}
	if !o.Status().Live() || o.link == nil {
		ev.stream.Close()
		return
	}
	if err := o.link.ReplaceVideoTrack(ev.stream.VideoTrack()); err != nil {
		o.log.Warnw("track replacement failed", "target", ev.tier, "error", err)
		ev.stream.Close()
		return
	}
	old := o.stream
	o.stream = ev.stream
	if old != nil {
		old.Close()
	}
	o.mu.Lock()
	prev := o.session.Profile.Tier
	o.session.Profile = domain.ProfileFor(ev.tier)
	o.mu.Unlock()
	direction := "up"
	if ev.tier > prev {
		direction = "down"
	}
	o.deps.Metrics.RecordTierSwitch(direction)
	o.publish()
}

func (o *CallOrchestrator) toggleScreen() error {
	if !o.Status().Live() || o.link == nil {
		return errors.New(errors.KindInternal, "screen share requires a live call")
	}
	if o.sharingScreen {
		if err := o.link.ReplaceVideoTrack(o.stream.VideoTrack()); err != nil {
			return errors.NewPeerConnectionError("failed to restore camera track", err)
		}
		if o.screenStream != nil {
			o.screenStream.Close()
			o.screenStream = nil
		}
		o.sharingScreen = false
		o.log.Infow("screen share stopped")
		return nil
	}

	if o.deps.ScreenSource == nil {
		return errors.New(errors.KindMedia, "no screen capture source configured")
	}
	tier := o.Session().Profile.Tier
	screen, err := o.deps.ScreenSource.Acquire(o.runCtx, domain.DefaultConstraints[tier])
	if err != nil {
		return errors.NewMediaError("screen capture failed", err)
	}
	if err := o.link.ReplaceVideoTrack(screen.VideoTrack()); err != nil {
		screen.Close()
		return errors.NewPeerConnectionError("failed to publish screen track", err)
	}
	o.screenStream = screen
	o.sharingScreen = true
	o.log.Infow("screen share started")
	return nil
}

func (o *CallOrchestrator) activeStream() ports.LocalStream {
	if o.sharingScreen && o.screenStream != nil {
		return o.screenStream
	}
	return o.stream
}

func (o *CallOrchestrator) onLinkDown(reason domain.TriggerReason, cause error) {
	status := o.Status()
	if status.Terminal() || status == domain.StatusReconnecting {
		return
	}
	switch status {
	case domain.StatusNegotiating, domain.StatusConnected, domain.StatusDegraded:
		o.beginReconnect(reason, cause)
	}
}

func (o *CallOrchestrator) beginReconnect(reason domain.TriggerReason, cause error) {
	o.stopMonitor()
	if o.link != nil {
		o.link.Close()
		o.link = nil
	}

	attempt, ok := o.deps.Policy.NextAttempt(o.completedTries, reason)
	if !ok {
		o.fail(errors.NewExhaustedRetriesError(o.completedTries, cause))
		return
	}
	o.completedTries++
	o.mu.Lock()
	o.session.Attempt = attempt
	o.mu.Unlock()

	if !o.transition(domain.StatusReconnecting) {
		return
	}
	o.deps.Metrics.RecordReconnectAttempt()
	o.log.Warnw("scheduling reconnection",
		"attempt", attempt.Number, "delay", attempt.ScheduledDelay, "reason", reason)
	o.reconnectTimer = time.AfterFunc(attempt.ScheduledDelay, func() { o.post(evReconnectFire{}) })
}

func (o *CallOrchestrator) onReconnectFire() {
	if o.Status() != domain.StatusReconnecting {
		return
	}
	if !o.transition(domain.StatusNegotiating) {
		return
	}
	o.pendingSignals = nil
	o.openLink(o.Session().Role)
}

func (o *CallOrchestrator) notifyStartedOnce() {
	if o.startNotified {
		return
	}
	o.startNotified = true
	go func() {
		err := o.deps.Breaker.Execute(o.runCtx, func(ctx context.Context) error {
			return o.deps.Booking.NotifyCallStarted(ctx, o.cfg.SessionID)
		})
		if err != nil {
			o.log.Warnw("call-started notification failed", "error", err)
		}
	}()
}

// transition applies a lifecycle step if the table allows it, then
// publishes a snapshot. Illegal steps are dropped with a log line.
func (o *CallOrchestrator) transition(to domain.CallStatus) bool {
	o.mu.Lock()
	from := o.session.Status
	if from == to {
		o.mu.Unlock()
		return true
	}
	if !domain.CanTransition(from, to) {
		o.mu.Unlock()
		o.log.Warnw("rejected lifecycle transition", "from", from, "to", to)
		return false
	}
	o.session.Status = to
	o.mu.Unlock()
	o.log.Infow("lifecycle transition", "from", from, "to", to)
	o.publish()
	return true
}

func (o *CallOrchestrator) publish() {
	o.mu.RLock()
	update := StateUpdate{
		Status:  o.session.Status,
		Tier:    o.session.Profile.Tier,
		Attempt: o.session.Attempt,
		Err:     o.endErr,
	}
	o.mu.RUnlock()
	select {
	case o.updates <- update:
	default:
	}
}

func (o *CallOrchestrator) fail(err error) {
	o.teardown(domain.StatusFailed, err)
}

func (o *CallOrchestrator) finish(err error) {
	o.teardown(domain.StatusEnded, err)
}

// teardown releases every resource exactly once. A second call, from
// any path, is a no-op.
func (o *CallOrchestrator) teardown(final domain.CallStatus, err error) {
	o.endOnce.Do(func() {
		o.mu.Lock()
		o.endErr = err
		from := o.session.Status
		if !from.Terminal() {
			o.session.Status = final
		}
		if !o.session.StartedAt.IsZero() && o.session.EndedAt.IsZero() {
			o.session.EndedAt = time.Now()
		}
		session := o.session
		o.mu.Unlock()
		o.log.Infow("session teardown", "from", from, "final", session.Status, "error", err)
		if !session.StartedAt.IsZero() {
			o.deps.Metrics.RecordCallEnded(session.EndedAt.Sub(session.StartedAt))
		}

		o.stopMonitor()
		if o.joinTimer != nil {
			o.joinTimer.Stop()
		}
		if o.reconnectTimer != nil {
			o.reconnectTimer.Stop()
		}
		if o.link != nil {
			o.link.Close()
			o.link = nil
		}
		if o.screenStream != nil {
			o.screenStream.Close()
			o.screenStream = nil
		}
		if o.stream != nil {
			o.stream.Close()
			o.stream = nil
		}
		o.deps.Signaling.Close()

		if o.startNotified {
			minutes := session.DurationMinutes()
			notifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			notifyErr := o.deps.Breaker.Execute(notifyCtx, func(ctx context.Context) error {
				return o.deps.Booking.NotifyCallEnded(ctx, o.cfg.SessionID, minutes)
			})
			if notifyErr != nil {
				o.log.Warnw("call-ended notification failed", "error", notifyErr)
			}
		}

		o.publish()
		if o.cancel != nil {
			o.cancel()
		}
		close(o.done)
	})
}

func (o *CallOrchestrator) stopMonitor() {
	if o.monitor != nil {
		o.monitor.Stop()
		o.monitor = nil
	}
}
