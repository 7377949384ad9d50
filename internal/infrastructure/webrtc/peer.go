package webrtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	apperrors "telecall/pkg/errors"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// LinkFactory builds pion-backed peer links.
type LinkFactory struct {
	logger *zap.SugaredLogger
}

func NewLinkFactory(logger *zap.SugaredLogger) *LinkFactory {
	return &LinkFactory{logger: logger}
}

var _ ports.PeerLinkFactory = (*LinkFactory)(nil)

func (f *LinkFactory) New(cfg ports.PeerLinkConfig, stream ports.LocalStream, events ports.PeerLinkEvents) (ports.PeerLink, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: toICEServers(cfg.ICEServers),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	link := &PeerLink{
		pc:     pc,
		role:   cfg.Role,
		events: events,
		logger: f.logger.With("role", cfg.Role),
		done:   make(chan struct{}),
	}

	if audio := stream.AudioTrack(); audio != nil {
		sender, err := pc.AddTrack(audio)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to add audio track: %w", err)
		}
		go link.rtcpLoop(sender)
	}
	if video := stream.VideoTrack(); video != nil {
		sender, err := pc.AddTrack(video)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to add video track: %w", err)
		}
		link.videoSender = sender
		go link.rtcpLoop(sender)
	}

	link.setupCallbacks()
	return link, nil
}

func toICEServers(servers []domain.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		server := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, server)
	}
	return out
}

// PeerLink owns one webrtc.PeerConnection for a mesh-of-two call.
type PeerLink struct {
	pc     *webrtc.PeerConnection
	role   domain.Role
	events ports.PeerLinkEvents
	logger *zap.SugaredLogger

	mu                sync.Mutex
	videoSender       *webrtc.RTPSender
	pendingCandidates []webrtc.ICECandidateInit
	remoteSet         bool

	// latest RTCP receiver-report view of the outbound streams
	rtcpMu       sync.RWMutex
	fractionLost float64
	rtcpJitter   time.Duration

	remoteOnce sync.Once
	closeOnce  sync.Once
	done       chan struct{}
}

var _ ports.PeerLink = (*PeerLink)(nil)

// setupCallbacks registers every pion callback in one place.
func (l *PeerLink) setupCallbacks() {
	l.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		raw, err := json.Marshal(candidate.ToJSON())
		if err != nil {
			l.logger.Warnw("failed to marshal ICE candidate", "error", err)
			return
		}
		l.events.OnLocalSignal(domain.Signal{Kind: domain.SignalICECandidate, Candidate: raw})
	})

	l.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		l.logger.Infow("remote track arrived",
			"kind", track.Kind(), "codec", track.Codec().MimeType, "ssrc", track.SSRC())
		l.remoteOnce.Do(func() { l.events.OnRemoteStream() })
		go l.drainTrack(track)
	})

	l.pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		l.logger.Debugw("ICE connection state", "state", state)
		if state == webrtc.ICEConnectionStateFailed {
			l.events.OnError(apperrors.NewPeerConnectionError("ICE connectivity failed", nil))
		}
	})

	l.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		l.logger.Debugw("peer connection state", "state", state)
		switch state {
		case webrtc.PeerConnectionStateFailed:
			l.events.OnError(apperrors.NewPeerConnectionError("peer connection failed", nil))
		case webrtc.PeerConnectionStateClosed:
			l.events.OnClosed()
		}
	})
}

func (l *PeerLink) StartNegotiation(ctx context.Context) error {
	if l.role != domain.RoleInitiator {
		return fmt.Errorf("negotiation starts on the initiator side only")
	}
	return l.sendOffer()
}

func (l *PeerLink) sendOffer() error {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return apperrors.NewPeerConnectionError("failed to create offer", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return apperrors.NewPeerConnectionError("failed to set local description", err)
	}
	l.events.OnLocalSignal(domain.Signal{Kind: domain.SignalOffer, SDP: offer.SDP})
	return nil
}

func (l *PeerLink) ApplyRemoteSignal(ctx context.Context, sig domain.Signal) error {
	switch sig.Kind {
	case domain.SignalOffer:
		return l.applyOffer(sig.SDP)
	case domain.SignalAnswer:
		return l.applyAnswer(sig.SDP)
	case domain.SignalICECandidate:
		return l.applyCandidate(sig.Candidate)
	default:
		return fmt.Errorf("unknown signal kind %q", sig.Kind)
	}
}

func (l *PeerLink) applyOffer(sdp string) error {
	if err := l.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	}); err != nil {
		return apperrors.NewPeerConnectionError("failed to apply remote offer", err)
	}
	l.flushCandidates()

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return apperrors.NewPeerConnectionError("failed to create answer", err)
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return apperrors.NewPeerConnectionError("failed to set local description", err)
	}
	l.events.OnLocalSignal(domain.Signal{Kind: domain.SignalAnswer, SDP: answer.SDP})
	return nil
}

func (l *PeerLink) applyAnswer(sdp string) error {
	if err := l.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	}); err != nil {
		return apperrors.NewPeerConnectionError("failed to apply remote answer", err)
	}
	l.flushCandidates()
	return nil
}

// applyCandidate queues trickled candidates that arrive before the
// remote description; pion rejects them otherwise.
func (l *PeerLink) applyCandidate(raw json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return fmt.Errorf("malformed ICE candidate: %w", err)
	}

	l.mu.Lock()
	if !l.remoteSet {
		l.pendingCandidates = append(l.pendingCandidates, candidate)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := l.pc.AddICECandidate(candidate); err != nil {
		return apperrors.NewPeerConnectionError("failed to add ICE candidate", err)
	}
	return nil
}

func (l *PeerLink) flushCandidates() {
	l.mu.Lock()
	l.remoteSet = true
	pending := l.pendingCandidates
	l.pendingCandidates = nil
	l.mu.Unlock()

	for _, candidate := range pending {
		if err := l.pc.AddICECandidate(candidate); err != nil {
			l.logger.Warnw("failed to add queued ICE candidate", "error", err)
		}
	}
}

// ReplaceVideoTrack swaps the outgoing video in place. When the sender
// cannot replace tracks it renegotiates with a fresh offer instead.
func (l *PeerLink) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	l.mu.Lock()
	sender := l.videoSender
	l.mu.Unlock()

	if sender == nil {
		if track == nil {
			return nil
		}
		newSender, err := l.pc.AddTrack(track)
		if err != nil {
			return apperrors.NewPeerConnectionError("failed to add replacement video track", err)
		}
		l.mu.Lock()
		l.videoSender = newSender
		l.mu.Unlock()
		go l.rtcpLoop(newSender)
		return l.sendOffer()
	}

	if err := sender.ReplaceTrack(track); err == nil {
		return nil
	} else {
		l.logger.Warnw("in-place track replacement unsupported, renegotiating", "error", err)
	}

	if err := l.pc.RemoveTrack(sender); err != nil {
		return apperrors.NewPeerConnectionError("failed to remove video track", err)
	}
	l.mu.Lock()
	l.videoSender = nil
	l.mu.Unlock()

	if track != nil {
		newSender, err := l.pc.AddTrack(track)
		if err != nil {
			return apperrors.NewPeerConnectionError("failed to add replacement video track", err)
		}
		l.mu.Lock()
		l.videoSender = newSender
		l.mu.Unlock()
		go l.rtcpLoop(newSender)
	}
	return l.sendOffer()
}

// rtcpLoop reads receiver reports for one outbound stream. The remote's
// fraction-lost is the loss figure the quality monitor cares about.
func (l *PeerLink) rtcpLoop(sender *webrtc.RTPSender) {
	for {
		packets, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, packet := range packets {
			report, ok := packet.(*rtcp.ReceiverReport)
			if !ok {
				continue
			}
			for _, block := range report.Reports {
				l.rtcpMu.Lock()
				l.fractionLost = float64(block.FractionLost) / 256.0
				// Interarrival jitter is in RTP clock units; both opus
				// and VP8 run high-rate clocks, so scale by the video
				// clock for a usable wall-time figure.
				l.rtcpJitter = time.Duration(float64(block.Jitter) / 90000.0 * float64(time.Second))
				l.rtcpMu.Unlock()
			}
		}
		select {
		case <-l.done:
			return
		default:
		}
	}
}

// Sample merges the RTCP receiver-report view with ICE candidate-pair
// stats into one quality measurement.
func (l *PeerLink) Sample(ctx context.Context) (domain.QualitySample, error) {
	select {
	case <-l.done:
		return domain.QualitySample{}, fmt.Errorf("peer link closed")
	default:
	}

	sample := domain.QualitySample{Timestamp: time.Now()}

	l.rtcpMu.RLock()
	sample.PacketLossRatio = l.fractionLost
	sample.Jitter = l.rtcpJitter
	l.rtcpMu.RUnlock()

	applyConnectionStats(&sample, l.pc.GetStats())

	return sample, nil
}

// applyConnectionStats fills RTT and bandwidth from a stats report.
func applyConnectionStats(sample *domain.QualitySample, stats webrtc.StatsReport) {
	for _, stat := range stats {
		switch s := stat.(type) {
		case webrtc.ICECandidatePairStats:
			if s.State != webrtc.StatsICECandidatePairStateSucceeded {
				continue
			}
			if s.CurrentRoundTripTime > 0 {
				sample.RoundTripTime = time.Duration(s.CurrentRoundTripTime * float64(time.Second))
			}
			if s.AvailableOutgoingBitrate > 0 {
				// Stats report bits per second, the sample carries kbps.
				sample.AvailableBitrate = int(s.AvailableOutgoingBitrate / 1000)
			}
		case webrtc.RemoteInboundRTPStreamStats:
			if s.RoundTripTime > 0 && sample.RoundTripTime == 0 {
				sample.RoundTripTime = time.Duration(s.RoundTripTime * float64(time.Second))
			}
		}
	}
}

func (l *PeerLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.pc.Close()
	})
	return err
}

// drainTrack keeps the remote track's RTP flowing so feedback and
// congestion control stay accurate.
func (l *PeerLink) drainTrack(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
		select {
		case <-l.done:
			return
		default:
		}
	}
}
