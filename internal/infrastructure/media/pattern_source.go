package media

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	apperrors "telecall/pkg/errors"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const (
	videoClockRate = 90000
	audioClockRate = 48000
	audioFrameMs   = 20
)

// PatternSource synthesizes RTP media at the requested constraints. It
// stands in for camera or screen capture in headless builds and tests;
// the rest of the pipeline cannot tell the difference.
type PatternSource struct {
	label  string
	logger *zap.SugaredLogger
}

func NewPatternSource(label string, logger *zap.SugaredLogger) *PatternSource {
	return &PatternSource{label: label, logger: logger}
}

var _ ports.MediaSource = (*PatternSource)(nil)

func (s *PatternSource) Acquire(ctx context.Context, constraints domain.MediaConstraints) (ports.LocalStream, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: audioClockRate, Channels: 2},
		"audio", s.label+"-audio",
	)
	if err != nil {
		return nil, apperrors.NewMediaError("failed to create audio track", err)
	}

	stream := &patternStream{
		constraints: constraints,
		audio:       audio,
		done:        make(chan struct{}),
		logger:      s.logger,
	}

	if constraints.VideoEnabled {
		video, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: videoClockRate},
			"video", s.label+"-video",
		)
		if err != nil {
			return nil, apperrors.NewMediaError("failed to create video track", err)
		}
		stream.video = video
		stream.wg.Add(1)
		go stream.pumpVideo()
	}

	stream.wg.Add(1)
	go stream.pumpAudio()

	s.logger.Infow("pattern capture started",
		"label", s.label,
		"video", constraints.VideoEnabled,
		"width", constraints.Width,
		"height", constraints.Height,
		"fps", constraints.FrameRate,
	)
	return stream, nil
}

type patternStream struct {
	constraints domain.MediaConstraints
	audio       *webrtc.TrackLocalStaticRTP
	video       *webrtc.TrackLocalStaticRTP

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	logger    *zap.SugaredLogger
}

var _ ports.LocalStream = (*patternStream)(nil)

func (p *patternStream) Constraints() domain.MediaConstraints { return p.constraints }

func (p *patternStream) VideoTrack() webrtc.TrackLocal {
	if p.video == nil {
		return nil
	}
	return p.video
}

func (p *patternStream) AudioTrack() webrtc.TrackLocal { return p.audio }

func (p *patternStream) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
	return nil
}

// pumpVideo paces synthetic VP8-sized payloads at the configured frame
// rate and bitrate.
func (p *patternStream) pumpVideo() {
	defer p.wg.Done()

	fps := p.constraints.FrameRate
	if fps <= 0 {
		fps = 30
	}
	interval := time.Second / time.Duration(fps)
	// bytes per frame from the kbps budget
	frameSize := p.constraints.VideoBitrate * 1000 / 8 / fps
	if frameSize < 100 {
		frameSize = 100
	}
	if frameSize > 1200 {
		frameSize = 1200
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SSRC:           rng.Uint32(),
			SequenceNumber: uint16(rng.Intn(1 << 16)),
		},
		Payload: make([]byte, frameSize),
	}
	rng.Read(pkt.Payload)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			pkt.Header.SequenceNumber++
			pkt.Header.Timestamp += uint32(videoClockRate / fps)
			if err := p.video.WriteRTP(&pkt); err != nil {
				p.logger.Debugw("video pump stopped", "error", err)
				return
			}
		}
	}
}

func (p *patternStream) pumpAudio() {
	defer p.wg.Done()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    111,
			SSRC:           rng.Uint32(),
			SequenceNumber: uint16(rng.Intn(1 << 16)),
		},
		Payload: make([]byte, 160),
	}
	rng.Read(pkt.Payload)

	ticker := time.NewTicker(audioFrameMs * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			pkt.Header.SequenceNumber++
			pkt.Header.Timestamp += audioClockRate * audioFrameMs / 1000
			if err := p.audio.WriteRTP(&pkt); err != nil {
				p.logger.Debugw("audio pump stopped", "error", err)
				return
			}
		}
	}
}
