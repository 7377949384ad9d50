package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	apperrors "telecall/pkg/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ClientConfig tunes the signaling transport. Transport retry is bounded
// and independent of the media reconnection strategy.
type ClientConfig struct {
	URL               string
	Token             string
	UserName          string
	DialTimeout       time.Duration
	ReconnectAttempts uint64
	ReconnectDelay    time.Duration
	WriteTimeout      time.Duration
}

func (c *ClientConfig) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ReconnectAttempts == 0 {
		c.ReconnectAttempts = 3
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Client is one participant's websocket connection to the relay. It
// translates wire envelopes into domain signaling events and drops any
// handshake message addressed to a room other than the joined one.
type Client struct {
	cfg    ClientConfig
	logger *zap.SugaredLogger

	mu     sync.Mutex
	conn   *websocket.Conn
	roomID domain.RoomID
	sessID domain.SessionID
	joined bool

	events    chan domain.SignalingEvent
	closeOnce sync.Once
	closed    chan struct{}
}

var _ ports.SignalingChannel = (*Client)(nil)

func NewClient(cfg ClientConfig, logger *zap.SugaredLogger) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:    cfg,
		logger: logger,
		events: make(chan domain.SignalingEvent, 32),
		closed: make(chan struct{}),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return apperrors.NewSignalingError("signaling dial failed", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	go c.readLoop(ctx, conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	var conn *websocket.Conn
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.ReconnectDelay), c.cfg.ReconnectAttempts),
		ctx,
	)
	err := backoff.Retry(func() error {
		var err error
		conn, _, err = dialer.DialContext(ctx, c.cfg.URL, header) //nolint:bodyclose
		if err != nil {
			c.logger.Warnw("signaling dial attempt failed", "url", c.cfg.URL, "error", err)
		}
		return err
	}, policy)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomID domain.RoomID, sessionID domain.SessionID) error {
	c.mu.Lock()
	c.roomID = roomID
	c.sessID = sessionID
	c.joined = true
	c.mu.Unlock()

	env, err := newEnvelope(TypeJoinRoom, roomID, JoinRoomPayload{
		SessionID: sessionID,
		UserName:  c.cfg.UserName,
	})
	if err != nil {
		return err
	}
	return c.write(env)
}

func (c *Client) SendSignal(ctx context.Context, to domain.ParticipantID, sig domain.Signal) error {
	c.mu.Lock()
	roomID := c.roomID
	c.mu.Unlock()

	env, err := signalEnvelope(sig, to, roomID)
	if err != nil {
		return err
	}
	if err := c.write(env); err != nil {
		return apperrors.NewSignalingError(fmt.Sprintf("failed to send %s", env.Type), err)
	}
	return nil
}

func (c *Client) Events() <-chan domain.SignalingEvent { return c.events }

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		}
	})
	return nil
}

func (c *Client) write(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return apperrors.New(apperrors.KindSignaling, "signaling channel not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteJSON(env)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer close(c.events)
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			// Transport dropped mid-call. Redial with the bounded
			// constant-delay policy and rejoin; only when that budget is
			// spent does the failure surface.
			if c.rejoin(ctx) {
				c.mu.Lock()
				conn = c.conn
				c.mu.Unlock()
				continue
			}
			c.emit(domain.TransportDown{Err: err})
			return
		}
		c.dispatch(env)
	}
}

func (c *Client) rejoin(ctx context.Context) bool {
	c.mu.Lock()
	joined := c.joined
	roomID := c.roomID
	sessionID := c.sessID
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return false
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.Infow("signaling transport restored", "room_id", roomID)

	if joined {
		if err := c.JoinRoom(ctx, roomID, sessionID); err != nil {
			c.logger.Warnw("rejoin after transport loss failed", "error", err)
			return false
		}
	}
	return true
}

// dispatch converts one wire envelope into a domain event. Handshake
// envelopes for a foreign room are discarded outright; they must not
// reach the orchestrator.
func (c *Client) dispatch(env Envelope) {
	c.mu.Lock()
	room := c.roomID
	c.mu.Unlock()

	switch env.Type {
	case TypeJoinSuccess, TypeJoinError, TypeExistingParticipants,
		TypeUserJoined, TypeUserLeft, TypeOffer, TypeAnswer, TypeICECandidate:
		if env.RoomID != room {
			c.logger.Warnw("discarding message for foreign room",
				"type", env.Type, "room_id", env.RoomID, "own_room", room)
			return
		}
	}

	switch env.Type {
	case TypeJoinSuccess:
		var p JoinSuccessPayload
		if c.unmarshal(env, &p) {
			c.emit(domain.JoinSuccess{SelfID: p.SocketID, ParticipantCount: p.ParticipantCount})
		}
	case TypeJoinError:
		var p JoinErrorPayload
		if c.unmarshal(env, &p) {
			c.emit(domain.JoinError{Reason: p.Reason})
		}
	case TypeExistingParticipants:
		var p ExistingParticipantsPayload
		if c.unmarshal(env, &p) {
			ids := make([]domain.ParticipantID, 0, len(p.Participants))
			for _, info := range p.Participants {
				ids = append(ids, info.SocketID)
			}
			c.emit(domain.ExistingParticipants{Participants: ids})
		}
	case TypeUserJoined:
		var p UserJoinedPayload
		if c.unmarshal(env, &p) {
			c.emit(domain.PeerJoined{PeerID: p.SocketID, UserName: p.UserName})
		}
	case TypeUserLeft:
		var p UserLeftPayload
		if c.unmarshal(env, &p) {
			c.emit(domain.PeerLeft{PeerID: p.SocketID, UserName: p.UserName})
		}
	case TypeOffer:
		var p OfferPayload
		if c.unmarshal(env, &p) {
			c.emit(domain.RemoteSignal{From: env.From, Signal: domain.Signal{Kind: domain.SignalOffer, SDP: p.Offer}})
		}
	case TypeAnswer:
		var p AnswerPayload
		if c.unmarshal(env, &p) {
			c.emit(domain.RemoteSignal{From: env.From, Signal: domain.Signal{Kind: domain.SignalAnswer, SDP: p.Answer}})
		}
	case TypeICECandidate:
		var p ICECandidatePayload
		if c.unmarshal(env, &p) {
			c.emit(domain.RemoteSignal{From: env.From, Signal: domain.Signal{Kind: domain.SignalICECandidate, Candidate: p.Candidate}})
		}
	case TypeCallStatus, TypeCallStarted, TypeCallEnded:
		c.logger.Debugw("call telemetry broadcast", "type", env.Type)
	case TypeCallError:
		var p CallErrorPayload
		if c.unmarshal(env, &p) {
			c.logger.Warnw("relay reported error", "error", p.Error)
		}
	default:
		c.logger.Debugw("ignoring unknown message type", "type", env.Type)
	}
}

func (c *Client) unmarshal(env Envelope, out interface{}) bool {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		c.logger.Warnw("malformed payload", "type", env.Type, "error", err)
		return false
	}
	return true
}

func (c *Client) emit(ev domain.SignalingEvent) {
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}
