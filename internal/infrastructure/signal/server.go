package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// RelayMetrics receives relay counters. The monitoring package provides
// the prometheus-backed implementation.
type RelayMetrics interface {
	ParticipantJoined(roomID domain.RoomID)
	ParticipantLeft(roomID domain.RoomID)
	JoinRejected(reason string)
	MessageRelayed(msgType string)
}

type noopMetrics struct{}

func (noopMetrics) ParticipantJoined(domain.RoomID) {}
func (noopMetrics) ParticipantLeft(domain.RoomID)   {}
func (noopMetrics) JoinRejected(string)             {}
func (noopMetrics) MessageRelayed(string)           {}

type relayConn struct {
	socketID domain.ParticipantID
	userName string
	roomID   domain.RoomID
	conn     *websocket.Conn
	writeMu  sync.Mutex
}

// Relay is the reference signaling server: rooms of at most two
// participants, handshake messages forwarded only between members of
// the same room.
type Relay struct {
	rooms ports.RoomRepository

	connections map[domain.ParticipantID]*relayConn
	mu          sync.RWMutex

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
	msgRate      rate.Limit
	msgBurst     int

	metrics RelayMetrics
	logger  *zap.SugaredLogger
}

type RelayOption func(*Relay)

func WithKeepalive(pingInterval, pongTimeout time.Duration) RelayOption {
	return func(r *Relay) {
		r.pingInterval = pingInterval
		r.pongTimeout = pongTimeout
	}
}

func WithWriteTimeout(timeout time.Duration) RelayOption {
	return func(r *Relay) { r.writeTimeout = timeout }
}

func WithMessageRate(perSecond float64, burst int) RelayOption {
	return func(r *Relay) {
		r.msgRate = rate.Limit(perSecond)
		r.msgBurst = burst
	}
}

func WithRelayMetrics(m RelayMetrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func NewRelay(rooms ports.RoomRepository, logger *zap.SugaredLogger, opts ...RelayOption) *Relay {
	r := &Relay{
		rooms:        rooms,
		connections:  make(map[domain.ParticipantID]*relayConn),
		pingInterval: 30 * time.Second,
		pongTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		msgRate:      rate.Limit(50),
		msgBurst:     100,
		metrics:      noopMetrics{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handler exposes the websocket endpoint as an http.Handler.
func (s *Relay) Handler() http.Handler {
	return http.HandlerFunc(s.HandleWebSocket)
}

func (s *Relay) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The auth middleware forwards the verified name; the query value is
	// a fallback for unauthenticated test setups.
	userName := r.Header.Get("X-User-Name")
	if userName == "" {
		userName = r.URL.Query().Get("userName")
	}

	client := &relayConn{
		socketID: domain.ParticipantID(utils.GenerateParticipantID()),
		userName: userName,
		conn:     conn,
	}

	s.mu.Lock()
	s.connections[client.socketID] = client
	s.mu.Unlock()
	s.logger.Infow("participant connected", "socket_id", client.socketID, "user_name", client.userName)

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan Envelope, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
			messageChan <- env
		}
	}()

	limiter := rate.NewLimiter(s.msgRate, s.msgBurst)

	for {
		select {
		case env := <-messageChan:
			if !limiter.Allow() {
				s.sendError(client, "message rate exceeded")
				continue
			}
			if err := s.handleMessage(r.Context(), client, env); err != nil {
				s.logger.Infow("error handling message",
					"socket_id", client.socketID, "type", env.Type, "error", err)
				s.sendError(client, err.Error())
			}

		case <-pingTicker.C:
			client.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			client.writeMu.Unlock()
			if err != nil {
				s.logger.Infow("error sending ping", "socket_id", client.socketID, "error", err)
				s.disconnect(r.Context(), client)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading message", "socket_id", client.socketID, "error", err)
			}
			s.disconnect(r.Context(), client)
			return
		}
	}
}

func (s *Relay) handleMessage(ctx context.Context, client *relayConn, env Envelope) error {
	if env.Type == "" {
		return fmt.Errorf("message type is required")
	}

	switch env.Type {
	case TypeJoinRoom:
		return s.handleJoinRoom(ctx, client, env)
	case TypeOffer:
		var p OfferPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("invalid offer payload: %w", err)
		}
		return s.relaySignal(client, env, p.To)
	case TypeAnswer:
		var p AnswerPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("invalid answer payload: %w", err)
		}
		return s.relaySignal(client, env, p.To)
	case TypeICECandidate:
		var p ICECandidatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("invalid ice-candidate payload: %w", err)
		}
		return s.relaySignal(client, env, p.To)
	case TypeCallStatus:
		return s.broadcastToRoom(client, env)
	default:
		return fmt.Errorf("unknown message type: %s", env.Type)
	}
}

func (s *Relay) handleJoinRoom(ctx context.Context, client *relayConn, env Envelope) error {
	var payload JoinRoomPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("invalid join-room payload: %w", err)
	}
	if env.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	if payload.UserName != "" {
		client.userName = payload.UserName
	}

	before, err := s.rooms.AddParticipant(ctx, env.RoomID, client.socketID)
	if err != nil {
		reason := "join failed"
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			reason = "unknown room"
		case errors.Is(err, domain.ErrRoomFull):
			reason = "room is full"
		}
		s.metrics.JoinRejected(reason)
		return s.send(client, mustEnvelope(TypeJoinError, env.RoomID, JoinErrorPayload{Reason: reason}))
	}
	client.roomID = env.RoomID
	s.metrics.ParticipantJoined(env.RoomID)
	s.logger.Infow("participant joined room",
		"socket_id", client.socketID, "room_id", env.RoomID, "peers_before", len(before.Participants))

	success := mustEnvelope(TypeJoinSuccess, env.RoomID, JoinSuccessPayload{
		SocketID:         client.socketID,
		ParticipantCount: len(before.Participants) + 1,
	})
	if err := s.send(client, success); err != nil {
		return err
	}

	if len(before.Participants) > 0 {
		infos := make([]ParticipantInfo, 0, len(before.Participants))
		for _, id := range before.Participants {
			info := ParticipantInfo{SocketID: id}
			if peer := s.connection(id); peer != nil {
				info.UserName = peer.userName
			}
			infos = append(infos, info)
		}
		existing := mustEnvelope(TypeExistingParticipants, env.RoomID, ExistingParticipantsPayload{Participants: infos})
		if err := s.send(client, existing); err != nil {
			return err
		}
	}

	joined := mustEnvelope(TypeUserJoined, env.RoomID, UserJoinedPayload{
		SocketID: client.socketID,
		UserName: client.userName,
	})
	for _, id := range before.Participants {
		if peer := s.connection(id); peer != nil {
			if err := s.send(peer, joined); err != nil {
				s.logger.Warnw("failed to announce join", "to", id, "error", err)
			}
		}
	}
	return nil
}

// relaySignal forwards a handshake envelope to the addressed peer,
// but only between members of the same room.
func (s *Relay) relaySignal(client *relayConn, env Envelope, to domain.ParticipantID) error {
	if client.roomID == "" {
		return fmt.Errorf("must join a room before signaling")
	}
	if env.RoomID != client.roomID {
		// Cross-room injection attempt; drop without forwarding.
		s.logger.Warnw("dropping signal for foreign room",
			"socket_id", client.socketID, "claimed_room", env.RoomID, "actual_room", client.roomID)
		return nil
	}
	target := s.connection(to)
	if target == nil {
		return fmt.Errorf("target peer %s is not connected", to)
	}
	if target.roomID != client.roomID {
		return fmt.Errorf("target peer %s is not in room %s", to, client.roomID)
	}

	env.From = client.socketID
	s.metrics.MessageRelayed(env.Type)
	s.logger.Debugw("relaying signal",
		"type", env.Type, "from", client.socketID, "to", to, "room_id", client.roomID)
	return s.send(target, env)
}

func (s *Relay) broadcastToRoom(client *relayConn, env Envelope) error {
	if client.roomID == "" || env.RoomID != client.roomID {
		return nil
	}
	env.From = client.socketID
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, peer := range s.connections {
		if peer.roomID == client.roomID && peer.socketID != client.socketID {
			if err := s.send(peer, env); err != nil {
				s.logger.Warnw("broadcast send failed", "to", peer.socketID, "error", err)
			}
		}
	}
	return nil
}

func (s *Relay) disconnect(ctx context.Context, client *relayConn) {
	s.mu.Lock()
	delete(s.connections, client.socketID)
	s.mu.Unlock()

	if client.roomID != "" {
		if err := s.rooms.RemoveParticipant(ctx, client.roomID, client.socketID); err != nil {
			s.logger.Infow("error removing participant from room",
				"socket_id", client.socketID, "room_id", client.roomID, "error", err)
		}
		s.metrics.ParticipantLeft(client.roomID)

		left := mustEnvelope(TypeUserLeft, client.roomID, UserLeftPayload{
			SocketID: client.socketID,
			UserName: client.userName,
		})
		s.mu.RLock()
		for _, peer := range s.connections {
			if peer.roomID == client.roomID {
				if err := s.send(peer, left); err != nil {
					s.logger.Warnw("failed to announce departure", "to", peer.socketID, "error", err)
				}
			}
		}
		s.mu.RUnlock()
	}
	s.logger.Infow("participant disconnected", "socket_id", client.socketID)
}

func (s *Relay) connection(id domain.ParticipantID) *relayConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connections[id]
}

func (s *Relay) send(client *relayConn, env Envelope) error {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()
	client.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return client.conn.WriteJSON(env)
}

func (s *Relay) sendError(client *relayConn, message string) {
	env := mustEnvelope(TypeCallError, client.roomID, CallErrorPayload{Error: message})
	if err := s.send(client, env); err != nil {
		s.logger.Debugw("failed to deliver error", "socket_id", client.socketID, "error", err)
	}
}

func (s *Relay) ConnectedParticipants() []domain.ParticipantID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]domain.ParticipantID, 0, len(s.connections))
	for id := range s.connections {
		ids = append(ids, id)
	}
	return ids
}

func mustEnvelope(msgType string, roomID domain.RoomID, payload interface{}) Envelope {
	env, err := newEnvelope(msgType, roomID, payload)
	if err != nil {
		panic(err) // payload structs are always marshalable
	}
	return env
}
