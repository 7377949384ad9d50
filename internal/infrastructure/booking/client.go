package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/pkg/cache"
	apperrors "telecall/pkg/errors"

	"go.uber.org/zap"
)

// iceConfigTTL bounds how long a fetched ICE configuration is reused.
// TURN credentials rotate, so the window stays short.
const iceConfigTTL = 5 * time.Minute

// Client talks to the Booking/Session collaborator. The call flow only
// depends on the response shapes, never on booking-side behavior.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	iceCache *cache.TTLCache[[]domain.ICEServer]
	logger   *zap.SugaredLogger
}

var _ ports.BookingAPI = (*Client)(nil)

func NewClient(baseURL, token string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		token:    token,
		http:     &http.Client{Timeout: timeout},
		iceCache: cache.New[[]domain.ICEServer](iceConfigTTL),
		logger:   logger,
	}
}

type configResponse struct {
	ICEServers []domain.ICEServer `json:"iceServers"`
}

type generateRoomResponse struct {
	RoomID      domain.RoomID `json:"roomId"`
	SessionType string        `json:"sessionType"`
}

func (c *Client) FetchICEServers(ctx context.Context) ([]domain.ICEServer, error) {
	return c.iceCache.GetOrFill(ctx, "ice-config", func(ctx context.Context) ([]domain.ICEServer, error) {
		var resp configResponse
		if err := c.do(ctx, http.MethodGet, "/api/v1/config", nil, &resp); err != nil {
			return nil, err
		}
		if len(resp.ICEServers) == 0 {
			c.logger.Warnw("booking returned no ICE servers, falling back to host candidates only")
		}
		return resp.ICEServers, nil
	})
}

func (c *Client) GenerateRoom(ctx context.Context, sessionID domain.SessionID) (domain.RoomID, string, error) {
	var resp generateRoomResponse
	path := fmt.Sprintf("/api/v1/sessions/%s/room", sessionID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", "", err
	}
	if resp.RoomID == "" {
		return "", "", apperrors.New(apperrors.KindSignaling, "booking returned an empty room id")
	}
	return resp.RoomID, resp.SessionType, nil
}

func (c *Client) NotifyCallStarted(ctx context.Context, sessionID domain.SessionID) error {
	path := fmt.Sprintf("/api/v1/sessions/%s/start", sessionID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) NotifyCallEnded(ctx context.Context, sessionID domain.SessionID, durationMinutes int) error {
	path := fmt.Sprintf("/api/v1/sessions/%s/end", sessionID)
	body := map[string]int{"durationMinutes": durationMinutes}
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build booking request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewSignalingError("booking request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.New(apperrors.KindSignaling,
			fmt.Sprintf("booking responded %d to %s %s", resp.StatusCode, method, path))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode booking response: %w", err)
		}
	}
	return nil
}
