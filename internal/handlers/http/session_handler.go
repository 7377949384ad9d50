package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"telecall/internal/core/domain"
	"telecall/internal/core/services"
	"telecall/internal/infrastructure/middleware"
	"telecall/pkg/validation"

	"github.com/gin-gonic/gin"
)

// SessionHandler exposes the call-facing REST surface: ICE
// configuration, room provisioning and the start/end notifications
// bookings consume.
type SessionHandler struct {
	sessions   services.SessionService
	auth       services.AuthService
	iceServers []domain.ICEServer
}

func NewSessionHandler(sessions services.SessionService, auth services.AuthService, iceServers []domain.ICEServer) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		auth:       auth,
		iceServers: iceServers,
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/config", h.GetConfig)
		api.POST("/sessions/:id/token", h.IssueToken)
	}

	scoped := api.Group("/sessions/:id", middleware.AuthMiddleware(h.auth), middleware.SessionScopeMiddleware())
	{
		scoped.POST("/room", h.EnsureRoom)
		scoped.POST("/start", h.StartCall)
		scoped.POST("/end", h.EndCall)
		scoped.GET("", h.GetSession)
	}
}

func (h *SessionHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"iceServers": h.iceServers,
	})
}

type IssueTokenRequest struct {
	UserID   string `json:"userId" binding:"required,max=64"`
	UserName string `json:"userName" binding:"required,max=100"`
}

// IssueToken mints a session-scoped access token. In production this
// sits behind the booking platform's own authentication; here the
// endpoint is the trust boundary for local and test deployments.
func (h *SessionHandler) IssueToken(c *gin.Context) {
	sessionID := c.Param("id")
	if err := validation.ValidateSessionID(sessionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req IssueTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	req.UserName = strings.TrimSpace(req.UserName)

	token, err := h.auth.GenerateToken(
		domain.ParticipantID(req.UserID),
		req.UserName,
		domain.SessionID(sessionID),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"sessionId": sessionID,
	})
}

type EnsureRoomRequest struct {
	SessionType string `json:"sessionType" binding:"omitempty,oneof=video audio"`
}

func (h *SessionHandler) EnsureRoom(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))

	// An empty body means the default session type.
	var req EnsureRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	if req.SessionType == "" {
		req.SessionType = "video"
	}

	room, err := h.sessions.EnsureRoom(c.Request.Context(), sessionID, req.SessionType)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"roomId":      room.ID,
		"sessionType": room.SessionType,
	})
}

func (h *SessionHandler) StartCall(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))

	rec, err := h.sessions.StartCall(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": rec.SessionID,
		"startedAt": rec.StartedAt,
	})
}

type EndCallRequest struct {
	DurationMinutes int `json:"durationMinutes" binding:"omitempty,min=0"`
}

func (h *SessionHandler) EndCall(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))

	var req EndCallRequest
	_ = c.ShouldBindJSON(&req)

	rec, err := h.sessions.EndCall(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.Error(err)
		return
	}

	// Trust the relay's own clock over the client's figure.
	minutes := rec.DurationMinutes
	if minutes == 0 && req.DurationMinutes > 0 {
		minutes = req.DurationMinutes
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":       rec.SessionID,
		"endedAt":         rec.EndedAt,
		"durationMinutes": minutes,
	})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))

	rec, err := h.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":       rec.SessionID,
		"roomId":          rec.RoomID,
		"sessionType":     rec.SessionType,
		"startedAt":       rec.StartedAt,
		"endedAt":         rec.EndedAt,
		"durationMinutes": rec.DurationMinutes,
	})
}
