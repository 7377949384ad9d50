package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/services"
	"telecall/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type handlerHarness struct {
	router *gin.Engine
	auth   services.AuthService
}

func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()

	auth := services.NewAuthService("test-secret", time.Hour)
	sessions := services.NewSessionService(
		memory.NewMemoryRoomRepository(),
		memory.NewMemorySessionRepository(),
		zaptest.NewLogger(t).Sugar(),
	)
	handler := NewSessionHandler(sessions, auth, []domain.ICEServer{
		{URLs: []string{"stun:stun.example.com:3478"}},
	})

	router := gin.New()
	handler.SetupRoutes(router)
	return &handlerHarness{router: router, auth: auth}
}

func (h *handlerHarness) request(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *handlerHarness) token(t *testing.T, sessionID string) string {
	t.Helper()
	token, err := h.auth.GenerateToken("pt_1", "alice", domain.SessionID(sessionID))
	require.NoError(t, err)
	return token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetConfigReturnsICEServers(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.request(t, http.MethodGet, "/api/v1/config", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	servers, ok := body["iceServers"].([]interface{})
	require.True(t, ok)
	assert.Len(t, servers, 1)
}

func TestIssueTokenAdmitsItsSession(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.request(t, http.MethodPost, "/api/v1/sessions/sess-1/token", "",
		`{"userId":"pt_1","userName":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	token, ok := decodeBody(t, rec)["token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)

	rec = h.request(t, http.MethodPost, "/api/v1/sessions/sess-1/room", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.request(t, http.MethodPost, "/api/v1/sessions/sess-2/room", token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEnsureRoomIsStablePerSession(t *testing.T) {
	h := newHandlerHarness(t)
	token := h.token(t, "sess-1")

	first := h.request(t, http.MethodPost, "/api/v1/sessions/sess-1/room", token, `{"sessionType":"video"}`)
	require.Equal(t, http.StatusOK, first.Code)
	firstRoom := decodeBody(t, first)["roomId"]

	second := h.request(t, http.MethodPost, "/api/v1/sessions/sess-1/room", token, "")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, firstRoom, decodeBody(t, second)["roomId"])
}

func TestEnsureRoomRequiresAuth(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.request(t, http.MethodPost, "/api/v1/sessions/sess-1/room", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallLifecycleOverHTTP(t *testing.T) {
	h := newHandlerHarness(t)
	token := h.token(t, "sess-1")

	rec := h.request(t, http.MethodPost, "/api/v1/sessions/sess-1/room", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.request(t, http.MethodPost, "/api/v1/sessions/sess-1/start", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.request(t, http.MethodPost, "/api/v1/sessions/sess-1/end", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.request(t, http.MethodGet, "/api/v1/sessions/sess-1", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "sess-1", body["sessionId"])
	assert.NotEmpty(t, body["startedAt"])
}

func TestStartUnknownSessionIs404(t *testing.T) {
	h := newHandlerHarness(t)
	token := h.token(t, "sess-9")

	rec := h.request(t, http.MethodPost, "/api/v1/sessions/sess-9/start", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
