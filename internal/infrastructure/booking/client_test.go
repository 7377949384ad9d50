package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"telecall/internal/core/domain"
	apperrors "telecall/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", 2*time.Second, zaptest.NewLogger(t).Sugar()), srv
}

func TestFetchICEServers(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v1/config", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"iceServers": []map[string]interface{}{
				{"urls": []string{"stun:stun.example.com:3478"}},
				{"urls": []string{"turn:turn.example.com:3478"}, "username": "u", "credential": "c"},
			},
		})
	}))

	servers, err := client.FetchICEServers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, servers[0].URLs)
	assert.Equal(t, "u", servers[1].Username)
	assert.Equal(t, "c", servers[1].Credential)
}

func TestFetchICEServersIsCached(t *testing.T) {
	hits := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"iceServers": []map[string]interface{}{
				{"urls": []string{"stun:stun.example.com:3478"}},
			},
		})
	}))

	for i := 0; i < 3; i++ {
		servers, err := client.FetchICEServers(context.Background())
		require.NoError(t, err)
		require.Len(t, servers, 1)
	}
	assert.Equal(t, 1, hits)
}

func TestGenerateRoom(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/sessions/sess-42/room", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"roomId":      "room-abc",
			"sessionType": "video",
		})
	}))

	roomID, sessionType, err := client.GenerateRoom(context.Background(), domain.SessionID("sess-42"))
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("room-abc"), roomID)
	assert.Equal(t, "video", sessionType)
}

func TestGenerateRoomRejectsEmptyRoomID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"roomId": ""})
	}))

	_, _, err := client.GenerateRoom(context.Background(), domain.SessionID("sess-1"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindSignaling, apperrors.KindOf(err))
}

func TestNotifyCallEndedSendsDuration(t *testing.T) {
	var got map[string]int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/sessions/sess-7/end", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))

	err := client.NotifyCallEnded(context.Background(), domain.SessionID("sess-7"), 53)
	require.NoError(t, err)
	assert.Equal(t, 53, got["durationMinutes"])
}

func TestServerErrorIsClassifiedAsSignaling(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	err := client.NotifyCallStarted(context.Background(), domain.SessionID("sess-1"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindSignaling, apperrors.KindOf(err))
}

func TestUnreachableServerFails(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := client.FetchICEServers(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindSignaling, apperrors.KindOf(err))
}
