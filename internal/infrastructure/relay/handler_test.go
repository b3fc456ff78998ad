package relay

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"peerlink/internal/core/services"
	"peerlink/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop().Sugar()
	relay := services.NewRelayService(
		memory.NewMemoryDirectoryRepository(30*time.Second),
		memory.NewMemoryMailboxRepository(),
		nil,
		logger,
	)

	router := gin.New()
	NewHandler(relay, logger).SetupRoutes(router)
	return router
}

func doJSON(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_SendThenPollRoundtrip(t *testing.T) {
	router := newTestRouter(t)

	offer := []byte(`{
		"sender_id": "alice",
		"recipient_id": "bob",
		"message": {"type": "offer", "sdp": "v=0 offer"}
	}`)
	candidate := []byte(`{
		"sender_id": "alice",
		"recipient_id": "bob",
		"message": {"candidate": "candidate:1 1 udp 2122260223 192.0.2.1 54400 typ host", "sdpMid": "0", "sdpMLineIndex": 0}
	}`)

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/send", offer).Code)
	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/send", candidate).Code)

	w := doJSON(router, http.MethodGet, "/api/v1/poll/bob", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []struct {
			SenderID string          `json:"sender_id"`
			Message  json.RawMessage `json:"message"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "alice", resp.Messages[0].SenderID)
	assert.JSONEq(t, `{"type": "offer", "sdp": "v=0 offer"}`, string(resp.Messages[0].Message))
	assert.Contains(t, string(resp.Messages[1].Message), "candidate:1")

	// The drain is destructive; an immediate second poll comes back empty.
	w = doJSON(router, http.MethodGet, "/api/v1/poll/bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages": []}`, w.Body.String())
}

func TestHandler_SendRejectsInvalidEnvelopes(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"missing sender", `{"recipient_id": "bob", "message": {"type": "offer", "sdp": "v=0"}}`},
		{"missing recipient", `{"sender_id": "alice", "message": {"type": "offer", "sdp": "v=0"}}`},
		{"unknown signal type", `{"sender_id": "alice", "recipient_id": "bob", "message": {"type": "renegotiate"}}`},
		{"empty sdp", `{"sender_id": "alice", "recipient_id": "bob", "message": {"type": "offer", "sdp": ""}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/api/v1/send", []byte(tc.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandler_ListPeersReflectsTraffic(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/peers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"peers": []}`, w.Body.String())

	// Sending and polling both register presence.
	offer := []byte(`{"sender_id": "alice", "recipient_id": "bob", "message": {"type": "offer", "sdp": "v=0"}}`)
	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/send", offer).Code)
	require.Equal(t, http.StatusOK, doJSON(router, http.MethodGet, "/api/v1/poll/bob", nil).Code)

	w = doJSON(router, http.MethodGet, "/api/v1/peers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Peers []string `json:"peers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{"alice", "bob"}, resp.Peers)
}

func TestHandler_PollForUnknownPeerIsEmpty(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/poll/nobody", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages": []}`, w.Body.String())
}

func TestHandler_Health(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "healthy"}`, w.Body.String())
}
