package httphandler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapwatch/swapwatch-backend/internal/room"
)

func dialWebSocket(t *testing.T, serverURL, code string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/rooms/" + code + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readWSEnvelope(t *testing.T, conn *websocket.Conn) room.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope room.Envelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	return envelope
}

func Test_WebSocketHandler(t *testing.T) {
	deps := setupTestDeps(t)
	handler := WebSocketHandler{Registry: deps.registry}

	r := chi.NewRouter()
	r.Get("/rooms/{code}/ws", handler.ServeHTTP)
	server := httptest.NewServer(r)
	defer server.Close()

	t.Run("connecting emits presence and serves ping and get_room_data", func(t *testing.T) {
		conn := dialWebSocket(t, server.URL, "abc123")

		envelope := readWSEnvelope(t, conn)
		require.Equal(t, room.MessageTypePresence, envelope.Type)
		assert.JSONEq(t, `{"count": 1}`, string(envelope.Data))

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "ping"}`)))
		envelope = readWSEnvelope(t, conn)
		assert.Equal(t, room.MessageTypePong, envelope.Type)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "get_room_data"}`)))
		envelope = readWSEnvelope(t, conn)
		require.Equal(t, room.MessageTypeRoomData, envelope.Type)
		assert.JSONEq(t, `{"wallets": [], "labels": {}, "presence": {"count": 1}}`, string(envelope.Data))
	})

	t.Run("a non-upgrade request fails the handshake", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/rooms/abc123/ws")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
