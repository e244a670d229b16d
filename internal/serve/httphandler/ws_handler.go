package httphandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/swapwatch/swapwatch-backend/internal/room"
)

// WebSocketHandler upgrades GET /rooms/{code}/ws and hands the connection to
// the room's actor for the rest of its life.
type WebSocketHandler struct {
	Registry *room.Registry
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are open on purpose: the API is CORS-permissive and rooms are
	// capability-addressed by their code.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeHTTP implements the http.Handler interface.
func (h WebSocketHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	code := chi.URLParam(req, "code")

	conn, err := upgrader.Upgrade(rw, req, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		log.Ctx(req.Context()).Errorf("upgrading websocket for room %s: %s", code, err.Error())
		return
	}

	h.Registry.Room(code).HandleSession(conn)
}
