package room

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stellar/go-stellar-sdk/support/log"
)

// snapshotTimeout bounds the storage reads behind a get_room_data request.
const snapshotTimeout = 5 * time.Second

// HandleSession takes ownership of an accepted WebSocket connection: it
// tracks the session, starts its write pump, and serves inbound requests
// until the client goes away. It blocks for the lifetime of the connection.
func (a *Actor) HandleSession(conn *websocket.Conn) {
	s := newSession(conn)
	a.sessions.Track(s)
	go s.writePump()

	a.readPump(s)
}

func (a *Actor) readPump(s *Session) {
	defer func() {
		s.close(websocket.CloseNormalClosure, "")
		a.sessions.Untrack(s)
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("room %s: session %s read error: %s", a.code, s.ID, err.Error())
			}
			return
		}

		var envelope Envelope
		if err = json.Unmarshal(raw, &envelope); err != nil {
			log.Debugf("room %s: session %s sent malformed message", a.code, s.ID)
			continue
		}

		a.handleClientMessage(s, envelope)
	}
}

func (a *Actor) handleClientMessage(s *Session, envelope Envelope) {
	switch envelope.Type {
	case MessageTypePing:
		raw, err := NewPongMessage(time.Now().UTC())
		if err != nil {
			log.Errorf("room %s: building pong: %s", a.code, err.Error())
			return
		}
		a.sessions.Send(s, raw)

	case MessageTypeGetRoomData:
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()

		snapshot, _, err := a.Snapshot(ctx)
		if err != nil {
			log.Errorf("room %s: building snapshot: %s", a.code, err.Error())
			return
		}
		raw, err := NewRoomDataMessage(snapshot)
		if err != nil {
			log.Errorf("room %s: building room_data: %s", a.code, err.Error())
			return
		}
		a.sessions.Send(s, raw)

	default:
		log.Debugf("room %s: session %s sent unknown message type %q", a.code, s.ID, envelope.Type)
	}
}
