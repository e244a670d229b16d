package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stellar/go-stellar-sdk/support/log"
)

const (
	// writeWait bounds how long a single frame write may take.
	writeWait = 10 * time.Second
	// pongWait is how long a session may stay silent before it is
	// considered dead. Pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize caps inbound frames; clients only send small control
	// requests.
	maxMessageSize = 4 << 10
	// sendBufferSize is the per-session outbound queue. A client that falls
	// this far behind is dropped rather than allowed to block the room.
	sendBufferSize = 32
)

// Session is one accepted WebSocket subscriber of a room. Outbound messages
// go through a buffered channel drained by the write pump, so senders never
// block on a slow client.
type Session struct {
	ID   string
	conn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn) *Session {
	return &Session{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// enqueue hands raw to the write pump. It reports false when the session is
// closed or its buffer is full, in which case the caller should drop it.
func (s *Session) enqueue(raw []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- raw:
		return true
	default:
		return false
	}
}

// close sends a close frame with the given code and reason, then tears the
// connection down. It is safe to call from any goroutine, repeatedly.
func (s *Session) close(closeCode int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)

		deadline := time.Now().Add(writeWait)
		frame := websocket.FormatCloseMessage(closeCode, reason)
		if err := s.conn.WriteControl(websocket.CloseMessage, frame, deadline); err != nil {
			log.Debugf("writing close frame to session %s: %s", s.ID, err.Error())
		}
		if err := s.conn.Close(); err != nil {
			log.Debugf("closing session %s: %s", s.ID, err.Error())
		}
	})
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with periodic pings. It owns all data writes for the session.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case raw := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				s.close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		case <-s.done:
			return
		}
	}
}
