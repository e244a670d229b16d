package room

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/stellar/go-stellar-sdk/support/log"
)

// SessionManager tracks the live WebSocket sessions of a single room and
// fans messages out to them. Sessions that cannot keep up are dropped, never
// waited on.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[*Session]struct{}),
	}
}

// Track registers a freshly accepted session and re-broadcasts presence.
func (sm *SessionManager) Track(s *Session) {
	sm.mu.Lock()
	sm.sessions[s] = struct{}{}
	sm.mu.Unlock()

	sm.BroadcastPresence()
}

// Untrack forgets a session and re-broadcasts presence. Untracking a session
// twice is a no-op.
func (sm *SessionManager) Untrack(s *Session) {
	sm.mu.Lock()
	_, tracked := sm.sessions[s]
	delete(sm.sessions, s)
	sm.mu.Unlock()

	if tracked {
		sm.BroadcastPresence()
	}
}

// Count returns the number of tracked sessions.
func (sm *SessionManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// Broadcast enqueues the already-serialized message on every session and
// returns how many accepted it. Sessions whose buffer is full are dropped.
func (sm *SessionManager) Broadcast(raw []byte) int {
	accepted, dropped := sm.deliverToAll(raw)
	for _, s := range dropped {
		s.close(websocket.CloseTryAgainLater, "client too slow")
		sm.Untrack(s)
	}
	return accepted
}

// Send enqueues the message on a single session, reporting delivery.
func (sm *SessionManager) Send(s *Session, raw []byte) bool {
	if s.enqueue(raw) {
		return true
	}
	s.close(websocket.CloseTryAgainLater, "client too slow")
	sm.Untrack(s)
	return false
}

// CloseAll closes every session with the given code and reason, returning
// the number closed.
func (sm *SessionManager) CloseAll(closeCode int, reason string) int {
	sm.mu.Lock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.sessions = make(map[*Session]struct{})
	sm.mu.Unlock()

	for _, s := range sessions {
		s.close(closeCode, reason)
	}
	return len(sessions)
}

// BroadcastPresence pushes the current session count to every subscriber.
func (sm *SessionManager) BroadcastPresence() {
	raw, err := NewPresenceMessage(sm.Count())
	if err != nil {
		log.Errorf("building presence message: %s", err.Error())
		return
	}
	sm.Broadcast(raw)
}

func (sm *SessionManager) deliverToAll(raw []byte) (int, []*Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	accepted := 0
	var dropped []*Session
	for s := range sm.sessions {
		if s.enqueue(raw) {
			accepted++
		} else {
			dropped = append(dropped, s)
		}
	}
	return accepted, dropped
}
