package notify

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/trip-dispatch/internal/models"
)

var ErrNoSession = errors.New("no ws session")

// WSSession represents a connected client or driver app.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(n)
}

// WSRegistry holds live app sessions keyed by role and recipient id.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(role models.Role, id string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionKey(role, id)] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(role models.Role, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionKey(role, id))
}

func (r *WSRegistry) Push(role models.Role, recipientID string, n models.Notification) error {
	r.mu.RLock()
	s, ok := r.sessions[sessionKey(role, recipientID)]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.Send(n)
}

func sessionKey(role models.Role, id string) string { return string(role) + ":" + id }
