// Package hub provides per-session fanout of appended messages to
// WebSocket subscribers.
package hub

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection is one WebSocket subscriber bound to a session.
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
}

// Hub tracks subscribers per session and broadcasts appended messages
// to them. Delivery is best effort: a subscriber that cannot keep up is
// dropped rather than blocking the append path.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Connection
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{sessions: make(map[string]map[string]*Connection)}
}

// Subscribe registers a WebSocket connection for a session's messages.
func (h *Hub) Subscribe(sessionID string, ws *websocket.Conn) *Connection {
	conn := &Connection{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Conn:      ws,
		Send:      make(chan []byte, 256),
	}

	h.mu.Lock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[string]*Connection)
	}
	h.sessions[sessionID][conn.ID] = conn
	h.mu.Unlock()

	return conn
}

// Unsubscribe removes a connection and closes its send channel.
func (h *Hub) Unsubscribe(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.sessions[conn.SessionID]
	if !ok {
		return
	}
	if _, ok := conns[conn.ID]; !ok {
		return
	}
	delete(conns, conn.ID)
	if len(conns) == 0 {
		delete(h.sessions, conn.SessionID)
	}
	close(conn.Send)
}

// Broadcast marshals v and queues it for every subscriber of the
// session. Subscribers with a full buffer are skipped.
func (h *Hub) Broadcast(sessionID string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: failed to marshal broadcast: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.sessions[sessionID] {
		select {
		case conn.Send <- data:
		default:
			log.Printf("WARN: subscriber %s buffer full, dropping message", conn.ID)
		}
	}
}

// SubscriberCount reports how many connections watch a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
