// Package hub tracks WebSocket connections per conversation.
package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrBufferFull is returned when a connection's send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

// Connection represents a single WebSocket connection.
type Connection struct {
	ID             string
	ConversationID string
	Conn           *websocket.Conn
	Send           chan []byte
	mu             sync.Mutex
}

// Hub manages all WebSocket connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// conversations maps conversation_id to the set of connection IDs
	conversations map[string]map[string]struct{}

	broadcast chan *conversationMessage
	stop      chan struct{}

	logger *slog.Logger
	mu     sync.RWMutex
}

type conversationMessage struct {
	conversationID string
	data           []byte
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		connections:   make(map[string]*Connection),
		conversations: make(map[string]map[string]struct{}),
		broadcast:     make(chan *conversationMessage, 256),
		stop:          make(chan struct{}),
		logger:        logger,
	}
}

// Run fans queued broadcasts out to connections. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.conversations[msg.conversationID] {
				conn, exists := h.connections[connID]
				if !exists {
					continue
				}
				select {
				case conn.Send <- msg.data:
				default:
					h.logger.Warn("connection buffer full, closing", "connection_id", connID)
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()

		case <-h.stop:
			return
		}
	}
}

// Stop ends the Run loop.
func (h *Hub) Stop() {
	close(h.stop)
}

// NewConnection wraps a WebSocket in a Connection. It still has to be
// registered.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, 256),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	if conn.ConversationID != "" {
		h.bindLocked(conn, conn.ConversationID)
	}
	h.mu.Unlock()
	h.logger.Debug("connection registered", "connection_id", conn.ID)
}

// Unregister removes a connection and closes its send channel. Repeated
// calls are no-ops.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	h.unbindLocked(conn)
	close(conn.Send)
	h.logger.Debug("connection unregistered", "connection_id", conn.ID)
}

// Bind attaches a connection to a conversation, leaving any previous one.
func (h *Hub) Bind(conn *Connection, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindLocked(conn)
	h.bindLocked(conn, conversationID)
}

// ConversationOf returns the conversation a connection is bound to.
func (h *Hub) ConversationOf(conn *Connection) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return conn.ConversationID
}

func (h *Hub) bindLocked(conn *Connection, conversationID string) {
	conn.ConversationID = conversationID
	if h.conversations[conversationID] == nil {
		h.conversations[conversationID] = make(map[string]struct{})
	}
	h.conversations[conversationID][conn.ID] = struct{}{}
}

func (h *Hub) unbindLocked(conn *Connection) {
	set := h.conversations[conn.ConversationID]
	if set == nil {
		return
	}
	delete(set, conn.ID)
	if len(set) == 0 {
		delete(h.conversations, conn.ConversationID)
	}
}

// BroadcastJSON queues v for every connection of a conversation.
func (h *Hub) BroadcastJSON(conversationID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.broadcast <- &conversationMessage{conversationID: conversationID, data: data}
	return nil
}

// SendJSON queues v for a single connection. Unregistered connections are
// skipped.
func (h *Hub) SendJSON(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return nil
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// ConversationCount returns the number of conversations with a listener.
func (h *Hub) ConversationCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conversations)
}

// HasListeners reports whether a conversation has any active connection.
func (h *Hub) HasListeners(conversationID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conversations[conversationID]) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
