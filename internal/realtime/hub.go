package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"live-commerce/internal/models"
	"live-commerce/internal/util"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	clientBufferSize = 16
)

// PinMessage is pushed to viewers when the seller pins a saree
type PinMessage struct {
	Type string             `json:"type"`
	Pin  *models.ProductPin `json:"pin"`
}

// CommentMessage is pushed to viewers when a comment arrives
type CommentMessage struct {
	Type    string              `json:"type"`
	Comment *models.LiveComment `json:"comment"`
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Hub fans pins and comments out to the viewers of each live session
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: util.Component("realtime"),
	}
}

// BroadcastPin sends the pin to every viewer of the session
func (h *Hub) BroadcastPin(sessionID string, pin *models.ProductPin) {
	h.broadcast(sessionID, PinMessage{Type: "pin", Pin: pin})
}

// BroadcastComment sends the comment to every viewer of the session
func (h *Hub) BroadcastComment(sessionID string, comment *models.LiveComment) {
	h.broadcast(sessionID, CommentMessage{Type: "new_comment", Comment: comment})
}

// broadcast never blocks: slow viewers miss the message rather than
// stalling the seller.
func (h *Hub) broadcast(sessionID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode broadcast", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[sessionID] {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("Dropping message for slow viewer", zap.String("session_id", sessionID))
		}
	}
}

// Viewers returns the number of connected viewers of a session
func (h *Hub) Viewers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// Serve upgrades the request and streams the session's pins until the viewer leaves
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBufferSize), sessionID: sessionID}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.sessionID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[c.sessionID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.sessionID]
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.sessionID)
	}
	c.close()
}

// Close disconnects every viewer
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		for c := range room {
			c.close()
		}
		delete(h.rooms, id)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
