// Package live pushes rebuild notifications to browser clients over
// websockets.
package live

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cfnschema/cfnschema/internal/compiler/schema"
)

// Message types.
const (
	TypeRebuilt = "rebuilt"
	TypeError   = "error"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Message is sent to every connected client.
type Message struct {
	Type      string        `json:"type"`
	Timestamp int64         `json:"timestamp"`
	Stats     *schema.Stats `json:"stats,omitempty"`
	Duration  float64       `json:"duration,omitempty"`
	Error     *ErrorInfo    `json:"error,omitempty"`
}

// ErrorInfo describes a failed rebuild.
type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// Hub tracks websocket clients and broadcasts messages to them.
type Hub struct {
	connections map[*websocket.Conn]struct{}
	mutex       sync.Mutex
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	closed      bool
}

// NewHub creates a hub. Only same-origin and localhost pages may connect.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		logger:      logger.Named("live"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, prefix := range []string{"http://localhost", "https://localhost", "http://127.0.0.1", "https://127.0.0.1"} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return strings.TrimPrefix(strings.TrimPrefix(origin, "http://"), "https://") == r.Host
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", zap.Error(err))
		return
	}

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		_ = conn.Close()
		return
	}
	h.connections[conn] = struct{}{}
	count := len(h.connections)
	h.mutex.Unlock()

	h.logger.Debug("client connected", zap.Int("clients", count))

	go h.readLoop(conn)
	go h.pingLoop(conn)
}

// readLoop drains client frames so pongs and close frames are handled.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("client read failed", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		h.mutex.Lock()
		_, ok := h.connections[conn]
		var err error
		if ok {
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
		h.mutex.Unlock()
		if !ok {
			return
		}
		if err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.connections[conn]; ok {
		delete(h.connections, conn)
		_ = conn.Close()
		h.logger.Debug("client disconnected", zap.Int("clients", len(h.connections)))
	}
}

// Broadcast sends msg to every client, dropping clients that fail.
func (h *Hub) Broadcast(msg *Message) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("failed to marshal message", zap.Error(err))
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn := range h.connections {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("send failed", zap.Error(err))
			delete(h.connections, conn)
			_ = conn.Close()
		}
	}
}

// NotifyRebuilt announces a successful rebuild.
func (h *Hub) NotifyRebuilt(stats schema.Stats, duration time.Duration) {
	h.Broadcast(&Message{
		Type:     TypeRebuilt,
		Stats:    &stats,
		Duration: float64(duration.Milliseconds()),
	})
}

// NotifyError announces a failed rebuild. The previous schema stays served.
func (h *Hub) NotifyError(info *ErrorInfo) {
	h.Broadcast(&Message{Type: TypeError, Error: info})
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.closed = true
	for conn := range h.connections {
		_ = conn.Close()
	}
	h.connections = make(map[*websocket.Conn]struct{})
}
