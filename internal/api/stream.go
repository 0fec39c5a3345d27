package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"saltydog/pkg/tracking"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Stream message types.
const (
	EventState = "state"
)

// StreamMessage is the envelope pushed to WebSocket clients.
type StreamMessage struct {
	Event string        `json:"event"`
	Data  StateResponse `json:"data"`
}

// StreamHandler pushes a state message to each WebSocket client after every
// session change.
type StreamHandler struct {
	session  Session
	units    *DisplayUnits
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(s Session, du *DisplayUnits) *StreamHandler {
	return &StreamHandler{
		session: s,
		units:   du,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*websocket.Conn),
	}
}

// ClientCount returns the number of connected clients.
func (h *StreamHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every client.
func (h *StreamHandler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		delete(h.clients, id)
	}
}

// ServeHTTP upgrades the request and streams until the client leaves.
// GET /api/stream
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	h.add(id, conn)
	defer h.remove(id)
	slog.Debug("Stream client connected", "client", id, "remote", r.RemoteAddr)

	updates, unsubscribe := h.session.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go h.readPump(conn, done)

	if err := h.send(conn, h.session.Snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			slog.Debug("Stream client disconnected", "client", id)
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := h.send(conn, st); err != nil {
				slog.Debug("Stream write failed", "client", id, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed. It
// closes done when the connection fails.
func (h *StreamHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) send(conn *websocket.Conn, st tracking.State) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(StreamMessage{Event: EventState, Data: newStateResponse(st, h.units)})
}

func (h *StreamHandler) add(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[id] = conn
}

func (h *StreamHandler) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, ok := h.clients[id]; ok {
		_ = conn.Close()
		delete(h.clients, id)
	}
}
