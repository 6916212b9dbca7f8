package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mcpd/internal/shared/logger"
	"mcpd/internal/shared/types"
)

// StatusUpdate carries a health snapshot to monitoring clients.
type StatusUpdate struct {
	Timestamp   time.Time                      `json:"timestamp"`
	Healthy     bool                           `json:"healthy"`
	Backends    map[string]*types.BackendState `json:"backends"`
	Connections int                            `json:"connections"`
}

// WebSocketMessage is the envelope for every hub broadcast.
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active monitoring clients and broadcasts
// messages to them.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		clients:    make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			logger.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("monitoring client registered")
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				logger.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("monitoring client unregistered")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					logger.Warn().Err(err).Str("remote_addr", conn.RemoteAddr().String()).Msg("error writing to monitoring client")
					// The read pump unregisters broken clients.
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected monitoring clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastStatusUpdate pushes a health snapshot to all clients without
// blocking. The update is dropped when the broadcaster is busy.
func (h *Hub) BroadcastStatusUpdate(update *StatusUpdate) {
	msg := WebSocketMessage{Type: "status_update", Data: update}
	jsonMsg, err := json.Marshal(msg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshal status update")
		return
	}

	select {
	case h.broadcast <- jsonMsg:
	default:
		logger.Warn().Msg("broadcast channel is busy, skipping status update")
	}
}

var hubUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWs upgrades a monitoring client and keeps it registered until it
// disconnects.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := hubUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to upgrade monitoring websocket")
		return
	}
	hub.register <- conn

	// Read pump. Detects when the client closes the connection.
	go func() {
		defer func() {
			hub.unregister <- conn
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn().Err(err).Msg("unexpected monitoring websocket close")
				}
				break
			}
		}
	}()
}
