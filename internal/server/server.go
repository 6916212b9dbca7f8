// Package server implements the MCP endpoint: WebSocket transport,
// JSON-RPC dispatch and the session initialize gate.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mcpd/internal/mcp"
	"mcpd/internal/shared/logger"
	"mcpd/internal/tools"
)

const (
	serverName    = "mcpd"
	serverVersion = "1.0.0"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// MCP clients are local tools, not browsers.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MCPServer accepts WebSocket sessions and dispatches their requests
// through the tool registry.
type MCPServer struct {
	mu       sync.RWMutex
	registry *tools.Registry
	conns    map[string]*Connection
	info     mcp.ServerInfo
	log      zerolog.Logger
}

func New(registry *tools.Registry) *MCPServer {
	return &MCPServer{
		registry: registry,
		conns:    make(map[string]*Connection),
		info:     mcp.ServerInfo{Name: serverName, Version: serverVersion},
		log:      logger.WithComponent("mcp-server"),
	}
}

// HandleWebSocket upgrades the request and serves the MCP session until
// the client disconnects.
func (s *MCPServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newConnection(ws, s.registry, s.info)
	s.addConn(c)
	s.log.Info().Str("conn_id", c.id).Str("remote", ws.RemoteAddr().String()).Msg("client connected")

	defer func() {
		s.removeConn(c)
		ws.Close()
		s.log.Info().Str("conn_id", c.id).Msg("client disconnected")
	}()

	c.readLoop()
}

// ConnectionCount returns the number of live sessions.
func (s *MCPServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// CloseAll sends a close frame to every session and drops them. Used
// during shutdown.
func (s *MCPServer) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for _, c := range s.conns {
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		c.ws.Close()
	}
	s.conns = make(map[string]*Connection)
}

func (s *MCPServer) addConn(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c.id] = c
}

func (s *MCPServer) removeConn(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c.id)
}
