// Package web hosts the HTTP surface of the server: the MCP WebSocket
// endpoint, health and status APIs, runtime settings management and the
// monitoring hub.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/rs/zerolog"

	"mcpd/internal/shared/logger"
	"mcpd/internal/shared/settings"
	"mcpd/internal/shared/types"
)

// basicAuthMiddleware enforces HTTP Basic Authentication when both
// credentials are configured. With empty credentials the handler is
// served as-is.
func basicAuthMiddleware(next http.Handler, user, pass string) http.Handler {
	if user == "" || pass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Server is the single HTTP listener of the process.
type Server struct {
	server   *http.Server
	listener net.Listener
	log      zerolog.Logger
}

// NewServer builds the route table. The MCP endpoint and the liveness
// probe stay open; the observer and management routes go behind basic
// auth when credentials are configured.
func NewServer(
	cfg *types.Config,
	settingsManager *settings.SettingsManager,
	status StatusProvider,
	hub *Hub,
	mcpHandler http.HandlerFunc,
) *Server {
	handler := NewHandler(settingsManager, status)
	mux := http.NewServeMux()

	webUser := cfg.ServerConf.WebUser
	webPassword := cfg.ServerConf.WebPassword
	authed := func(h http.HandlerFunc) http.Handler {
		return basicAuthMiddleware(h, webUser, webPassword)
	}

	// MCP clients cannot answer a credential prompt, so the protocol
	// endpoint is never behind auth.
	mux.HandleFunc(cfg.ServerConf.MCPPath, mcpHandler)

	mux.HandleFunc("/health", handler.HandleHealth)

	mux.Handle("/api/status", authed(handler.HandleStatus))
	mux.Handle("/api/settings", authed(handler.HandleGetSettings))
	mux.Handle("/api/settings/", authed(handler.HandleUpdateSettings))
	mux.Handle("/ws", authed(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))

	return &Server{
		server: &http.Server{
			Addr:    cfg.ServerConf.Addr,
			Handler: mux,
		},
		log: logger.WithComponent("web"),
	}
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// InitializeListener binds the configured address and reports the port
// actually chosen, which matters when the address requests port 0.
func (s *Server) InitializeListener() (int, error) {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return 0, fmt.Errorf("web server listen failed: %w", err)
	}
	s.listener = ln
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// Serve blocks serving HTTP on the bound listener until Shutdown is
// called. It binds the listener itself when InitializeListener was not
// used first.
func (s *Server) Serve() error {
	if s.listener == nil {
		if _, err := s.InitializeListener(); err != nil {
			return err
		}
	}
	s.log.Info().Str("addr", s.listener.Addr().String()).Msg("http server listening")
	if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
