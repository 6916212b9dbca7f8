// Package probe implements the fixed smoke-test sequence run against an MCP
// WebSocket endpoint: initialize, list the tools, call the add tool, call
// the database health check. One request is outstanding at a time; the
// session trusts the server to answer in order.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mcpd/internal/mcp"
	"mcpd/internal/shared/logger"
)

// DefaultURL is the endpoint the probe targets when nothing else is
// configured.
const DefaultURL = "ws://localhost:8080/mcp"

const defaultHandshakeTimeout = 15 * time.Second

// Step is one request of the fixed sequence.
type Step struct {
	Label    string // short name, used in logs and tests
	Announce string // console line shown before sending
	Request  *mcp.Request
}

// Round is one completed request/response exchange.
type Round struct {
	Step    Step
	Raw     []byte // response frame exactly as received
	Message *mcp.Message
}

// Report is the discriminated outcome of a run. Rounds holds every
// exchange that completed before the failure point; Failure is nil on a
// clean run.
type Report struct {
	Rounds    []Round
	Failure   *Failure
	Completed bool
}

// Config controls a probe session.
type Config struct {
	URL              string        // defaults to DefaultURL
	HandshakeTimeout time.Duration // defaults to 15s
	ReadTimeout      time.Duration // per round trip, 0 waits forever

	// Optional observers, invoked in sequence order. Used by the command
	// front end to interleave console output with the round trips.
	OnConnect  func()
	OnSend     func(Step)
	OnResponse func(Round)
}

// Probe owns one WebSocket connection for the duration of a run.
type Probe struct {
	cfg    Config
	dialer *websocket.Dialer
	log    zerolog.Logger
}

func New(cfg Config) *Probe {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Probe{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		log: logger.WithComponent("probe"),
	}
}

// Steps returns the fixed request sequence, ids 1 through 4. The marshaled
// form of each request is stable, so the wire bytes are always the same.
func Steps() []Step {
	return []Step{
		{
			Label:    "initialize",
			Announce: "Sending initialize message...",
			Request: mcp.NewRequest(1, mcp.MethodInitialize, mcp.InitializeParams{
				ProtocolVersion: mcp.ProtocolVersion,
				Capabilities: mcp.ClientCapabilities{
					Tools: &mcp.ToolsCapability{},
				},
				ClientInfo: mcp.ClientInfo{
					Name:    "test-client",
					Version: "1.0.0",
				},
			}),
		},
		{
			Label:    "tools/list",
			Announce: "Requesting tools list...",
			Request:  mcp.NewRequest(2, mcp.MethodListTools, nil),
		},
		{
			Label:    "add",
			Announce: "Testing math tool (add)...",
			Request: mcp.NewRequest(3, mcp.MethodCallTool, mcp.ToolCallParams{
				Name:      "add",
				Arguments: map[string]interface{}{"a": 5, "b": 3},
			}),
		},
		{
			Label:    "db_health_check",
			Announce: "Testing database health check...",
			Request: mcp.NewRequest(4, mcp.MethodCallTool, mcp.ToolCallParams{
				Name: "db_health_check",
			}),
		},
	}
}

// Run executes the sequence. It never starts round trip N+1 before the
// response to N arrived, and it stops at the first failure. The connection
// is closed on every return path.
func (p *Probe) Run(ctx context.Context) *Report {
	rep := &Report{}

	conn, _, err := p.dialer.DialContext(ctx, p.cfg.URL, nil)
	if err != nil {
		rep.Failure = NewFailure(fmt.Errorf("websocket dial failed: %w", err))
		return rep
	}
	defer func() {
		// Best effort close handshake before dropping the socket.
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	if p.cfg.OnConnect != nil {
		p.cfg.OnConnect()
	}
	p.log.Debug().Str("url", p.cfg.URL).Msg("connected")

	for _, step := range Steps() {
		payload, err := json.Marshal(step.Request)
		if err != nil {
			rep.Failure = NewFailure(fmt.Errorf("request marshal failed: %w", err))
			return rep
		}

		if p.cfg.OnSend != nil {
			p.cfg.OnSend(step)
		}
		p.log.Debug().Str("step", step.Label).Msg("sending request")

		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			rep.Failure = NewFailure(fmt.Errorf("send %s: %w", step.Label, err))
			return rep
		}

		if p.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout))
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			rep.Failure = NewFailure(fmt.Errorf("awaiting %s response: %w", step.Label, err))
			return rep
		}

		var msg mcp.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			rep.Failure = NewFailure(fmt.Errorf("decode %s response: %w", step.Label, err))
			return rep
		}

		round := Round{Step: step, Raw: raw, Message: &msg}
		rep.Rounds = append(rep.Rounds, round)
		p.log.Debug().Str("step", step.Label).Int("bytes", len(raw)).Msg("response received")

		if p.cfg.OnResponse != nil {
			p.cfg.OnResponse(round)
		}
	}

	rep.Completed = true
	return rep
}
