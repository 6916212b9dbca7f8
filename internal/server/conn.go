package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mcpd/internal/mcp"
	"mcpd/internal/shared/logger"
	"mcpd/internal/tools"
)

// Connection is one MCP session. Messages are handled sequentially by
// the read loop; the write mutex guards against shutdown frames racing
// with responses.
type Connection struct {
	id          string
	ws          *websocket.Conn
	registry    *tools.Registry
	info        mcp.ServerInfo
	writeMu     sync.Mutex
	initialized bool
	log         zerolog.Logger
}

func newConnection(ws *websocket.Conn, registry *tools.Registry, info mcp.ServerInfo) *Connection {
	id := uuid.New().String()
	return &Connection{
		id:       id,
		ws:       ws,
		registry: registry,
		info:     info,
		log:      logger.WithComponent("mcp-conn").With().Str("conn_id", id).Logger(),
	}
}

func (c *Connection) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		var message mcp.Message
		if err := json.Unmarshal(data, &message); err != nil {
			c.writeResponse(mcp.NewErrorResponse(nil, mcp.ErrorCodeParseError, "Parse error", err.Error()))
			continue
		}

		if response := c.handleMessage(&message); response != nil {
			if err := c.writeResponse(response); err != nil {
				c.log.Warn().Err(err).Msg("failed to write response")
				return
			}
		}
	}
}

func (c *Connection) writeResponse(response *mcp.Response) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(response)
}

func (c *Connection) handleMessage(message *mcp.Message) *mcp.Response {
	switch {
	case message.IsRequest():
		return c.handleRequest(message)
	case message.IsNotification():
		c.handleNotification(message)
		return nil
	default:
		return mcp.NewErrorResponse(message.ID, mcp.ErrorCodeInvalidRequest, "Invalid message format", nil)
	}
}

func (c *Connection) handleRequest(message *mcp.Message) *mcp.Response {
	switch message.Method {
	case mcp.MethodInitialize:
		return c.handleInitialize(message)
	case mcp.MethodPing:
		return mcp.NewResponse(message.ID, struct{}{})
	case mcp.MethodListTools:
		return c.handleListTools(message)
	case mcp.MethodCallTool:
		return c.handleCallTool(message)
	case mcp.MethodListResources:
		return c.handleListResources(message)
	case mcp.MethodReadResource:
		return c.handleReadResource(message)
	default:
		return mcp.NewErrorResponse(message.ID, mcp.ErrorCodeMethodNotFound,
			fmt.Sprintf("Method not found: %s", message.Method), nil)
	}
}

func (c *Connection) handleNotification(message *mcp.Message) {
	switch message.Method {
	case mcp.MethodInitialized:
		c.initialized = true
		c.log.Info().Msg("client confirmed initialization")
	default:
		c.log.Debug().Str("method", message.Method).Msg("ignoring unknown notification")
	}
}

// handleInitialize answers the handshake. A successful initialize marks
// the session ready; the initialized notification is accepted as an
// additional confirmation.
func (c *Connection) handleInitialize(message *mcp.Message) *mcp.Response {
	var params mcp.InitializeParams
	if len(message.Params) > 0 {
		if err := json.Unmarshal(message.Params, &params); err != nil {
			return mcp.NewErrorResponse(message.ID, mcp.ErrorCodeInvalidParams,
				"Invalid initialize parameters", err.Error())
		}
	}

	c.initialized = true
	c.log.Info().
		Str("client", params.ClientInfo.Name).
		Str("client_version", params.ClientInfo.Version).
		Str("protocol_version", params.ProtocolVersion).
		Msg("client initialized")

	result := mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{
				ListChanged: false,
			},
			Resources: &mcp.ResourcesCapability{
				Subscribe:   false,
				ListChanged: false,
			},
		},
		ServerInfo: c.info,
	}
	return mcp.NewResponse(message.ID, result)
}

func (c *Connection) requireInitialized(id interface{}) *mcp.Response {
	if c.initialized {
		return nil
	}
	return mcp.NewErrorResponse(id, mcp.ErrorCodeInvalidRequest, "Client not initialized", nil)
}

func (c *Connection) handleListTools(message *mcp.Message) *mcp.Response {
	if resp := c.requireInitialized(message.ID); resp != nil {
		return resp
	}

	allTools, err := c.registry.ListTools(context.Background())
	if err != nil {
		return mcp.NewErrorResponse(message.ID, mcp.ErrorCodeInternalError, "Failed to list tools", err.Error())
	}
	if allTools == nil {
		allTools = []mcp.Tool{}
	}
	return mcp.NewResponse(message.ID, mcp.ListToolsResult{Tools: allTools})
}

func (c *Connection) handleCallTool(message *mcp.Message) *mcp.Response {
	if resp := c.requireInitialized(message.ID); resp != nil {
		return resp
	}

	var params mcp.ToolCallParams
	if len(message.Params) > 0 {
		if err := json.Unmarshal(message.Params, &params); err != nil {
			return mcp.NewErrorResponse(message.ID, mcp.ErrorCodeInvalidParams,
				"Invalid tool call parameters", err.Error())
		}
	}

	result, err := c.registry.CallTool(context.Background(), params)
	if err != nil {
		if errors.Is(err, tools.ErrToolNotFound) {
			return mcp.NewErrorResponse(message.ID, mcp.ErrorCodeMethodNotFound,
				fmt.Sprintf("Tool not found: %s", params.Name), nil)
		}
		// Execution failures travel back as tool results so the client
		// can show them alongside regular output.
		result = &mcp.ToolCallResult{
			IsError: true,
			Content: mcp.TextContent(fmt.Sprintf("Tool execution failed: %v", err)),
		}
	}
	return mcp.NewResponse(message.ID, result)
}

func (c *Connection) handleListResources(message *mcp.Message) *mcp.Response {
	if resp := c.requireInitialized(message.ID); resp != nil {
		return resp
	}

	resources, err := c.registry.ListResources(context.Background())
	if err != nil {
		return mcp.NewErrorResponse(message.ID, mcp.ErrorCodeInternalError, "Failed to list resources", err.Error())
	}
	if resources == nil {
		resources = []mcp.Resource{}
	}
	return mcp.NewResponse(message.ID, mcp.ListResourcesResult{Resources: resources})
}

func (c *Connection) handleReadResource(message *mcp.Message) *mcp.Response {
	if resp := c.requireInitialized(message.ID); resp != nil {
		return resp
	}

	var params mcp.ReadResourceParams
	if len(message.Params) > 0 {
		if err := json.Unmarshal(message.Params, &params); err != nil {
			return mcp.NewErrorResponse(message.ID, mcp.ErrorCodeInvalidParams,
				"Invalid resource read parameters", err.Error())
		}
	}

	result, err := c.registry.ReadResource(context.Background(), params.URI)
	if err != nil {
		if errors.Is(err, tools.ErrResourceNotFound) {
			return mcp.NewErrorResponse(message.ID, mcp.ErrorCodeMethodNotFound,
				fmt.Sprintf("Resource not found: %s", params.URI), nil)
		}
		return mcp.NewErrorResponse(message.ID, mcp.ErrorCodeInternalError, "Resource read failed", err.Error())
	}
	return mcp.NewResponse(message.ID, result)
}
