package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mcpd/internal/mcp"
	"mcpd/internal/search"
	"mcpd/internal/shared/logger"
	"mcpd/internal/shared/types"
	"mcpd/internal/storage"
	"mcpd/internal/tools"
)

func TestMain(m *testing.M) {
	logger.Init(types.LogConf{Level: "error"})
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) (*httptest.Server, *MCPServer) {
	t.Helper()

	store, err := storage.OpenFileStore(filepath.Join(t.TempDir(), "documents.json"))
	if err != nil {
		t.Fatalf("failed to open file store: %v", err)
	}

	registry := tools.NewRegistry()
	registry.RegisterProvider(tools.NewMathProvider())
	registry.RegisterProvider(tools.NewDatabaseProvider(store))
	registry.RegisterProvider(tools.NewSearchProvider(search.NewMockSearcher([]*search.Result{
		{Title: "Go", URL: "https://go.dev", Description: "The Go programming language", Timestamp: time.Now()},
	}, nil)))

	s := New(registry)
	ts := httptest.NewServer(http.HandlerFunc(s.HandleWebSocket))
	t.Cleanup(ts.Close)
	return ts, s
}

func dialTest(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, request interface{}) *mcp.Message {
	t.Helper()
	if err := conn.WriteJSON(request); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg mcp.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return &msg
}

func initSession(t *testing.T, conn *websocket.Conn) *mcp.Message {
	t.Helper()
	msg := roundTrip(t, conn, mcp.NewRequest(1, mcp.MethodInitialize, mcp.InitializeParams{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities:    mcp.ClientCapabilities{Tools: &mcp.ToolsCapability{}},
		ClientInfo:      mcp.ClientInfo{Name: "test-client", Version: "1.0.0"},
	}))
	if msg.Error != nil {
		t.Fatalf("initialize failed: %+v", msg.Error)
	}
	return msg
}

func TestInitializeHandshake(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialTest(t, ts)

	msg := initSession(t, conn)

	var result mcp.InitializeResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("cannot decode initialize result: %v", err)
	}
	if result.ProtocolVersion != mcp.ProtocolVersion {
		t.Errorf("protocol version = %s, want %s", result.ProtocolVersion, mcp.ProtocolVersion)
	}
	if result.ServerInfo.Name != "mcpd" {
		t.Errorf("server name = %s", result.ServerInfo.Name)
	}
	if result.Capabilities.Tools == nil || result.Capabilities.Resources == nil {
		t.Errorf("capabilities incomplete: %+v", result.Capabilities)
	}
}

func TestRequestsGatedBeforeInitialize(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialTest(t, ts)

	msg := roundTrip(t, conn, mcp.NewRequest(1, mcp.MethodListTools, nil))
	if msg.Error == nil {
		t.Fatal("tools/list before initialize should fail")
	}
	if msg.Error.Code != mcp.ErrorCodeInvalidRequest {
		t.Errorf("error code = %d, want %d", msg.Error.Code, mcp.ErrorCodeInvalidRequest)
	}
	if msg.Error.Message != "Client not initialized" {
		t.Errorf("unexpected error message %q", msg.Error.Message)
	}
}

func TestListTools(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialTest(t, ts)
	initSession(t, conn)

	msg := roundTrip(t, conn, mcp.NewRequest(2, mcp.MethodListTools, nil))
	if msg.Error != nil {
		t.Fatalf("tools/list failed: %+v", msg.Error)
	}

	var result mcp.ListToolsResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("cannot decode tools list: %v", err)
	}

	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"add", "db_health_check", "web_search"} {
		if !names[want] {
			t.Errorf("tool %s missing from list", want)
		}
	}
}

func TestCallToolAdd(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialTest(t, ts)
	initSession(t, conn)

	msg := roundTrip(t, conn, mcp.NewRequest(3, mcp.MethodCallTool, mcp.ToolCallParams{
		Name:      "add",
		Arguments: map[string]interface{}{"a": 5, "b": 3},
	}))
	if msg.Error != nil {
		t.Fatalf("tools/call failed: %+v", msg.Error)
	}

	var result mcp.ToolCallResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("cannot decode tool result: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result.Content)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "5.00 + 3.00 = 8.00" {
		t.Errorf("unexpected content: %+v", result.Content)
	}
}

func TestCallToolDatabaseHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialTest(t, ts)
	initSession(t, conn)

	msg := roundTrip(t, conn, mcp.NewRequest(4, mcp.MethodCallTool, mcp.ToolCallParams{
		Name:      "db_health_check",
		Arguments: map[string]interface{}{},
	}))
	if msg.Error != nil {
		t.Fatalf("tools/call failed: %+v", msg.Error)
	}

	var result mcp.ToolCallResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("cannot decode tool result: %v", err)
	}
	if result.IsError || !strings.Contains(result.Content[0].Text, "healthy") {
		t.Errorf("unexpected health result: %+v", result.Content)
	}
}

func TestCallToolUnknown(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialTest(t, ts)
	initSession(t, conn)

	msg := roundTrip(t, conn, mcp.NewRequest(5, mcp.MethodCallTool, mcp.ToolCallParams{Name: "teleport"}))
	if msg.Error == nil {
		t.Fatal("unknown tool should return an error response")
	}
	if msg.Error.Code != mcp.ErrorCodeMethodNotFound {
		t.Errorf("error code = %d, want %d", msg.Error.Code, mcp.ErrorCodeMethodNotFound)
	}
}

func TestUnknownMethod(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialTest(t, ts)
	initSession(t, conn)

	msg := roundTrip(t, conn, mcp.NewRequest(6, "bogus/method", nil))
	if msg.Error == nil || msg.Error.Code != mcp.ErrorCodeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", msg.Error)
	}
}

func TestParseErrorResponse(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialTest(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("this is not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg mcp.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.Error == nil || msg.Error.Code != mcp.ErrorCodeParseError {
		t.Fatalf("expected parse error, got %+v", msg.Error)
	}

	// The session must survive a bad frame.
	pong := roundTrip(t, conn, mcp.NewRequest(7, mcp.MethodPing, nil))
	if pong.Error != nil {
		t.Errorf("ping after parse error failed: %+v", pong.Error)
	}
}

func TestPingWithoutInitialize(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialTest(t, ts)

	msg := roundTrip(t, conn, mcp.NewRequest(8, mcp.MethodPing, nil))
	if msg.Error != nil {
		t.Fatalf("ping should not be gated: %+v", msg.Error)
	}
}

func TestInitializedNotificationOpensGate(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialTest(t, ts)

	// Notifications produce no response, so follow with a request and
	// expect its id back.
	if err := conn.WriteJSON(mcp.NewNotification(mcp.MethodInitialized, nil)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	msg := roundTrip(t, conn, mcp.NewRequest(9, mcp.MethodListTools, nil))
	if msg.Error != nil {
		t.Fatalf("tools/list after initialized notification failed: %+v", msg.Error)
	}
	if id, ok := msg.ID.(float64); !ok || id != 9 {
		t.Errorf("response id = %v, want 9", msg.ID)
	}
}

func TestResourcesEmpty(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialTest(t, ts)
	initSession(t, conn)

	msg := roundTrip(t, conn, mcp.NewRequest(10, mcp.MethodListResources, nil))
	if msg.Error != nil {
		t.Fatalf("resources/list failed: %+v", msg.Error)
	}
	var result mcp.ListResourcesResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("cannot decode resources list: %v", err)
	}
	if len(result.Resources) != 0 {
		t.Errorf("expected no resources, got %+v", result.Resources)
	}

	msg = roundTrip(t, conn, mcp.NewRequest(11, mcp.MethodReadResource, mcp.ReadResourceParams{URI: "doc://missing"}))
	if msg.Error == nil || msg.Error.Code != mcp.ErrorCodeMethodNotFound {
		t.Errorf("expected resource not found, got %+v", msg.Error)
	}
}

func TestConnectionTracking(t *testing.T) {
	ts, s := newTestServer(t)
	conn := dialTest(t, ts)
	initSession(t, conn)

	if got := s.ConnectionCount(); got != 1 {
		t.Errorf("connection count = %d, want 1", got)
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for s.ConnectionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection was not removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
