package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mcpd/internal/shared/types"
)

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		ts.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, ts
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count never reached %d, have %d", want, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubBroadcastStatusUpdate(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn, ts := dialHub(t, hub)
	defer ts.Close()
	defer conn.Close()

	waitForClients(t, hub, 1)
	// Let the run loop settle back into its select before broadcasting.
	time.Sleep(50 * time.Millisecond)

	hub.BroadcastStatusUpdate(&StatusUpdate{
		Timestamp: time.Now(),
		Healthy:   true,
		Backends: map[string]*types.BackendState{
			"database": {Status: types.StatusUp, LatencyMs: 4},
		},
		Connections: 1,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	var msg WebSocketMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("invalid frame: %v", err)
	}
	if msg.Type != "status_update" {
		t.Errorf("expected status_update, got %s", msg.Type)
	}

	data, _ := json.Marshal(msg.Data)
	var update StatusUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if !update.Healthy || update.Connections != 1 {
		t.Errorf("unexpected payload: %+v", update)
	}
	if state, ok := update.Backends["database"]; !ok || state.Status != types.StatusUp {
		t.Errorf("backend snapshot missing: %+v", update.Backends)
	}
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn, ts := dialHub(t, hub)
	defer ts.Close()

	waitForClients(t, hub, 1)
	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub() // Run is intentionally not started.

	done := make(chan struct{})
	go func() {
		hub.BroadcastStatusUpdate(&StatusUpdate{Timestamp: time.Now(), Healthy: true})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked without an active run loop")
	}
}
