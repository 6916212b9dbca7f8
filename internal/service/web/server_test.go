package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"mcpd/internal/shared/settings"
	"mcpd/internal/shared/types"
)

func newTestConfig(user, pass string) *types.Config {
	cfg := &types.Config{}
	cfg.ServerConf = types.ServerConf{
		Addr:        "127.0.0.1:0",
		MCPPath:     "/mcp",
		WebUser:     user,
		WebPassword: pass,
	}
	return cfg
}

func newRouteServer(t *testing.T, user, pass string) *httptest.Server {
	t.Helper()
	sm, err := settings.NewSettingsManager("")
	if err != nil {
		t.Fatalf("settings manager: %v", err)
	}
	hub := NewHub()
	go hub.Run()

	mcpHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mcp endpoint"))
	}

	srv := NewServer(newTestConfig(user, pass), sm, &stubStatus{healthy: true}, hub, mcpHandler)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url, user, pass string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestServerRoutesWithAuth(t *testing.T) {
	ts := newRouteServer(t, "admin", "secret")

	// The MCP endpoint never sits behind auth.
	code, body := get(t, ts.URL+"/mcp", "", "")
	if code != http.StatusOK || body != "mcp endpoint" {
		t.Errorf("mcp route: code=%d body=%q", code, body)
	}

	// The liveness probe stays public.
	if code, _ := get(t, ts.URL+"/health", "", ""); code != http.StatusOK {
		t.Errorf("health route: code=%d", code)
	}

	// Observer and management routes require credentials.
	for _, path := range []string{"/api/status", "/api/settings", "/ws"} {
		if code, _ := get(t, ts.URL+path, "", ""); code != http.StatusUnauthorized {
			t.Errorf("%s without auth: code=%d", path, code)
		}
	}
	if code, _ := get(t, ts.URL+"/api/settings", "admin", "wrong"); code != http.StatusUnauthorized {
		t.Errorf("settings with bad password: code=%d", code)
	}
	if code, _ := get(t, ts.URL+"/api/settings", "admin", "secret"); code != http.StatusOK {
		t.Errorf("settings with auth: code=%d", code)
	}
	if code, _ := get(t, ts.URL+"/api/status", "admin", "secret"); code != http.StatusOK {
		t.Errorf("status with auth: code=%d", code)
	}
	// With credentials the request reaches the websocket upgrader, which
	// rejects a plain GET as a bad handshake.
	if code, _ := get(t, ts.URL+"/ws", "admin", "secret"); code != http.StatusBadRequest {
		t.Errorf("ws with auth: code=%d", code)
	}
}

func TestServerAuthDisabledWithoutCredentials(t *testing.T) {
	ts := newRouteServer(t, "", "")

	if code, _ := get(t, ts.URL+"/api/settings", "", ""); code != http.StatusOK {
		t.Errorf("settings should be open without configured credentials: code=%d", code)
	}
	if code, _ := get(t, ts.URL+"/api/status", "", ""); code != http.StatusOK {
		t.Errorf("status should be open without configured credentials: code=%d", code)
	}
}
