package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"mcpd/internal/shared/logger"
	"mcpd/internal/shared/settings"
	"mcpd/internal/shared/types"
)

// StatusProvider is the interface the web layer uses to read runtime
// state from the application. It decouples this package from the app
// wiring.
type StatusProvider interface {
	Healthy() bool
	BackendStates() map[string]*types.BackendState
	ConnectionCount() int
}

type Handler struct {
	settingsManager *settings.SettingsManager
	status          StatusProvider
}

func NewHandler(settingsManager *settings.SettingsManager, status StatusProvider) *Handler {
	return &Handler{
		settingsManager: settingsManager,
		status:          status,
	}
}

// HandleHealth serves GET /health, the plain liveness probe.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "healthy"
	code := http.StatusOK
	if !h.status.Healthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    status,
		"service":   "mcpd",
		"timestamp": time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// HandleStatus serves GET /api/status with the full backend snapshot.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type StatusResponse struct {
		GlobalStatus string                         `json:"globalStatus"`
		Backends     map[string]*types.BackendState `json:"backends"`
		Connections  int                            `json:"connections"`
		Timestamp    time.Time                      `json:"timestamp"`
	}

	globalStatus := "up"
	if !h.status.Healthy() {
		globalStatus = "degraded"
	}

	response := StatusResponse{
		GlobalStatus: globalStatus,
		Backends:     h.status.BackendStates(),
		Connections:  h.status.ConnectionCount(),
		Timestamp:    time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleGetSettings serves GET /api/settings.
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	currentSettings := h.settingsManager.Get()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(currentSettings)
}

// HandleUpdateSettings serves POST /api/settings/{module}.
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	moduleKey := strings.TrimPrefix(r.URL.Path, "/api/settings/")
	if moduleKey == "" {
		http.Error(w, "Module key is missing in URL path", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	if err := h.settingsManager.Update(moduleKey, body); err != nil {
		if strings.Contains(err.Error(), "unknown settings module") {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else if strings.Contains(err.Error(), "failed to parse JSON") {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	logger.Info().Str("module", moduleKey).Msg("settings updated via API")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "Settings updated successfully"}`))
}
