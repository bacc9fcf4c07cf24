package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// BackendStatus is what the host knows about the supervised backend.
type BackendStatus interface {
	Ready() bool
	Alive() bool
	PID() int
	LastProbe() string
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Ready          bool   `json:"ready"`
	BackendRunning bool   `json:"backend_running"`
	PID            int    `json:"pid,omitempty"`
	LastProbe      string `json:"last_probe,omitempty"`
}

// StatusHandler serves the host status endpoints.
type StatusHandler struct {
	backend BackendStatus
	logger  *slog.Logger
}

func NewStatusHandler(backend BackendStatus, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		backend: backend,
		logger:  logger,
	}
}

// GetStatus handles GET /status.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Ready:          h.backend.Ready(),
		BackendRunning: h.backend.Alive(),
		PID:            h.backend.PID(),
		LastProbe:      h.backend.LastProbe(),
	}
	h.logger.Debug("status requested", "ready", resp.Ready, "backend_running", resp.BackendRunning)
	writeJSON(w, http.StatusOK, resp)
}

// GetReady handles GET /ready: 200 once the backend answered its health
// check, 503 before that or after it exited.
func (h *StatusHandler) GetReady(w http.ResponseWriter, r *http.Request) {
	if !h.backend.Ready() || !h.backend.Alive() {
		writeError(w, http.StatusServiceUnavailable, "backend not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"detail": message,
	})
}
