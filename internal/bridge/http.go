package bridge

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/discovery"
	"github.com/muurk/switcher/internal/logging"
	"github.com/muurk/switcher/internal/version"
)

// handleDevices serves the last beacon of every device as a JSON array
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	LogHTTPRequestDetails(r, r.RemoteAddr)
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, r.RemoteAddr, s.Devices())
}

type health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Clients int    `json:"clients"`
	Devices int    `json:"devices"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := health{Status: "ok", Version: version.Version, Clients: len(s.clients), Devices: len(s.devices)}
	s.mu.Unlock()
	writeJSON(w, r.RemoteAddr, h)
}

func writeJSON(w http.ResponseWriter, remoteAddr string, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Server", version.UserAgent())
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to write response", zap.String("remote_addr", remoteAddr), zap.Error(err))
		return
	}
	logging.LogHTTPResponse(remoteAddr, http.StatusOK, map[string]string{"Content-Type": "application/json"})
}

// LogHTTPRequestDetails logs all details of an HTTP request
func LogHTTPRequestDetails(req *http.Request, remoteAddr string) {
	headers := make(map[string]string)
	for key, values := range req.Header {
		headers[key] = strings.Join(values, ", ")
	}

	logging.LogHTTPRequest(remoteAddr, req.Method, req.URL.Path, headers)

	if req.URL.Path != WebSocketPath {
		return
	}
	logging.Debug("WebSocket upgrade request details",
		zap.String("remote_addr", remoteAddr),
		zap.String("host", req.Host),
		zap.String("origin", req.Header.Get("Origin")),
		zap.String("sec_websocket_key", req.Header.Get("Sec-WebSocket-Key")),
		zap.String("sec_websocket_version", req.Header.Get("Sec-WebSocket-Version")),
		zap.String("user_agent", req.Header.Get("User-Agent")),
	)
}

// decodeDevices parses a /devices response
func decodeDevices(data []byte) ([]discovery.Message, error) {
	var msgs []discovery.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
