package server

import (
	"encoding/json"
	"net"
	"net/http"
	"time"
)

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	ListeningAddress string `json:"listening_address"`
	ConnectedClients int    `json:"connected_clients"`
	OpenSessions     int    `json:"open_sessions"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	TLSEnabled       bool   `json:"tls_enabled"`
	ProviderEnabled  bool   `json:"provider_enabled"`
	SyncEnabled      bool   `json:"sync_enabled"`
}

// StatusHandler serves host status to local tools. Requests from other
// machines are refused.
type StatusHandler struct {
	server *Server
}

// NewStatusHandler creates a status handler for s.
func NewStatusHandler(s *Server) *StatusHandler {
	return &StatusHandler{server: s}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !isLoopbackRequest(r) {
		http.Error(w, "Forbidden: status endpoint is local-only", http.StatusForbidden)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s := h.server
	resp := StatusResponse{
		ListeningAddress: s.Addr(),
		ConnectedClients: s.ClientCount(),
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
		TLSEnabled:       s.TLSEnabled(),
		ProviderEnabled:  s.getProvider() != nil,
		SyncEnabled:      s.getCommitter() != nil,
	}
	if sessions, err := s.manager.List(r.Context()); err == nil {
		resp.OpenSessions = len(sessions)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// isLoopbackRequest reports whether r came from this machine.
func isLoopbackRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		logger().Warn("failed to parse remote address", "addr", r.RemoteAddr, "err", err)
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
