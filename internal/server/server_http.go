package server

import (
	"net/http"

	"golang.org/x/time/rate"
)

// createMux creates the HTTP mux with all endpoints.
func (s *Server) createMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/status", NewStatusHandler(s))

	return mux
}

// handleWebSocket upgrades a request on /ws, registers the client, and
// sends it the current session list.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger().Warn("websocket upgrade failed", "err", err)
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	client := &Client{
		conn:    conn,
		send:    make(chan Message, channelBufferSize),
		done:    make(chan struct{}),
		server:  s,
		limiter: rate.NewLimiter(s.rateLimit, s.rateBurst),
	}
	s.clients[client] = true
	count := len(s.clients)
	s.mu.Unlock()

	logger().Info("client connected", "remote", r.RemoteAddr, "total", count)

	go client.writePump()

	sessions, err := s.manager.List(s.ctx)
	if err != nil {
		client.sendError("", err)
	} else {
		client.sendMessage(NewSessionListMessage("", sessions))
	}

	go client.readPump()
}
