package server

import (
	"golang.org/x/time/rate"

	"github.com/veroide/mergehost/internal/remote"
	"github.com/veroide/mergehost/internal/session"
)

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// SetProvider sets where session.open fetches conflicts when the client
// doesn't send them. Without one, clients must include the files.
func (s *Server) SetProvider(p remote.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = p
}

// SetCommitter sets where session.commit sends merged files. Without one,
// commits fail with server.handler_missing.
func (s *Server) SetCommitter(c session.Committer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committer = c
}

// SetRateLimit sets the per-client request rate for clients that connect
// afterwards. Non-positive values keep the current setting.
func (s *Server) SetRateLimit(perSecond float64, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if perSecond > 0 {
		s.rateLimit = rate.Limit(perSecond)
	}
	if burst > 0 {
		s.rateBurst = burst
	}
}

func (s *Server) getProvider() remote.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

func (s *Server) getCommitter() session.Committer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committer
}
