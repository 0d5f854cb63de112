package server

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
)

// TLSConfig holds the certificate the server presents.
type TLSConfig struct {
	CertPath string
	KeyPath  string
}

// Start listens and serves until Stop. It blocks; use StartAsync to learn
// about listen errors without blocking.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.createMux(),
	}

	go s.runBroadcaster()

	logger().Info("listening", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// StartAsync binds the listener, then serves in the background. The channel
// yields nil once the server is accepting connections, or the listen error.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		errCh <- fmt.Errorf("failed to listen on %s: %w", s.addr, err)
		close(errCh)
		return errCh
	}

	s.serve(ln, errCh)
	return errCh
}

// StartAsyncTLS is StartAsync over TLS. Plaintext clients are refused.
func (s *Server) StartAsyncTLS(tlsCfg TLSConfig) <-chan error {
	errCh := make(chan error, 1)

	cert, err := tls.LoadX509KeyPair(tlsCfg.CertPath, tlsCfg.KeyPath)
	if err != nil {
		errCh <- fmt.Errorf("failed to load TLS certificate: %w", err)
		close(errCh)
		return errCh
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		errCh <- fmt.Errorf("failed to listen on %s: %w", s.addr, err)
		close(errCh)
		return errCh
	}

	s.mu.Lock()
	s.tlsEnabled = true
	s.mu.Unlock()

	s.serve(tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}), errCh)
	return errCh
}

func (s *Server) serve(ln net.Listener, errCh chan<- error) {
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler: s.createMux(),
	}

	go s.runBroadcaster()

	go func() {
		logger().Info("listening", "addr", s.addr, "tls", s.TLSEnabled())
		errCh <- nil
		close(errCh)

		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger().Error("server stopped", "err", err)
		}
	}()
}

// TLSEnabled reports whether the server was started with StartAsyncTLS.
func (s *Server) TLSEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tlsEnabled
}

// Stop closes every client and the listener, and cancels in-flight
// provider and commit requests. The session manager is left running.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true

	for client := range s.clients {
		client.closeSend()
	}
	s.clients = make(map[*Client]bool)

	close(s.broadcast)
	s.mu.Unlock()

	s.cancel()

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}
