package server

// Broadcast queues msg for every connected client. It never blocks and does
// nothing after Stop.
func (s *Server) Broadcast(msg Message) {
	// Holding RLock through the send keeps Stop from closing the channel
	// underneath us.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return
	}

	select {
	case s.broadcast <- msg:
	default:
		logger().Warn("broadcast channel full, dropping message", "type", msg.Type)
	}
}

// runBroadcaster fans broadcast messages out to clients until Stop closes
// the channel.
func (s *Server) runBroadcaster() {
	for msg := range s.broadcast {
		s.mu.RLock()
		for client := range s.clients {
			select {
			case <-client.done:
			case client.send <- msg:
			default:
				logger().Warn("client send buffer full, dropping message", "type", msg.Type)
			}
		}
		s.mu.RUnlock()
	}
}
