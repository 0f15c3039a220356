// If you are AI: This file implements the RTMP server that accepts connections.
// Each accepted connection gets its own ServiceSession, which owns the
// handshake, reader loop, writer goroutine, and command dispatch.

package rtmp

import (
	"log"
	"net"

	"rtmprelay/internal/core/bus"
)

// Server represents an RTMP server.
type Server struct {
	registry *bus.Registry
	cfg      SessionConfig
	listener net.Listener
}

// NewServer creates a new RTMP server. cfg is applied to every session it
// accepts.
func NewServer(registry *bus.Registry, cfg SessionConfig) *Server {
	return &Server{registry: registry, cfg: cfg}
}

// Listen starts listening on the specified address.
func (s *Server) Listen(addr string) error {
	var err error
	s.listener, err = net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return nil
}

// Accept accepts connections and handles them in goroutines. It returns when
// the listener is closed.
func (s *Server) Accept() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConnection(conn)
	}
}

// handleConnection runs a single accepted connection to completion.
func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("rtmp: error closing connection: %v", err)
		}
	}()

	session := NewServiceSession(conn, s.registry, s.cfg)
	session.Run()
}

// Close closes the server's listener.
func (s *Server) Close() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
