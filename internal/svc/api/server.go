// If you are AI: This file provides HTTP API service integration.
// The API exposes server state and stream status without blocking media paths.

package api

import (
	"net/http"
	"time"

	"rtmprelay/internal/core/bus"
)

// Service provides HTTP API functionality.
type Service struct {
	registry  *bus.Registry
	startTime int64
}

// NewService creates a new API service.
func NewService(registry *bus.Registry) *Service {
	return &Service{
		registry:  registry,
		startTime: getCurrentTime(),
	}
}

// RegisterRoutes registers API routes on the provided mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/server", s.handleServer)
	mux.HandleFunc("/api/streams", s.handleStreams)
}

// getCurrentTime returns current Unix timestamp.
// Extracted for testability.
func getCurrentTime() int64 {
	return time.Now().Unix()
}
