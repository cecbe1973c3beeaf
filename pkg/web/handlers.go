package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/mwestergaard/go-headlock/pkg/hub"
)

// handleStatus returns the current tracking status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return c.JSON(s.status)
}

// handleGetLogs returns recent log entries
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}

// handleStatusWS handles WebSocket connections for live status updates
func (s *Server) handleStatusWS(c *websocket.Conn) {
	// Send current status before joining the broadcast set
	s.statusMu.RLock()
	c.WriteJSON(s.status)
	s.statusMu.RUnlock()

	hub.NewClient(s.statusHub, c).Run() // Blocks until disconnect
}

// handleLogsWS handles WebSocket connections for live logs
func (s *Server) handleLogsWS(c *websocket.Conn) {
	// Send recent logs first
	s.logsMu.RLock()
	for _, entry := range s.logs {
		c.WriteJSON(entry)
	}
	s.logsMu.RUnlock()

	hub.NewClient(s.logHub, c).Run()
}

// handlePreviewWS handles WebSocket connections for the preview feed
func (s *Server) handlePreviewWS(c *websocket.Conn) {
	hub.NewClient(s.previewHub, c).Run()
}
