package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// wsHandler upgrades HTTP connections to WebSocket and delegates to the
// ConnectionManager.
func (s *Server) wsHandler(c *gin.Context) {
	if s.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WebSocket not available"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		slog.Warn("WebSocket upgrade failed", "error", err, "client_ip", c.ClientIP())
		return
	}

	// HandleConnection blocks until the WebSocket closes.
	s.manager.HandleConnection(conn)
}
