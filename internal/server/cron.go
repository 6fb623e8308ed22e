package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleCronReports runs one scheduler pass on demand. Deployments without
// an in-process ticker call this from an external cron.
func (s *Server) handleCronReports(c *gin.Context) {
	if s.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running"})
		return
	}

	if err := s.scheduler.RunOnce(c.Request.Context()); err != nil {
		s.log.Error("cron pass failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pass failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
