package api

import (
	"fmt"
	"net/http"
	"os/exec"

	"github.com/gin-gonic/gin"

	"github.com/veracity-labs/veracity/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health.
// Returns a minimal, safe response suitable for unauthenticated access.
// The worker pool gates overall health; a full admission queue or missing
// ffmpeg only degrade it - reads still work in both cases, and restarting
// the process fixes neither.
func (s *Server) healthHandler(c *gin.Context) {
	report := s.service.Health()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if report.Pool != nil && report.Pool.IsHealthy {
		checks["workers"] = HealthCheck{Status: healthStatusHealthy}
	} else {
		status = healthStatusUnhealthy
		checks["workers"] = HealthCheck{
			Status:  healthStatusUnhealthy,
			Message: "worker pool is not running",
		}
	}

	if report.Pool != nil && report.Pool.QueueDepth >= report.Pool.QueueCapacity {
		if status == healthStatusHealthy {
			status = healthStatusDegraded
		}
		checks["queue"] = HealthCheck{
			Status:  healthStatusDegraded,
			Message: fmt.Sprintf("admission queue at capacity (%d)", report.Pool.QueueCapacity),
		}
	} else {
		checks["queue"] = HealthCheck{Status: healthStatusHealthy}
	}

	checks["ffmpeg"] = s.checkFFmpeg()
	if checks["ffmpeg"].Status != healthStatusHealthy && status == healthStatusHealthy {
		status = healthStatusDegraded
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, &HealthResponse{
		Status:          status,
		Version:         version.GitCommit,
		PipelineVersion: report.PipelineVersion,
		Checks:          checks,
	})
}

// checkFFmpeg verifies both media binaries resolve. Sampling fails cleanly
// without them, so a miss degrades rather than kills health.
func (s *Server) checkFFmpeg() HealthCheck {
	for _, bin := range []string{s.ffmpegPath, s.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return HealthCheck{
				Status:  healthStatusDegraded,
				Message: fmt.Sprintf("%s not found", bin),
			}
		}
	}
	return HealthCheck{Status: healthStatusHealthy}
}
