// Package api exposes the analysis pipeline over HTTP: submission,
// status polling, result retrieval, cancellation, live WebSocket events,
// health, and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veracity-labs/veracity/pkg/config"
	"github.com/veracity-labs/veracity/pkg/events"
	"github.com/veracity-labs/veracity/pkg/models"
	"github.com/veracity-labs/veracity/pkg/pipeline"
)

// AnalysisService is the pipeline surface the handlers depend on.
// *pipeline.Service is the production implementation; tests substitute stubs.
type AnalysisService interface {
	Submit(sub pipeline.Submission) (*models.JobRecord, error)
	StatusOf(jobID string) (*models.JobRecord, error)
	ResultOf(jobID string) (*models.AnalysisResult, error)
	EventsOf(jobID string) ([]models.AnomalyEvent, error)
	Cancel(jobID string) (bool, error)
	Health() *pipeline.HealthReport
}

// Server owns the HTTP listener and routes requests into the service layer.
type Server struct {
	service  AnalysisService
	manager  *events.ConnectionManager
	upgrader websocket.Upgrader

	httpServer *http.Server

	maxUploadBytes int64
	// uploadDir is where multipart uploads are staged before admission.
	// It is the workspace base, so the orphan sweeper also collects staged
	// files that were never consumed.
	uploadDir   string
	ffmpegPath  string
	ffprobePath string
}

// NewServer assembles the router and the underlying http.Server. The manager
// may be nil, which disables the WebSocket endpoint.
func NewServer(cfg *config.Config, service AnalysisService, manager *events.ConnectionManager) *Server {
	s := &Server{
		service:        service,
		manager:        manager,
		upgrader:       events.Upgrader(cfg.Server.AllowedWSOrigins),
		maxUploadBytes: cfg.Server.MaxUploadBytes,
		uploadDir:      cfg.Workspace.BasePath,
		ffmpegPath:     cfg.Sampler.FFmpegPath,
		ffprobePath:    cfg.Sampler.FFprobePath,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery(), securityHeaders())
	router.MaxMultipartMemory = 8 << 20

	v1 := router.Group("/api/v1")
	{
		v1.POST("/analyses", s.submitAnalysisHandler)
		v1.GET("/analyses/:id/status", s.statusHandler)
		v1.GET("/analyses/:id/result", s.resultHandler)
		v1.GET("/analyses/:id/events", s.eventsHandler)
		v1.DELETE("/analyses/:id", s.cancelAnalysisHandler)
		v1.GET("/ws", s.wsHandler)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// Handler returns the routed handler for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the listener until Shutdown or a listener error. It blocks.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
