package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/veracity-labs/veracity/pkg/models"
	"github.com/veracity-labs/veracity/pkg/pipeline"
)

// multipartOverheadBytes is the allowance for boundaries and part headers on
// top of the media payload when capping the request body.
const multipartOverheadBytes = 1 << 20

// submitAnalysisHandler handles POST /api/v1/analyses.
// Stages the uploaded file, admits it into the pipeline, and returns
// immediately with the job ID.
func (s *Server) submitAnalysisHandler(c *gin.Context) {
	// 1. Cap the request body before touching the multipart reader. The
	// service enforces the exact media limit; this guards the transport.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body,
		s.maxUploadBytes+multipartOverheadBytes)

	// 2. Pull the media part out of the form.
	file, header, err := c.Request.FormFile("video")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("request body exceeds the %s upload limit",
					humanize.Bytes(uint64(s.maxUploadBytes))),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": `multipart field "video" is required`})
		return
	}
	defer file.Close()

	// 3. Stage the upload to disk. The staged file keeps the client's
	// extension so operators can tell uploads apart in the workspace dir.
	staged, err := os.CreateTemp(s.uploadDir, "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		slog.Error("Failed to stage upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not stage upload"})
		return
	}
	written, err := io.Copy(staged, file)
	if cerr := staged.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(staged.Name())
		slog.Error("Failed to write staged upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not stage upload"})
		return
	}

	// 4. Admit. The pipeline takes ownership of the staged file on success;
	// rejected submissions leave it with us to clean up.
	record, err := s.service.Submit(pipeline.Submission{
		Filename:  header.Filename,
		SizeBytes: written,
		MediaPath: staged.Name(),
	})
	if err != nil {
		os.Remove(staged.Name())
		writeServiceError(c, err)
		return
	}

	// 5. Return response
	c.JSON(http.StatusAccepted, &SubmitResponse{
		JobID:   record.ID,
		Status:  string(record.Status),
		Message: "Video accepted for analysis",
	})
}

// statusHandler handles GET /api/v1/analyses/:id/status.
func (s *Server) statusHandler(c *gin.Context) {
	record, err := s.service.StatusOf(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, &StatusResponse{
		JobID:       record.ID,
		Status:      record.Status,
		Phase:       record.Phase,
		Filename:    record.Filename,
		SizeBytes:   record.SizeBytes,
		Progress:    record.Progress,
		CreatedAt:   record.CreatedAt,
		StartedAt:   record.StartedAt,
		CompletedAt: record.CompletedAt,
		ErrorKind:   record.ErrorKind,
		ErrorDetail: record.ErrorDetail,
	})
}

// resultHandler handles GET /api/v1/analyses/:id/result.
// Unfinished jobs get 409 with live progress, failed jobs 410 with the
// failure classification.
func (s *Server) resultHandler(c *gin.Context) {
	result, err := s.service.ResultOf(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// eventsHandler handles GET /api/v1/analyses/:id/events with the same
// completion gating as the result endpoint.
func (s *Server) eventsHandler(c *gin.Context) {
	evs, err := s.service.EventsOf(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if evs == nil {
		evs = []models.AnomalyEvent{}
	}
	c.JSON(http.StatusOK, &EventsResponse{
		JobID:  c.Param("id"),
		Events: evs,
	})
}

// cancelAnalysisHandler handles DELETE /api/v1/analyses/:id.
// Cancellation is asynchronous: 202 means the job will reach a terminal
// state shortly, not that it already has.
func (s *Server) cancelAnalysisHandler(c *gin.Context) {
	jobID := c.Param("id")

	changed, err := s.service.Cancel(jobID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !changed {
		c.JSON(http.StatusConflict, gin.H{"error": "job is not in a cancellable state"})
		return
	}

	c.JSON(http.StatusAccepted, &CancelResponse{
		JobID:   jobID,
		Message: "Job cancellation requested",
	})
}
