package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/veracity-labs/veracity/pkg/jobs"
	"github.com/veracity-labs/veracity/pkg/pipeline"
)

// overloadRetryAfterSec is the pause suggested to clients rejected because
// the admission queue is full.
const overloadRetryAfterSec = 5

// writeServiceError maps service-layer errors to HTTP responses.
func writeServiceError(c *gin.Context, err error) {
	var rejected *pipeline.RejectedError
	if errors.As(err, &rejected) {
		switch rejected.Reason {
		case pipeline.RejectOversize:
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": rejected.Detail})
		case pipeline.RejectUnsupportedType:
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": rejected.Detail})
		case pipeline.RejectOverloaded:
			c.Header("Retry-After", strconv.Itoa(overloadRetryAfterSec))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":           rejected.Detail,
				"retry_after_sec": overloadRetryAfterSec,
			})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": rejected.Detail})
		}
		return
	}

	var notReady *pipeline.NotReadyError
	if errors.As(err, &notReady) {
		c.JSON(http.StatusConflict, gin.H{
			"error":    "analysis not finished",
			"status":   notReady.Status,
			"progress": notReady.Progress,
		})
		return
	}

	var failed *pipeline.FailedError
	if errors.As(err, &failed) {
		c.JSON(http.StatusGone, gin.H{
			"error":      "analysis failed",
			"error_kind": failed.Kind,
			"detail":     failed.Detail,
		})
		return
	}

	if errors.Is(err, jobs.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
