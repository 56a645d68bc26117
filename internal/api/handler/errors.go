package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/pdf-station/internal/domain"
)

// respondWithError maps domain errors onto HTTP responses
func (h *JobHandler) respondWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	case errors.Is(err, domain.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "PDF not ready yet"})
	case errors.Is(err, domain.ErrOutputMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": "Output file not found"})
	case errors.Is(err, domain.ErrInvalidOperation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid operation"})
	case errors.Is(err, domain.ErrNoFiles):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
	case errors.Is(err, domain.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
	case errors.Is(err, domain.ErrUnsupportedMedia):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Only PDF files are accepted"})
	case errors.Is(err, domain.ErrInvalidParameters):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parameters", "details": err.Error()})
	default:
		h.logger.Error("Request failed",
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
