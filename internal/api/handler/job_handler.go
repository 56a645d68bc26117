package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/pdf-station/internal/api/dto"
	"github.com/cuongbtq/pdf-station/internal/domain"
	"github.com/cuongbtq/pdf-station/internal/storage"
	"github.com/cuongbtq/pdf-station/internal/submission"
)

// CreateJob handles POST /api/v1/jobs
// The operation is taken from the "operation" form field
func (h *JobHandler) CreateJob(c *gin.Context) {
	h.submit(c, "", "")
}

// CompressJob handles POST /api/v1/jobs/compress
func (h *JobHandler) CompressJob(c *gin.Context) {
	h.submit(c, domain.OperationCompress, "")
}

// MergeJob handles POST /api/v1/jobs/merge
func (h *JobHandler) MergeJob(c *gin.Context) {
	h.submit(c, domain.OperationMerge, "")
}

// SplitJob handles POST /api/v1/jobs/split
func (h *JobHandler) SplitJob(c *gin.Context) {
	h.submit(c, domain.OperationSplit, "")
}

// ProtectJob handles POST /api/v1/jobs/protect
func (h *JobHandler) ProtectJob(c *gin.Context) {
	h.submit(c, domain.OperationProtect, domain.ProtectAdd)
}

// RemoveProtectionJob handles POST /api/v1/jobs/remove-protection
func (h *JobHandler) RemoveProtectionJob(c *gin.Context) {
	h.submit(c, domain.OperationProtect, domain.ProtectRemove)
}

// PDFToWordJob handles POST /api/v1/jobs/pdf-to-word
func (h *JobHandler) PDFToWordJob(c *gin.Context) {
	h.submit(c, domain.OperationPDFToWord, "")
}

func (h *JobHandler) submit(c *gin.Context, op domain.Operation, action domain.ProtectAction) {
	h.logger.Info("SubmitJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	form, err := c.MultipartForm()
	if err != nil {
		h.logger.Warn("Invalid multipart form", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "multipart/form-data with PDF files is required",
		})
		return
	}
	defer form.RemoveAll()

	var req dto.JobForm
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("Invalid form fields", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid parameters",
			"details": err.Error(),
		})
		return
	}

	if op == "" {
		if op, err = domain.ParseOperation(req.Operation); err != nil {
			h.respondWithError(c, err)
			return
		}
	}

	files := collectFiles(form)
	if len(files) == 0 {
		h.respondWithError(c, domain.ErrNoFiles)
		return
	}

	uploads := make([]submission.Upload, 0, len(files))
	for _, fh := range files {
		if h.maxUploadSize > 0 && fh.Size > h.maxUploadSize {
			h.respondWithError(c, fmt.Errorf("%w: %s", domain.ErrFileTooLarge, fh.Filename))
			return
		}

		file, err := fh.Open()
		if err != nil {
			h.respondWithError(c, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err))
			return
		}
		defer file.Close()

		uploads = append(uploads, submission.Upload{Name: fh.Filename, Content: file})
	}

	job, err := h.service.Submit(c.Request.Context(), submission.Request{
		Operation: op.String(),
		Uploads:   uploads,
		Params:    buildParams(op, &req, action),
	})
	if err != nil {
		h.logger.Warn("Failed to submit job",
			slog.String("operation", op.String()),
			slog.Any("error", err),
		)
		h.respondWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, toJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.parseJobID(c)
	if !ok {
		return
	}

	h.logger.Info("GetJob called", slog.String("job_id", jobID.String()))

	job, err := h.service.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// GetJobStatus handles GET /api/v1/jobs/:job_id/status
func (h *JobHandler) GetJobStatus(c *gin.Context) {
	jobID, ok := h.parseJobID(c)
	if !ok {
		return
	}

	event, err := h.service.Status(c.Request.Context(), jobID)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobStatusResponse{
		JobID:     event.JobID.String(),
		Status:    event.Status.String(),
		UpdatedAt: event.UpdatedAt.Format(time.RFC3339),
	})
}

// DownloadJob handles GET /api/v1/jobs/:job_id/download
func (h *JobHandler) DownloadJob(c *gin.Context) {
	jobID, ok := h.parseJobID(c)
	if !ok {
		return
	}

	h.logger.Info("DownloadJob called", slog.String("job_id", jobID.String()))

	download, err := h.service.Download(c.Request.Context(), jobID)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	c.Header("Content-Type", download.ContentType)
	c.FileAttachment(download.Path, download.Name)
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	h.logger.Info("ListJobs called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
	)

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	filter := storage.JobFilter{PageSize: req.PageSize}

	if req.Operation != "" {
		op, err := domain.ParseOperation(req.Operation)
		if err != nil {
			h.respondWithError(c, err)
			return
		}
		filter.Operation = op
	}

	if req.Status != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid status",
			})
			return
		}
		filter.Status = status
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}
	filter.Cursor = cursor

	page, err := h.service.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	jobResponse := make([]dto.JobDTO, len(page.Jobs))
	for i, job := range page.Jobs {
		jobResponse[i] = toJobDTO(job)
	}

	var nextCursor string
	if page.Next != nil {
		nextCursor = EncodeJobCursor(page.Next)
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// EstimateSize handles GET /api/v1/estimate-size
func (h *JobHandler) EstimateSize(c *gin.Context) {
	var req dto.EstimateSizeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid parameters",
			"details": err.Error(),
		})
		return
	}

	quality := defaultQualityPercent
	if req.Quality != nil {
		quality = *req.Quality
	}

	estimated, err := h.service.EstimateSize(req.OriginalSize, quality)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	reduction := float64(req.OriginalSize-estimated) / float64(req.OriginalSize) * 100

	c.JSON(http.StatusOK, dto.EstimateSizeResponse{
		OriginalSize:     req.OriginalSize,
		Quality:          quality,
		EstimatedSize:    estimated,
		ReductionPercent: reduction,
	})
}

func (h *JobHandler) parseJobID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Param("job_id")
	jobID, err := uuid.Parse(raw)
	if err != nil {
		h.logger.Warn("Invalid job_id format", slog.String("job_id", raw))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return jobID, true
}

func toJobDTO(job *domain.Job) dto.JobDTO {
	out := dto.JobDTO{
		JobID:        job.ID.String(),
		Operation:    job.Operation.String(),
		Status:       job.Status.String(),
		InputFiles:   len(job.InputPaths),
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
		ErrorMessage: job.ErrorMessage,
		Params:       paramsView(job.Params),
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}
	if job.Status == domain.StatusCompleted {
		out.DownloadURL = "/api/v1/jobs/" + job.ID.String() + "/download"
	}
	return out
}
