package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/pdf-station/internal/api/dto"
	"github.com/cuongbtq/pdf-station/internal/domain"
	"github.com/cuongbtq/pdf-station/internal/storage"
	"github.com/cuongbtq/pdf-station/internal/submission"
)

type stubService struct {
	submitted   *submission.Request
	uploadNames []string
	uploadData  [][]byte
	submitErr   error

	job      *domain.Job
	jobErr   error
	page     *submission.Page
	filter   storage.JobFilter
	status   *domain.JobStatusEvent
	download *submission.Download
	dlErr    error
}

func (s *stubService) Submit(_ context.Context, req submission.Request) (*domain.Job, error) {
	s.submitted = &req
	for _, upload := range req.Uploads {
		data, err := io.ReadAll(upload.Content)
		if err != nil {
			return nil, err
		}
		s.uploadNames = append(s.uploadNames, upload.Name)
		s.uploadData = append(s.uploadData, data)
	}
	if s.submitErr != nil {
		return nil, s.submitErr
	}

	op, err := domain.ParseOperation(req.Operation)
	if err != nil {
		return nil, err
	}
	return &domain.Job{
		ID:         uuid.New(),
		Operation:  op,
		Status:     domain.StatusCreated,
		InputPaths: make([]string, len(req.Uploads)),
		MaxRetries: 3,
		Params:     req.Params,
	}, nil
}

func (s *stubService) GetJob(context.Context, uuid.UUID) (*domain.Job, error) {
	return s.job, s.jobErr
}

func (s *stubService) ListJobs(_ context.Context, filter storage.JobFilter) (*submission.Page, error) {
	s.filter = filter
	return s.page, nil
}

func (s *stubService) Status(context.Context, uuid.UUID) (*domain.JobStatusEvent, error) {
	return s.status, s.jobErr
}

func (s *stubService) Download(context.Context, uuid.UUID) (*submission.Download, error) {
	return s.download, s.dlErr
}

func (s *stubService) EstimateSize(originalSize int64, quality int) (int64, error) {
	return originalSize * int64(quality) / 200, nil
}

func newTestRouter(svc *stubService, maxUpload int64) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := NewJobHandler(&Dependencies{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Service:       svc,
		MaxUploadSize: maxUpload,
	})

	r := gin.New()
	jobs := r.Group("/api/v1/jobs")
	jobs.POST("", h.CreateJob)
	jobs.POST("/compress", h.CompressJob)
	jobs.POST("/merge", h.MergeJob)
	jobs.POST("/split", h.SplitJob)
	jobs.POST("/protect", h.ProtectJob)
	jobs.POST("/remove-protection", h.RemoveProtectionJob)
	jobs.POST("/pdf-to-word", h.PDFToWordJob)
	jobs.GET("", h.ListJobs)
	jobs.GET("/:job_id", h.GetJob)
	jobs.GET("/:job_id/status", h.GetJobStatus)
	jobs.GET("/:job_id/download", h.DownloadJob)
	r.GET("/api/v1/estimate-size", h.EstimateSize)
	return r
}

type formFile struct {
	field string
	name  string
	data  []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, f := range files {
		fw, err := writer.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

var pdfBytes = []byte("%PDF-1.7\n%%EOF\n")

func TestCompressJob(t *testing.T) {
	tests := []struct {
		name        string
		fields      map[string]string
		wantQuality float64
	}{
		{name: "default quality", fields: nil, wantQuality: 0.5},
		{name: "explicit quality", fields: map[string]string{"quality": "80"}, wantQuality: 0.8},
		{name: "lowest quality", fields: map[string]string{"quality": "0"}, wantQuality: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			r := newTestRouter(svc, 1<<20)

			rec := serve(r, multipartRequest(t, "/api/v1/jobs/compress", tt.fields, formFile{"file", "report.pdf", pdfBytes}))
			require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

			require.NotNil(t, svc.submitted)
			assert.Equal(t, "COMPRESS", svc.submitted.Operation)
			require.NotNil(t, svc.submitted.Params.Compress)
			assert.InDelta(t, tt.wantQuality, svc.submitted.Params.Compress.Quality, 1e-9)
			assert.Equal(t, []string{"report.pdf"}, svc.uploadNames)
			assert.Equal(t, pdfBytes, svc.uploadData[0])

			var job dto.JobDTO
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
			assert.Equal(t, "CREATED", job.Status)
			assert.Equal(t, "COMPRESS", job.Operation)
			assert.Empty(t, job.DownloadURL)
		})
	}
}

func TestCompressJob_QualityOutOfRange(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, multipartRequest(t, "/api/v1/jobs/compress", map[string]string{"quality": "150"}, formFile{"file", "a.pdf", pdfBytes}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.submitted)
}

func TestMergeJob_KeepsFileOrder(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, multipartRequest(t, "/api/v1/jobs/merge", nil,
		formFile{"files", "first.pdf", pdfBytes},
		formFile{"files", "second.pdf", pdfBytes},
		formFile{"files", "third.pdf", pdfBytes},
	))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	assert.Equal(t, "MERGE", svc.submitted.Operation)
	assert.Equal(t, []string{"first.pdf", "second.pdf", "third.pdf"}, svc.uploadNames)
	assert.Equal(t, domain.Params{}, svc.submitted.Params)
}

func TestSplitJob(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, multipartRequest(t, "/api/v1/jobs/split",
		map[string]string{"split_type": "Pages", "split_ranges": "1-3,5"},
		formFile{"file", "a.pdf", pdfBytes},
	))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	split := svc.submitted.Params.Split
	require.NotNil(t, split)
	assert.Equal(t, domain.SplitPages, split.Type)
	assert.Equal(t, "1-3,5", split.Ranges)
}

func TestProtectJob_DefaultsAndPasswordsHidden(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, multipartRequest(t, "/api/v1/jobs/protect",
		map[string]string{"user_password": "open-sesame", "allow_copying": "false"},
		formFile{"file", "a.pdf", pdfBytes},
	))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	protect := svc.submitted.Params.Protect
	require.NotNil(t, protect)
	assert.Equal(t, domain.ProtectAdd, protect.Action)
	assert.Equal(t, "open-sesame", protect.UserPassword)
	assert.True(t, protect.AllowPrinting)
	assert.False(t, protect.AllowCopying)
	assert.True(t, protect.AllowModification)
	assert.True(t, protect.AllowAssembly)

	assert.NotContains(t, rec.Body.String(), "open-sesame")
}

func TestRemoveProtectionJob(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, multipartRequest(t, "/api/v1/jobs/remove-protection",
		map[string]string{"password": "open-sesame"},
		formFile{"file", "a.pdf", pdfBytes},
	))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	protect := svc.submitted.Params.Protect
	require.NotNil(t, protect)
	assert.Equal(t, domain.ProtectRemove, protect.Action)
	assert.Equal(t, "open-sesame", protect.Password)
	assert.NotContains(t, rec.Body.String(), "open-sesame")
}

func TestCreateJob_OperationField(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, multipartRequest(t, "/api/v1/jobs",
		map[string]string{"operation": "pdf_to_word"},
		formFile{"file", "a.pdf", pdfBytes},
	))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "PDF_TO_WORD", svc.submitted.Operation)
}

func TestSubmit_Errors(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		fields    map[string]string
		files     []formFile
		maxUpload int64
		submitErr error
		wantCode  int
		wantError string
	}{
		{
			name:      "unknown operation",
			path:      "/api/v1/jobs",
			fields:    map[string]string{"operation": "ROTATE"},
			files:     []formFile{{"file", "a.pdf", pdfBytes}},
			wantCode:  http.StatusBadRequest,
			wantError: "Invalid operation",
		},
		{
			name:      "no files",
			path:      "/api/v1/jobs/compress",
			fields:    map[string]string{"quality": "50"},
			wantCode:  http.StatusBadRequest,
			wantError: "No files provided",
		},
		{
			name:      "file too large",
			path:      "/api/v1/jobs/compress",
			files:     []formFile{{"file", "big.pdf", bytes.Repeat([]byte("x"), 64)}},
			maxUpload: 16,
			wantCode:  http.StatusRequestEntityTooLarge,
			wantError: "File too large",
		},
		{
			name:      "not a pdf",
			path:      "/api/v1/jobs/compress",
			files:     []formFile{{"file", "a.pdf", []byte("hello")}},
			submitErr: domain.ErrUnsupportedMedia,
			wantCode:  http.StatusUnsupportedMediaType,
		},
		{
			name:      "invalid parameters",
			path:      "/api/v1/jobs/split",
			files:     []formFile{{"file", "a.pdf", pdfBytes}},
			submitErr: domain.ErrInvalidParameters,
			wantCode:  http.StatusBadRequest,
			wantError: "Invalid parameters",
		},
		{
			name:      "store failure",
			path:      "/api/v1/jobs/compress",
			files:     []formFile{{"file", "a.pdf", pdfBytes}},
			submitErr: errors.New("connection reset"),
			wantCode:  http.StatusInternalServerError,
			wantError: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxUpload := tt.maxUpload
			if maxUpload == 0 {
				maxUpload = 1 << 20
			}
			svc := &stubService{submitErr: tt.submitErr}
			r := newTestRouter(svc, maxUpload)

			rec := serve(r, multipartRequest(t, tt.path, tt.fields, tt.files...))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, rec))
			}
		})
	}
}

func TestSubmit_RequiresMultipart(t *testing.T) {
	r := newTestRouter(&stubService{}, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/compress", strings.NewReader(`{"quality":50}`))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(r, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob(t *testing.T) {
	job := &domain.Job{
		ID:         uuid.New(),
		Operation:  domain.OperationSplit,
		Status:     domain.StatusCompleted,
		InputPaths: []string{"/uploads/a.pdf"},
		OutputPath: "/outputs/split/x_split.zip",
		RetryCount: 1,
		MaxRetries: 3,
		Params:     domain.Params{Split: &domain.SplitParams{Type: domain.SplitInterval, Interval: 2}},
		CreatedAt:  time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2026, 4, 1, 10, 5, 0, 0, time.UTC),
	}
	svc := &stubService{job: job}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got dto.JobDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, job.ID.String(), got.JobID)
	assert.Equal(t, "COMPLETED", got.Status)
	assert.Equal(t, 1, got.InputFiles)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "/api/v1/jobs/"+job.ID.String()+"/download", got.DownloadURL)
	assert.Equal(t, "interval", got.Params["type"])
	assert.Equal(t, float64(2), got.Params["interval"])
	assert.Equal(t, "2026-04-01T10:00:00Z", got.CreatedAt)
	assert.NotContains(t, rec.Body.String(), "/outputs/")
}

func TestGetJob_Errors(t *testing.T) {
	r := newTestRouter(&stubService{jobErr: domain.ErrJobNotFound}, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "job_id must be a valid UUID", decodeError(t, rec))

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Job not found", decodeError(t, rec))
}

func TestGetJobStatus(t *testing.T) {
	id := uuid.New()
	svc := &stubService{status: &domain.JobStatusEvent{
		JobID:     id,
		Status:    domain.StatusProcessing,
		UpdatedAt: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	}}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id.String()+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got dto.JobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id.String(), got.JobID)
	assert.Equal(t, "PROCESSING", got.Status)
	assert.Equal(t, "2026-04-01T10:00:00Z", got.UpdatedAt)
}

func TestDownloadJob(t *testing.T) {
	id := uuid.New()
	path := filepath.Join(t.TempDir(), id.String()+"_compressed.pdf")
	require.NoError(t, os.WriteFile(path, pdfBytes, 0o644))

	svc := &stubService{download: &submission.Download{
		Path:        path,
		Name:        "compressed_" + id.String() + ".pdf",
		ContentType: "application/pdf",
	}}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id.String()+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="compressed_`+id.String()+`.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, pdfBytes, rec.Body.Bytes())
}

func TestDownloadJob_Errors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantError string
	}{
		{name: "unknown job", err: domain.ErrJobNotFound, wantCode: http.StatusNotFound, wantError: "Job not found"},
		{name: "not ready", err: domain.ErrNotReady, wantCode: http.StatusConflict, wantError: "PDF not ready yet"},
		{name: "output gone", err: domain.ErrOutputMissing, wantCode: http.StatusNotFound, wantError: "Output file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&stubService{dlErr: tt.err}, 1<<20)

			rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.NewString()+"/download", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantError, decodeError(t, rec))
		})
	}
}

func TestListJobs(t *testing.T) {
	jobs := []*domain.Job{
		{ID: uuid.New(), Operation: domain.OperationCompress, Status: domain.StatusFailed, InputPaths: []string{"a"}},
		{ID: uuid.New(), Operation: domain.OperationCompress, Status: domain.StatusFailed, InputPaths: []string{"b"}},
	}
	next := &storage.JobCursor{CreatedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), JobID: jobs[1].ID}
	svc := &stubService{page: &submission.Page{Jobs: jobs, Next: next}}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?status=failed&operation=compress&page_size=2", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, domain.StatusFailed, svc.filter.Status)
	assert.Equal(t, domain.OperationCompress, svc.filter.Operation)
	assert.Equal(t, 2, svc.filter.PageSize)
	assert.Nil(t, svc.filter.Cursor)

	var got dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Jobs, 2)
	require.NotEmpty(t, got.NextCursor)

	// the returned cursor is accepted on the next request
	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?cursor="+got.NextCursor, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.filter.Cursor)
	assert.Equal(t, next.JobID, svc.filter.Cursor.JobID)
	assert.True(t, next.CreatedAt.Equal(svc.filter.Cursor.CreatedAt))
}

func TestListJobs_InvalidFilters(t *testing.T) {
	r := newTestRouter(&stubService{page: &submission.Page{}}, 1<<20)

	for _, query := range []string{"status=PAUSED", "operation=ROTATE", "cursor=%21%21", "page_size=abc"} {
		rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestEstimateSize(t *testing.T) {
	r := newTestRouter(&stubService{}, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/estimate-size?original_size=1000&quality=40", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got dto.EstimateSizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1000), got.OriginalSize)
	assert.Equal(t, 40, got.Quality)
	assert.Equal(t, int64(200), got.EstimatedSize)
	assert.InDelta(t, 80.0, got.ReductionPercent, 1e-9)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/estimate-size?quality=40", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/estimate-size?original_size=1000&quality=101", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobCursor_RoundTrip(t *testing.T) {
	cursor := &storage.JobCursor{
		CreatedAt: time.Date(2026, 5, 6, 7, 8, 9, 123456000, time.UTC),
		JobID:     uuid.New(),
	}

	decoded, err := DecodeJobCursor(EncodeJobCursor(cursor))
	require.NoError(t, err)
	assert.True(t, cursor.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, cursor.JobID, decoded.JobID)

	empty, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, empty)
}
