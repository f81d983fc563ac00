package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"planextract/internal/domain"
	"planextract/internal/service"
)

// ProcessHandler handles document processing endpoints.
type ProcessHandler struct {
	processingService service.ProcessingService
	maxUploadBytes    int64
}

// NewProcessHandler creates a new ProcessHandler. maxUploadMB <= 0 disables the
// upload size limit.
func NewProcessHandler(processingService service.ProcessingService, maxUploadMB int64) *ProcessHandler {
	return &ProcessHandler{processingService: processingService, maxUploadBytes: maxUploadMB << 20}
}

// Process handles POST /v1/process
// @Summary Extract plans from a benefits document
// @Description Runs the full pipeline synchronously and returns the aggregated result.
// @Tags process
// @Accept multipart/form-data
// @Produce json
// @Param document formData file true "PDF or Office document"
// @Param job_id formData string true "Job ID"
// @Param broker_id formData string true "Broker ID"
// @Param employer_id formData string true "Employer ID"
// @Param option formData string true "Processing option" Enums(Auto-Read, Search, All Plans)
// @Param plan_name formData string false "Plan name, required when option is Search"
// @Param prompt_cache formData bool false "Mark the document part cacheable" default(true)
// @Success 200 {object} domain.Result "Aggregated extraction result"
// @Failure 413 {object} ErrorResponseBody "Document exceeds the upload limit"
// @Failure 422 {object} ErrorResponseBody "Invalid arguments or unsupported file type"
// @Failure 500 {object} ErrorResponseBody "Upstream failure"
// @Security BearerAuth
// @Router /v1/process [post]
func (h *ProcessHandler) Process(c *gin.Context) {
	input, file, ok := h.bindInput(c, true)
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	// The pipeline runs to completion even if the client goes away.
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := h.processingService.Process(ctx, input)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ProcessAsync handles POST /v1/process_async
// @Summary Queue a benefits document for extraction
// @Description Stages the upload and runs the pipeline in the background. Poll GET /v1/jobs/{id}.
// @Tags process
// @Accept multipart/form-data
// @Produce json
// @Param document formData file true "PDF or Office document"
// @Param job_id formData string false "Job ID; generated when empty"
// @Param broker_id formData string true "Broker ID"
// @Param employer_id formData string true "Employer ID"
// @Param option formData string true "Processing option" Enums(Auto-Read, Search, All Plans)
// @Param plan_name formData string false "Plan name, required when option is Search"
// @Param prompt_cache formData bool false "Mark the document part cacheable" default(true)
// @Success 202 {object} JobQueuedResponse "Job queued"
// @Failure 409 {object} ErrorResponseBody "Job already queued or running"
// @Failure 422 {object} ErrorResponseBody "Invalid arguments"
// @Failure 503 {object} ErrorResponseBody "Queue full"
// @Security BearerAuth
// @Router /v1/process_async [post]
func (h *ProcessHandler) ProcessAsync(c *gin.Context) {
	input, file, ok := h.bindInput(c, false)
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	rec, err := h.processingService.Submit(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, JobQueuedResponse{JobID: rec.JobID, Status: string(rec.Status)})
}

// bindInput reads the multipart form. On failure the error response is
// already written.
func (h *ProcessHandler) bindInput(c *gin.Context, requireJobID bool) (service.ProcessInput, multipart.File, bool) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	header, err := c.FormFile("document")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		HandleError(c, fmt.Errorf("%w: document exceeds the %d MB upload limit", domain.ErrFileTooLarge, h.maxUploadBytes>>20))
		return service.ProcessInput{}, nil, false
	}
	if err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "MISSING_FILE", "document field is required")
		return service.ProcessInput{}, nil, false
	}

	job := &domain.Job{
		JobID:      strings.TrimSpace(c.PostForm("job_id")),
		BrokerID:   strings.TrimSpace(c.PostForm("broker_id")),
		EmployerID: strings.TrimSpace(c.PostForm("employer_id")),
		Option:     domain.Option(strings.TrimSpace(c.PostForm("option"))),
		PlanName:   strings.TrimSpace(c.PostForm("plan_name")),
	}

	required := map[string]string{"broker_id": job.BrokerID, "employer_id": job.EmployerID}
	if requireJobID {
		required["job_id"] = job.JobID
	}
	for _, field := range []string{"job_id", "broker_id", "employer_id"} {
		if v, ok := required[field]; ok && v == "" {
			RespondError(c, http.StatusUnprocessableEntity, "INVALID_ARGUMENT", field+" is required")
			return service.ProcessInput{}, nil, false
		}
	}

	job.EnableCache, err = parseFormBool(c.PostForm("prompt_cache"), true)
	if err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "INVALID_ARGUMENT", err.Error())
		return service.ProcessInput{}, nil, false
	}

	if err := job.Validate(); err != nil {
		HandleError(c, err)
		return service.ProcessInput{}, nil, false
	}

	file, err := header.Open()
	if err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "INVALID_FILE", "could not read uploaded document")
		return service.ProcessInput{}, nil, false
	}

	return service.ProcessInput{Job: job, File: file, Filename: header.Filename}, file, true
}

// parseFormBool accepts the usual form spellings of a boolean.
func parseFormBool(v string, def bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return def, nil
	case "true", "1", "yes", "on", "y", "t":
		return true, nil
	case "false", "0", "no", "off", "n", "f":
		return false, nil
	default:
		return false, fmt.Errorf("prompt_cache must be a boolean, got %q", v)
	}
}
