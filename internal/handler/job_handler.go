package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"planextract/internal/domain"
	"planextract/internal/export"
	"planextract/internal/service"
)

// JobHandler handles async job endpoints.
type JobHandler struct {
	processingService service.ProcessingService
	now               func() time.Time
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(processingService service.ProcessingService) *JobHandler {
	return &JobHandler{processingService: processingService, now: time.Now}
}

// Get handles GET /v1/jobs/:id
// @Summary Get async job status
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} domain.JobRecord "Job status"
// @Failure 404 {object} ErrorResponseBody "Unknown job"
// @Security BearerAuth
// @Router /v1/jobs/{id} [get]
func (h *JobHandler) Get(c *gin.Context) {
	rec, err := h.processingService.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Export handles GET /v1/jobs/:id/export
// @Summary Download a finished job's plans
// @Tags jobs
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Job ID"
// @Param format query string false "Export format" Enums(csv, xlsx) default(csv)
// @Success 200 {file} file "Plans export"
// @Failure 404 {object} ErrorResponseBody "Unknown job"
// @Failure 409 {object} ErrorResponseBody "Job has not finished"
// @Failure 422 {object} ErrorResponseBody "Invalid format"
// @Security BearerAuth
// @Router /v1/jobs/{id}/export [get]
func (h *JobHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}

	rec, err := h.processingService.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	if rec.Status != domain.JobStatusDone || rec.Result == nil {
		HandleError(c, domain.ErrJobNotFinished)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, rec.Result); err != nil {
		HandleError(c, fmt.Errorf("rendering export: %w", err))
		return
	}

	filename := export.BuildFilename(rec.JobID, format, h.now())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
