package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planextract/internal/domain"
)

// APIResponse is the envelope of error responses. Successful calls write
// their payload directly.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
// Validation and upstream failures surface the error text.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusUnprocessableEntity, "INVALID_ARGUMENT", err.Error()
	case errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_FILE_TYPE", err.Error()
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error()
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound, "JOB_NOT_FOUND", "job not found"
	case errors.Is(err, domain.ErrJobExists):
		return http.StatusConflict, "JOB_EXISTS", "job is already queued or running"
	case errors.Is(err, domain.ErrJobNotFinished):
		return http.StatusConflict, "JOB_NOT_FINISHED", "job has not finished"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrQueueFull):
		return http.StatusServiceUnavailable, "QUEUE_FULL", "job queue is full; retry later"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusInternalServerError, "UPSTREAM_UNAVAILABLE", err.Error()
	case errors.Is(err, domain.ErrUpstreamProtocol):
		return http.StatusInternalServerError, "UPSTREAM_ERROR", err.Error()
	case errors.Is(err, domain.ErrMissingTemplate):
		return http.StatusInternalServerError, "MISSING_TEMPLATE", err.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", err.Error()
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		zap.L().Error("handler.HandleError: request failed",
			zap.Any("request_id", requestID),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	RespondError(c, status, code, msg)
}
