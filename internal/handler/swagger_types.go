package handler

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Response Types ---

// JobQueuedResponse is returned when an async job is accepted.
type JobQueuedResponse struct {
	JobID  string `json:"job_id" example:"4f5c2a7e-7d1b-4b7e-9d7e-5b1f0c2f9a11"`
	Status string `json:"status" example:"queued"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty" example:"missing configuration: chat.api_key"`
}

// --- Generic Response Wrappers ---

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Error   *APIError `json:"error"`
}
