// Package docs registers the OpenAPI document served under /docs.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/process": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Runs the full pipeline synchronously and returns the aggregated result.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["process"],
                "summary": "Extract plans from a benefits document",
                "parameters": [
                    {"type": "file", "description": "PDF or Office document", "name": "document", "in": "formData", "required": true},
                    {"type": "string", "description": "Job ID", "name": "job_id", "in": "formData", "required": true},
                    {"type": "string", "description": "Broker ID", "name": "broker_id", "in": "formData", "required": true},
                    {"type": "string", "description": "Employer ID", "name": "employer_id", "in": "formData", "required": true},
                    {"enum": ["Auto-Read", "Search", "All Plans"], "type": "string", "description": "Processing option", "name": "option", "in": "formData", "required": true},
                    {"type": "string", "description": "Plan name, required when option is Search", "name": "plan_name", "in": "formData"},
                    {"type": "boolean", "default": true, "description": "Mark the document part cacheable", "name": "prompt_cache", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "Aggregated extraction result", "schema": {"$ref": "#/definitions/domain.Result"}},
                    "422": {"description": "Invalid arguments or unsupported file type", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}},
                    "500": {"description": "Upstream failure", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/v1/process_async": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Stages the upload and runs the pipeline in the background.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["process"],
                "summary": "Queue a benefits document for extraction",
                "parameters": [
                    {"type": "file", "description": "PDF or Office document", "name": "document", "in": "formData", "required": true},
                    {"type": "string", "description": "Job ID; generated when empty", "name": "job_id", "in": "formData"},
                    {"type": "string", "description": "Broker ID", "name": "broker_id", "in": "formData", "required": true},
                    {"type": "string", "description": "Employer ID", "name": "employer_id", "in": "formData", "required": true},
                    {"enum": ["Auto-Read", "Search", "All Plans"], "type": "string", "description": "Processing option", "name": "option", "in": "formData", "required": true},
                    {"type": "string", "description": "Plan name, required when option is Search", "name": "plan_name", "in": "formData"},
                    {"type": "boolean", "default": true, "description": "Mark the document part cacheable", "name": "prompt_cache", "in": "formData"}
                ],
                "responses": {
                    "202": {"description": "Job queued", "schema": {"$ref": "#/definitions/handler.JobQueuedResponse"}},
                    "409": {"description": "Job already queued or running", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}},
                    "422": {"description": "Invalid arguments", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}},
                    "503": {"description": "Queue full", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/v1/jobs/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get async job status",
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Job status", "schema": {"$ref": "#/definitions/domain.JobRecord"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/v1/jobs/{id}/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["jobs"],
                "summary": "Download a finished job's plans",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true},
                    {"enum": ["csv", "xlsx"], "type": "string", "default": "csv", "description": "Export format", "name": "format", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Plans export", "schema": {"type": "file"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}},
                    "409": {"description": "Job has not finished", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}},
                    "422": {"description": "Invalid format", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.HealthResponse"}}}
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.HealthResponse"}},
                    "503": {"description": "Missing configuration", "schema": {"$ref": "#/definitions/handler.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.JobRecord": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "error": {"type": "string"},
                "finished_at": {"type": "string"},
                "job_id": {"type": "string"},
                "result": {"$ref": "#/definitions/domain.Result"},
                "started_at": {"type": "string"},
                "status": {"type": "string", "enum": ["queued", "running", "done", "error"]}
            }
        },
        "domain.PlanResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "loc": {"type": "string", "example": "Medical"},
                "output": {"type": "string"},
                "plan_name": {"type": "string", "example": "PPO 500"}
            }
        },
        "domain.Result": {
            "type": "object",
            "properties": {
                "broker_id": {"type": "string"},
                "classification_output": {"type": "string"},
                "employer_id": {"type": "string"},
                "job_id": {"type": "string"},
                "kp_extract_output": {"type": "string"},
                "message": {"type": "string", "example": "OK"},
                "plan_name_identification_output": {"type": "string"},
                "plans": {"type": "array", "items": {"$ref": "#/definitions/domain.PlanResult"}}
            }
        },
        "handler.APIError": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "handler.ErrorResponseBody": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/handler.APIError"},
                "success": {"type": "boolean", "example": false}
            }
        },
        "handler.JobQueuedResponse": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string", "example": "4f5c2a7e-7d1b-4b7e-9d7e-5b1f0c2f9a11"},
                "status": {"type": "string", "example": "queued"}
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "missing configuration: chat.api_key"},
                "status": {"type": "string", "example": "ok"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "PlanYear Plan Extraction API",
	Description:      "Extracts classification, key parameters, plan listings and per-plan benefits from benefits documents.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
