package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"planextract/internal/domain"
	"planextract/internal/handler"
	"planextract/internal/llm"
	"planextract/internal/service"
	"planextract/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func multipartRequest(t *testing.T, path string, fields map[string]string, withFile bool) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if withFile {
		part, err := writer.CreateFormFile("document", "benefits.pdf")
		require.NoError(t, err)
		_, _ = part.Write([]byte("%PDF-1.4 test content"))
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func baseFields() map[string]string {
	return map[string]string{
		"job_id":      "job-1",
		"broker_id":   "broker-1",
		"employer_id": "employer-1",
		"option":      "Auto-Read",
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestProcessHandler_Process_Success(t *testing.T) {
	svc := new(mocks.MockProcessingService)
	h := handler.NewProcessHandler(svc, 10)

	result := &domain.Result{JobID: "job-1", BrokerID: "broker-1", EmployerID: "employer-1", Message: "OK", Plans: []domain.PlanResult{}}
	svc.On("Process", mock.Anything, mock.MatchedBy(func(in service.ProcessInput) bool {
		return in.Job.JobID == "job-1" &&
			in.Job.Option == domain.OptionAutoRead &&
			in.Job.EnableCache &&
			in.Filename == "benefits.pdf"
	})).Return(result, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "/v1/process", baseFields(), true)

	h.Process(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeMap(t, w)
	assert.Equal(t, "OK", data["message"])
	assert.Equal(t, "job-1", data["job_id"])
	assert.Equal(t, []interface{}{}, data["plans"])
	assert.NotContains(t, data, "success")
	svc.AssertExpectations(t)
}

func TestProcessHandler_Process_ReadsUpload(t *testing.T) {
	svc := new(mocks.MockProcessingService)
	h := handler.NewProcessHandler(svc, 10)

	var content []byte
	svc.On("Process", mock.Anything, mock.AnythingOfType("service.ProcessInput")).
		Run(func(args mock.Arguments) {
			content, _ = io.ReadAll(args.Get(1).(service.ProcessInput).File)
		}).
		Return(&domain.Result{Message: "OK"}, nil)

	fields := baseFields()
	fields["prompt_cache"] = "false"
	fields["option"] = "Search"
	fields["plan_name"] = "  PPO 500  "

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "/v1/process", fields, true)
	h.Process(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4 test content", string(content))
	in := svc.Calls[0].Arguments.Get(1).(service.ProcessInput)
	assert.False(t, in.Job.EnableCache)
	assert.Equal(t, "PPO 500", in.Job.PlanName)
}

func TestProcessHandler_Process_UploadTooLarge(t *testing.T) {
	svc := new(mocks.MockProcessingService)
	h := handler.NewProcessHandler(svc, 1)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range baseFields() {
		require.NoError(t, writer.WriteField(k, v))
	}
	part, err := writer.CreateFormFile("document", "huge.pdf")
	require.NoError(t, err)
	_, _ = part.Write(bytes.Repeat([]byte("a"), 2<<20))
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/process", body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	h.Process(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "FILE_TOO_LARGE", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "1 MB upload limit")
	svc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestProcessHandler_Process_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(map[string]string)
		withFile bool
		wantCode string
	}{
		{"missing file", func(map[string]string) {}, false, "MISSING_FILE"},
		{"missing job id", func(f map[string]string) { delete(f, "job_id") }, true, "INVALID_ARGUMENT"},
		{"missing broker id", func(f map[string]string) { f["broker_id"] = " " }, true, "INVALID_ARGUMENT"},
		{"bad option", func(f map[string]string) { f["option"] = "Everything" }, true, "INVALID_ARGUMENT"},
		{"search without plan", func(f map[string]string) { f["option"] = "Search" }, true, "INVALID_ARGUMENT"},
		{"bad prompt_cache", func(f map[string]string) { f["prompt_cache"] = "maybe" }, true, "INVALID_ARGUMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mocks.MockProcessingService)
			h := handler.NewProcessHandler(svc, 10)
			fields := baseFields()
			tt.mutate(fields)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = multipartRequest(t, "/v1/process", fields, tt.withFile)
			h.Process(c)

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			svc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
		})
	}
}

func TestProcessHandler_Process_SearchMessage(t *testing.T) {
	svc := new(mocks.MockProcessingService)
	h := handler.NewProcessHandler(svc, 10)
	fields := baseFields()
	fields["option"] = "Search"

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "/v1/process", fields, true)
	h.Process(c)

	resp := decode(t, w)
	assert.Contains(t, resp.Error.Message, "plan_name is required when option == 'Search'")
}

func TestProcessHandler_Process_UpstreamError(t *testing.T) {
	svc := new(mocks.MockProcessingService)
	h := handler.NewProcessHandler(svc, 10)
	svc.On("Process", mock.Anything, mock.Anything).
		Return(nil, llm.NewProtocolError("openrouter", http.StatusBadGateway, "bad gateway"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "/v1/process", baseFields(), true)
	h.Process(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "UPSTREAM_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "bad gateway")
}

func TestProcessHandler_Process_UnsupportedType(t *testing.T) {
	svc := new(mocks.MockProcessingService)
	h := handler.NewProcessHandler(svc, 10)
	svc.On("Process", mock.Anything, mock.Anything).Return(nil, domain.ErrUnsupportedType)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "/v1/process", baseFields(), true)
	h.Process(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestProcessHandler_ProcessAsync(t *testing.T) {
	svc := new(mocks.MockProcessingService)
	h := handler.NewProcessHandler(svc, 10)
	svc.On("Submit", mock.Anything, mock.AnythingOfType("service.ProcessInput")).
		Return(&domain.JobRecord{JobID: "generated", Status: domain.JobStatusQueued}, nil)

	fields := baseFields()
	delete(fields, "job_id")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "/v1/process_async", fields, true)
	h.ProcessAsync(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, map[string]interface{}{"job_id": "generated", "status": "queued"}, decodeMap(t, w))
}

func TestProcessHandler_ProcessAsync_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrJobExists, http.StatusConflict},
		{domain.ErrQueueFull, http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := new(mocks.MockProcessingService)
			h := handler.NewProcessHandler(svc, 10)
			svc.On("Submit", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = multipartRequest(t, "/v1/process_async", baseFields(), true)
			h.ProcessAsync(c)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}
