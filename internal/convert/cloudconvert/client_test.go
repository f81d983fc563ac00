package cloudconvert_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planextract/internal/config"
	"planextract/internal/convert/cloudconvert"
	"planextract/internal/domain"
)

func newTestClient(serverURL string) *cloudconvert.Client {
	return cloudconvert.NewClient(&config.ConvertConfig{APIKey: "cc-key", BaseURL: serverURL, TimeoutSecs: 5}).
		WithPolling(5*time.Millisecond, time.Second)
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "census.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("PK fake workbook"), 0o644))
	return path
}

func TestClient_ConvertToPDF(t *testing.T) {
	var polls int32
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer cc-key", r.Header.Get("Authorization"))
		var body map[string]map[string]map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "import/upload", body["tasks"]["import-file"]["operation"])
		assert.Equal(t, "pdf", body["tasks"]["convert-file"]["output_format"])
		assert.Equal(t, "export/url", body["tasks"]["export-file"]["operation"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"id":     "job-1",
				"status": "waiting",
				"tasks": []map[string]interface{}{
					{
						"name":      "import-file",
						"operation": "import/upload",
						"result": map[string]interface{}{
							"form": map[string]interface{}{
								"url":        server.URL + "/upload-form",
								"parameters": map[string]interface{}{"expires": 123, "signature": "sig"},
							},
						},
					},
				},
			},
		})
	})
	mux.HandleFunc("/upload-form", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "sig", r.FormValue("signature"))
		assert.Equal(t, "123", r.FormValue("expires"))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "census.xlsx", header.Filename)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		status := "processing"
		if atomic.AddInt32(&polls, 1) >= 2 {
			status = "finished"
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"id":     "job-1",
				"status": status,
				"tasks": []map[string]interface{}{
					{
						"name":   "export-file",
						"status": status,
						"result": map[string]interface{}{
							"files": []map[string]interface{}{{"filename": "census.pdf", "url": server.URL + "/files/census.pdf"}},
						},
					},
				},
			},
		})
	})
	mux.HandleFunc("/files/census.pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "%PDF-1.7 converted")
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	input := writeInput(t)
	pdfPath, err := newTestClient(server.URL).ConvertToPDF(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(input), "census.pdf"), pdfPath)

	data, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 converted", string(data))
	assert.Equal(t, int32(2), atomic.LoadInt32(&polls))
}

func TestClient_ConvertToPDF_JobError(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"id": "job-2",
				"tasks": []map[string]interface{}{
					{"name": "import-file", "result": map[string]interface{}{"form": map[string]interface{}{"url": server.URL + "/upload-form"}}},
				},
			},
		})
	})
	mux.HandleFunc("/upload-form", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/jobs/job-2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"id":     "job-2",
				"status": "error",
				"tasks":  []map[string]interface{}{{"name": "convert-file", "status": "error", "message": "password protected"}},
			},
		})
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	_, err := newTestClient(server.URL).ConvertToPDF(context.Background(), writeInput(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamProtocol))
	assert.Contains(t, err.Error(), "password protected")
}

func TestClient_ConvertToPDF_CreateJobRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ConvertToPDF(context.Background(), writeInput(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthenticated")
}

func TestClient_ConvertToPDF_NotConfigured(t *testing.T) {
	_, err := cloudconvert.NewClient(&config.ConvertConfig{}).ConvertToPDF(context.Background(), "x.docx")
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
}
