package google_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planextract/internal/auth/google"
	"planextract/internal/domain"
)

func tokenInfoServer(t *testing.T, status int, body map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok en", r.URL.Query().Get("id_token"))
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestVerifier_Verify(t *testing.T) {
	srv := tokenInfoServer(t, http.StatusOK, map[string]string{
		"iss":            "https://accounts.google.com",
		"aud":            "client-1",
		"sub":            "123",
		"email":          "ana@planyear.com",
		"email_verified": "true",
		"name":           "Ana",
		"exp":            strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
	})
	defer srv.Close()

	id, err := google.NewVerifierWithEndpoint("client-1", srv.URL).Verify(context.Background(), "tok en")
	require.NoError(t, err)
	assert.Equal(t, "ana@planyear.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "Ana", id.Name)
}

func TestVerifier_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]string
	}{
		{"bad status", http.StatusBadRequest, map[string]string{}},
		{"wrong audience", http.StatusOK, map[string]string{"iss": "accounts.google.com", "aud": "other"}},
		{"wrong issuer", http.StatusOK, map[string]string{"iss": "evil.com", "aud": "client-1"}},
		{"expired", http.StatusOK, map[string]string{"iss": "accounts.google.com", "aud": "client-1", "exp": "1000"}},
		{"bad expiry", http.StatusOK, map[string]string{"iss": "accounts.google.com", "aud": "client-1", "exp": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tokenInfoServer(t, tt.status, tt.body)
			defer srv.Close()
			_, err := google.NewVerifierWithEndpoint("client-1", srv.URL).Verify(context.Background(), "tok en")
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestVerifier_EmptyTokenSkipsLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("tokeninfo must not be called")
	}))
	defer srv.Close()

	_, err := google.NewVerifierWithEndpoint("client-1", srv.URL).Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := google.NewVerifierWithEndpoint("client-1", srv.URL).Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.ErrorContains(t, err, "calling tokeninfo")
}
