package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setupRouter(checks map[string]Check) *gin.Engine {
	r := gin.New()
	h := Health(checks)
	r.GET("/healthz", h)
	r.HEAD("/healthz", h)
	r.OPTIONS("/healthz", h)
	return r
}

func TestHealth_GET_NoChecks(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	setupRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestHealth_GET_Checks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		checks         map[string]Check
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "all healthy",
			checks: map[string]Check{
				"store:hk": func(context.Context) error { return nil },
				"store:us": func(context.Context) error { return nil },
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"ok","checks":{"store:hk":"ok","store:us":"ok"}}`,
		},
		{
			name: "one failing",
			checks: map[string]Check{
				"store:hk": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"degraded","checks":{"store:hk":"ok","redis":"connection refused"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			setupRouter(tt.checks).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestHealth_GET_CheckHasDeadline(t *testing.T) {
	t.Parallel()

	checks := map[string]Check{
		"store": func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			if !ok {
				return errors.New("no deadline")
			}
			return nil
		},
	}

	w := httptest.NewRecorder()
	setupRouter(checks).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealth_HEAD_OPTIONS_SkipChecks(t *testing.T) {
	t.Parallel()

	called := false
	checks := map[string]Check{"store": func(context.Context) error { called = true; return errors.New("down") }}
	router := setupRouter(checks)

	tests := []struct {
		method         string
		expectedStatus int
	}{
		{http.MethodHead, http.StatusOK},
		{http.MethodOptions, http.StatusNoContent},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(tt.method, "/healthz", nil))

		assert.Equal(t, tt.expectedStatus, w.Code, tt.method)
		assert.Zero(t, w.Body.Len(), tt.method)
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"), tt.method)
	}
	assert.False(t, called)
}
