package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillai/quill/internal/observability"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid key", header: "Bearer secret", want: http.StatusOK},
		{name: "scheme is case-insensitive", header: "bearer secret", want: http.StatusOK},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic secret", want: http.StatusUnauthorized},
		{name: "empty key", header: "Bearer ", want: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "key prefix", header: "Bearer secre", want: http.StatusUnauthorized},
	}

	handler := Auth("secret")(okHandler)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string

	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(observability.RequestIDKey).(string)
	}))

	t.Run("propagates client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	})

	for _, bad := range []string{"", "has space", strings.Repeat("x", 129)} {
		t.Run("generates id for "+strings.TrimSpace(bad[:min(len(bad), 10)]), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if bad != "" {
				req.Header.Set("X-Request-ID", bad)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.NotEqual(t, bad, seen)
			assert.Len(t, seen, 36)
			assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.quill.test"})(okHandler)

	t.Run("allowed origin is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
		req.Header.Set("Origin", "https://app.quill.test")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://app.quill.test", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("other origins get no CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
		req.Header.Set("Origin", "https://evil.test")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight returns 204 without calling the handler", func(t *testing.T) {
		called := false
		h := CORS([]string{"*"})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

		req := httptest.NewRequest(http.MethodOptions, "/v1/analyze", nil)
		req.Header.Set("Origin", "https://anywhere.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.False(t, called)
		assert.Equal(t, "https://anywhere.test", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no origins configured is a passthrough", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.quill.test")

		rec := httptest.NewRecorder()
		CORS(nil)(okHandler).ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

type countingAPIMetrics struct{ tooLarge int }

func (c *countingAPIMetrics) RecordRequestBodyTooLarge(context.Context) { c.tooLarge++ }

func TestMaxBody(t *testing.T) {
	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)

			return
		}

		w.WriteHeader(http.StatusCreated)
	})

	t.Run("body within limit passes through", func(t *testing.T) {
		metrics := &countingAPIMetrics{}
		rec := httptest.NewRecorder()
		MaxBody(16, metrics)(readAll).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Zero(t, metrics.tooLarge)
	})

	t.Run("oversized body becomes 413", func(t *testing.T) {
		metrics := &countingAPIMetrics{}
		rec := httptest.NewRecorder()
		MaxBody(16, metrics)(readAll).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64))))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, 1, metrics.tooLarge)
	})

	t.Run("disabled limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		MaxBody(0, nil)(readAll).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64))))

		require.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestLogging_PassesStatusThrough(t *testing.T) {
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
