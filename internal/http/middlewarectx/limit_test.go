package middlewarectx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware(t *testing.T) {
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	})

	t.Run("allows requests within rate limit", func(t *testing.T) {
		mw := RateLimitMiddleware(newNoopLogger(), NewIPRateLimiter(10, 10))
		for range 10 {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()
			mw(testHandler).ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "success", w.Body.String())
		}
	})

	t.Run("blocks requests exceeding rate limit", func(t *testing.T) {
		mw := RateLimitMiddleware(newNoopLogger(), NewIPRateLimiter(1, 1))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()
		mw(testHandler).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		mw(testHandler).ServeHTTP(w, req)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.JSONEq(t, `{"status":"Error","error":"too many requests"}`, w.Body.String())
	})

	t.Run("clients are limited separately", func(t *testing.T) {
		mw := RateLimitMiddleware(newNoopLogger(), NewIPRateLimiter(1, 1))

		first := httptest.NewRequest(http.MethodGet, "/test", nil)
		first.RemoteAddr = "10.0.0.1:1234"
		second := httptest.NewRequest(http.MethodGet, "/test", nil)
		second.RemoteAddr = "10.0.0.2:1234"

		w := httptest.NewRecorder()
		mw(testHandler).ServeHTTP(w, first)
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		mw(testHandler).ServeHTTP(w, second)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", ClientIP(req))

	req.RemoteAddr = "10.0.0.8"
	assert.Equal(t, "10.0.0.8", ClientIP(req))
}
