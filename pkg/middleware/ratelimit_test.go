package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedHandler(store *visitorStore) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return rateLimit(store, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func sendFrom(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func fixedClockStore(cfg RateLimitConfig, now *time.Time) *visitorStore {
	store := newVisitorStore(cfg)
	store.nowFunc = func() time.Time { return *now }
	return store
}

func TestRateLimit_BurstThenThrottled(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := newLimitedHandler(fixedClockStore(RateLimitConfig{RPS: 1, Burst: 3}, &now))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, sendFrom(h, "10.0.0.1:1234").Code, "request %d", i+1)
	}

	rr := sendFrom(h, "10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "RATE_LIMITED")
	assert.Contains(t, rr.Body.String(), "too many requests")
}

func TestRateLimit_RefillsOverTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := newLimitedHandler(fixedClockStore(RateLimitConfig{RPS: 1, Burst: 1}, &now))

	assert.Equal(t, http.StatusOK, sendFrom(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, sendFrom(h, "10.0.0.1:1234").Code)

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, sendFrom(h, "10.0.0.1:1234").Code)
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := newLimitedHandler(fixedClockStore(RateLimitConfig{RPS: 1, Burst: 1}, &now))

	assert.Equal(t, http.StatusOK, sendFrom(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, sendFrom(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, sendFrom(h, "10.0.0.2:1234").Code)
}

func TestVisitorStore_CleanupEvictsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := fixedClockStore(RateLimitConfig{RPS: 1, Burst: 1, TTL: time.Minute}, &now)

	store.allow("10.0.0.1")
	now = now.Add(30 * time.Second)
	store.allow("10.0.0.2")
	require.Equal(t, 2, store.len())

	now = now.Add(45 * time.Second)
	store.cleanup()
	assert.Equal(t, 1, store.len())

	now = now.Add(time.Hour)
	store.cleanup()
	assert.Equal(t, 0, store.len())
}

func TestRateLimitConfig_Enabled(t *testing.T) {
	assert.True(t, RateLimitConfig{RPS: 5, Burst: 10}.Enabled())
	assert.False(t, RateLimitConfig{RPS: 0, Burst: 10}.Enabled())
	assert.False(t, RateLimitConfig{RPS: 5}.Enabled())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain uses first hop", map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.9"}, "10.0.0.1:1234", "203.0.113.50"},
		{"garbage forwarded falls through", map[string]string{"X-Forwarded-For": "nope", "X-Real-IP": "198.51.100.42"}, "10.0.0.1:1234", "198.51.100.42"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.42"}, "10.0.0.1:1234", "198.51.100.42"},
		{"remote addr", nil, "10.0.0.1:1234", "10.0.0.1"},
		{"remote addr without port", nil, "10.0.0.1", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
