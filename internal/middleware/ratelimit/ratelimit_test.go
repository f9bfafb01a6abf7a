package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, limit int) (*Limiter, *time.Time) {
	t.Helper()
	l := NewLimiter(Config{RequestsPerMinute: limit, CleanupInterval: time.Hour})
	t.Cleanup(l.Stop)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_Allow(t *testing.T) {
	l, now := newTestLimiter(t, 2)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "clients are counted separately")

	*now = now.Add(time.Minute)
	assert.True(t, l.Allow("a"), "a new window starts after a minute")
}

func TestLimiter_Cleanup(t *testing.T) {
	l, now := newTestLimiter(t, 2)
	l.Allow("a")
	*now = now.Add(2 * time.Minute)
	l.Allow("b")

	l.cleanup()
	assert.Equal(t, 1, l.ActiveClients())
}

func TestLimiter_MutationsOnly(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	h := l.Mutations(func(*http.Request) string { return "a" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	serve := func(method string) int {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/transactions", nil))
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, serve(http.MethodPost))
	assert.Equal(t, http.StatusTooManyRequests, serve(http.MethodPost))
	assert.Equal(t, http.StatusTooManyRequests, serve(http.MethodDelete))
	assert.Equal(t, http.StatusOK, serve(http.MethodGet))
}
