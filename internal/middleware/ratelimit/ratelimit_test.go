package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowPerClient(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 2})
	defer l.Stop()

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst should allow two requests")
	}
	if l.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("other clients are independent")
	}
	if l.ActiveClients() != 2 {
		t.Fatalf("active clients = %d", l.ActiveClients())
	}
	l.evictIdle(time.Now().Add(time.Second))
	if l.ActiveClients() != 0 {
		t.Fatalf("idle clients not evicted")
	}
}

func TestMiddlewareOnlyLimitsWrites(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1})
	defer l.Stop()
	h := l.Middleware(func(*http.Request) string { return "c" }, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %d limited: %d", i, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/goals", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first POST: %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/goals", nil))
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("second POST: %d", rec.Code)
	}
}
