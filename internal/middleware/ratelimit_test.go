package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimiter_AllowWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 3, Window: time.Minute})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("u1"); !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	ok, retry := rl.Allow("u1")
	if ok {
		t.Fatal("fourth request should be rejected")
	}
	if retry < 1 {
		t.Errorf("retryAfter = %d", retry)
	}

	// Another user is unaffected.
	if ok, _ := rl.Allow("u2"); !ok {
		t.Error("second user should be allowed")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 1, Window: time.Minute})
	defer rl.Stop()

	now := time.Now()
	rl.nowFunc = func() time.Time { return now }

	if ok, _ := rl.Allow("u"); !ok {
		t.Fatal("first request should pass")
	}
	if ok, _ := rl.Allow("u"); ok {
		t.Fatal("second request inside the window should fail")
	}

	rl.nowFunc = func() time.Time { return now.Add(61 * time.Second) }
	if ok, _ := rl.Allow("u"); !ok {
		t.Error("request after the window should pass")
	}
}

func TestRateLimitMiddleware_Envelope(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 1, Window: time.Minute})
	defer rl.Stop()

	h := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/tailor", nil)
	req = req.WithContext(WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if !strings.Contains(rec.Body.String(), "RATE_LIMITED") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
