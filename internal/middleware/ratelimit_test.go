package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/memberport/internal/authz"
	"github.com/hitoshi/memberport/internal/model"
)

func testRateLimiter(t *testing.T, config RateLimiterConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(config)
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_AuthMiddleware_PerIP(t *testing.T) {
	rl := testRateLimiter(t, RateLimiterConfig{
		GeneralRate:     rate.Limit(2),
		GeneralBurst:    120,
		AuthRate:        rate.Limit(0.01),
		AuthBurst:       2,
		CleanupInterval: time.Minute,
	})

	handler := rl.AuthMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// バースト分は通過する
	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, code)
		}
	}

	// バーストを超えると429
	if code := send("10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst, got %d", code)
	}

	// 別のIPは独立したリミッターを持つ
	if code := send("10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("expected 200 for different IP, got %d", code)
	}

	if count := rl.AuthLimiterCount(); count != 2 {
		t.Errorf("expected 2 auth limiter entries, got %d", count)
	}
}

func TestRateLimiter_AuthMiddleware_RetryAfterHeader(t *testing.T) {
	rl := testRateLimiter(t, RateLimiterConfig{
		AuthRate:        rate.Limit(10.0 / 60.0),
		AuthBurst:       1,
		CleanupInterval: time.Minute,
	})

	handler := rl.AuthMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimiter_GeneralMiddleware_PerProfile(t *testing.T) {
	rl := testRateLimiter(t, RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    1,
		AuthRate:        rate.Limit(1),
		AuthBurst:       10,
		CleanupInterval: time.Minute,
	})

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(profileID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		decision := &authz.Decision{
			State:   authz.StateAuthorized,
			Profile: &model.Profile{ID: profileID},
		}
		req = req.WithContext(ContextWithDecision(req.Context(), decision))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("profile-1"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := send("profile-1"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for same profile, got %d", code)
	}

	// 同じIPでも別プロフィールなら独立してカウントされる
	if code := send("profile-2"); code != http.StatusOK {
		t.Errorf("expected 200 for different profile, got %d", code)
	}
}

func TestRateLimiter_GeneralMiddleware_FallsBackToIP(t *testing.T) {
	rl := testRateLimiter(t, RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    1,
		CleanupInterval: time.Minute,
	})

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := send("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for same IP, got %d", code)
	}
}
