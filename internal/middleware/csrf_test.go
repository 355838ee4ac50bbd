package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCSRFMiddleware_SafeMethodSetsCookie(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var found bool
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == csrfCookieName && cookie.Value != "" {
			found = true
			if cookie.HttpOnly {
				t.Error("CSRF cookie must be readable from JavaScript")
			}
		}
	}
	if !found {
		t.Error("expected CSRF cookie to be set on safe method")
	}
}

func TestCSRFMiddleware_MutatingMethodRequiresToken(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		cookieValue string
		headerValue string
		wantStatus  int
	}{
		{name: "トークンなし", wantStatus: http.StatusForbidden},
		{name: "Cookieのみ", cookieValue: "token-1", wantStatus: http.StatusForbidden},
		{name: "ヘッダーのみ", headerValue: "token-1", wantStatus: http.StatusForbidden},
		{name: "不一致", cookieValue: "token-1", headerValue: "token-2", wantStatus: http.StatusForbidden},
		{name: "一致", cookieValue: "token-1", headerValue: "token-1", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/profile", nil)
			if tt.cookieValue != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookieValue})
			}
			if tt.headerValue != "" {
				req.Header.Set(csrfHeaderName, tt.headerValue)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var found bool
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == csrfCookieName && cookie.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected CSRF cookie to be issued")
	}
}
