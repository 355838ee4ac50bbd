package idp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/memberport/internal/model"
)

// mockLatencyMetrics はMetricsCollectorのモック実装。
type mockLatencyMetrics struct {
	operations []string
	durations  []time.Duration
}

func (m *mockLatencyMetrics) RecordProviderLatency(operation string, duration time.Duration) {
	m.operations = append(m.operations, operation)
	m.durations = append(m.durations, duration)
}

var _ MetricsCollector = (*mockLatencyMetrics)(nil)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *GoTrueProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewGoTrueProvider(GoTrueConfig{
		BaseURL: server.URL,
		APIKey:  "test-api-key",
	})
}

func TestGoTrueProvider_AuthenticateWithPassword(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected grant_type: %s", r.URL.Query().Get("grant_type"))
		}
		if r.Header.Get("apikey") != "test-api-key" {
			t.Errorf("missing apikey header")
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body["email"] != "member@example.com" || body["password"] != "secret" {
			t.Errorf("unexpected credentials: %v", body)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-abc",
			"token_type":   "bearer",
			"expires_in":   3600,
			"user": map[string]any{
				"id":    "auth-1",
				"email": "member@example.com",
				"user_metadata": map[string]string{
					"discord_nickname": "discord-name",
				},
			},
		})
	})

	session, err := provider.AuthenticateWithPassword(context.Background(), "member@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.AccessToken != "token-abc" {
		t.Errorf("unexpected access token: %s", session.AccessToken)
	}
	if session.Identity.ID != "auth-1" {
		t.Errorf("unexpected identity ID: %s", session.Identity.ID)
	}
	if session.Identity.Metadata.DiscordNickname == nil || *session.Identity.Metadata.DiscordNickname != "discord-name" {
		t.Errorf("expected discord nickname in metadata, got %v", session.Identity.Metadata.DiscordNickname)
	}
	if session.Identity.Metadata.Name != nil {
		t.Errorf("expected missing metadata key to stay nil, got %v", *session.Identity.Metadata.Name)
	}
}

func TestGoTrueProvider_AuthenticateWithPassword_InvalidCredential(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	})

	_, err := provider.AuthenticateWithPassword(context.Background(), "member@example.com", "wrong")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredential {
		t.Errorf("expected AUTH_INVALID_CREDENTIAL, got %v", err)
	}
}

func TestGoTrueProvider_RateLimited(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := provider.AuthenticateWithPassword(context.Background(), "member@example.com", "secret")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRateLimited {
		t.Errorf("expected AUTH_RATE_LIMITED, got %v", err)
	}
}

func TestGoTrueProvider_UpstreamUnavailable(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := provider.AuthenticateWithPassword(context.Background(), "member@example.com", "secret")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUpstreamUnavailable {
		t.Errorf("expected UPSTREAM_UNAVAILABLE, got %v", err)
	}
}

func TestGoTrueProvider_ExchangeCode(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body["type"] != "magiclink" || body["token"] != "one-time-code" {
			t.Errorf("unexpected verify payload: %v", body)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-xyz",
			"expires_in":   3600,
			"user": map[string]any{
				"id":    "auth-1",
				"email": "member@example.com",
			},
		})
	})

	session, err := provider.ExchangeCode(context.Background(), "one-time-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.AccessToken != "token-xyz" {
		t.Errorf("unexpected access token: %s", session.AccessToken)
	}
}

// 無効・期限切れ・使用済みコードはすべてAUTH_CODE_INVALIDに分類される。
// プロバイダーの内部的な理由は区別しない。
func TestGoTrueProvider_ExchangeCode_Invalid(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "otp_expired"})
	})

	_, err := provider.ExchangeCode(context.Background(), "stale-code")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeCodeInvalid {
		t.Errorf("expected AUTH_CODE_INVALID, got %v", err)
	}
}

func TestGoTrueProvider_RequestPasswordless(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/magiclink" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body["email"] != "member@example.com" {
			t.Errorf("unexpected email: %s", body["email"])
		}
		if body["redirect_to"] != "https://portal.example.com/auth/callback" {
			t.Errorf("unexpected redirect_to: %s", body["redirect_to"])
		}

		w.WriteHeader(http.StatusOK)
	})

	err := provider.RequestPasswordless(context.Background(), "member@example.com", "https://portal.example.com/auth/callback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGoTrueProvider_CurrentIdentity(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token-abc" {
			t.Errorf("missing bearer token: %s", r.Header.Get("Authorization"))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "auth-1",
			"email": "member@example.com",
		})
	})

	identity, err := provider.CurrentIdentity(context.Background(), "token-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.ID != "auth-1" || identity.Email != "member@example.com" {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

func TestGoTrueProvider_CurrentIdentity_InvalidToken(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := provider.CurrentIdentity(context.Background(), "expired-token")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredential {
		t.Errorf("expected AUTH_INVALID_CREDENTIAL, got %v", err)
	}
}

func TestGoTrueProvider_SignOut(t *testing.T) {
	called := false
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.URL.Path != "/logout" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token-abc" {
			t.Errorf("missing bearer token")
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := provider.SignOut(context.Background(), "token-abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected logout endpoint to be called")
	}
}

// 各操作は操作名ラベル付きでレイテンシを記録する。失敗した呼び出しも記録対象。
func TestGoTrueProvider_RecordsLatency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token", "/verify":
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "token-abc",
				"expires_in":   3600,
				"user": map[string]any{
					"id":    "auth-1",
					"email": "member@example.com",
				},
			})
		case "/user":
			json.NewEncoder(w).Encode(map[string]any{
				"id":    "auth-1",
				"email": "member@example.com",
			})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(server.Close)

	met := &mockLatencyMetrics{}
	provider := NewGoTrueProvider(GoTrueConfig{
		BaseURL: server.URL,
		APIKey:  "test-api-key",
		Metrics: met,
	})

	ctx := context.Background()
	if _, err := provider.AuthenticateWithPassword(ctx, "member@example.com", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := provider.RequestPasswordless(ctx, "member@example.com", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := provider.ExchangeCode(ctx, "one-time-code"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := provider.CurrentIdentity(ctx, "token-abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := provider.SignOut(ctx, "token-abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"password_grant", "magiclink", "verify", "user", "logout"}
	if len(met.operations) != len(want) {
		t.Fatalf("expected %d latency records, got %d: %v", len(want), len(met.operations), met.operations)
	}
	for i, op := range want {
		if met.operations[i] != op {
			t.Errorf("expected operation %q at position %d, got %q", op, i, met.operations[i])
		}
		if met.durations[i] < 0 {
			t.Errorf("expected non-negative duration for %q, got %v", op, met.durations[i])
		}
	}
}

func TestGoTrueProvider_RecordsLatency_OnFailure(t *testing.T) {
	met := &mockLatencyMetrics{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	provider := NewGoTrueProvider(GoTrueConfig{
		BaseURL: server.URL,
		APIKey:  "test-api-key",
		Metrics: met,
	})

	if _, err := provider.AuthenticateWithPassword(context.Background(), "member@example.com", "wrong"); err == nil {
		t.Fatal("expected error, got nil")
	}

	if len(met.operations) != 1 || met.operations[0] != "password_grant" {
		t.Errorf("expected latency recorded for failed call, got %v", met.operations)
	}
}
