package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/memberport/internal/authz"
	"github.com/hitoshi/memberport/internal/middleware"
	"github.com/hitoshi/memberport/internal/model"
	"github.com/hitoshi/memberport/internal/repository"
)

// mockProfileUpdater はProfileUpdaterInterfaceのモック実装。
type mockProfileUpdater struct {
	updateSelfFunc func(ctx context.Context, id string, input *repository.ProfileSelfUpdate) (*model.Profile, error)
}

func (m *mockProfileUpdater) UpdateSelf(ctx context.Context, id string, input *repository.ProfileSelfUpdate) (*model.Profile, error) {
	return m.updateSelfFunc(ctx, id, input)
}

var _ ProfileUpdaterInterface = (*mockProfileUpdater)(nil)

func userDecision() *authz.Decision {
	return &authz.Decision{
		State:   authz.StateAuthorized,
		Scope:   authz.ScopeUser,
		Profile: &model.Profile{ID: "profile-1", Email: "member@example.com", Name: "Taro"},
	}
}

func TestProfileHandler_Get(t *testing.T) {
	h := NewProfileHandler(&mockProfileUpdater{})

	rec := httptest.NewRecorder()
	h.Get(rec, requestWithDecision(http.MethodGet, "/api/profile", userDecision()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Profile profileJSON `json:"profile"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Profile.ID != "profile-1" || resp.Profile.Name != "Taro" {
		t.Errorf("unexpected profile: %+v", resp.Profile)
	}
}

// JSONに存在するフィールドだけが更新対象になり、欠けているフィールドはnilのまま渡る。
func TestProfileHandler_Update_PartialFields(t *testing.T) {
	updater := &mockProfileUpdater{
		updateSelfFunc: func(ctx context.Context, id string, input *repository.ProfileSelfUpdate) (*model.Profile, error) {
			if id != "profile-1" {
				t.Errorf("unexpected profile ID: %s", id)
			}
			if input.DiscordNickname == nil || *input.DiscordNickname != "new-nick" {
				t.Errorf("expected discord nickname update, got %v", input.DiscordNickname)
			}
			if input.Name != nil {
				t.Errorf("expected name to stay nil, got %v", *input.Name)
			}
			return &model.Profile{ID: id, DiscordNickname: "new-nick"}, nil
		},
	}

	h := NewProfileHandler(updater)

	req := httptest.NewRequest(http.MethodPut, "/api/profile",
		strings.NewReader(`{"discord_nickname":"new-nick"}`))
	req = req.WithContext(middleware.ContextWithDecision(req.Context(), userDecision()))

	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProfileHandler_Update_WithoutDecision(t *testing.T) {
	h := NewProfileHandler(&mockProfileUpdater{})

	req := httptest.NewRequest(http.MethodPut, "/api/profile", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without decision, got %d", rec.Code)
	}
}
