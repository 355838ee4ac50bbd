package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/memberport/internal/middleware"
	"github.com/hitoshi/memberport/internal/model"
	"github.com/hitoshi/memberport/internal/repository"
)

// ProfileUpdaterInterface はプロフィールハンドラーが必要とする更新インターフェース。
// repository.ProfileRepositoryの部分集合。
type ProfileUpdaterInterface interface {
	UpdateSelf(ctx context.Context, id string, input *repository.ProfileSelfUpdate) (*model.Profile, error)
}

// ProfileHandler はユーザー自身のプロフィール表示・編集のHTTPハンドラー。
type ProfileHandler struct {
	profiles ProfileUpdaterInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(profiles ProfileUpdaterInterface) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Get は現在のユーザーのプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	decision, err := middleware.DecisionFromContext(r.Context())
	if err != nil || decision.Profile == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"profile": profileResponse(decision.Profile),
	})
}

// updateProfileRequest はプロフィール編集のリクエストボディ。
// 欠けているフィールド（null）は変更しない部分更新。
// emailとauth_user_idは同一性のキーであり、この経路からは変更できない。
type updateProfileRequest struct {
	Name            *string `json:"name"`
	Username        *string `json:"username"`
	AlternateEmail  *string `json:"alternate_email"`
	DiscordNickname *string `json:"discord_nickname"`
	GGPokerUsername *string `json:"ggpoker_username"`
}

// Update は現在のユーザーのプロフィールを部分更新する。
// PUT /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	decision, err := middleware.DecisionFromContext(r.Context())
	if err != nil || decision.Profile == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.profiles.UpdateSelf(r.Context(), decision.Profile.ID, &repository.ProfileSelfUpdate{
		Name:            req.Name,
		Username:        req.Username,
		AlternateEmail:  req.AlternateEmail,
		DiscordNickname: req.DiscordNickname,
		GGPokerUsername: req.GGPokerUsername,
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			middleware.WriteErrorResponse(w, middleware.StatusForError(apiErr), apiErr)
			return
		}
		slog.Error("failed to update profile",
			slog.String("profile_id", decision.Profile.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"profile": profileResponse(updated),
	})
}
