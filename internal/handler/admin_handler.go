package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/memberport/internal/admin"
	"github.com/hitoshi/memberport/internal/middleware"
	"github.com/hitoshi/memberport/internal/model"
)

// AdminServiceInterface は管理者ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	SearchProfiles(ctx context.Context, emailFragment string, page int) (*admin.SearchResult, error)
	GetProfileDetail(ctx context.Context, profileID string) (*admin.ProfileDetail, error)
}

// AdminHandler は管理者向け会員照会のHTTPハンドラー。読み取り専用。
// 管理者認可はゲートミドルウェア（RouteAdmin）が済ませている前提で動く。
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// SearchUsers はemailの部分一致で会員を検索する。
// GET /api/admin/users?email=xxx&page=1
func (h *AdminHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	emailFragment := r.URL.Query().Get("email")

	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		parsed, err := strconv.Atoi(pageStr)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid page parameter", http.StatusBadRequest)
			return
		}
		page = parsed
	}

	result, err := h.service.SearchProfiles(r.Context(), emailFragment, page)
	if err != nil {
		h.writeAdminError(w, err)
		return
	}

	profiles := make([]profileJSON, 0, len(result.Profiles))
	for _, p := range result.Profiles {
		profiles = append(profiles, profileResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"profiles":  profiles,
		"page":      result.Page,
		"page_size": result.PageSize,
		"has_next":  result.HasNext,
	})
}

// GetUserDetail は会員の詳細（プロフィール、メンバーシップ、取引履歴）を返す。
// GET /api/admin/users/{id}
func (h *AdminHandler) GetUserDetail(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "id")
	if profileID == "" {
		http.Error(w, "missing profile id", http.StatusBadRequest)
		return
	}

	detail, err := h.service.GetProfileDetail(r.Context(), profileID)
	if err != nil {
		h.writeAdminError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"profile":    profileResponse(detail.Profile),
		"membership": membershipStateResponse(detail.Membership),
		"history":    membershipListResponse(detail.History),
		"ledger":     ledgerListResponse(detail.Ledger),
	})
}

// writeAdminError は管理者APIのエラーを統一フォーマットで書き込む。
func (h *AdminHandler) writeAdminError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForError(apiErr), apiErr)
		return
	}
	slog.Error("admin lookup failed", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
