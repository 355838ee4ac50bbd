package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/memberport/internal/middleware"
	"github.com/hitoshi/memberport/internal/model"
)

// MembershipHistoryInterface はダッシュボードハンドラーが必要とする履歴照会インターフェース。
type MembershipHistoryInterface interface {
	History(ctx context.Context, profileID string) ([]*model.Membership, error)
}

// DashboardHandler は会員ダッシュボードのHTTPハンドラー。
// メンバーシップ状態はゲートミドルウェアが導出済みのものを使い、二重に計算しない。
type DashboardHandler struct {
	memberships MembershipHistoryInterface
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(memberships MembershipHistoryInterface) *DashboardHandler {
	return &DashboardHandler{memberships: memberships}
}

// Get はダッシュボードの表示内容（プロフィール、導出済みメンバーシップ状態、
// メンバーシップ履歴）を返す。
// GET /api/dashboard
//
// ダッシュボードはメンバーシップが無効でも閲覧できる。stateがnoneまたは
// unknownの場合、フロントエンドは更新案内を表示する。
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	decision, err := middleware.DecisionFromContext(r.Context())
	if err != nil || decision.Profile == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthorizedError())
		return
	}

	history, err := h.memberships.History(r.Context(), decision.Profile.ID)
	if err != nil {
		slog.Error("failed to fetch membership history",
			slog.String("profile_id", decision.Profile.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"profile":    profileResponse(decision.Profile),
		"membership": membershipStateResponse(decision.Membership),
		"history":    membershipListResponse(history),
	})
}
