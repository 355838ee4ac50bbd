package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/memberport/internal/middleware"
	"github.com/hitoshi/memberport/internal/model"
)

// MembersHandler は会員限定エリアのHTTPハンドラー。
// 有効なメンバーシップの確認はゲートミドルウェア（RouteMemberGated）が
// 済ませている前提で動くため、ここに到達した時点で必ずactiveである。
type MembersHandler struct{}

// NewMembersHandler はMembersHandlerを生成する。
func NewMembersHandler() *MembersHandler {
	return &MembersHandler{}
}

// Area は会員限定エリアの表示内容（現在のメンバーシップと特典）を返す。
// GET /api/members/area
func (h *MembersHandler) Area(w http.ResponseWriter, r *http.Request) {
	decision, err := middleware.DecisionFromContext(r.Context())
	if err != nil || decision.Profile == nil || decision.Membership.Current == nil {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewNotAuthorizedError())
		return
	}

	current := decision.Membership.Current

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"profile":    profileResponse(decision.Profile),
		"membership": membershipResponse(current),
		"perks": map[string]any{
			"plan": string(current.Plan),
			"eva":  current.EVA,
		},
	})
}
