package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/memberport/internal/authz"
	"github.com/hitoshi/memberport/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// decisionContextKey はリクエストコンテキストに認可決定を格納するためのキー。
var decisionContextKey = contextKey("authz_decision")

// ResponseMode はゲート拒否時の応答方式を表す。
type ResponseMode int

const (
	// RespondRedirect はブラウザナビゲーション向け。Decision.RedirectToへ303で誘導する。
	// 現在のAPIルート群はすべてXHR前提のためRespondJSONを使うが、
	// フロントエンドを経由しない非XHRのゲート付きページを追加する場合はこちらを指定する。
	RespondRedirect ResponseMode = iota
	// RespondJSON はXHR向け。リダイレクトせず統一エラーフォーマットのJSONを返す。
	RespondJSON
)

// GateEvaluator は認可ゲートの評価インターフェース。authz.Gateの部分集合。
type GateEvaluator interface {
	Evaluate(ctx context.Context, accessToken string, route authz.RouteClass, requestedPath string) (*authz.Decision, error)
}

// GateMetrics はゲート評価のメトリクス収集インターフェース。
type GateMetrics interface {
	RecordGateDecision(route string, state string)
}

// NewGateMiddleware は認可ゲートをリクエストごとに評価するミドルウェアを返す。
//
// キャッシュは一切持たない: 同じセッションでも毎リクエスト、トークン検証から
// プロフィール解決、メンバーシップ導出までのチェーン全体をやり直す。
// 許可された場合はDecisionをコンテキストに注入して後続に渡す。
// 拒否された場合はmodeに応じてリダイレクトまたはJSONエラーを返す。
// metricsはnilでもよい。
func NewGateMiddleware(gate GateEvaluator, route authz.RouteClass, mode ResponseMode, metrics GateMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ReadSessionToken(r)

			decision, err := gate.Evaluate(r.Context(), token, route, r.URL.Path)
			if err != nil {
				writeGateError(w, r, err)
				return
			}

			if metrics != nil {
				metrics.RecordGateDecision(string(route), string(decision.State))
			}

			if !decision.Allowed() {
				if mode == RespondRedirect && decision.RedirectTo != "" {
					http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
					return
				}
				if decision.State == authz.StateAnonymous {
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthorizedError())
					return
				}
				WriteErrorResponse(w, http.StatusForbidden, model.NewNotAuthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), decisionContextKey, decision)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeGateError はゲート評価中のエラーを統一フォーマットで書き込む。
// PROFILE_CONFLICTとUPSTREAM_UNAVAILABLEはユーザーに表示する情報を持つため
// そのまま返し、それ以外は詳細をログのみに記録する。
func writeGateError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeProfileConflict:
			WriteErrorResponse(w, http.StatusConflict, apiErr)
			return
		case model.ErrCodeUpstreamUnavailable:
			WriteErrorResponse(w, http.StatusServiceUnavailable, apiErr)
			return
		}
	}

	slog.Error("authorization gate evaluation failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	WriteInternalServerError(w)
}

// DecisionFromContext はリクエストコンテキストから認可決定を取得する。
// ゲートミドルウェアを通過したリクエストでのみ有効。
func DecisionFromContext(ctx context.Context) (*authz.Decision, error) {
	decision, ok := ctx.Value(decisionContextKey).(*authz.Decision)
	if !ok || decision == nil {
		return nil, fmt.Errorf("authorization decision not found in context")
	}
	return decision, nil
}

// ContextWithDecision はコンテキストに認可決定を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithDecision(ctx context.Context, decision *authz.Decision) context.Context {
	return context.WithValue(ctx, decisionContextKey, decision)
}

// ProfileIDFromContext はリクエストコンテキストから解決済みプロフィールIDを取得する。
func ProfileIDFromContext(ctx context.Context) (string, error) {
	decision, err := DecisionFromContext(ctx)
	if err != nil {
		return "", err
	}
	if decision.Profile == nil {
		return "", fmt.Errorf("profile not resolved in context")
	}
	return decision.Profile.ID, nil
}
