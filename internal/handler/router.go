package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/memberport/internal/authz"
	"github.com/hitoshi/memberport/internal/idp"
	"github.com/hitoshi/memberport/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Gate              middleware.GateEvaluator
	GateMetrics       middleware.GateMetrics

	// 認証
	Provider    idp.Provider
	Resolver    ProfileResolverInterface
	AuthMetrics AuthMetrics
	AuthConfig  AuthHandlerConfig

	// 各サービス
	ProfileUpdater    ProfileUpdaterInterface
	MembershipHistory MembershipHistoryInterface
	AdminService      AdminServiceInterface

	// Prometheusスクレイプ用ハンドラー。nilの場合は/metricsを公開しない
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	SecurityHeaders → CORS → Logging → Recovery → CSRF → Gate → RateLimit
//
// 認可ゲートはルート種別ごとに分けて適用する。同じセッションでも
// リクエストごとにチェーン全体を再評価し、結果はキャッシュしない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.Provider, deps.Resolver, deps.AuthMetrics, deps.AuthConfig)
	profileHandler := NewProfileHandler(deps.ProfileUpdater)
	dashboardHandler := NewDashboardHandler(deps.MembershipHistory)
	membersHandler := NewMembersHandler()
	adminHandler := NewAdminHandler(deps.AdminService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 認証フロー（認証前のためIP単位のレート制限を適用）
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/magiclink", authHandler.Magiclink)
		r.Get("/auth/callback", authHandler.Callback)
		r.Post("/auth/logout", authHandler.Logout)
	})

	// --- ログインが必要なルート（メンバーシップは不問） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewGateMiddleware(deps.Gate, authz.RouteNonGated, middleware.RespondJSON, deps.GateMetrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/auth/me", authHandler.Me)
		r.Get("/api/dashboard", dashboardHandler.Get)
		r.Get("/api/profile", profileHandler.Get)
		r.Put("/api/profile", profileHandler.Update)
	})

	// --- 有効なメンバーシップが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewGateMiddleware(deps.Gate, authz.RouteMemberGated, middleware.RespondJSON, deps.GateMetrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/members/area", membersHandler.Area)
	})

	// --- 管理者のみのルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewGateMiddleware(deps.Gate, authz.RouteAdmin, middleware.RespondJSON, deps.GateMetrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/admin/users", adminHandler.SearchUsers)
		r.Get("/api/admin/users/{id}", adminHandler.GetUserDetail)
	})

	return r
}

// healthHandler はプロセスの生存確認エンドポイント。
// GET /health
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}
