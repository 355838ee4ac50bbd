// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/memberport/internal/idp"
	"github.com/hitoshi/memberport/internal/middleware"
	"github.com/hitoshi/memberport/internal/model"
)

// defaultLandingPath はログイン後のデフォルト遷移先。
const defaultLandingPath = "/dashboard"

// ProfileResolverInterface は認証ハンドラーが必要とするプロフィール解決インターフェース。
type ProfileResolverInterface interface {
	Resolve(ctx context.Context, identity *idp.Identity) (*model.Profile, error)
}

// AuthMetrics は認証ハンドラーのメトリクス収集インターフェース。
type AuthMetrics interface {
	RecordLoginSuccess(method string)
	RecordLoginFailure(method string, code string)
	RecordCodeExchange(success bool)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string // フロントエンドのベースURL（コールバックのリダイレクト先）
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は認証フロー関連のHTTPハンドラー。
// トークンの発行・検証はすべて外部プロバイダーに委譲し、このハンドラーは
// セッションCookieの管理とプロフィール解決の起動のみを行う。
type AuthHandler struct {
	provider idp.Provider
	resolver ProfileResolverInterface
	metrics  AuthMetrics // nilの場合は記録しない
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnilでもよい。
func NewAuthHandler(provider idp.Provider, resolver ProfileResolverInterface, metrics AuthMetrics, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		resolver: resolver,
		metrics:  metrics,
		config:   config,
	}
}

// loginRequest はパスワードログインのリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"` // ログイン後の遷移先（相対パスのみ）
}

// Login はemailとパスワードで認証し、セッションCookieを設定する。
// POST /auth/login
//
// 認証成功後は即座にプロフィール解決まで行う。解決が重複条件で失敗した場合は
// セッションCookieを設定せずにエラーを返す（ログインさせない）。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidCredentialError())
		return
	}

	session, err := h.provider.AuthenticateWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordLoginFailure("password", err)
		h.writeAuthError(w, err)
		return
	}

	resolved, err := h.resolver.Resolve(r.Context(), &session.Identity)
	if err != nil {
		h.recordLoginFailure("password", err)
		h.writeAuthError(w, err)
		return
	}

	middleware.WriteSessionCookie(w, session.AccessToken, h.sessionCookieConfig())

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess("password")
	}
	slog.Info("login succeeded",
		slog.String("method", "password"),
		slog.String("profile_id", resolved.ID),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"profile":     profileResponse(resolved),
		"redirect_to": sanitizeNextPath(req.Next),
	})
}

// magiclinkRequest はマジックリンク送信のリクエストボディ。
type magiclinkRequest struct {
	Email string `json:"email"`
	Next  string `json:"next"` // 確認後の遷移先（相対パスのみ）
}

// Magiclink はマジックリンクの送信をプロバイダーに依頼する。
// POST /auth/magiclink
//
// メール送信はプロバイダーの責務であり、ここではAckのみを返す。
// アカウントの存在有無を漏らさないため、成功時のレスポンスは常に同一。
func (h *AuthHandler) Magiclink(w http.ResponseWriter, r *http.Request) {
	var req magiclinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	// 確認リンクはこのバックエンドのコールバックに戻る。遷移先はコード交換後に適用する
	redirectTo := h.config.BaseURL + "/auth/callback?next=" + url.QueryEscape(sanitizeNextPath(req.Next))

	if err := h.provider.RequestPasswordless(r.Context(), req.Email, redirectTo); err != nil {
		h.recordLoginFailure("magiclink", err)
		h.writeAuthError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "sent",
	})
}

// Callback はマジックリンクのワンタイムコードをセッションに交換する。
// GET /auth/callback?code=xxx&next=/path
//
// コードは単回使用。交換成功後はプロフィール解決まで行い、セッションCookieを
// 設定してnext（検証済み相対パス）へリダイレクトする。交換失敗時はコードを
// 保持せず、ログイン画面へ誘導する。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	next := sanitizeNextPath(r.URL.Query().Get("next"))

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectToLogin(w, r, next, model.ErrCodeCodeInvalid)
		return
	}

	session, err := h.provider.ExchangeCode(r.Context(), code)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordCodeExchange(false)
		}
		slog.Warn("code exchange failed", slog.String("error", err.Error()))
		h.redirectToLogin(w, r, next, errorCode(err))
		return
	}
	if h.metrics != nil {
		h.metrics.RecordCodeExchange(true)
	}

	resolved, err := h.resolver.Resolve(r.Context(), &session.Identity)
	if err != nil {
		slog.Warn("profile resolution failed after code exchange",
			slog.String("error", err.Error()),
		)
		// 重複条件はCookieを設定せず、そのままログイン画面に表示する
		h.redirectToLogin(w, r, next, errorCode(err))
		return
	}

	middleware.WriteSessionCookie(w, session.AccessToken, h.sessionCookieConfig())

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess("magiclink")
	}
	slog.Info("login succeeded",
		slog.String("method", "magiclink"),
		slog.String("profile_id", resolved.ID),
	)

	http.Redirect(w, r, h.config.BaseURL+next, http.StatusSeeOther)
}

// Logout はプロバイダー側のセッションを失効させ、セッションCookieをクリアする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.ReadSessionToken(r)
	if token != "" {
		// プロバイダー側の失効に失敗してもCookieはクリアする
		if err := h.provider.SignOut(r.Context(), token); err != nil {
			slog.Error("failed to sign out from provider", slog.String("error", err.Error()))
		}
	}

	middleware.ClearSessionCookie(w, h.sessionCookieConfig())
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のセッションのプロフィールとメンバーシップ状態を返す。
// GET /auth/me
//
// ゲートミドルウェア（JSONモード）の後段に配置する。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	decision, err := middleware.DecisionFromContext(r.Context())
	if err != nil || decision.Profile == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"profile":    profileResponse(decision.Profile),
		"membership": membershipStateResponse(decision.Membership),
	})
}

// redirectToLogin はエラーコード付きでログイン画面へリダイレクトする。
// 元の遷移先はnextパラメータとして保持する。
func (h *AuthHandler) redirectToLogin(w http.ResponseWriter, r *http.Request, next, code string) {
	q := url.Values{}
	if next != "" && next != defaultLandingPath {
		q.Set("next", next)
	}
	if code != "" {
		q.Set("error", code)
	}

	target := h.config.BaseURL + "/login"
	if encoded := q.Encode(); encoded != "" {
		target += "?" + encoded
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// writeAuthError は認証フローのエラーを統一フォーマットで書き込む。
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForError(apiErr), apiErr)
		return
	}
	slog.Error("authentication failed", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// recordLoginFailure はログイン失敗のメトリクスを記録する。
func (h *AuthHandler) recordLoginFailure(method string, err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordLoginFailure(method, errorCode(err))
}

// sessionCookieConfig はセッションCookieの属性設定を返す。
func (h *AuthHandler) sessionCookieConfig() middleware.SessionCookieConfig {
	return middleware.SessionCookieConfig{
		Secure: h.config.CookieSecure,
		Domain: h.config.CookieDomain,
		MaxAge: h.config.SessionMaxAge,
	}
}

// errorCode はエラーからAPIエラーコードを取り出す。不明な場合はINTERNAL_ERROR。
func errorCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "INTERNAL_ERROR"
}

// sanitizeNextPath はログイン後の遷移先を相対パスに限定して検証する。
// オープンリダイレクトを防ぐため、スキームやホストを含むもの、"//"で始まる
// ものはすべてデフォルトの遷移先に差し替える。
func sanitizeNextPath(next string) string {
	if next == "" {
		return defaultLandingPath
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return defaultLandingPath
	}
	if strings.Contains(next, "://") || strings.Contains(next, "\\") {
		return defaultLandingPath
	}
	return next
}
