// Package authz は認可ゲートの状態機械を提供する。
// リクエストごとにセッショントークンから認可チェーン全体を再評価し、
// 描画層なしで独立にテストできるよう明示的な状態機械としてモデル化する。
package authz

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/hitoshi/memberport/internal/idp"
	"github.com/hitoshi/memberport/internal/model"
	"github.com/hitoshi/memberport/internal/repository"
)

// State は認可チェーンの状態を表す。
type State string

const (
	// StateAnonymous は未認証（またはチェーン途中で認証が失敗した）状態。
	StateAnonymous State = "anonymous"
	// StateAuthenticated はプロバイダーの認証を通過した状態。
	StateAuthenticated State = "authenticated"
	// StateProfileResolved はプロフィール解決まで完了した状態。
	StateProfileResolved State = "profile_resolved"
	// StateAuthorized はルートへのアクセスが許可された終端状態。
	StateAuthorized State = "authorized"
)

// Scope は認可されたアクセス範囲を表す。
type Scope string

const (
	ScopeUser  Scope = "user"
	ScopeAdmin Scope = "admin"
)

// RouteClass はルートのゲート種別を表す。
type RouteClass string

const (
	// RouteNonGated はログインのみ必要なルート（ダッシュボード、プロフィール編集）。
	RouteNonGated RouteClass = "non_gated"
	// RouteMemberGated は有効なメンバーシップが必要なルート。
	RouteMemberGated RouteClass = "member_gated"
	// RouteAdmin は管理者認可リストに含まれるプロフィールのみのルート。
	// メンバーシップ状態とは独立に判定される。
	RouteAdmin RouteClass = "admin"
)

// Decision は1リクエスト分の認可評価の結果を表す。
// 終端はStateAuthorized（続行）またはRedirectTo付きの非終端状態（リダイレクト）。
type Decision struct {
	State      State
	Scope      Scope
	Identity   *idp.Identity
	Profile    *model.Profile
	Membership model.DerivedMembership
	RedirectTo string // 空でない場合、呼び出し側はここへリダイレクトする
}

// Allowed はリクエストを続行してよいかを返す。
func (d *Decision) Allowed() bool {
	return d.State == StateAuthorized
}

// ProfileResolver はゲートが必要とするプロフィール解決のインターフェース。
type ProfileResolver interface {
	Resolve(ctx context.Context, identity *idp.Identity) (*model.Profile, error)
}

// StatusDeriver はゲートが必要とするメンバーシップ状態導出のインターフェース。
type StatusDeriver interface {
	DeriveStatus(ctx context.Context, profileID string, asOf time.Time) (model.DerivedMembership, error)
}

// Config はゲートのリダイレクト先設定。
type Config struct {
	SignInPath    string // 例: "/login"
	DashboardPath string // 例: "/dashboard"
}

// Gate は認可ゲート本体。リトライは行わず、評価は毎リクエスト完全にやり直す。
type Gate struct {
	provider idp.Provider
	resolver ProfileResolver
	status   StatusDeriver
	admins   repository.AdminRepository
	config   Config
	now      func() time.Time
}

// NewGate はGateを生成する。
func NewGate(
	provider idp.Provider,
	resolver ProfileResolver,
	status StatusDeriver,
	admins repository.AdminRepository,
	config Config,
) *Gate {
	if config.SignInPath == "" {
		config.SignInPath = "/login"
	}
	if config.DashboardPath == "" {
		config.DashboardPath = "/dashboard"
	}
	return &Gate{
		provider: provider,
		resolver: resolver,
		status:   status,
		admins:   admins,
		config:   config,
		now:      time.Now,
	}
}

// Evaluate はセッショントークンからルートへのアクセス可否を評価する。
//
// 遷移: Anonymous → Authenticated → ProfileResolved → Authorized(scope)。
// 認証またはプロフィール解決の失敗はAnonymousに戻り、元のリクエストパスを
// 保持したサインインへのリダイレクトになる。管理者ルートで管理者でない場合は
// ダッシュボードへのリダイレクトになり、管理コンテンツは一切返さない。
//
// PROFILE_CONFLICTとUPSTREAM_UNAVAILABLEはリダイレクトではなくエラーとして
// 呼び出し側に表面化する（自動マージ・自動リトライは行わない）。
func (g *Gate) Evaluate(ctx context.Context, accessToken string, route RouteClass, requestedPath string) (*Decision, error) {
	if accessToken == "" {
		return g.anonymous(requestedPath), nil
	}

	// Anonymous → Authenticated
	identity, err := g.provider.CurrentIdentity(ctx, accessToken)
	if err != nil {
		if isTransient(err) {
			return nil, err
		}
		// 無効・期限切れトークンはAnonymousに戻る
		return g.anonymous(requestedPath), nil
	}

	decision := &Decision{State: StateAuthenticated, Identity: identity}

	// Authenticated → ProfileResolved
	resolved, err := g.resolver.Resolve(ctx, identity)
	if err != nil {
		if isConflict(err) || isTransient(err) {
			return nil, err
		}
		return g.anonymous(requestedPath), nil
	}
	decision.State = StateProfileResolved
	decision.Profile = resolved

	// ProfileResolved → Authorized(admin): メンバーシップ状態とは独立
	if route == RouteAdmin {
		isAdmin, err := g.admins.IsAdmin(ctx, resolved.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check admin authorization: %w", err)
		}
		if !isAdmin {
			decision.RedirectTo = g.config.DashboardPath
			return decision, nil
		}
		decision.State = StateAuthorized
		decision.Scope = ScopeAdmin
		return decision, nil
	}

	// ProfileResolved → Authorized(user)
	derived, err := g.status.DeriveStatus(ctx, resolved.ID, g.now())
	if err != nil {
		return nil, fmt.Errorf("failed to derive membership status: %w", err)
	}
	decision.Membership = derived

	if route == RouteMemberGated && derived.State != model.MembershipStateActive {
		decision.RedirectTo = g.config.DashboardPath
		return decision, nil
	}

	decision.State = StateAuthorized
	decision.Scope = ScopeUser
	return decision, nil
}

// anonymous は元のリクエストパスを保持したサインインリダイレクト決定を返す。
func (g *Gate) anonymous(requestedPath string) *Decision {
	redirect := g.config.SignInPath
	if requestedPath != "" {
		redirect += "?next=" + url.QueryEscape(requestedPath)
	}
	return &Decision{State: StateAnonymous, RedirectTo: redirect}
}

// isTransient はエラーが一時的な上流障害かを判定する。
func isTransient(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUpstreamUnavailable
}

// isConflict はエラーがプロフィール重複条件かを判定する。
func isConflict(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeProfileConflict
}
