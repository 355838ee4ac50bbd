// Package idp は外部認証プロバイダー（IdP）とのアダプターを提供する。
// パスワード認証・マジックリンク・ワンタイムコード交換・セッション照会を
// 抽象化し、トークン発行やパスワードハッシュはすべてプロバイダーに委譲する。
package idp

import "context"

// Identity はプロバイダーが発行した認証済みアイデンティティを表す。
// セッションごとにプロバイダーから取得し、このシステムでは永続化しない。
type Identity struct {
	ID       string // プロバイダー側の安定したユーザーID
	Email    string
	Metadata RegistrationMeta
}

// RegistrationMeta は登録時に取り込まれたメタデータの袋を表す。
// nilのフィールドは「未指定」を意味し、プロフィールへのマージ時に既存値を維持する。
type RegistrationMeta struct {
	Name            *string
	Username        *string
	AlternateEmail  *string
	DiscordNickname *string
	GGPokerUsername *string
}

// Session はプロバイダーが発行したセッションを表す。
// AccessTokenはリクエストスコープのセッショントークンとしてCookieに保持される。
type Session struct {
	AccessToken string
	ExpiresIn   int // 秒
	Identity    Identity
}

// Provider は外部認証プロバイダーのインターフェース。
// 失敗は1回だけ報告し、リトライは呼び出し側の責務とする。
type Provider interface {
	// AuthenticateWithPassword はemailとパスワードで認証しセッションを発行する。
	AuthenticateWithPassword(ctx context.Context, email, password string) (*Session, error)

	// RequestPasswordless はマジックリンクの送信をプロバイダーに依頼する。
	// 副作用としてプロバイダーが確認リンクをメール送信する。戻りはAckのみ。
	RequestPasswordless(ctx context.Context, email, redirectTo string) error

	// ExchangeCode はワンタイムコードをセッションに交換する。コードは単回使用。
	ExchangeCode(ctx context.Context, code string) (*Session, error)

	// CurrentIdentity はアクセストークンから現在のアイデンティティを取得する。
	CurrentIdentity(ctx context.Context, accessToken string) (*Identity, error)

	// SignOut はプロバイダー側のセッションを失効させる。
	SignOut(ctx context.Context, accessToken string) error
}
