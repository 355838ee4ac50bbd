// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/memberport/internal/model"
)

// ProfileUpsert はプロフィールのアトミックUPSERTへの入力を表す。
// ポインタのフィールドはnilの場合「未指定」を意味し、既存行の値を維持する。
type ProfileUpsert struct {
	AuthUserID      string
	Email           string
	Name            *string
	Username        *string
	AlternateEmail  *string
	DiscordNickname *string
	GGPokerUsername *string
}

// ProfileSelfUpdate はユーザー自身によるプロフィール編集の入力を表す。
// nilのフィールドは変更しない部分更新。
type ProfileSelfUpdate struct {
	Name            *string
	Username        *string
	AlternateEmail  *string
	DiscordNickname *string
	GGPokerUsername *string
}

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// UpsertByAuthUserID はauth_user_idをキーにプロフィールを1文でUPSERTする。
	// 同一auth_user_idの同時実行でも行は1つしか作られない。
	// 同一emailで異なるauth_user_idが既に存在する場合はPROFILE_CONFLICTを返す。
	UpsertByAuthUserID(ctx context.Context, input *ProfileUpsert) (*model.Profile, error)

	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// SearchByEmail はemailの部分一致（大文字小文字無視）で検索する。
	// created_at降順、limit/offsetでページング。毎回独立したクエリで再開可能。
	SearchByEmail(ctx context.Context, emailFragment string, limit, offset int) ([]*model.Profile, error)

	// UpdateSelf はユーザー自身によるプロフィール編集を適用する。
	// nilのフィールドは変更しない。更新後のプロフィールを返す。
	UpdateSelf(ctx context.Context, id string, input *ProfileSelfUpdate) (*model.Profile, error)
}

// MembershipRepository はメンバーシップレコードの読み取りインターフェース。
// 正規の書き込みは外部POSシステムのみが行うため、作成・更新操作は提供しない。
// 唯一の例外は期限切れレコードの状態遷移（MarkExpired）。
type MembershipRepository interface {
	// ListByProfileID は指定プロフィールの全メンバーシップをcreated_at降順で返す。
	ListByProfileID(ctx context.Context, profileID string) ([]*model.Membership, error)

	// MarkExpired は期限を過ぎたactiveレコードをinactiveに遷移させ、件数を返す。
	// 冪等。期限切れワーカーからのみ呼ばれる。
	MarkExpired(ctx context.Context, asOf time.Time) (int64, error)
}

// AdminRepository は管理者認可リストの照会インターフェース。
type AdminRepository interface {
	// IsAdmin は指定プロフィールが管理者認可リストに含まれるかを返す。
	IsAdmin(ctx context.Context, profileID string) (bool, error)
}

// LedgerRepository は会計台帳の読み取りインターフェース。表示専用。
type LedgerRepository interface {
	// ListByProfileID は指定プロフィールの取引をtransaction_date降順で返す。
	ListByProfileID(ctx context.Context, profileID string, limit int) ([]*model.LedgerEntry, error)
}
