// Package model はドメインモデルを定義する。
package model

import "time"

// Profile はアプリケーション内の永続的なユーザーレコードを表す。
// 外部IdPのユーザー1人につき必ず1行（auth_user_idにユニーク制約）。
// ログインemailは表示用の情報であり、プロフィール作成後は同一性のキーとして扱わない。
type Profile struct {
	ID              string
	AuthUserID      string // 外部IdPのユーザーID（ユニーク）
	Email           string // ログインemail
	Name            string
	Username        string
	AlternateEmail  string // 連絡用の予備email。表示専用で同一性キーには使わない
	DiscordNickname string
	GGPokerUsername string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Plan はメンバーシップのプラン階級を表す。basic < premium < ultimate の順序を持つ。
type Plan string

const (
	PlanBasic    Plan = "basic"
	PlanPremium  Plan = "premium"
	PlanUltimate Plan = "ultimate"
)

// Rank はプラン階級の順序値を返す。未知のプランは0。
func (p Plan) Rank() int {
	switch p {
	case PlanBasic:
		return 1
	case PlanPremium:
		return 2
	case PlanUltimate:
		return 3
	default:
		return 0
	}
}

// MembershipStatus はメンバーシップレコードの状態を表す。
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
	MembershipPending  MembershipStatus = "pending"
)

// Membership は購入・付与された1区間のアクセス権を表す。
// 正規の書き込み元は外部のPOSシステムのみ。履歴は不変で、
// 状態遷移（active→inactive等）だけが外部から適用される。
type Membership struct {
	ID              string
	ProfileID       string
	Plan            Plan
	Status          MembershipStatus
	StartDate       time.Time
	ExpiresAt       time.Time
	Notes           string // POS起票の自由記述。表示前にサニタイズが必要
	EVA             bool   // 追加特典（EVA）の付与フラグ
	DiscordNickname string
	GGPokerUsername string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MembershipState は導出された現在のメンバーシップ状態の種別を表す。
type MembershipState string

const (
	// MembershipStateActive は有効なメンバーシップが存在する状態。
	MembershipStateActive MembershipState = "active"
	// MembershipStateNone は履歴はあるが現在有効なレコードがない状態。
	MembershipStateNone MembershipState = "none"
	// MembershipStateUnknown はメンバーシップレコードが1件も存在しない状態。
	// ゲート判定上はnoneと同じ扱いだが、サポート表示のために区別する。
	MembershipStateUnknown MembershipState = "unknown"
)

// DerivedMembership は導出された「現在の」メンバーシップ状態を表す。永続化しない。
// CurrentはStateがactiveの場合のみ非nil。
type DerivedMembership struct {
	State   MembershipState
	Current *Membership
}

// LedgerEntry は会計台帳の1取引を表す。POSが起票する表示専用データ。
// 金額は浮動小数点誤差を避けるためセント単位の整数で保持する。
type LedgerEntry struct {
	ID              string
	TransactionDate time.Time
	Description     string
	AmountCents     int64
	Type            string
	Category        string
	PaymentMethod   string
	ProfileID       string
	MembershipID    string
	CreatedAt       time.Time
}
