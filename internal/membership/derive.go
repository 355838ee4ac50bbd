// Package membership はメンバーシップ状態の導出を提供する。
package membership

import (
	"time"

	"github.com/hitoshi/memberport/internal/model"
)

// Derive はメンバーシップ履歴から「現在の」状態を導出する。
//
// 取得済みレコードと評価時刻のみに依存する純関数であり、同じ入力に対して
// 必ず同じ結果を返す。選択ロジック:
//  1. status == active かつ expires_at >= asOf のレコードに絞る
//     （期限ちょうどは有効、1マイクロ秒過ぎたら無効）。
//  2. 残った中からupdated_atが最新のものを選ぶ。
//     同時刻の場合はexpires_atが遅いもの、さらに同じ場合はプラン階級が高いもの。
//  3. 生き残りがなければ、履歴があるならnone、レコードが1件もないならunknown。
//     どちらもアクセス拒否の扱いだが、サポート表示のために区別する。
func Derive(records []*model.Membership, asOf time.Time) model.DerivedMembership {
	if len(records) == 0 {
		return model.DerivedMembership{State: model.MembershipStateUnknown}
	}

	var current *model.Membership
	for _, rec := range records {
		if rec.Status != model.MembershipActive {
			continue
		}
		if rec.ExpiresAt.Before(asOf) {
			continue
		}
		if current == nil || prefer(rec, current) {
			current = rec
		}
	}

	if current == nil {
		return model.DerivedMembership{State: model.MembershipStateNone}
	}
	return model.DerivedMembership{State: model.MembershipStateActive, Current: current}
}

// prefer はcandidateをcurrentより優先すべきかを判定する。
// 優先順位: updated_atが新しい > expires_atが遅い > プラン階級が高い。
func prefer(candidate, current *model.Membership) bool {
	if !candidate.UpdatedAt.Equal(current.UpdatedAt) {
		return candidate.UpdatedAt.After(current.UpdatedAt)
	}
	if !candidate.ExpiresAt.Equal(current.ExpiresAt) {
		return candidate.ExpiresAt.After(current.ExpiresAt)
	}
	return candidate.Plan.Rank() > current.Plan.Rank()
}
