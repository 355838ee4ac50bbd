// Package profile は認証済みアイデンティティから内部プロフィールへの解決を提供する。
// 「1外部ID = 1プロフィール」の不変条件を守る唯一のコンポーネントであり、
// プロフィールの作成経路はここ以外に存在しない。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/memberport/internal/idp"
	"github.com/hitoshi/memberport/internal/model"
	"github.com/hitoshi/memberport/internal/repository"
)

// MetricsCollector はプロフィール解決のメトリクス収集インターフェース。
type MetricsCollector interface {
	RecordProfileUpsert(created bool)
	RecordProfileConflict()
}

// Resolver は認証済みアイデンティティを正確に1つのプロフィール行に写像する。
type Resolver struct {
	profiles repository.ProfileRepository
	metrics  MetricsCollector // nilの場合は記録しない
}

// NewResolver はResolverを生成する。metricsはnilでもよい。
func NewResolver(profiles repository.ProfileRepository, metrics MetricsCollector) *Resolver {
	return &Resolver{profiles: profiles, metrics: metrics}
}

// Resolve は認証済みアイデンティティに対応するプロフィールを取得または作成する。
//
// ルックアップと作成はread-then-writeではなく、auth_user_idをキーにした
// アトミックUPSERT1文で行う。同一アイデンティティの同時重複呼び出し
// （確認リンクの二度踏み、2タブのコールバック競合）でも行は1つしか作られず、
// 2回目以降の呼び出しは最初に作られた行を観測する。
//
// 登録時メタデータはフィールド単位でマージされる: 存在するフィールドだけが
// 既存値を上書きし、欠けているフィールドは手つかずのまま残る。
// 同じメタデータを2回適用しても結果は1回のときと同じ（冪等）。
//
// 同一emailで異なるauth_user_idのプロフィールが既に存在する場合は
// PROFILE_CONFLICTが返る。推測によるマージは行わない。
func (r *Resolver) Resolve(ctx context.Context, identity *idp.Identity) (*model.Profile, error) {
	if identity == nil || identity.ID == "" {
		return nil, fmt.Errorf("identity is required")
	}
	if identity.Email == "" {
		return nil, fmt.Errorf("identity email is required")
	}

	resolved, err := r.profiles.UpsertByAuthUserID(ctx, &repository.ProfileUpsert{
		AuthUserID:      identity.ID,
		Email:           identity.Email,
		Name:            identity.Metadata.Name,
		Username:        identity.Metadata.Username,
		AlternateEmail:  identity.Metadata.AlternateEmail,
		DiscordNickname: identity.Metadata.DiscordNickname,
		GGPokerUsername: identity.Metadata.GGPokerUsername,
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeProfileConflict {
			if r.metrics != nil {
				r.metrics.RecordProfileConflict()
			}
			slog.Warn("プロフィールの重複条件を検出しました",
				slog.String("auth_user_id", identity.ID),
			)
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve profile: %w", err)
	}

	// INSERT時はcreated_atとupdated_atが同一トランザクションタイムスタンプになる
	created := resolved.CreatedAt.Equal(resolved.UpdatedAt)
	if r.metrics != nil {
		r.metrics.RecordProfileUpsert(created)
	}

	if created {
		slog.Info("new profile created",
			slog.String("profile_id", resolved.ID),
			slog.String("auth_user_id", identity.ID),
		)
	}

	return resolved, nil
}
