// Package expiry はメンバーシップの期限切れ遷移ジョブを提供する。
// 期限を過ぎたactiveレコードをinactiveへ遷移させる日次バッチ。
// ゲート判定はこのジョブに依存しない（期限は導出時に毎回評価される）ため、
// ジョブの遅延がアクセス制御に影響することはない。
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/memberport/internal/repository"
)

// Metrics は期限切れ遷移のメトリクス収集インターフェース。
type Metrics interface {
	RecordMembershipsExpired(count int64)
}

// ExpiryJob は期限切れメンバーシップの状態遷移ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な遷移処理を保証する。
type ExpiryJob struct {
	memberships repository.MembershipRepository
	logger      *slog.Logger
	metrics     Metrics // nilの場合は記録しない
}

// NewExpiryJob は新しいExpiryJobを生成する。metricsはnilでもよい。
func NewExpiryJob(memberships repository.MembershipRepository, logger *slog.Logger, metrics Metrics) *ExpiryJob {
	return &ExpiryJob{
		memberships: memberships,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run は期限を過ぎたactiveレコードをinactiveに遷移させる。
// 冪等: 対象がない場合でもエラーにならない。
func (j *ExpiryJob) Run(ctx context.Context) error {
	start := time.Now()

	count, err := j.memberships.MarkExpired(ctx, start)
	if err != nil {
		j.logger.Error("期限切れ遷移ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れ遷移の実行に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordMembershipsExpired(count)
	}

	duration := time.Since(start)
	j.logger.Info("期限切れ遷移ジョブが完了しました",
		slog.Int64("expired_count", count),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RunLoop は指定間隔でRunを繰り返し実行する。
// 起動直後に1回実行し、以降はinterval間隔で実行する。
// ctxのキャンセルで停止する。
func (j *ExpiryJob) RunLoop(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("期限切れ遷移ジョブでエラーが発生しました",
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("期限切れ遷移ジョブでエラーが発生しました",
					slog.String("error", err.Error()),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}
