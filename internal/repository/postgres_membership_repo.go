package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/memberport/internal/model"
)

// PostgresMembershipRepo はPostgreSQLを使用したメンバーシップリポジトリ。
// 読み取り + 期限切れ状態遷移のみ。レコードの起票は外部POSシステムが行う。
type PostgresMembershipRepo struct {
	db *sql.DB
}

// NewPostgresMembershipRepo はPostgresMembershipRepoを生成する。
func NewPostgresMembershipRepo(db *sql.DB) *PostgresMembershipRepo {
	return &PostgresMembershipRepo{db: db}
}

// ListByProfileID は指定プロフィールの全メンバーシップをcreated_at降順で返す。
// ステータス導出は表示用ビューではなくこの生レコードに対して行う。
func (r *PostgresMembershipRepo) ListByProfileID(ctx context.Context, profileID string) ([]*model.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, profile_id, plan, status, start_date, expires_at, notes, eva,
		        discord_nickname, ggpoker_username, created_at, updated_at
		 FROM memberships
		 WHERE profile_id = $1
		 ORDER BY created_at DESC`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*model.Membership
	for rows.Next() {
		m := &model.Membership{}
		err := rows.Scan(
			&m.ID, &m.ProfileID, &m.Plan, &m.Status, &m.StartDate, &m.ExpiresAt,
			&m.Notes, &m.EVA, &m.DiscordNickname, &m.GGPokerUsername,
			&m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}

// MarkExpired は期限を過ぎたactiveレコードをinactiveに遷移させ、件数を返す。冪等。
func (r *PostgresMembershipRepo) MarkExpired(ctx context.Context, asOf time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE memberships
		 SET status = 'inactive', updated_at = now()
		 WHERE status = 'active' AND expires_at < $1`,
		asOf,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired memberships: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}

// compile-time interface check
var _ MembershipRepository = (*PostgresMembershipRepo)(nil)
