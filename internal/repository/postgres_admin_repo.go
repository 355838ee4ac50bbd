package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresAdminRepo はPostgreSQLを使用した管理者認可リストリポジトリ。
// 管理者権限はプロフィールの属性ではなく、独立したadmin_usersリストで管理する。
type PostgresAdminRepo struct {
	db *sql.DB
}

// NewPostgresAdminRepo はPostgresAdminRepoを生成する。
func NewPostgresAdminRepo(db *sql.DB) *PostgresAdminRepo {
	return &PostgresAdminRepo{db: db}
}

// IsAdmin は指定プロフィールが管理者認可リストに含まれるかを返す。
func (r *PostgresAdminRepo) IsAdmin(ctx context.Context, profileID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM admin_users WHERE profile_id = $1)`,
		profileID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check admin list: %w", err)
	}

	return exists, nil
}

// compile-time interface check
var _ AdminRepository = (*PostgresAdminRepo)(nil)
