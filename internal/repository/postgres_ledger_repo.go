package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/memberport/internal/model"
)

// PostgresLedgerRepo はPostgreSQLを使用した会計台帳リポジトリ。表示専用。
type PostgresLedgerRepo struct {
	db *sql.DB
}

// NewPostgresLedgerRepo はPostgresLedgerRepoを生成する。
func NewPostgresLedgerRepo(db *sql.DB) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{db: db}
}

// ListByProfileID は指定プロフィールの取引をtransaction_date降順で返す。
// 支払い方法名はpayment_methodsをJOINして解決する。
func (r *PostgresLedgerRepo) ListByProfileID(ctx context.Context, profileID string, limit int) ([]*model.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT l.id, l.transaction_date, l.description, l.amount_cents, l.type, l.category,
		        COALESCE(pm.name, ''), COALESCE(l.profile_id::text, ''),
		        COALESCE(l.membership_id::text, ''), l.created_at
		 FROM ledger l
		 LEFT JOIN payment_methods pm ON pm.id = l.payment_method_id
		 WHERE l.profile_id = $1
		 ORDER BY l.transaction_date DESC
		 LIMIT $2`,
		profileID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		e := &model.LedgerEntry{}
		err := rows.Scan(
			&e.ID, &e.TransactionDate, &e.Description, &e.AmountCents, &e.Type,
			&e.Category, &e.PaymentMethod, &e.ProfileID, &e.MembershipID, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}

// compile-time interface check
var _ LedgerRepository = (*PostgresLedgerRepo)(nil)
