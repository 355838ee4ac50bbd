package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/memberport/internal/model"
	"github.com/hitoshi/memberport/internal/repository"
)

// Service はメンバーシップ状態の照会サービス。
type Service struct {
	memberships repository.MembershipRepository
}

// NewService はServiceを生成する。
func NewService(memberships repository.MembershipRepository) *Service {
	return &Service{memberships: memberships}
}

// DeriveStatus は指定プロフィールの現在のメンバーシップ状態を導出する。
// 導出は必ず生のレコードに対して行い、表示用の合成ビューには依存しない
// （ビューは古い可能性があるため）。
func (s *Service) DeriveStatus(ctx context.Context, profileID string, asOf time.Time) (model.DerivedMembership, error) {
	records, err := s.memberships.ListByProfileID(ctx, profileID)
	if err != nil {
		return model.DerivedMembership{}, fmt.Errorf("failed to fetch membership records: %w", err)
	}

	return Derive(records, asOf), nil
}

// History は指定プロフィールの全メンバーシップ履歴をcreated_at降順で返す。
func (s *Service) History(ctx context.Context, profileID string) ([]*model.Membership, error) {
	records, err := s.memberships.ListByProfileID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch membership records: %w", err)
	}
	return records, nil
}
