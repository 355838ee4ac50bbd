// Package admin は管理者向けの会員照会サービスを提供する。読み取り専用。
// 会員データの正規の書き込み元は外部POSシステムであり、このポータルからの
// 書き込み経路は提供しない。
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/memberport/internal/membership"
	"github.com/hitoshi/memberport/internal/model"
	"github.com/hitoshi/memberport/internal/repository"
)

// ledgerDisplayLimit は詳細画面に表示する取引履歴の最大件数。
const ledgerDisplayLimit = 100

// SearchResult は会員検索の1ページ分の結果を表す。
type SearchResult struct {
	Profiles []*model.Profile
	Page     int
	PageSize int
	HasNext  bool
}

// ProfileDetail は管理者向けの会員詳細を表す。
type ProfileDetail struct {
	Profile    *model.Profile
	Membership model.DerivedMembership
	History    []*model.Membership
	Ledger     []*model.LedgerEntry
}

// Service は管理者向けの会員照会サービス。
type Service struct {
	profiles    repository.ProfileRepository
	memberships repository.MembershipRepository
	ledger      repository.LedgerRepository
	sanitizer   *bluemonday.Policy
	pageSize    int
	now         func() time.Time
}

// NewService はServiceを生成する。pageSizeが0以下の場合は50を使う。
func NewService(
	profiles repository.ProfileRepository,
	memberships repository.MembershipRepository,
	ledger repository.LedgerRepository,
	pageSize int,
) *Service {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Service{
		profiles:    profiles,
		memberships: memberships,
		ledger:      ledger,
		sanitizer:   bluemonday.StrictPolicy(),
		pageSize:    pageSize,
		now:         time.Now,
	}
}

// SearchProfiles はemailの部分一致（大文字小文字無視）で会員を検索する。
// pageは1始まり。毎ページ独立したクエリなので、中断しても任意のページから再開できる。
// 空の検索キーワードは全件スキャンになるため拒否する。
func (s *Service) SearchProfiles(ctx context.Context, emailFragment string, page int) (*SearchResult, error) {
	emailFragment = strings.TrimSpace(emailFragment)
	if emailFragment == "" {
		return nil, model.NewInvalidSearchQueryError()
	}
	if page < 1 {
		page = 1
	}

	// 次ページ有無の判定のため1件余分に取得する
	offset := (page - 1) * s.pageSize
	profiles, err := s.profiles.SearchByEmail(ctx, emailFragment, s.pageSize+1, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}

	hasNext := len(profiles) > s.pageSize
	if hasNext {
		profiles = profiles[:s.pageSize]
	}

	return &SearchResult{
		Profiles: profiles,
		Page:     page,
		PageSize: s.pageSize,
		HasNext:  hasNext,
	}, nil
}

// GetProfileDetail は指定会員の詳細（プロフィール、導出済みメンバーシップ状態、
// メンバーシップ履歴、取引履歴）を返す。
//
// メンバーシップのnotesはPOS起票の自由記述であり、管理画面のXSSを防ぐため
// 表示前にHTMLタグを全て除去する。
func (s *Service) GetProfileDetail(ctx context.Context, profileID string) (*ProfileDetail, error) {
	prof, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if prof == nil {
		return nil, model.NewProfileNotFoundError(profileID)
	}

	records, err := s.memberships.ListByProfileID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch membership records: %w", err)
	}
	for _, rec := range records {
		rec.Notes = s.sanitizer.Sanitize(rec.Notes)
	}

	entries, err := s.ledger.ListByProfileID(ctx, profileID, ledgerDisplayLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger entries: %w", err)
	}

	return &ProfileDetail{
		Profile:    prof,
		Membership: membership.Derive(records, s.now()),
		History:    records,
		Ledger:     entries,
	}, nil
}
