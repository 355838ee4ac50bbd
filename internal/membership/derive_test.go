package membership

import (
	"testing"
	"time"

	"github.com/hitoshi/memberport/internal/model"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("failed to parse time %q: %v", value, err)
	}
	return parsed
}

func record(id string, plan model.Plan, status model.MembershipStatus, expiresAt, updatedAt time.Time) *model.Membership {
	return &model.Membership{
		ID:        id,
		ProfileID: "profile-1",
		Plan:      plan,
		Status:    status,
		ExpiresAt: expiresAt,
		UpdatedAt: updatedAt,
	}
}

func TestDerive_NoRecords(t *testing.T) {
	result := Derive(nil, time.Now())

	if result.State != model.MembershipStateUnknown {
		t.Errorf("expected state unknown, got %s", result.State)
	}
	if result.Current != nil {
		t.Errorf("expected nil current membership, got %+v", result.Current)
	}
}

func TestDerive_AllExpired(t *testing.T) {
	asOf := mustTime(t, "2026-06-01T00:00:00Z")
	records := []*model.Membership{
		record("m1", model.PlanBasic, model.MembershipActive,
			mustTime(t, "2026-01-01T00:00:00Z"), mustTime(t, "2025-12-01T00:00:00Z")),
		record("m2", model.PlanPremium, model.MembershipInactive,
			mustTime(t, "2026-12-31T00:00:00Z"), mustTime(t, "2026-01-01T00:00:00Z")),
	}

	result := Derive(records, asOf)

	if result.State != model.MembershipStateNone {
		t.Errorf("expected state none, got %s", result.State)
	}
	if result.Current != nil {
		t.Errorf("expected nil current membership, got %+v", result.Current)
	}
}

func TestDerive_SingleActive(t *testing.T) {
	asOf := mustTime(t, "2026-06-01T00:00:00Z")
	records := []*model.Membership{
		record("m1", model.PlanPremium, model.MembershipActive,
			mustTime(t, "2026-12-31T00:00:00Z"), mustTime(t, "2026-01-01T00:00:00Z")),
	}

	result := Derive(records, asOf)

	if result.State != model.MembershipStateActive {
		t.Fatalf("expected state active, got %s", result.State)
	}
	if result.Current == nil || result.Current.ID != "m1" {
		t.Errorf("expected current membership m1, got %+v", result.Current)
	}
}

// 期限ちょうどは有効、1マイクロ秒過ぎたら無効。
func TestDerive_ExpiryBoundary(t *testing.T) {
	expiresAt := mustTime(t, "2026-06-01T00:00:00Z")
	records := []*model.Membership{
		record("m1", model.PlanBasic, model.MembershipActive,
			expiresAt, mustTime(t, "2026-01-01T00:00:00Z")),
	}

	t.Run("期限時刻ちょうどは有効", func(t *testing.T) {
		result := Derive(records, expiresAt)
		if result.State != model.MembershipStateActive {
			t.Errorf("expected state active at exact expiry, got %s", result.State)
		}
	})

	t.Run("期限時刻を1マイクロ秒過ぎたら無効", func(t *testing.T) {
		result := Derive(records, expiresAt.Add(time.Microsecond))
		if result.State != model.MembershipStateNone {
			t.Errorf("expected state none just past expiry, got %s", result.State)
		}
	})
}

// 有効レコードが複数ある場合はupdated_atが最新のものを選ぶ。
func TestDerive_PrefersLatestUpdatedAt(t *testing.T) {
	asOf := mustTime(t, "2026-06-01T00:00:00Z")
	records := []*model.Membership{
		record("older", model.PlanUltimate, model.MembershipActive,
			mustTime(t, "2026-12-31T00:00:00Z"), mustTime(t, "2026-01-01T00:00:00Z")),
		record("newer", model.PlanBasic, model.MembershipActive,
			mustTime(t, "2026-08-01T00:00:00Z"), mustTime(t, "2026-03-01T00:00:00Z")),
	}

	result := Derive(records, asOf)

	if result.State != model.MembershipStateActive {
		t.Fatalf("expected state active, got %s", result.State)
	}
	if result.Current.ID != "newer" {
		t.Errorf("expected membership with latest updated_at, got %s", result.Current.ID)
	}
}

// updated_atが同時刻の場合はexpires_atが遅いもの、さらに同じ場合はプラン階級が高いもの。
func TestDerive_TieBreaks(t *testing.T) {
	asOf := mustTime(t, "2026-06-01T00:00:00Z")
	updatedAt := mustTime(t, "2026-01-01T00:00:00Z")

	t.Run("expires_atが遅い方を選ぶ", func(t *testing.T) {
		records := []*model.Membership{
			record("shorter", model.PlanUltimate, model.MembershipActive,
				mustTime(t, "2026-08-01T00:00:00Z"), updatedAt),
			record("longer", model.PlanBasic, model.MembershipActive,
				mustTime(t, "2026-12-31T00:00:00Z"), updatedAt),
		}

		result := Derive(records, asOf)
		if result.Current.ID != "longer" {
			t.Errorf("expected membership with later expires_at, got %s", result.Current.ID)
		}
	})

	t.Run("プラン階級が高い方を選ぶ", func(t *testing.T) {
		expiresAt := mustTime(t, "2026-12-31T00:00:00Z")
		records := []*model.Membership{
			record("basic", model.PlanBasic, model.MembershipActive, expiresAt, updatedAt),
			record("ultimate", model.PlanUltimate, model.MembershipActive, expiresAt, updatedAt),
			record("premium", model.PlanPremium, model.MembershipActive, expiresAt, updatedAt),
		}

		result := Derive(records, asOf)
		if result.Current.ID != "ultimate" {
			t.Errorf("expected highest plan rank, got %s", result.Current.ID)
		}
	})
}

// pendingレコードは選択対象にならない。
func TestDerive_IgnoresPending(t *testing.T) {
	asOf := mustTime(t, "2026-06-01T00:00:00Z")
	records := []*model.Membership{
		record("m1", model.PlanPremium, model.MembershipPending,
			mustTime(t, "2026-12-31T00:00:00Z"), mustTime(t, "2026-05-01T00:00:00Z")),
	}

	result := Derive(records, asOf)

	if result.State != model.MembershipStateNone {
		t.Errorf("expected state none, got %s", result.State)
	}
}

// 同じ入力に対して必ず同じ結果を返す（入力順にも依存しない）。
func TestDerive_Deterministic(t *testing.T) {
	asOf := mustTime(t, "2026-06-01T00:00:00Z")
	updatedAt := mustTime(t, "2026-01-01T00:00:00Z")
	expiresAt := mustTime(t, "2026-12-31T00:00:00Z")

	forward := []*model.Membership{
		record("basic", model.PlanBasic, model.MembershipActive, expiresAt, updatedAt),
		record("premium", model.PlanPremium, model.MembershipActive, expiresAt, updatedAt),
	}
	reversed := []*model.Membership{forward[1], forward[0]}

	first := Derive(forward, asOf)
	second := Derive(reversed, asOf)

	if first.Current.ID != second.Current.ID {
		t.Errorf("derivation depends on input order: %s vs %s", first.Current.ID, second.Current.ID)
	}

	for i := 0; i < 10; i++ {
		repeat := Derive(forward, asOf)
		if repeat.Current.ID != first.Current.ID {
			t.Fatalf("derivation is not deterministic: %s vs %s", repeat.Current.ID, first.Current.ID)
		}
	}
}
