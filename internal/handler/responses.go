package handler

import (
	"time"

	"github.com/hitoshi/memberport/internal/model"
)

// profileJSON はプロフィールのAPIレスポンス表現。
type profileJSON struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	AlternateEmail  string `json:"alternate_email"`
	DiscordNickname string `json:"discord_nickname"`
	GGPokerUsername string `json:"ggpoker_username"`
	CreatedAt       string `json:"created_at"`
}

// membershipJSON はメンバーシップレコードのAPIレスポンス表現。
type membershipJSON struct {
	ID              string `json:"id"`
	Plan            string `json:"plan"`
	Status          string `json:"status"`
	StartDate       string `json:"start_date"`
	ExpiresAt       string `json:"expires_at"`
	EVA             bool   `json:"eva"`
	DiscordNickname string `json:"discord_nickname"`
	GGPokerUsername string `json:"ggpoker_username"`
}

// membershipStateJSON は導出済みメンバーシップ状態のAPIレスポンス表現。
// currentはstateがactiveの場合のみ非null。
type membershipStateJSON struct {
	State   string          `json:"state"`
	Current *membershipJSON `json:"current,omitempty"`
}

// ledgerEntryJSON は取引履歴のAPIレスポンス表現。金額はセント単位の整数。
type ledgerEntryJSON struct {
	ID              string `json:"id"`
	TransactionDate string `json:"transaction_date"`
	Description     string `json:"description"`
	AmountCents     int64  `json:"amount_cents"`
	Type            string `json:"type"`
	Category        string `json:"category"`
	PaymentMethod   string `json:"payment_method"`
}

func profileResponse(p *model.Profile) profileJSON {
	return profileJSON{
		ID:              p.ID,
		Email:           p.Email,
		Name:            p.Name,
		Username:        p.Username,
		AlternateEmail:  p.AlternateEmail,
		DiscordNickname: p.DiscordNickname,
		GGPokerUsername: p.GGPokerUsername,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
}

func membershipResponse(m *model.Membership) membershipJSON {
	return membershipJSON{
		ID:              m.ID,
		Plan:            string(m.Plan),
		Status:          string(m.Status),
		StartDate:       m.StartDate.Format(time.RFC3339),
		ExpiresAt:       m.ExpiresAt.Format(time.RFC3339),
		EVA:             m.EVA,
		DiscordNickname: m.DiscordNickname,
		GGPokerUsername: m.GGPokerUsername,
	}
}

func membershipStateResponse(d model.DerivedMembership) membershipStateJSON {
	resp := membershipStateJSON{State: string(d.State)}
	if d.Current != nil {
		current := membershipResponse(d.Current)
		resp.Current = &current
	}
	return resp
}

func membershipListResponse(records []*model.Membership) []membershipJSON {
	out := make([]membershipJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, membershipResponse(rec))
	}
	return out
}

func ledgerListResponse(entries []*model.LedgerEntry) []ledgerEntryJSON {
	out := make([]ledgerEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntryJSON{
			ID:              e.ID,
			TransactionDate: e.TransactionDate.Format(time.RFC3339),
			Description:     e.Description,
			AmountCents:     e.AmountCents,
			Type:            e.Type,
			Category:        e.Category,
			PaymentMethod:   e.PaymentMethod,
		})
	}
	return out
}
