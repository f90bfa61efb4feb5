package gateway

import (
	"github.com/spf13/cast"

	"github.com/mmynk/chama/internal/models"
)

// The backend is not consistent about identifier keys and encodings: pending
// withdrawals arrive as `id` from some endpoints and `withdrawal_id` from
// others, numbers are sometimes quoted, and list endpoints answer with a
// `{message}` object when empty. The functions below decode those payloads
// loosely and produce the canonical models.

// adminDashboardWire decodes the admin dashboard, deferring pending
// withdrawals to the adapter. The outer field shadows the embedded one.
type adminDashboardWire struct {
	models.GroupSnapshot
	RawWithdrawals []map[string]any `json:"pending_withdrawals"`
}

func (w *adminDashboardWire) snapshot() *models.GroupSnapshot {
	snap := w.GroupSnapshot
	snap.PendingWithdrawals = adaptWithdrawals(w.RawWithdrawals)
	if snap.Members == nil {
		snap.Members = []models.Member{}
	}
	if snap.PendingLoans == nil {
		snap.PendingLoans = []models.PendingLoan{}
	}
	if snap.PendingJoinRequests == nil {
		snap.PendingJoinRequests = []models.JoinRequest{}
	}
	return &snap
}

// firstOf returns the first present key of m.
func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func adaptWithdrawal(m map[string]any) models.PendingWithdrawal {
	return models.PendingWithdrawal{
		ID:            cast.ToInt64(firstOf(m, "id", "withdrawal_id")),
		TransactionID: cast.ToInt64(m["transaction_id"]),
		Amount:        cast.ToFloat64(m["amount"]),
		Reason:        cast.ToString(m["reason"]),
		RequestedBy:   cast.ToString(firstOf(m, "requested_by", "requester")),
		Approvals:     cast.ToInt(firstOf(m, "approvals", "total_approvals")),
		Rejections:    cast.ToInt(firstOf(m, "rejections", "total_rejections")),
		Status:        cast.ToString(m["status"]),
		Date:          cast.ToString(firstOf(m, "date", "created_at")),
	}
}

func adaptWithdrawals(raw []map[string]any) []models.PendingWithdrawal {
	out := make([]models.PendingWithdrawal, 0, len(raw))
	for _, m := range raw {
		w := adaptWithdrawal(m)
		if w.ID == 0 {
			continue
		}
		out = append(out, w)
	}
	return out
}

// adaptWithdrawalList accepts a bare list, a `{withdrawals: [...]}` envelope
// or a `{message}` placeholder for "none".
func adaptWithdrawalList(raw any) []models.PendingWithdrawal {
	switch v := raw.(type) {
	case []any:
		return adaptWithdrawals(toMaps(v))
	case map[string]any:
		if list, ok := v["withdrawals"].([]any); ok {
			return adaptWithdrawals(toMaps(list))
		}
	}
	return []models.PendingWithdrawal{}
}

func adaptAnnouncements(raw []map[string]any) []models.Announcement {
	out := make([]models.Announcement, 0, len(raw))
	for _, m := range raw {
		out = append(out, models.Announcement{
			ID:        cast.ToInt64(m["id"]),
			Title:     cast.ToString(m["title"]),
			Message:   cast.ToString(m["message"]),
			CreatedAt: cast.ToString(firstOf(m, "created_at", "date")),
		})
	}
	return out
}

func adaptLoans(raw []map[string]any) []models.Loan {
	out := make([]models.Loan, 0, len(raw))
	for _, m := range raw {
		out = append(out, models.Loan{
			ID:                cast.ToInt64(firstOf(m, "loan_id", "id")),
			Principal:         cast.ToFloat64(firstOf(m, "principal", "amount")),
			InterestRate:      cast.ToFloat64(m["interest_rate"]),
			InterestFrequency: cast.ToString(m["interest_frequency"]),
			DisbursedOn:       cast.ToString(firstOf(m, "disbursed_on", "date")),
			Outstanding:       cast.ToFloat64(m["outstanding"]),
			AccruedBalance:    cast.ToFloat64(m["accrued_balance"]),
		})
	}
	return out
}

func toMaps(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
