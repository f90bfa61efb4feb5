package models

// Transaction types as reported by the backend.
const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

// Transaction is one ledger entry of the current user.
type Transaction struct {
	ID     int64   `json:"id"`
	Amount float64 `json:"amount"`
	Type   string  `json:"type"`
	Reason string  `json:"reason"`
	Date   string  `json:"date"`
}

// Loan is one of the current user's loans as reported by /loans/my.
type Loan struct {
	ID                int64   `json:"loan_id"`
	Principal         float64 `json:"principal"`
	InterestRate      float64 `json:"interest_rate"`
	InterestFrequency string  `json:"interest_frequency"`
	DisbursedOn       string  `json:"disbursed_on"`
	Outstanding       float64 `json:"outstanding"`

	// AccruedBalance includes compound interest up to now.
	AccruedBalance float64 `json:"accrued_balance"`
}

// AccountSummary is the per-user dashboard aggregate of the current month.
type AccountSummary struct {
	GroupName                 string  `json:"group_name"`
	Month                     string  `json:"month"`
	DailyAmount               float64 `json:"daily_amount"`
	MonthlyContributed        float64 `json:"monthly_contributed"`
	RequiredSoFar             float64 `json:"required_so_far"`
	PendingAmount             float64 `json:"pending_amount"`
	OutstandingLoan           float64 `json:"outstanding_loan"`
	GroupTotalContributions   float64 `json:"group_total_contributions"`
	GroupMonthlyContributions float64 `json:"group_monthly_contributions"`
	AdjustedGroupFunds        float64 `json:"adjusted_group_funds"`
	UserTotalContributions    float64 `json:"user_total_contributions"`
	PercentageShare           float64 `json:"percentage_share"`
	LoanLimit                 float64 `json:"loan_limit"`
}

// MessageResponse is the generic `{message}` body of mutating endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// VoteResponse is returned by the withdrawal approve/reject endpoints.
type VoteResponse struct {
	Message        string `json:"message"`
	TotalApprovals int    `json:"total_approvals"`
	TotalRejection int    `json:"total_rejections"`
	Status         string `json:"status"`
}

// WithdrawalRequestResponse is returned by /withdrawal/request.
type WithdrawalRequestResponse struct {
	Message       string `json:"message"`
	WithdrawalID  int64  `json:"withdrawal_id"`
	TransactionID int64  `json:"transaction_id"`
}

// CancelWithdrawalResponse is returned by /withdrawals/{id}/cancel.
type CancelWithdrawalResponse struct {
	Message     string  `json:"message"`
	Amount      float64 `json:"amount"`
	RequestedBy string  `json:"requested_by"`
}
