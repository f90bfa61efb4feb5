package models

// Group is an entry of the public group directory.
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Member is one row of a group's member list. The contribution fields are
// only populated by the admin dashboard aggregate.
type Member struct {
	ID               int64   `json:"member_id"`
	Name             string  `json:"name"`
	IsAdmin          bool    `json:"is_admin,omitempty"`
	TotalContributed float64 `json:"total_contributed"`
	RequiredSoFar    float64 `json:"required_so_far"`

	// Status is "met" or "pending" relative to RequiredSoFar.
	Status string `json:"status"`
}

// PendingLoan is a loan request awaiting admin approval.
type PendingLoan struct {
	ID         int64   `json:"loan_id"`
	MemberID   int64   `json:"member_id"`
	MemberName string  `json:"member_name"`
	Amount     float64 `json:"amount"`
	Date       string  `json:"date"`
}

// PendingWithdrawal is a withdrawal request awaiting the members' vote.
//
// The canonical identifier is ID. Payloads using `withdrawal_id` are
// normalized by the gateway adapter.
type PendingWithdrawal struct {
	ID            int64   `json:"id"`
	TransactionID int64   `json:"transaction_id,omitempty"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason,omitempty"`
	RequestedBy   string  `json:"requested_by"`
	Approvals     int     `json:"approvals"`
	Rejections    int     `json:"rejections"`
	Status        string  `json:"status,omitempty"`
	Date          string  `json:"date"`
}

// JoinRequest is a pending request from a user to join the group.
type JoinRequest struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
	Date     string `json:"date"`
}

// Announcement is an admin-authored message pinned to a group.
type Announcement struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// LoanPolicy is the group's lending configuration.
type LoanPolicy struct {
	// InterestRate is a percentage, e.g. 10 for 10%.
	InterestRate float64 `json:"interest_rate"`

	// Method is LoanMethodFlat or LoanMethodReducing.
	Method string `json:"method"`
}

// Interest methods of a loan policy.
const (
	LoanMethodFlat     = "flat"
	LoanMethodReducing = "reducing"
)

// GroupSnapshot is the full aggregate state of a group as seen by one
// dashboard. It is replaced, never merged, on every fetch.
type GroupSnapshot struct {
	GroupID                 int64               `json:"group_id"`
	GroupName               string              `json:"group_name"`
	JoinCode                string              `json:"join_code"`
	DailyContributionAmount float64             `json:"daily_contribution_amount"`
	RequiredSoFar           float64             `json:"required_so_far"`
	Month                   string              `json:"month"`
	LoanPolicy              *LoanPolicy         `json:"loan_policy,omitempty"`
	Members                 []Member            `json:"members"`
	PendingLoans            []PendingLoan       `json:"pending_loans"`
	PendingWithdrawals      []PendingWithdrawal `json:"pending_withdrawals"`
	PendingJoinRequests     []JoinRequest       `json:"pending_join_requests"`
	Announcements           []Announcement      `json:"announcements"`
}

// Withdrawal returns the pending withdrawal with the given id.
func (s *GroupSnapshot) Withdrawal(id int64) (PendingWithdrawal, bool) {
	if s == nil {
		return PendingWithdrawal{}, false
	}
	for _, w := range s.PendingWithdrawals {
		if w.ID == id {
			return w, true
		}
	}
	return PendingWithdrawal{}, false
}

// Loan returns the pending loan with the given id.
func (s *GroupSnapshot) Loan(id int64) (PendingLoan, bool) {
	if s == nil {
		return PendingLoan{}, false
	}
	for _, l := range s.PendingLoans {
		if l.ID == id {
			return l, true
		}
	}
	return PendingLoan{}, false
}

// GroupMember is one row of /group/members.
type GroupMember struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
	GroupID int64  `json:"group_id"`
}
