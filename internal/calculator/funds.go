package calculator

import "fmt"

// lendableShare is the fraction of the group's funds that may be lent out.
const lendableShare = 0.4

// GroupLedger aggregates the group-level money movements.
type GroupLedger struct {
	Contributions float64 // all-time credits
	Withdrawals   float64 // approved withdrawals
	Disbursed     float64 // loans disbursed
	Repaid        float64 // loan repayments
}

// AdjustedFunds is the cash the group holds right now.
func (l GroupLedger) AdjustedFunds() float64 {
	return l.Contributions - l.Withdrawals - l.Disbursed + l.Repaid
}

// Share describes one member's stake in the group.
type Share struct {
	// Percentage of all contributions, 0..100.
	Percentage float64

	// LoanLimit is the member's slice of the lendable funds.
	LoanLimit float64
}

// MemberShare computes the member's share and loan limit. A group without
// contributions, a member without contributions or a group without funds
// yields a zero share.
func MemberShare(ledger GroupLedger, memberContributions float64) Share {
	funds := ledger.AdjustedFunds()
	if ledger.Contributions <= 0 || memberContributions <= 0 || funds <= 0 {
		return Share{}
	}

	ratio := memberContributions / ledger.Contributions
	return Share{
		Percentage: Round2(ratio * 100),
		LoanLimit:  Round2(ratio * lendableShare * funds),
	}
}

// LoanLimitError is returned when a loan request exceeds the member's limit.
type LoanLimitError struct {
	Entitlement float64
	Outstanding float64
	Requested   float64
}

func (e *LoanLimitError) Error() string {
	return fmt.Sprintf("loan request exceeds your limit (entitlement %.2f, outstanding %.2f, requested %.2f)",
		e.Entitlement, e.Outstanding, e.Requested)
}

// CheckLoan verifies that a member may borrow amount on top of the loans
// still outstanding.
func CheckLoan(ledger GroupLedger, memberContributions, outstanding, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("invalid amount")
	}
	if ledger.Contributions <= 0 {
		return fmt.Errorf("no contributions in the group yet")
	}
	if ledger.AdjustedFunds() <= 0 {
		return fmt.Errorf("group has insufficient funds to lend")
	}

	share := MemberShare(ledger, memberContributions)
	if outstanding+amount > share.LoanLimit {
		return &LoanLimitError{
			Entitlement: share.LoanLimit,
			Outstanding: outstanding,
			Requested:   amount,
		}
	}
	return nil
}
