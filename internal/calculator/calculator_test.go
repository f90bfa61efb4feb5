package calculator

import (
	"errors"
	"math"
	"testing"
)

func TestContributionTargets(t *testing.T) {
	tests := []struct {
		name        string
		daily       float64
		day         int
		contributed float64
		wantReq     float64
		wantPending float64
		wantStatus  string
	}{
		{
			name:        "behind on day ten",
			daily:       100,
			day:         10,
			contributed: 600,
			wantReq:     1000,
			wantPending: 400,
			wantStatus:  StatusPending,
		},
		{
			name:        "ahead of target",
			daily:       50,
			day:         3,
			contributed: 200,
			wantReq:     150,
			wantPending: 0,
			wantStatus:  StatusMet,
		},
		{
			name:        "no daily amount set",
			daily:       0,
			day:         15,
			contributed: 0,
			wantReq:     0,
			wantPending: 0,
			wantStatus:  StatusMet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := RequiredSoFar(tt.daily, tt.day)
			if math.Abs(req-tt.wantReq) > 0.01 {
				t.Errorf("RequiredSoFar() = %v, want %v", req, tt.wantReq)
			}
			if got := PendingAmount(req, tt.contributed); math.Abs(got-tt.wantPending) > 0.01 {
				t.Errorf("PendingAmount() = %v, want %v", got, tt.wantPending)
			}
			if got := ContributionStatus(req, tt.contributed); got != tt.wantStatus {
				t.Errorf("ContributionStatus() = %q, want %q", got, tt.wantStatus)
			}
		})
	}
}

func TestMemberShare(t *testing.T) {
	tests := []struct {
		name      string
		ledger    GroupLedger
		member    float64
		wantPct   float64
		wantLimit float64
	}{
		{
			name:      "quarter of a fresh group",
			ledger:    GroupLedger{Contributions: 10000},
			member:    2500,
			wantPct:   25,
			wantLimit: 1000, // 0.25 * 0.4 * 10000
		},
		{
			name:      "funds reduced by loans and withdrawals",
			ledger:    GroupLedger{Contributions: 10000, Withdrawals: 2000, Disbursed: 3000, Repaid: 1000},
			member:    5000,
			wantPct:   50,
			wantLimit: 1200, // 0.5 * 0.4 * 6000
		},
		{
			name:   "member without contributions",
			ledger: GroupLedger{Contributions: 10000},
			member: 0,
		},
		{
			name:   "group without funds",
			ledger: GroupLedger{Contributions: 1000, Withdrawals: 1000},
			member: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MemberShare(tt.ledger, tt.member)
			if math.Abs(got.Percentage-tt.wantPct) > 0.01 {
				t.Errorf("Percentage = %v, want %v", got.Percentage, tt.wantPct)
			}
			if math.Abs(got.LoanLimit-tt.wantLimit) > 0.01 {
				t.Errorf("LoanLimit = %v, want %v", got.LoanLimit, tt.wantLimit)
			}
		})
	}
}

func TestCheckLoan(t *testing.T) {
	ledger := GroupLedger{Contributions: 10000}

	if err := CheckLoan(ledger, 2500, 0, 1000); err != nil {
		t.Errorf("loan at the limit should pass, got %v", err)
	}

	err := CheckLoan(ledger, 2500, 500, 600)
	var limitErr *LoanLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LoanLimitError, got %v", err)
	}
	if limitErr.Entitlement != 1000 || limitErr.Outstanding != 500 {
		t.Errorf("unexpected limit error: %+v", limitErr)
	}

	if err := CheckLoan(GroupLedger{}, 0, 0, 10); err == nil {
		t.Error("expected error for a group without contributions")
	}
	if err := CheckLoan(ledger, 2500, 0, 0); err == nil {
		t.Error("expected error for a zero amount")
	}
}

func TestVoteOutcome(t *testing.T) {
	tests := []struct {
		approvals, rejections, members int
		want                           string
	}{
		{approvals: 2, rejections: 0, members: 4, want: VotePending},
		{approvals: 3, rejections: 0, members: 4, want: VoteApproved},
		{approvals: 2, rejections: 0, members: 3, want: VoteApproved},
		{approvals: 0, rejections: 2, members: 3, want: VoteRejected},
		{approvals: 1, rejections: 1, members: 3, want: VotePending},
		{approvals: 1, rejections: 0, members: 1, want: VoteApproved},
		{approvals: 0, rejections: 0, members: 0, want: VotePending},
	}

	for _, tt := range tests {
		if got := VoteOutcome(tt.approvals, tt.rejections, tt.members); got != tt.want {
			t.Errorf("VoteOutcome(%d, %d, %d) = %q, want %q", tt.approvals, tt.rejections, tt.members, got, tt.want)
		}
	}
}

func TestAccruedBalance(t *testing.T) {
	tests := []struct {
		name      string
		principal float64
		repaid    float64
		rate      float64
		periods   int
		method    string
		want      float64
		wantErr   bool
	}{
		{name: "flat", principal: 1000, rate: 10, periods: 2, method: MethodFlat, want: 1200},
		{name: "reducing compounds", principal: 1000, rate: 10, periods: 2, method: MethodReducing, want: 1210},
		{name: "repayment deducted", principal: 1000, repaid: 300, rate: 10, periods: 1, method: MethodFlat, want: 800},
		{name: "overpaid clamps to zero", principal: 100, repaid: 500, rate: 5, periods: 1, method: MethodFlat, want: 0},
		{name: "no periods", principal: 1000, rate: 10, periods: 0, method: MethodReducing, want: 1000},
		{name: "unknown method", principal: 1000, rate: 10, periods: 1, method: "monthly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AccruedBalance(tt.principal, tt.repaid, tt.rate, tt.periods, tt.method)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AccruedBalance() error = %v, wantErr %v", err, tt.wantErr)
			}
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("AccruedBalance() = %v, want %v", got, tt.want)
			}
		})
	}
}
