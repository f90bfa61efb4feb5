package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/mmynk/chama/internal/calculator"
	"github.com/mmynk/chama/internal/middleware"
	"github.com/mmynk/chama/internal/models"
)

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := positiveAmount(body, "amount")
	if err != nil {
		writeError(w, err)
		return
	}

	err = s.commit(func(emit func(int64, string, any)) error {
		account, g, err := s.state.memberOf(userID)
		if err != nil {
			return err
		}
		txID := s.state.record(account.ID, g.ID, amount, models.TransactionCredit, reasonContribution)
		s.state.notify(account.ID, g.ID, "Contribution", fmt.Sprintf("Your contribution of ksh %.2f was received", amount))
		emit(g.ID, models.EventContributionMade, map[string]any{"member_id": account.ID, "amount": amount, "transaction_id": txID})
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("Contribution recorded", "user_id", userID, "amount", amount)
	writeMessage(w, http.StatusOK, "Contribution successful!")
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := positiveAmount(body, "amount")
	if err != nil {
		writeError(w, err)
		return
	}

	var loanID int64
	err = s.commit(func(emit func(int64, string, any)) error {
		account, g, err := s.state.memberOf(userID)
		if err != nil {
			return err
		}

		ledger := s.state.ledger(g.ID)
		contributed := s.state.contributed(account.ID, g.ID, time.Time{})
		if err := calculator.CheckLoan(ledger, contributed, s.state.outstanding(account.ID), amount); err != nil {
			var limitErr *calculator.LoanLimitError
			if errors.As(err, &limitErr) {
				return errorf(http.StatusBadRequest, "Loan request exceeds your limit")
			}
			return errorf(http.StatusBadRequest, "%s", capitalize(err.Error()))
		}

		l := &loan{
			ID:        s.state.nextID(),
			GroupID:   g.ID,
			UserID:    account.ID,
			Principal: amount,
			Method:    calculator.MethodFlat,
			Status:    statusPending,
			Requested: s.state.now(),
		}
		if g.Policy != nil {
			l.Rate, l.Method = g.Policy.InterestRate, g.Policy.Method
		}
		s.state.loans[l.ID] = l
		loanID = l.ID

		s.state.notify(g.AdminID, g.ID, "Loan request", fmt.Sprintf("%s requested a loan of ksh %.2f", account.Name, amount))
		emit(g.ID, models.EventLoanStatusChanged, map[string]any{"loan_id": l.ID, "status": l.Status})
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("Loan requested", "user_id", userID, "loan_id", loanID, "amount", amount)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Borrowing successful! Awaiting admin approval",
		"loan_id": loanID,
	})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := positiveAmount(body, "amount")
	if err != nil {
		writeError(w, err)
		return
	}

	err = s.commit(func(emit func(int64, string, any)) error {
		account, g, err := s.state.memberOf(userID)
		if err != nil {
			return err
		}

		var open []*loan
		for _, l := range s.state.loans {
			if l.UserID == account.ID && l.Status == statusDisbursed {
				open = append(open, l)
			}
		}
		if len(open) == 0 {
			return errorf(http.StatusBadRequest, "You have no outstanding loans")
		}
		slices.SortFunc(open, func(a, b *loan) int { return a.Disbursed.Compare(b.Disbursed) })

		// Oldest loan first.
		left := amount
		for _, l := range open {
			if left <= 0 {
				break
			}
			pay := min(left, l.Principal-l.Repaid)
			l.Repaid += pay
			left -= pay
			if l.Repaid >= l.Principal {
				l.Status = statusRepaid
			}
			emit(g.ID, models.EventLoanStatusChanged, map[string]any{"loan_id": l.ID, "status": l.Status})
		}
		s.state.record(account.ID, g.ID, amount-left, models.TransactionCredit, reasonRepayment)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("Loan repayment recorded", "user_id", userID, "amount", amount)
	writeMessage(w, http.StatusOK, "Loan repayment successful!")
}

// loanView renders a loan the way /loans/my reports it.
func (s *State) loanView(l *loan) models.Loan {
	out := models.Loan{
		ID:                l.ID,
		Principal:         l.Principal,
		InterestRate:      l.Rate,
		InterestFrequency: "monthly",
		Outstanding:       l.Principal - l.Repaid,
	}
	if l.Status == statusPending {
		return out
	}
	out.DisbursedOn = l.Disbursed.Format(time.RFC3339)
	periods := monthsBetween(l.Disbursed, s.now())
	accrued, err := calculator.AccruedBalance(l.Principal, l.Repaid, l.Rate, periods, l.Method)
	if err != nil {
		accrued = out.Outstanding
	}
	out.AccruedBalance = accrued
	return out
}

func (s *Server) handleMyLoans(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	loans := []models.Loan{}
	_ = s.state.tx(func() error {
		for _, l := range s.state.loans {
			if l.UserID == userID {
				loans = append(loans, s.state.loanView(l))
			}
		}
		return nil
	})
	slices.SortFunc(loans, func(a, b models.Loan) int { return int(a.ID - b.ID) })
	writeJSON(w, http.StatusOK, map[string]any{"loans": loans})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	txs := []models.Transaction{}
	_ = s.state.tx(func() error {
		for i := len(s.state.txs) - 1; i >= 0; i-- {
			if tx := s.state.txs[i]; tx.UserID == userID {
				txs = append(txs, tx.Transaction)
			}
		}
		return nil
	})
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := positiveAmount(body, "amount")
	if err != nil {
		writeError(w, err)
		return
	}
	reason := strings.TrimSpace(stringField(body, "reason"))
	if reason == "" {
		writeError(w, errorf(http.StatusBadRequest, "Reason is required"))
		return
	}

	var wd *withdrawal
	err = s.commit(func(emit func(int64, string, any)) error {
		account, g, err := s.state.memberOf(userID)
		if err != nil {
			return err
		}
		if amount > s.state.ledger(g.ID).AdjustedFunds() {
			return errorf(http.StatusBadRequest, "Insufficient group funds")
		}

		wd = &withdrawal{
			ID:      s.state.nextID(),
			GroupID: g.ID,
			UserID:  account.ID,
			Amount:  amount,
			Reason:  reason,
			Status:  statusPending,
			Votes:   make(map[int64]string),
			Date:    s.state.now(),
		}
		s.state.withdrawals[wd.ID] = wd
		s.state.notifyGroup(g.ID, account.ID, "Withdrawal request",
			fmt.Sprintf("%s requested a withdrawal of ksh %.2f: %s", account.Name, amount, reason))
		emit(g.ID, models.EventWithdrawalCreated, map[string]any{"withdrawal_id": wd.ID, "amount": amount})
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("Withdrawal requested", "user_id", userID, "withdrawal_id", wd.ID, "amount", amount)
	writeJSON(w, http.StatusOK, models.WithdrawalRequestResponse{
		Message:      "Withdrawal request submitted",
		WithdrawalID: wd.ID,
	})
}

func (s *Server) handleVoteWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	withdrawalID := pathID(r, "id")
	vote := calculator.VoteRejected
	if pathVar(r, "verb") == "approve" {
		vote = calculator.VoteApproved
	}

	var resp models.VoteResponse
	err := s.commit(func(emit func(int64, string, any)) error {
		wd, ok := s.state.withdrawals[withdrawalID]
		if !ok {
			return errorf(http.StatusNotFound, "Withdrawal request not found")
		}
		if !s.state.member(userID, wd.GroupID) {
			return errorf(http.StatusForbidden, "Unauthorized")
		}
		if wd.Status != statusPending {
			return errorf(http.StatusBadRequest, "Withdrawal request already processed")
		}
		if _, voted := wd.Votes[userID]; voted {
			return errorf(http.StatusBadRequest, "You have already voted")
		}
		wd.Votes[userID] = vote

		approvals, rejections := wd.tally()
		switch calculator.VoteOutcome(approvals, rejections, len(s.state.members(wd.GroupID))) {
		case calculator.VoteApproved:
			if wd.Amount > s.state.ledger(wd.GroupID).AdjustedFunds() {
				delete(wd.Votes, userID)
				return errorf(http.StatusBadRequest, "Insufficient group funds")
			}
			wd.Status = statusApproved
			wd.TransactionID = s.state.record(wd.UserID, wd.GroupID, wd.Amount, models.TransactionDebit, reasonWithdrawal)
			s.state.notify(wd.UserID, wd.GroupID, "Withdrawal request approval",
				fmt.Sprintf("The withdrawal request of ksh %.2f has been approved", wd.Amount))
		case calculator.VoteRejected:
			wd.Status = statusRejected
			s.state.notify(wd.UserID, wd.GroupID, "Withdrawal request rejection",
				fmt.Sprintf("The withdrawal request of ksh %.2f was rejected", wd.Amount))
		}

		resp = models.VoteResponse{
			Message:        "Your approval has been recorded",
			TotalApprovals: approvals,
			TotalRejection: rejections,
			Status:         wd.Status,
		}
		if vote == calculator.VoteRejected {
			resp.Message = "Your rejection has been recorded"
		}
		emit(wd.GroupID, models.EventWithdrawalUpdated, map[string]any{
			"withdrawal_id":    wd.ID,
			"total_approvals":  approvals,
			"total_rejections": rejections,
			"status":           wd.Status,
		})
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("Withdrawal vote recorded", "user_id", userID, "withdrawal_id", withdrawalID, "vote", vote)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	withdrawalID := pathID(r, "id")

	var resp models.CancelWithdrawalResponse
	err := s.commit(func(emit func(int64, string, any)) error {
		wd, ok := s.state.withdrawals[withdrawalID]
		if !ok {
			return errorf(http.StatusNotFound, "Withdrawal request not found")
		}
		g := s.state.groups[wd.GroupID]
		if wd.UserID != userID && (g == nil || g.AdminID != userID) {
			return errorf(http.StatusForbidden, "Unauthorized")
		}
		if wd.Status != statusPending {
			return errorf(http.StatusBadRequest, "Only pending withdrawals can be cancelled")
		}
		wd.Status = statusCancelled

		requester, _ := s.state.account(wd.UserID)
		resp = models.CancelWithdrawalResponse{Message: "Withdrawal request cancelled", Amount: wd.Amount}
		if requester != nil {
			resp.RequestedBy = requester.Name
		}
		emit(wd.GroupID, models.EventWithdrawalUpdated, map[string]any{"withdrawal_id": wd.ID, "status": wd.Status})
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// withdrawalWire is a pending withdrawal in the production wire format,
// keyed by withdrawal_id.
type withdrawalWire struct {
	WithdrawalID  int64   `json:"withdrawal_id"`
	TransactionID int64   `json:"transaction_id,omitempty"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
	RequestedBy   string  `json:"requested_by"`
	Approvals     int     `json:"approvals"`
	Rejections    int     `json:"rejections"`
	Status        string  `json:"status"`
	Date          string  `json:"date"`
}

// pendingWithdrawals lists the group's open withdrawals, oldest first.
func (s *State) pendingWithdrawals(groupID int64) []withdrawalWire {
	out := []withdrawalWire{}
	for _, wd := range s.withdrawals {
		if wd.GroupID != groupID || wd.Status != statusPending {
			continue
		}
		approvals, rejections := wd.tally()
		var requestedBy string
		if a, ok := s.accounts[wd.UserID]; ok {
			requestedBy = a.Name
		}
		out = append(out, withdrawalWire{
			WithdrawalID:  wd.ID,
			TransactionID: wd.TransactionID,
			Amount:        wd.Amount,
			Reason:        wd.Reason,
			RequestedBy:   requestedBy,
			Approvals:     approvals,
			Rejections:    rejections,
			Status:        wd.Status,
			Date:          wd.Date.Format(time.RFC3339),
		})
	}
	slices.SortFunc(out, func(a, b withdrawalWire) int { return int(a.WithdrawalID - b.WithdrawalID) })
	return out
}

func (s *Server) handleGroupWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var list []withdrawalWire
	err := s.state.tx(func() error {
		_, g, err := s.state.memberOf(userID)
		if err != nil {
			return err
		}
		list = s.state.pendingWithdrawals(g.ID)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(list) == 0 {
		writeMessage(w, http.StatusOK, "No pending withdrawals")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func capitalize(msg string) string {
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
