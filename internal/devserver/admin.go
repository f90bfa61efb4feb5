package devserver

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/mmynk/chama/internal/calculator"
	"github.com/mmynk/chama/internal/middleware"
	"github.com/mmynk/chama/internal/models"
)

// dashboardWire is the admin aggregate in the production wire format.
type dashboardWire struct {
	models.GroupSnapshot
	PendingWithdrawals []withdrawalWire `json:"pending_withdrawals"`
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID := pathID(r, "id")

	var out dashboardWire
	err := s.state.tx(func() error {
		g, err := s.state.adminOf(userID, groupID)
		if err != nil {
			return err
		}
		now := s.state.now()
		required := calculator.RequiredSoFar(g.Daily, now.Day())

		snap := models.GroupSnapshot{
			GroupID:                 g.ID,
			GroupName:               g.Name,
			JoinCode:                g.JoinCode,
			DailyContributionAmount: g.Daily,
			RequiredSoFar:           required,
			Month:                   now.Format("January 2006"),
			LoanPolicy:              g.Policy,
			Members:                 []models.Member{},
			PendingLoans:            []models.PendingLoan{},
			PendingJoinRequests:     []models.JoinRequest{},
			Announcements:           []models.Announcement{},
		}

		for _, m := range s.state.members(g.ID) {
			total := s.state.contributed(m.ID, g.ID, monthStart(now))
			snap.Members = append(snap.Members, models.Member{
				ID:               m.ID,
				Name:             m.Name,
				IsAdmin:          m.ID == g.AdminID,
				TotalContributed: total,
				RequiredSoFar:    required,
				Status:           calculator.ContributionStatus(required, total),
			})
		}

		for _, l := range s.state.loans {
			if l.GroupID != g.ID || l.Status != statusPending {
				continue
			}
			var name string
			if a, ok := s.state.accounts[l.UserID]; ok {
				name = a.Name
			}
			snap.PendingLoans = append(snap.PendingLoans, models.PendingLoan{
				ID:         l.ID,
				MemberID:   l.UserID,
				MemberName: name,
				Amount:     l.Principal,
				Date:       l.Requested.Format(time.RFC3339),
			})
		}
		slices.SortFunc(snap.PendingLoans, func(a, b models.PendingLoan) int { return int(a.ID - b.ID) })

		for _, jr := range s.state.joins {
			if jr.GroupID != g.ID || jr.Status != statusPending {
				continue
			}
			var name string
			if a, ok := s.state.accounts[jr.UserID]; ok {
				name = a.Name
			}
			snap.PendingJoinRequests = append(snap.PendingJoinRequests, models.JoinRequest{
				ID:       jr.ID,
				UserID:   jr.UserID,
				UserName: name,
				Date:     jr.Date.Format(time.RFC3339),
			})
		}
		slices.SortFunc(snap.PendingJoinRequests, func(a, b models.JoinRequest) int { return int(a.ID - b.ID) })

		out = dashboardWire{GroupSnapshot: snap, PendingWithdrawals: s.state.pendingWithdrawals(g.ID)}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetDailyAmount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID := pathID(r, "id")
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

	err = s.state.tx(func() error {
		g, err := s.state.adminOf(userID, groupID)
		if err != nil {
			return err
		}
		g.Daily = amount
		s.state.notifyGroup(g.ID, userID, "Daily amount", fmt.Sprintf("The daily contribution is now ksh %.2f", amount))
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("Daily amount set", "group_id", groupID, "amount", amount)
	writeMessage(w, http.StatusOK, fmt.Sprintf("Daily contribution amount set to %.2f", amount))
}

func (s *Server) handleGetLoanPolicy(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID := pathID(r, "id")

	var policy *models.LoanPolicy
	err := s.state.tx(func() error {
		g, err := s.state.adminOf(userID, groupID)
		if err != nil {
			return err
		}
		if g.Policy == nil {
			return errorf(http.StatusNotFound, "No loan policy set")
		}
		p := *g.Policy
		policy = &p
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// handleWriteLoanPolicy creates (POST) or replaces (PUT) the policy.
func (s *Server) handleWriteLoanPolicy(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID := pathID(r, "id")
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rate, err := cast.ToFloat64E(body["interest_rate"])
	if err != nil || rate < 0 || rate > 100 {
		writeError(w, errorf(http.StatusBadRequest, "Interest rate must be between 0 and 100"))
		return
	}
	method := strings.ToLower(strings.TrimSpace(stringField(body, "method")))
	if method != calculator.MethodFlat && method != calculator.MethodReducing {
		writeError(w, errorf(http.StatusBadRequest, "Method must be flat or reducing"))
		return
	}
	policy := models.LoanPolicy{InterestRate: rate, Method: method}
	create := r.Method == http.MethodPost

	err = s.state.tx(func() error {
		g, err := s.state.adminOf(userID, groupID)
		if err != nil {
			return err
		}
		switch {
		case create && g.Policy != nil:
			return errorf(http.StatusBadRequest, "Loan policy already exists")
		case !create && g.Policy == nil:
			return errorf(http.StatusNotFound, "No loan policy set")
		}
		g.Policy = &policy
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status, message := http.StatusOK, "Loan policy updated"
	if create {
		status, message = http.StatusCreated, "Loan policy created"
	}
	writeJSON(w, status, map[string]any{"message": message, "policy": policy})
}

func (s *Server) handleApproveLoan(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID := pathID(r, "id")
	loanID := pathID(r, "loan_id")

	err := s.commit(func(emit func(int64, string, any)) error {
		g, err := s.state.adminOf(userID, groupID)
		if err != nil {
			return err
		}
		l, ok := s.state.loans[loanID]
		if !ok || l.GroupID != g.ID {
			return errorf(http.StatusNotFound, "Loan not found")
		}
		if l.Status != statusPending {
			return errorf(http.StatusBadRequest, "Loan already processed")
		}
		if l.Principal > s.state.ledger(g.ID).AdjustedFunds() {
			return errorf(http.StatusBadRequest, "Group has insufficient funds to lend")
		}

		l.Status = statusDisbursed
		l.Disbursed = s.state.now()
		s.state.record(l.UserID, g.ID, l.Principal, models.TransactionDebit, reasonDisbursement)
		s.state.notify(l.UserID, g.ID, "Loan approval", fmt.Sprintf("Your loan of ksh %.2f has been approved", l.Principal))
		emit(g.ID, models.EventLoanApproved, map[string]any{"loan_id": l.ID, "member_id": l.UserID})
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("Loan approved", "group_id", groupID, "loan_id", loanID)
	writeMessage(w, http.StatusOK, fmt.Sprintf("Loan %d approved", loanID))
}
