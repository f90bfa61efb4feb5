package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/chama/internal/auth"
	"github.com/mmynk/chama/internal/calculator"
	"github.com/mmynk/chama/internal/models"
)

// Lifecycle states of loans, withdrawals and join requests.
const (
	statusPending   = "pending"
	statusApproved  = "approved"
	statusRejected  = "rejected"
	statusCancelled = "cancelled"
	statusDisbursed = "disbursed"
	statusRepaid    = "repaid"
)

// Transaction reasons, as the production ledger records them.
const (
	reasonContribution = "contribution"
	reasonWithdrawal   = "withdrawal"
	reasonDisbursement = "loan_disbursement"
	reasonRepayment    = "loan_repayment"
)

var errAccountNotFound = errors.New("account not found")

type group struct {
	ID       int64
	Name     string
	JoinCode string
	AdminID  int64
	Daily    float64
	Policy   *models.LoanPolicy
}

type joinRequest struct {
	ID      int64
	UserID  int64
	GroupID int64
	Status  string
	Date    time.Time
}

type withdrawal struct {
	ID            int64
	GroupID       int64
	UserID        int64
	TransactionID int64
	Amount        float64
	Reason        string
	Status        string
	Votes         map[int64]string
	Date          time.Time
}

func (w *withdrawal) tally() (approvals, rejections int) {
	for _, v := range w.Votes {
		if v == calculator.VoteApproved {
			approvals++
		} else {
			rejections++
		}
	}
	return approvals, rejections
}

type loan struct {
	ID        int64
	GroupID   int64
	UserID    int64
	Principal float64
	Repaid    float64
	Rate      float64
	Method    string
	Status    string
	Requested time.Time
	Disbursed time.Time
}

type transaction struct {
	models.Transaction
	UserID  int64
	GroupID int64
	at      time.Time
}

type notification struct {
	models.Notification
	UserID int64
}

// apiError is answered as `{"error": msg}` with the given status.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func errorf(status int, format string, args ...any) *apiError {
	return &apiError{status: status, msg: fmt.Sprintf(format, args...)}
}

// State is the in-memory database of the development backend. Every
// exported method is safe for concurrent use.
type State struct {
	mu  sync.Mutex
	now func() time.Time
	seq int64

	accounts      map[int64]*auth.Account
	emails        map[string]int64
	groups        map[int64]*group
	joins         map[int64]*joinRequest
	withdrawals   map[int64]*withdrawal
	loans         map[int64]*loan
	txs           []transaction
	notifications []*notification
	announcements map[int64][]models.Announcement
	revoked       map[string]struct{}
}

var _ auth.UserStorage = (*State)(nil)

// NewState returns an empty database.
func NewState() *State {
	return &State{
		now:           time.Now,
		accounts:      make(map[int64]*auth.Account),
		emails:        make(map[string]int64),
		groups:        make(map[int64]*group),
		joins:         make(map[int64]*joinRequest),
		withdrawals:   make(map[int64]*withdrawal),
		loans:         make(map[int64]*loan),
		announcements: make(map[int64][]models.Announcement),
		revoked:       make(map[string]struct{}),
	}
}

// CreateAccount stores a new account and assigns its id.
func (s *State) CreateAccount(_ context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(account.Email)
	if _, exists := s.emails[key]; exists {
		return auth.ErrEmailExists
	}
	account.ID = s.nextID()
	account.IsVerified = true
	stored := *account
	s.accounts[account.ID] = &stored
	s.emails[key] = account.ID
	return nil
}

// GetAccountByEmail returns a copy of the account registered with email.
func (s *State) GetAccountByEmail(_ context.Context, email string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, errAccountNotFound
	}
	account := *s.accounts[id]
	return &account, nil
}

// User returns the current profile of a user.
func (s *State) User(id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.account(id)
	if err != nil {
		return nil, err
	}
	user := s.profile(account)
	return &user, nil
}

// Revoke marks a token as logged out.
func (s *State) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = struct{}{}
}

// Revoked reports whether token was logged out.
func (s *State) Revoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[token]
	return ok
}

// IsMember reports whether userID belongs to groupID.
func (s *State) IsMember(userID, groupID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.member(userID, groupID)
}

// tx runs fn under the state lock.
func (s *State) tx(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// SetClock replaces the time source.
func (s *State) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// The helpers below expect s.mu to be held.

func (s *State) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *State) member(userID, groupID int64) bool {
	account, ok := s.accounts[userID]
	return ok && groupID != 0 && account.GroupID == groupID
}

func (s *State) account(id int64) (*auth.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, errorf(http.StatusNotFound, "User not found")
	}
	return account, nil
}

// memberOf returns the caller's account and group.
func (s *State) memberOf(userID int64) (*auth.Account, *group, error) {
	account, err := s.account(userID)
	if err != nil {
		return nil, nil, err
	}
	g, ok := s.groups[account.GroupID]
	if !ok {
		return nil, nil, errorf(http.StatusBadRequest, "You are not in a group")
	}
	return account, g, nil
}

// adminOf checks that userID administers groupID.
func (s *State) adminOf(userID, groupID int64) (*group, error) {
	g, ok := s.groups[groupID]
	if !ok {
		return nil, errorf(http.StatusNotFound, "Group not found")
	}
	if g.AdminID != userID {
		return nil, errorf(http.StatusForbidden, "Unauthorized")
	}
	return g, nil
}

func (s *State) profile(account *auth.Account) models.User {
	user := account.User
	user.IsAdmin = false
	user.GroupName = ""
	if g, ok := s.groups[account.GroupID]; ok {
		user.GroupName = g.Name
		user.IsAdmin = g.AdminID == account.ID
	}
	start := monthStart(s.now())
	user.MonthlyTotal = s.contributed(account.ID, account.GroupID, start)
	return user
}

func (s *State) members(groupID int64) []*auth.Account {
	var out []*auth.Account
	for _, a := range s.accounts {
		if a.GroupID == groupID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b *auth.Account) int { return int(a.ID - b.ID) })
	return out
}

func (s *State) record(userID, groupID int64, amount float64, typ, reason string) int64 {
	now := s.now()
	tx := transaction{
		Transaction: models.Transaction{
			ID:     s.nextID(),
			Amount: amount,
			Type:   typ,
			Reason: reason,
			Date:   now.Format(time.RFC3339),
		},
		UserID:  userID,
		GroupID: groupID,
		at:      now,
	}
	s.txs = append(s.txs, tx)
	return tx.ID
}

// contributed sums the credits of userID in groupID since the given time.
func (s *State) contributed(userID, groupID int64, since time.Time) float64 {
	var total float64
	for _, tx := range s.txs {
		if tx.GroupID == groupID && tx.UserID == userID &&
			tx.Type == models.TransactionCredit && tx.Reason == reasonContribution && !tx.at.Before(since) {
			total += tx.Amount
		}
	}
	return total
}

func (s *State) ledger(groupID int64) calculator.GroupLedger {
	var l calculator.GroupLedger
	for _, tx := range s.txs {
		if tx.GroupID != groupID {
			continue
		}
		switch tx.Reason {
		case reasonContribution:
			l.Contributions += tx.Amount
		case reasonWithdrawal:
			l.Withdrawals += tx.Amount
		case reasonDisbursement:
			l.Disbursed += tx.Amount
		case reasonRepayment:
			l.Repaid += tx.Amount
		}
	}
	return l
}

// outstanding is the unpaid principal of the user's disbursed loans.
func (s *State) outstanding(userID int64) float64 {
	var total float64
	for _, l := range s.loans {
		if l.UserID == userID && l.Status == statusDisbursed {
			total += l.Principal - l.Repaid
		}
	}
	return total
}

func (s *State) notify(userID, groupID int64, typ, message string) {
	s.notifications = append(s.notifications, &notification{
		Notification: models.Notification{
			ID:      s.nextID(),
			GroupID: groupID,
			Message: message,
			Type:    typ,
			Date:    s.now().Format(time.RFC3339),
		},
		UserID: userID,
	})
}

func (s *State) notifyGroup(groupID, except int64, typ, message string) {
	for _, m := range s.members(groupID) {
		if m.ID != except {
			s.notify(m.ID, groupID, typ, message)
		}
	}
}

func newJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// monthsBetween counts whole months elapsed since from.
func monthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()-from.Month())
	if to.Day() < from.Day() {
		months--
	}
	return max(months, 0)
}
