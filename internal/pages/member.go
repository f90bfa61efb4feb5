package pages

import (
	"context"

	"github.com/mmynk/chama/internal/livesync"
	"github.com/mmynk/chama/internal/models"
)

// MemberAPI is the backend surface of the member dashboard.
type MemberAPI interface {
	AccountSummary(ctx context.Context) (*models.AccountSummary, error)
	Announcements(ctx context.Context, groupID int64) ([]models.Announcement, error)
	MyLoans(ctx context.Context) ([]models.Loan, error)
	Transactions(ctx context.Context) ([]models.Transaction, error)
}

// MemberSnapshot is everything the member dashboard shows.
type MemberSnapshot struct {
	Summary       models.AccountSummary `json:"summary"`
	Announcements []models.Announcement `json:"announcements"`
	Loans         []models.Loan         `json:"loans"`
	Transactions  []models.Transaction  `json:"transactions"`
}

// OutstandingLoans sums the accrued balance of every loan.
func (s MemberSnapshot) OutstandingLoans() float64 {
	var total float64
	for _, l := range s.Loans {
		total += l.AccruedBalance
	}
	return total
}

// MemberEvents invalidate the member dashboard.
var MemberEvents = []string{
	models.EventContributionMade,
	models.EventLoanApproved,
	models.EventLoanStatusChanged,
	models.EventWithdrawalUpdated,
	models.EventAnnouncementCreated,
	models.EventAnnouncementDeleted,
	models.EventMemberJoined,
	models.EventMemberLeft,
}

// MemberDashboard is the live dashboard of a regular member.
type MemberDashboard struct {
	*livesync.Synchronizer[MemberSnapshot]

	api     MemberAPI
	groupID int64
}

// NewMemberDashboard creates the page for a member of groupID.
func NewMemberDashboard(api MemberAPI, groupID int64, opts Options) *MemberDashboard {
	p := &MemberDashboard{api: api, groupID: groupID}
	p.Synchronizer = livesync.New(syncConfig(opts, "member_dashboard", cacheKey("member", groupID), p.fetch, MemberEvents))
	return p
}

func (p *MemberDashboard) fetch(ctx context.Context) (MemberSnapshot, error) {
	var snap MemberSnapshot
	var summary *models.AccountSummary

	err := parallel(
		func() (err error) {
			summary, err = p.api.AccountSummary(ctx)
			return err
		},
		func() (err error) {
			snap.Announcements, err = p.api.Announcements(ctx, p.groupID)
			return err
		},
		func() (err error) {
			snap.Loans, err = p.api.MyLoans(ctx)
			return err
		},
		func() (err error) {
			snap.Transactions, err = p.api.Transactions(ctx)
			return err
		},
	)
	if err != nil {
		return MemberSnapshot{}, err
	}
	snap.Summary = *summary
	return snap, nil
}
