package pages

import (
	"context"

	"github.com/mmynk/chama/internal/forms"
	"github.com/mmynk/chama/internal/livesync"
	"github.com/mmynk/chama/internal/models"
)

// AdminAPI is the backend surface of the admin dashboard.
type AdminAPI interface {
	AdminDashboard(ctx context.Context, groupID int64) (*models.GroupSnapshot, error)
	Announcements(ctx context.Context, groupID int64) ([]models.Announcement, error)
	LoanPolicy(ctx context.Context, groupID int64) (*models.LoanPolicy, error)

	ApproveLoan(ctx context.Context, groupID, loanID int64) (*models.MessageResponse, error)
	ApproveWithdrawal(ctx context.Context, withdrawalID int64) (*models.VoteResponse, error)
	RejectWithdrawal(ctx context.Context, withdrawalID int64) (*models.VoteResponse, error)
	CancelWithdrawal(ctx context.Context, withdrawalID int64) (*models.CancelWithdrawalResponse, error)
	ApproveJoinRequest(ctx context.Context, requestID int64) (*models.MessageResponse, error)
	RejectJoinRequest(ctx context.Context, requestID int64) (*models.MessageResponse, error)
	DeleteAnnouncement(ctx context.Context, groupID, announcementID int64) (*models.MessageResponse, error)
}

// AdminEvents invalidate the admin dashboard.
var AdminEvents = models.GroupEvents

// AdminDashboard is the live admin view of one group.
type AdminDashboard struct {
	*livesync.Synchronizer[models.GroupSnapshot]

	api     AdminAPI
	groupID int64
}

// NewAdminDashboard creates the page. Call Start to mount it.
func NewAdminDashboard(api AdminAPI, groupID int64, opts Options) *AdminDashboard {
	p := &AdminDashboard{api: api, groupID: groupID}
	p.Synchronizer = livesync.New(syncConfig(opts, "admin_dashboard", cacheKey("admin", groupID), p.fetch, AdminEvents))
	return p
}

// GroupID returns the administered group.
func (p *AdminDashboard) GroupID() int64 {
	return p.groupID
}

// fetch assembles the dashboard aggregate, the announcements and the loan
// policy into one snapshot.
func (p *AdminDashboard) fetch(ctx context.Context) (models.GroupSnapshot, error) {
	var (
		snap          *models.GroupSnapshot
		announcements []models.Announcement
		policy        *models.LoanPolicy
	)

	err := parallel(
		func() (err error) {
			snap, err = p.api.AdminDashboard(ctx, p.groupID)
			return err
		},
		func() (err error) {
			announcements, err = p.api.Announcements(ctx, p.groupID)
			return err
		},
		func() (err error) {
			policy, err = p.api.LoanPolicy(ctx, p.groupID)
			return err
		},
	)
	if err != nil {
		return models.GroupSnapshot{}, err
	}

	out := *snap
	if len(out.Announcements) == 0 {
		out.Announcements = announcements
	}
	if out.Announcements == nil {
		out.Announcements = []models.Announcement{}
	}
	out.LoanPolicy = policy
	return out, nil
}

// ApproveLoan approves a pending loan and re-fetches.
func (p *AdminDashboard) ApproveLoan(ctx context.Context, loanID int64) (*models.MessageResponse, error) {
	var resp *models.MessageResponse
	err := p.Mutate(ctx, livesync.Mutation{
		Run: func(ctx context.Context) (err error) {
			resp, err = p.api.ApproveLoan(ctx, p.groupID, loanID)
			return err
		},
		Overlay: livesync.Overlay{LoanKey(loanID): MarkApproved},
		Refetch: true,
	})
	return resp, err
}

// VoteWithdrawal casts the admin's own vote. The tally refreshes when the
// backend broadcasts withdrawal_updated.
func (p *AdminDashboard) VoteWithdrawal(ctx context.Context, withdrawalID int64, approve bool) (*models.VoteResponse, error) {
	vote, mark := p.api.RejectWithdrawal, MarkRejected
	if approve {
		vote, mark = p.api.ApproveWithdrawal, MarkApproved
	}

	var resp *models.VoteResponse
	err := p.Mutate(ctx, livesync.Mutation{
		Run: func(ctx context.Context) (err error) {
			resp, err = vote(ctx, withdrawalID)
			return err
		},
		Overlay: livesync.Overlay{VoteKey(withdrawalID): mark},
	})
	return resp, err
}

// CancelWithdrawal cancels a pending withdrawal and re-fetches.
func (p *AdminDashboard) CancelWithdrawal(ctx context.Context, withdrawalID int64) (*models.CancelWithdrawalResponse, error) {
	var resp *models.CancelWithdrawalResponse
	err := p.Mutate(ctx, livesync.Mutation{
		Run: func(ctx context.Context) (err error) {
			resp, err = p.api.CancelWithdrawal(ctx, withdrawalID)
			return err
		},
		Overlay: livesync.Overlay{WithdrawalKey(withdrawalID): MarkCancelled},
		Refetch: true,
	})
	return resp, err
}

// DecideJoinRequest approves or rejects a join request and re-fetches.
func (p *AdminDashboard) DecideJoinRequest(ctx context.Context, requestID int64, approve bool) (*models.MessageResponse, error) {
	decide, mark := p.api.RejectJoinRequest, MarkRejected
	if approve {
		decide, mark = p.api.ApproveJoinRequest, MarkApproved
	}

	var resp *models.MessageResponse
	err := p.Mutate(ctx, livesync.Mutation{
		Run: func(ctx context.Context) (err error) {
			resp, err = decide(ctx, requestID)
			return err
		},
		Overlay: livesync.Overlay{JoinKey(requestID): mark},
		Refetch: true,
	})
	return resp, err
}

// DeleteAnnouncement removes an announcement and re-fetches.
func (p *AdminDashboard) DeleteAnnouncement(ctx context.Context, announcementID int64) error {
	return p.Mutate(ctx, livesync.Mutation{
		Run: func(ctx context.Context) error {
			_, err := p.api.DeleteAnnouncement(ctx, p.groupID, announcementID)
			return err
		},
		Overlay: livesync.Overlay{AnnouncementKey(announcementID): MarkDeleted},
		Refetch: true,
	})
}

// Submitter is any form of package forms.
type Submitter interface {
	Submit(ctx context.Context) error
}

var (
	_ Submitter = (*forms.AnnouncementForm)(nil)
	_ Submitter = (*forms.DailyAmountForm)(nil)
	_ Submitter = (*forms.LoanPolicyForm)(nil)
	_ Submitter = (*forms.WithdrawalForm)(nil)
)

// Submit sends an admin form (announcement, daily amount, loan policy,
// withdrawal) and re-fetches on success.
func (p *AdminDashboard) Submit(ctx context.Context, form Submitter) error {
	return p.Mutate(ctx, livesync.Mutation{Run: form.Submit, Refetch: true})
}

// VisibleWithdrawals returns the pending withdrawals minus those cancelled
// locally.
func VisibleWithdrawals(v livesync.View[models.GroupSnapshot]) []models.PendingWithdrawal {
	out := make([]models.PendingWithdrawal, 0, len(v.Snapshot.PendingWithdrawals))
	for _, w := range v.Snapshot.PendingWithdrawals {
		if v.Overlay.Has(WithdrawalKey(w.ID)) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// VisibleAnnouncements returns the announcements minus those deleted locally.
func VisibleAnnouncements(v livesync.View[models.GroupSnapshot]) []models.Announcement {
	out := make([]models.Announcement, 0, len(v.Snapshot.Announcements))
	for _, a := range v.Snapshot.Announcements {
		if v.Overlay.Has(AnnouncementKey(a.ID)) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// VisibleJoinRequests returns the join requests not yet decided locally.
func VisibleJoinRequests(v livesync.View[models.GroupSnapshot]) []models.JoinRequest {
	out := make([]models.JoinRequest, 0, len(v.Snapshot.PendingJoinRequests))
	for _, r := range v.Snapshot.PendingJoinRequests {
		if v.Overlay.Has(JoinKey(r.ID)) {
			continue
		}
		out = append(out, r)
	}
	return out
}
