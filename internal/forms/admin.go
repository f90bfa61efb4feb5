package forms

import (
	"context"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/mmynk/chama/internal/apperr"
	"github.com/mmynk/chama/internal/models"
)

// WithdrawalAPI requests a withdrawal from the group account.
type WithdrawalAPI interface {
	RequestWithdrawal(ctx context.Context, amount float64, reason string) (*models.WithdrawalRequestResponse, error)
}

// WithdrawalForm opens a withdrawal for the members to vote on.
type WithdrawalForm struct {
	Amount string
	Reason string
	Banner Banner

	// Created is the id of the last withdrawal opened through this form.
	Created int64

	api WithdrawalAPI
}

// NewWithdrawalForm creates a withdrawal form.
func NewWithdrawalForm(api WithdrawalAPI) *WithdrawalForm {
	return &WithdrawalForm{api: api}
}

// Submit validates and sends the request.
func (f *WithdrawalForm) Submit(ctx context.Context) error {
	f.Banner = Banner{}

	amount, err := ParseAmount("amount", f.Amount)
	if err != nil {
		f.Banner = validationBanner(err)
		return err
	}
	reason := strings.TrimSpace(f.Reason)
	if reason == "" {
		err := apperr.Validation("reason", "Reason is required")
		f.Banner = validationBanner(err)
		return err
	}

	resp, err := f.api.RequestWithdrawal(ctx, amount, reason)
	if err != nil {
		f.Banner = errorBanner(err, "Failed to submit withdrawal request")
		return err
	}

	f.Created = resp.WithdrawalID
	f.Banner = successBanner(resp.Message, "Withdrawal request submitted")
	f.Amount, f.Reason = "", ""
	return nil
}

// AnnouncementAPI publishes announcements.
type AnnouncementAPI interface {
	PostAnnouncement(ctx context.Context, groupID int64, title, message string) (*models.MessageResponse, error)
}

// AnnouncementForm posts an announcement to the admin's group.
type AnnouncementForm struct {
	Title   string
	Message string
	Banner  Banner

	groupID int64
	api     AnnouncementAPI
}

// NewAnnouncementForm creates an announcement form for groupID.
func NewAnnouncementForm(api AnnouncementAPI, groupID int64) *AnnouncementForm {
	return &AnnouncementForm{api: api, groupID: groupID}
}

// Submit validates and posts the announcement.
func (f *AnnouncementForm) Submit(ctx context.Context) error {
	f.Banner = Banner{}

	title, message := strings.TrimSpace(f.Title), strings.TrimSpace(f.Message)
	if title == "" || message == "" {
		err := apperr.Validation("message", "Title and message are required.")
		f.Banner = validationBanner(err)
		return err
	}

	resp, err := f.api.PostAnnouncement(ctx, f.groupID, title, message)
	if err != nil {
		f.Banner = errorBanner(err, "Failed to post announcement")
		return err
	}

	f.Banner = successBanner(resp.Message, "Announcement posted")
	f.Title, f.Message = "", ""
	return nil
}

// DailyAmountAPI sets the group's daily contribution.
type DailyAmountAPI interface {
	SetDailyAmount(ctx context.Context, groupID int64, amount float64) (*models.MessageResponse, error)
}

// DailyAmountForm edits the group's daily contribution. It is a settings
// form: on success the input keeps the value now in effect.
type DailyAmountForm struct {
	Amount string
	Banner Banner

	groupID int64
	api     DailyAmountAPI
}

// NewDailyAmountForm creates the form prefilled with current.
func NewDailyAmountForm(api DailyAmountAPI, groupID int64, current float64) *DailyAmountForm {
	f := &DailyAmountForm{api: api, groupID: groupID}
	if current > 0 {
		f.Amount = cast.ToString(current)
	}
	return f
}

// Submit validates and saves the amount.
func (f *DailyAmountForm) Submit(ctx context.Context) error {
	f.Banner = Banner{}

	amount, err := ParseAmount("amount", f.Amount)
	if err != nil {
		f.Banner = validationBanner(err)
		return err
	}

	resp, err := f.api.SetDailyAmount(ctx, f.groupID, amount)
	if err != nil {
		f.Banner = errorBanner(err, "Failed to update daily amount")
		return err
	}

	f.Banner = successBanner(resp.Message, "Daily amount updated")
	f.Amount = cast.ToString(amount)
	return nil
}

// LoanPolicyAPI saves a group's lending policy.
type LoanPolicyAPI interface {
	CreateLoanPolicy(ctx context.Context, groupID int64, policy models.LoanPolicy) (*models.LoanPolicy, error)
	UpdateLoanPolicy(ctx context.Context, groupID int64, policy models.LoanPolicy) (*models.LoanPolicy, error)
}

// LoanPolicyForm edits the lending policy. Like DailyAmountForm it keeps the
// saved values after success.
type LoanPolicyForm struct {
	InterestRate string
	Method       string
	Banner       Banner

	// Saved is the policy in effect, nil until one exists.
	Saved *models.LoanPolicy

	groupID int64
	api     LoanPolicyAPI
}

// NewLoanPolicyForm creates the form from the current policy, which may be nil.
func NewLoanPolicyForm(api LoanPolicyAPI, groupID int64, current *models.LoanPolicy) *LoanPolicyForm {
	f := &LoanPolicyForm{api: api, groupID: groupID, Method: models.LoanMethodFlat, Saved: current}
	if current != nil {
		f.InterestRate = cast.ToString(current.InterestRate)
		if current.Method != "" {
			f.Method = current.Method
		}
	}
	return f
}

// Submit validates and saves the policy, creating it when none exists yet.
func (f *LoanPolicyForm) Submit(ctx context.Context) error {
	f.Banner = Banner{}

	rate, err := cast.ToFloat64E(strings.TrimSpace(f.InterestRate))
	if err != nil || strings.TrimSpace(f.InterestRate) == "" || math.IsNaN(rate) || rate < 0 || rate > 100 {
		err := apperr.Validation("interest_rate", "Interest rate must be between 0 and 100.")
		f.Banner = validationBanner(err)
		return err
	}
	if f.Method != models.LoanMethodFlat && f.Method != models.LoanMethodReducing {
		err := apperr.Validation("method", "Choose a flat or reducing balance method.")
		f.Banner = validationBanner(err)
		return err
	}

	policy := models.LoanPolicy{InterestRate: rate, Method: f.Method}
	save := f.api.UpdateLoanPolicy
	if f.Saved == nil {
		save = f.api.CreateLoanPolicy
	}

	saved, err := save(ctx, f.groupID, policy)
	if err != nil {
		f.Banner = errorBanner(err, "Failed to update loan policy")
		return err
	}

	f.Saved = saved
	f.Banner = successBanner("", "Loan policy updated successfully")
	return nil
}
