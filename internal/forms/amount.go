package forms

import (
	"context"

	"github.com/mmynk/chama/internal/models"
)

// AmountFunc submits a single amount, e.g. gateway.Client.Contribute.
type AmountFunc func(ctx context.Context, amount float64) (*models.MessageResponse, error)

// AmountForm is a one-field money form: contribute, borrow or repay.
type AmountForm struct {
	// Amount is the raw input text.
	Amount string
	Banner Banner

	submit  AmountFunc
	success string
	failure string
}

// Finance is the gateway surface used by the amount forms.
type Finance interface {
	Contribute(ctx context.Context, amount float64) (*models.MessageResponse, error)
	Borrow(ctx context.Context, amount float64) (*models.MessageResponse, error)
	Repay(ctx context.Context, amount float64) (*models.MessageResponse, error)
}

// NewContributionForm posts to /contribute.
func NewContributionForm(api Finance) *AmountForm {
	return &AmountForm{submit: api.Contribute, success: "Contribution successful!", failure: "Contribution failed"}
}

// NewBorrowForm posts to /borrow.
func NewBorrowForm(api Finance) *AmountForm {
	return &AmountForm{submit: api.Borrow, success: "Borrowing successful!", failure: "Borrowing failed"}
}

// NewRepayForm posts to /repay.
func NewRepayForm(api Finance) *AmountForm {
	return &AmountForm{submit: api.Repay, success: "Loan repayment successful!", failure: "Repayment failed"}
}

// Submit validates and sends the amount.
func (f *AmountForm) Submit(ctx context.Context) error {
	f.Banner = Banner{}

	amount, err := ParseAmount("amount", f.Amount)
	if err != nil {
		f.Banner = validationBanner(err)
		return err
	}

	resp, err := f.submit(ctx, amount)
	if err != nil {
		f.Banner = errorBanner(err, f.failure)
		return err
	}

	var msg string
	if resp != nil {
		msg = resp.Message
	}
	f.Banner = successBanner(msg, f.success)
	f.Amount = ""
	return nil
}
