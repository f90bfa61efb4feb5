package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmynk/chama/internal/models"
)

// Contribute pays amount into the group's account.
func (c *Client) Contribute(ctx context.Context, amount float64) (*models.MessageResponse, error) {
	return c.message(ctx, http.MethodPost, "/contribute", "", map[string]float64{"amount": amount})
}

// Borrow requests a loan of amount.
func (c *Client) Borrow(ctx context.Context, amount float64) (*models.MessageResponse, error) {
	return c.message(ctx, http.MethodPost, "/borrow", "", map[string]float64{"amount": amount})
}

// Repay pays amount towards the current user's outstanding loans.
func (c *Client) Repay(ctx context.Context, amount float64) (*models.MessageResponse, error) {
	return c.message(ctx, http.MethodPost, "/repay", "", map[string]float64{"amount": amount})
}

// RequestWithdrawal opens a withdrawal from the group account. The members
// then vote on it.
func (c *Client) RequestWithdrawal(ctx context.Context, amount float64, reason string) (*models.WithdrawalRequestResponse, error) {
	var resp models.WithdrawalRequestResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/withdrawal/request",
		body: map[string]any{
			"amount": amount,
			"reason": reason,
		},
		out: &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ApproveWithdrawal casts an approving vote.
func (c *Client) ApproveWithdrawal(ctx context.Context, withdrawalID int64) (*models.VoteResponse, error) {
	return c.vote(ctx, "approve", withdrawalID)
}

// RejectWithdrawal casts a rejecting vote.
func (c *Client) RejectWithdrawal(ctx context.Context, withdrawalID int64) (*models.VoteResponse, error) {
	return c.vote(ctx, "reject", withdrawalID)
}

func (c *Client) vote(ctx context.Context, verb string, withdrawalID int64) (*models.VoteResponse, error) {
	var resp models.VoteResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   fmt.Sprintf("/withdrawal/%s/%d", verb, withdrawalID),
		route:  "/withdrawal/" + verb + "/{id}",
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelWithdrawal withdraws a pending request before the vote closes.
func (c *Client) CancelWithdrawal(ctx context.Context, withdrawalID int64) (*models.CancelWithdrawalResponse, error) {
	var resp models.CancelWithdrawalResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   fmt.Sprintf("/withdrawals/%d/cancel", withdrawalID),
		route:  "/withdrawals/{id}/cancel",
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// MyLoans lists the current user's loans.
func (c *Client) MyLoans(ctx context.Context) ([]models.Loan, error) {
	var resp struct {
		Loans []map[string]any `json:"loans"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/loans/my", out: &resp}); err != nil {
		return nil, err
	}
	return adaptLoans(resp.Loans), nil
}

// Transactions lists the current user's ledger, newest first.
func (c *Client) Transactions(ctx context.Context) ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := c.do(ctx, call{method: http.MethodGet, path: "/transactions/user", out: &txs}); err != nil {
		return nil, err
	}
	return txs, nil
}

// GroupWithdrawals lists every withdrawal request of the admin's group.
func (c *Client) GroupWithdrawals(ctx context.Context) ([]models.PendingWithdrawal, error) {
	var raw any
	if err := c.do(ctx, call{method: http.MethodGet, path: "/withdrawals/group", out: &raw}); err != nil {
		return nil, err
	}
	return adaptWithdrawalList(raw), nil
}
