package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mmynk/chama/internal/apperr"
	"github.com/mmynk/chama/internal/models"
)

// AdminDashboard fetches the admin aggregate of a group. Pending withdrawals
// pass through the schema adapter. Announcements and the loan policy are not
// part of this payload; see package pages for the combined snapshot.
func (c *Client) AdminDashboard(ctx context.Context, groupID int64) (*models.GroupSnapshot, error) {
	var wire adminDashboardWire
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   fmt.Sprintf("/admin/groups/%d/admin_dashboard", groupID),
		route:  "/admin/groups/{id}/admin_dashboard",
		out:    &wire,
	})
	if err != nil {
		return nil, err
	}
	return wire.snapshot(), nil
}

// SetDailyAmount sets the daily contribution every member owes.
func (c *Client) SetDailyAmount(ctx context.Context, groupID int64, amount float64) (*models.MessageResponse, error) {
	return c.message(ctx, http.MethodPost,
		fmt.Sprintf("/admin/groups/%d/set_daily_amount", groupID),
		"/admin/groups/{id}/set_daily_amount",
		map[string]float64{"amount": amount},
	)
}

// LoanPolicy returns the group's lending policy, or nil when none is set.
func (c *Client) LoanPolicy(ctx context.Context, groupID int64) (*models.LoanPolicy, error) {
	var policy models.LoanPolicy
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   fmt.Sprintf("/admin/groups/%d/loan_policy", groupID),
		route:  "/admin/groups/{id}/loan_policy",
		out:    &policy,
	})
	if err != nil {
		var remoteErr *apperr.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &policy, nil
}

// CreateLoanPolicy sets the lending policy of a group without one.
func (c *Client) CreateLoanPolicy(ctx context.Context, groupID int64, policy models.LoanPolicy) (*models.LoanPolicy, error) {
	return c.writeLoanPolicy(ctx, http.MethodPost, groupID, policy)
}

// UpdateLoanPolicy replaces an existing lending policy.
func (c *Client) UpdateLoanPolicy(ctx context.Context, groupID int64, policy models.LoanPolicy) (*models.LoanPolicy, error) {
	return c.writeLoanPolicy(ctx, http.MethodPut, groupID, policy)
}

func (c *Client) writeLoanPolicy(ctx context.Context, method string, groupID int64, policy models.LoanPolicy) (*models.LoanPolicy, error) {
	var resp struct {
		models.LoanPolicy
		Message string             `json:"message"`
		Policy  *models.LoanPolicy `json:"policy"`
	}
	err := c.do(ctx, call{
		method: method,
		path:   fmt.Sprintf("/admin/groups/%d/loan_policy", groupID),
		route:  "/admin/groups/{id}/loan_policy",
		body:   policy,
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	switch {
	case resp.Policy != nil:
		return resp.Policy, nil
	case resp.Method != "" || resp.InterestRate != 0:
		return &resp.LoanPolicy, nil
	}
	return &policy, nil
}

// ApproveLoan approves a pending loan. Admin only.
func (c *Client) ApproveLoan(ctx context.Context, groupID, loanID int64) (*models.MessageResponse, error) {
	return c.message(ctx, http.MethodPost,
		fmt.Sprintf("/admin/groups/%d/loans/%d/approve", groupID, loanID),
		"/admin/groups/{id}/loans/{loan_id}/approve",
		nil,
	)
}

// ApproveJoinRequest admits the requesting user into the group.
func (c *Client) ApproveJoinRequest(ctx context.Context, requestID int64) (*models.MessageResponse, error) {
	return c.message(ctx, http.MethodPost,
		fmt.Sprintf("/group/join/approve/%d", requestID),
		"/group/join/approve/{id}",
		nil,
	)
}

// RejectJoinRequest declines a join request.
func (c *Client) RejectJoinRequest(ctx context.Context, requestID int64) (*models.MessageResponse, error) {
	return c.message(ctx, http.MethodPost,
		fmt.Sprintf("/group/join/reject/%d", requestID),
		"/group/join/reject/{id}",
		nil,
	)
}
