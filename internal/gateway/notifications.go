package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmynk/chama/internal/models"
)

// Notifications lists the current user's notifications.
func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	var ns []models.Notification
	if err := c.do(ctx, call{method: http.MethodGet, path: "/notifications", out: &ns}); err != nil {
		return nil, err
	}
	return ns, nil
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (*models.MessageResponse, error) {
	return c.message(ctx, http.MethodPut, "/notifications/mark-all-read", "", nil)
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) (*models.MessageResponse, error) {
	return c.message(ctx, http.MethodPut,
		fmt.Sprintf("/notifications/%d/mark-read", id),
		"/notifications/{id}/mark-read",
		nil,
	)
}

// UnreadNotificationCount returns the number of unread notifications.
func (c *Client) UnreadNotificationCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/notifications/unread-count", out: &resp}); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
