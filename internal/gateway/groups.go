package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmynk/chama/internal/models"
)

// CreateGroupResponse is returned by CreateGroup.
type CreateGroupResponse struct {
	Message string `json:"message"`
	GroupID int64  `json:"group_id"`
}

// JoinResponse is returned by JoinGroup and JoinGroupByCode.
type JoinResponse struct {
	Message       string `json:"message"`
	JoinRequestID int64  `json:"join_request_id"`
}

// ListGroups returns the public group directory.
func (c *Client) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := c.do(ctx, call{method: http.MethodGet, path: "/groups", out: &groups}); err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateGroup creates a group administered by the current user.
func (c *Client) CreateGroup(ctx context.Context, name string) (*CreateGroupResponse, error) {
	var resp CreateGroupResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/group/create",
		body:   map[string]string{"group_name": name},
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// JoinGroup files a join request for the group. Admission is decided by the
// group admin.
func (c *Client) JoinGroup(ctx context.Context, groupID int64) (*JoinResponse, error) {
	var resp JoinResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/group/join",
		body:   map[string]int64{"group_id": groupID},
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// JoinGroupByCode files a join request using the group's join code.
func (c *Client) JoinGroupByCode(ctx context.Context, code string) (*JoinResponse, error) {
	var resp JoinResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/group/join/code",
		body:   map[string]string{"join_code": code},
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// LeaveGroup removes the current user from their group.
func (c *Client) LeaveGroup(ctx context.Context) (*models.MessageResponse, error) {
	return c.message(ctx, http.MethodPost, "/group/leave", "", nil)
}

// GroupMembers lists the members of the current user's group.
func (c *Client) GroupMembers(ctx context.Context) ([]models.GroupMember, error) {
	var members []models.GroupMember
	if err := c.do(ctx, call{method: http.MethodGet, path: "/group/members", out: &members}); err != nil {
		return nil, err
	}
	return members, nil
}

// Announcements lists a group's announcements, newest first.
func (c *Client) Announcements(ctx context.Context, groupID int64) ([]models.Announcement, error) {
	var raw []map[string]any
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   fmt.Sprintf("/group/%d/announcements", groupID),
		route:  "/group/{id}/announcements",
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	return adaptAnnouncements(raw), nil
}

// PostAnnouncement publishes an announcement. Admin only.
func (c *Client) PostAnnouncement(ctx context.Context, groupID int64, title, message string) (*models.MessageResponse, error) {
	return c.message(ctx, http.MethodPost,
		fmt.Sprintf("/group/%d/announcements", groupID),
		"/group/{id}/announcements",
		map[string]string{"title": title, "message": message},
	)
}

// DeleteAnnouncement removes an announcement. Admin only.
func (c *Client) DeleteAnnouncement(ctx context.Context, groupID, announcementID int64) (*models.MessageResponse, error) {
	return c.message(ctx, http.MethodDelete,
		fmt.Sprintf("/group/%d/announcements/%d", groupID, announcementID),
		"/group/{id}/announcements/{announcement_id}",
		nil,
	)
}

// message issues a mutating request whose response is a plain `{message}`.
func (c *Client) message(ctx context.Context, method, path, route string, body any) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := c.do(ctx, call{method: method, path: path, route: route, body: body, out: &resp}); err != nil {
		return nil, err
	}
	return &resp, nil
}
