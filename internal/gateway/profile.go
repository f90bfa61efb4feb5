package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/mmynk/chama/internal/models"
)

// GetProfile returns the current user's profile.
func (c *Client) GetProfile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/user/profile", out: &user}); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile changes the editable profile fields and returns the result.
func (c *Client) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error) {
	var resp struct {
		Message string       `json:"message"`
		User    *models.User `json:"user"`
	}
	err := c.do(ctx, call{method: http.MethodPut, path: "/user/profile", body: upd, out: &resp})
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return c.GetProfile(ctx)
	}
	return resp.User, nil
}

// DeleteAccount permanently deletes the current user.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodDelete, path: "/user/delete"})
}

// UploadProfilePhoto uploads an avatar as multipart form field "photo" and
// returns the new photo URL.
func (c *Client) UploadProfilePhoto(ctx context.Context, filename string, photo io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, photo); err != nil {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	var resp struct {
		ProfilePhoto string `json:"profile_photo"`
		PhotoURL     string `json:"photo_url"`
	}
	err = c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/user/profile/photo",
		rawBody:     &buf,
		contentType: mw.FormDataContentType(),
		out:         &resp,
	})
	if err != nil {
		return "", err
	}
	if resp.ProfilePhoto != "" {
		return resp.ProfilePhoto, nil
	}
	return resp.PhotoURL, nil
}

// ChangePassword replaces the current password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/change_password",
		body:   map[string]string{"old_password": current, "new_password": next},
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// AccountSummary returns the member dashboard aggregate.
func (c *Client) AccountSummary(ctx context.Context) (*models.AccountSummary, error) {
	var summary models.AccountSummary
	if err := c.do(ctx, call{method: http.MethodGet, path: "/user/account_summary", out: &summary}); err != nil {
		return nil, err
	}
	return &summary, nil
}
