package gateway

import (
	"context"
	"net/http"

	"github.com/mmynk/chama/internal/models"
)

// Login exchanges email and password for a bearer token.
// A 401 maps to ReasonInvalidCredentials, a 403 to ReasonUnverifiedAccount.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/login",
		body:   map[string]string{"email": email, "password": password},
		out:    &resp,
		public: true,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account. The backend normally answers with a message
// asking the user to verify their email; AccessToken is then empty.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/register",
		body:   req,
		out:    &resp,
		public: true,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GoogleLogin exchanges a Google ID token for a bearer token.
func (c *Client) GoogleLogin(ctx context.Context, idToken string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/google",
		body:   map[string]string{"token": idToken},
		out:    &resp,
		public: true,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout tells the backend to drop the current token.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/logout"})
}
