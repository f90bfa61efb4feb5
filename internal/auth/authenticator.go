package auth

import (
	"context"

	"github.com/mmynk/chama/internal/models"
)

// Authenticator defines the interface for account authentication.
// The development backend uses passwords; other methods (Google ID tokens)
// can be plugged in without changing the HTTP handlers.
type Authenticator interface {
	// Register creates a new account from the registration form.
	Register(ctx context.Context, req models.RegisterRequest) (*Account, error)

	// Authenticate verifies the credential and returns the account if successful.
	Authenticate(ctx context.Context, email, credential string) (*Account, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
