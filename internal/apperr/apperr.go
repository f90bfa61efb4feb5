// Package apperr defines the client's error taxonomy and converts errors into
// the short messages shown in banners and toasts.
//
// Every failure a view can observe falls into one Kind:
//
//	KindAuth        expired or invalid credential, forces logout
//	KindValidation  rejected locally before any network call
//	KindRemote      non-2xx response, message shown verbatim
//	KindNetwork     request never completed
//	KindRealtime    push subscription dropped
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for presentation.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindValidation
	KindRemote
	KindNetwork
	KindRealtime
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindRemote:
		return "remote"
	case KindNetwork:
		return "network"
	case KindRealtime:
		return "realtime"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// AuthReason names why authentication failed.
type AuthReason string

const (
	ReasonInvalidCredentials AuthReason = "invalid_credentials"
	ReasonUnverifiedAccount  AuthReason = "unverified_account"
	ReasonNetwork            AuthReason = "network"
	ReasonExpired            AuthReason = "expired"
)

// ErrRealtimeDisconnected is reported when the push subscription drops.
var ErrRealtimeDisconnected = errors.New("realtime subscription lost")

// AuthError is returned when the credential is rejected or missing.
type AuthError struct {
	Reason  AuthReason
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("auth: %s: %v", msg, e.Cause)
	}
	return "auth: " + msg
}

func (e *AuthError) Unwrap() error { return e.Cause }

// ValidationError is produced by client-side form validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RemoteError is a non-2xx response from the backend.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Status, e.Message)
}

// NetworkError wraps a transport failure: the request never completed.
type NetworkError struct {
	Op    string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// Validation is a shorthand constructor for ValidationError.
func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// KindOf classifies err. A nil error is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var authErr *AuthError
	var validationErr *ValidationError
	var remoteErr *RemoteError
	var networkErr *NetworkError

	switch {
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &remoteErr):
		return KindRemote
	case errors.Is(err, ErrRealtimeDisconnected):
		return KindRealtime
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &networkErr), errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	}
	return KindUnknown
}

// IsAuth reports whether err should force a logout.
func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}

// UserMessage converts err into the text shown to the user. Remote and
// validation messages pass through verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var authErr *AuthError
	var validationErr *ValidationError
	var remoteErr *RemoteError

	switch KindOf(err) {
	case KindValidation:
		errors.As(err, &validationErr)
		return validationErr.Message
	case KindRemote:
		errors.As(err, &remoteErr)
		if remoteErr.Message != "" {
			return remoteErr.Message
		}
		return fmt.Sprintf("Request failed (%d)", remoteErr.Status)
	case KindAuth:
		errors.As(err, &authErr)
		if authErr.Message != "" {
			return authErr.Message
		}
		switch authErr.Reason {
		case ReasonInvalidCredentials:
			return "Invalid credentials"
		case ReasonUnverifiedAccount:
			return "Please verify your email before logging in."
		case ReasonNetwork:
			return "Could not reach the server. Try again later."
		}
		return "Your session has expired. Please log in again."
	case KindNetwork:
		return "Could not reach the server. Showing the last known data."
	case KindRealtime:
		return "Live updates paused. Reconnecting..."
	case KindCanceled:
		return ""
	}
	return "Something went wrong. Try again later."
}
