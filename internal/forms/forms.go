// Package forms holds the local field state and submission rules of the
// client's input forms.
//
// Every form validates locally before any network call. A validation
// failure sets the banner and returns *apperr.ValidationError. On success
// the banner shows the backend's message (or a per-form fallback) and the
// inputs are cleared; on failure the banner shows the backend's error
// verbatim and the inputs are kept for correction.
package forms

import (
	"errors"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/mmynk/chama/internal/apperr"
)

// MsgInvalidAmount is shown for empty, non-numeric, zero or negative amounts.
const MsgInvalidAmount = "Please enter a valid positive amount."

// Status is the state of a form banner.
type Status int

const (
	StatusNone Status = iota
	StatusSuccess
	StatusError
)

// Banner is the message line shown above a form.
type Banner struct {
	Status Status
	Text   string
}

// Visible reports whether the banner has anything to show.
func (b Banner) Visible() bool {
	return b.Text != ""
}

func successBanner(message, fallback string) Banner {
	if message == "" {
		message = fallback
	}
	return Banner{Status: StatusSuccess, Text: message}
}

// errorBanner renders err. A remote rejection without a message falls back
// to the form's failure text.
func errorBanner(err error, fallback string) Banner {
	var remoteErr *apperr.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Message == "" {
		return Banner{Status: StatusError, Text: fallback}
	}
	text := apperr.UserMessage(err)
	if text == "" {
		text = fallback
	}
	return Banner{Status: StatusError, Text: text}
}

// ParseAmount validates a money input: it must be a finite number above zero.
func ParseAmount(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperr.Validation(field, MsgInvalidAmount)
	}
	amount, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, apperr.Validation(field, MsgInvalidAmount)
	}
	return amount, nil
}

func validationBanner(err error) Banner {
	return Banner{Status: StatusError, Text: apperr.UserMessage(err)}
}
