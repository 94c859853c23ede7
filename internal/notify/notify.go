// Package notify delivers finished run output: one message per approved
// posting plus standalone system alerts.
package notify

import (
	"context"
	"errors"
	"fmt"
)

// Kind distinguishes success notifications from system alerts.
type Kind string

const (
	KindSuccess Kind = "success"
	KindAlert   Kind = "alert"
)

// Payload is the final rendered message for one posting or one alert.
// Immutable once built.
type Payload struct {
	Kind    Kind
	Subject string
	Body    string
}

// Notifier is the notification channel contract.
type Notifier interface {
	Send(ctx context.Context, p *Payload) error
}

// apiError carries the HTTP status of a failed delivery attempt.
type apiError struct {
	status int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("notification endpoint returned status %d", e.status)
}

// IsRetryable classifies a notifier error for the reliability wrapper: rate
// limiting, server errors and transport failures are transient, everything
// else (bad token, bad chat id) is final.
func IsRetryable(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status == 429 || ae.status >= 500
	}
	return true
}
