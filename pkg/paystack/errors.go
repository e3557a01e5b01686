package paystack

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is returned by every Client method.
type Error struct {
	// Op names the call, e.g. "initialize_charge".
	Op string
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	// Message is the gateway's message, or a description of the failure.
	Message string
	// Err is the underlying cause, if any.
	Err error

	outage bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("paystack %s: %s (HTTP %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("paystack %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsOutage reports whether err means the gateway is unhealthy rather than
// that it refused the request. Only outages count against the breaker.
func IsOutage(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.outage
	}
	return err != nil
}

// IsClientError reports whether the gateway answered with a 4xx or an
// unsuccessful envelope, i.e. it understood and refused the request.
func IsClientError(err error) bool {
	var e *Error
	return errors.As(err, &e) && !e.outage && e.StatusCode != 0
}

// IsRecipientInvalid reports whether a transfer was refused because the
// recipient code is unknown or no longer usable.
func IsRecipientInvalid(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.outage {
		return false
	}
	return e.StatusCode == http.StatusNotFound || strings.Contains(strings.ToLower(e.Message), "recipient")
}

// Message returns the user-facing message carried by err, or fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
