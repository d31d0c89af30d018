package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrProviderNotFound = errors.New("payment_provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_gateway_config")
	ErrCustomerNotFound = errors.New("gateway_customer_not_found")
	ErrPaymentNotFound  = errors.New("gateway_payment_not_found")
	ErrInvalidSignature = errors.New("invalid_webhook_signature")
	ErrInvalidPayload   = errors.New("invalid_webhook_payload")
	ErrEventIgnored     = errors.New("webhook_event_ignored")
)

// Error describes a failed gateway HTTP call. StatusCode is zero when the
// request never produced a response.
type Error struct {
	Provider    string
	Operation   string
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Provider, e.Operation)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.Description != "" {
		fmt.Fprintf(&b, ": %s", e.Description)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// GatewayStatusCode exposes the HTTP status for error classification.
func (e *Error) GatewayStatusCode() int { return e.StatusCode }

// IsClientError reports a 4xx rejection: a duplicate customer, a refused card
// or invalid input. Retrying the same request will not help.
func IsClientError(err error) bool {
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		return false
	}
	return gwErr.StatusCode >= 400 && gwErr.StatusCode < 500 && gwErr.StatusCode != http.StatusTooManyRequests
}

// IsTransient reports network failures, throttling and 5xx responses.
func IsTransient(err error) bool {
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		return false
	}
	return gwErr.StatusCode == 0 || gwErr.StatusCode == http.StatusTooManyRequests || gwErr.StatusCode >= 500
}
