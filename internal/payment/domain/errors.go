package domain

import "errors"

var (
	ErrInvalidAttemptID  = errors.New("invalid_attempt_id")
	ErrInvalidAmount     = errors.New("invalid_payment_amount")
	ErrInvalidMethod     = errors.New("invalid_payment_method")
	ErrMissingCard       = errors.New("missing_card_data")
	ErrPaymentRefused    = errors.New("payment_refused")
	ErrAttemptInProgress = errors.New("payment_attempt_in_progress")
	ErrRecordNotFound    = errors.New("payment_record_not_found")
)
