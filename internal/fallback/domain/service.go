package domain

import (
	"context"
	"errors"
)

var (
	ErrMissingPaymentID = errors.New("missing_payment_id")
	ErrInvalidSource    = errors.New("invalid_fallback_source")
	ErrInvalidStatus    = errors.New("invalid_fallback_status")
)

type Service interface {
	// Store queues a paid registration. Storing the same payment twice keeps
	// the first row and reports stored=false.
	Store(ctx context.Context, req StoreRequest) (bool, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}
