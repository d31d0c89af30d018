package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type ListFilter struct {
	Status  Status
	AfterID int64
	Limit   int
}

type Repository interface {
	// Insert is a no-op returning false when the payment id is queued already.
	Insert(ctx context.Context, db *gorm.DB, item *PendingRegistration) (bool, error)
	FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID string) (*PendingRegistration, error)
	// Claim leases up to limit pending rows below the retry ceiling, oldest
	// first, by flipping them to processing.
	Claim(ctx context.Context, db *gorm.DB, limit, ceiling int, now time.Time) ([]PendingRegistration, error)
	// RecoverStale returns processing rows untouched since before to pending.
	RecoverStale(ctx context.Context, db *gorm.DB, before, now time.Time) (int64, error)
	Release(ctx context.Context, db *gorm.DB, id int64, reason string, now time.Time) error
	MarkCompleted(ctx context.Context, db *gorm.DB, id int64, now time.Time) error
	// RecordFailure increments retry_count. It reports exhausted=true only for
	// the single call that moved the row to failed.
	RecordFailure(ctx context.Context, db *gorm.DB, id int64, reason string, ceiling int, now time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*PendingRegistration, error)
}
